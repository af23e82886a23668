package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/repository"
)

// Pipeline is the send/edit/delete/read state machine for messages.
type Pipeline struct {
	dir   *Directory
	msgs  repository.MessageRepository
	convs repository.ConversationRepository
}

func NewPipeline(dir *Directory, msgs repository.MessageRepository, convs repository.ConversationRepository) *Pipeline {
	return &Pipeline{dir: dir, msgs: msgs, convs: convs}
}

// Send validates, persists and returns a new message. The conversation's
// last-message pointer is updated afterwards as a best-effort side effect:
// if that update fails the message still exists, the pointer heals on the
// next send.
func (p *Pipeline) Send(ctx context.Context, senderID, convID uuid.UUID, in SendInput) (*models.Message, error) {
	conv, err := p.dir.Get(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive || !conv.HasParticipant(senderID) {
		return nil, unauthorizedf("user %s cannot send into conversation %s", senderID, convID)
	}

	if err := ValidateSend(in); err != nil {
		return nil, err
	}

	if in.ReplyTo != nil {
		parent, err := p.msgs.FindByID(ctx, *in.ReplyTo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFoundf("reply target %s", *in.ReplyTo)
			}
			return nil, fmt.Errorf("lookup reply target: %w", err)
		}
		if parent.ConversationID != convID {
			return nil, invalidf("cannot reply across conversations")
		}
	}

	msg, err := NewMessage(conv, senderID, in)
	if err != nil {
		return nil, err
	}
	if err := p.msgs.Create(ctx, &msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	if err := p.convs.UpdateLastMessage(ctx, convID, &msg); err != nil {
		log.Println("Error updating conversation pointer:", err)
	}
	return &msg, nil
}

// Edit rewrites the content of a text message. Sender-only.
func (p *Pipeline) Edit(ctx context.Context, msgID, userID uuid.UUID, newContent string) (*models.Message, error) {
	msg, err := p.findMessage(ctx, msgID)
	if err != nil {
		return nil, err
	}

	next, err := ApplyEdit(*msg, userID, newContent, time.Now())
	if err != nil {
		return nil, err
	}
	if err := p.msgs.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("persist edit: %w", err)
	}

	// keep the preview in sync when the newest message was edited
	if conv, err := p.convs.FindByID(ctx, next.ConversationID); err == nil {
		if conv.LastMessageID != nil && *conv.LastMessageID == next.ID {
			if err := p.convs.UpdateLastMessage(ctx, conv.ID, &next); err != nil {
				log.Println("Error updating conversation pointer:", err)
			}
		}
	}
	return &next, nil
}

// Delete removes a message outright. Sender-only, no tombstone.
func (p *Pipeline) Delete(ctx context.Context, msgID, userID uuid.UUID) error {
	msg, err := p.findMessage(ctx, msgID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return unauthorizedf("only the sender can delete a message")
	}
	if err := p.msgs.Delete(ctx, msgID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// MarkRead flips every unread message addressed to userID in the
// conversation. Idempotent; messages the user sent are untouched, so a
// sender "reading" their own conversation is a no-op on their messages.
func (p *Pipeline) MarkRead(ctx context.Context, convID, userID uuid.UUID) (int64, error) {
	conv, err := p.dir.Get(ctx, convID)
	if err != nil {
		return 0, err
	}
	if !conv.HasParticipant(userID) {
		return 0, unauthorizedf("user %s is not a participant", userID)
	}
	n, err := p.msgs.MarkRead(ctx, convID, userID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

// UnreadCount is the derived per-conversation unread count for userID.
func (p *Pipeline) UnreadCount(ctx context.Context, convID, userID uuid.UUID) (int64, error) {
	return p.msgs.CountUnread(ctx, convID, userID)
}

// UnreadCountGlobal is the derived unread count across all conversations.
func (p *Pipeline) UnreadCountGlobal(ctx context.Context, userID uuid.UUID) (int64, error) {
	return p.msgs.CountUnreadGlobal(ctx, userID)
}

// ListMessages returns a chronological page of the conversation.
func (p *Pipeline) ListMessages(ctx context.Context, convID, userID uuid.UUID, page, limit int) ([]models.Message, int64, error) {
	ok, err := p.dir.Authorize(ctx, convID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, unauthorizedf("user %s is not a participant", userID)
	}
	return p.msgs.ListByConversation(ctx, convID, page, limit)
}

// Search finds the user's text messages matching the query.
func (p *Pipeline) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	if query == "" {
		errs := FieldErrors{}
		errs.Add("q", "query is required")
		return nil, errs
	}
	return p.msgs.Search(ctx, userID, query, limit)
}

// Stats summarizes the user's chat state for the dashboard widget.
type Stats struct {
	TotalConversations int64 `json:"total_conversations"`
	UnreadMessages     int64 `json:"unread_messages"`
}

func (p *Pipeline) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	convCount, err := p.convs.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	unread, err := p.msgs.CountUnreadGlobal(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	return &Stats{TotalConversations: convCount, UnreadMessages: unread}, nil
}

func (p *Pipeline) findMessage(ctx context.Context, msgID uuid.UUID) (*models.Message, error) {
	msg, err := p.msgs.FindByID(ctx, msgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("message %s", msgID)
		}
		return nil, fmt.Errorf("lookup message: %w", err)
	}
	return msg, nil
}
