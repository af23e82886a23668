package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/push"
	"github.com/sewahub/sewahub_be/internal/realtime"
)

func convRoom(convID uuid.UUID) string {
	return "conv:" + convID.String()
}

func userRoom(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// Fanout broadcasts chat state changes to the right sockets. Shared by the
// websocket router and the REST fallback so both paths deliver the same
// events.
type Fanout struct {
	Hub      *realtime.Hub
	Registry realtime.Registry
	Notifier push.Notifier
}

// NewMessage notifies the conversation room, the receiver's personal room
// when they are online but not viewing the conversation, and the push
// collaborator when they are offline.
func (f *Fanout) NewMessage(ctx context.Context, msg *models.Message) {
	room := convRoom(msg.ConversationID)
	ev := realtime.Event{Type: "new_message", Data: msg}

	f.Hub.EmitToRoom(room, ev, "")

	if !f.Hub.UserInRoom(room, msg.ReceiverID) {
		f.Hub.EmitToRoom(userRoom(msg.ReceiverID), ev, "")
	}

	if _, online := f.Registry.Lookup(msg.ReceiverID); !online {
		f.Notifier.Notify(ctx, msg.ReceiverID, push.Notification{
			Title:          "New message",
			Body:           messagePreview(msg),
			ConversationID: msg.ConversationID.String(),
		})
	}
}

func (f *Fanout) MessageEdited(msg *models.Message) {
	f.Hub.EmitToRoom(convRoom(msg.ConversationID), realtime.Event{
		Type: "message_edited",
		Data: msg,
	}, "")
}

// MessagesRead goes to the whole room, not just the reader, so senders see
// their messages flip to read live.
func (f *Fanout) MessagesRead(convID, readerID uuid.UUID, count int64) {
	f.Hub.EmitToRoom(convRoom(convID), realtime.Event{
		Type: "messages_read",
		Data: map[string]interface{}{
			"conversation_id": convID,
			"reader_id":       readerID,
			"count":           count,
		},
	}, "")
}

func messagePreview(msg *models.Message) string {
	switch msg.Type {
	case models.MessageImage:
		return "Sent an image"
	case models.MessageFile:
		return "Sent a file"
	}
	// truncate on rune boundaries, content may be multi-byte
	runes := []rune(msg.Content)
	if len(runes) > 80 {
		return string(runes[:80]) + "…"
	}
	return msg.Content
}
