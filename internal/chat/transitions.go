package chat

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sewahub/sewahub_be/internal/models"
)

// Entity state transitions as pure functions: they take the current state
// and return the next one, persistence happens separately in the pipeline.

// SortPair orders two user ids so every caller derives the same canonical
// pair for a direct conversation.
func SortPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// DirectPairKey is the dedup identity of a direct conversation.
func DirectPairKey(a, b uuid.UUID) string {
	lo, hi := SortPair(a, b)
	return "direct:" + lo.String() + ":" + hi.String()
}

// BookingPairKey is the dedup identity of a booking conversation.
func BookingPairKey(bookingID uuid.UUID) string {
	return "booking:" + bookingID.String()
}

// SendInput is the client-supplied part of a message. Sender and receiver
// are never part of it.
type SendInput struct {
	Content  string             `json:"content"`
	Type     models.MessageType `json:"messageType"`
	ReplyTo  *uuid.UUID         `json:"replyTo,omitempty"`
	FileURL  string             `json:"fileUrl,omitempty"`
	FileName string             `json:"fileName,omitempty"`
	FileSize int64              `json:"fileSize,omitempty"`
}

const maxContentLen = 5000

// ValidateSend checks the type-conditional required fields: text/system
// need content, image/file need a file URL.
func ValidateSend(in SendInput) error {
	errs := FieldErrors{}

	switch in.Type {
	case models.MessageText, models.MessageSystem:
		if strings.TrimSpace(in.Content) == "" {
			errs.Add("content", "content is required for "+string(in.Type)+" messages")
		}
	case models.MessageImage, models.MessageFile:
		if strings.TrimSpace(in.FileURL) == "" {
			errs.Add("fileUrl", "fileUrl is required for "+string(in.Type)+" messages")
		}
	case "":
		errs.Add("messageType", "messageType is required")
	default:
		errs.Add("messageType", "unknown message type: "+string(in.Type))
	}

	if len(in.Content) > maxContentLen {
		errs.Add("content", "content too long")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// NewMessage builds the message for a validated send. The receiver is the
// other participant of conv, computed here so clients cannot spoof it.
func NewMessage(conv *models.Conversation, senderID uuid.UUID, in SendInput) (models.Message, error) {
	receiverID, ok := conv.OtherParticipant(senderID)
	if !ok {
		return models.Message{}, unauthorizedf("sender %s is not a participant", senderID)
	}
	return models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Type:           in.Type,
		Content:        strings.TrimSpace(in.Content),
		FileURL:        in.FileURL,
		FileName:       in.FileName,
		FileSize:       in.FileSize,
		ReplyToID:      in.ReplyTo,
	}, nil
}

// ApplyEdit returns the edited message. Only the sender may edit, and only
// text messages can be edited.
func ApplyEdit(m models.Message, editorID uuid.UUID, newContent string, now time.Time) (models.Message, error) {
	if m.SenderID != editorID {
		return m, unauthorizedf("only the sender can edit a message")
	}
	if m.Type != models.MessageText {
		return m, invalidf("cannot edit a %s message", m.Type)
	}
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		errs := FieldErrors{}
		errs.Add("newContent", "newContent is required")
		return m, errs
	}
	m.Content = newContent
	m.IsEdited = true
	m.EditedAt = &now
	return m, nil
}

// ApplyRead flips a message to read. One-way: a read message stays read and
// keeps its original read_at.
func ApplyRead(m models.Message, now time.Time) models.Message {
	if m.IsRead {
		return m
	}
	m.IsRead = true
	m.ReadAt = &now
	return m
}
