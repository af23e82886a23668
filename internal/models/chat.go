// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationType string

const (
	ConversationDirect  ConversationType = "direct"
	ConversationBooking ConversationType = "booking"
	ConversationSupport ConversationType = "support"
)

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Conversation is a chat between exactly two users. The pair is stored
// sorted (ParticipantA < ParticipantB). PairKey is the dedup identity:
// "direct:<a>:<b>" for direct chats, "booking:<booking_id>" for booking
// chats. Its unique index makes find-or-create idempotent under concurrent
// creation.
type Conversation struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`

	ParticipantA uuid.UUID `gorm:"type:uuid;index" json:"participant_a"`
	ParticipantB uuid.UUID `gorm:"type:uuid;index" json:"participant_b"`

	Type    ConversationType `gorm:"type:varchar(20);default:'direct';index" json:"conversation_type"`
	PairKey string           `gorm:"type:varchar(100);uniqueIndex" json:"-"`

	// booking_id / listing_id for booking conversations, set once at creation
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	// denormalized pointer to the newest message, updated best-effort on send
	LastMessageID   *uuid.UUID  `gorm:"type:uuid" json:"last_message_id,omitempty"`
	LastMessageText string      `json:"last_message_text,omitempty"`
	LastMessageType MessageType `gorm:"type:varchar(20)" json:"last_message_type,omitempty"`
	LastMessageAt   *time.Time  `json:"last_message_at,omitempty"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserA    *User     `gorm:"foreignKey:ParticipantA" json:"user_a,omitempty"`
	UserB    *User     `gorm:"foreignKey:ParticipantB" json:"user_b,omitempty"`
	Messages []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

// HasParticipant reports whether uid is one of the two members.
func (c *Conversation) HasParticipant(uid uuid.UUID) bool {
	return c.ParticipantA == uid || c.ParticipantB == uid
}

// OtherParticipant returns the member that is not uid. The boolean is false
// when uid is not a member at all.
func (c *Conversation) OtherParticipant(uid uuid.UUID) (uuid.UUID, bool) {
	switch uid {
	case c.ParticipantA:
		return c.ParticipantB, true
	case c.ParticipantB:
		return c.ParticipantA, true
	}
	return uuid.Nil, false
}

// ConversationArchive is per-viewer archive state: one row per user who
// archived the conversation. Archiving never touches the other member's view.
type ConversationArchive struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_archive_user" json:"conversation_id"`
	UserID         uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_archive_user" json:"user_id"`
	ArchivedAt     time.Time `json:"archived_at"`
}

// Message belongs to exactly one conversation. ReceiverID is always derived
// server-side from the conversation pair, never taken from client input.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index:idx_msg_conv_time" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;index" json:"sender_id"`
	ReceiverID     uuid.UUID `gorm:"type:uuid;index" json:"receiver_id"`

	Type    MessageType `gorm:"type:varchar(20);default:'text'" json:"message_type"`
	Content string      `gorm:"type:text" json:"content"`

	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	ReplyToID *uuid.UUID `gorm:"type:uuid" json:"reply_to,omitempty"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	IsEdited bool       `gorm:"default:false" json:"is_edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_msg_conv_time" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}
