package handlers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sewahub/sewahub_be/internal/chat"
	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/repository"
)

// ChatHandler is the non-realtime surface over the chat core. Every route
// maps 1:1 onto a directory or pipeline call and shares the websocket
// fanout so REST sends show up live.
type ChatHandler struct {
	Dir    *chat.Directory
	Pipe   *chat.Pipeline
	Users  repository.UserRepository
	Fanout *Fanout
}

func NewChatHandler(dir *chat.Directory, pipe *chat.Pipeline, users repository.UserRepository, fanout *Fanout) *ChatHandler {
	return &ChatHandler{Dir: dir, Pipe: pipe, Users: users, Fanout: fanout}
}

// respondChatError translates the chat error taxonomy into HTTP responses.
// Storage errors stay generic: internals never reach the client.
func respondChatError(c *fiber.Ctx, err error) error {
	var fields chat.FieldErrors
	switch {
	case errors.As(err, &fields):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Validation error",
			"errors":  fields,
		})
	case errors.Is(err, chat.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Validation error"})
	case errors.Is(err, chat.ErrInvalidOperation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, chat.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Access denied"})
	case errors.Is(err, chat.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Not found"})
	}
	log.Println("Chat handler error:", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Something went wrong"})
}

// CreateOrGetConversation resolves the direct conversation with another
// user, or the conversation attached to a booking.
func (h *ChatHandler) CreateOrGetConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req struct {
		UserID    *string `json:"user_id"`
		BookingID *string `json:"booking_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	var conv *models.Conversation
	switch {
	case req.BookingID != nil:
		bookingUUID, err := uuid.Parse(*req.BookingID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid booking ID"})
		}
		conv, err = h.Dir.CreateForBooking(c.Context(), bookingUUID, userUUID)
		if err != nil {
			return respondChatError(c, err)
		}
	case req.UserID != nil:
		otherUUID, err := uuid.Parse(*req.UserID)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid user ID"})
		}
		if _, err := h.Users.FindByID(c.Context(), otherUUID); err != nil {
			return c.Status(404).JSON(fiber.Map{"success": false, "message": "User not found"})
		}
		conv, err = h.Dir.FindOrCreateDirect(c.Context(), userUUID, otherUUID, nil)
		if err != nil {
			return respondChatError(c, err)
		}
	default:
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "user_id or booking_id required"})
	}

	return c.JSON(fiber.Map{"success": true, "data": conv})
}

// CreateBookingConversation opens (or returns) the renter/owner
// conversation for a booking, called when a booking is confirmed.
func (h *ChatHandler) CreateBookingConversation(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	bookingUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid booking ID"})
	}

	conv, err := h.Dir.CreateForBooking(c.Context(), bookingUUID, userUUID)
	if err != nil {
		return respondChatError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": conv})
}

type UserMini struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type ConversationOut struct {
	ID          string                  `json:"id"`
	Type        models.ConversationType `json:"conversation_type"`
	Other       *UserMini               `json:"other_participant,omitempty"`
	Metadata    map[string]interface{}  `json:"metadata,omitempty"`
	LastMessage *LastMessageOut         `json:"last_message,omitempty"`
	UnreadCount int64                   `json:"unread_count"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

type LastMessageOut struct {
	ID   string             `json:"id"`
	Type models.MessageType `json:"message_type"`
	Text string             `json:"text"`
	At   time.Time          `json:"at"`
}

// GetConversations returns the user's inbox: paginated, filterable by
// archived/type/search, each row enriched with the other participant and
// the derived unread count.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	f := repository.ConversationFilter{
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
		Archived: c.QueryBool("archived", false),
		Type:     models.ConversationType(c.Query("type")),
		Search:   c.Query("search"),
	}

	convs, total, err := h.Dir.List(c.Context(), userUUID, f)
	if err != nil {
		return respondChatError(c, err)
	}

	out := make([]ConversationOut, 0, len(convs))
	for _, conv := range convs {
		unread, err := h.Pipe.UnreadCount(c.Context(), conv.ID, userUUID)
		if err != nil {
			log.Println("Error counting unread:", err)
		}

		var other *UserMini
		otherUser := conv.UserA
		if conv.ParticipantA == userUUID {
			otherUser = conv.UserB
		}
		if otherUser != nil {
			other = &UserMini{ID: otherUser.ID.String(), Name: otherUser.Name, AvatarURL: otherUser.AvatarURL}
		}

		var last *LastMessageOut
		if conv.LastMessageID != nil {
			at := time.Time{}
			if conv.LastMessageAt != nil {
				at = *conv.LastMessageAt
			}
			last = &LastMessageOut{
				ID:   conv.LastMessageID.String(),
				Type: conv.LastMessageType,
				Text: conv.LastMessageText,
				At:   at,
			}
		}

		out = append(out, ConversationOut{
			ID:          conv.ID.String(),
			Type:        conv.Type,
			Other:       other,
			Metadata:    conv.Metadata,
			LastMessage: last,
			UnreadCount: unread,
			UpdatedAt:   conv.UpdatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    out,
		"total":   total,
		"page":    f.Page,
		"limit":   f.Limit,
	})
}

// GetMessages returns a page of the conversation and marks the backlog read
// as a side effect: fetching a conversation means viewing it.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	msgs, total, err := h.Pipe.ListMessages(c.Context(), convUUID, userUUID,
		c.QueryInt("page", 1), c.QueryInt("limit", 50))
	if err != nil {
		return respondChatError(c, err)
	}

	if n, err := h.Pipe.MarkRead(c.Context(), convUUID, userUUID); err != nil {
		log.Println("Error marking messages as read:", err)
	} else if n > 0 {
		h.Fanout.MessagesRead(convUUID, userUUID, n)
	}

	return c.JSON(fiber.Map{"success": true, "data": msgs, "total": total})
}

// SendMessage is the REST fallback for sending; same pipeline and fanout as
// the websocket path.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	var in chat.SendInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	msg, err := h.Pipe.Send(c.Context(), userUUID, convUUID, in)
	if err != nil {
		return respondChatError(c, err)
	}

	h.Fanout.NewMessage(c.Context(), msg)

	return c.JSON(fiber.Map{"success": true, "data": msg})
}

// MarkAsRead flips the unread backlog for the caller.
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	n, err := h.Pipe.MarkRead(c.Context(), convUUID, userUUID)
	if err != nil {
		return respondChatError(c, err)
	}
	if n > 0 {
		h.Fanout.MessagesRead(convUUID, userUUID, n)
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"marked": n}})
}

// EditMessage rewrites a text message the caller sent.
func (h *ChatHandler) EditMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	msgUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid message ID"})
	}

	var req struct {
		NewContent string `json:"newContent"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid request"})
	}

	msg, err := h.Pipe.Edit(c.Context(), msgUUID, userUUID, req.NewContent)
	if err != nil {
		return respondChatError(c, err)
	}

	h.Fanout.MessageEdited(msg)

	return c.JSON(fiber.Map{"success": true, "data": msg})
}

// DeleteMessage hard-deletes a message the caller sent.
func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	msgUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid message ID"})
	}

	if err := h.Pipe.Delete(c.Context(), msgUUID, userUUID); err != nil {
		return respondChatError(c, err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// Archive hides the conversation from the caller's inbox only.
func (h *ChatHandler) Archive(c *fiber.Ctx) error {
	return h.setArchived(c, true)
}

// Unarchive restores it.
func (h *ChatHandler) Unarchive(c *fiber.Ctx) error {
	return h.setArchived(c, false)
}

func (h *ChatHandler) setArchived(c *fiber.Ctx, archived bool) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}
	convUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"success": false, "message": "Invalid conversation ID"})
	}

	if archived {
		err = h.Dir.Archive(c.Context(), convUUID, userUUID)
	} else {
		err = h.Dir.Unarchive(c.Context(), convUUID, userUUID)
	}
	if err != nil {
		return respondChatError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetUnreadTotal returns the global unread count for the badge.
func (h *ChatHandler) GetUnreadTotal(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	count, err := h.Pipe.UnreadCountGlobal(c.Context(), userUUID)
	if err != nil {
		return respondChatError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": count})
}

// GetStats returns the chat summary for the dashboard.
func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	stats, err := h.Pipe.Stats(c.Context(), userUUID)
	if err != nil {
		return respondChatError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// SearchMessages finds the caller's messages matching ?q=.
func (h *ChatHandler) SearchMessages(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	msgs, err := h.Pipe.Search(c.Context(), userUUID, c.Query("q"), c.QueryInt("limit", 50))
	if err != nil {
		return respondChatError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": msgs})
}
