package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/sewahub/sewahub_be/internal/chat"
	"github.com/sewahub/sewahub_be/internal/realtime"
	"github.com/sewahub/sewahub_be/internal/utils"
)

// WSHandler is the transport-facing coordinator: it authenticates
// connections, maps inbound events onto the directory/pipeline, and
// rebroadcasts the results. Delegated-call failures become a caller-directed
// "error" event; they never terminate the connection.
type WSHandler struct {
	Dir       *chat.Directory
	Pipe      *chat.Pipeline
	Hub       *realtime.Hub
	Registry  realtime.Registry
	Presence  *realtime.Presence
	Fanout    *Fanout
	JWTSecret string
}

// Upgrade authenticates the handshake before the websocket upgrade. Browsers
// cannot set headers on native WebSocket, so the bearer token travels as a
// query param, with the session cookie as fallback. A bad token rejects the
// connection here, before any registration happens.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = c.Cookies("sh_token")
	}
	if tokenStr == "" {
		return fiber.ErrUnauthorized
	}

	claims, err := utils.ParseJWT(h.JWTSecret, tokenStr)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	userUUID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	c.Locals("wsUserId", userUUID)
	return c.Next()
}

type inboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type conversationPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	chat.SendInput
}

type editMessagePayload struct {
	MessageID  uuid.UUID `json:"messageId"`
	NewContent string    `json:"newContent"`
}

// Handle runs one connection: register, join the personal room, flip
// presence online, then dispatch inbound events until the socket drops.
func (h *WSHandler) Handle(c *websocket.Conn) {
	userID, ok := c.Locals("wsUserId").(uuid.UUID)
	if !ok {
		c.Close()
		return
	}

	connID := uuid.New().String()
	client := &realtime.Client{
		ID:     connID,
		UserID: userID,
		Send:   make(chan []byte, 256),
	}

	h.Hub.AddClient(client)
	h.Registry.Register(userID, connID)
	h.Hub.Join(userRoom(userID), connID)
	h.Presence.SetOnline(userID)
	log.Printf("WebSocket: user %s connected (conn %s)", userID, connID)

	defer func() {
		h.announceDeparture(connID, userID)
		h.Hub.RemoveClient(connID)
		if uid, wasCurrent := h.Registry.Unregister(connID); wasCurrent {
			h.Presence.SetOffline(uid)
		}
		log.Printf("WebSocket: user %s disconnected (conn %s)", userID, connID)
	}()

	go realtime.NewWebSocketConn(c).WritePump(client.Send)

	for {
		var ev inboundEvent
		if err := c.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error for user %s: %v", userID, err)
			}
			break
		}
		if err := h.dispatch(connID, userID, ev); err != nil {
			h.emitError(connID, err)
		}
	}
}

func (h *WSHandler) dispatch(connID string, userID uuid.UUID, ev inboundEvent) error {
	ctx := context.Background()

	switch ev.Type {
	case "join_conversation":
		var p conversationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		return h.joinConversation(ctx, connID, userID, p.ConversationID)

	case "leave_conversation":
		var p conversationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		room := convRoom(p.ConversationID)
		h.Hub.Leave(room, connID)
		h.Hub.EmitToRoom(room, realtime.Event{
			Type: "user_left",
			Data: map[string]interface{}{"conversation_id": p.ConversationID, "user_id": userID},
		}, connID)
		return nil

	case "send_message":
		var p sendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		msg, err := h.Pipe.Send(ctx, userID, p.ConversationID, p.SendInput)
		if err != nil {
			return err
		}
		h.Fanout.NewMessage(ctx, msg)
		return nil

	case "typing_start", "typing_stop":
		var p conversationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		return h.relayTyping(connID, userID, p.ConversationID, ev.Type == "typing_start")

	case "mark_messages_read":
		var p conversationPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		n, err := h.Pipe.MarkRead(ctx, p.ConversationID, userID)
		if err != nil {
			return err
		}
		h.Fanout.MessagesRead(p.ConversationID, userID, n)
		return nil

	case "edit_message":
		var p editMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return badPayload(err)
		}
		msg, err := h.Pipe.Edit(ctx, p.MessageID, userID, p.NewContent)
		if err != nil {
			return err
		}
		h.Fanout.MessageEdited(msg)
		return nil

	case "ping", "pong":
		return nil
	}

	errs := chat.FieldErrors{}
	errs.Add("type", "unknown event type: "+ev.Type)
	return errs
}

// joinConversation puts the connection into the room, marks the backlog
// read (a user viewing the conversation has read it) and announces the join
// to the other members.
func (h *WSHandler) joinConversation(ctx context.Context, connID string, userID, convID uuid.UUID) error {
	ok, err := h.Dir.Authorize(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return chat.ErrUnauthorized
	}

	room := convRoom(convID)
	h.Hub.Join(room, connID)

	if n, err := h.Pipe.MarkRead(ctx, convID, userID); err != nil {
		log.Println("Error marking messages read on join:", err)
	} else if n > 0 {
		h.Fanout.MessagesRead(convID, userID, n)
	}

	h.Hub.EmitToRoom(room, realtime.Event{
		Type: "user_joined",
		Data: map[string]interface{}{"conversation_id": convID, "user_id": userID},
	}, connID)
	return nil
}

// relayTyping is a pure ephemeral relay: nothing persisted, the only check
// is that the sender actually sits in the room.
func (h *WSHandler) relayTyping(connID string, userID, convID uuid.UUID, started bool) error {
	room := convRoom(convID)
	if !h.Hub.InRoom(room, connID) {
		return chat.ErrUnauthorized
	}

	evType := "user_stopped_typing"
	if started {
		evType = "user_typing"
	}
	h.Hub.EmitToRoom(room, realtime.Event{
		Type: evType,
		Data: map[string]interface{}{"conversation_id": convID, "user_id": userID},
	}, connID)
	return nil
}

// announceDeparture emits user_left to every conversation room the
// connection had joined, so abrupt disconnects look the same to room members
// as an explicit leave_conversation.
func (h *WSHandler) announceDeparture(connID string, userID uuid.UUID) {
	for _, room := range h.Hub.Rooms(connID) {
		convID, ok := strings.CutPrefix(room, "conv:")
		if !ok {
			continue
		}
		h.Hub.EmitToRoom(room, realtime.Event{
			Type: "user_left",
			Data: map[string]interface{}{"conversation_id": convID, "user_id": userID},
		}, connID)
	}
}

func (h *WSHandler) emitError(connID string, err error) {
	code := "internal_error"
	msg := "Something went wrong"

	var fields chat.FieldErrors
	switch {
	case errors.As(err, &fields):
		code, msg = "validation_error", "Validation error"
	case errors.Is(err, chat.ErrValidation):
		code, msg = "validation_error", "Validation error"
	case errors.Is(err, chat.ErrUnauthorized):
		code, msg = "unauthorized", "You are not allowed to do that"
	case errors.Is(err, chat.ErrNotFound):
		code, msg = "not_found", "Resource not found"
	case errors.Is(err, chat.ErrInvalidOperation):
		code, msg = "invalid_operation", err.Error()
	default:
		log.Println("WebSocket dispatch error:", err)
	}

	data := map[string]interface{}{"code": code, "message": msg}
	if len(fields) > 0 {
		data["errors"] = fields
	}
	h.Hub.EmitToConn(connID, realtime.Event{Type: "error", Data: data})
}

func badPayload(err error) error {
	errs := chat.FieldErrors{}
	errs.Add("data", "invalid payload: "+err.Error())
	return errs
}
