package push

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Notification is the payload handed to the external push collaborator.
type Notification struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversation_id"`
}

// Notifier delivers best-effort push notifications to offline recipients.
// Failures are logged and swallowed: push never fails the send.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, n Notification)
}

// redisNotifier publishes to the per-user notifications channel; the push
// gateway process subscribes on the other side.
type redisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) Notifier {
	return &redisNotifier{rdb: rdb}
}

func (n *redisNotifier) Notify(ctx context.Context, userID uuid.UUID, notif Notification) {
	payload, err := json.Marshal(notif)
	if err != nil {
		log.Println("Error marshaling notification:", err)
		return
	}
	if err := n.rdb.Publish(ctx, "notifications:"+userID.String(), payload).Err(); err != nil {
		log.Println("Error publishing notification:", err)
	}
}
