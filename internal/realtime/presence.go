// internal/realtime/presence.go
package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StatusFunc announces an online/offline transition to connected clients.
// Presence is best-effort: implementations must not block message delivery.
type StatusFunc func(userID uuid.UUID, online bool, lastSeen time.Time)

// Presence turns registry transitions into online/offline signals. Going
// offline is debounced: a disconnect only counts if no reconnect happens
// within the grace window, which covers page navigations.
type Presence struct {
	registry  Registry
	rdb       *redis.Client
	grace     time.Duration
	broadcast StatusFunc

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func NewPresence(registry Registry, rdb *redis.Client, grace time.Duration, broadcast StatusFunc) *Presence {
	return &Presence{
		registry:  registry,
		rdb:       rdb,
		grace:     grace,
		broadcast: broadcast,
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

// SetOnline cancels any pending offline transition for the user and
// announces them online immediately.
func (p *Presence) SetOnline(userID uuid.UUID) {
	p.mu.Lock()
	if t, ok := p.timers[userID]; ok {
		t.Stop()
		delete(p.timers, userID)
	}
	p.mu.Unlock()

	now := time.Now()
	p.announce(userID, true, now)
}

// SetOffline arms the debounced offline transition. If the user registers a
// new connection before the grace window elapses the transition is
// cancelled; otherwise exactly one offline announcement fires.
func (p *Presence) SetOffline(userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[userID]; ok {
		t.Stop()
	}
	p.timers[userID] = time.AfterFunc(p.grace, func() {
		p.mu.Lock()
		delete(p.timers, userID)
		p.mu.Unlock()

		// reconnected in the meantime, still online
		if _, ok := p.registry.Lookup(userID); ok {
			return
		}
		p.announce(userID, false, time.Now())
	})
}

func (p *Presence) announce(userID uuid.UUID, online bool, at time.Time) {
	if p.rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		status := "0"
		if online {
			status = "1"
		}
		if err := p.rdb.Set(ctx, "presence:online:"+userID.String(), status, 0).Err(); err != nil {
			log.Println("Error writing presence status:", err)
		}
		if !online {
			if err := p.rdb.Set(ctx, "presence:last_seen:"+userID.String(), at.Format(time.RFC3339), 0).Err(); err != nil {
				log.Println("Error writing last seen:", err)
			}
		}
	}

	if p.broadcast != nil {
		p.broadcast(userID, online, at)
	}
}
