package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sewahub/sewahub_be/internal/models"
	"github.com/sewahub/sewahub_be/internal/repository"
)

// In-memory repository fakes. The conversation fake enforces the unique
// pair key the way the database index does, so the creation-race paths are
// exercised for real.

type fakeConvRepo struct {
	mu       sync.Mutex
	convs    map[uuid.UUID]*models.Conversation
	byKey    map[string]uuid.UUID
	archives map[string]*models.ConversationArchive
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		convs:    make(map[uuid.UUID]*models.Conversation),
		byKey:    make(map[string]uuid.UUID),
		archives: make(map[string]*models.ConversationArchive),
	}
}

func archiveKey(convID, userID uuid.UUID) string {
	return convID.String() + "|" + userID.String()
}

func (r *fakeConvRepo) Create(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byKey[conv.PairKey]; exists {
		return errors.New("duplicate key value violates unique constraint")
	}
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	cp := *conv
	r.convs[conv.ID] = &cp
	r.byKey[conv.PairKey] = conv.ID
	return nil
}

func (r *fakeConvRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *conv
	return &cp, nil
}

func (r *fakeConvRepo) FindByPairKey(_ context.Context, key string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r.convs[id]
	return &cp, nil
}

func (r *fakeConvRepo) ListByUser(_ context.Context, userID uuid.UUID, f repository.ConversationFilter) ([]models.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, conv := range r.convs {
		if !conv.IsActive || !conv.HasParticipant(userID) {
			continue
		}
		_, archived := r.archives[archiveKey(conv.ID, userID)]
		if archived != f.Archived {
			continue
		}
		if f.Type != "" && conv.Type != f.Type {
			continue
		}
		out = append(out, *conv)
	}
	return out, int64(len(out)), nil
}

func (r *fakeConvRepo) UpdateLastMessage(_ context.Context, id uuid.UUID, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	msgID := msg.ID
	at := msg.CreatedAt
	conv.LastMessageID = &msgID
	conv.LastMessageText = msg.Content
	conv.LastMessageType = msg.Type
	conv.LastMessageAt = &at
	conv.UpdatedAt = time.Now()
	return nil
}

func (r *fakeConvRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	return r.setActive(id, false)
}

func (r *fakeConvRepo) Reactivate(_ context.Context, id uuid.UUID) error {
	return r.setActive(id, true)
}

func (r *fakeConvRepo) setActive(id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.convs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conv.IsActive = active
	return nil
}

func (r *fakeConvRepo) CountByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, conv := range r.convs {
		if conv.IsActive && conv.HasParticipant(userID) {
			n++
		}
	}
	return n, nil
}

func (r *fakeConvRepo) FindArchive(_ context.Context, convID, userID uuid.UUID) (*models.ConversationArchive, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	arch, ok := r.archives[archiveKey(convID, userID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *arch
	return &cp, nil
}

func (r *fakeConvRepo) CreateArchive(_ context.Context, arch *models.ConversationArchive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if arch.ID == uuid.Nil {
		arch.ID = uuid.New()
	}
	cp := *arch
	r.archives[archiveKey(arch.ConversationID, arch.UserID)] = &cp
	return nil
}

func (r *fakeConvRepo) DeleteArchive(_ context.Context, convID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.archives, archiveKey(convID, userID))
	return nil
}

type fakeMsgRepo struct {
	mu    sync.Mutex
	msgs  map[uuid.UUID]*models.Message
	order []uuid.UUID
	seq   int
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{msgs: make(map[uuid.UUID]*models.Message)}
}

func (r *fakeMsgRepo) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	// strictly increasing timestamps so ordering assertions are stable
	r.seq++
	msg.CreatedAt = time.Unix(0, int64(r.seq)*int64(time.Millisecond))
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	r.msgs[msg.ID] = &cp
	r.order = append(r.order, msg.ID)
	return nil
}

func (r *fakeMsgRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.msgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *msg
	return &cp, nil
}

func (r *fakeMsgRepo) Save(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[msg.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *msg
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *fakeMsgRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.msgs, id)
	for i, mid := range r.order {
		if mid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakeMsgRepo) ListByConversation(_ context.Context, convID uuid.UUID, page, limit int) ([]models.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Message
	for _, id := range r.order {
		if msg, ok := r.msgs[id]; ok && msg.ConversationID == convID {
			all = append(all, *msg)
		}
	}
	total := int64(len(all))

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	end := len(all) - (page-1)*limit
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	return all[start:end], total, nil
}

func (r *fakeMsgRepo) MarkRead(_ context.Context, convID, receiverID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, msg := range r.msgs {
		if msg.ConversationID == convID && msg.ReceiverID == receiverID && !msg.IsRead {
			readAt := at
			msg.IsRead = true
			msg.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (r *fakeMsgRepo) CountUnread(_ context.Context, convID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, msg := range r.msgs {
		if msg.ConversationID == convID && msg.ReceiverID == userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeMsgRepo) CountUnreadGlobal(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, msg := range r.msgs {
		if msg.ReceiverID == userID && !msg.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeMsgRepo) Search(_ context.Context, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := strings.ToLower(query)
	var out []models.Message
	for _, id := range r.order {
		msg, ok := r.msgs[id]
		if !ok {
			continue
		}
		if msg.SenderID != userID && msg.ReceiverID != userID {
			continue
		}
		if msg.Type != models.MessageText && msg.Type != models.MessageSystem {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Content), q) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

type fakeBookingRepo struct {
	bookings map[uuid.UUID]*models.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]*models.Booking)}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

// newTestCore wires a directory and pipeline over fresh fakes.
func newTestCore() (*Directory, *Pipeline, *fakeConvRepo, *fakeMsgRepo, *fakeBookingRepo) {
	convs := newFakeConvRepo()
	msgs := newFakeMsgRepo()
	bookings := newFakeBookingRepo()
	dir := NewDirectory(convs, msgs, bookings)
	pipe := NewPipeline(dir, msgs, convs)
	return dir, pipe, convs, msgs, bookings
}
