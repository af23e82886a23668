package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sewahub/sewahub_be/internal/models"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	Save(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByConversation(ctx context.Context, convID uuid.UUID, page, limit int) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, convID, receiverID uuid.UUID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, convID, userID uuid.UUID) (int64, error)
	CountUnreadGlobal(ctx context.Context, userID uuid.UUID) (int64, error)
	Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) Save(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Save(msg).Error
}

func (r *messageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}

// ListByConversation pages newest-first, then reverses so the caller gets
// chronological order. Clients render by created_at anyway.
func (r *messageRepository) ListByConversation(ctx context.Context, convID uuid.UUID, page, limit int) ([]models.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", convID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}

	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, total, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, convID, receiverID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = false", convID, receiverID).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *messageRepository) CountUnread(ctx context.Context, convID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = false", convID, userID).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) CountUnreadGlobal(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = false", userID).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND type IN ? AND content ILIKE ?",
			userID, userID,
			[]models.MessageType{models.MessageText, models.MessageSystem},
			"%"+query+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
