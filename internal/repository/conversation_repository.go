package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sewahub/sewahub_be/internal/models"
)

// ConversationFilter narrows ListByUser. Archived=false is the default inbox
// view; true returns only what the viewer archived.
type ConversationFilter struct {
	Page     int
	Limit    int
	Archived bool
	Type     models.ConversationType
	Search   string
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindByPairKey(ctx context.Context, key string) (*models.Conversation, error)
	Reactivate(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, f ConversationFilter) ([]models.Conversation, int64, error)
	UpdateLastMessage(ctx context.Context, id uuid.UUID, msg *models.Message) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)

	FindArchive(ctx context.Context, convID, userID uuid.UUID) (*models.ConversationArchive, error)
	CreateArchive(ctx context.Context, arch *models.ConversationArchive) error
	DeleteArchive(ctx context.Context, convID, userID uuid.UUID) error
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByPairKey matches active and deactivated conversations alike; the
// directory decides whether to revive a deactivated one.
func (r *conversationRepository) FindByPairKey(ctx context.Context, key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", key).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Reactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("is_active", true).Error
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, f ConversationFilter) ([]models.Conversation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("(participant_a = ? OR participant_b = ?) AND is_active = true", userID, userID)

	archivedSub := r.db.Model(&models.ConversationArchive{}).
		Select("conversation_id").
		Where("user_id = ?", userID)
	if f.Archived {
		q = q.Where("conversations.id IN (?)", archivedSub)
	} else {
		q = q.Where("conversations.id NOT IN (?)", archivedSub)
	}

	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Joins("JOIN users ua ON ua.id = conversations.participant_a").
			Joins("JOIN users ub ON ub.id = conversations.participant_b").
			Where("ua.name ILIKE ? OR ub.name ILIKE ? OR last_message_text ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	var convs []models.Conversation
	err := q.
		Preload("UserA").
		Preload("UserB").
		Order("COALESCE(last_message_at, conversations.created_at) DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&convs).Error
	if err != nil {
		return nil, 0, err
	}
	return convs, total, nil
}

func (r *conversationRepository) UpdateLastMessage(ctx context.Context, id uuid.UUID, msg *models.Message) error {
	preview := msg.Content
	if msg.Type == models.MessageImage || msg.Type == models.MessageFile {
		preview = msg.FileName
	}
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_id":   msg.ID,
			"last_message_text": preview,
			"last_message_type": msg.Type,
			"last_message_at":   msg.CreatedAt,
			"updated_at":        time.Now(),
		}).Error
}

func (r *conversationRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *conversationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("(participant_a = ? OR participant_b = ?) AND is_active = true", userID, userID).
		Count(&count).Error
	return count, err
}

func (r *conversationRepository) FindArchive(ctx context.Context, convID, userID uuid.UUID) (*models.ConversationArchive, error) {
	var arch models.ConversationArchive
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		First(&arch).Error
	if err != nil {
		return nil, err
	}
	return &arch, nil
}

func (r *conversationRepository) CreateArchive(ctx context.Context, arch *models.ConversationArchive) error {
	return r.db.WithContext(ctx).Create(arch).Error
}

func (r *conversationRepository) DeleteArchive(ctx context.Context, convID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Delete(&models.ConversationArchive{}).Error
}
