package repository

import (
	"time"

	"github.com/abroadly/abroadly-backend/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository chat message data access interface
type MessageRepository interface {
	Create(msg *domain.ChatMessage) error
	FindByID(id string) (*domain.ChatMessage, error)
	FindByConversation(conversationID string, page, limit int) ([]*domain.ChatMessage, int64, error)
	MarkConversationRead(conversationID, readerID string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create creates a new message
func (r *messageRepository) Create(msg *domain.ChatMessage) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID with sender preloaded
func (r *messageRepository) FindByID(id string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.db.Preload("Sender").Where("id = ?", id).First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByConversation returns one page of a conversation's messages,
// newest first. Callers reverse to chronological order for display.
func (r *messageRepository) FindByConversation(conversationID string, page, limit int) ([]*domain.ChatMessage, int64, error) {
	var messages []*domain.ChatMessage
	var total int64

	r.db.Model(&domain.ChatMessage{}).
		Where("conversation_id = ?", conversationID).
		Count(&total)

	offset := (page - 1) * limit
	err := r.db.Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error
	return messages, total, err
}

// MarkConversationRead flips every unread message in the conversation
// not authored by the reader to read. Idempotent: with no unread
// messages left the update matches zero rows.
func (r *messageRepository) MarkConversationRead(conversationID, readerID string) error {
	now := time.Now()
	return r.db.Model(&domain.ChatMessage{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": now,
		}).Error
}
