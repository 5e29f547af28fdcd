package repository

import (
	"time"

	"github.com/abroadly/abroadly-backend/internal/domain"
	"gorm.io/gorm"
)

// conversationListLimit bounds participant-filtered conversation lists
const conversationListLimit = 50

// ConversationRepository conversation data access interface
type ConversationRepository interface {
	Create(conv *domain.Conversation) error
	FindByID(id string) (*domain.Conversation, error)
	FindActiveByStudent(studentID string) (*domain.Conversation, error)
	FindByParticipant(userID, role string) ([]*domain.Conversation, error)
	FindAllActive() ([]*domain.Conversation, error)
	FindVisible(userID, role string) ([]*domain.Conversation, error)
	UpdateSummary(id string, lastMessageID string, lastMessageAt time.Time) error
	ClaimAdmin(id string, adminID string) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create creates a new conversation
func (r *conversationRepository) Create(conv *domain.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID with participants preloaded
func (r *conversationRepository) FindByID(id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.Preload("Student").Preload("Admin").
		Where("id = ?", id).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindActiveByStudent returns the student's active conversation.
// The store is expected to hold at most one; if that is ever violated
// the most recently active one wins, deterministically.
func (r *conversationRepository) FindActiveByStudent(studentID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.Preload("Student").Preload("Admin").
		Where("student_id = ? AND is_active = ?", studentID, true).
		Order("last_message_at DESC, id DESC").
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByParticipant returns conversations where the user is the student
// (student role) or the assigned admin (admin role), newest activity first.
func (r *conversationRepository) FindByParticipant(userID, role string) ([]*domain.Conversation, error) {
	q := r.db.Preload("Student").Preload("Admin")
	switch role {
	case domain.RoleStudent:
		q = q.Where("student_id = ?", userID)
	case domain.RoleAdmin:
		q = q.Where("admin_id = ?", userID)
	default:
		return nil, nil
	}

	var convs []*domain.Conversation
	err := q.Order("last_message_at DESC, id DESC").
		Limit(conversationListLimit).
		Find(&convs).Error
	return convs, err
}

// FindAllActive returns every active conversation for admin triage,
// regardless of assignment.
func (r *conversationRepository) FindAllActive() ([]*domain.Conversation, error) {
	var convs []*domain.Conversation
	err := r.db.Preload("Student").Preload("Admin").
		Where("is_active = ?", true).
		Order("last_message_at DESC, id DESC").
		Find(&convs).Error
	return convs, err
}

// FindVisible returns the conversations a connection may join rooms
// for: students see their own, admins see assigned plus unclaimed.
func (r *conversationRepository) FindVisible(userID, role string) ([]*domain.Conversation, error) {
	q := r.db
	switch role {
	case domain.RoleStudent:
		q = q.Where("student_id = ?", userID)
	case domain.RoleAdmin:
		q = q.Where("admin_id = ? OR admin_id IS NULL", userID)
	default:
		return nil, nil
	}

	var convs []*domain.Conversation
	err := q.Find(&convs).Error
	return convs, err
}

// UpdateSummary points the conversation at its newest message.
// Concurrent sends race here; last write wins, which is acceptable for
// a summary field (both messages are durable either way).
func (r *conversationRepository) UpdateSummary(id string, lastMessageID string, lastMessageAt time.Time) error {
	return r.db.Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_id": lastMessageID,
			"last_message_at": lastMessageAt,
		}).Error
}

// ClaimAdmin assigns an admin to an unclaimed conversation. The guard
// on admin_id IS NULL keeps the claim first-writer-wins at the store.
func (r *conversationRepository) ClaimAdmin(id string, adminID string) error {
	return r.db.Model(&domain.Conversation{}).
		Where("id = ? AND admin_id IS NULL", id).
		Update("admin_id", adminID).Error
}
