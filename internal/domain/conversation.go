package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a support thread between one student and at most one
// admin. The admin slot stays empty until the first admin reply claims
// the thread; after that the claim never moves.
type Conversation struct {
	ID            string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	StudentID     string     `gorm:"column:student_id;size:36;not null;index;index:idx_conversations_student_active" json:"student_id"`
	AdminID       *string    `gorm:"column:admin_id;size:36;index" json:"admin_id,omitempty"`
	LastMessageID *string    `gorm:"column:last_message_id;size:36" json:"last_message_id,omitempty"`
	LastMessageAt *time.Time `gorm:"column:last_message_at;index" json:"last_message_at,omitempty"`
	IsActive      bool       `gorm:"column:is_active;default:true;index:idx_conversations_student_active" json:"is_active"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at" json:"updated_at"`

	Student *User `gorm:"foreignKey:StudentID" json:"-"`
	Admin   *User `gorm:"foreignKey:AdminID" json:"-"`
}

func (Conversation) TableName() string {
	return "chat_conversations"
}

// BeforeCreate assigns a UUID primary key
func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// AccessibleBy is the access policy for conversations, shared by the
// send path, the read path and the realtime gateway so all three agree.
// A student may access only their own thread. An admin may access an
// unclaimed thread or one they have claimed.
func (c *Conversation) AccessibleBy(userID, role string) bool {
	switch role {
	case RoleStudent:
		return c.StudentID == userID
	case RoleAdmin:
		return c.AdminID == nil || *c.AdminID == userID
	default:
		return false
	}
}

// ConversationResponse represents a conversation in API responses
type ConversationResponse struct {
	ID            string           `json:"id"`
	Student       *UserPublic      `json:"student,omitempty"`
	Admin         *UserPublic      `json:"admin,omitempty"`
	LastMessage   *MessageResponse `json:"last_message,omitempty"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	IsActive      bool             `json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
}

// ToResponse converts a Conversation to ConversationResponse.
// lastMessage is passed in separately because the summary reference is
// resolved by the repository, not preloaded on every row.
func (c *Conversation) ToResponse(lastMessage *MessageResponse) *ConversationResponse {
	resp := &ConversationResponse{
		ID:            c.ID,
		LastMessage:   lastMessage,
		LastMessageAt: c.LastMessageAt,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt,
	}
	if c.Student != nil {
		resp.Student = c.Student.ToPublic()
	}
	if c.Admin != nil {
		resp.Admin = c.Admin.ToPublic()
	}
	return resp
}
