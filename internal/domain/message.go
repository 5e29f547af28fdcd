package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxMessageLength bounds the message body, counted in runes
const MaxMessageLength = 5000

// ChatMessage is a single message inside a conversation. Immutable
// after creation except for the one-way isRead transition applied when
// the other participant reads the thread.
type ChatMessage struct {
	ID             string     `gorm:"column:id;primaryKey;size:36" json:"id"`
	ConversationID string     `gorm:"column:conversation_id;size:36;index:idx_messages_conversation_created;not null" json:"conversation_id"`
	SenderID       string     `gorm:"column:sender_id;size:36;index;not null" json:"sender_id"`
	Body           string     `gorm:"column:body;type:text;not null" json:"body"`
	IsRead         bool       `gorm:"column:is_read;default:false;index" json:"is_read"`
	ReadAt         *time.Time `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at;index:idx_messages_conversation_created" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"-"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// BeforeCreate assigns a UUID primary key
func (m *ChatMessage) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// SendMessageRequest represents a send message request.
// ConversationID is empty when a student opens a new thread.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

// MessageResponse represents a message in API responses
type MessageResponse struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Sender         *UserPublic `json:"sender,omitempty"`
	Body           string      `json:"body"`
	IsRead         bool        `json:"is_read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ToResponse converts a ChatMessage to MessageResponse
func (m *ChatMessage) ToResponse() *MessageResponse {
	resp := &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Body:           m.Body,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
	if m.Sender != nil {
		resp.Sender = m.Sender.ToPublic()
	}
	return resp
}
