package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abroadly/abroadly-backend/internal/common"
	"github.com/abroadly/abroadly-backend/internal/domain"
	"github.com/abroadly/abroadly-backend/internal/repository"
	"github.com/abroadly/abroadly-backend/pkg/logger"
	"gorm.io/gorm"
)

// Event names pushed to conversation rooms
const (
	EventNewMessage = "newMessage"
)

// Notifier publishes an event to every live member of a room.
// Fire-and-forget: delivery failures must not fail the caller, the
// store is the source of truth.
type Notifier interface {
	Publish(room, event string, payload interface{})
}

// NewMessageEvent is the payload of the newMessage room event
type NewMessageEvent struct {
	Message      *domain.MessageResponse      `json:"message"`
	Conversation *domain.ConversationResponse `json:"conversation"`
}

// ChatService business logic for conversations and messages
type ChatService interface {
	SendMessage(senderID, role string, req *domain.SendMessageRequest) (*domain.MessageResponse, *domain.ConversationResponse, error)
	ListConversations(userID, role string) ([]*domain.ConversationResponse, error)
	ListAdminConversations() ([]*domain.ConversationResponse, error)
	ListMessages(userID, role, conversationID string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error)
}

type chatService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	notifier Notifier
}

// NewChatService creates a new ChatService
func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) ChatService {
	return &chatService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		notifier: notifier,
	}
}

// SendMessage persists a message into a resolved conversation and
// pushes a newMessage event to the conversation's room.
func (s *chatService) SendMessage(senderID, role string, req *domain.SendMessageRequest) (*domain.MessageResponse, *domain.ConversationResponse, error) {
	body := req.Message
	if strings.TrimSpace(body) == "" {
		return nil, nil, fmt.Errorf("%w: message is required", common.ErrInvalidInput)
	}
	if utf8.RuneCountInString(body) > domain.MaxMessageLength {
		return nil, nil, fmt.Errorf("%w: message cannot exceed %d characters", common.ErrInvalidInput, domain.MaxMessageLength)
	}

	sender, err := s.userRepo.FindByID(senderID)
	if err != nil {
		return nil, nil, common.ErrUserNotFound
	}

	conv, err := s.resolveConversation(senderID, role, req.ConversationID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	msg := &domain.ChatMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      now,
	}
	if err := s.msgRepo.Create(msg); err != nil {
		return nil, nil, err
	}
	msg.Sender = sender

	// Conversation summary. Concurrent sends may race here: last write
	// wins on lastMessageAt, both messages stay durable.
	if err := s.convRepo.UpdateSummary(conv.ID, msg.ID, now); err != nil {
		return nil, nil, err
	}
	conv.LastMessageID = &msg.ID
	conv.LastMessageAt = &now

	// First admin reply claims the thread. The claim is advisory; the
	// access policy re-checks the stored admin on every later call, so
	// a losing concurrent claimant is locked out going forward.
	if role == domain.RoleAdmin && conv.AdminID == nil {
		if err := s.convRepo.ClaimAdmin(conv.ID, senderID); err != nil {
			return nil, nil, err
		}
		adminID := senderID
		conv.AdminID = &adminID
		conv.Admin = sender
	}

	if conv.Student == nil && role == domain.RoleStudent {
		conv.Student = sender
	}

	msgResp := msg.ToResponse()
	convResp := conv.ToResponse(msgResp)

	if s.notifier != nil {
		s.notifier.Publish(conv.ID, EventNewMessage, &NewMessageEvent{
			Message:      msgResp,
			Conversation: convResp,
		})
	}

	return msgResp, convResp, nil
}

// resolveConversation loads and authorizes the target conversation, or
// finds/creates the student's active thread when no id is given.
func (s *chatService) resolveConversation(senderID, role, conversationID string) (*domain.Conversation, error) {
	if conversationID != "" {
		conv, err := s.convRepo.FindByID(conversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, common.ErrConversationNotFound
			}
			return nil, err
		}
		if !conv.AccessibleBy(senderID, role) {
			return nil, common.ErrForbidden
		}
		return conv, nil
	}

	// Only students originate threads
	if role != domain.RoleStudent {
		return nil, common.ErrForbidden
	}

	conv, err := s.convRepo.FindActiveByStudent(senderID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = &domain.Conversation{
		StudentID: senderID,
		IsActive:  true,
	}
	if err := s.convRepo.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns the caller's conversations, newest activity first
func (s *chatService) ListConversations(userID, role string) ([]*domain.ConversationResponse, error) {
	convs, err := s.convRepo.FindByParticipant(userID, role)
	if err != nil {
		return nil, err
	}
	return s.toConversationResponses(convs), nil
}

// ListAdminConversations returns every active conversation for triage,
// regardless of assignment
func (s *chatService) ListAdminConversations() ([]*domain.ConversationResponse, error) {
	convs, err := s.convRepo.FindAllActive()
	if err != nil {
		return nil, err
	}
	return s.toConversationResponses(convs), nil
}

// ListMessages returns one page of a conversation in chronological
// order and marks the caller's unread messages as read.
func (s *chatService) ListMessages(userID, role, conversationID string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, common.ErrConversationNotFound
		}
		return nil, nil, err
	}
	if !conv.AccessibleBy(userID, role) {
		return nil, nil, common.ErrForbidden
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	messages, total, err := s.msgRepo.FindByConversation(conversationID, page, limit)
	if err != nil {
		return nil, nil, err
	}

	// Read receipts for everything the caller did not author. Failures
	// here do not fail the read.
	if err := s.msgRepo.MarkConversationRead(conversationID, userID); err != nil {
		logger.GetLogger().Warn().Err(err).
			Str("conversation_id", conversationID).
			Msg("failed to mark conversation read")
	}

	// Fetched newest-first for pagination; reverse to chronological
	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[len(messages)-1-i] = m.ToResponse()
	}

	meta := &common.Meta{
		Page:  page,
		Limit: limit,
		Total: total,
	}

	return responses, meta, nil
}

// toConversationResponses projects conversations, resolving each
// summary's last message reference
func (s *chatService) toConversationResponses(convs []*domain.Conversation) []*domain.ConversationResponse {
	responses := make([]*domain.ConversationResponse, len(convs))
	for i, conv := range convs {
		var lastMsg *domain.MessageResponse
		if conv.LastMessageID != nil {
			if m, err := s.msgRepo.FindByID(*conv.LastMessageID); err == nil {
				lastMsg = m.ToResponse()
			}
		}
		responses[i] = conv.ToResponse(lastMsg)
	}
	return responses
}
