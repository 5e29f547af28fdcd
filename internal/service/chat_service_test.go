package service

import (
	"strings"
	"testing"
	"time"

	"github.com/abroadly/abroadly-backend/internal/common"
	"github.com/abroadly/abroadly-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- Mock ConversationRepository ---

type mockConvRepo struct {
	mock.Mock
}

func (m *mockConvRepo) Create(conv *domain.Conversation) error {
	args := m.Called(conv)
	if conv.ID == "" {
		conv.ID = "conv-new"
	}
	return args.Error(0)
}

func (m *mockConvRepo) FindByID(id string) (*domain.Conversation, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConvRepo) FindActiveByStudent(studentID string) (*domain.Conversation, error) {
	args := m.Called(studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConvRepo) FindByParticipant(userID, role string) ([]*domain.Conversation, error) {
	args := m.Called(userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *mockConvRepo) FindAllActive() ([]*domain.Conversation, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *mockConvRepo) FindVisible(userID, role string) ([]*domain.Conversation, error) {
	args := m.Called(userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *mockConvRepo) UpdateSummary(id string, lastMessageID string, lastMessageAt time.Time) error {
	return m.Called(id, lastMessageID, lastMessageAt).Error(0)
}

func (m *mockConvRepo) ClaimAdmin(id string, adminID string) error {
	return m.Called(id, adminID).Error(0)
}

// --- Mock MessageRepository ---

type mockMsgRepo struct {
	mock.Mock
}

func (m *mockMsgRepo) Create(msg *domain.ChatMessage) error {
	args := m.Called(msg)
	if msg.ID == "" {
		msg.ID = "msg-new"
	}
	return args.Error(0)
}

func (m *mockMsgRepo) FindByID(id string) (*domain.ChatMessage, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

func (m *mockMsgRepo) FindByConversation(conversationID string, page, limit int) ([]*domain.ChatMessage, int64, error) {
	args := m.Called(conversationID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Get(1).(int64), args.Error(2)
}

func (m *mockMsgRepo) MarkConversationRead(conversationID, readerID string) error {
	return m.Called(conversationID, readerID).Error(0)
}

// --- Mock UserRepository ---

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(id string) (*domain.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Create(user *domain.User) error {
	return m.Called(user).Error(0)
}

// --- Recording notifier ---

type recordedEvent struct {
	room    string
	event   string
	payload interface{}
}

type recordingNotifier struct {
	events []recordedEvent
}

func (n *recordingNotifier) Publish(room, event string, payload interface{}) {
	n.events = append(n.events, recordedEvent{room: room, event: event, payload: payload})
}

// --- Helpers ---

func newTestService() (*mockConvRepo, *mockMsgRepo, *mockUserRepo, *recordingNotifier, ChatService) {
	convRepo := &mockConvRepo{}
	msgRepo := &mockMsgRepo{}
	userRepo := &mockUserRepo{}
	notifier := &recordingNotifier{}
	svc := NewChatService(convRepo, msgRepo, userRepo, notifier)
	return convRepo, msgRepo, userRepo, notifier, svc
}

func studentUser(id, name string) *domain.User {
	return &domain.User{ID: id, Name: name, Role: domain.RoleStudent, IsVerified: true}
}

func adminUser(id, name string) *domain.User {
	return &domain.User{ID: id, Name: name, Role: domain.RoleAdmin, IsVerified: true}
}

// --- SendMessage ---

func TestSendMessage_NewConversationForStudent(t *testing.T) {
	convRepo, msgRepo, userRepo, notifier, svc := newTestService()

	userRepo.On("FindByID", "alice").Return(studentUser("alice", "Alice"), nil)
	convRepo.On("FindActiveByStudent", "alice").Return(nil, gorm.ErrRecordNotFound)
	convRepo.On("Create", mock.AnythingOfType("*domain.Conversation")).Return(nil)
	msgRepo.On("Create", mock.AnythingOfType("*domain.ChatMessage")).Return(nil)
	convRepo.On("UpdateSummary", "conv-new", "msg-new", mock.AnythingOfType("time.Time")).Return(nil)

	msg, conv, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{Message: "Hello"})
	require.NoError(t, err)

	assert.Equal(t, "Hello", msg.Body)
	assert.False(t, msg.IsRead)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assert.NotNil(t, conv.LastMessageAt)
	assert.Nil(t, conv.Admin)

	// The push targets the conversation's room with the same payload
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "conv-new", notifier.events[0].room)
	assert.Equal(t, EventNewMessage, notifier.events[0].event)
	ev := notifier.events[0].payload.(*NewMessageEvent)
	assert.Equal(t, msg, ev.Message)
	assert.Equal(t, conv, ev.Conversation)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSendMessage_ReusesActiveConversation(t *testing.T) {
	convRepo, msgRepo, userRepo, _, svc := newTestService()

	existing := &domain.Conversation{ID: "conv-1", StudentID: "alice", IsActive: true}
	userRepo.On("FindByID", "alice").Return(studentUser("alice", "Alice"), nil)
	convRepo.On("FindActiveByStudent", "alice").Return(existing, nil)
	msgRepo.On("Create", mock.AnythingOfType("*domain.ChatMessage")).Return(nil)
	convRepo.On("UpdateSummary", "conv-1", "msg-new", mock.AnythingOfType("time.Time")).Return(nil)

	_, conv, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{Message: "again"})
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)

	// No new conversation was created
	convRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestSendMessage_AdminCannotOriginate(t *testing.T) {
	_, _, userRepo, notifier, svc := newTestService()

	userRepo.On("FindByID", "bob").Return(adminUser("bob", "Bob"), nil)

	_, _, err := svc.SendMessage("bob", domain.RoleAdmin, &domain.SendMessageRequest{Message: "hi"})
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Empty(t, notifier.events)
}

func TestSendMessage_FirstAdminReplyClaimsThread(t *testing.T) {
	convRepo, msgRepo, userRepo, _, svc := newTestService()

	conv := &domain.Conversation{ID: "conv-1", StudentID: "alice", IsActive: true}
	userRepo.On("FindByID", "bob").Return(adminUser("bob", "Bob"), nil)
	convRepo.On("FindByID", "conv-1").Return(conv, nil)
	msgRepo.On("Create", mock.AnythingOfType("*domain.ChatMessage")).Return(nil)
	convRepo.On("UpdateSummary", "conv-1", "msg-new", mock.AnythingOfType("time.Time")).Return(nil)
	convRepo.On("ClaimAdmin", "conv-1", "bob").Return(nil)

	_, convResp, err := svc.SendMessage("bob", domain.RoleAdmin, &domain.SendMessageRequest{ConversationID: "conv-1", Message: "hello"})
	require.NoError(t, err)
	require.NotNil(t, convResp.Admin)
	assert.Equal(t, "bob", convResp.Admin.ID)
	convRepo.AssertCalled(t, "ClaimAdmin", "conv-1", "bob")
}

func TestSendMessage_SecondAdminForbidden(t *testing.T) {
	convRepo, _, userRepo, _, svc := newTestService()

	bobID := "bob"
	conv := &domain.Conversation{ID: "conv-1", StudentID: "alice", AdminID: &bobID, IsActive: true}
	userRepo.On("FindByID", "carol").Return(adminUser("carol", "Carol"), nil)
	convRepo.On("FindByID", "conv-1").Return(conv, nil)

	_, _, err := svc.SendMessage("carol", domain.RoleAdmin, &domain.SendMessageRequest{ConversationID: "conv-1", Message: "hello"})
	assert.ErrorIs(t, err, common.ErrForbidden)
	convRepo.AssertNotCalled(t, "ClaimAdmin", mock.Anything, mock.Anything)
}

func TestSendMessage_ConversationNotFound(t *testing.T) {
	convRepo, _, userRepo, _, svc := newTestService()

	userRepo.On("FindByID", "alice").Return(studentUser("alice", "Alice"), nil)
	convRepo.On("FindByID", "missing").Return(nil, gorm.ErrRecordNotFound)

	_, _, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{ConversationID: "missing", Message: "hi"})
	assert.ErrorIs(t, err, common.ErrConversationNotFound)
}

func TestSendMessage_StudentForbiddenOnForeignConversation(t *testing.T) {
	convRepo, _, userRepo, _, svc := newTestService()

	conv := &domain.Conversation{ID: "conv-1", StudentID: "alice", IsActive: true}
	userRepo.On("FindByID", "mallory").Return(studentUser("mallory", "Mallory"), nil)
	convRepo.On("FindByID", "conv-1").Return(conv, nil)

	_, _, err := svc.SendMessage("mallory", domain.RoleStudent, &domain.SendMessageRequest{ConversationID: "conv-1", Message: "hi"})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestSendMessage_BodyValidation(t *testing.T) {
	t.Run("empty body rejected", func(t *testing.T) {
		_, _, _, _, svc := newTestService()
		_, _, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{Message: "   "})
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		_, _, _, _, svc := newTestService()
		_, _, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{
			Message: strings.Repeat("a", domain.MaxMessageLength+1),
		})
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	})

	t.Run("body of exactly 5000 runes accepted", func(t *testing.T) {
		convRepo, msgRepo, userRepo, _, svc := newTestService()
		userRepo.On("FindByID", "alice").Return(studentUser("alice", "Alice"), nil)
		convRepo.On("FindActiveByStudent", "alice").Return(nil, gorm.ErrRecordNotFound)
		convRepo.On("Create", mock.AnythingOfType("*domain.Conversation")).Return(nil)
		msgRepo.On("Create", mock.AnythingOfType("*domain.ChatMessage")).Return(nil)
		convRepo.On("UpdateSummary", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		// Multi-byte runes: the limit counts characters, not bytes
		_, _, err := svc.SendMessage("alice", domain.RoleStudent, &domain.SendMessageRequest{
			Message: strings.Repeat("가", domain.MaxMessageLength),
		})
		assert.NoError(t, err)
	})
}

// --- ListMessages ---

func TestListMessages_ReversesToChronologicalAndMarksRead(t *testing.T) {
	convRepo, msgRepo, _, _, svc := newTestService()

	conv := &domain.Conversation{ID: "conv-1", StudentID: "alice", IsActive: true}
	convRepo.On("FindByID", "conv-1").Return(conv, nil)

	now := time.Now()
	newest := &domain.ChatMessage{ID: "m2", ConversationID: "conv-1", SenderID: "bob", Body: "second", CreatedAt: now}
	oldest := &domain.ChatMessage{ID: "m1", ConversationID: "conv-1", SenderID: "alice", Body: "first", CreatedAt: now.Add(-time.Minute)}
	msgRepo.On("FindByConversation", "conv-1", 1, 50).Return([]*domain.ChatMessage{newest, oldest}, int64(2), nil)
	msgRepo.On("MarkConversationRead", "conv-1", "alice").Return(nil)

	messages, meta, err := svc.ListMessages("alice", domain.RoleStudent, "conv-1", 0, 0)
	require.NoError(t, err)

	// Chronological order for display
	require.Len(t, messages, 2)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
	assert.Equal(t, int64(2), meta.Total)

	msgRepo.AssertCalled(t, "MarkConversationRead", "conv-1", "alice")
}

func TestListMessages_ForbiddenForForeignStudent(t *testing.T) {
	convRepo, msgRepo, _, _, svc := newTestService()

	conv := &domain.Conversation{ID: "conv-1", StudentID: "alice", IsActive: true}
	convRepo.On("FindByID", "conv-1").Return(conv, nil)

	_, _, err := svc.ListMessages("mallory", domain.RoleStudent, "conv-1", 1, 50)
	assert.ErrorIs(t, err, common.ErrForbidden)
	msgRepo.AssertNotCalled(t, "MarkConversationRead", mock.Anything, mock.Anything)
}

func TestListMessages_NotFound(t *testing.T) {
	convRepo, _, _, _, svc := newTestService()
	convRepo.On("FindByID", "missing").Return(nil, gorm.ErrRecordNotFound)

	_, _, err := svc.ListMessages("alice", domain.RoleStudent, "missing", 1, 50)
	assert.ErrorIs(t, err, common.ErrConversationNotFound)
}

// --- Listings ---

func TestListConversations_ResolvesLastMessage(t *testing.T) {
	convRepo, msgRepo, _, _, svc := newTestService()

	lastID := "m9"
	at := time.Now()
	convs := []*domain.Conversation{
		{ID: "conv-1", StudentID: "alice", LastMessageID: &lastID, LastMessageAt: &at, IsActive: true},
	}
	convRepo.On("FindByParticipant", "alice", domain.RoleStudent).Return(convs, nil)
	msgRepo.On("FindByID", "m9").Return(&domain.ChatMessage{ID: "m9", ConversationID: "conv-1", SenderID: "alice", Body: "bye"}, nil)

	responses, err := svc.ListConversations("alice", domain.RoleStudent)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].LastMessage)
	assert.Equal(t, "m9", responses[0].LastMessage.ID)
}

func TestListAdminConversations_ReturnsAllActive(t *testing.T) {
	convRepo, _, _, _, svc := newTestService()

	convs := []*domain.Conversation{
		{ID: "conv-1", StudentID: "alice", IsActive: true},
		{ID: "conv-2", StudentID: "dave", IsActive: true},
	}
	convRepo.On("FindAllActive").Return(convs, nil)

	responses, err := svc.ListAdminConversations()
	require.NoError(t, err)
	assert.Len(t, responses, 2)
}
