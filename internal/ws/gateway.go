package ws

import (
	"encoding/json"
	"errors"

	"github.com/abroadly/abroadly-backend/internal/domain"
	"github.com/abroadly/abroadly-backend/pkg/logger"
	"gorm.io/gorm"
)

// ConversationDirectory is the slice of the conversation store the
// gateway needs for room joins. Satisfied by
// repository.ConversationRepository.
type ConversationDirectory interface {
	FindByID(id string) (*domain.Conversation, error)
	FindVisible(userID, role string) ([]*domain.Conversation, error)
}

// Gateway handles client-originated events on authenticated
// connections: room joins and typing relays.
type Gateway struct {
	hub           *Hub
	conversations ConversationDirectory
}

// NewGateway creates a new Gateway
func NewGateway(hub *Hub, conversations ConversationDirectory) *Gateway {
	return &Gateway{
		hub:           hub,
		conversations: conversations,
	}
}

// Dispatch routes one client frame. Unknown events are ignored.
func (g *Gateway) Dispatch(c *Client, frame *clientFrame) {
	switch frame.Event {
	case EventJoinConversations:
		g.joinConversations(c)
	case EventJoinConversation:
		g.joinConversation(c, frame.Data)
	case EventTyping:
		g.typing(c, frame.Data)
	case EventStopTyping:
		g.stopTyping(c, frame.Data)
	}
}

// joinConversations joins every room visible to this identity.
// Best-effort bulk join: errors are logged, never surfaced.
func (g *Gateway) joinConversations(c *Client) {
	convs, err := g.conversations.FindVisible(c.user.ID, c.user.Role)
	if err != nil {
		logger.GetLogger().Error().Err(err).
			Str("user_id", c.user.ID).
			Msg("failed to join conversations")
		return
	}
	for _, conv := range convs {
		g.hub.JoinRoom(c, conv.ID)
	}
}

// joinConversation joins a single room after an access check. Failures
// degrade to a scoped error event; the connection stays up.
func (g *Gateway) joinConversation(c *Client, data json.RawMessage) {
	id, ok := decodeConversationID(data)
	if !ok {
		c.emit(EventError, &ErrorPayload{Message: "conversationId is required"})
		return
	}

	conv, err := g.conversations.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.emit(EventError, &ErrorPayload{Message: "Conversation not found"})
		} else {
			c.emit(EventError, &ErrorPayload{Message: "Error joining conversation"})
		}
		return
	}

	if !conv.AccessibleBy(c.user.ID, c.user.Role) {
		c.emit(EventError, &ErrorPayload{Message: "Access denied"})
		return
	}

	g.hub.JoinRoom(c, conv.ID)
	c.emit(EventJoinedConversation, &JoinedPayload{ConversationID: conv.ID})
}

// typing relays a typing indicator to the other room members. No
// persistence and no access check beyond room membership.
func (g *Gateway) typing(c *Client, data json.RawMessage) {
	id, ok := decodeConversationID(data)
	if !ok {
		return
	}
	g.hub.Relay(id, EventUserTyping, c, &TypingPayload{
		UserID:         c.user.ID,
		UserName:       c.user.Name,
		ConversationID: id,
	})
}

// stopTyping relays the end of a typing indicator to room peers
func (g *Gateway) stopTyping(c *Client, data json.RawMessage) {
	id, ok := decodeConversationID(data)
	if !ok {
		return
	}
	g.hub.Relay(id, EventUserStoppedTyping, c, &TypingPayload{
		UserID:         c.user.ID,
		ConversationID: id,
	})
}

// decodeConversationID accepts both {"conversationId": "..."} objects
// and a bare string id, the two shapes clients send
func decodeConversationID(data json.RawMessage) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var ref conversationRef
	if err := json.Unmarshal(data, &ref); err == nil && ref.ConversationID != "" {
		return ref.ConversationID, true
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, true
	}
	return "", false
}
