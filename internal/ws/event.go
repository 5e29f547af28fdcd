package ws

import "encoding/json"

// Client-to-server events
const (
	EventJoinConversations = "joinConversations"
	EventJoinConversation  = "joinConversation"
	EventTyping            = "typing"
	EventStopTyping        = "stopTyping"
)

// Server-to-client events
const (
	EventJoinedConversation = "joinedConversation"
	EventError              = "error"
	EventUserTyping         = "userTyping"
	EventUserStoppedTyping  = "userStoppedTyping"
)

// Event is the wire envelope for server-to-client pushes
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// clientFrame is the wire envelope for client-to-server requests
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// conversationRef addresses a single conversation in client frames
type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

// ErrorPayload is the payload of a scoped error event. A bad request
// degrades to an error push on the same connection, never a disconnect.
type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinedPayload confirms a single-room join
type JoinedPayload struct {
	ConversationID string `json:"conversationId"`
}

// TypingPayload is relayed to room peers while a user types
type TypingPayload struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
	ConversationID string `json:"conversationId"`
}
