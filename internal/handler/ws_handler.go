package handler

import (
	"net/http"
	"strings"

	"github.com/abroadly/abroadly-backend/internal/repository"
	"github.com/abroadly/abroadly-backend/internal/ws"
	"github.com/abroadly/abroadly-backend/pkg/jwt"
	"github.com/abroadly/abroadly-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub            *ws.Hub
	gateway        *ws.Gateway
	jwtManager     *jwt.Manager
	userRepo       repository.UserRepository
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, gateway *ws.Gateway, jwtManager *jwt.Manager, userRepo repository.UserRepository, allowedOrigins string) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		gateway:        gateway,
		jwtManager:     jwtManager,
		userRepo:       userRepo,
		allowedOrigins: parseOrigins(allowedOrigins),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}

	// If no allowed origins configured, allow all (development mode)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// Connect handles GET /ws/chat — WebSocket upgrade.
// The credential is checked once here; a failure rejects this
// connection attempt only, the caller reconnects with a fresh token.
// @Summary Real-time chat WebSocket
// @Tags chat
// @Router /ws/chat [get]
func (h *WSHandler) Connect(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	user, err := h.userRepo.FindByID(claims.UserID)
	if err != nil || !user.IsVerified {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	logger.GetLogger().Info().
		Str("user_id", user.ID).
		Str("role", user.Role).
		Msg("ws connected")

	client := ws.NewClient(h.hub, h.gateway, conn, user.ToPublic())
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// bearerToken extracts the credential from the Authorization header or,
// for browser WebSocket clients that cannot set headers, the token
// query parameter
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
	}
	return c.Query("token")
}
