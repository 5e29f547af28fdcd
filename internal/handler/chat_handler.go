package handler

import (
	"net/http"
	"strconv"

	"github.com/abroadly/abroadly-backend/internal/common"
	"github.com/abroadly/abroadly-backend/internal/domain"
	"github.com/abroadly/abroadly-backend/internal/middleware"
	"github.com/abroadly/abroadly-backend/internal/service"
	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	service service.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service service.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// SendMessage handles POST /chat/messages
// @Summary Send a chat message
// @Tags chat
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "Message body, conversation_id optional"
// @Success 201 {object} common.APIResponse
// @Router /chat/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	msg, conv, err := h.service.SendMessage(userID, middleware.GetRole(c), &req)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: gin.H{
		"message":      msg,
		"conversation": conv,
	}})
}

// GetConversations handles GET /chat/conversations
// @Summary List the caller's conversations
// @Tags chat
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /chat/conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	conversations, err := h.service.ListConversations(userID, middleware.GetRole(c))
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"conversations": conversations}})
}

// GetAdminConversations handles GET /chat/admin/conversations
// @Summary List all active conversations for triage
// @Tags chat
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /chat/admin/conversations [get]
func (h *ChatHandler) GetAdminConversations(c *gin.Context) {
	conversations, err := h.service.ListAdminConversations()
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"conversations": conversations}})
}

// GetMessages handles GET /chat/conversations/:id/messages
// @Summary List one page of a conversation, oldest first
// @Tags chat
// @Produce json
// @Param id path string true "Conversation ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} common.APIResponse
// @Router /chat/conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	conversationID := c.Param("id")
	if conversationID == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "Conversation ID is required", nil)
		return
	}

	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	messages, meta, err := h.service.ListMessages(userID, middleware.GetRole(c), conversationID, page, limit)
	if err != nil {
		common.FailFromError(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"messages": messages}, Meta: meta})
}
