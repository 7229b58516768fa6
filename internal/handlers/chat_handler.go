package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/middleware"
	"github.com/sajib-dev/fixmate/backend/internal/models"
	"github.com/sajib-dev/fixmate/backend/internal/repositories"
)

// ChatHandler handles conversation and message HTTP requests
type ChatHandler struct {
	coordinator    *engine.SyncCoordinator
	userRepository repositories.UserRepository
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(coordinator *engine.SyncCoordinator, userRepo repositories.UserRepository) *ChatHandler {
	return &ChatHandler{coordinator: coordinator, userRepository: userRepo}
}

// RegisterChatRoutes registers chat routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/conversations", h.OpenConversation)
	g.GET("/conversations", h.GetConversations)
	g.GET("/conversations/:id/messages", h.GetMessages)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.PUT("/conversations/:id/read", h.MarkRead)
	g.DELETE("/conversations/:id/messages/:message_id", h.DeleteMessage)
}

// OpenConversationRequest defines the request body for opening a conversation
type OpenConversationRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	BidID      string `json:"bid_id,omitempty"`
}

// OpenConversation resolves or creates the conversation between the caller
// and the receiver. When a bid id is supplied, the conversation is linked
// to the bid so both parties can reach the thread from the negotiation.
func (h *ChatHandler) OpenConversation(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req OpenConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	conv, err := h.coordinator.Conversations().EnsureConversation(uid, req.ReceiverID)
	if err != nil {
		return httpError(err)
	}

	if req.BidID != "" {
		bid, err := h.coordinator.Bids().Get(req.BidID)
		if err != nil {
			return httpError(err)
		}
		if !conv.HasParticipant(bid.ContractorID) || !conv.HasParticipant(bid.HomeownerID) {
			return echo.NewHTTPError(http.StatusForbidden, "Conversation does not match the bid's parties")
		}
		if err := h.coordinator.Bids().AttachConversation(c.Request().Context(), req.BidID, conv.ID); err != nil {
			return httpError(err)
		}
	}

	h.resolveDisplayName(&conv, uid)
	return c.JSON(http.StatusOK, conv)
}

// GetConversations returns the caller's conversations, most recent first
func (h *ChatHandler) GetConversations(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	conversations := h.coordinator.Conversations().Conversations(uid)
	for i := range conversations {
		h.resolveDisplayName(&conversations[i], uid)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"conversations": conversations}})
}

// GetMessages returns the ordered message sequence of a conversation
func (h *ChatHandler) GetMessages(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	conversationID := c.Param("id")
	conv, err := h.coordinator.Conversations().Get(conversationID)
	if err != nil {
		return httpError(err)
	}
	if !conv.HasParticipant(uid) {
		return echo.NewHTTPError(http.StatusForbidden, "Not a participant of this conversation")
	}
	messages := h.coordinator.Conversations().Messages(conversationID)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"messages": messages}})
}

// SendMessage appends a message to the conversation
func (h *ChatHandler) SendMessage(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req models.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	msg, err := h.coordinator.Conversations().SendMessage(c.Request().Context(), c.Param("id"), uid, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkRead marks every message from the other participant as read
func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.coordinator.Conversations().MarkRead(c.Request().Context(), c.Param("id"), uid); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// DeleteMessage removes one of the caller's own messages
func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	conversationID := c.Param("id")
	messageID := c.Param("message_id")

	conv, err := h.coordinator.Conversations().Get(conversationID)
	if err != nil {
		return httpError(err)
	}
	if !conv.HasParticipant(uid) {
		return echo.NewHTTPError(http.StatusForbidden, "Not a participant of this conversation")
	}
	for _, msg := range h.coordinator.Conversations().Messages(conversationID) {
		if msg.ID == messageID && msg.SenderID != uid {
			return echo.NewHTTPError(http.StatusForbidden, "Only own messages can be deleted")
		}
	}

	if err := h.coordinator.Conversations().DeleteMessage(c.Request().Context(), messageID, conversationID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// resolveDisplayName fills in the other participant's name for the viewer.
// Best effort: an unknown user just leaves the name empty.
func (h *ChatHandler) resolveDisplayName(conv *models.Conversation, viewerID string) {
	other := conv.Other(viewerID)
	if other == "" || h.userRepository == nil {
		return
	}
	if user, err := h.userRepository.GetUserByFirebaseUID(other); err == nil {
		conv.DisplayName = user.Name
	}
}
