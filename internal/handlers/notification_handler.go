package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/middleware"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	coordinator *engine.SyncCoordinator
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(coordinator *engine.SyncCoordinator) *NotificationHandler {
	return &NotificationHandler{coordinator: coordinator}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetPending)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/jobs", h.GetJobFeed)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.GET("/snapshot", h.GetSnapshot)
}

// GetPending returns the caller's merged notification feed: bid
// notifications plus unread-conversation indicators, newest first
func (h *NotificationHandler) GetPending(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	pending := h.coordinator.Notifications().PendingNotifications(uid)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"notifications": pending}})
}

// GetUnreadCount returns the caller's unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	count := h.coordinator.Notifications().UnreadCount(uid)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// GetJobFeed returns the broadcast feed of job-posted notifications
func (h *NotificationHandler) GetJobFeed(c echo.Context) error {
	if _, err := middleware.CurrentUserID(c); err != nil {
		return httpError(err)
	}
	feed := h.coordinator.Notifications().JobFeed()
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"notifications": feed}})
}

// MarkAsRead marks one of the caller's bid notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	if err := h.coordinator.Notifications().MarkRead(c.Request().Context(), c.Param("id"), uid); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// GetSnapshot returns the coordinator's full read-only view model
func (h *NotificationHandler) GetSnapshot(c echo.Context) error {
	if _, err := middleware.CurrentUserID(c); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.coordinator.Snapshot())
}
