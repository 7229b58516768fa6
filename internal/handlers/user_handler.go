package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/middleware"
	"github.com/sajib-dev/fixmate/backend/internal/repositories"
)

// UserHandler handles user profile HTTP requests
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterProfileRoutes registers user profile routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/me", h.GetMe)
	g.PUT("/users/me", h.UpdateMe)
	g.GET("/users/:uid", h.GetUser)
}

// GetMe returns the authenticated user's profile
func (h *UserHandler) GetMe(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	user, err := h.userRepository.GetUserByFirebaseUID(uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateMe updates the authenticated user's display name and avatar
func (h *UserHandler) UpdateMe(c echo.Context) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req struct {
		Name      string `json:"name" validate:"omitempty,min=2,max=50"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByFirebaseUID(uid)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if err := h.userRepository.UpdateUser(user); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update user")
	}
	return c.JSON(http.StatusOK, user)
}

// GetUser returns the public projection of another user
func (h *UserHandler) GetUser(c echo.Context) error {
	if _, err := middleware.CurrentUserID(c); err != nil {
		return httpError(err)
	}
	user, err := h.userRepository.GetUserByFirebaseUID(c.Param("uid"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user.ToCompact())
}
