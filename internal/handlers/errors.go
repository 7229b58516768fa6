package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
	"github.com/sajib-dev/fixmate/backend/internal/models"
)

// httpError maps engine errors onto echo HTTP errors.
func httpError(err error) error {
	var decodeErr *models.DecodeError
	switch {
	case errors.Is(err, engine.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, engine.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, "Not permitted to perform this operation")
	case errors.Is(err, engine.ErrIllegalTransition):
		return echo.NewHTTPError(http.StatusConflict, "Illegal bid status transition")
	case errors.Is(err, engine.ErrDuplicateBid):
		return echo.NewHTTPError(http.StatusConflict, "A pending bid for this job already exists")
	case errors.Is(err, engine.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, "Message text must not be empty")
	case errors.Is(err, engine.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.As(err, &decodeErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, engine.ErrTransientIO):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Storage temporarily unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
