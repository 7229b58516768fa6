package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"

	"github.com/sajib-dev/fixmate/backend/internal/engine"
)

// ContextUserID is the echo context key under which auth middleware stores
// the verified user id.
const ContextUserID = "userID"

// CurrentUserID returns the authenticated user id for the request, or
// engine.ErrUnauthenticated when no identity is present.
func CurrentUserID(c echo.Context) (string, error) {
	uid, ok := c.Get(ContextUserID).(string)
	if !ok || uid == "" {
		return "", engine.ErrUnauthenticated
	}
	return uid, nil
}

// FirebaseAuthMiddleware verifies Firebase ID tokens and stores the UID in
// the request context.
func FirebaseAuthMiddleware(authClient *auth.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			token, err := authClient.VerifyIDToken(context.Background(), idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("Invalid or expired ID token: %v", err))
			}

			c.Set(ContextUserID, token.UID)
			c.Set("firebaseToken", token)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header is missing")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must be in Bearer format")
	}
	return parts[1], nil
}
