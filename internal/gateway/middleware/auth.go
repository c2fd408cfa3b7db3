package middleware

import (
	"context"
	"strings"

	"codegame/internal/gateway/service"
	pkgerrors "codegame/pkg/errors"
	"codegame/pkg/utils/contextkey"
	"codegame/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ContestantIDKey is the gin context key holding the authenticated contestant.
const ContestantIDKey = "contestant_id"

// ContestantChecker reports whether a contestant belongs to the running contest.
type ContestantChecker func(id string) bool

// AuthMiddleware validates the contestant token and, when known is set, that the
// contestant is still registered in the current contest.
func AuthMiddleware(authService *service.AuthService, known ContestantChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authService == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}

		contestantID, err := authService.Authenticate(extractToken(c.GetHeader("Authorization")))
		if err != nil {
			response.AbortWithError(c, err)
			return
		}
		if known != nil && !known(contestantID) {
			response.AbortWithErrorCode(c, pkgerrors.NotRegistered, "")
			return
		}

		c.Set(ContestantIDKey, contestantID)
		ctx := context.WithValue(c.Request.Context(), contextkey.ContestantID, contestantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ContestantID returns the contestant set by AuthMiddleware.
func ContestantID(c *gin.Context) string {
	return c.GetString(ContestantIDKey)
}

// extractToken accepts both "Bearer <token>" and a bare token.
func extractToken(authHeader string) string {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	if len(parts) == 1 {
		return authHeader
	}
	return ""
}
