package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing the user id.
	ContextKeyUserID = "user_id"
	// ContextKeyDisplayName is the context key for the display name.
	ContextKeyDisplayName = "display_name"
)

// ErrorResponse is the JSON error body for REST endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AuthMiddleware validates the bearer token and stores the identity in
// the request context.
func AuthMiddleware(jwtCfg *auth.Config, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			logger.Debug().Msg("missing bearer token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(jwtCfg, token)
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyDisplayName, claims.DisplayName)
		c.Next()
	}
}

// LoggerMiddleware logs HTTP requests after they complete.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// bearerToken extracts the credential from the Authorization header or,
// for websocket dials that can't set headers, the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
