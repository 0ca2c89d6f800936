package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/authz"
	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/store"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	engine   *core.Engine
	auth     core.Authorizer
	versions store.VersionStore
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(engine *core.Engine, auth core.Authorizer, versions store.VersionStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		engine:   engine,
		auth:     auth,
		versions: versions,
		log:      logger,
	}
}

// MemberResponse represents a room member in API responses.
type MemberResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// VersionResponse represents a persisted content version in API responses.
type VersionResponse struct {
	ID         int64           `json:"id"`
	ContentID  string          `json:"content_id"`
	RoomID     string          `json:"room_id"`
	AuthorID   string          `json:"author_id"`
	AuthorName string          `json:"author_name"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  string          `json:"created_at"`
}

// RoomMembers handles listing the live members of a room.
// GET /api/rooms/:id/members
func (h *APIHandlers) RoomMembers(c *gin.Context) {
	uid, ok := requireUserID(c, h.log)
	if !ok {
		return
	}

	roomID := c.Param("id")
	if err := h.auth.AuthorizeRoom(c.Request.Context(), uid, roomID, authz.CapabilityView); err != nil {
		h.writeAuthzError(c, err, roomID)
		return
	}

	members, _ := h.engine.MembersOf(roomID)
	response := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, MemberResponse{UserID: m.UserID, Name: m.DisplayName})
	}
	c.JSON(http.StatusOK, response)
}

// ContentVersions handles listing persisted versions of a content item.
// GET /api/contents/:id/versions?room=<room_id>&limit=<n>
func (h *APIHandlers) ContentVersions(c *gin.Context) {
	uid, ok := requireUserID(c, h.log)
	if !ok {
		return
	}

	contentID := c.Param("id")
	roomID := c.Query("room")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room query parameter is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	if err := h.auth.AuthorizeRoom(c.Request.Context(), uid, roomID, authz.CapabilityView); err != nil {
		h.writeAuthzError(c, err, roomID)
		return
	}

	versions, err := h.versions.ListVersions(c.Request.Context(), contentID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("content_id", contentID).Msg("failed to list content versions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]VersionResponse, 0, len(versions))
	for _, v := range versions {
		response = append(response, VersionResponse{
			ID:         v.ID,
			ContentID:  v.ContentID,
			RoomID:     v.RoomID,
			AuthorID:   v.AuthorID,
			AuthorName: v.AuthorName,
			Payload:    json.RawMessage(v.Payload),
			CreatedAt:  v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, response)
}

// Stats handles reporting live engine counters.
// GET /api/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	if _, ok := requireUserID(c, h.log); !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.Stats())
}

func (h *APIHandlers) writeAuthzError(c *gin.Context, err error, roomID string) {
	switch {
	case errors.Is(err, authz.ErrDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})
	case errors.Is(err, authz.ErrUnavailable):
		h.log.Warn().Err(err).Str("room_id", roomID).Msg("authorization oracle unavailable")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "authorization unavailable"})
	default:
		h.log.Error().Err(err).Str("room_id", roomID).Msg("authorization check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func requireUserID(c *gin.Context, logger *zerolog.Logger) (string, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		logger.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return "", false
	}
	uid, ok := userID.(string)
	if !ok || uid == "" {
		logger.Error().Msg("invalid user_id type in context")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return "", false
	}
	return uid, true
}
