package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/auth"
	"github.com/cospace/cospace-server/internal/config"
	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/store"
)

// NewServer builds an HTTP server with the WebSocket endpoint and REST routes.
func NewServer(engine *core.Engine, authorizer core.Authorizer, versions store.VersionStore, jwtCfg *auth.Config, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", healthHandler)

	wsHandler := NewWSHandler(engine, jwtCfg, logger)
	router.GET("/ws", wsHandler.Handle)

	apiHandlers := NewAPIHandlers(engine, authorizer, versions, logger)
	api := router.Group("/api")
	api.Use(AuthMiddleware(jwtCfg, logger), LoggerMiddleware(logger))
	{
		api.GET("/rooms/:id/members", apiHandlers.RoomMembers)
		api.GET("/contents/:id/versions", apiHandlers.ContentVersions)
		api.GET("/stats", apiHandlers.Stats)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
