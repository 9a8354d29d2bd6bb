package interview

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"interview-backend/internal/shared/telemetry"
)

// Handler upgrades interview requests to websockets and runs a Session on each.
type Handler struct {
	Config Config
	Deps   Deps

	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// NewHandler constructs a Handler. Sessions stop when ctx is cancelled.
func NewHandler(ctx context.Context, cfg Config, deps Deps, allowedOrigins []string) *Handler {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	origins := make(map[string]struct{})
	for _, o := range allowedOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}
	return &Handler{
		Config:  cfg,
		Deps:    deps,
		baseCtx: ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes attaches the interview websocket route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/interviews/:id/ws", h.serveSession)
}

func (h *Handler) serveSession(c *gin.Context) {
	attemptID := c.Param("id")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("interview.upgrade_failed", map[string]any{
			"attempt_id": attemptID,
			"error":      err,
		})
		return
	}

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()
	stop := context.AfterFunc(c.Request.Context(), cancel)
	defer stop()

	cfg := h.Config
	cfg.Voice = voiceRequested(c.Query("voice"))
	NewSession(attemptID, NewWebsocketChannel(conn), cfg, h.Deps).Run(ctx)
}

func voiceRequested(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
