// Package live upgrades clients onto the realtime notification channel.
package live

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/carelink-api/pkg/auth"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
	"github.com/jwalitptl/carelink-api/pkg/live"
	"github.com/jwalitptl/carelink-api/pkg/logger"
)

type TokenVerifier interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Config controls who may open a live session. With a token (query
// "token" or a bearer header) the session is bound to the token's
// account. RequireToken turns away clients that send none.
type Config struct {
	Origins      []string
	Tokens       TokenVerifier
	RequireToken bool
}

type Handler struct {
	registry    *live.Registry
	tokens      TokenVerifier
	require     bool
	upgrader    websocket.Upgrader
	connections prometheus.Gauge
	logger      *logger.Logger
}

// NewHandler accepts upgrades from the configured origins, or from any
// origin when the list is empty or contains "*".
func NewHandler(registry *live.Registry, cfg Config, connections prometheus.Gauge, logger *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		tokens:   cfg.Tokens,
		require:  cfg.RequireToken,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Origins),
		},
		connections: connections,
		logger:      logger,
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(allowed) == 0 || origin == "" || allowed[origin]
	}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.Serve)
}

// Serve blocks for the lifetime of the connection.
func (h *Handler) Serve(c *gin.Context) {
	identity, ok := h.identify(c)
	if !ok {
		return
	}

	socket, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "error", err.Error(), "client_ip", c.ClientIP())
		return
	}

	client := live.NewClient(socket)
	if identity != "" {
		client.Bind(identity)
	}
	h.connections.Inc()
	defer h.connections.Dec()

	h.logger.Debug("Live client connected", "client_id", client.ID())
	client.Run(h.registry, h.logger)
	h.logger.Debug("Live client disconnected", "client_id", client.ID())
}

// identify resolves the caller's token, if any. It writes the 401 itself
// and reports false when the upgrade must not go ahead.
func (h *Handler) identify(c *gin.Context) (string, bool) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
	}

	if token == "" || h.tokens == nil {
		if h.require {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "Authorization token missing")
			return "", false
		}
		return "", true
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil || claims.ID == "" {
		httputil.RespondWithStatus(c, http.StatusUnauthorized, "Invalid or expired token")
		return "", false
	}
	return claims.ID, true
}
