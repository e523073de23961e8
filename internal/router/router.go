package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/carelink-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// RootHandler mounts routes outside the /api prefix.
type RootHandler interface {
	RegisterRoutes(gin.IRoutes)
}

type HealthHandler interface {
	RegisterRoutes(gin.IRouter)
}

type MetricsHandler interface {
	RootHandler
	Middleware() gin.HandlerFunc
}

// Handlers groups the route owners by mount point.
type Handlers struct {
	Auth         Handler
	User         Handler
	Clinic       Handler
	Admin        Handler
	Notification Handler
	Live         RootHandler
	Health       HealthHandler
	Metrics      MetricsHandler
}

type RouterConfig struct {
	Mode           string
	RateLimit      bool
	RPS            rate.Limit
	RateBurst      int
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodySize    int64
	MaxUploadSize  int64
}

type Router struct {
	engine   *gin.Engine
	handlers Handlers
}

func NewRouter(handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}
	sizes := middleware.DefaultSizeLimitConfig()
	if config.MaxBodySize > 0 {
		sizes.MaxBodySize = config.MaxBodySize
	}
	if config.MaxUploadSize > 0 {
		sizes.MaxUploadSize = config.MaxUploadSize
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.AllowedOrigins),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(sizes),
	)
	if config.RateLimit {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RPS,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{engine: engine, handlers: handlers}
}

func (r *Router) Setup() {
	h := r.handlers

	if h.Health != nil {
		h.Health.RegisterRoutes(r.engine)
	}
	if h.Metrics != nil {
		h.Metrics.RegisterRoutes(r.engine)
	}
	if h.Live != nil {
		h.Live.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api")

	user := api.Group("/user")
	h.Auth.RegisterRoutes(user)
	h.User.RegisterRoutes(user)

	clinic := api.Group("/clinic")
	h.Auth.RegisterRoutes(clinic)
	h.Clinic.RegisterRoutes(clinic)

	h.Admin.RegisterRoutes(api.Group("/admin"))
	h.Notification.RegisterRoutes(api.Group("/notifications"))
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
