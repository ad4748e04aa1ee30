package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/realtime"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// SplitHandler mounts some routes publicly and others behind authentication.
type SplitHandler interface {
	RegisterRoutes(public, protected *gin.RouterGroup)
}

type Handlers struct {
	Auth        SplitHandler
	Doctor      Handler
	Appointment Handler
	Chat        Handler
	Payment     Handler
	Realtime    *realtime.Handler
	Health      *health.Handler
	Metrics     *prometheus.Handler
}

type RouterConfig struct {
	Production     bool
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
	// RateLimitEnabled turns on the per-IP limiter for /api.
	RateLimitEnabled bool
	CORSConfig       middleware.CORSConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	config   RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.RegisterValidators()

	engine := gin.New()

	timeout := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeout.Duration = config.RequestTimeout
	}

	// Add core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig(config.Production)),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
		middleware.Timeout(timeout),
	)

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		config:   config,
	}
}

func (r *Router) Setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}
	if r.handlers.Realtime != nil {
		r.handlers.Realtime.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api")
	if r.config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	// Public routes
	r.setupPublicRoutes(api, protected)
	r.setupProtectedRoutes(protected)
}

func (r *Router) setupPublicRoutes(public, protected *gin.RouterGroup) {
	if r.handlers.Auth != nil {
		r.handlers.Auth.RegisterRoutes(public, protected)
	}
	if r.handlers.Doctor != nil {
		r.handlers.Doctor.RegisterRoutes(public)
	}
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	for _, h := range []Handler{r.handlers.Appointment, r.handlers.Chat, r.handlers.Payment} {
		if h != nil {
			h.RegisterRoutes(rg)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
