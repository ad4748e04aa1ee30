// Package server assembles the HTTP API from configuration and a store.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/email"
	authhandler "github.com/jwalitptl/clinic-api/internal/handler/auth"
	appointmenthandler "github.com/jwalitptl/clinic-api/internal/handler/appointment"
	chathandler "github.com/jwalitptl/clinic-api/internal/handler/chat"
	doctorhandler "github.com/jwalitptl/clinic-api/internal/handler/doctor"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	paymenthandler "github.com/jwalitptl/clinic-api/internal/handler/payment"
	"github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/realtime"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/router"
	"github.com/jwalitptl/clinic-api/internal/service/appointment"
	authservice "github.com/jwalitptl/clinic-api/internal/service/auth"
	"github.com/jwalitptl/clinic-api/internal/service/chat"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
	"github.com/jwalitptl/clinic-api/internal/service/payment"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/retry"
	"github.com/jwalitptl/clinic-api/pkg/security"
)

type Deps struct {
	Store *repository.Store
	// Broker enables cross-instance realtime delivery; nil keeps it local.
	Broker  messaging.Broker
	DBCheck health.Checker
	Email   email.Service
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	hub    *realtime.Hub
	relay  *realtime.Relay
	log    *logger.Logger
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New("clinic")
	}
	mailer := deps.Email
	if mailer == nil {
		mailer = email.NewService(cfg.SMTP)
	}

	hub := realtime.NewHub(m, log)
	var publisher realtime.Publisher = hub
	var relay *realtime.Relay
	if deps.Broker != nil {
		relay = realtime.NewRelay(deps.Broker, hub, cfg.Redis.Channel, retry.DefaultPolicy(), log)
		publisher = relay
	}

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry)
	authSvc := authservice.NewService(deps.Store.Users, jwtSvc, security.NewBcryptHasher(cfg.Auth.BcryptCost), mailer,
		authservice.Config{
			AllowAdminSignup: cfg.Auth.AllowAdminSignup,
			IdentityCacheTTL: cfg.Auth.IdentityCacheTTL,
		}, log)
	doctorSvc := doctor.NewService(deps.Store.Users)
	lifecycle := appointment.NewService(deps.Store.Appointments, deps.Store.Users, m, log)
	chatSvc := chat.NewService(lifecycle, deps.Store.Messages, publisher, m, log)
	paymentSvc := payment.NewService(lifecycle, deps.Store.Payments, mailer, payment.Config{
		ClientID: cfg.Payment.ClientID,
		APIKey:   cfg.Payment.APIKey,
	}, m, log)

	metricsHandler, err := prometheus.New(m)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	checks := map[string]health.Checker{"database": deps.DBCheck}
	if deps.Broker != nil {
		checks["redis"] = deps.Broker.Ping
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	if len(cfg.CORS.AllowedMethods) > 0 {
		cors.AllowMethods = cfg.CORS.AllowedMethods
	}
	if len(cfg.CORS.AllowedHeaders) > 0 {
		cors.AllowHeaders = cfg.CORS.AllowedHeaders
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), router.Handlers{
		Auth:        authhandler.NewHandler(authSvc),
		Doctor:      doctorhandler.NewHandler(doctorSvc),
		Appointment: appointmenthandler.NewHandler(lifecycle),
		Chat:        chathandler.NewHandler(chatSvc),
		Payment:     paymenthandler.NewHandler(paymentSvc),
		Realtime: realtime.NewHandler(hub, realtime.HandlerConfig{
			SendBuffer:     cfg.Realtime.SendBuffer,
			PingInterval:   cfg.Realtime.PingInterval,
			WriteWait:      cfg.Realtime.WriteWait,
			MaxMessageSize: cfg.Realtime.MaxMessageSize,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		}, log),
		Health:  health.NewHandler(checks),
		Metrics: metricsHandler,
	}, router.RouterConfig{
		Production:       cfg.Server.IsProduction(),
		RequestTimeout:   cfg.Server.RequestTimeout,
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		CORSConfig:       cors,
	})
	r.Setup()

	return &Server{
		cfg:    cfg,
		engine: r.Engine(),
		hub:    hub,
		relay:  relay,
		log:    log,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.relay != nil {
		go func() {
			if err := s.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error(err, "realtime relay stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:        s.engine,
		ReadTimeout:    s.cfg.Server.ReadTimeout,
		WriteTimeout:   s.cfg.Server.WriteTimeout,
		MaxHeaderBytes: s.cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info("server exited properly")
	return nil
}
