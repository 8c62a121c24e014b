package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/appointment-web/internal/apiclient"
	"github.com/jwalitptl/appointment-web/internal/config"
	"github.com/jwalitptl/appointment-web/internal/handler"
	"github.com/jwalitptl/appointment-web/internal/handler/appointment"
	"github.com/jwalitptl/appointment-web/internal/handler/doctor"
	"github.com/jwalitptl/appointment-web/internal/handler/health"
	"github.com/jwalitptl/appointment-web/internal/handler/patient"
	promhandler "github.com/jwalitptl/appointment-web/internal/handler/prometheus"
	"github.com/jwalitptl/appointment-web/internal/middleware"
	"github.com/jwalitptl/appointment-web/internal/model"
	"github.com/jwalitptl/appointment-web/internal/router"
	"github.com/jwalitptl/appointment-web/internal/service/booking"
	"github.com/jwalitptl/appointment-web/internal/service/listing"
	"github.com/jwalitptl/appointment-web/internal/service/reschedule"
	"github.com/jwalitptl/appointment-web/internal/session"
	"github.com/jwalitptl/appointment-web/pkg/circuitbreaker"
	"github.com/jwalitptl/appointment-web/pkg/logger"
	"github.com/jwalitptl/appointment-web/pkg/metrics"
	"github.com/jwalitptl/appointment-web/pkg/validator"
)

// sessionStore is what the server needs from either session backend.
type sessionStore interface {
	session.Store
	health.Pinger
}

func serve(parent context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	lg := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	lg.SetGlobal()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(cfg.Metrics.Namespace, registry)

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:        "appointment-api",
		MaxFailures: cfg.API.BreakerFailures,
		Timeout:     cfg.API.BreakerTimeout,
		IsFailure:   apiclient.BreakerFailure,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Circuit breaker state changed")
		},
	})
	client, err := apiclient.New(apiclient.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Breaker: breaker,
		Metrics: m,
		Logger:  lg,
	})
	if err != nil {
		return err
	}

	// Initialize services
	now := time.Now
	v := validator.New(validator.WithClock(now), validator.WithLocation(loc), validator.WithSlots(model.Slots))
	bookingSvc := booking.NewService(client, v, m, lg)
	listingSvc := listing.NewService(client, client, cfg.Lookup.Concurrency, m, lg)
	rescheduleSvc := reschedule.NewService(client, m, lg)

	// Initialize handlers
	base := handler.NewBase(store, m)
	patientHandler := patient.NewHandler(base, client, bookingSvc, listingSvc, rescheduleSvc, booking.NewPicker(now, loc))
	doctorHandler := doctor.NewHandler(base, client, listingSvc)
	appointmentHandler := appointment.NewHandler(base, client, listingSvc)

	// Setup router
	r, err := router.NewRouter(router.RouterConfig{
		Mode:        cfg.Server.Mode,
		ServiceName: "appointment-web",
		Sessions:    store,
		Session: middleware.SessionConfig{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure,
		},
		RateLimit: middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MetricsPath:  cfg.Metrics.Path,
	},
		health.NewHandler(store),
		promhandler.New(registry, m),
		patientHandler,
		doctorHandler,
		appointmentHandler,
	)
	if err != nil {
		return err
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}

func newSessionStore(ctx context.Context, cfg *config.Config) (sessionStore, func(), error) {
	if cfg.Session.Store != config.SessionStoreRedis {
		return session.NewMemoryStore(cfg.Session.TTL, 10*time.Minute), func() {}, nil
	}

	store, err := session.NewRedisStore(ctx, session.RedisConfig{
		URL:          cfg.Redis.URL,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		KeyPrefix:    cfg.Redis.KeyPrefix,
	}, cfg.Session.TTL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis")
		}
	}, nil
}
