package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/aerocall/backend/internal/analytics"
	"github.com/aerocall/backend/internal/api"
	"github.com/aerocall/backend/internal/auth"
	"github.com/aerocall/backend/internal/config"
	"github.com/aerocall/backend/internal/dialer"
	"github.com/aerocall/backend/internal/insights"
	"github.com/aerocall/backend/internal/livecall"
	"github.com/aerocall/backend/internal/metrics"
	"github.com/aerocall/backend/internal/provider"
	"github.com/aerocall/backend/internal/provider/ringcentral"
	"github.com/aerocall/backend/internal/provider/twilio"
	"github.com/aerocall/backend/internal/storage"
	"github.com/aerocall/backend/internal/websocket"
	"github.com/aerocall/backend/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("call_provider", cfg.CallProvider).
		Bool("ai_enabled", cfg.AIEnabled()).
		Msg("starting AEROCALL backend server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// User directory
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize user directory")
	}

	// Telephony provider
	prov := newProvider(cfg, log.Logger)

	analyticsService := analytics.NewService(prov, analytics.Options{
		Window:      cfg.AnalyticsWindow,
		MaxRecords:  cfg.AnalyticsMaxRecords,
		RecentLimit: cfg.RecentCallsLimit,
		Timeout:     cfg.ProviderTimeout,
		Location:    cfg.ReportLocation,
	}, metrics.Get(), log.Logger)

	// Live transcripts
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	sessions := livecall.NewManager(hub, cfg.CaptionInterval, log.Logger)

	dialerService := dialer.NewService(prov, store, sessions, log.Logger)

	// AI insights
	var model insights.Model
	if cfg.AIEnabled() {
		vertex, err := insights.NewVertexModel(ctx, cfg.AI.ProjectID, cfg.AI.Location, cfg.AI.Model)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize Vertex AI, AI features disabled")
		} else {
			defer vertex.Close()
			model = vertex
		}
	}
	var recordings provider.RecordingFetcher
	if rf, ok := prov.(provider.RecordingFetcher); ok {
		recordings = rf
	}
	insightsService := insights.NewService(model, recordings, log.Logger)

	r := newRouter(cfg, handlers{
		analytics: api.NewAnalyticsHandler(analyticsService, log.Logger),
		dialer:    api.NewDialerHandler(dialerService, log.Logger),
		insights:  api.NewInsightsHandler(insightsService, log.Logger),
		users:     api.NewUsersHandler(store, log.Logger),
		admin:     api.NewAdminHandler(store, log.Logger),
		ws:        websocket.NewHandler(hub, cfg, log.Logger),
	}, log.Logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // call summaries transcribe audio
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	cancel()
	sessions.Shutdown()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// newProvider builds the configured telephony provider. Missing credentials
// are not fatal: the provider reports itself unavailable per request.
func newProvider(cfg *config.Config, logger zerolog.Logger) provider.Provider {
	switch cfg.CallProvider {
	case config.ProviderTwilio:
		tw := twilio.Config{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			PhoneNumber: cfg.Twilio.PhoneNumber,
			Timeout:     cfg.ProviderTimeout,
		}
		if !tw.Configured() {
			logger.Warn().Msg("Twilio credentials missing, calling integration disabled")
		}
		return twilio.NewClient(tw, logger)
	default:
		rc := ringcentral.Config{
			ServerURL:    cfg.RingCentral.ServerURL,
			ClientID:     cfg.RingCentral.ClientID,
			ClientSecret: cfg.RingCentral.ClientSecret,
			JWT:          cfg.RingCentral.AdminJWT,
			Timeout:      cfg.ProviderTimeout,
		}
		if !rc.Configured() {
			logger.Warn().Msg("RingCentral credentials missing, calling integration disabled")
		}
		return ringcentral.NewClient(rc, nil, logger)
	}
}

type handlers struct {
	analytics *api.AnalyticsHandler
	dialer    *api.DialerHandler
	insights  *api.InsightsHandler
	users     *api.UsersHandler
	admin     *api.AdminHandler
	ws        http.Handler
}

func newRouter(cfg *config.Config, h handlers, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Register public routes (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())

	// Call-log reads
	r.Get("/api/analytics", h.analytics.GetAnalytics)
	r.Get("/api/calls/recent", h.analytics.GetRecentCalls)
	r.Get("/api/voicemails", h.analytics.GetVoicemails)

	// Add auth middleware for protected routes
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(logger))

		r.Post("/api/calls/ringout", h.dialer.RingOut)
		r.Post("/api/calls/{callId}/summary", h.insights.SummarizeCall)
		r.Post("/api/insights/call-logs", h.insights.AnalyzeCallLogs)
		r.Get("/api/me", h.users.GetMe)
		r.Get("/api/team", h.users.GetTeam)
		r.Get("/ws/calls/{sessionId}", h.ws.ServeHTTP)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(api.RequireAdmin)
			r.Get("/users/{uid}", h.admin.GetUser)
			r.Put("/users/{uid}", h.admin.PutUser)
		})
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"aerocall-backend"}`)
}
