package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/attendly/beacon-service/internal/handlers"
	"github.com/attendly/beacon-service/internal/repository"
	"github.com/attendly/beacon-service/internal/service"
	"github.com/attendly/beacon-service/pkg/config"
	"github.com/attendly/beacon-service/pkg/database"
	"github.com/attendly/beacon-service/pkg/events"
	"github.com/attendly/beacon-service/pkg/logger"
	mw "github.com/attendly/beacon-service/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Redis backs the advisory detection throttle only; storage keeps the
	// uniqueness guarantee, so a missing Redis degrades, it doesn't stop us.
	var throttle repository.DetectionThrottle
	if opts, err := redis.ParseURL(cfg.Redis.URL); err != nil {
		logger.Warn("Invalid Redis URL, detection throttle disabled", "error", err)
	} else {
		if cfg.Redis.Password != "" {
			opts.Password = cfg.Redis.Password
		}
		opts.DB = cfg.Redis.DB
		throttle = repository.NewDetectionThrottle(redis.NewClient(opts), cfg.Beacon.DuplicateWindow)
	}

	// Initialize repositories
	sessionRepo := repository.NewSessionRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)
	membershipRepo := repository.NewMembershipRepository(pool)
	orgRepo := repository.NewOrgRepository(pool)

	// Initialize services
	sessionService := service.NewSessionService(sessionRepo, orgRepo, membershipRepo, attendanceRepo, eventBus)
	attendanceService := service.NewAttendanceService(sessionRepo, orgRepo, membershipRepo, attendanceRepo, throttle, eventBus)

	// Initialize handlers
	h := handlers.New(sessionService, attendanceService, cfg.Auth.JWTSecret)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("attendance"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Routes
	r.Route("/", func(r chi.Router) {
		r.Use(h.RequireJWT)

		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions/resolve", h.ResolveSession)
		r.Get("/sessions/{id}/attendance", h.ListSessionAttendance)
		r.Post("/attendance", h.SubmitAttendance)
		r.Get("/orgs/{code}", h.GetOrg)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down attendance service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Attendance service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting attendance service", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Attendance service error", "error", err)
		os.Exit(1)
	}
}
