package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"school-onboarding.backend/internal/app"
	"school-onboarding.backend/internal/config"
	"school-onboarding.backend/internal/infrastructure/datasources/postgres"
	"school-onboarding.backend/internal/infrastructure/metrics"
	"school-onboarding.backend/internal/infrastructure/migrations"
	"school-onboarding.backend/internal/interfaces/http/handlers"
	"school-onboarding.backend/internal/interfaces/http/middleware"
	"school-onboarding.backend/pkg/logger"
	"school-onboarding.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv      = godotenv.Load
	loadCfg         = config.Load
	initLog         = logger.Init
	initRedis       = redis.Init
	openSQL         = postgres.NewConnection
	openGorm        = postgres.OpenGorm
	newSessionStore = redis.NewSessionStore
	registerer      prometheus.Registerer = prometheus.DefaultRegisterer
	migrateUp       = func(ctx context.Context, db *sql.DB) error {
		m, err := migrations.NewMigrator(db)
		if err != nil {
			return err
		}
		return m.Up(ctx)
	}
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	// Load .env file
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	defer logger.Sync()
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redis.Close()
	logger.Info(context.Background(), "Redis initialized")

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	sqlDB, err := openSQL(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrateUp(context.Background(), sqlDB); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	db, err := openGorm(sqlDB, cfg.Server.Env)
	if err != nil {
		return err
	}
	logger.Info(context.Background(), "Connected to PostgreSQL")

	sessionStore, err := newSessionStore(cfg.Security.SessionEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	c := app.NewContainer(cfg, db, app.Options{
		Sessions: sessionStore,
		Metrics:  metrics.New(registerer),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go c.Reconcile.Start(ctx)
	defer c.Reconcile.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newRouter(cfg, db, c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Onboarding backend starting", zap.String("port", cfg.Server.Port))
		errCh <- runServer(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Config, db *gorm.DB, c *app.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r, db)
	registerMetricsRoute(r)
	registerAPIV1Routes(r, routeDeps{
		authHandler:     handlers.NewAuthHandler(c.Onboarding),
		profileHandler:  handlers.NewProfileHandler(c.Onboarding),
		approvalHandler: handlers.NewApprovalHandler(c.Approvals, c.Bulk),
		adminHandler:    handlers.NewAdminHandler(c.Approvals, c.Onboarding),
		authMiddleware:  middleware.AuthMiddleware(c.Onboarding),
		idempotencyTTL:  cfg.Security.IdempotencyTTL,
	})
	return r
}
