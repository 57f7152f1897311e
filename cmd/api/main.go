package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drawza/internal/core/services"
	httphandlers "drawza/internal/handlers/http"
	infrabackup "drawza/internal/infrastructure/backup"
	"drawza/internal/infrastructure/middleware"
	"drawza/internal/infrastructure/reliability"
	"drawza/internal/infrastructure/repositories"
	"drawza/pkg/backup"
	"drawza/pkg/circuitbreaker"
	"drawza/pkg/config"
	"drawza/pkg/distributed"
	"drawza/pkg/logger"
	"drawza/pkg/retry"
	"drawza/pkg/tracing"
	"drawza/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// version tags backup snapshots so a restore can tell which build wrote them.
const version = "1.0.0"

func main() {
	startTime := time.Now()

	// Missing .env is fine; environment overrides still apply.
	_ = godotenv.Load()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/drawza/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(tracing.Config{
			Enabled:     true,
			ServiceName: cfg.Tracing.ServiceName + "-api",
			JaegerURL:   cfg.Tracing.JaegerURL,
			Environment: cfg.Tracing.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			log.Fatalw("failed to initialize tracing", "error", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			tp.Shutdown(ctx)
		}()
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	boardRepo := repoFactory.CreateBoardRepository()
	boardService := reliability.NewBoardServiceWrapper(
		services.NewBoardService(boardRepo, cfg.Board.MaxElements, log),
		retry.DefaultConfig(),
		circuitbreaker.DefaultConfig(),
		log,
	)
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	boardHandler := httphandlers.NewBoardHandler(boardService, zapLogger)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler.SetupRoutes(router)
	boardHandler.SetupRoutes(router, authService)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    utils.FormatDuration(time.Since(startTime)),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(503, gin.H{
				"status":    "not_ready",
				"timestamp": time.Now(),
				"error":     err.Error(),
			})
			return
		}
		c.JSON(200, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	var backupScheduler *infrabackup.Scheduler
	if cfg.Backup.Enabled {
		storage, err := backup.NewFileStorage(cfg.Backup.Directory)
		if err != nil {
			log.Fatalw("failed to create backup storage", "error", err)
		}

		var backupLock *distributed.Lock
		if client := repoFactory.RedisClient(); client != nil {
			backupLock = distributed.NewLock(client, "drawza:backup:lock", 30*time.Second)
		}

		backupScheduler = infrabackup.NewScheduler(
			backup.NewService(storage, version),
			boardRepo,
			backupLock,
			infrabackup.Config{
				Interval:  cfg.Backup.Interval,
				Retention: cfg.Backup.Retention,
			},
			log,
		)
		go backupScheduler.Start(context.Background())
		log.Infow("backup scheduler started",
			"interval", cfg.Backup.Interval,
			"directory", cfg.Backup.Directory,
		)
	}

	srv := &http.Server{
		Addr:         cfg.API.Address,
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting drawza API server on %s", cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	if backupScheduler != nil {
		backupScheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	log.Info("drawza API server stopped")
}
