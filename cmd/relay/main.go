package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drawza/internal/core/services"
	"drawza/internal/infrastructure/distributed"
	"drawza/internal/infrastructure/monitoring"
	"drawza/internal/infrastructure/relay"
	redisrepo "drawza/internal/infrastructure/repositories/redis"
	"drawza/pkg/config"
	"drawza/pkg/logger"
	"drawza/pkg/tracing"
	"drawza/pkg/utils"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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
			ServiceName: cfg.Tracing.ServiceName + "-relay",
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

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	registry := relay.NewRegistry()

	opts := []relay.Option{
		relay.WithTimeouts(cfg.Relay.PingInterval, cfg.Relay.PongTimeout, cfg.Relay.WriteTimeout),
		relay.WithAllowedOrigins(cfg.Auth.AllowedOrigins),
	}
	if cfg.RateLimiting.Enabled {
		opts = append(opts, relay.WithRateLimit(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
			cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		))
	}
	if cfg.Monitoring.PrometheusEnabled {
		opts = append(opts, relay.WithMetrics(monitoring.NewPrometheusCollector()))
	}

	// With the redis backend configured, relay instances mirror room
	// traffic to each other so members of a room can land on any instance.
	var bus *distributed.EventBus
	if cfg.Storage.Backend == "redis" {
		client, err := redisrepo.NewRedisClient(
			cfg.Storage.Redis.Address,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Redis.PoolSize,
			log,
		)
		if err != nil {
			log.Warnw("redis unavailable, relay runs without cross-instance bridge", "error", err)
		} else {
			defer redisrepo.CloseRedisClient(client)
			bus = distributed.NewEventBus(client, utils.GenerateID("relay"), log)
			opts = append(opts, relay.WithBus(bus))
		}
	}

	wsServer := relay.NewWebSocketServer(registry, authService, zapLogger, opts...)

	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()
	if bus != nil {
		go func() {
			if err := bus.Subscribe(busCtx, wsServer.DeliverRemote); err != nil && busCtx.Err() == nil {
				log.Errorw("event bus subscription ended", "error", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"uptime":      utils.FormatDuration(time.Since(startTime)),
			"connections": wsServer.ConnectionCount(),
			"rooms":       registry.RoomCount(),
		})
	})
	if cfg.Monitoring.PrometheusEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:    cfg.Relay.Address,
		Handler: mux,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting drawza relay server on %s", cfg.Relay.Address)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	} else {
		log.Info("server shutdown gracefully")
	}

	log.Info("drawza relay server stopped")
}
