package repositories

import (
	"context"

	"drawza/internal/core/ports"
	"drawza/internal/infrastructure/repositories/memory"
	postgresrepo "drawza/internal/infrastructure/repositories/postgres"
	redisrepo "drawza/internal/infrastructure/repositories/redis"
	"drawza/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryFactory creates board repositories with fallback support: a
// configured redis or postgres backend that cannot be reached degrades to
// the in-memory repository instead of failing startup.
type RepositoryFactory struct {
	backend     string
	redisClient *redis.Client
	db          *gorm.DB
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend: cfg.Storage.Backend,
		logger:  logger,
	}

	switch cfg.Storage.Backend {
	case "redis":
		client, err := redisrepo.NewRedisClient(
			cfg.Storage.Redis.Address,
			cfg.Storage.Redis.Password,
			cfg.Storage.Redis.DB,
			cfg.Storage.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory board repository",
				"error", err,
			)
			factory.backend = "memory"
		} else {
			factory.redisClient = client
		}

	case "postgres":
		db, err := postgresrepo.NewDB(cfg.Storage.Postgres.DSN, logger)
		if err != nil {
			logger.Warnw("failed to connect to Postgres, falling back to memory board repository",
				"error", err,
			)
			factory.backend = "memory"
		} else {
			factory.db = db
		}
	}

	logger.Infow("board storage backend selected", "backend", factory.backend)
	return factory, nil
}

// CreateBoardRepository creates a board repository for the selected backend.
func (f *RepositoryFactory) CreateBoardRepository() ports.BoardRepository {
	switch {
	case f.backend == "redis" && f.redisClient != nil:
		return redisrepo.NewRedisBoardRepository(f.redisClient)
	case f.backend == "postgres" && f.db != nil:
		return postgresrepo.NewPostgresBoardRepository(f.db)
	default:
		return memory.NewMemoryBoardRepository()
	}
}

// RedisClient returns the shared redis client, or nil when the redis
// backend is not in use. Callers must not close it.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes backend connections if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	if f.db != nil {
		if sqlDB, err := f.db.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}

// HealthCheck checks backend connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.backend == "redis" && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	if f.backend == "postgres" && f.db != nil {
		sqlDB, err := f.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return nil
}
