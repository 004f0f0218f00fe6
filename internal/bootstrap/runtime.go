// Package bootstrap connects the runtime dependencies shared by the server and tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bulletin/internal/cache"
	"bulletin/internal/config"
	"bulletin/internal/database"
	"bulletin/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty board with demo content.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedDemoData {
		if err := seedIfEmpty(db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

func seedIfEmpty(db *gorm.DB) error {
	empty, err := seed.IsEmpty(db)
	if err != nil {
		return err
	}
	if !empty {
		slog.Info("board already has posts, skipping demo seed")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	_, err = seed.Seed(ctx, db, seed.DefaultOptions)
	return err
}
