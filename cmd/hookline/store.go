package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/kv"
	"github.com/xraph/grove/kv/drivers/redisdriver"

	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/store/postgres"
	"github.com/hookline/hookline/store/redis"
	"github.com/hookline/hookline/store/sqlite"
)

// openStore constructs the persistence backend selected by store.driver.
// Grove drivers connect first, then wrap: driver.Open before grove.Open.
func openStore(ctx context.Context, cfg *viper.Viper) (store.Store, error) {
	driver := cfg.GetString("store.driver")
	dsn := cfg.GetString("store.dsn")

	switch driver {
	case "memory":
		return memory.New(), nil

	case "sqlite":
		if dsn == "" {
			dsn = "hookline.db"
		}
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("wrap sqlite driver: %w", err)
		}
		return sqlite.New(db), nil

	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("store.dsn is required for postgres")
		}
		drv := pgdriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("wrap postgres driver: %w", err)
		}
		return postgres.New(db), nil

	case "redis":
		if dsn == "" {
			dsn = "redis://localhost:6379"
		}
		drv := redisdriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("open redis %q: %w", dsn, err)
		}
		kvStore, err := kv.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("wrap redis driver: %w", err)
		}
		return redis.New(kvStore), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
