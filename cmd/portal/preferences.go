package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neuralliquid/portal/internal/config"
	"github.com/neuralliquid/portal/internal/prefstore"
	"github.com/neuralliquid/portal/internal/store"
	"github.com/neuralliquid/portal/internal/version"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// preferences is the opened server-side preference backend.
type preferences struct {
	Store  prefstore.SessionStore
	closer func() error
}

func (p *preferences) Close() {
	if p.closer != nil {
		_ = p.closer()
	}
}

// openPreferences opens the configured backend. The sqlite backend also runs
// a purge loop until ctx is done.
func openPreferences(ctx context.Context, cfg config.Preferences, dsn string, logger *zap.Logger) (*preferences, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory preference store, preferences are lost on restart")
		return &preferences{Store: prefstore.NewMemory()}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Not fatal: the breaker keeps requests fast until redis is back.
			logger.Warn("redis not reachable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		logger.Info("redis preference store configured",
			zap.String("addr", cfg.RedisAddr),
			zap.String("key_prefix", cfg.KeyPrefix),
		)
		st := prefstore.NewBreaker(prefstore.NewRedis(client, cfg.KeyPrefix),
			cfg.BreakerMaxFailures, cfg.BreakerTimeout, logger)
		return &preferences{Store: st, closer: client.Close}, nil

	default:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err := store.New(dsn)
		if err != nil {
			return nil, err
		}
		if err := db.CheckVersion(ctx, version.Version); err != nil {
			db.Close()
			return nil, err
		}
		st, err := prefstore.NewSQLite(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("sqlite preference store opened", zap.String("path", dsn))
		go purgeLoop(ctx, st, cfg.PurgeInterval, logger)
		return &preferences{Store: st, closer: db.Close}, nil
	}
}

// purgeLoop deletes expired preferences every interval.
func purgeLoop(ctx context.Context, st *prefstore.SQLite, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired preferences failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("purged expired preferences", zap.Int64("rows", n))
			}
		}
	}
}
