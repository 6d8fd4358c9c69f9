package cli

import (
	"context"
	"fmt"

	"github.com/kasuganosora/gildedrose/audit"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/config"
	dbadapter "github.com/kasuganosora/gildedrose/db"
	"github.com/kasuganosora/gildedrose/model"
	"github.com/kasuganosora/gildedrose/shop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app bundles the long-lived services every command that touches stored
// stock needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	audit  *audit.Service
	shop   *shop.Service
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openDB is swapped by tests to observe the database handle.
var openDB = dbadapter.Open

func openApp(f *rootFlags) (_ *app, err error) {
	cfg, err := config.LoadOrDefault(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if f.debug {
		cfg.Server.Debug = true
	}
	logger, err := newLogger(cfg.Server.Debug)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.db, err = openDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	if err = model.AutoMigrate(a.db); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	a.cache, err = cache.NewCache(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.pubsub, err = cache.NewPubSub(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("pubsub: %w", err)
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	a.audit = audit.New(a.db, logger)
	a.shop = shop.NewService(a.db, a.cache, a.pubsub, a.audit, shop.Options{
		LockTTL:     cfg.Aging.LockTTL,
		HistorySize: cfg.Aging.HistorySize,
	}, logger)
	return a, nil
}

// close flushes the audit queue and releases whatever openApp acquired.
func (a *app) close(ctx context.Context) {
	if a.audit != nil {
		a.audit.Stop(ctx)
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.pubsub != nil {
		_ = a.pubsub.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	_ = a.logger.Sync()
}
