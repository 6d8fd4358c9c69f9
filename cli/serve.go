package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/api"
	"github.com/kasuganosora/gildedrose/config"
	"github.com/kasuganosora/gildedrose/resource"
	"github.com/kasuganosora/gildedrose/scheduler"
	"github.com/kasuganosora/gildedrose/shop"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	taskNightlyAging = "nightly_aging"
	taskAgingOnStart = "aging_on_start"
)

func serveCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the nightly aging scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}
}

func runServe(ctx context.Context, f *rootFlags) error {
	a, err := openApp(f)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	cfg, logger := a.cfg, a.logger

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret must be set to serve")
	}

	if err := seedIfEmpty(ctx, a); err != nil {
		logger.Warn("seed on start failed", zap.Error(err))
	}

	sched := scheduler.New(logger)
	defer sched.Stop()
	if err := registerAging(sched, a.shop, cfg.Aging, logger); err != nil {
		return err
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := api.NewEngine(api.Deps{
		Config:    cfg,
		DB:        a.db,
		Cache:     a.cache,
		PubSub:    a.pubsub,
		Shop:      a.shop,
		Scheduler: sched,
		Audit:     a.audit,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// registerAging schedules the nightly update: at aging.daily_at when set,
// otherwise every aging.interval.
func registerAging(sched *scheduler.Scheduler, svc *shop.Service, cfg config.AgingConfig, logger *zap.Logger) error {
	timeout := cfg.LockTTL
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := svc.AdvanceDay(ctx, shop.TriggerScheduler); err != nil {
			if errors.Is(err, shop.ErrRunInProgress) {
				logger.Info("nightly aging skipped: another run holds the lock")
				return
			}
			logger.Error("nightly aging failed", zap.Error(err))
		}
	}

	hour, minute, daily, err := cfg.DailyTime()
	if err != nil {
		return err
	}
	switch {
	case daily:
		sched.AddDaily(taskNightlyAging, hour, minute, task)
	case cfg.Interval > 0:
		sched.AddTicker(taskNightlyAging, cfg.Interval, task)
	default:
		logger.Warn("aging.interval is zero and aging.daily_at is empty; nightly aging disabled")
	}
	if cfg.RunOnStart {
		sched.AddDelay(taskAgingOnStart, time.Second, task)
	}
	return nil
}

// seedIfEmpty loads aging.seed_path into an empty shelf. Without a seed
// path nothing is loaded.
func seedIfEmpty(ctx context.Context, a *app) error {
	if a.cfg.Aging.SeedPath == "" {
		return nil
	}
	n, err := a.shop.Count(ctx)
	if err != nil || n > 0 {
		return err
	}
	items, err := resource.LoadCatalog(a.cfg.Aging.SeedPath)
	if err != nil {
		return err
	}
	_, err = a.shop.Seed(ctx, items)
	return err
}
