// Package api assembles the HTTP surface of the stock server.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/gildedrose/api/rest"
	"github.com/kasuganosora/gildedrose/api/sse"
	"github.com/kasuganosora/gildedrose/audit"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/config"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/scheduler"
	"github.com/kasuganosora/gildedrose/shop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Cache     cache.Cache
	PubSub    cache.PubSub
	Shop      *shop.Service
	Scheduler *scheduler.Scheduler
	Audit     audit.Logger
	Logger    *zap.Logger
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(d.Logger), mw.Recovery(d.Logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(d.DB, d.Cache, cfg.Security, d.Audit, d.Logger)
	stockH := apirest.NewStockHandler(d.Shop, d.Audit, d.Logger)
	adminH := apirest.NewAdminHandler(d.DB, d.Cache, d.Shop, d.Scheduler, d.Logger)
	auth := mw.Auth(cfg.Security, d.Cache)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", auth, authH.Logout)
		authG.POST("/refresh", auth, authH.Refresh)
		authG.GET("/me", auth, authH.Me)

		stockG := api.Group("/stock")
		stockG.Use(auth)
		stockG.GET("", stockH.List)
		stockG.POST("", stockH.Create)
		stockG.GET("/:id", stockH.Get)
		stockG.PUT("/:id", stockH.Update)
		stockG.DELETE("/:id", stockH.Delete)
		stockG.GET("/:id/forecast", stockH.Forecast)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminAllowedIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/advance", adminH.Advance)
		adminG.GET("/runs", adminH.ListRuns)
		adminG.POST("/accounts/:id/disable", adminH.DisableAccount)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	sseH := sse.NewHandler(d.PubSub, d.Cache, cfg.Security, d.Logger)
	r.GET("/sse", sseH.ServeSSE)

	return r
}
