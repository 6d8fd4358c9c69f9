package rest

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/cache"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/model"
	"github.com/kasuganosora/gildedrose/scheduler"
	"github.com/kasuganosora/gildedrose/shop"
	"github.com/kasuganosora/gildedrose/stock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db      *gorm.DB
	cache   cache.Cache
	svc     *shop.Service
	sched   *scheduler.Scheduler
	logger  *zap.Logger
	started time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, c cache.Cache, svc *shop.Service, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, cache: c, svc: svc, sched: sched, logger: logger, started: time.Now()}
}

// Metrics returns shelf and server health figures.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	rows, err := h.svc.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	day, err := h.svc.CurrentDay(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	byCategory := make(map[string]int)
	overdue := 0
	for i := range rows {
		it := rows[i].Item()
		cat := it.Category()
		byCategory[cat.String()]++
		if cat != stock.Legendary && it.Overdue() {
			overdue++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"items":           len(rows),
		"by_category":     byCategory,
		"overdue":         overdue,
		"current_day":     day,
		"scheduler_tasks": h.sched.ListTickers(),
		"uptime_s":        int64(time.Since(h.started).Seconds()),
	})
}

// Advance runs the nightly update now.
// POST /api/admin/advance
func (h *AdminHandler) Advance(c *gin.Context) {
	run, err := h.svc.AdvanceDay(c.Request.Context(), shop.TriggerAdmin)
	if errors.Is(err, shop.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "aging run already in progress"})
		return
	}
	if err != nil {
		h.logger.Error("admin advance failed", zap.String("trace_id", mw.GetTraceID(c)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aging run failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

// ListRuns returns recent aging runs. ?source=cache reads the cached
// summaries instead of the database.
// GET /api/admin/runs?limit=N
func (h *AdminHandler) ListRuns(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("source") == "cache" {
		recent, err := h.svc.RecentRuns(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": recent})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.svc.ListRuns(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// DisableAccount disables or re-enables a staff account. Disabling also
// revokes every token the account holds.
// POST /api/admin/accounts/:id/disable  {"disable": bool}
func (h *AdminHandler) DisableAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Disable bool `json:"disable"`
	}
	_ = c.ShouldBindJSON(&req)

	status := model.AccountActive
	if req.Disable {
		status = model.AccountDisabled
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero rows when the status is already set.
		var n int64
		if err := h.db.Model(&model.Account{}).Where("id = ?", accountID).Count(&n).Error; err != nil || n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
	}
	if req.Disable {
		if err := mw.RevokeSessions(c.Request.Context(), h.cache, accountID); err != nil {
			h.logger.Error("revoke sessions failed", zap.Int64("account_id", accountID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cache error"})
			return
		}
	}
	h.logger.Info("admin changed account status",
		zap.Int64("account_id", accountID), zap.Int("status", status))
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ListSchedulerTasks returns names of all registered recurring tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// With an empty adminKey every admin endpoint answers 503, so a server
// started without server.admin_key never exposes them.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
