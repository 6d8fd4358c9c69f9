package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/gildedrose/audit"
	mw "github.com/kasuganosora/gildedrose/middleware"
	"github.com/kasuganosora/gildedrose/model"
	"github.com/kasuganosora/gildedrose/shop"
	"github.com/kasuganosora/gildedrose/stock"
	"go.uber.org/zap"
)

// StockHandler exposes the shelf to signed-in staff.
type StockHandler struct {
	svc    *shop.Service
	audit  audit.Logger
	logger *zap.Logger
}

// NewStockHandler creates a StockHandler.
func NewStockHandler(svc *shop.Service, auditLog audit.Logger, logger *zap.Logger) *StockHandler {
	return &StockHandler{svc: svc, audit: auditLog, logger: logger}
}

type stockView struct {
	model.StockItem
	Category string `json:"category"`
	Overdue  bool   `json:"overdue"`
}

func viewOf(row *model.StockItem) stockView {
	it := row.Item()
	return stockView{StockItem: *row, Category: row.Category(), Overdue: it.Category() != stock.Legendary && it.Overdue()}
}

type createStockRequest struct {
	Name    string `json:"name" binding:"required,max=128"`
	SellIn  int    `json:"sell_in"`
	Quality int    `json:"quality"`
}

// List handles GET /api/stock.
func (h *StockHandler) List(c *gin.Context) {
	rows, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]stockView, len(rows))
	for i := range rows {
		out[i] = viewOf(&rows[i])
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "count": len(out)})
}

// Get handles GET /api/stock/:id.
func (h *StockHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": viewOf(row)})
}

// Create handles POST /api/stock.
func (h *StockHandler) Create(c *gin.Context) {
	start := time.Now()
	var req createStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Create(c.Request.Context(), stock.Item{Name: req.Name, SellIn: req.SellIn, Quality: req.Quality})
	if err != nil {
		h.record(c, audit.ActionStockCreate, nil, req, nil, err, start)
		h.fail(c, err)
		return
	}
	h.record(c, audit.ActionStockCreate, &row.ID, req, row, nil, start)
	c.JSON(http.StatusCreated, gin.H{"item": viewOf(row)})
}

// Update handles PUT /api/stock/:id. Omitted fields are left unchanged.
func (h *StockHandler) Update(c *gin.Context) {
	start := time.Now()
	id, ok := parseID(c)
	if !ok {
		return
	}
	var p shop.Patch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row, err := h.svc.Update(c.Request.Context(), id, p)
	h.record(c, audit.ActionStockUpdate, &id, p, row, err, start)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": viewOf(row)})
}

// Delete handles DELETE /api/stock/:id.
func (h *StockHandler) Delete(c *gin.Context) {
	start := time.Now()
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := h.svc.Delete(c.Request.Context(), id)
	h.record(c, audit.ActionStockDelete, &id, nil, nil, err, start)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Forecast handles GET /api/stock/:id/forecast?days=N (default 7).
func (h *StockHandler) Forecast(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
		return
	}
	snaps, err := h.svc.Forecast(c.Request.Context(), id, days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_id": id, "days": len(snaps) - 1, "forecast": snaps})
}

func (h *StockHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, shop.ErrInvalidItem):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("stock request failed",
			zap.String("trace_id", mw.GetTraceID(c)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *StockHandler) record(c *gin.Context, action string, itemID *int64, req, resp interface{}, err error, start time.Time) {
	if h.audit == nil {
		return
	}
	accountID := mw.GetAccountID(c)
	entry := audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		AccountID:  &accountID,
		ItemID:     itemID,
		Action:     action,
		Request:    req,
		Response:   resp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	h.audit.Log(entry)
}

// parseID reads the :id path param, answering 400 itself when it is bad.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
