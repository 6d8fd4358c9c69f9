// Package shop persists the shelf and runs the nightly update against it.
package shop

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/gildedrose/audit"
	"github.com/kasuganosora/gildedrose/cache"
	"github.com/kasuganosora/gildedrose/model"
	"github.com/kasuganosora/gildedrose/stock"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Cache keys and pub/sub channel used by the service.
const (
	KeyRunLock        = "aging:lock"
	KeyCurrentDay     = "aging:day"
	KeyHistory        = "aging:history"
	ChannelStockAged  = "stock_aged"
	MaxForecastDays   = 365
	defaultLockTTL    = 5 * time.Minute
	defaultHistoryLen = 30
)

// Triggers recorded on AgingRun.Trigger.
const (
	TriggerScheduler = "scheduler"
	TriggerAdmin     = "admin"
	TriggerCLI       = "cli"
)

var (
	ErrNotFound      = errors.New("shop: item not found")
	ErrRunInProgress = errors.New("shop: aging run already in progress")
	ErrInvalidItem   = errors.New("shop: item name must not be empty")
)

// RunSummary is the compact form of an AgingRun kept in the cache history
// and published on ChannelStockAged.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Day        int64     `json:"day"`
	Trigger    string    `json:"trigger"`
	ItemCount  int       `json:"item_count"`
	Changed    int       `json:"changed"`
	Overdue    int       `json:"overdue"`
	DurationMs int       `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// Options tunes the service. Zero values fall back to defaults.
type Options struct {
	LockTTL     time.Duration
	HistorySize int
}

// Patch holds the fields of an Update. Nil fields are left unchanged.
type Patch struct {
	Name    *string `json:"name"`
	SellIn  *int    `json:"sell_in"`
	Quality *int    `json:"quality"`
}

// Service owns the persisted shelf.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	pubsub cache.PubSub
	audit  audit.Logger
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a Service. pubsub and auditLog may be nil.
func NewService(db *gorm.DB, c cache.Cache, pubsub cache.PubSub, auditLog audit.Logger, opts Options, logger *zap.Logger) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistoryLen
	}
	return &Service{
		db:     db,
		cache:  c,
		pubsub: pubsub,
		audit:  auditLog,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// AdvanceDay runs one nightly update over every stored item. Only one run
// may be in flight across all processes sharing the cache.
func (svc *Service) AdvanceDay(ctx context.Context, trigger string) (*model.AgingRun, error) {
	runID := uuid.NewString()
	ok, err := svc.cache.SetNX(ctx, KeyRunLock, runID, svc.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer svc.releaseLock(runID)

	start := svc.now()
	run := &model.AgingRun{RunID: runID, Trigger: trigger}
	var changes []model.ItemChange

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []model.StockItem
		if err := tx.Order("id").Find(&rows).Error; err != nil {
			return err
		}
		items := make([]stock.Item, len(rows))
		for i := range rows {
			items[i] = rows[i].Item()
		}
		stock.AdvanceOneDay(items)

		for i := range rows {
			before, after := rows[i].Item(), items[i]
			if after.Category() != stock.Legendary && after.Overdue() {
				run.Overdue++
			}
			if before == after {
				continue
			}
			rows[i].Apply(after)
			if err := tx.Model(&rows[i]).Select("sell_in", "quality").Updates(&rows[i]).Error; err != nil {
				return err
			}
			changes = append(changes, model.ItemChange{
				ItemID:        rows[i].ID,
				Name:          rows[i].Name,
				Category:      after.Category().String(),
				SellInBefore:  before.SellIn,
				SellInAfter:   after.SellIn,
				QualityBefore: before.Quality,
				QualityAfter:  after.Quality,
			})
		}
		run.ItemCount = len(rows)

		day, err := lastDay(tx)
		if err != nil {
			return err
		}
		run.Day = day + 1

		raw, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		run.Changes = datatypes.JSON(raw)
		run.DurationMs = int(svc.now().Sub(start).Milliseconds())
		return tx.Create(run).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another process committed this day first.
		svc.logger.Warn("aging run lost day race",
			zap.String("run_id", runID),
			zap.Int64("day", run.Day))
		return nil, ErrRunInProgress
	}
	if err != nil {
		svc.logger.Error("aging run failed",
			zap.String("run_id", runID),
			zap.String("trigger", trigger),
			zap.Error(err))
		return nil, err
	}

	summary := RunSummary{
		RunID:      run.RunID,
		Day:        run.Day,
		Trigger:    run.Trigger,
		ItemCount:  run.ItemCount,
		Changed:    len(changes),
		Overdue:    run.Overdue,
		DurationMs: run.DurationMs,
		At:         run.CreatedAt,
	}
	svc.afterRun(ctx, summary)

	svc.logger.Info("stock aged",
		zap.String("run_id", run.RunID),
		zap.Int64("day", run.Day),
		zap.String("trigger", trigger),
		zap.Int("items", run.ItemCount),
		zap.Int("changed", len(changes)),
		zap.Int("overdue", run.Overdue))
	return run, nil
}

// afterRun updates the cached day and history, publishes the event and
// writes the audit entry. Failures here do not undo the committed run.
func (svc *Service) afterRun(ctx context.Context, summary RunSummary) {
	payload, err := json.Marshal(summary)
	if err != nil {
		svc.logger.Error("marshal run summary failed", zap.String("run_id", summary.RunID), zap.Error(err))
		return
	}

	if err := svc.cache.Set(ctx, KeyCurrentDay, strconv.FormatInt(summary.Day, 10), 0); err != nil {
		svc.logger.Warn("cache day update failed", zap.Error(err))
	}
	if err := svc.cache.LPush(ctx, KeyHistory, string(payload)); err != nil {
		svc.logger.Warn("cache history push failed", zap.Error(err))
	} else if err := svc.cache.LTrim(ctx, KeyHistory, 0, int64(svc.opts.HistorySize-1)); err != nil {
		svc.logger.Warn("cache history trim failed", zap.Error(err))
	}
	if svc.pubsub != nil {
		if err := svc.pubsub.Publish(ctx, ChannelStockAged, string(payload)); err != nil {
			svc.logger.Warn("publish stock_aged failed", zap.Error(err))
		}
	}
	if svc.audit != nil {
		svc.audit.Log(audit.AuditEntry{
			TraceID:    summary.RunID,
			Action:     audit.ActionAgingRun,
			Request:    map[string]string{"trigger": summary.Trigger},
			Response:   summary,
			DurationMs: summary.DurationMs,
		})
	}
}

// releaseLock drops the run lock if this run still owns it.
func (svc *Service) releaseLock(runID string) {
	if _, err := svc.cache.DelIfEquals(context.Background(), KeyRunLock, runID); err != nil {
		svc.logger.Warn("release aging lock failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func lastDay(tx *gorm.DB) (int64, error) {
	var day int64
	err := tx.Model(&model.AgingRun{}).Select("COALESCE(MAX(day), 0)").Scan(&day).Error
	return day, err
}

// CurrentDay returns the number of nightly updates applied so far.
func (svc *Service) CurrentDay(ctx context.Context) (int64, error) {
	if v, err := svc.cache.Get(ctx, KeyCurrentDay); err == nil {
		if day, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			return day, nil
		}
	} else if !cache.IsNotFound(err) {
		svc.logger.Warn("cache day read failed", zap.Error(err))
	}
	return lastDay(svc.db.WithContext(ctx))
}

// RecentRuns returns the cached run summaries, newest first.
func (svc *Service) RecentRuns(ctx context.Context) ([]RunSummary, error) {
	raw, err := svc.cache.LRange(ctx, KeyHistory, 0, int64(svc.opts.HistorySize-1))
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(raw))
	for _, s := range raw {
		var rs RunSummary
		if err := json.Unmarshal([]byte(s), &rs); err != nil {
			continue
		}
		out = append(out, rs)
	}
	return out, nil
}

// ListRuns returns persisted runs, newest first.
func (svc *Service) ListRuns(ctx context.Context, limit int) ([]model.AgingRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []model.AgingRun
	err := svc.db.WithContext(ctx).Order("day DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// List returns every stored item ordered by id.
func (svc *Service) List(ctx context.Context) ([]model.StockItem, error) {
	var rows []model.StockItem
	err := svc.db.WithContext(ctx).Order("id").Find(&rows).Error
	return rows, err
}

// Count returns the number of stored items.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.WithContext(ctx).Model(&model.StockItem{}).Count(&n).Error
	return n, err
}

// Get returns one item by id.
func (svc *Service) Get(ctx context.Context, id int64) (*model.StockItem, error) {
	return getItem(svc.db.WithContext(ctx), id)
}

func getItem(tx *gorm.DB, id int64) (*model.StockItem, error) {
	var row model.StockItem
	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// Create stores a new item after normalizing its quality.
func (svc *Service) Create(ctx context.Context, it stock.Item) (*model.StockItem, error) {
	it.Name = strings.TrimSpace(it.Name)
	if it.Name == "" {
		return nil, ErrInvalidItem
	}
	it = stock.Normalize(it)
	row := &model.StockItem{Name: it.Name, SellIn: it.SellIn, Quality: it.Quality}
	if err := svc.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Update applies p to the item and re-normalizes quality against the
// (possibly new) name.
func (svc *Service) Update(ctx context.Context, id int64, p Patch) (*model.StockItem, error) {
	var out *model.StockItem
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := getItem(tx, id)
		if err != nil {
			return err
		}
		it := row.Item()
		if p.Name != nil {
			it.Name = strings.TrimSpace(*p.Name)
			if it.Name == "" {
				return ErrInvalidItem
			}
		}
		if p.SellIn != nil {
			it.SellIn = *p.SellIn
		}
		if p.Quality != nil {
			it.Quality = *p.Quality
		}
		it = stock.Normalize(it)
		if err := tx.Model(row).Updates(map[string]interface{}{
			"name":    it.Name,
			"sell_in": it.SellIn,
			"quality": it.Quality,
		}).Error; err != nil {
			return err
		}
		row.Name, row.SellIn, row.Quality = it.Name, it.SellIn, it.Quality
		out = row
		return nil
	})
	return out, err
}

// Rename changes an item's name. The new name decides how it ages from the
// next update on.
func (svc *Service) Rename(ctx context.Context, id int64, name string) (*model.StockItem, error) {
	return svc.Update(ctx, id, Patch{Name: &name})
}

// Delete removes an item.
func (svc *Service) Delete(ctx context.Context, id int64) error {
	res := svc.db.WithContext(ctx).Delete(&model.StockItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Forecast projects a stored item forward without persisting anything.
// days is clamped to [0, MaxForecastDays].
func (svc *Service) Forecast(ctx context.Context, id int64, days int) ([]stock.Item, error) {
	row, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}
	snaps := stock.Forecast([]stock.Item{row.Item()}, days)
	out := make([]stock.Item, len(snaps))
	for i, s := range snaps {
		out[i] = s[0]
	}
	return out, nil
}

// Seed inserts items in one transaction. Nameless items reject the batch.
func (svc *Service) Seed(ctx context.Context, items []stock.Item) (int, error) {
	rows := make([]model.StockItem, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		if it.Name == "" {
			return 0, ErrInvalidItem
		}
		it = stock.Normalize(it)
		rows = append(rows, model.StockItem{Name: it.Name, SellIn: it.SellIn, Quality: it.Quality})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := svc.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	if svc.audit != nil {
		svc.audit.Log(audit.AuditEntry{
			Action:   audit.ActionStockSeed,
			Response: map[string]int{"count": len(rows)},
		})
	}
	svc.logger.Info("stock seeded", zap.Int("count", len(rows)))
	return len(rows), nil
}
