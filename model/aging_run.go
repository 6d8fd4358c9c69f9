package model

import (
	"time"

	"gorm.io/datatypes"
)

// AgingRun records one persisted nightly update.
type AgingRun struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string         `gorm:"uniqueIndex;size:36;not null" json:"run_id"`
	Day        int64          `gorm:"uniqueIndex:idx_aging_day;not null" json:"day"`
	Trigger    string         `gorm:"size:32;not null" json:"trigger"` // scheduler | admin | cli
	ItemCount  int            `json:"item_count"`
	Overdue    int            `json:"overdue"`
	Changes    datatypes.JSON `json:"changes"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_aging_created;autoCreateTime:milli" json:"created_at"`
}

// ItemChange is one element of AgingRun.Changes.
type ItemChange struct {
	ItemID        int64  `json:"item_id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	SellInBefore  int    `json:"sell_in_before"`
	SellInAfter   int    `json:"sell_in_after"`
	QualityBefore int    `json:"quality_before"`
	QualityAfter  int    `json:"quality_after"`
}
