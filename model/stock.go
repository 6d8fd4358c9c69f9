package model

import (
	"time"

	"github.com/kasuganosora/gildedrose/stock"
)

// StockItem is one item on the shop's shelf.
type StockItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:128;not null;index:idx_stock_name" json:"name"`
	SellIn    int       `gorm:"not null" json:"sell_in"`
	Quality   int       `gorm:"not null" json:"quality"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Item returns the engine view of the row.
func (s *StockItem) Item() stock.Item {
	return stock.Item{Name: s.Name, SellIn: s.SellIn, Quality: s.Quality}
}

// Apply copies engine state back onto the row. Name is never changed by aging.
func (s *StockItem) Apply(it stock.Item) {
	s.SellIn = it.SellIn
	s.Quality = it.Quality
}

// Category is the aging rule currently selected by the row's name.
func (s *StockItem) Category() string {
	return stock.Classify(s.Name).String()
}
