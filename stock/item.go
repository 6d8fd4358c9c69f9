// Package stock implements the nightly aging rules for shelf items.
package stock

import "strings"

// Item names with special aging rules. Matching is case-sensitive.
const (
	NameAgedBrie      = "Aged Brie"
	NameBackstagePass = "Backstage passes to a TAFKAL80ETC concert"
	NameSulfuras      = "Sulfuras, Hand of Ragnaros"

	// ConjuredMarker anywhere in a name makes the item Conjured.
	ConjuredMarker = "Conjured"
)

// Quality bounds.
const (
	MinQuality       = 0
	MaxQuality       = 50
	LegendaryQuality = 80
)

// Item is a single shelf item. Only SellIn and Quality change during aging.
type Item struct {
	Name    string `json:"name" yaml:"name"`
	SellIn  int    `json:"sell_in" yaml:"sell_in"`
	Quality int    `json:"quality" yaml:"quality"`
}

// Category selects the aging rule applied to an item.
type Category int

const (
	Ordinary Category = iota
	AgedBrie
	BackstagePass
	Legendary
	Conjured
)

var categoryNames = [...]string{
	Ordinary:      "ordinary",
	AgedBrie:      "aged_brie",
	BackstagePass: "backstage_pass",
	Legendary:     "legendary",
	Conjured:      "conjured",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Classify maps an item name to its category. Unknown names are Ordinary.
func Classify(name string) Category {
	switch name {
	case NameSulfuras:
		return Legendary
	case NameAgedBrie:
		return AgedBrie
	case NameBackstagePass:
		return BackstagePass
	}
	if strings.Contains(name, ConjuredMarker) {
		return Conjured
	}
	return Ordinary
}

// Category reports the item's current category. It is derived from Name on
// every call, so renaming an item changes how it ages next time.
func (it *Item) Category() Category {
	return Classify(it.Name)
}

// Overdue reports whether the sell-by date has passed.
func (it *Item) Overdue() bool {
	return it.SellIn < 0
}

// Normalize brings a freshly received item in line with the quality
// invariants: Legendary items carry LegendaryQuality, everything else is
// clamped to [MinQuality, MaxQuality]. SellIn is left alone.
func Normalize(it Item) Item {
	if Classify(it.Name) == Legendary {
		it.Quality = LegendaryQuality
		return it
	}
	it.Quality = clampQuality(it.Quality)
	return it
}
