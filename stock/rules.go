package stock

import "math"

// Age computes the next (sellIn, quality) pair for an item of category c.
// Quality rules look at the already-advanced sellIn.
func (c Category) Age(sellIn, quality int) (int, int) {
	switch c {
	case Legendary:
		return ageLegendary(sellIn, quality)
	case AgedBrie:
		return ageBrie(sellIn, quality)
	case BackstagePass:
		return ageBackstage(sellIn, quality)
	case Conjured:
		return ageConjured(sellIn, quality)
	default:
		return ageOrdinary(sellIn, quality)
	}
}

// Legendary items are never sold: the countdown moves away from the sell-by
// date and quality is pinned.
func ageLegendary(sellIn, _ int) (int, int) {
	return addSat(sellIn, 1), LegendaryQuality
}

func ageBrie(sellIn, quality int) (int, int) {
	sellIn = addSat(sellIn, -1)
	if sellIn < 0 {
		return sellIn, clampQuality(addSat(quality, 2))
	}
	return sellIn, clampQuality(addSat(quality, 1))
}

func ageBackstage(sellIn, quality int) (int, int) {
	sellIn = addSat(sellIn, -1)
	switch {
	case sellIn <= 0:
		// The concert is at sellIn 0; passes are worthless from then on.
		return sellIn, MinQuality
	case sellIn <= 5:
		return sellIn, clampQuality(addSat(quality, 3))
	case sellIn <= 10:
		return sellIn, clampQuality(addSat(quality, 2))
	default:
		return sellIn, clampQuality(addSat(quality, 1))
	}
}

func ageConjured(sellIn, quality int) (int, int) {
	sellIn = addSat(sellIn, -1)
	if sellIn < 0 {
		return sellIn, clampQuality(addSat(quality, -4))
	}
	return sellIn, clampQuality(addSat(quality, -2))
}

func ageOrdinary(sellIn, quality int) (int, int) {
	sellIn = addSat(sellIn, -1)
	if sellIn < 0 {
		return sellIn, clampQuality(addSat(quality, -2))
	}
	return sellIn, clampQuality(addSat(quality, -1))
}

// addSat returns a+b, held at math.MaxInt / math.MinInt instead of wrapping.
func addSat(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

func clampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}
