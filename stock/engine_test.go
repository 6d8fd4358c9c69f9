package stock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ageOne(name string, sellIn, quality int) Item {
	items := []Item{{Name: name, SellIn: sellIn, Quality: quality}}
	AdvanceOneDay(items)
	return items[0]
}

// ---- Classify ----

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"+5 Dexterity Vest":      Ordinary,
		"Elixir of the Mongoose": Ordinary,
		NameAgedBrie:             AgedBrie,
		NameBackstagePass:        BackstagePass,
		NameSulfuras:             Legendary,
		"Conjured Mana Cake":     Conjured,
		"Mana Cake (Conjured)":   Conjured,
		"aged brie":              Ordinary,
		"conjured mana cake":     Ordinary,
		"":                       Ordinary,
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(name), name)
	}
}

func TestClassify_LegendaryWinsOverConjured(t *testing.T) {
	// Exact names are checked before the Conjured substring.
	assert.Equal(t, Ordinary, Classify("Sulfuras, Hand of Ragnaros "))
	assert.Equal(t, Conjured, Classify("Conjured Sulfuras, Hand of Ragnaros"))
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "legendary", Legendary.String())
	assert.Equal(t, "conjured", Conjured.String())
	assert.Equal(t, "unknown", Category(42).String())
}

// ---- Ordinary ----

func TestOrdinary_BeforeSellBy(t *testing.T) {
	it := ageOne("+5 Dexterity Vest", 10, 20)
	assert.Equal(t, 9, it.SellIn)
	assert.Equal(t, 19, it.Quality)
}

func TestOrdinary_Overdue(t *testing.T) {
	it := ageOne("+5 Dexterity Vest", 0, 20)
	assert.Equal(t, -1, it.SellIn)
	assert.Equal(t, 18, it.Quality)
}

func TestOrdinary_NeverNegative(t *testing.T) {
	it := ageOne("Elixir of the Mongoose", 5, 0)
	assert.Equal(t, 0, it.Quality)
	it = ageOne("Elixir of the Mongoose", -3, 1)
	assert.Equal(t, 0, it.Quality)
}

func TestOrdinary_OutOfRangeInputIsClamped(t *testing.T) {
	assert.Equal(t, 50, ageOne("Vest", 5, 120).Quality)
	assert.Equal(t, 0, ageOne("Vest", 5, -7).Quality)
}

func TestOrdinary_KeepsName(t *testing.T) {
	it := ageOne("+5 Dexterity Vest", 10, 20)
	assert.Equal(t, "+5 Dexterity Vest", it.Name)
}

// ---- Aged Brie ----

func TestAgedBrie_Increases(t *testing.T) {
	it := ageOne(NameAgedBrie, 2, 0)
	assert.Equal(t, 1, it.SellIn)
	assert.Equal(t, 1, it.Quality)
}

func TestAgedBrie_OverdueAppliesAfterDecrement(t *testing.T) {
	it := ageOne(NameAgedBrie, 0, 10)
	assert.Equal(t, -1, it.SellIn)
	assert.Equal(t, 12, it.Quality)
}

func TestAgedBrie_CappedAt50(t *testing.T) {
	assert.Equal(t, 50, ageOne(NameAgedBrie, 5, 50).Quality)
	assert.Equal(t, 50, ageOne(NameAgedBrie, -5, 49).Quality)
}

// ---- Backstage passes ----

func TestBackstage_Tiers(t *testing.T) {
	cases := []struct {
		sellIn, quality    int
		wantSell, wantQual int
	}{
		{15, 20, 14, 21},
		{12, 20, 11, 21},
		{11, 20, 10, 22},
		{10, 20, 9, 22},
		{7, 20, 6, 22},
		{6, 20, 5, 23},
		{5, 20, 4, 23},
		{2, 20, 1, 23},
		{1, 20, 0, 0},
		{0, 20, -1, 0},
		{-4, 20, -5, 0},
	}
	for _, tc := range cases {
		it := ageOne(NameBackstagePass, tc.sellIn, tc.quality)
		assert.Equal(t, tc.wantSell, it.SellIn, "sellIn from %d", tc.sellIn)
		assert.Equal(t, tc.wantQual, it.Quality, "quality from sellIn %d", tc.sellIn)
	}
}

func TestBackstage_CappedAt50(t *testing.T) {
	assert.Equal(t, 50, ageOne(NameBackstagePass, 10, 49).Quality)
	assert.Equal(t, 50, ageOne(NameBackstagePass, 5, 48).Quality)
	assert.Equal(t, 50, ageOne(NameBackstagePass, 20, 50).Quality)
}

// ---- Legendary ----

func TestLegendary_PinnedQuality(t *testing.T) {
	for _, q := range []int{0, 49, 80, 1000, math.MinInt} {
		it := ageOne(NameSulfuras, 0, q)
		assert.Equal(t, LegendaryQuality, it.Quality)
	}
}

func TestLegendary_CountdownMovesAway(t *testing.T) {
	it := ageOne(NameSulfuras, 0, 80)
	assert.Equal(t, 1, it.SellIn)
	it = ageOne(NameSulfuras, -1, 80)
	assert.Equal(t, 0, it.SellIn)
}

func TestLegendary_SaturatesAtMaxInt(t *testing.T) {
	it := ageOne(NameSulfuras, math.MaxInt, 80)
	assert.Equal(t, math.MaxInt, it.SellIn)
	assert.Equal(t, LegendaryQuality, it.Quality)
}

// ---- Conjured ----

func TestConjured_DegradesTwiceAsFast(t *testing.T) {
	it := ageOne("Conjured Mana Cake", 10, 20)
	assert.Equal(t, 9, it.SellIn)
	assert.Equal(t, 18, it.Quality)

	it = ageOne("Conjured Mana Cake", 0, 20)
	assert.Equal(t, -1, it.SellIn)
	assert.Equal(t, 16, it.Quality)
}

func TestConjured_NeverNegative(t *testing.T) {
	assert.Equal(t, 0, ageOne("Conjured Mana Cake", 3, 1).Quality)
	assert.Equal(t, 0, ageOne("Conjured Mana Cake", -1, 3).Quality)
}

// ---- Saturation ----

func TestSellIn_SaturatesAtMinInt(t *testing.T) {
	for _, name := range []string{"Vest", NameAgedBrie, NameBackstagePass, "Conjured Mana Cake"} {
		it := ageOne(name, math.MinInt, 10)
		assert.Equal(t, math.MinInt, it.SellIn, name)
		assert.GreaterOrEqual(t, it.Quality, MinQuality, name)
		assert.LessOrEqual(t, it.Quality, MaxQuality, name)
	}
}

func TestQuality_ExtremeInputsDoNotOverflow(t *testing.T) {
	assert.Equal(t, 50, ageOne(NameAgedBrie, -1, math.MaxInt).Quality)
	assert.Equal(t, 0, ageOne("Conjured Mana Cake", -1, math.MinInt).Quality)
	assert.Equal(t, 50, ageOne(NameBackstagePass, 3, math.MaxInt).Quality)
}

func TestAddSat(t *testing.T) {
	assert.Equal(t, 3, addSat(1, 2))
	assert.Equal(t, math.MaxInt, addSat(math.MaxInt-1, 5))
	assert.Equal(t, math.MinInt, addSat(math.MinInt+1, -5))
	assert.Equal(t, math.MinInt+3, addSat(math.MinInt, 3))
}

// ---- AdvanceOneDay ----

func TestAdvanceOneDay_UpdatesEveryItemInOrder(t *testing.T) {
	items := []Item{
		{Name: "+5 Dexterity Vest", SellIn: 10, Quality: 20},
		{Name: NameAgedBrie, SellIn: 2, Quality: 0},
		{Name: NameSulfuras, SellIn: 0, Quality: 80},
		{Name: NameBackstagePass, SellIn: 15, Quality: 20},
		{Name: "Conjured Mana Cake", SellIn: 3, Quality: 6},
	}
	AdvanceOneDay(items)

	require.Len(t, items, 5)
	assert.Equal(t, Item{Name: "+5 Dexterity Vest", SellIn: 9, Quality: 19}, items[0])
	assert.Equal(t, Item{Name: NameAgedBrie, SellIn: 1, Quality: 1}, items[1])
	assert.Equal(t, Item{Name: NameSulfuras, SellIn: 1, Quality: 80}, items[2])
	assert.Equal(t, Item{Name: NameBackstagePass, SellIn: 14, Quality: 21}, items[3])
	assert.Equal(t, Item{Name: "Conjured Mana Cake", SellIn: 2, Quality: 4}, items[4])
}

func TestAdvanceOneDay_Empty(t *testing.T) {
	AdvanceOneDay(nil)
	AdvanceOneDay([]Item{})
}

func TestAdvanceOneDay_RenameChangesRule(t *testing.T) {
	items := []Item{{Name: "Mana Cake", SellIn: 5, Quality: 10}}
	AdvanceOneDay(items)
	assert.Equal(t, 9, items[0].Quality)

	items[0].Name = "Conjured Mana Cake"
	AdvanceOneDay(items)
	assert.Equal(t, 7, items[0].Quality)
}

func TestAdvanceOneDay_Deterministic(t *testing.T) {
	seed := []Item{
		{Name: "Vest", SellIn: 1, Quality: 7},
		{Name: NameBackstagePass, SellIn: 6, Quality: 44},
		{Name: NameSulfuras, SellIn: -1, Quality: 80},
	}
	a := append([]Item(nil), seed...)
	b := append([]Item(nil), seed...)
	for i := 0; i < 2; i++ {
		AdvanceOneDay(a)
		AdvanceOneDay(b)
	}
	assert.Equal(t, a, b)
	assert.NotEqual(t, seed, a)
}

func TestAdvanceOneDay_InvariantsOverManyDays(t *testing.T) {
	items := DefaultFixture()
	for day := 0; day < 60; day++ {
		before := append([]Item(nil), items...)
		AdvanceOneDay(items)
		for i, it := range items {
			if it.Category() == Legendary {
				assert.Equal(t, LegendaryQuality, it.Quality)
				assert.GreaterOrEqual(t, it.SellIn, before[i].SellIn)
				continue
			}
			assert.Equal(t, before[i].SellIn-1, it.SellIn, it.Name)
			assert.GreaterOrEqual(t, it.Quality, MinQuality, it.Name)
			assert.LessOrEqual(t, it.Quality, MaxQuality, it.Name)
		}
	}
}

// ---- Forecast ----

func TestForecast_Snapshots(t *testing.T) {
	items := []Item{{Name: NameAgedBrie, SellIn: 1, Quality: 0}}
	days := Forecast(items, 3)

	require.Len(t, days, 4)
	assert.Equal(t, Item{Name: NameAgedBrie, SellIn: 1, Quality: 0}, days[0][0])
	assert.Equal(t, Item{Name: NameAgedBrie, SellIn: 0, Quality: 1}, days[1][0])
	assert.Equal(t, Item{Name: NameAgedBrie, SellIn: -1, Quality: 3}, days[2][0])
	assert.Equal(t, Item{Name: NameAgedBrie, SellIn: -2, Quality: 5}, days[3][0])

	// Input untouched.
	assert.Equal(t, 1, items[0].SellIn)
}

func TestForecast_NegativeDays(t *testing.T) {
	days := Forecast([]Item{{Name: "Vest", SellIn: 1, Quality: 1}}, -5)
	require.Len(t, days, 1)
	assert.Equal(t, 1, days[0][0].SellIn)
}

func TestItem_Overdue(t *testing.T) {
	assert.True(t, (&Item{SellIn: -1}).Overdue())
	assert.False(t, (&Item{SellIn: 0}).Overdue())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Item{Name: NameSulfuras, SellIn: 3, Quality: 80}, Normalize(Item{Name: NameSulfuras, SellIn: 3, Quality: 10}))
	assert.Equal(t, 50, Normalize(Item{Name: "Vest", Quality: 99}).Quality)
	assert.Equal(t, 0, Normalize(Item{Name: "Vest", Quality: -1}).Quality)
	assert.Equal(t, 17, Normalize(Item{Name: NameAgedBrie, SellIn: -9, Quality: 17}).Quality)
	assert.Equal(t, -9, Normalize(Item{Name: NameAgedBrie, SellIn: -9, Quality: 17}).SellIn)
}
