package stock

// DefaultFixture returns the shop's reference shelf: one item of every kind,
// including the backstage-pass edge cases and two Sulfuras.
func DefaultFixture() []Item {
	return []Item{
		{Name: "+5 Dexterity Vest", SellIn: 10, Quality: 20},
		{Name: NameAgedBrie, SellIn: 2, Quality: 0},
		{Name: "Elixir of the Mongoose", SellIn: 5, Quality: 7},
		{Name: NameSulfuras, SellIn: 0, Quality: LegendaryQuality},
		{Name: NameSulfuras, SellIn: -1, Quality: LegendaryQuality},
		{Name: NameBackstagePass, SellIn: 15, Quality: 20},
		{Name: NameBackstagePass, SellIn: 10, Quality: 49},
		{Name: NameBackstagePass, SellIn: 5, Quality: 49},
		{Name: "Conjured Mana Cake", SellIn: 3, Quality: 6},
	}
}
