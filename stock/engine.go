package stock

// Age advances a single item by one day.
func (it *Item) Age() {
	it.SellIn, it.Quality = Classify(it.Name).Age(it.SellIn, it.Quality)
}

// AdvanceOneDay ages every item once, in slice order. Items are updated in
// place; the slice is never resized or reordered.
func AdvanceOneDay(items []Item) {
	for i := range items {
		items[i].Age()
	}
}

// Forecast returns days+1 snapshots of items: index 0 is a copy of the input
// and index n is the state after n daily updates. items is not modified.
func Forecast(items []Item, days int) [][]Item {
	if days < 0 {
		days = 0
	}
	out := make([][]Item, 0, days+1)
	cur := append([]Item(nil), items...)
	out = append(out, append([]Item(nil), cur...))
	for d := 0; d < days; d++ {
		AdvanceOneDay(cur)
		out = append(out, append([]Item(nil), cur...))
	}
	return out
}
