package card

// sizeBreakpoints are the upper bounds (exclusive) of each size category.
var sizeBreakpoints = []struct {
	limit    int64
	category string
}{
	{1_000, "n<1K"},
	{10_000, "1K<n<10K"},
	{100_000, "10K<n<100K"},
	{1_000_000, "100K<n<1M"},
	{10_000_000, "1M<n<10M"},
	{100_000_000, "10M<n<100M"},
	{1_000_000_000, "100M<n<1B"},
	{10_000_000_000, "1B<n<10B"},
	{100_000_000_000, "10B<n<100B"},
	{1_000_000_000_000, "100B<n<1T"},
}

// SizeCategory maps a row count to its dataset size category label.
func SizeCategory(n int64) string {
	for _, b := range sizeBreakpoints {
		if n < b.limit {
			return b.category
		}
	}
	return "n>1T"
}

// SizeCategories lists every label in ascending order.
func SizeCategories() []string {
	out := make([]string, 0, len(sizeBreakpoints)+1)
	for _, b := range sizeBreakpoints {
		out = append(out, b.category)
	}
	return append(out, "n>1T")
}
