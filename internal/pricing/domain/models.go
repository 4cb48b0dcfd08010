package domain

import "github.com/shopspring/decimal"

// Slice is a price band: every quantity in [LowerIndex, UpperIndex] is billed at UnitPrice.
type Slice struct {
	Name       string          `json:"name"`
	LowerIndex decimal.Decimal `json:"lower_index"`
	UpperIndex decimal.Decimal `json:"upper_index"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Contains reports whether quantity falls inside the closed band.
func (s Slice) Contains(quantity decimal.Decimal) bool {
	return s.LowerIndex.LessThanOrEqual(quantity) && quantity.LessThanOrEqual(s.UpperIndex)
}

// Table is an ordered slice list for one customer segment. Order matters:
// overlapping bands resolve to the later entry.
type Table []Slice

// Catalog maps segment names to their pricing table.
type Catalog map[string]Table

// Catalogs holds the postpaid and prepaid catalogs, immutable after load.
type Catalogs struct {
	Postpaid Catalog
	Prepaid  Catalog
}
