package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Service interface {
	PostpaidUnitPrice(segment string, quantity decimal.Decimal) (decimal.Decimal, error)
	PrepaidUnitPrice(segment string, quantity decimal.Decimal) (decimal.Decimal, error)
	Catalogs() Catalogs
}

var (
	ErrNoMatchingTier  = errors.New("no_matching_tier")
	ErrUnknownSegment  = errors.New("unknown_pricing_segment")
	ErrInvalidQuantity = errors.New("invalid_quantity")
)

// NoMatchingTierError reports a pricing table gap for a quantity. It matches
// ErrNoMatchingTier under errors.Is.
type NoMatchingTierError struct {
	Segment  string
	Quantity decimal.Decimal
}

func (e *NoMatchingTierError) Error() string {
	return fmt.Sprintf("no pricing tier in segment %q covers quantity %s", e.Segment, e.Quantity.String())
}

func (e *NoMatchingTierError) Is(target error) bool {
	return target == ErrNoMatchingTier
}
