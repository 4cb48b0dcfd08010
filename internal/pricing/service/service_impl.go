package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/utilitybilling/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	catalogPostpaid = "postpaid"
	catalogPrepaid  = "prepaid"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Pricing config.PricingConfig
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	metrics  *metrics.Metrics
	catalogs pricingdomain.Catalogs
}

func New(p Params) pricingdomain.Service {
	return &Service{
		log:     p.Log.Named("pricing.service"),
		metrics: p.Metrics,
		catalogs: pricingdomain.Catalogs{
			Postpaid: toCatalog(p.Pricing.Postpaid),
			Prepaid:  toCatalog(p.Pricing.Prepaid),
		},
	}
}

func (s *Service) PostpaidUnitPrice(segment string, quantity decimal.Decimal) (decimal.Decimal, error) {
	return s.unitPrice(catalogPostpaid, s.catalogs.Postpaid, segment, quantity)
}

func (s *Service) PrepaidUnitPrice(segment string, quantity decimal.Decimal) (decimal.Decimal, error) {
	return s.unitPrice(catalogPrepaid, s.catalogs.Prepaid, segment, quantity)
}

func (s *Service) Catalogs() pricingdomain.Catalogs {
	return s.catalogs
}

// CheckSegments fails when the billing segments are missing from the
// loaded catalogs, so a misconfiguration stops startup.
func CheckSegments(svc pricingdomain.Service, billing config.BillingConfig) error {
	catalogs := svc.Catalogs()
	if _, ok := catalogs.Postpaid[billing.PostpaidSegment]; !ok {
		return fmt.Errorf("%w: postpaid segment %q", pricingdomain.ErrUnknownSegment, billing.PostpaidSegment)
	}
	if _, ok := catalogs.Prepaid[billing.PrepaidSegment]; !ok {
		return fmt.Errorf("%w: prepaid segment %q", pricingdomain.ErrUnknownSegment, billing.PrepaidSegment)
	}
	return nil
}

func (s *Service) unitPrice(name string, catalog pricingdomain.Catalog, segment string, quantity decimal.Decimal) (decimal.Decimal, error) {
	table, ok := catalog[segment]
	if !ok {
		return decimal.Zero, pricingdomain.ErrUnknownSegment
	}

	price, err := UnitPriceFor(segment, table, quantity)
	if err != nil {
		s.log.Error("pricing tier lookup failed",
			zap.String("catalog", name),
			zap.String("segment", segment),
			zap.String("quantity", quantity.String()),
			zap.Error(err),
		)
		s.metrics.RecordTierMiss(name, segment)
		return decimal.Zero, err
	}
	return price, nil
}

// UnitPriceFor returns the unit price of the last slice in table whose
// closed range contains quantity.
func UnitPriceFor(segment string, table pricingdomain.Table, quantity decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, pricingdomain.ErrInvalidQuantity
	}

	var (
		price decimal.Decimal
		found bool
	)
	for _, slice := range table {
		if slice.Contains(quantity) {
			price = slice.UnitPrice
			found = true
		}
	}
	if !found {
		return decimal.Zero, &pricingdomain.NoMatchingTierError{Segment: segment, Quantity: quantity}
	}
	return price, nil
}

func toCatalog(src map[string][]config.SliceConfig) pricingdomain.Catalog {
	out := make(pricingdomain.Catalog, len(src))
	for segment, slices := range src {
		table := make(pricingdomain.Table, 0, len(slices))
		for _, s := range slices {
			table = append(table, pricingdomain.Slice{
				Name:       s.Name,
				LowerIndex: decimal.NewFromFloat(s.LowerIndex),
				UpperIndex: decimal.NewFromFloat(s.UpperIndex),
				UnitPrice:  decimal.NewFromFloat(s.UnitPrice),
			})
		}
		out[segment] = table
	}
	return out
}
