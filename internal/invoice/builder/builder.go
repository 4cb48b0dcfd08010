// Package builder prices a tracking and turns it into an invoice payload.
package builder

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	pricingdomain "github.com/smallbiznis/utilitybilling/internal/pricing/domain"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Pricing pricingdomain.Service
	Billing config.BillingConfig
	Clock   clock.Clock
}

type Builder struct {
	pricing pricingdomain.Service
	billing config.BillingConfig
	clock   clock.Clock
}

func New(p Params) *Builder {
	return &Builder{
		pricing: p.Pricing,
		billing: p.Billing,
		clock:   p.Clock,
	}
}

// Postpaid prices the reading on the postpaid segment and seeds the dunning
// list with the initial notification.
func (b *Builder) Postpaid(tracking *trackingdomain.ConsumptionTracking) (*invoicedomain.PostpaidInvoiceInfo, error) {
	reading, ok := tracking.Postpaid()
	if !ok {
		return nil, fmt.Errorf("tracking %s: %w", tracking.TrackingNumber, invoicedomain.ErrNotPostpaid)
	}

	unitPrice, err := b.pricing.PostpaidUnitPrice(b.billing.PostpaidSegment, reading.IndexValue)
	if err != nil {
		return nil, fmt.Errorf("price tracking %s: %w", tracking.TrackingNumber, err)
	}

	now := b.clock.Now()
	ht := unitPrice.Mul(reading.IndexValue)
	ttc := b.withVAT(ht)

	return &invoicedomain.PostpaidInvoiceInfo{
		ContractNumber:          reading.ContractNumber,
		CustomerNumber:          reading.CustomerNumber,
		InvoiceType:             invoicedomain.InvoiceTypePostpaid,
		InvoiceDate:             now,
		VATRate:                 b.billing.VATRate,
		IndexValue:              reading.IndexValue,
		LastIndexValue:          reading.LastIndexValue,
		TotalPowerConsumed:      reading.TotalPowerConsumed,
		UnitPrice:               unitPrice,
		TotalAmountHT:           ht,
		TotalAmountTTC:          ttc,
		AmountPaid:              decimal.Zero,
		RemainingAmount:         ttc,
		PaymentDeadline:         b.billing.MonthlyDeadlineDays,
		DeadlineMeasurementUnit: invoicedomain.DeadlineUnitDay,
		InvoicingFrequency:      invoicedomain.FrequencyMonthly,
		Status:                  invoicedomain.InvoiceStatusNotPaid,
		DunningMax:              b.billing.DunningMax,
		Dunning: []invoicedomain.Dunning{{
			Name:             invoicedomain.DunningNameNotification,
			Date:             now,
			Rank:             0,
			DelayPenaltyRate: decimal.Zero,
			TotalAmountHT:    ht,
			TotalAmountTTC:   ttc,
			PaymentDeadline:  b.billing.MonthlyDeadlineDays,
		}},
	}, nil
}

// Prepaid prices the recharge on the prepaid segment. Recharges are paid
// before consumption, so the invoice is issued as paid.
func (b *Builder) Prepaid(tracking *trackingdomain.ConsumptionTracking) (*invoicedomain.PrepaidInvoiceInfo, error) {
	recharge, ok := tracking.Prepaid()
	if !ok {
		return nil, fmt.Errorf("tracking %s has no prepaid infos", tracking.TrackingNumber)
	}

	unitPrice, err := b.pricing.PrepaidUnitPrice(b.billing.PrepaidSegment, recharge.PowerRecharged)
	if err != nil {
		return nil, fmt.Errorf("price tracking %s: %w", tracking.TrackingNumber, err)
	}

	ht := unitPrice.Mul(recharge.PowerRecharged)
	ttc := b.withVAT(ht)

	return &invoicedomain.PrepaidInvoiceInfo{
		ContractNumber:      recharge.ContractNumber,
		CustomerNumber:      recharge.CustomerNumber,
		InvoiceType:         invoicedomain.InvoiceTypePrepaid,
		InvoiceDate:         b.clock.Now(),
		VATRate:             b.billing.VATRate,
		PowerRecharged:      recharge.PowerRecharged,
		LastPowerRecharged:  recharge.LastPowerRecharged,
		TotalPowerRecharged: recharge.TotalPowerRecharged,
		UnitPrice:           unitPrice,
		TotalAmountHT:       ht,
		TotalAmountTTC:      ttc,
		AmountPaid:          ttc,
		Status:              invoicedomain.InvoiceStatusPaid,
	}, nil
}

func (b *Builder) withVAT(ht decimal.Decimal) decimal.Decimal {
	return ht.Mul(decimal.NewFromInt(1).Add(b.billing.VATRate))
}
