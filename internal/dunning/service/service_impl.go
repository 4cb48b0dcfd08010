package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	dunningdomain "github.com/smallbiznis/utilitybilling/internal/dunning/domain"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/smallbiznis/utilitybilling/internal/observability/logger"
	"github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	"github.com/smallbiznis/utilitybilling/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Repo    invoicedomain.Repository
	Billing config.BillingConfig
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	repo    invoicedomain.Repository
	billing config.BillingConfig
	clock   clock.Clock
	metrics *metrics.Metrics
}

func New(p Params) dunningdomain.Service {
	return &Service{
		log:     p.Log.Named("dunning.service"),
		repo:    p.Repo,
		billing: p.Billing,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Advance(ctx context.Context, invoiceNumber string) (updated *invoicedomain.Invoice, err error) {
	ctx, end := tracing.Start(ctx, "dunning.advance", attribute.String("invoice_number", invoiceNumber))
	defer func() { end(err) }()

	invoice, err := s.repo.FindByNumber(ctx, invoicedomain.InvoiceTypePostpaid, invoiceNumber)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	info, ok := invoice.Postpaid()
	if !ok {
		return nil, invoicedomain.ErrNotPostpaid
	}

	now := s.clock.Now()
	next, err := NextNotice(info, now, s.billing)
	if err != nil {
		return nil, err
	}
	last, _ := info.LastDunning()
	penalty := next.DelayPenaltyRate.GreaterThan(last.DelayPenaltyRate)
	Apply(info, next, s.billing)

	invoice.UpdatedAt = now
	if err := s.repo.UpdateVersioned(ctx, invoice); err != nil {
		return nil, err
	}

	s.metrics.RecordDunningAdvanced(penalty)
	logger.WithContext(ctx, s.log).Info("dunning advanced",
		zap.String("invoice_number", invoiceNumber),
		zap.Int("rank", next.Rank),
		zap.Bool("penalty", penalty),
		zap.Int("payment_deadline", next.PaymentDeadline),
	)
	return invoice, nil
}

// NextNotice computes the notice that follows the highest-ranked entry of
// info without mutating it. The running deadline is reduced by the days
// elapsed since that entry and may go negative.
//
// Up to DunningMax the notice carries the prior rate and amounts unchanged.
// Past it each notice raises the rate by PenaltyStep and compounds the
// pre-tax amount by the new rate.
func NextNotice(info *invoicedomain.PostpaidInvoiceInfo, now time.Time, billing config.BillingConfig) (invoicedomain.Dunning, error) {
	last, ok := info.LastDunning()
	if !ok {
		return invoicedomain.Dunning{}, dunningdomain.ErrNoDunningHistory
	}
	if billing.MaxDunningRank > 0 && last.Rank >= billing.MaxDunningRank {
		return invoicedomain.Dunning{}, dunningdomain.ErrDunningLimitReached
	}

	deadline := info.PaymentDeadline - elapsedDays(last.Date, now)

	next := invoicedomain.Dunning{
		Name:             invoicedomain.DunningNameReminder,
		Date:             now,
		Rank:             last.Rank + 1,
		DelayPenaltyRate: last.DelayPenaltyRate,
		TotalAmountHT:    last.TotalAmountHT,
		TotalAmountTTC:   last.TotalAmountTTC,
		PaymentDeadline:  deadline,
	}
	if last.Rank >= info.DunningMax {
		next.DelayPenaltyRate = last.DelayPenaltyRate.Add(billing.PenaltyStep)
		next.TotalAmountHT = last.TotalAmountHT.Mul(one.Add(next.DelayPenaltyRate))
		next.TotalAmountTTC = next.TotalAmountHT.Mul(one.Add(billing.VATRate))
	}
	return next, nil
}

// Apply commits next onto info: the entry is appended, the deadline and
// balances follow it, and the previous status records the superseded step.
func Apply(info *invoicedomain.PostpaidInvoiceInfo, next invoicedomain.Dunning, billing config.BillingConfig) {
	last, _ := info.LastDunning()
	info.PreviousStatus = last.Label()

	penaltyDelta := next.TotalAmountHT.Sub(last.TotalAmountHT)
	info.Dunning = append(info.Dunning, next)
	info.PaymentDeadline = next.PaymentDeadline
	info.TotalAmountHT = info.TotalAmountHT.Add(penaltyDelta)
	info.TotalAmountTTC = info.TotalAmountHT.Mul(one.Add(billing.VATRate))
	info.RemainingAmount = info.TotalAmountTTC
}

var one = decimal.NewFromInt(1)

// elapsedDays counts calendar days between two instants in UTC.
func elapsedDays(from, to time.Time) int {
	from = from.UTC()
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = to.UTC()
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toDay.Sub(fromDay).Hours() / 24)
}
