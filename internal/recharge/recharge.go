package recharge

import (
	"context"
	"fmt"

	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/smallbiznis/utilitybilling/internal/observability/logger"
	"github.com/smallbiznis/utilitybilling/internal/observability/tracing"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Tracking trackingdomain.Service
	Invoices invoicedomain.Service
}

// Service records prepaid recharges and issues their invoices in one call.
type Service struct {
	log      *zap.Logger
	tracking trackingdomain.Service
	invoices invoicedomain.Service
}

func New(p Params) *Service {
	return &Service{
		log:      p.Log.Named("recharge.service"),
		tracking: p.Tracking,
		invoices: p.Invoices,
	}
}

// Record persists the recharges, then invoices them. Trackings stay
// persisted when invoicing fails.
func (s *Service) Record(ctx context.Context, entries []trackingdomain.PrepaidEntry) (_ []trackingdomain.PrepaidEntry, err error) {
	ctx, end := tracing.Start(ctx, "recharge.record", attribute.Int("entry_count", len(entries)))
	defer func() { end(err) }()

	trackings, err := s.tracking.RecordPrepaid(ctx, entries)
	if err != nil {
		return nil, err
	}

	numbers := make([]string, 0, len(trackings))
	for _, t := range trackings {
		numbers = append(numbers, t.TrackingNumber)
	}

	if _, err := s.invoices.CreatePrepaidBatch(ctx, numbers); err != nil {
		logger.WithContext(ctx, s.log).Error("prepaid invoicing failed after recording recharges",
			zap.Strings("tracking_numbers", numbers),
			zap.Error(err),
		)
		return nil, fmt.Errorf("invoice recharges: %w", err)
	}
	return entries, nil
}
