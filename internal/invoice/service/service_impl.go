package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/invoice/builder"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/smallbiznis/utilitybilling/internal/observability/logger"
	"github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	"github.com/smallbiznis/utilitybilling/internal/observability/tracing"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     invoicedomain.Repository
	Tracking trackingdomain.Service
	Builder  *builder.Builder
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	genID    *snowflake.Node
	repo     invoicedomain.Repository
	tracking trackingdomain.Service
	builder  *builder.Builder
	clock    clock.Clock
	metrics  *metrics.Metrics
}

func New(p Params) invoicedomain.Service {
	return &Service{
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		tracking: p.Tracking,
		builder:  p.Builder,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

// CreatePostpaidBatch issues one invoice per uninvoiced postpaid tracking
// and then marks those trackings invoiced. Numbers without an eligible
// tracking are skipped. Invoices already persisted are kept if marking fails.
func (s *Service) CreatePostpaidBatch(ctx context.Context, trackingNumbers []string) (created []string, err error) {
	ctx, end := tracing.Start(ctx, "invoice.create_postpaid_batch", attribute.Int("tracking_count", len(trackingNumbers)))
	defer func() { end(err) }()

	var (
		invoices  []*invoicedomain.Invoice
		trackings []*trackingdomain.ConsumptionTracking
		skipped   []string
	)
	for _, number := range dedupe(trackingNumbers) {
		tracking, err := s.tracking.GetUninvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
		if err != nil {
			return nil, err
		}
		if tracking == nil {
			skipped = append(skipped, number)
			continue
		}

		info, err := s.builder.Postpaid(tracking)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, s.newInvoice(tracking, invoicedomain.InvoiceTypePostpaid, info))
		trackings = append(trackings, tracking)
		created = append(created, number)
	}

	s.reportSkipped(ctx, invoicedomain.InvoiceTypePostpaid, skipped)
	if len(invoices) == 0 {
		return nil, invoicedomain.ErrNoCandidates
	}

	if err := s.repo.BatchInsert(ctx, invoices); err != nil {
		return nil, fmt.Errorf("insert postpaid invoices: %w", err)
	}
	s.metrics.RecordInvoicesCreated(string(invoicedomain.InvoiceTypePostpaid), len(invoices))

	if err := s.tracking.MarkInvoiced(ctx, trackings); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("postpaid invoices created", zap.Int("count", len(invoices)))
	return created, nil
}

// CreatePrepaidBatch issues invoices for prepaid trackings. A tracking that
// already owns an invoice is skipped like a missing one.
func (s *Service) CreatePrepaidBatch(ctx context.Context, trackingNumbers []string) (created []string, err error) {
	ctx, end := tracing.Start(ctx, "invoice.create_prepaid_batch", attribute.Int("tracking_count", len(trackingNumbers)))
	defer func() { end(err) }()

	var (
		invoices []*invoicedomain.Invoice
		skipped  []string
	)
	for _, number := range dedupe(trackingNumbers) {
		tracking, err := s.tracking.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePrepaid, number)
		if err != nil {
			return nil, err
		}
		if tracking == nil {
			skipped = append(skipped, number)
			continue
		}

		existing, err := s.repo.FindByTrackingID(ctx, tracking.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			skipped = append(skipped, number)
			continue
		}

		info, err := s.builder.Prepaid(tracking)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, s.newInvoice(tracking, invoicedomain.InvoiceTypePrepaid, info))
		created = append(created, number)
	}

	s.reportSkipped(ctx, invoicedomain.InvoiceTypePrepaid, skipped)
	if len(invoices) == 0 {
		return nil, invoicedomain.ErrNoCandidates
	}

	if err := s.repo.BatchInsert(ctx, invoices); err != nil {
		return nil, fmt.Errorf("insert prepaid invoices: %w", err)
	}
	s.metrics.RecordInvoicesCreated(string(invoicedomain.InvoiceTypePrepaid), len(invoices))

	logger.WithContext(ctx, s.log).Info("prepaid invoices created", zap.Int("count", len(invoices)))
	return created, nil
}

func (s *Service) GetByNumber(ctx context.Context, invoiceType invoicedomain.InvoiceType, number string) (*invoicedomain.Invoice, error) {
	if !invoiceType.Valid() {
		return nil, invoicedomain.ErrInvalidType
	}
	invoice, err := s.repo.FindByNumber(ctx, invoiceType, number)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) ListByContract(ctx context.Context, invoiceType invoicedomain.InvoiceType, contract string, offset, limit int) ([]*invoicedomain.Invoice, error) {
	if !invoiceType.Valid() {
		return nil, invoicedomain.ErrInvalidType
	}
	return s.repo.ListByContract(ctx, invoiceType, contract, offset, limit)
}

func (s *Service) GetLastByContract(ctx context.Context, invoiceType invoicedomain.InvoiceType, contract string) (*invoicedomain.Invoice, error) {
	if !invoiceType.Valid() {
		return nil, invoicedomain.ErrInvalidType
	}
	return s.repo.FindLastByContract(ctx, invoiceType, contract)
}

func (s *Service) Deactivate(ctx context.Context, invoiceType invoicedomain.InvoiceType, number string) error {
	invoice, err := s.GetByNumber(ctx, invoiceType, number)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	invoice.IsActivated = false
	invoice.UpdatedAt = now
	invoice.DeletedAt = &now
	if err := s.repo.UpdateVersioned(ctx, invoice); err != nil {
		return err
	}

	logger.WithContext(ctx, s.log).Info("invoice deactivated",
		zap.String("invoice_type", string(invoiceType)),
		zap.String("invoice_number", number),
	)
	return nil
}

func (s *Service) newInvoice(tracking *trackingdomain.ConsumptionTracking, invoiceType invoicedomain.InvoiceType, info invoicedomain.InvoiceInfo) *invoicedomain.Invoice {
	now := s.clock.Now()
	return &invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		InvoiceNumber:  uuid.NewString(),
		TrackingID:     tracking.ID,
		InvoiceType:    invoiceType,
		ContractNumber: info.Contract(),
		Version:        1,
		Info:           info,
		IsActivated:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) reportSkipped(ctx context.Context, invoiceType invoicedomain.InvoiceType, skipped []string) {
	if len(skipped) == 0 {
		return
	}
	s.metrics.RecordBatchSkipped(string(invoiceType), len(skipped))
	logger.WithContext(ctx, s.log).Info("tracking numbers skipped",
		zap.String("invoice_type", string(invoiceType)),
		zap.Strings("tracking_numbers", skipped),
	)
}

func dedupe(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, number := range numbers {
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		out = append(out, number)
	}
	return out
}
