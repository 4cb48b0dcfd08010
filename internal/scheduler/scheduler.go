package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	obscontext "github.com/smallbiznis/utilitybilling/internal/observability/context"
	obslogger "github.com/smallbiznis/utilitybilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/utilitybilling/internal/pricing/domain"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobPostpaidInvoicing = "postpaid_invoicing"

	lockKeyPrefix = "utilitybilling:scheduler:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Tracking trackingdomain.Service
	Invoices invoicedomain.Service
	Locker   Locker
	Clock    clock.Clock
	Config   Config                       `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	tracking trackingdomain.Service
	invoices invoicedomain.Service
	locker   Locker
	metrics  *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Tracking == nil || p.Invoices == nil || p.Locker == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		tracking: p.Tracking,
		invoices: p.Invoices,
		locker:   p.Locker,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobPostpaidInvoicing, s.InvoicePostpaidJob)
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx = obscontext.WithRequestID(ctx, s.genID.Generate().String())
	ctx, _ = obscontext.EnsureCorrelationID(ctx)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", name))

	token, acquired, err := s.locker.TryLock(ctx, lockKeyPrefix+name, s.cfg.LockTTL)
	if err != nil {
		s.metrics.IncJobError(name)
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !acquired {
		s.metrics.IncLockSkipped(name)
		log.Debug("job skipped, lock held elsewhere")
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockKeyPrefix+name, token); err != nil {
			log.Warn("release job lock", zap.Error(err))
		}
	}()

	s.metrics.IncJobRun(name)
	err = fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out", zap.Duration("timeout", s.cfg.JobTimeout), zap.Error(err))
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// InvoicePostpaidJob drains uninvoiced postpaid trackings in batches until a
// batch comes back short or the per-run bound is reached. Trackings the
// pricing table cannot price stay uninvoiced and are stepped over.
func (s *Scheduler) InvoicePostpaidJob(ctx context.Context) error {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", JobPostpaidInvoicing))
	total := 0
	// Unpriced trackings remain at the head of the oldest-first queue.
	offset := 0

	for round := 0; round < s.cfg.MaxBatchesPerRun; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending, err := s.tracking.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, offset, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list uninvoiced trackings: %w", err)
		}
		if len(pending) == 0 {
			break
		}

		numbers := make([]string, 0, len(pending))
		for _, t := range pending {
			numbers = append(numbers, t.TrackingNumber)
		}

		created, err := s.invoices.CreatePostpaidBatch(ctx, numbers)
		if errors.Is(err, pricingdomain.ErrNoMatchingTier) {
			var unpriced []string
			created, unpriced, err = s.invoiceEach(ctx, numbers)
			if err != nil {
				return err
			}
			offset += len(unpriced)
			s.metrics.AddUnpriced(JobPostpaidInvoicing, len(unpriced))
			log.Error("trackings left uninvoiced: no pricing tier matches",
				zap.Strings("tracking_numbers", unpriced),
			)
		} else if errors.Is(err, invoicedomain.ErrNoCandidates) {
			break
		} else if err != nil {
			return err
		}

		total += len(created)
		s.metrics.AddBatchProcessed(JobPostpaidInvoicing, len(created))
		if len(pending) < s.cfg.BatchSize {
			break
		}
	}

	if total > 0 {
		log.Info("postpaid invoicing sweep finished", zap.Int("invoiced", total))
	}
	return nil
}

// invoiceEach invoices numbers one at a time so a single unpriceable
// tracking does not hold back the rest of its batch.
func (s *Scheduler) invoiceEach(ctx context.Context, numbers []string) (created, unpriced []string, err error) {
	for _, number := range numbers {
		done, err := s.invoices.CreatePostpaidBatch(ctx, []string{number})
		switch {
		case errors.Is(err, pricingdomain.ErrNoMatchingTier):
			unpriced = append(unpriced, number)
		case errors.Is(err, invoicedomain.ErrNoCandidates):
		case err != nil:
			return created, unpriced, err
		default:
			created = append(created, done...)
		}
	}
	return created, unpriced, nil
}
