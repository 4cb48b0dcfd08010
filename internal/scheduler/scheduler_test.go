package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"github.com/smallbiznis/utilitybilling/internal/invoice/builder"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/utilitybilling/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/utilitybilling/internal/invoice/service"
	obsmetrics "github.com/smallbiznis/utilitybilling/internal/observability/metrics"
	pricingservice "github.com/smallbiznis/utilitybilling/internal/pricing/service"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	trackingrepository "github.com/smallbiznis/utilitybilling/internal/tracking/repository"
	trackingservice "github.com/smallbiznis/utilitybilling/internal/tracking/service"
	"github.com/smallbiznis/utilitybilling/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLocker struct {
	held       bool
	err        error
	released   int
	acquiredAt []string
}

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.err != nil {
		return "", false, l.err
	}
	if l.held {
		return "", false, nil
	}
	l.acquiredAt = append(l.acquiredAt, key)
	return "token", true, nil
}

func (l *stubLocker) Release(context.Context, string, string) error {
	l.released++
	return nil
}

type fixture struct {
	sched    *Scheduler
	tracking trackingdomain.Service
	invoices invoicedomain.Repository
	locker   *stubLocker
	registry *prometheus.Registry
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	db := dbtest.Open(t, &trackingdomain.ConsumptionTracking{}, &invoicedomain.Invoice{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	registry := prometheus.NewRegistry()

	tracking := trackingservice.New(trackingservice.Params{
		Log:   log,
		GenID: node,
		Repo:  trackingrepository.Provide(db),
		Clock: clk,
	})
	invoiceRepo := invoicerepository.Provide(db)
	invoices := invoiceservice.New(invoiceservice.Params{
		Log:      log,
		GenID:    node,
		Repo:     invoiceRepo,
		Tracking: tracking,
		Builder: builder.New(builder.Params{
			Pricing: pricingservice.New(pricingservice.Params{Log: log, Pricing: config.DefaultPricingConfig()}),
			Billing: config.DefaultBillingConfig(),
			Clock:   clk,
		}),
		Clock: clk,
	})

	locker := &stubLocker{}
	sched, err := New(Params{
		Log:      log,
		GenID:    node,
		Tracking: tracking,
		Invoices: invoices,
		Locker:   locker,
		Clock:    clk,
		Config:   cfg,
		Metrics:  obsmetrics.NewSchedulerMetrics(obsmetrics.Config{ServiceName: "utilitybilling", Environment: "test"}, registry),
	})
	require.NoError(t, err)

	return fixture{sched: sched, tracking: tracking, invoices: invoiceRepo, locker: locker, registry: registry}
}

func (f fixture) record(t *testing.T, count int) []string {
	t.Helper()
	entries := make([]trackingdomain.PostpaidEntry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, trackingdomain.PostpaidEntry{
			ContractNumber: fmt.Sprintf("C-%d", i),
			IndexValue:     decimal.NewFromInt(int64(50 + i)),
			IndexDate:      "2024-06-01",
		})
	}
	created, err := f.tracking.RecordPostpaid(context.Background(), entries)
	require.NoError(t, err)

	numbers := make([]string, 0, len(created))
	for _, c := range created {
		numbers = append(numbers, c.TrackingNumber)
	}
	return numbers
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, m := range family.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestRunOnceInvoicesAllPendingTrackingsAcrossBatches(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2, MaxBatchesPerRun: 5})
	ctx := context.Background()
	numbers := f.record(t, 5)

	require.NoError(t, f.sched.RunOnce(ctx))

	pending, err := f.tracking.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, number := range numbers {
		tracking, err := f.tracking.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
		require.NoError(t, err)
		require.NotNil(t, tracking)

		invoice, err := f.invoices.FindByTrackingID(ctx, tracking.ID)
		require.NoError(t, err)
		assert.NotNil(t, invoice)
	}
	assert.Equal(t, 1, f.locker.released)
	assert.Equal(t, 5.0, counterValue(t, f.registry, "utilitybilling_scheduler_batch_processed_total"))
}

func TestRunOnceStepsOverUnpriceableTracking(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2, MaxBatchesPerRun: 5})
	ctx := context.Background()

	bad, err := f.tracking.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{{
		ContractNumber: "C-BAD",
		IndexValue:     decimal.RequireFromString("2000000000000"),
		IndexDate:      "2024-06-01",
	}})
	require.NoError(t, err)
	valid := f.record(t, 3)

	for run := 0; run < 2; run++ {
		require.NoError(t, f.sched.RunOnce(ctx))
	}

	for _, number := range valid {
		tracking, err := f.tracking.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
		require.NoError(t, err)
		assert.NotNil(t, tracking, number)
	}

	pending, err := f.tracking.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bad[0].TrackingNumber, pending[0].TrackingNumber)
	assert.Equal(t, 3.0, counterValue(t, f.registry, "utilitybilling_scheduler_batch_processed_total"))
	assert.Equal(t, 2.0, counterValue(t, f.registry, "utilitybilling_scheduler_unpriced_total"))
	assert.Equal(t, 0.0, counterValue(t, f.registry, "utilitybilling_scheduler_job_errors_total"))
}

func TestRunOnceHonoursBatchBound(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 1, MaxBatchesPerRun: 2})
	ctx := context.Background()
	f.record(t, 3)

	require.NoError(t, f.sched.RunOnce(ctx))

	pending, err := f.tracking.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunOnceWithNothingPending(t *testing.T) {
	f := newFixture(t, Config{})

	assert.NoError(t, f.sched.RunOnce(context.Background()))
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	f := newFixture(t, Config{})
	f.locker.held = true
	f.record(t, 1)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	pending, err := f.tracking.ListUninvoiced(context.Background(), trackingdomain.TrackingTypePostpaid, 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, 0, f.locker.released)
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	f := newFixture(t, Config{})
	f.locker.err = errors.New("redis down")

	err := f.sched.RunOnce(context.Background())
	assert.ErrorContains(t, err, "acquire lock")
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProvideConfigAppliesDefaults(t *testing.T) {
	cfg := ProvideConfig(config.Config{SchedulerEnabled: true})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, DefaultConfig().RunInterval, cfg.RunInterval)
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)
}

func TestRedisLockerIsExclusive(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewRedisLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "job", "someone-else"))
	assert.True(t, srv.Exists("job"))

	require.NoError(t, locker.Release(ctx, "job", token))
	assert.False(t, srv.Exists("job"))
}

func TestProvideLockerFallsBackWithoutRedis(t *testing.T) {
	locker := ProvideLocker(lockerParams{})

	_, ok, err := locker.TryLock(context.Background(), "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
