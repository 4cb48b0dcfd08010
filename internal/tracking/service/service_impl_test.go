package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/utilitybilling/internal/clock"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"github.com/smallbiznis/utilitybilling/internal/tracking/repository"
	"github.com/smallbiznis/utilitybilling/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (trackingdomain.Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &trackingdomain.ConsumptionTracking{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	return New(Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(db),
		Clock: clk,
	}), clk
}

func reading(contract string, value int64, date string) trackingdomain.PostpaidEntry {
	return trackingdomain.PostpaidEntry{ContractNumber: contract, IndexValue: decimal.NewFromInt(value), IndexDate: date}
}

func TestPostpaidCarryForwardAcrossBatches(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	echoed, err := svc.CreatePostpaidBatch(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 100, "2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, []trackingdomain.PostpaidEntry{reading("C-1", 100, "2024-03-01")}, echoed)

	clk.AdvanceDays(30)
	_, err = svc.CreatePostpaidBatch(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 50, "2024-03-31")})
	require.NoError(t, err)

	last, err := svc.GetLastByContract(ctx, trackingdomain.TrackingTypePostpaid, "C-1")
	require.NoError(t, err)
	require.NotNil(t, last)

	info, ok := last.Postpaid()
	require.True(t, ok)
	assert.True(t, info.TotalPowerConsumed.Equal(decimal.NewFromInt(150)))
	assert.True(t, info.LastIndexValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "2024-03-01", info.LastIndexDate)
	assert.Equal(t, "2024-05-01", info.NextTrackingDate)
	assert.False(t, last.IsInvoiced)
}

func TestPostpaidCarryForwardWithinBatch(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.RecordPostpaid(context.Background(), []trackingdomain.PostpaidEntry{
		reading("C-1", 100, "2024-03-01"),
		reading("C-2", 7, "2024-03-01"),
		reading("C-1", 50, "2024-03-31"),
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	third, _ := created[2].Postpaid()
	assert.True(t, third.TotalPowerConsumed.Equal(decimal.NewFromInt(150)))
	assert.True(t, third.LastIndexValue.Equal(decimal.NewFromInt(100)))

	second, _ := created[1].Postpaid()
	assert.True(t, second.TotalPowerConsumed.Equal(decimal.NewFromInt(7)))
	assert.True(t, second.LastIndexValue.IsZero())
	assert.Empty(t, second.LastIndexDate)
}

func TestPrepaidCarryForwardAndInvoicedDefault(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, amount := range []int64{20, 30} {
		_, err := svc.RecordPrepaid(ctx, []trackingdomain.PrepaidEntry{{
			ContractNumber:     "P-9",
			PowerRecharged:     decimal.NewFromInt(amount),
			PowerRechargedDate: "2024-03-01",
		}})
		require.NoError(t, err)
	}

	last, err := svc.GetLastByContract(ctx, trackingdomain.TrackingTypePrepaid, "P-9")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, last.IsInvoiced)

	info, ok := last.Prepaid()
	require.True(t, ok)
	assert.True(t, info.TotalPowerRecharged.Equal(decimal.NewFromInt(50)))
	assert.True(t, info.LastPowerRecharged.Equal(decimal.NewFromInt(20)))

	invoiced, err := svc.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePrepaid, last.TrackingNumber)
	require.NoError(t, err)
	assert.NotNil(t, invoiced)
}

func TestTypesAreIsolated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 10, "2024-03-01")})
	require.NoError(t, err)

	_, err = svc.GetByNumber(ctx, trackingdomain.TrackingTypePrepaid, created[0].TrackingNumber)
	assert.ErrorIs(t, err, trackingdomain.ErrNotFound)

	last, err := svc.GetLastByContract(ctx, trackingdomain.TrackingTypePrepaid, "C-1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestMarkInvoicedFlipsFlag(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 10, "2024-03-01")})
	require.NoError(t, err)
	number := created[0].TrackingNumber

	pending, err := svc.GetUninvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
	require.NoError(t, err)
	require.NotNil(t, pending)

	clk.Advance(time.Hour)
	require.NoError(t, svc.MarkInvoiced(ctx, []*trackingdomain.ConsumptionTracking{pending}))

	pending, err = svc.GetUninvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
	require.NoError(t, err)
	assert.Nil(t, pending)

	done, err := svc.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.True(t, done.UpdatedAt.Equal(clk.Now()))
	assert.True(t, done.CreatedAt.Before(done.UpdatedAt))
}

func TestDeactivate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 10, "2024-03-01")})
	require.NoError(t, err)
	number := created[0].TrackingNumber

	require.NoError(t, svc.Deactivate(ctx, trackingdomain.TrackingTypePostpaid, number))

	_, err = svc.GetByNumber(ctx, trackingdomain.TrackingTypePostpaid, number)
	assert.ErrorIs(t, err, trackingdomain.ErrNotFound)

	err = svc.Deactivate(ctx, trackingdomain.TrackingTypePostpaid, number)
	assert.ErrorIs(t, err, trackingdomain.ErrNotFound)

	err = svc.Deactivate(ctx, trackingdomain.TrackingTypePostpaid, "missing")
	assert.ErrorIs(t, err, trackingdomain.ErrNotFound)
}

func TestListByContractNewestFirst(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for i, value := range []int64{1, 2, 3} {
		if i > 0 {
			clk.AdvanceDays(1)
		}
		_, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", value, "2024-03-01")})
		require.NoError(t, err)
	}

	page, err := svc.ListByContract(ctx, trackingdomain.TrackingTypePostpaid, "C-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	first, _ := page[0].Postpaid()
	second, _ := page[1].Postpaid()
	assert.True(t, first.IndexValue.Equal(decimal.NewFromInt(3)))
	assert.True(t, second.IndexValue.Equal(decimal.NewFromInt(2)))

	rest, err := svc.ListByContract(ctx, trackingdomain.TrackingTypePostpaid, "C-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestSameInstantOrderedByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 1, "2024-03-01")})
	require.NoError(t, err)
	created, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("C-1", 2, "2024-03-01")})
	require.NoError(t, err)

	last, err := svc.GetLastByContract(ctx, trackingdomain.TrackingTypePostpaid, "C-1")
	require.NoError(t, err)
	assert.Equal(t, created[0].TrackingNumber, last.TrackingNumber)
}

func TestRecordValidatesEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordPostpaid(ctx, nil)
	assert.ErrorIs(t, err, trackingdomain.ErrEmptyBatch)

	_, err = svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading(" ", 1, "")})
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidContract)

	_, err = svc.RecordPrepaid(ctx, []trackingdomain.PrepaidEntry{{ContractNumber: "P", PowerRecharged: decimal.NewFromInt(-1)}})
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidValue)

	_, err = svc.GetByNumber(ctx, trackingdomain.TrackingType("hybrid"), "x")
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidType)
}

func TestListUninvoicedOldestFirst(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	first, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("A", 1, "2024-03-01")})
	require.NoError(t, err)
	clk.AdvanceDays(1)
	second, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{reading("B", 1, "2024-03-02")})
	require.NoError(t, err)

	pending, err := svc.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 0, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first[0].TrackingNumber, pending[0].TrackingNumber)

	pending, err = svc.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second[0].TrackingNumber, pending[0].TrackingNumber)
}

func TestMarkInvoicedUpdatesWholeBatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordPostpaid(ctx, []trackingdomain.PostpaidEntry{
		reading("C-1", 10, "2024-03-01"),
		reading("C-2", 20, "2024-03-01"),
		reading("C-3", 30, "2024-03-01"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.MarkInvoiced(ctx, created))

	pending, err := svc.ListUninvoiced(ctx, trackingdomain.TrackingTypePostpaid, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	for _, tr := range created {
		done, err := svc.GetInvoicedByNumber(ctx, trackingdomain.TrackingTypePostpaid, tr.TrackingNumber)
		require.NoError(t, err)
		assert.NotNil(t, done, tr.TrackingNumber)
	}
}
