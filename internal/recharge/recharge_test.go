package recharge

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type trackingMock struct {
	mock.Mock
	trackingdomain.Service
}

func (m *trackingMock) RecordPrepaid(ctx context.Context, entries []trackingdomain.PrepaidEntry) ([]*trackingdomain.ConsumptionTracking, error) {
	args := m.Called(ctx, entries)
	trackings, _ := args.Get(0).([]*trackingdomain.ConsumptionTracking)
	return trackings, args.Error(1)
}

type invoicesMock struct {
	mock.Mock
	invoicedomain.Service
}

func (m *invoicesMock) CreatePrepaidBatch(ctx context.Context, numbers []string) ([]string, error) {
	args := m.Called(ctx, numbers)
	created, _ := args.Get(0).([]string)
	return created, args.Error(1)
}

func entries() []trackingdomain.PrepaidEntry {
	return []trackingdomain.PrepaidEntry{
		{ContractNumber: "P-1", PowerRecharged: decimal.NewFromInt(10), PowerRechargedDate: "2024-06-01"},
		{ContractNumber: "P-2", PowerRecharged: decimal.NewFromInt(20), PowerRechargedDate: "2024-06-01"},
	}
}

func newService(tracking *trackingMock, invoices *invoicesMock) *Service {
	return New(Params{Log: zap.NewNop(), Tracking: tracking, Invoices: invoices})
}

func TestRecordInvoicesEveryRecordedTracking(t *testing.T) {
	tracking := &trackingMock{}
	invoices := &invoicesMock{}
	in := entries()

	tracking.On("RecordPrepaid", mock.Anything, in).Return([]*trackingdomain.ConsumptionTracking{
		{TrackingNumber: "t-1"},
		{TrackingNumber: "t-2"},
	}, nil)
	invoices.On("CreatePrepaidBatch", mock.Anything, []string{"t-1", "t-2"}).Return([]string{"t-1", "t-2"}, nil)

	out, err := newService(tracking, invoices).Record(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, in, out)
	tracking.AssertExpectations(t)
	invoices.AssertExpectations(t)
}

func TestRecordStopsWhenTrackingFails(t *testing.T) {
	tracking := &trackingMock{}
	invoices := &invoicesMock{}

	tracking.On("RecordPrepaid", mock.Anything, mock.Anything).Return(nil, trackingdomain.ErrInvalidValue)

	_, err := newService(tracking, invoices).Record(context.Background(), entries())
	assert.ErrorIs(t, err, trackingdomain.ErrInvalidValue)
	invoices.AssertNotCalled(t, "CreatePrepaidBatch", mock.Anything, mock.Anything)
}

func TestRecordSurfacesInvoicingFailure(t *testing.T) {
	tracking := &trackingMock{}
	invoices := &invoicesMock{}
	storageErr := errors.New("connection reset")

	tracking.On("RecordPrepaid", mock.Anything, mock.Anything).Return([]*trackingdomain.ConsumptionTracking{{TrackingNumber: "t-1"}}, nil)
	invoices.On("CreatePrepaidBatch", mock.Anything, []string{"t-1"}).Return(nil, storageErr)

	_, err := newService(tracking, invoices).Record(context.Background(), entries())
	assert.ErrorIs(t, err, storageErr)
}
