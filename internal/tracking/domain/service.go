package domain

import (
	"context"
	"errors"
)

type Service interface {
	// CreatePostpaidBatch records readings and echoes the accepted entries.
	CreatePostpaidBatch(ctx context.Context, entries []PostpaidEntry) ([]PostpaidEntry, error)
	// CreatePrepaidBatch records recharges and echoes the accepted entries.
	CreatePrepaidBatch(ctx context.Context, entries []PrepaidEntry) ([]PrepaidEntry, error)
	RecordPostpaid(ctx context.Context, entries []PostpaidEntry) ([]*ConsumptionTracking, error)
	RecordPrepaid(ctx context.Context, entries []PrepaidEntry) ([]*ConsumptionTracking, error)

	GetByNumber(ctx context.Context, trackingType TrackingType, number string) (*ConsumptionTracking, error)
	ListByContract(ctx context.Context, trackingType TrackingType, contract string, offset, limit int) ([]*ConsumptionTracking, error)
	GetLastByContract(ctx context.Context, trackingType TrackingType, contract string) (*ConsumptionTracking, error)
	GetUninvoicedByNumber(ctx context.Context, trackingType TrackingType, number string) (*ConsumptionTracking, error)
	GetInvoicedByNumber(ctx context.Context, trackingType TrackingType, number string) (*ConsumptionTracking, error)
	ListUninvoiced(ctx context.Context, trackingType TrackingType, offset, limit int) ([]*ConsumptionTracking, error)

	MarkInvoiced(ctx context.Context, trackings []*ConsumptionTracking) error
	Deactivate(ctx context.Context, trackingType TrackingType, number string) error
}

var (
	ErrNotFound        = errors.New("tracking_not_found")
	ErrInvalidType     = errors.New("invalid_tracking_type")
	ErrInvalidContract = errors.New("invalid_contract_number")
	ErrInvalidValue    = errors.New("invalid_tracking_value")
	ErrEmptyBatch      = errors.New("empty_tracking_batch")
)
