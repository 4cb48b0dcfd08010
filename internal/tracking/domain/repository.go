package domain

import "context"

// Repository persists trackings. Lookups only see active rows and return
// (nil, nil) on a miss.
type Repository interface {
	BatchInsert(ctx context.Context, trackings []*ConsumptionTracking) error
	Update(ctx context.Context, tracking *ConsumptionTracking) error
	BatchUpdate(ctx context.Context, trackings []*ConsumptionTracking) error
	FindByNumber(ctx context.Context, trackingType TrackingType, number string) (*ConsumptionTracking, error)
	FindByNumberAndInvoiced(ctx context.Context, trackingType TrackingType, number string, invoiced bool) (*ConsumptionTracking, error)
	ListByContract(ctx context.Context, trackingType TrackingType, contract string, offset, limit int) ([]*ConsumptionTracking, error)
	FindLastByContract(ctx context.Context, trackingType TrackingType, contract string) (*ConsumptionTracking, error)
	ListUninvoiced(ctx context.Context, trackingType TrackingType, offset, limit int) ([]*ConsumptionTracking, error)
}
