package repository

import (
	"context"

	trackingdomain "github.com/smallbiznis/utilitybilling/internal/tracking/domain"
	"github.com/smallbiznis/utilitybilling/pkg/db/option"
	"github.com/smallbiznis/utilitybilling/pkg/repository"
	"gorm.io/gorm"
)

// newestFirst gives "last" queries a total order even when created_at ties.
var newestFirst = option.WithOrder("created_at DESC", "id DESC")

type repo struct {
	store repository.Repository[trackingdomain.ConsumptionTracking]
}

func Provide(db *gorm.DB) trackingdomain.Repository {
	return &repo{store: repository.ProvideStore[trackingdomain.ConsumptionTracking](db)}
}

func (r *repo) BatchInsert(ctx context.Context, trackings []*trackingdomain.ConsumptionTracking) error {
	return r.store.BatchCreate(ctx, trackings)
}

func (r *repo) Update(ctx context.Context, tracking *trackingdomain.ConsumptionTracking) error {
	return r.store.Save(ctx, tracking)
}

func (r *repo) BatchUpdate(ctx context.Context, trackings []*trackingdomain.ConsumptionTracking) error {
	return r.store.BatchUpdate(ctx, trackings)
}

func (r *repo) FindByNumber(ctx context.Context, trackingType trackingdomain.TrackingType, number string) (*trackingdomain.ConsumptionTracking, error) {
	return r.store.FindOne(ctx, active(trackingType), option.WithWhere("tracking_number = ?", number))
}

func (r *repo) FindByNumberAndInvoiced(ctx context.Context, trackingType trackingdomain.TrackingType, number string, invoiced bool) (*trackingdomain.ConsumptionTracking, error) {
	return r.store.FindOne(ctx, active(trackingType),
		option.WithWhere("tracking_number = ?", number),
		option.WithWhere("is_invoiced = ?", invoiced),
	)
}

func (r *repo) ListByContract(ctx context.Context, trackingType trackingdomain.TrackingType, contract string, offset, limit int) ([]*trackingdomain.ConsumptionTracking, error) {
	return r.store.Find(ctx, active(trackingType),
		option.WithWhere("contract_number = ?", contract),
		newestFirst,
		option.WithOffset(offset),
		option.WithLimit(limit),
	)
}

func (r *repo) FindLastByContract(ctx context.Context, trackingType trackingdomain.TrackingType, contract string) (*trackingdomain.ConsumptionTracking, error) {
	return r.store.FindOne(ctx, active(trackingType),
		option.WithWhere("contract_number = ?", contract),
		newestFirst,
	)
}

func (r *repo) ListUninvoiced(ctx context.Context, trackingType trackingdomain.TrackingType, offset, limit int) ([]*trackingdomain.ConsumptionTracking, error) {
	return r.store.Find(ctx, active(trackingType),
		option.WithWhere("is_invoiced = ?", false),
		option.WithOrder("created_at ASC", "id ASC"),
		option.WithOffset(offset),
		option.WithLimit(limit),
	)
}

func active(trackingType trackingdomain.TrackingType) *trackingdomain.ConsumptionTracking {
	return &trackingdomain.ConsumptionTracking{TrackingType: trackingType, IsActivated: true}
}
