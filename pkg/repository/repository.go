package repository

import (
	"context"

	"github.com/smallbiznis/utilitybilling/pkg/db/option"
)

// Repository is a generic gorm-backed store. Lookups that match nothing
// return (nil, nil).
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	BatchCreate(ctx context.Context, resources []*T) error
	Save(ctx context.Context, resource *T) error
	BatchUpdate(ctx context.Context, resources []*T) error
}
