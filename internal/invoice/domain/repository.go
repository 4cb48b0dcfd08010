package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository persists invoices. Number and contract lookups only see active
// rows and return (nil, nil) on a miss.
type Repository interface {
	BatchInsert(ctx context.Context, invoices []*Invoice) error
	// UpdateVersioned persists invoice if its stored version is unchanged and
	// bumps the version. It returns ErrConcurrentUpdate otherwise.
	UpdateVersioned(ctx context.Context, invoice *Invoice) error
	FindByNumber(ctx context.Context, invoiceType InvoiceType, number string) (*Invoice, error)
	// FindByTrackingID includes deactivated invoices.
	FindByTrackingID(ctx context.Context, trackingID snowflake.ID) (*Invoice, error)
	ListByContract(ctx context.Context, invoiceType InvoiceType, contract string, offset, limit int) ([]*Invoice, error)
	FindLastByContract(ctx context.Context, invoiceType InvoiceType, contract string) (*Invoice, error)
}
