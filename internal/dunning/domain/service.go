package domain

import (
	"context"
	"errors"

	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
)

// Service escalates unpaid postpaid invoices.
type Service interface {
	// Advance appends the next dunning notice to the invoice and returns the
	// updated invoice.
	Advance(ctx context.Context, invoiceNumber string) (*invoicedomain.Invoice, error)
}

var (
	ErrDunningLimitReached = errors.New("dunning_limit_reached")
	ErrNoDunningHistory    = errors.New("dunning_history_empty")
)
