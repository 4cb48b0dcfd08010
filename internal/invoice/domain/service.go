package domain

import (
	"context"
	"errors"
)

type Service interface {
	// CreatePostpaidBatch invoices the given uninvoiced postpaid trackings and
	// returns the tracking numbers that were invoiced.
	CreatePostpaidBatch(ctx context.Context, trackingNumbers []string) ([]string, error)
	// CreatePrepaidBatch invoices prepaid trackings that do not own an invoice yet.
	CreatePrepaidBatch(ctx context.Context, trackingNumbers []string) ([]string, error)

	GetByNumber(ctx context.Context, invoiceType InvoiceType, number string) (*Invoice, error)
	ListByContract(ctx context.Context, invoiceType InvoiceType, contract string, offset, limit int) ([]*Invoice, error)
	GetLastByContract(ctx context.Context, invoiceType InvoiceType, contract string) (*Invoice, error)
	Deactivate(ctx context.Context, invoiceType InvoiceType, number string) error
}

var (
	ErrNotFound         = errors.New("invoice_not_found")
	ErrNoCandidates     = errors.New("no_tracking_found")
	ErrInvalidType      = errors.New("invalid_invoice_type")
	ErrNotPostpaid      = errors.New("invoice_not_postpaid")
	ErrAlreadyInvoiced  = errors.New("tracking_already_invoiced")
	ErrConcurrentUpdate = errors.New("invoice_concurrent_update")
)
