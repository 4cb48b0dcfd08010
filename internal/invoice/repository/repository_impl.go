package repository

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/smallbiznis/utilitybilling/pkg/db"
	"github.com/smallbiznis/utilitybilling/pkg/db/option"
	"github.com/smallbiznis/utilitybilling/pkg/repository"
	"gorm.io/gorm"
)

var newestFirst = option.WithOrder("created_at DESC", "id DESC")

type repo struct {
	db    *gorm.DB
	store repository.Repository[invoicedomain.Invoice]
}

func Provide(conn *gorm.DB) invoicedomain.Repository {
	return &repo{
		db:    conn,
		store: repository.ProvideStore[invoicedomain.Invoice](conn),
	}
}

func (r *repo) BatchInsert(ctx context.Context, invoices []*invoicedomain.Invoice) error {
	if err := r.store.BatchCreate(ctx, invoices); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return fmt.Errorf("%w: %v", invoicedomain.ErrAlreadyInvoiced, err)
		}
		return err
	}
	return nil
}

func (r *repo) UpdateVersioned(ctx context.Context, invoice *invoicedomain.Invoice) error {
	if err := invoice.EncodeInfo(); err != nil {
		return err
	}

	next := invoice.Version + 1
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&invoicedomain.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]any{
			"infos":        invoice.Infos,
			"is_activated": invoice.IsActivated,
			"updated_at":   invoice.UpdatedAt,
			"deleted_at":   invoice.DeletedAt,
			"version":      next,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return invoicedomain.ErrConcurrentUpdate
	}
	invoice.Version = next
	return nil
}

func (r *repo) FindByNumber(ctx context.Context, invoiceType invoicedomain.InvoiceType, number string) (*invoicedomain.Invoice, error) {
	return r.store.FindOne(ctx, active(invoiceType), option.WithWhere("invoice_number = ?", number))
}

func (r *repo) FindByTrackingID(ctx context.Context, trackingID snowflake.ID) (*invoicedomain.Invoice, error) {
	return r.store.FindOne(ctx, nil, option.WithWhere("tracking_id = ?", trackingID))
}

func (r *repo) ListByContract(ctx context.Context, invoiceType invoicedomain.InvoiceType, contract string, offset, limit int) ([]*invoicedomain.Invoice, error) {
	return r.store.Find(ctx, active(invoiceType),
		option.WithWhere("contract_number = ?", contract),
		newestFirst,
		option.WithOffset(offset),
		option.WithLimit(limit),
	)
}

func (r *repo) FindLastByContract(ctx context.Context, invoiceType invoicedomain.InvoiceType, contract string) (*invoicedomain.Invoice, error) {
	return r.store.FindOne(ctx, active(invoiceType),
		option.WithWhere("contract_number = ?", contract),
		newestFirst,
	)
}

func active(invoiceType invoicedomain.InvoiceType) *invoicedomain.Invoice {
	return &invoicedomain.Invoice{InvoiceType: invoiceType, IsActivated: true}
}
