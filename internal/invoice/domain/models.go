// Package domain contains persistence models for invoicing.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InvoiceType string

const (
	InvoiceTypePostpaid InvoiceType = "postpaid"
	InvoiceTypePrepaid  InvoiceType = "prepaid"
)

func (t InvoiceType) Valid() bool {
	return t == InvoiceTypePostpaid || t == InvoiceTypePrepaid
}

// InvoiceStatus represents invoice payment states.
type InvoiceStatus string

const (
	InvoiceStatusNotPaid InvoiceStatus = "not_paid"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

const (
	DunningNameNotification = "notification"
	DunningNameReminder     = "dunning"

	DeadlineUnitDay  = "day"
	FrequencyMonthly = 1

	dunningDateLayout = "2006-01-02"
)

// Dunning is one escalation step. Entries are append-only and ranks
// increase by one from zero.
type Dunning struct {
	Name             string          `json:"name"`
	Date             time.Time       `json:"date"`
	Rank             int             `json:"rank"`
	DelayPenaltyRate decimal.Decimal `json:"delay_penalty_rate"`
	TotalAmountHT    decimal.Decimal `json:"total_amount_ht"`
	TotalAmountTTC   decimal.Decimal `json:"total_amount_ttc"`
	PaymentDeadline  int             `json:"payment_deadline"`
}

// Label is the step name, suffixed with the rank once escalation has started.
func (d Dunning) Label() string {
	if d.Rank == 0 {
		return d.Name
	}
	return fmt.Sprintf("%s %d", d.Name, d.Rank)
}

func (d Dunning) DateString() string {
	return d.Date.Format(dunningDateLayout)
}

// InvoiceInfo is the type-specific payload of an invoice. It is either
// *PostpaidInvoiceInfo or *PrepaidInvoiceInfo.
type InvoiceInfo interface {
	invoiceType() InvoiceType
	Contract() string
}

type PostpaidInvoiceInfo struct {
	ContractNumber          string          `json:"contract_number"`
	CustomerNumber          string          `json:"customer_number"`
	InvoiceType             InvoiceType     `json:"invoice_type"`
	InvoiceDate             time.Time       `json:"invoice_date"`
	VATRate                 decimal.Decimal `json:"vat_rate"`
	IndexValue              decimal.Decimal `json:"index_value"`
	LastIndexValue          decimal.Decimal `json:"last_index_value"`
	TotalPowerConsumed      decimal.Decimal `json:"total_power_consumed"`
	UnitPrice               decimal.Decimal `json:"unit_price"`
	TotalAmountHT           decimal.Decimal `json:"total_amount_ht"`
	TotalAmountTTC          decimal.Decimal `json:"total_amount_ttc"`
	AmountPaid              decimal.Decimal `json:"amount_paid"`
	RemainingAmount         decimal.Decimal `json:"remaining_amount"`
	PaymentDeadline         int             `json:"payment_deadline"`
	DeadlineMeasurementUnit string          `json:"deadline_measurement_unit"`
	InvoicingFrequency      int             `json:"invoicing_frequency"`
	PreviousStatus          string          `json:"previous_status"`
	Status                  InvoiceStatus   `json:"status"`
	DunningMax              int             `json:"dunning_max"`
	Dunning                 []Dunning       `json:"dunning"`
}

func (*PostpaidInvoiceInfo) invoiceType() InvoiceType { return InvoiceTypePostpaid }
func (i *PostpaidInvoiceInfo) Contract() string       { return i.ContractNumber }

// LastDunning returns the highest-ranked step, preferring the later entry on
// equal ranks.
func (i *PostpaidInvoiceInfo) LastDunning() (Dunning, bool) {
	if len(i.Dunning) == 0 {
		return Dunning{}, false
	}
	last := i.Dunning[0]
	for _, d := range i.Dunning[1:] {
		if d.Rank >= last.Rank {
			last = d
		}
	}
	return last, true
}

type PrepaidInvoiceInfo struct {
	ContractNumber      string          `json:"contract_number"`
	CustomerNumber      string          `json:"customer_number"`
	InvoiceType         InvoiceType     `json:"invoice_type"`
	InvoiceDate         time.Time       `json:"invoice_date"`
	VATRate             decimal.Decimal `json:"vat_rate"`
	PowerRecharged      decimal.Decimal `json:"power_recharged"`
	LastPowerRecharged  decimal.Decimal `json:"last_power_recharged"`
	TotalPowerRecharged decimal.Decimal `json:"total_power_recharged"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalAmountHT       decimal.Decimal `json:"total_amount_ht"`
	TotalAmountTTC      decimal.Decimal `json:"total_amount_ttc"`
	AmountPaid          decimal.Decimal `json:"amount_paid"`
	Status              InvoiceStatus   `json:"status"`
}

func (*PrepaidInvoiceInfo) invoiceType() InvoiceType { return InvoiceTypePrepaid }
func (i *PrepaidInvoiceInfo) Contract() string       { return i.ContractNumber }

// Invoice is a billing document issued for exactly one tracking.
type Invoice struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	InvoiceNumber  string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"invoice_number"`
	TrackingID     snowflake.ID   `gorm:"not null;uniqueIndex:ux_invoices_tracking" json:"tracking_id"`
	InvoiceType    InvoiceType    `gorm:"type:varchar(16);not null;index:idx_invoice_contract,priority:1" json:"invoice_type"`
	ContractNumber string         `gorm:"type:varchar(64);not null;index:idx_invoice_contract,priority:2" json:"contract_number"`
	Version        int64          `gorm:"not null;default:1" json:"version"`
	Infos          datatypes.JSON `gorm:"not null" json:"-"`
	Info           InvoiceInfo    `gorm:"-" json:"infos"`
	IsActivated    bool           `gorm:"not null;default:true" json:"is_activated"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime:false;index:idx_invoice_contract,priority:3" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

func (i *Invoice) Postpaid() (*PostpaidInvoiceInfo, bool) {
	info, ok := i.Info.(*PostpaidInvoiceInfo)
	return info, ok
}

func (i *Invoice) Prepaid() (*PrepaidInvoiceInfo, bool) {
	info, ok := i.Info.(*PrepaidInvoiceInfo)
	return info, ok
}

// EncodeInfo writes Info into the Infos column value.
func (i *Invoice) EncodeInfo() error {
	if i.Info == nil {
		return fmt.Errorf("invoice %s has no infos", i.InvoiceNumber)
	}
	if i.Info.invoiceType() != i.InvoiceType {
		return fmt.Errorf("invoice %s: %s infos on a %s invoice", i.InvoiceNumber, i.Info.invoiceType(), i.InvoiceType)
	}
	raw, err := json.Marshal(i.Info)
	if err != nil {
		return fmt.Errorf("encode invoice infos: %w", err)
	}
	i.Infos = datatypes.JSON(raw)
	i.ContractNumber = i.Info.Contract()
	return nil
}

func (i *Invoice) BeforeSave(*gorm.DB) error {
	return i.EncodeInfo()
}

func (i *Invoice) AfterFind(*gorm.DB) error {
	info, err := DecodeInfo(i.InvoiceType, i.Infos)
	if err != nil {
		return err
	}
	i.Info = info
	return nil
}

// DecodeInfo decodes a stored payload into the variant matching invoiceType.
func DecodeInfo(invoiceType InvoiceType, raw []byte) (InvoiceInfo, error) {
	var info InvoiceInfo
	switch invoiceType {
	case InvoiceTypePostpaid:
		info = &PostpaidInvoiceInfo{}
	case InvoiceTypePrepaid:
		info = &PrepaidInvoiceInfo{}
	default:
		return nil, fmt.Errorf("unknown invoice type %q", invoiceType)
	}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, fmt.Errorf("decode %s invoice infos: %w", invoiceType, err)
	}
	return info, nil
}
