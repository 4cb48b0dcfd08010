// Package render produces printable invoice documents.
package render

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
)

const dateLayout = "2006-01-02"

var (
	labelText = props.Text{Size: 9}
	valueText = props.Text{Size: 9, Align: align.Right}
	headText  = props.Text{Size: 9, Style: fontstyle.Bold}
)

// Renderer renders invoices as PDF documents.
type Renderer interface {
	PDF(invoice *invoicedomain.Invoice) ([]byte, error)
}

type PDFRenderer struct {
	issuer string
}

func New() Renderer {
	return &PDFRenderer{issuer: "Utility Billing"}
}

func (r *PDFRenderer) PDF(invoice *invoicedomain.Invoice) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, r.issuer, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, "Invoice", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(6, text.NewCol(12, "Invoice number: "+invoice.InvoiceNumber, labelText))
	m.AddRow(6, text.NewCol(12, "Contract number: "+invoice.ContractNumber, labelText))

	switch info := invoice.Info.(type) {
	case *invoicedomain.PostpaidInvoiceInfo:
		renderPostpaid(m, info)
	case *invoicedomain.PrepaidInvoiceInfo:
		renderPrepaid(m, info)
	default:
		return nil, fmt.Errorf("invoice %s has no printable infos", invoice.InvoiceNumber)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func renderPostpaid(m core.Maroto, info *invoicedomain.PostpaidInvoiceInfo) {
	m.AddRow(6, text.NewCol(12, "Invoice date: "+info.InvoiceDate.Format(dateLayout), labelText))
	m.AddRow(6, text.NewCol(12, "Status: "+string(info.Status), labelText))
	m.AddRow(8, col.New(12))

	amountRow(m, "Index value", info.IndexValue)
	amountRow(m, "Last index value", info.LastIndexValue)
	amountRow(m, "Total power consumed", info.TotalPowerConsumed)
	amountRow(m, "Unit price", info.UnitPrice)
	amountRow(m, "Total excl. VAT", info.TotalAmountHT)
	amountRow(m, "VAT rate", info.VATRate)
	amountRow(m, "Total incl. VAT", info.TotalAmountTTC)
	amountRow(m, "Amount paid", info.AmountPaid)
	amountRow(m, "Remaining amount", info.RemainingAmount)
	m.AddRow(6,
		text.NewCol(8, "Payment deadline", labelText),
		text.NewCol(4, fmt.Sprintf("%d %s", info.PaymentDeadline, info.DeadlineMeasurementUnit), valueText),
	)

	if len(info.Dunning) == 0 {
		return
	}
	m.AddRow(10, text.NewCol(12, "Dunning history", props.Text{Size: 11, Style: fontstyle.Bold, Top: 4}))
	m.AddRow(7,
		text.NewCol(3, "Notice", headText),
		text.NewCol(2, "Date", headText),
		text.NewCol(2, "Penalty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(3, "Total incl. VAT", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(2, "Deadline", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)
	for _, d := range info.Dunning {
		m.AddRow(6,
			text.NewCol(3, d.Label(), labelText),
			text.NewCol(2, d.DateString(), labelText),
			text.NewCol(2, d.DelayPenaltyRate.String(), valueText),
			text.NewCol(3, money(d.TotalAmountTTC), valueText),
			text.NewCol(2, strconv.Itoa(d.PaymentDeadline), valueText),
		)
	}
}

func renderPrepaid(m core.Maroto, info *invoicedomain.PrepaidInvoiceInfo) {
	m.AddRow(6, text.NewCol(12, "Invoice date: "+info.InvoiceDate.Format(dateLayout), labelText))
	m.AddRow(6, text.NewCol(12, "Status: "+string(info.Status), labelText))
	m.AddRow(8, col.New(12))

	amountRow(m, "Power recharged", info.PowerRecharged)
	amountRow(m, "Total power recharged", info.TotalPowerRecharged)
	amountRow(m, "Unit price", info.UnitPrice)
	amountRow(m, "Total excl. VAT", info.TotalAmountHT)
	amountRow(m, "VAT rate", info.VATRate)
	amountRow(m, "Total incl. VAT", info.TotalAmountTTC)
	amountRow(m, "Amount paid", info.AmountPaid)
}

func amountRow(m core.Maroto, label string, value decimal.Decimal) {
	m.AddRow(6,
		text.NewCol(8, label, labelText),
		text.NewCol(4, money(value), valueText),
	)
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}
