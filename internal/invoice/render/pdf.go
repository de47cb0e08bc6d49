// Package render produces invoice documents.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mcfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/lexora/internal/config"
	"github.com/smallbiznis/lexora/internal/invoice/domain"
)

type pdfRenderer struct {
	dir string
}

// NewPDFRenderer writes rendered invoices under the configured document
// directory and returns a file URL.
func NewPDFRenderer(cfg config.Config) domain.Renderer {
	return &pdfRenderer{dir: cfg.DocumentDir}
}

func (r *pdfRenderer) RenderInvoice(ctx context.Context, invoice *domain.Invoice) (string, error) {
	cfg := mcfg.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+invoice.IssuedAt.Format("2006-01-02"), props.Text{Top: 4}),
			text.New("Date due: "+invoice.DueAt.Format("2006-01-02"), props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Billed to: "+invoice.CompanyID, props.Text{Top: 0}),
			text.New("Status: "+string(invoice.Status), props.Text{Top: 4}),
		),
	)
	m.AddRow(12,
		text.NewCol(8, "Total", props.Text{Style: fontstyle.Bold}),
		text.NewCol(4, formatAmount(invoice.TotalAmount, invoice.Currency), props.Text{Align: align.Right}),
	)
	m.AddRow(12,
		text.NewCol(8, "Amount paid", props.Text{Style: fontstyle.Bold}),
		text.NewCol(4, formatAmount(invoice.AmountPaid, invoice.Currency), props.Text{Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(r.dir, invoice.InvoiceNumber+".pdf")
	if err := os.WriteFile(path, doc.GetBytes(), 0o644); err != nil {
		return "", err
	}
	return "file://" + path, nil
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}
