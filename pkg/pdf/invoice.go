package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// InvoiceDocument carries everything the renderer needs. Amounts are paise.
type InvoiceDocument struct {
	InvoiceNumber   string
	IssuedAt        time.Time
	BusinessName    string
	BusinessAddress string
	BusinessEmail   string
	BusinessPhone   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	PaymentMethod   string
	ReferenceID     string
	Items           []InvoiceLine
	SubtotalPaise   int64
	TaxLabel        string
	TaxPaise        int64
	FeeLabel        string
	FeePaise        int64
	TotalPaise      int64
}

// InvoiceLine is one billed row.
type InvoiceLine struct {
	Description    string
	Quantity       int64
	UnitPricePaise int64
	TotalPaise     int64
}

// RenderInvoice produces the invoice PDF bytes.
func RenderInvoice(doc InvoiceDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.InvoiceNumber, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, doc.BusinessName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, doc.BusinessAddress, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, fmt.Sprintf("%s | %s", doc.BusinessEmail, doc.BusinessPhone), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "TAX INVOICE", "T", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(95, 6, fmt.Sprintf("Invoice No: %s", doc.InvoiceNumber), "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, fmt.Sprintf("Date: %s", doc.IssuedAt.Format("02 Jan 2006")), "", 1, "R", false, 0, "")
	pdf.CellFormat(95, 6, fmt.Sprintf("Billed To: %s", doc.CustomerName), "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, fmt.Sprintf("Payment: %s", doc.PaymentMethod), "", 1, "R", false, 0, "")
	if doc.CustomerAddress != "" {
		pdf.CellFormat(0, 6, doc.CustomerAddress, "", 1, "L", false, 0, "")
	}
	if doc.ReferenceID != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", doc.ReferenceID), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(90, 7, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(20, 7, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range doc.Items {
		pdf.CellFormat(90, 7, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 7, formatRupees(item.UnitPricePaise), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatRupees(item.TotalPaise), "1", 1, "R", false, 0, "")
	}

	summaryRow(pdf, "Subtotal", doc.SubtotalPaise, false)
	if doc.TaxLabel != "" {
		summaryRow(pdf, doc.TaxLabel, doc.TaxPaise, false)
	}
	if doc.FeeLabel != "" && doc.FeePaise > 0 {
		summaryRow(pdf, doc.FeeLabel, doc.FeePaise, false)
	}
	summaryRow(pdf, "Grand Total", doc.TotalPaise, true)

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "This is a computer generated invoice and does not require a signature.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryRow(pdf *fpdf.Fpdf, label string, amountPaise int64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(110, 7, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, label, "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, formatRupees(amountPaise), "1", 1, "R", false, 0, "")
}

func formatRupees(paise int64) string {
	rupees := decimal.NewFromInt(paise).Div(decimal.NewFromInt(100))
	return "Rs. " + rupees.StringFixed(2)
}
