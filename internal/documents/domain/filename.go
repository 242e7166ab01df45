package documents

import (
	"fmt"
	"strings"
	"time"
)

// InvoiceFilename returns Invoice_<invoice_id>_<DD-MM-YYYY>.pdf.
func InvoiceFilename(invoiceID string, date time.Time) string {
	return fmt.Sprintf("Invoice_%s_%s.pdf", safeName(invoiceID), date.Format("02-01-2006"))
}

// StatementFilename returns Statement_<statement_id>_<Month_Year>.<ext>.
func StatementFilename(statementID string, month time.Time, ext string) string {
	return fmt.Sprintf("Statement_%s_%s.%s", safeName(statementID), month.Format("January_2006"), ext)
}

// ProductionReportFilename returns Production_Analysis_<D_Mon>.xlsx.
func ProductionReportFilename(start time.Time) string {
	return fmt.Sprintf("Production_Analysis_%s.xlsx", start.Format("2_Jan"))
}

func safeName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unnumbered"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '-'
		}
	}, value)
}
