package render

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	documents "gelato-ops/internal/documents/domain"
	production "gelato-ops/internal/production/domain"
)

const (
	// StatementSheet is the sheet name of a statement workbook.
	StatementSheet = "Statement"
	// ProductionSheet is the sheet name of the production report.
	ProductionSheet = "Production Analysis"

	moneyFormat = 4 // #,##0.00
)

// ProductionColumns are the production report headers in order.
var ProductionColumns = []string{
	"Delivery Date",
	"Customer Full Name",
	"Memo/Description",
	"Type",
	"Quantity",
	"Gelato Type",
	"Weight (kg)",
}

var productionWidths = []float64{14, 32, 40, 18, 10, 16, 12}

// ProductionXLSX renders production rows into a single landscape sheet.
func ProductionXLSX(rows []production.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ProductionSheet); err != nil {
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, width := range productionWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(ProductionSheet, col, col, width); err != nil {
			return nil, err
		}
	}

	header := make([]any, 0, len(ProductionColumns))
	for _, title := range ProductionColumns {
		header = append(header, title)
	}
	if err := f.SetSheetRow(ProductionSheet, "A1", &header); err != nil {
		return nil, err
	}
	last, err := excelize.CoordinatesToCellName(len(ProductionColumns), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(ProductionSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []any{
			row.DeliveryDate.Format("02/01/2006"),
			row.CustomerName,
			row.Description,
			row.ProductType,
			row.Quantity,
			row.GelatoType,
			row.Weight.InexactFloat64(),
		}
		if err := f.SetSheetRow(ProductionSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	orientation := "landscape"
	if err := f.SetPageLayout(ProductionSheet, &excelize.PageLayoutOptions{Orientation: &orientation}); err != nil {
		return nil, err
	}
	return write(f)
}

// StatementXLSX renders a statement model into a workbook with the same
// sections as the PDF.
func StatementXLSX(model *documents.Model) ([]byte, error) {
	if model == nil {
		return nil, errors.New("render: nil model")
	}
	if model.Kind != documents.KindStatement {
		return nil, fmt.Errorf("render: xlsx export supports statements, got %s", model.Kind)
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", StatementSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}
	band, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E2EAF4"}},
	})
	if err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return nil, err
	}
	for i, width := range []float64{14, 20, 40, 16, 16, 16} {
		col := string(rune('A' + i))
		if err := f.SetColWidth(StatementSheet, col, col, width); err != nil {
			return nil, err
		}
	}

	s := &sheetWriter{f: f, sheet: StatementSheet, row: 1}
	if model.Header != nil {
		for i, line := range model.Header.Lines {
			s.set("A", line)
			if i == 0 {
				s.style("A", "A", bold)
			}
			s.row++
		}
		s.row++
	}
	s.set("A", model.Title)
	s.style("A", "A", title)
	s.row += 2

	s.set("A", "Bill To")
	s.style("A", "A", bold)
	s.set("D", "Statement No.")
	s.set("E", model.Meta.Number)
	s.row++
	s.set("A", model.Recipient.Name)
	s.set("D", "Period")
	s.set("E", model.Meta.Period)
	s.row++
	metaRow := s.row
	for _, line := range model.Recipient.AddressLines {
		s.set("A", line)
		s.row++
	}
	s.setAt("D", metaRow, "Date")
	s.setAt("E", metaRow, longDate(model.Meta.Date))
	if s.row <= metaRow {
		s.row = metaRow + 1
	}
	s.row++

	headers := []string{"Date", "Invoice No.", "Description", "Amount", "Open Amount"}
	for i, h := range headers {
		s.set(string(rune('A'+i)), h)
	}
	s.style("A", "E", band)
	s.row++
	for _, line := range model.Lines {
		s.set("A", shortDate(line.Date))
		s.set("B", line.Reference)
		s.set("C", line.Description)
		s.set("D", line.Amount.InexactFloat64())
		if line.OpenAmount != nil {
			s.set("E", line.OpenAmount.InexactFloat64())
		}
		s.style("D", "E", money)
		s.row++
	}
	s.row++

	s.set("D", "Total Amount Due")
	s.style("D", "D", bold)
	s.set("E", model.Totals.Total.InexactFloat64())
	s.style("E", "E", money)
	s.row += 2

	if a := model.Aging; a != nil {
		agingHeaders := []string{"Current", "1-30 Days", "31-60 Days", "61-90 Days", "90+ Days", "Total"}
		for i, h := range agingHeaders {
			s.set(string(rune('A'+i)), h)
		}
		s.style("A", "F", band)
		s.row++
		for i, v := range []float64{
			a.Current.InexactFloat64(),
			a.D1To30.InexactFloat64(),
			a.D31To60.InexactFloat64(),
			a.D61To90.InexactFloat64(),
			a.D90Plus.InexactFloat64(),
			a.Total.InexactFloat64(),
		} {
			s.set(string(rune('A'+i)), v)
		}
		s.style("A", "F", money)
		s.row++
	}
	if s.err != nil {
		return nil, s.err
	}
	return write(f)
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func (s *sheetWriter) set(col string, value any) {
	s.setAt(col, s.row, value)
}

func (s *sheetWriter) setAt(col string, row int, value any) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellValue(s.sheet, fmt.Sprintf("%s%d", col, row), value)
}

func (s *sheetWriter) style(from, to string, style int) {
	if s.err != nil {
		return
	}
	s.err = s.f.SetCellStyle(s.sheet, fmt.Sprintf("%s%d", from, s.row), fmt.Sprintf("%s%d", to, s.row), style)
}

func write(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
