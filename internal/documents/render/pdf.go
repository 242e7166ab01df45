package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	documents "gelato-ops/internal/documents/domain"
)

// Mode selects how a PDF is delivered.
type Mode string

const (
	// ModeDownload serves the PDF as a named attachment.
	ModeDownload Mode = "download"
	// ModePrint serves the PDF inline and opens the print dialog on load.
	ModePrint Mode = "print"
)

// ErrInvalidMode is returned for an unknown mode.
var ErrInvalidMode = errors.New("render: mode must be download or print")

// ParseMode validates a mode value; empty means download.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeDownload:
		return ModeDownload, nil
	case ModePrint:
		return ModePrint, nil
	default:
		return "", ErrInvalidMode
	}
}

const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginX      = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	contentWidth = pageWidth - 2*marginX

	fontFamily      = "Helvetica"
	bodySize        = 9.0
	lineHeight      = 4.5
	tableHeadHeight = 7.0
	totalsRowHeight = 6.0
	agingRowHeight  = 6.0
	sectionGap      = 3.0
)

var fallbackCreationDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// PDF renders a document model. Identical models render identical bytes.
func PDF(model *documents.Model, mode Mode) ([]byte, error) {
	pdf, err := buildPDF(model, mode)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func buildPDF(model *documents.Model, mode Mode) (*gofpdf.Fpdf, error) {
	if model == nil {
		return nil, errors.New("render: nil model")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetCatalogSort(true)
	created := model.Meta.Generated
	if created.IsZero() {
		created = fallbackCreationDate
	}
	pdf.SetCreationDate(created.UTC())
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(model.Title+" "+model.Meta.Number), false)
	pdf.SetCreator("gelato-ops", false)
	if mode == ModePrint {
		pdf.SetJavascript("print(true);")
	}

	l := newLayout(pdf, tr, model)
	l.render()
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

type column struct {
	title string
	width float64
	align string
	value func(documents.Line) string
}

func invoiceColumns() []column {
	return []column{
		{title: "Description", width: 66, align: "L", value: func(l documents.Line) string { return l.Description }},
		{title: "Product", width: 50, align: "L", value: func(l documents.Line) string { return l.ProductLabel }},
		{title: "Qty", width: 14, align: "R", value: func(l documents.Line) string { return fmt.Sprintf("%d", l.Quantity) }},
		{title: "Unit Price", width: 25, align: "R", value: func(l documents.Line) string { return Money(l.UnitPrice) }},
		{title: "Amount", width: 25, align: "R", value: func(l documents.Line) string { return Money(l.Amount) }},
	}
}

func statementColumns() []column {
	return []column{
		{title: "Date", width: 24, align: "L", value: func(l documents.Line) string { return shortDate(l.Date) }},
		{title: "Invoice No.", width: 34, align: "L", value: func(l documents.Line) string { return l.Reference }},
		{title: "Description", width: 62, align: "L", value: func(l documents.Line) string { return l.Description }},
		{title: "Amount", width: 30, align: "R", value: func(l documents.Line) string { return Money(l.Amount) }},
		{title: "Open Amount", width: 30, align: "R", value: func(l documents.Line) string {
			if l.OpenAmount == nil {
				return ""
			}
			return Money(*l.OpenAmount)
		}},
	}
}

type layout struct {
	pdf     *gofpdf.Fpdf
	tr      func(string) string
	model   *documents.Model
	columns []column
	y       float64
	bandTop float64
}

func newLayout(pdf *gofpdf.Fpdf, tr func(string) string, model *documents.Model) *layout {
	cols := invoiceColumns()
	if model.Kind == documents.KindStatement {
		cols = statementColumns()
	}
	l := &layout{pdf: pdf, tr: tr, model: model, columns: cols}
	l.bandTop = pageHeight - marginBottom - l.bandHeight()
	return l
}

func (l *layout) render() {
	l.newPage(true)
	for i, line := range l.model.Lines {
		cells, height := l.wrapRow(line)
		if l.y+height > l.bandTop {
			l.newPage(false)
		}
		l.drawRow(cells, height, i)
	}
	l.drawBand()
}

func (l *layout) newPage(first bool) {
	l.pdf.AddPage()
	l.y = marginTop
	if first {
		l.drawHeader()
		l.drawTitle()
		l.drawParties()
	} else {
		l.pdf.SetFont(fontFamily, "B", 10)
		l.pdf.SetXY(marginX, l.y)
		l.pdf.CellFormat(contentWidth, 6, l.tr(fmt.Sprintf("%s %s (continued)", l.model.Title, l.model.Meta.Number)), "", 0, "L", false, 0, "")
		l.y += 6 + sectionGap
	}
	l.drawTableHead()
	l.drawPageNumber()
}

func (l *layout) drawHeader() {
	if l.model.Header == nil {
		return
	}
	for i, text := range l.model.Header.Lines {
		height := lineHeight
		if i == 0 {
			l.pdf.SetFont(fontFamily, "B", 13)
			height = 6.5
		} else {
			l.pdf.SetFont(fontFamily, "", bodySize)
		}
		l.pdf.SetXY(marginX, l.y)
		l.pdf.CellFormat(contentWidth, height, l.tr(text), "", 0, "L", false, 0, "")
		l.y += height
	}
	l.y += sectionGap
	l.pdf.SetDrawColor(180, 180, 180)
	l.pdf.Line(marginX, l.y, marginX+contentWidth, l.y)
	l.y += sectionGap
}

func (l *layout) drawTitle() {
	l.pdf.SetFont(fontFamily, "B", 14)
	l.pdf.SetXY(marginX, l.y)
	l.pdf.CellFormat(contentWidth, 8, l.tr(l.model.Title), "", 0, "R", false, 0, "")
	l.y += 8 + sectionGap
}

func (l *layout) drawParties() {
	const (
		leftWidth  = 100.0
		rightX     = marginX + 110.0
		labelWidth = 28.0
		valueWidth = contentWidth - 110.0 - labelWidth
	)
	top := l.y

	left := top
	l.pdf.SetFont(fontFamily, "B", 8)
	l.pdf.SetXY(marginX, left)
	l.pdf.CellFormat(leftWidth, lineHeight, "BILL TO", "", 0, "L", false, 0, "")
	left += lineHeight
	l.pdf.SetFont(fontFamily, "B", 10)
	for _, text := range l.wrap(l.model.Recipient.Name, leftWidth) {
		l.pdf.SetXY(marginX, left)
		l.pdf.CellFormat(leftWidth, 5, text, "", 0, "L", false, 0, "")
		left += 5
	}
	l.pdf.SetFont(fontFamily, "", bodySize)
	for _, addr := range l.model.Recipient.AddressLines {
		for _, text := range l.wrap(addr, leftWidth) {
			l.pdf.SetXY(marginX, left)
			l.pdf.CellFormat(leftWidth, lineHeight, text, "", 0, "L", false, 0, "")
			left += lineHeight
		}
	}

	right := top
	for _, pair := range l.metaPairs() {
		l.pdf.SetFont(fontFamily, "", bodySize)
		values := l.wrap(pair[1], valueWidth)
		l.pdf.SetFont(fontFamily, "B", bodySize)
		l.pdf.SetXY(rightX, right)
		l.pdf.CellFormat(labelWidth, lineHeight, l.tr(pair[0]), "", 0, "L", false, 0, "")
		l.pdf.SetFont(fontFamily, "", bodySize)
		for _, text := range values {
			l.pdf.SetXY(rightX+labelWidth, right)
			l.pdf.CellFormat(valueWidth, lineHeight, text, "", 0, "R", false, 0, "")
			right += lineHeight
		}
	}

	if right > left {
		left = right
	}
	l.y = left + 2*sectionGap
}

func (l *layout) metaPairs() [][2]string {
	m := l.model.Meta
	if l.model.Kind == documents.KindStatement {
		return [][2]string{
			{"Statement No.", m.Number},
			{"Period", m.Period},
			{"Date", longDate(m.Date)},
		}
	}
	return [][2]string{
		{"Invoice No.", m.Number},
		{"Date", longDate(m.Date)},
		{"Due Date", longDate(m.DueDate)},
		{"Terms", "Due on receipt"},
	}
}

func (l *layout) drawTableHead() {
	l.pdf.SetFont(fontFamily, "B", bodySize)
	l.pdf.SetFillColor(226, 234, 244)
	x := marginX
	for _, col := range l.columns {
		l.pdf.SetXY(x, l.y)
		l.pdf.CellFormat(col.width, tableHeadHeight, l.tr(col.title), "", 0, col.align, true, 0, "")
		x += col.width
	}
	l.y += tableHeadHeight
}

// wrapRow splits every cell of a line to its column width. The row height is
// the tallest cell times the line height.
func (l *layout) wrapRow(line documents.Line) ([][]string, float64) {
	l.pdf.SetFont(fontFamily, "", bodySize)
	cells := make([][]string, len(l.columns))
	tallest := 1
	for i, col := range l.columns {
		cells[i] = l.wrap(col.value(line), col.width)
		if len(cells[i]) > tallest {
			tallest = len(cells[i])
		}
	}
	return cells, float64(tallest) * lineHeight
}

func (l *layout) drawRow(cells [][]string, height float64, index int) {
	l.pdf.SetFont(fontFamily, "", bodySize)
	if index%2 == 1 {
		l.pdf.SetFillColor(247, 249, 252)
		l.pdf.Rect(marginX, l.y, contentWidth, height, "F")
	}
	x := marginX
	for i, col := range l.columns {
		for k, text := range cells[i] {
			l.pdf.SetXY(x, l.y+float64(k)*lineHeight)
			l.pdf.CellFormat(col.width, lineHeight, text, "", 0, col.align, false, 0, "")
		}
		x += col.width
	}
	l.y += height
	l.pdf.SetDrawColor(215, 215, 215)
	l.pdf.Line(marginX, l.y, marginX+contentWidth, l.y)
}

func (l *layout) totalsRows() [][2]string {
	t := l.model.Totals
	if l.model.Kind == documents.KindStatement {
		return [][2]string{{"Total Amount Due", Money(t.Total)}}
	}
	return [][2]string{
		{"Subtotal", Money(t.Subtotal)},
		{"GST (9%)", Money(t.Tax)},
		{"Total", Money(t.Total)},
	}
}

func (l *layout) bandHeight() float64 {
	height := float64(len(l.totalsRows())) * totalsRowHeight
	if l.model.Aging != nil {
		height += sectionGap + 2*agingRowHeight
	}
	if l.model.Footer != nil {
		height += sectionGap + float64(len(l.model.Footer.Lines))*lineHeight
	}
	return height
}

func (l *layout) drawBand() {
	y := l.bandTop
	rows := l.totalsRows()
	const (
		labelWidth = 40.0
		valueWidth = 35.0
	)
	x := marginX + contentWidth - labelWidth - valueWidth
	for i, row := range rows {
		style := ""
		if i == len(rows)-1 {
			style = "B"
		}
		l.pdf.SetFont(fontFamily, style, 10)
		l.pdf.SetXY(x, y)
		l.pdf.CellFormat(labelWidth, totalsRowHeight, l.tr(row[0]), "", 0, "L", false, 0, "")
		l.pdf.CellFormat(valueWidth, totalsRowHeight, row[1], "", 0, "R", false, 0, "")
		y += totalsRowHeight
	}

	if a := l.model.Aging; a != nil {
		y += sectionGap
		headers := []string{"Current", "1-30 Days", "31-60 Days", "61-90 Days", "90+ Days", "Total"}
		values := []string{Money(a.Current), Money(a.D1To30), Money(a.D31To60), Money(a.D61To90), Money(a.D90Plus), Money(a.Total)}
		width := contentWidth / float64(len(headers))
		l.pdf.SetFont(fontFamily, "B", 8)
		l.pdf.SetFillColor(226, 234, 244)
		for i, h := range headers {
			l.pdf.SetXY(marginX+float64(i)*width, y)
			l.pdf.CellFormat(width, agingRowHeight, h, "1", 0, "C", true, 0, "")
		}
		y += agingRowHeight
		l.pdf.SetFont(fontFamily, "", bodySize)
		for i, v := range values {
			l.pdf.SetXY(marginX+float64(i)*width, y)
			l.pdf.CellFormat(width, agingRowHeight, v, "1", 0, "C", false, 0, "")
		}
		y += agingRowHeight
	}

	if f := l.model.Footer; f != nil {
		y += sectionGap
		l.pdf.SetFont(fontFamily, "", 8)
		for _, text := range f.Lines {
			l.pdf.SetXY(marginX, y)
			l.pdf.CellFormat(contentWidth, lineHeight, l.tr(text), "", 0, "C", false, 0, "")
			y += lineHeight
		}
	}
}

func (l *layout) drawPageNumber() {
	l.pdf.SetFont(fontFamily, "", 7)
	l.pdf.SetXY(marginX, pageHeight-marginBottom+4)
	l.pdf.CellFormat(contentWidth, 4, fmt.Sprintf("Page %d of {nb}", l.pdf.PageNo()), "", 0, "R", false, 0, "")
}

// wrap soft-wraps text to a cell width with the current font. It always
// returns at least one line.
func (l *layout) wrap(text string, width float64) []string {
	raw := l.pdf.SplitLines([]byte(l.tr(text)), width)
	if len(raw) == 0 {
		return []string{""}
	}
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, string(line))
	}
	return lines
}
