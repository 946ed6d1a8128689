// Package export renders budgets as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"budgets/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	EntriesSheet = "Entries"

	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// numFmtTwoDecimals is the built-in "0.00" format.
	numFmtTwoDecimals = 2
)

var (
	summaryHeader = []any{"Kind", "Category", "Planned", "Actual", "Remaining", "Entries"}
	entriesHeader = []any{"Kind", "Category", "Day", "Posted date", "Entry", "Amount"}
)

// FileName is the download name for a budget workbook.
func FileName(b core.Budget) string {
	return fmt.Sprintf("budget-%s.xlsx", b.Token())
}

// WriteBudgetWorkbook writes b, recomputed, as a workbook with a summary
// sheet (one row per bucket and category) and an entries sheet.
func WriteBudgetWorkbook(w io.Writer, user *core.User, b core.Budget) error {
	core.Recompute(&b)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(EntriesSheet); err != nil {
		return fmt.Errorf("create entries sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	sw := sheetWriter{f: f}
	sw.summary(user, b, bold, money)
	sw.entries(b, bold, money)
	if sw.err != nil {
		return sw.err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so row writes read as a straight list.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (s *sheetWriter) row(sheet string, row int, values []any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetSheetRow(sheet, cell, &values); err != nil {
		s.err = fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
}

func (s *sheetWriter) style(sheet, from, to string, style int) {
	if s.err != nil {
		return
	}
	if err := s.f.SetCellStyle(sheet, from, to, style); err != nil {
		s.err = fmt.Errorf("style %s %s:%s: %w", sheet, from, to, err)
	}
}

func (s *sheetWriter) widths(sheet string, widths ...float64) {
	for i, w := range widths {
		if s.err != nil {
			return
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			s.err = err
			return
		}
		if err := s.f.SetColWidth(sheet, col, col, w); err != nil {
			s.err = err
		}
	}
}

func (s *sheetWriter) summary(user *core.User, b core.Budget, bold, money int) {
	const sheet = SummarySheet
	owner := ""
	if user != nil {
		owner = user.Email
	}
	s.row(sheet, 1, []any{"Budget", b.Name})
	s.row(sheet, 2, []any{"Owner", owner})
	s.row(sheet, 4, summaryHeader)
	s.style(sheet, "A4", "F4", bold)

	summary := core.Summarize(b)
	r := 5
	for _, bucket := range summary.Buckets {
		s.row(sheet, r, []any{
			bucket.Kind.Label(), "Total",
			amount(bucket.Planned), amount(bucket.Current), amount(bucket.Remaining),
			len(bucket.Categories),
		})
		s.style(sheet, fmt.Sprintf("A%d", r), fmt.Sprintf("B%d", r), bold)
		r++
		for _, c := range bucket.Categories {
			s.row(sheet, r, []any{
				bucket.Kind.Label(), c.Name,
				amount(c.Planned), amount(c.Total), amount(c.Remaining),
				c.Entries,
			})
			r++
		}
	}
	s.row(sheet, r+1, []any{"Net", "", "", amount(summary.Net)})
	s.style(sheet, fmt.Sprintf("A%d", r+1), fmt.Sprintf("A%d", r+1), bold)
	s.style(sheet, "C5", fmt.Sprintf("E%d", r+1), money)
	s.widths(sheet, 12, 28, 12, 12, 12, 9)
}

func (s *sheetWriter) entries(b core.Budget, bold, money int) {
	const sheet = EntriesSheet
	s.row(sheet, 1, entriesHeader)
	s.style(sheet, "A1", "F1", bold)

	r := 2
	for _, kind := range core.Kinds() {
		for _, c := range b.CategoriesOf(kind) {
			for _, day := range core.GroupEntriesByDay(c.Entries) {
				for _, e := range day.Entries {
					s.row(sheet, r, []any{
						kind.Label(), c.Name, e.PostedDay, e.PostedDate, e.Name, amount(e.Amount),
					})
					r++
				}
			}
		}
	}
	if r > 2 {
		s.style(sheet, "F2", fmt.Sprintf("F%d", r-1), money)
	}
	s.widths(sheet, 12, 24, 6, 12, 32, 12)
}

func amount(m core.Money) float64 {
	return m.Decimal().InexactFloat64()
}
