package export

import (
	"bytes"
	"strconv"
	"testing"
	"time"

	"budgets/internal/core"

	"github.com/xuri/excelize/v2"
)

func sampleBudget(t *testing.T) (*core.User, core.Budget) {
	t.Helper()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	u := core.NewUser("ada@example.com", "Ada", "Lovelace", "", now)
	b, err := u.AddBudget(core.NewPeriod(2024, 3), now)
	if err != nil {
		t.Fatalf("AddBudget() error = %v", err)
	}
	salary, _ := b.AddCategory(core.NewCategory{Name: "Salary", Kind: core.KindIncome, Planned: core.Money{Cents: 300000}})
	rent, _ := b.AddCategory(core.NewCategory{Name: "Rent", Kind: core.KindExpenses, Planned: core.Money{Cents: 120000}})
	salaryID, rentID := salary.ID, rent.ID
	mustEntry := func(cid string, n core.NewEntry) {
		t.Helper()
		if _, err := b.AddEntry(cid, n); err != nil {
			t.Fatalf("AddEntry() error = %v", err)
		}
	}
	mustEntry(salaryID, core.NewEntry{Name: "Paycheck", PostedDay: 15, Amount: core.Money{Cents: 150000}})
	mustEntry(rentID, core.NewEntry{Name: "March rent", PostedDate: "2024-03-01", Amount: core.Money{Cents: 120000}})
	mustEntry(salaryID, core.NewEntry{Name: "Bonus", PostedDay: 2, Amount: core.Money{Cents: 5050}})
	return u, *b
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cellFloat(t *testing.T, f *excelize.File, sheet, cell string) float64 {
	t.Helper()
	raw, err := f.GetCellValue(sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s) error = %v", cell, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Fatalf("cell %s = %q, not a number", cell, raw)
	}
	return v
}

func TestWriteBudgetWorkbook(t *testing.T) {
	u, b := sampleBudget(t)

	var buf bytes.Buffer
	if err := WriteBudgetWorkbook(&buf, u, b); err != nil {
		t.Fatalf("WriteBudgetWorkbook() error = %v", err)
	}
	f := openWorkbook(t, buf.Bytes())

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SummarySheet || sheets[1] != EntriesSheet {
		t.Fatalf("sheets = %v, want [%s %s]", sheets, SummarySheet, EntriesSheet)
	}

	if got, _ := f.GetCellValue(SummarySheet, "B1"); got != "March, 2024" {
		t.Errorf("B1 = %q, want March, 2024", got)
	}
	if got, _ := f.GetCellValue(SummarySheet, "B2"); got != "ada@example.com" {
		t.Errorf("B2 = %q, want owner email", got)
	}

	// Row 5 is the income bucket, row 6 its only category.
	if got, _ := f.GetCellValue(SummarySheet, "A5"); got != "Income" {
		t.Errorf("A5 = %q, want Income", got)
	}
	if got := cellFloat(t, f, SummarySheet, "C5"); got != 3000 {
		t.Errorf("income planned = %v, want 3000", got)
	}
	if got := cellFloat(t, f, SummarySheet, "D5"); got != 1550.5 {
		t.Errorf("income actual = %v, want 1550.5", got)
	}
	if got, _ := f.GetCellValue(SummarySheet, "B6"); got != "Salary" {
		t.Errorf("B6 = %q, want Salary", got)
	}

	rows, err := f.GetRows(EntriesSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("entries rows = %d, want 4 (header + 3)", len(rows))
	}
	// Income entries come first, earliest day first.
	if rows[1][4] != "Bonus" || rows[2][4] != "Paycheck" || rows[3][4] != "March rent" {
		t.Errorf("entry order = %q, %q, %q", rows[1][4], rows[2][4], rows[3][4])
	}
	if rows[3][3] != "03/01/2024" {
		t.Errorf("posted date = %q, want 03/01/2024", rows[3][3])
	}
}

func TestWriteBudgetWorkbook_EmptyBudget(t *testing.T) {
	now := time.Now()
	u := core.NewUser("a@example.com", "A", "B", "", now)
	b, _ := u.AddBudget(core.NewPeriod(2024, 1), now)

	var buf bytes.Buffer
	if err := WriteBudgetWorkbook(&buf, u, *b); err != nil {
		t.Fatalf("WriteBudgetWorkbook() error = %v", err)
	}
	f := openWorkbook(t, buf.Bytes())
	rows, err := f.GetRows(EntriesSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("entries rows = %d, want header only", len(rows))
	}
}

func TestFileName(t *testing.T) {
	b := core.Budget{Period: core.NewPeriod(2024, 3)}
	if got := FileName(b); got != "budget-2024-03.xlsx" {
		t.Errorf("FileName() = %q, want budget-2024-03.xlsx", got)
	}
}
