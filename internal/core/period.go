package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies the month a budget covers.
type Period struct {
	Year        int    `json:"year"`
	MonthNumStr string `json:"monthNumStr"`
	Month       string `json:"month"`
	Name        string `json:"name"`
}

// NormalizePeriod converts a month-picker token ("2024-03") into a Period.
// Months outside 1..12 and malformed tokens fail with ErrInvalidPeriod.
func NormalizePeriod(token string) (Period, error) {
	token = strings.TrimSpace(token)
	yearStr, monthStr, ok := strings.Cut(token, "-")
	if !ok || yearStr == "" || monthStr == "" {
		return Period{}, fmt.Errorf("%w: %q: expected YYYY-MM", ErrInvalidPeriod, token)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1 || year > 9999 {
		return Period{}, fmt.Errorf("%w: %q: bad year", ErrInvalidPeriod, token)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: %q: month must be between 1 and 12", ErrInvalidPeriod, token)
	}
	return NewPeriod(year, month), nil
}

// NewPeriod builds a Period from numeric parts. month must be in 1..12.
func NewPeriod(year, month int) Period {
	name := time.Month(month).String()
	return Period{
		Year:        year,
		MonthNumStr: fmt.Sprintf("%02d", month),
		Month:       name,
		Name:        fmt.Sprintf("%s, %d", name, year),
	}
}

// MonthNumber returns the numeric month, or 0 when MonthNumStr is not a number.
func (p Period) MonthNumber() int {
	n, err := strconv.Atoi(p.MonthNumStr)
	if err != nil {
		return 0
	}
	return n
}

// Token returns the "YYYY-MM" form accepted by NormalizePeriod.
func (p Period) Token() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.MonthNumber())
}

// Compare orders periods by year, then by numeric month.
func (p Period) Compare(o Period) int {
	switch {
	case p.Year < o.Year:
		return -1
	case p.Year > o.Year:
		return 1
	}
	pm, om := p.MonthNumber(), o.MonthNumber()
	switch {
	case pm < om:
		return -1
	case pm > om:
		return 1
	}
	return 0
}
