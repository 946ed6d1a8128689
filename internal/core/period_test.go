package core

import (
	"errors"
	"testing"
)

func TestNormalizePeriod(t *testing.T) {
	p, err := NormalizePeriod("2024-03")
	if err != nil {
		t.Fatalf("NormalizePeriod: %v", err)
	}
	want := Period{Year: 2024, MonthNumStr: "03", Month: "March", Name: "March, 2024"}
	if p != want {
		t.Errorf("NormalizePeriod = %+v, want %+v", p, want)
	}

	p, err = NormalizePeriod("2023-12")
	if err != nil {
		t.Fatalf("NormalizePeriod: %v", err)
	}
	if p.Name != "December, 2023" || p.MonthNumStr != "12" {
		t.Errorf("NormalizePeriod(2023-12) = %+v", p)
	}
}

func TestNormalizePeriod_Invalid(t *testing.T) {
	for _, token := range []string{"2024-13", "2024-00", "2024", "", "abcd-01", "2024-xx", "-03", "0-05"} {
		_, err := NormalizePeriod(token)
		if !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("NormalizePeriod(%q) error = %v, want ErrInvalidPeriod", token, err)
		}
	}
}

func TestPeriodToken(t *testing.T) {
	for _, token := range []string{"2024-01", "1999-12", "2030-07"} {
		p, err := NormalizePeriod(token)
		if err != nil {
			t.Fatal(err)
		}
		if got := p.Token(); got != token {
			t.Errorf("Token() = %q, want %q", got, token)
		}
	}
}

func TestPeriodCompare(t *testing.T) {
	tests := []struct {
		a, b Period
		want int
	}{
		{NewPeriod(2024, 3), NewPeriod(2024, 3), 0},
		{NewPeriod(2024, 2), NewPeriod(2024, 11), -1},
		{NewPeriod(2025, 1), NewPeriod(2024, 12), 1},
		{NewPeriod(2023, 12), NewPeriod(2024, 1), -1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a.Name, tt.b.Name, got, tt.want)
		}
	}
}
