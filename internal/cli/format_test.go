package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		symbol string
		in     string
		want   string
	}{
		{"Lps", "0", "Lps 0.00"},
		{"Lps", "1234.5", "Lps 1,234.50"},
		{"Lps", "1234567.891", "Lps 1,234,567.89"},
		{"Lps", "-2500", "Lps -2,500.00"},
		{"Lps", "0.005", "Lps 0.01"},
		{"", "99.99", "99.99"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FormatMoney(tt.symbol, decimal.RequireFromString(tt.in))
			if got != tt.want {
				t.Errorf("FormatMoney(%q, %s) = %q, want %q", tt.symbol, tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatDays(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "hoy"},
		{1, "en 1 día"},
		{5, "en 5 días"},
		{-1, "hace 1 día"},
		{-30, "hace 30 días"},
	}
	for _, tt := range tests {
		if got := FormatDays(tt.in); got != tt.want {
			t.Errorf("FormatDays(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDateAndCount(t *testing.T) {
	if got := FormatDate(nil); got != "-" {
		t.Errorf("FormatDate(nil) = %q", got)
	}
	d := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	if got := FormatDate(&d); got != "2025-03-09" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatCount(1234567); got != "1,234,567" {
		t.Errorf("FormatCount = %q", got)
	}
	if got := FormatPercent(decimal.RequireFromString("33.333")); got != "33.3%" {
		t.Errorf("FormatPercent = %q", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1250", "1250", false},
		{" 1,250.50 ", "1250.5", false},
		{"-3", "-3", false},
		{"", "", true},
		{"doce", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2025-12-31")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got.Year() != 2025 || got.Month() != time.December || got.Day() != 31 {
		t.Errorf("unexpected date %v", got)
	}
	if _, err := ParseDate("31/12/2025"); err == nil {
		t.Error("expected error for wrong layout")
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Title:   "Deudas",
		Headers: []string{"Nombre", "Saldo"},
		Rows:    [][]string{{"Tarjeta", "Lps 1,000.00"}, {"Carro", "Lps 50.00"}},
	})
	if !strings.Contains(out, "Tarjeta") || !strings.Contains(out, "Lps 1,000.00") {
		t.Fatalf("table missing cells:\n%s", out)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// title, top, header, separator, 2 rows, bottom
	if len(lines) != 7 {
		t.Fatalf("expected 7 lines, got %d:\n%s", len(lines), out)
	}
	w := lipgloss.Width(lines[1])
	for _, l := range lines[2:] {
		if lipgloss.Width(l) != w {
			t.Errorf("ragged table line %q", l)
		}
	}

	if RenderTable(Table{}) != "" {
		t.Error("empty table should render nothing")
	}
}

func TestRenderProgressBar(t *testing.T) {
	out := RenderProgressBar(decimal.NewFromInt(50), 10)
	if strings.Count(out, "█") != 5 || !strings.Contains(out, "50.0%") {
		t.Errorf("unexpected bar %q", out)
	}
	if out := RenderProgressBar(decimal.NewFromInt(150), 4); strings.Count(out, "█") != 4 {
		t.Errorf("bar should clamp at full, got %q", out)
	}
}
