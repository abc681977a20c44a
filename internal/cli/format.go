package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatMoney renders an amount with thousands separators and two decimals.
// e.g., ("Lps", 1234.5) -> "Lps 1,234.50"
func FormatMoney(symbol string, d decimal.Decimal) string {
	d = d.Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole := d.Truncate(0)
	cents := d.Sub(whole).Shift(2).IntPart()
	s := fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(whole.IntPart()), cents)
	if symbol == "" {
		return s
	}
	return symbol + " " + s
}

// FormatPercent formats a 0-100 percentage with one decimal.
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// FormatCount adds thousands separators to a count.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatDate renders a calendar date, or "-" for nil.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// FormatDays describes a signed day count relative to today.
// e.g., 3 -> "en 3 días", -1 -> "hace 1 día", 0 -> "hoy"
func FormatDays(n int) string {
	unit := func(v int) string {
		if v == 1 {
			return "1 día"
		}
		return fmt.Sprintf("%d días", v)
	}
	switch {
	case n == 0:
		return "hoy"
	case n > 0:
		return "en " + unit(n)
	default:
		return "hace " + unit(-n)
	}
}

// ParseAmount parses user input such as "1,250.50" or "1250".
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if clean == "" {
		return decimal.Zero, fmt.Errorf("monto vacío")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monto inválido %q", s)
	}
	return d, nil
}

// ParseDate parses YYYY-MM-DD in the local timezone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha inválida %q (use AAAA-MM-DD)", s)
	}
	return t, nil
}
