package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Preferences holds user-tunable behavior read from a TOML file.
type Preferences struct {
	DefaultSavingsName   string  `toml:"default_savings_name"`
	AnnualReturnRate     float64 `toml:"annual_return_rate"`
	CurrencySymbol       string  `toml:"currency_symbol"`
	HistoryRetentionDays int     `toml:"history_retention_days"`
	RandomSavingMin      int     `toml:"random_saving_min"`
	RandomSavingMax      int     `toml:"random_saving_max"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DefaultSavingsName:   "Ahorros",
		AnnualReturnRate:     0.05,
		CurrencySymbol:       "Lps",
		HistoryRetentionDays: 90,
		RandomSavingMin:      10,
		RandomSavingMax:      600,
	}
}

// ReturnRate is AnnualReturnRate as an exact decimal.
func (p Preferences) ReturnRate() decimal.Decimal {
	return decimal.NewFromFloat(p.AnnualReturnRate)
}

func (p Preferences) Validate() error {
	var errors []string
	if strings.TrimSpace(p.DefaultSavingsName) == "" {
		errors = append(errors, "default_savings_name cannot be empty")
	}
	if p.AnnualReturnRate < 0 || p.AnnualReturnRate > 1 {
		errors = append(errors, fmt.Sprintf("annual_return_rate %v must be between 0 and 1", p.AnnualReturnRate))
	}
	if p.HistoryRetentionDays < 1 {
		errors = append(errors, fmt.Sprintf("history_retention_days %d must be at least 1", p.HistoryRetentionDays))
	}
	if p.RandomSavingMin < 1 || p.RandomSavingMax < p.RandomSavingMin {
		errors = append(errors, fmt.Sprintf("random saving range [%d, %d] is invalid", p.RandomSavingMin, p.RandomSavingMax))
	}
	if len(errors) > 0 {
		return fmt.Errorf("preferences validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// LoadPreferences reads path over the defaults. A missing file yields the defaults.
func LoadPreferences(path string) (Preferences, error) {
	prefs := DefaultPreferences()
	if path == "" {
		return prefs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("reading preferences: %w", err)
	}

	if err := toml.Unmarshal(data, &prefs); err != nil {
		return prefs, fmt.Errorf("parsing preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// SavePreferences writes prefs to path, creating its directory.
func SavePreferences(path string, prefs Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating preferences file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(prefs)
}
