// Command finanzas is the command-line front end for tracking debts, goals,
// savings funds, lottery spending and counterparties.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finanzas/internal/backend"
	"finanzas/internal/cli"
	applog "finanzas/internal/log"
)

var (
	app         *backend.App
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "finanzas",
	Short:         "Control de deudas, metas, ahorros y lotería",
	Long:          "Registra deudas, metas de ahorro cíclicas, fondos de ahorro y gastos de lotería.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cli.LoadEnvFile()
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger := cli.SetupLogger(applog.ComponentCLI, level)
		cfg, prefs := cli.LoadAndValidateConfig(logger)
		app = cli.InitApp(cmd.Context(), logger, cfg, prefs)
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Mostrar registros de depuración")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if app != nil {
			app.Close()
		}
		fmt.Fprintln(os.Stderr, cli.Warning(err.Error()))
		os.Exit(1)
	}
}

func money(d decimal.Decimal) string {
	return cli.FormatMoney(app.Preferences.CurrencySymbol, d)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido %q", s)
	}
	return id, nil
}

// parseIndex converts a 1-based position shown to the user into a slice index.
func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("posición inválida %q", s)
	}
	return n - 1, nil
}

func parseOptionalID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseOptionalAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := cli.ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func outf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func outln(cmd *cobra.Command, args ...any) {
	fmt.Fprintln(cmd.OutOrStdout(), args...)
}
