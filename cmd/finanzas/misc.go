package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/storage"
)

var (
	flagHistCollection string
	flagHistID         int64
	flagHistAction     string
	flagHistFrom       string
	flagHistTo         string
	flagHistLimit      int
)

func init() {
	history := &cobra.Command{
		Use:   "history",
		Short: "Auditoría de cambios",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	history.Flags().StringVar(&flagHistCollection, "collection", "", "debts, goals, savings, lottery o persons")
	history.Flags().Int64Var(&flagHistID, "id", 0, "Id del registro")
	history.Flags().StringVar(&flagHistAction, "action", "", "create, update o delete")
	history.Flags().StringVar(&flagHistFrom, "from", "", "Desde AAAA-MM-DD")
	history.Flags().StringVar(&flagHistTo, "to", "", "Hasta AAAA-MM-DD (inclusive)")
	history.Flags().IntVar(&flagHistLimit, "limit", 30, "Entradas a mostrar (0 = todas)")

	rootCmd.AddCommand(
		history,
		&cobra.Command{Use: "prune", Short: "Borrar auditoría antigua", Args: cobra.NoArgs, RunE: runPrune},
		&cobra.Command{Use: "insights", Short: "Análisis y recomendaciones", Args: cobra.NoArgs, RunE: runInsights},
		&cobra.Command{Use: "reconcile", Short: "Reiniciar metas cuyo nuevo ciclo ya venció", Args: cobra.NoArgs, RunE: runReconcile},
	)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	f := storage.HistoryFilter{EntityID: flagHistID, Limit: flagHistLimit}
	if flagHistCollection != "" {
		c, ok := storage.ParseCollection(strings.ToLower(flagHistCollection))
		if !ok {
			return fmt.Errorf("colección desconocida %q", flagHistCollection)
		}
		f.Collection = c
	}
	switch a := storage.Action(strings.ToLower(flagHistAction)); a {
	case "", storage.ActionCreate, storage.ActionUpdate, storage.ActionDelete:
		f.Action = a
	default:
		return fmt.Errorf("acción desconocida %q", flagHistAction)
	}
	if flagHistFrom != "" {
		d, err := cli.ParseDate(flagHistFrom)
		if err != nil {
			return err
		}
		f.From = d
	}
	if flagHistTo != "" {
		d, err := cli.ParseDate(flagHistTo)
		if err != nil {
			return err
		}
		f.To = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	entries, err := app.History.Query(cmd.Context(), f)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		outln(cmd, "  Sin cambios registrados.")
		return nil
	}
	t := cli.Table{Headers: []string{"Fecha", "Colección", "Id", "Acción"}}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04"), string(e.Collection), fmt.Sprint(e.EntityID), string(e.Action),
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runPrune(cmd *cobra.Command, _ []string) error {
	n, err := app.History.Prune(cmd.Context())
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("%s entradas eliminadas", cli.FormatCount(int(n)))))
	return nil
}

func runInsights(cmd *cobra.Command, _ []string) error {
	insights, err := app.Insights.Generate(cmd.Context())
	if err != nil {
		return err
	}
	if len(insights) == 0 {
		outln(cmd, "  Nada que reportar.")
		return nil
	}
	for _, in := range insights {
		outf(cmd, "%s %s\n", cli.Severity(string(in.Severity)), in.Title)
		outf(cmd, "  %s\n", in.Message)
		if in.Details != "" {
			outf(cmd, "  %s\n", in.Details)
		}
		for _, c := range in.Comparisons {
			outf(cmd, "    · %s\n", c)
		}
		if in.Action != "" {
			outf(cmd, "  → %s\n", in.Action)
		}
		outln(cmd)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	restarts, err := app.Restarts.Run(cmd.Context())
	if err != nil {
		return err
	}
	if len(restarts) == 0 {
		outln(cmd, "  No hay metas por reiniciar.")
		return nil
	}
	for _, r := range restarts {
		outln(cmd, cli.Success(fmt.Sprintf("%s: ciclo %d creado como meta %d",
			r.Successor.Name, r.Successor.CycleNumber, r.Successor.ID)))
	}
	return nil
}
