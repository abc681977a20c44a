package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/core"
	"finanzas/internal/services"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Metas de ahorro cíclicas",
}

var (
	flagGoalDue       string
	flagGoalDaily     string
	flagGoalDebt      string
	flagGoalSaving    string
	flagGoalCompleted bool
	flagGoalAll       bool
)

func init() {
	add := &cobra.Command{
		Use:   "add NOMBRE META",
		Short: "Crear una meta",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalAdd,
	}
	add.Flags().StringVar(&flagGoalDue, "due", "", "Fecha objetivo AAAA-MM-DD; la meta se reinicia en esa fecha")
	add.Flags().StringVar(&flagGoalDaily, "daily", "", "Aporte diario sugerido")
	add.Flags().StringVar(&flagGoalDebt, "debt", "", "Id de la deuda a la que se aplicará")
	add.Flags().StringVar(&flagGoalSaving, "saving", "", "Id del ahorro anual que recibe el total al completar la meta")

	list := &cobra.Command{
		Use:   "list",
		Short: "Listar metas activas",
		Args:  cobra.NoArgs,
		RunE:  runGoalList,
	}
	list.Flags().BoolVar(&flagGoalCompleted, "completed", false, "Solo metas completadas")
	list.Flags().BoolVar(&flagGoalAll, "all", false, "Todas las metas")

	contribute := &cobra.Command{
		Use:   "contribute ID MONTO",
		Short: "Aportar a una meta",
		Args:  cobra.ExactArgs(2),
		RunE:  runGoalContribute,
	}
	contribute.Flags().StringVar(&flagNote, "note", "", "Nota del aporte")

	goalCmd.AddCommand(
		add, list, contribute,
		&cobra.Command{Use: "show ID", Short: "Detalle y aportes de una meta", Args: cobra.ExactArgs(1), RunE: runGoalShow},
		&cobra.Command{Use: "note ID POS NOTA", Short: "Cambiar la nota de un aporte", Args: cobra.ExactArgs(3), RunE: runGoalNote},
		&cobra.Command{Use: "apply ID", Short: "Aplicar una meta completada a su deuda", Args: cobra.ExactArgs(1), RunE: runGoalApply},
		&cobra.Command{Use: "link-debt ID DEUDA_ID", Short: "Vincular la meta a una deuda", Args: cobra.ExactArgs(2), RunE: runGoalLinkDebt},
		&cobra.Command{Use: "unlink-debt ID", Short: "Quitar la deuda vinculada", Args: cobra.ExactArgs(1), RunE: runGoalUnlinkDebt},
		&cobra.Command{Use: "link-saving ID [AHORRO_ID]", Short: "Vincular o quitar el ahorro anual", Args: cobra.RangeArgs(1, 2), RunE: runGoalLinkSaving},
		&cobra.Command{Use: "stats", Short: "Resumen de metas", Args: cobra.NoArgs, RunE: runGoalStats},
		&cobra.Command{Use: "delete ID", Short: "Eliminar una meta", Args: cobra.ExactArgs(1), RunE: runGoalDelete},
	)
	rootCmd.AddCommand(goalCmd)
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	target, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	g := core.NewGoal(args[0], target, time.Now())
	if flagGoalDue != "" {
		due, err := cli.ParseDate(flagGoalDue)
		if err != nil {
			return err
		}
		g.DueDate = &due
	}
	if g.SuggestedDailyContribution, err = parseOptionalAmount(flagGoalDaily); err != nil {
		return err
	}
	debtID, err := parseOptionalID(flagGoalDebt)
	if err != nil {
		return err
	}
	savingID, err := parseOptionalID(flagGoalSaving)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	id, err := app.Goals.Create(ctx, g)
	if err != nil {
		return err
	}
	if debtID != nil {
		if err := app.Goals.LinkDebt(ctx, id, *debtID); err != nil {
			return fmt.Errorf("meta %d creada, pero no se pudo vincular la deuda: %w", id, err)
		}
	}
	if savingID != nil {
		if err := app.Goals.LinkAnnualSaving(ctx, id, savingID); err != nil {
			return fmt.Errorf("meta %d creada, pero no se pudo vincular el ahorro: %w", id, err)
		}
	}
	outln(cmd, cli.Success(fmt.Sprintf("Meta %d creada: %s por %s", id, g.Name, money(g.TargetAmount))))
	return nil
}

func runGoalList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		goals []*core.Goal
		err   error
	)
	switch {
	case flagGoalAll:
		goals, err = app.Goals.List(ctx)
	case flagGoalCompleted:
		goals, err = app.Goals.ListCompleted(ctx)
	default:
		goals, err = app.Goals.ListActive(ctx)
	}
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		outln(cmd, "  No hay metas.")
		return nil
	}

	now := time.Now()
	t := cli.Table{Headers: []string{"Id", "Nombre", "Ciclo", "Meta", "Ahorrado", "Progreso", "Fecha"}}
	for _, g := range goals {
		due := "-"
		if days, ok := g.DaysUntilDue(now); ok {
			due = cli.FormatDays(days)
		}
		if g.Completed {
			due = "completada"
			if g.ScheduledRestartDate != nil {
				due = "reinicia " + cli.FormatDate(g.ScheduledRestartDate)
			}
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(g.ID), g.Name, fmt.Sprint(g.CycleNumber),
			money(g.TargetAmount), money(g.TotalContributed()), cli.FormatPercent(g.Progress()), due,
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runGoalShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	g, err := app.Goals.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Ciclo", fmt.Sprint(g.CycleNumber)},
		{"Meta", money(g.TargetAmount)},
		{"Ahorrado", money(g.TotalContributed())},
		{"Restante", money(g.RemainingAmount())},
		{"Progreso", cli.RenderProgressBar(g.Progress(), 20)},
		{"Creada", cli.FormatDate(&g.CreationDate)},
		{"Fecha objetivo", cli.FormatDate(g.DueDate)},
	}
	if g.SuggestedDailyContribution != nil {
		pairs = append(pairs, [2]string{"Aporte diario", money(*g.SuggestedDailyContribution)})
	}
	if g.LinkedDebtID != nil {
		pairs = append(pairs, [2]string{"Deuda vinculada", fmt.Sprintf("%s (%d)", g.LinkedDebtName, *g.LinkedDebtID)})
	}
	if g.DebtApplication != nil {
		pairs = append(pairs, [2]string{"Aplicada", fmt.Sprintf("%s a %s", money(g.DebtApplication.Amount), g.DebtApplication.DebtName)})
	}
	if g.AnnualSavingID != nil {
		pairs = append(pairs, [2]string{"Ahorro anual", fmt.Sprintf("%s (%d)", g.AnnualSavingName, *g.AnnualSavingID)})
	}
	if g.Completed {
		pairs = append(pairs, [2]string{"Completada", cli.FormatDate(g.CompletedDate)})
	}
	if g.ScheduledRestartDate != nil {
		pairs = append(pairs, [2]string{"Reinicio", cli.FormatDate(g.ScheduledRestartDate)})
	}

	outln(cmd, cli.RenderTitle(g.Name))
	outf(cmd, "%s", cli.RenderKV(pairs))
	if len(g.Contributions) == 0 {
		return nil
	}
	t := cli.Table{Title: "Aportes", Headers: []string{"#", "Fecha", "Monto", "Nota"}}
	for i, c := range g.Contributions {
		date := c.Date
		t.Rows = append(t.Rows, []string{fmt.Sprint(i + 1), cli.FormatDate(&date), money(c.Amount), c.Note})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runGoalContribute(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	res, err := app.Goals.AddContribution(cmd.Context(), id, amount, flagNote)
	if err != nil {
		return err
	}
	printContribution(cmd, res)
	return nil
}

func printContribution(cmd *cobra.Command, res services.ContributionOutcome) {
	outln(cmd, cli.Success(fmt.Sprintf("Aporte de %s a la meta %d (%s)",
		money(res.Contribution.Amount), res.GoalID, cli.FormatPercent(res.Progress))))
	if res.JustCompleted {
		outln(cmd, cli.Success("¡Meta completada!"))
	}
	if res.RestartScheduled != nil {
		outln(cmd, "  El siguiente ciclo inicia el "+cli.FormatDate(res.RestartScheduled))
	}
	if res.Successor != nil {
		outln(cmd, cli.Success(fmt.Sprintf("Ciclo %d creado como meta %d", res.Successor.CycleNumber, res.Successor.ID)))
	}
	if res.RestartErr != nil {
		outln(cmd, cli.Warning(fmt.Sprintf("No se pudo reiniciar la meta: %v", res.RestartErr)))
	}
	if res.AnnualTransfer != nil {
		outln(cmd, cli.Success(fmt.Sprintf("%s transferido a %s", money(res.AnnualTransfer.Amount), res.AnnualTransfer.SavingName)))
	}
	if res.AnnualTransferErr != nil {
		outln(cmd, cli.Warning(fmt.Sprintf("No se pudo transferir al ahorro anual: %v", res.AnnualTransferErr)))
	}
	if res.OverflowCarry != nil {
		outln(cmd, cli.Success(fmt.Sprintf("Excedente de %s pasado al siguiente ciclo", money(res.OverflowCarry.Contribution.Amount))))
		printContribution(cmd, *res.OverflowCarry)
	}
	if res.OverflowTransfer != nil {
		outln(cmd, cli.Success(fmt.Sprintf("Excedente de %s depositado en %s", money(res.OverflowTransfer.Amount), res.OverflowTransfer.SavingName)))
	}
	if res.OverflowErr != nil {
		outln(cmd, cli.Warning(fmt.Sprintf("No se pudo mover el excedente de %s: %v", money(res.Overflow), res.OverflowErr)))
	}
}

func runGoalNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	if _, err := app.Goals.UpdateContributionNote(cmd.Context(), id, idx, args[2]); err != nil {
		return err
	}
	outln(cmd, cli.Success("Nota actualizada"))
	return nil
}

func runGoalApply(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	res, err := app.Goals.ApplyToDebt(cmd.Context(), id)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("%s aplicado a %s; saldo %s",
		money(res.Applied), res.DebtName, money(res.RemainingBalance))))
	if res.DebtSettled {
		outln(cmd, cli.Success("Deuda saldada"))
	}
	return nil
}

func runGoalLinkDebt(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	debtID, err := parseID(args[1])
	if err != nil {
		return err
	}
	if err := app.Goals.LinkDebt(cmd.Context(), id, debtID); err != nil {
		return err
	}
	outln(cmd, cli.Success("Deuda vinculada"))
	return nil
}

func runGoalUnlinkDebt(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Goals.UnlinkDebt(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Deuda desvinculada"))
	return nil
}

func runGoalLinkSaving(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	var savingID *int64
	if len(args) == 2 {
		if savingID, err = parseOptionalID(args[1]); err != nil {
			return err
		}
	}
	if err := app.Goals.LinkAnnualSaving(cmd.Context(), id, savingID); err != nil {
		return err
	}
	if savingID == nil {
		outln(cmd, cli.Success("Ahorro anual desvinculado"))
	} else {
		outln(cmd, cli.Success("Ahorro anual vinculado"))
	}
	return nil
}

func runGoalStats(cmd *cobra.Command, _ []string) error {
	st, err := app.Goals.Stats(cmd.Context())
	if err != nil {
		return err
	}
	outln(cmd, cli.RenderTitle("METAS"))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Activas", cli.FormatCount(st.Active)},
		{"Completadas", cli.FormatCount(st.Completed)},
		{"Meta total", money(st.TotalTarget)},
		{"Ahorrado", money(st.TotalSaved)},
		{"Restante", money(st.Remaining)},
		{"Progreso promedio", cli.RenderProgressBar(st.AverageProgress, 20)},
		{"Ciclo más alto", fmt.Sprint(st.HighestCycle)},
	}))
	return nil
}

func runGoalDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Goals.Delete(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Meta eliminada"))
	return nil
}
