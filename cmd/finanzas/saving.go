package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/core"
)

var savingCmd = &cobra.Command{
	Use:   "saving",
	Short: "Fondos de ahorro",
}

var (
	flagSavingTarget      string
	flagSavingUntouchable bool
	flagSavingYear        int
	flagSavingLoan        bool
	flagSavingLimit       int
)

func init() {
	add := &cobra.Command{
		Use:   "add NOMBRE",
		Short: "Crear un fondo de ahorro",
		Args:  cobra.ExactArgs(1),
		RunE:  runSavingAdd,
	}
	add.Flags().StringVar(&flagSavingTarget, "target", "", "Meta opcional del fondo")
	add.Flags().BoolVar(&flagSavingUntouchable, "untouchable", false, "Solo permite retiros como préstamo interno")
	add.Flags().IntVar(&flagSavingYear, "annual", 0, "Marcar como ahorro anual para este año")

	deposit := &cobra.Command{
		Use:   "deposit ID MONTO",
		Short: "Depositar en un fondo",
		Args:  cobra.ExactArgs(2),
		RunE:  runSavingDeposit,
	}
	deposit.Flags().StringVar(&flagNote, "note", "", "Nota del depósito")

	withdraw := &cobra.Command{
		Use:   "withdraw ID MONTO",
		Short: "Retirar de un fondo (requiere --note)",
		Args:  cobra.ExactArgs(2),
		RunE:  runSavingWithdraw,
	}
	withdraw.Flags().StringVar(&flagNote, "note", "", "Motivo del retiro")
	withdraw.Flags().BoolVar(&flagSavingLoan, "loan", false, "Registrar como préstamo interno")

	repay := &cobra.Command{
		Use:   "repay ID MONTO",
		Short: "Devolver un préstamo interno",
		Args:  cobra.ExactArgs(2),
		RunE:  runSavingRepay,
	}
	repay.Flags().StringVar(&flagNote, "note", "", "Nota de la devolución")

	review := &cobra.Command{
		Use:   "review ID",
		Short: "Guardar la revisión anual del fondo",
		Args:  cobra.ExactArgs(1),
		RunE:  runSavingReview,
	}
	review.Flags().StringVar(&flagNote, "note", "", "Notas de la revisión")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Detalle y movimientos de un fondo",
		Args:  cobra.ExactArgs(1),
		RunE:  runSavingShow,
	}
	show.Flags().IntVar(&flagSavingLimit, "limit", 20, "Movimientos a mostrar (0 = todos)")

	savingCmd.AddCommand(
		add, deposit, withdraw, repay, review, show,
		&cobra.Command{Use: "list", Short: "Listar fondos", Args: cobra.NoArgs, RunE: runSavingList},
		&cobra.Command{Use: "note ID POS NOTA", Short: "Cambiar la nota de un movimiento", Args: cobra.ExactArgs(3), RunE: runSavingNote},
		&cobra.Command{Use: "stats", Short: "Resumen de ahorros", Args: cobra.NoArgs, RunE: runSavingStats},
		&cobra.Command{Use: "suggest", Short: "Sugerir un monto de ahorro al azar", Args: cobra.NoArgs, RunE: runSavingSuggest},
		&cobra.Command{Use: "delete ID", Short: "Eliminar un fondo", Args: cobra.ExactArgs(1), RunE: runSavingDelete},
	)
	rootCmd.AddCommand(savingCmd)
}

func runSavingAdd(cmd *cobra.Command, args []string) error {
	s := core.NewSaving(args[0], time.Now())
	var err error
	if s.OptionalTarget, err = parseOptionalAmount(flagSavingTarget); err != nil {
		return err
	}
	s.Untouchable = flagSavingUntouchable
	if flagSavingYear > 0 {
		year := flagSavingYear
		s.IsAnnualGoal = true
		s.TargetYear = &year
	}
	id, err := app.Savings.Create(cmd.Context(), s)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("Fondo %d creado: %s", id, s.Name)))
	return nil
}

func runSavingList(cmd *cobra.Command, _ []string) error {
	savings, err := app.Savings.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(savings) == 0 {
		outln(cmd, "  No hay fondos de ahorro.")
		return nil
	}
	t := cli.Table{Headers: []string{"Id", "Nombre", "Saldo", "Meta", "Progreso", "Préstamo"}}
	for _, s := range savings {
		target, progress := "-", "-"
		if s.OptionalTarget != nil {
			target = money(*s.OptionalTarget)
		}
		if p := s.Progress(); p != nil {
			progress = cli.FormatPercent(*p)
		}
		name := s.Name
		if s.Untouchable {
			name += " 🔒"
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(s.ID), name, money(s.AccumulatedAmount), target, progress, money(s.PendingInternalLoan),
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runSavingShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, err := app.Savings.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Saldo", money(s.AccumulatedAmount)},
		{"Depositado", money(s.TotalDeposited())},
		{"Retirado", money(s.TotalWithdrawn())},
		{"Préstamo pendiente", money(s.PendingInternalLoan)},
		{"Creado", cli.FormatDate(&s.CreationDate)},
	}
	if s.OptionalTarget != nil {
		pairs = append(pairs, [2]string{"Meta", money(*s.OptionalTarget)})
		pairs = append(pairs, [2]string{"Progreso", cli.RenderProgressBar(*s.Progress(), 20)})
		pairs = append(pairs, [2]string{"Restante", money(*s.Remaining())})
	}
	if s.TargetYear != nil {
		pairs = append(pairs, [2]string{"Ahorro anual", fmt.Sprint(*s.TargetYear)})
	}
	if r := s.LastAnnualReview; r != nil {
		pairs = append(pairs, [2]string{"Última revisión", fmt.Sprintf("%s (%s)", cli.FormatDate(&r.Date), money(r.Accumulated))})
	}

	outln(cmd, cli.RenderTitle(s.Name))
	outf(cmd, "%s", cli.RenderKV(pairs))

	if len(s.Movements) == 0 {
		return nil
	}
	t := cli.Table{Title: "Movimientos", Headers: []string{"#", "Fecha", "Tipo", "Monto", "Nota"}}
	for i := len(s.Movements) - 1; i >= 0; i-- {
		if flagSavingLimit > 0 && len(t.Rows) == flagSavingLimit {
			break
		}
		m := s.Movements[i]
		kind := string(m.Kind)
		if m.Subkind != "" && m.Subkind != core.SubkindNormal {
			kind += "/" + string(m.Subkind)
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(i + 1), cli.FormatDate(&m.Date), kind, money(m.Amount), m.Note,
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runSavingDeposit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	res, err := app.Savings.Deposit(cmd.Context(), id, amount, flagNote)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("Depósito de %s; saldo %s", money(res.Movement.Amount), money(res.NewBalance))))
	return nil
}

func runSavingWithdraw(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	res, err := app.Savings.Withdraw(cmd.Context(), id, amount, flagNote, flagSavingLoan)
	if err != nil {
		return err
	}
	label := "Retiro"
	if flagSavingLoan {
		label = "Préstamo interno"
	}
	outln(cmd, cli.Success(fmt.Sprintf("%s de %s; saldo %s", label, money(res.Movement.Amount), money(res.NewBalance))))
	return nil
}

func runSavingRepay(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	res, err := app.Savings.RepayLoan(cmd.Context(), id, amount, flagNote)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("Devolución de %s; saldo %s", money(res.Movement.Amount), money(res.NewBalance))))
	return nil
}

func runSavingNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	if _, err := app.Savings.UpdateMovementNote(cmd.Context(), id, idx, args[2]); err != nil {
		return err
	}
	outln(cmd, cli.Success("Nota actualizada"))
	return nil
}

func runSavingReview(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	r, err := app.Savings.RecordAnnualReview(cmd.Context(), id, flagNote)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success("Revisión guardada"))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Saldo", money(r.Accumulated)},
		{"Depositado", money(r.TotalDeposited)},
		{"Retirado", money(r.TotalWithdrawn)},
	}))
	return nil
}

func runSavingStats(cmd *cobra.Command, _ []string) error {
	st, err := app.Savings.Stats(cmd.Context())
	if err != nil {
		return err
	}
	outln(cmd, cli.RenderTitle("AHORROS"))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Fondos", cli.FormatCount(st.Count)},
		{"Intocables", cli.FormatCount(st.Untouchable)},
		{"Con meta", cli.FormatCount(st.WithTarget)},
		{"Saldo total", money(st.TotalAccumulated)},
		{"Depositado", money(st.TotalDeposited)},
		{"Retirado", money(st.TotalWithdrawn)},
		{"Préstamos pendientes", money(st.PendingLoans)},
	}))
	return nil
}

func runSavingSuggest(cmd *cobra.Command, _ []string) error {
	outln(cmd, "  Ahorra hoy: "+money(app.Savings.SuggestAmount()))
	return nil
}

func runSavingDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Savings.Delete(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Fondo eliminado"))
	return nil
}
