package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/core"
	"finanzas/internal/services"
)

var debtCmd = &cobra.Command{
	Use:   "debt",
	Short: "Deudas por pagar y por cobrar",
}

var (
	flagDebtKind     string
	flagDebtDue      string
	flagDebtStart    string
	flagDebtPerson   string
	flagDebtOf       string
	flagDebtArchived bool
	flagDebtAll      bool
	flagNote         string
)

func init() {
	add := &cobra.Command{
		Use:   "add NOMBRE MONTO",
		Short: "Registrar una deuda",
		Args:  cobra.ExactArgs(2),
		RunE:  runDebtAdd,
	}
	add.Flags().StringVar(&flagDebtKind, "kind", string(core.Payable), "payable (yo debo) o receivable (me deben)")
	add.Flags().StringVar(&flagDebtDue, "due", "", "Fecha de vencimiento AAAA-MM-DD")
	add.Flags().StringVar(&flagDebtStart, "start", "", "Fecha de inicio AAAA-MM-DD")
	add.Flags().StringVar(&flagDebtPerson, "person", "", "Id de la persona o empresa")

	list := &cobra.Command{
		Use:   "list",
		Short: "Listar deudas activas",
		Args:  cobra.NoArgs,
		RunE:  runDebtList,
	}
	list.Flags().BoolVar(&flagDebtArchived, "archived", false, "Solo deudas archivadas")
	list.Flags().BoolVar(&flagDebtAll, "all", false, "Todas las deudas")
	list.Flags().StringVar(&flagDebtOf, "person", "", "Solo deudas de esta persona")

	pay := &cobra.Command{
		Use:   "pay ID MONTO",
		Short: "Registrar un pago; el excedente va al fondo de ahorro",
		Args:  cobra.ExactArgs(2),
		RunE:  runDebtPay,
	}
	pay.Flags().StringVar(&flagNote, "note", "", "Nota del pago")

	debtCmd.AddCommand(
		add, list, pay,
		&cobra.Command{Use: "show ID", Short: "Detalle y pagos de una deuda", Args: cobra.ExactArgs(1), RunE: runDebtShow},
		&cobra.Command{Use: "note ID POS NOTA", Short: "Cambiar la nota de un pago", Args: cobra.ExactArgs(3), RunE: runDebtNote},
		&cobra.Command{Use: "amend ID POS MONTO", Short: "Corregir el monto de un pago", Args: cobra.ExactArgs(3), RunE: runDebtAmend},
		&cobra.Command{Use: "archive ID", Short: "Archivar una deuda", Args: cobra.ExactArgs(1), RunE: runDebtArchive},
		&cobra.Command{Use: "unarchive ID", Short: "Reactivar una deuda archivada", Args: cobra.ExactArgs(1), RunE: runDebtUnarchive},
		&cobra.Command{Use: "assign ID [PERSONA_ID]", Short: "Asignar o quitar la contraparte", Args: cobra.RangeArgs(1, 2), RunE: runDebtAssign},
		&cobra.Command{Use: "stats", Short: "Resumen de deudas", Args: cobra.NoArgs, RunE: runDebtStats},
		&cobra.Command{Use: "delete ID", Short: "Eliminar una deuda", Args: cobra.ExactArgs(1), RunE: runDebtDelete},
	)
	rootCmd.AddCommand(debtCmd)
}

func runDebtAdd(cmd *cobra.Command, args []string) error {
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	d := core.NewDebt(args[0], amount, core.DebtKind(flagDebtKind), time.Now())
	if flagDebtDue != "" {
		due, err := cli.ParseDate(flagDebtDue)
		if err != nil {
			return err
		}
		d.DueDate = &due
	}
	if flagDebtStart != "" {
		start, err := cli.ParseDate(flagDebtStart)
		if err != nil {
			return err
		}
		d.StartDate = start
	}
	person, err := parseOptionalID(flagDebtPerson)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	id, err := app.Debts.Create(ctx, d)
	if err != nil {
		return err
	}
	if person != nil {
		if err := app.Debts.AssignCounterparty(ctx, id, person); err != nil {
			return fmt.Errorf("deuda %d creada, pero no se pudo asignar la persona: %w", id, err)
		}
	}
	outln(cmd, cli.Success(fmt.Sprintf("Deuda %d creada: %s por %s", id, d.Name, money(d.TotalOwed))))
	return nil
}

func runDebtList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		debts []*core.Debt
		err   error
	)
	switch {
	case flagDebtOf != "":
		var pid int64
		if pid, err = parseID(flagDebtOf); err != nil {
			return err
		}
		debts, err = app.Debts.ListByPerson(ctx, pid)
	case flagDebtAll:
		debts, err = app.Debts.List(ctx)
	case flagDebtArchived:
		debts, err = app.Debts.ListArchived(ctx)
	default:
		debts, err = app.Debts.ListActive(ctx)
	}
	if err != nil {
		return err
	}
	if len(debts) == 0 {
		outln(cmd, "  No hay deudas.")
		return nil
	}

	now := time.Now()
	t := cli.Table{Headers: []string{"Id", "Nombre", "Tipo", "Total", "Saldo", "Progreso", "Vence"}}
	for _, d := range debts {
		due := "-"
		if days, ok := d.DaysUntilDue(now); ok {
			due = cli.FormatDays(days)
		}
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(d.ID), d.Name, kindLabel(d.Kind),
			money(d.TotalOwed), money(d.Balance()), cli.FormatPercent(d.Progress()), due,
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runDebtShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	d, err := app.Debts.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	now := time.Now()
	due := "-"
	if days, ok := d.DaysUntilDue(now); ok {
		due = fmt.Sprintf("%s (%s)", cli.FormatDate(d.DueDate), cli.FormatDays(days))
	}
	counterpart := "-"
	if d.CounterpartyName != "" {
		counterpart = d.CounterpartyName
		if d.CounterpartyContact != "" {
			counterpart += " · " + d.CounterpartyContact
		}
	}
	state := "activa"
	if d.Archived {
		state = "archivada " + cli.FormatDate(d.ArchivedDate)
	}

	outln(cmd, cli.RenderTitle(d.Name))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Tipo", kindLabel(d.Kind)},
		{"Contraparte", counterpart},
		{"Total", money(d.TotalOwed)},
		{"Pagado", money(d.TotalPaid())},
		{"Saldo", money(d.Balance())},
		{"Progreso", cli.RenderProgressBar(d.Progress(), 20)},
		{"Inicio", fmt.Sprintf("%s (%d días)", cli.FormatDate(&d.StartDate), d.DaysElapsed(now))},
		{"Vence", due},
		{"Estado", state},
	}))
	if len(d.Payments) == 0 {
		return nil
	}
	t := cli.Table{Title: "Pagos", Headers: []string{"#", "Fecha", "Monto", "Nota"}}
	for i, p := range d.Payments {
		date := p.Date
		t.Rows = append(t.Rows, []string{fmt.Sprint(i + 1), cli.FormatDate(&date), money(p.Amount), p.Note})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runDebtPay(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[1])
	if err != nil {
		return err
	}
	res, err := app.Debts.AddPayment(cmd.Context(), id, amount, flagNote)
	if err != nil {
		return err
	}
	printPayment(cmd, res)
	return nil
}

func printPayment(cmd *cobra.Command, res services.PaymentOutcome) {
	outln(cmd, cli.Success(fmt.Sprintf("Pago de %s aplicado a %s; saldo %s",
		money(res.Payment.Amount), res.DebtName, money(res.RemainingBalance))))
	if res.Completed {
		outln(cmd, cli.Success("Deuda saldada y archivada"))
	}
	if res.Overflow.IsPositive() {
		switch {
		case res.OverflowTransfer != nil:
			outln(cmd, cli.Success(fmt.Sprintf("Excedente de %s depositado en %s (saldo %s)",
				money(res.Overflow), res.OverflowTransfer.SavingName, money(res.OverflowTransfer.NewBalance))))
		case res.OverflowErr != nil:
			outln(cmd, cli.Warning(fmt.Sprintf("No se pudo depositar el excedente de %s: %v", money(res.Overflow), res.OverflowErr)))
		}
	}
}

func runDebtNote(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	if _, err := app.Debts.UpdatePaymentNote(cmd.Context(), id, idx, args[2]); err != nil {
		return err
	}
	outln(cmd, cli.Success("Nota actualizada"))
	return nil
}

func runDebtAmend(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	amount, err := cli.ParseAmount(args[2])
	if err != nil {
		return err
	}
	p, err := app.Debts.UpdatePaymentAmount(cmd.Context(), id, idx, amount)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success("Pago corregido a "+money(p.Amount)))
	return nil
}

func runDebtArchive(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Debts.Archive(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Deuda archivada"))
	return nil
}

func runDebtUnarchive(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Debts.Unarchive(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Deuda reactivada"))
	return nil
}

func runDebtAssign(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	var person *int64
	if len(args) == 2 {
		if person, err = parseOptionalID(args[1]); err != nil {
			return err
		}
	}
	if err := app.Debts.AssignCounterparty(cmd.Context(), id, person); err != nil {
		return err
	}
	if person == nil {
		outln(cmd, cli.Success("Contraparte eliminada"))
	} else {
		outln(cmd, cli.Success("Contraparte asignada"))
	}
	return nil
}

func runDebtStats(cmd *cobra.Command, _ []string) error {
	st, err := app.Debts.Stats(cmd.Context())
	if err != nil {
		return err
	}
	outln(cmd, cli.RenderTitle("DEUDAS"))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Activas", cli.FormatCount(st.Active)},
		{"Archivadas", cli.FormatCount(st.Archived)},
		{"Total adeudado", money(st.TotalOwed)},
		{"Total pagado", money(st.TotalPaid)},
		{"Saldo pendiente", money(st.Outstanding)},
		{"Por pagar", money(st.PayableBalance)},
		{"Por cobrar", money(st.ReceivableBalance)},
		{"Progreso promedio", cli.RenderProgressBar(st.AverageProgress, 20)},
	}))
	return nil
}

func runDebtDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Debts.Delete(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Deuda eliminada"))
	return nil
}

func kindLabel(k core.DebtKind) string {
	if k == core.Receivable {
		return "por cobrar"
	}
	return "por pagar"
}
