package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/core"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Personas y empresas con las que hay deudas",
}

var (
	flagPersonCompany bool
	flagPersonPhone   string
	flagPersonEmail   string
	flagPersonNotes   string
	flagPersonService string
	flagPersonMonthly string
)

func init() {
	add := &cobra.Command{
		Use:   "add NOMBRE",
		Short: "Registrar una persona o empresa",
		Args:  cobra.ExactArgs(1),
		RunE:  runPersonAdd,
	}
	add.Flags().BoolVar(&flagPersonCompany, "company", false, "Registrar como empresa")
	add.Flags().StringVar(&flagPersonPhone, "phone", "", "Teléfono")
	add.Flags().StringVar(&flagPersonEmail, "email", "", "Correo")
	add.Flags().StringVar(&flagPersonNotes, "notes", "", "Notas")
	add.Flags().StringVar(&flagPersonService, "service", "", "Servicio que presta (empresas)")
	add.Flags().StringVar(&flagPersonMonthly, "monthly", "", "Monto mensual del servicio")

	personCmd.AddCommand(
		add,
		&cobra.Command{Use: "list", Short: "Listar personas", Args: cobra.NoArgs, RunE: runPersonList},
		&cobra.Command{Use: "show ID", Short: "Detalle y deudas de una persona", Args: cobra.ExactArgs(1), RunE: runPersonShow},
		&cobra.Command{Use: "delete ID", Short: "Eliminar una persona sin deudas", Args: cobra.ExactArgs(1), RunE: runPersonDelete},
	)
	rootCmd.AddCommand(personCmd)
}

func runPersonAdd(cmd *cobra.Command, args []string) error {
	kind := core.KindPerson
	if flagPersonCompany {
		kind = core.KindCompany
	}
	p := core.NewPerson(args[0], kind, time.Now())
	p.Phone = flagPersonPhone
	p.Email = flagPersonEmail
	p.Notes = flagPersonNotes
	p.ServiceDescription = flagPersonService
	var err error
	if p.MonthlyAmount, err = parseOptionalAmount(flagPersonMonthly); err != nil {
		return err
	}
	id, err := app.Persons.Create(cmd.Context(), p)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success(fmt.Sprintf("Persona %d registrada: %s", id, p.Name)))
	return nil
}

func runPersonList(cmd *cobra.Command, _ []string) error {
	persons, err := app.Persons.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		outln(cmd, "  No hay personas registradas.")
		return nil
	}
	t := cli.Table{Headers: []string{"Id", "Nombre", "Tipo", "Contacto", "Mensual"}}
	for _, p := range persons {
		monthly := "-"
		if p.MonthlyAmount != nil {
			monthly = money(*p.MonthlyAmount)
		}
		t.Rows = append(t.Rows, []string{fmt.Sprint(p.ID), p.Name, personKindLabel(p.Kind), p.Contact(), monthly})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runPersonShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	p, err := app.Persons.Get(ctx, id)
	if err != nil {
		return err
	}
	debts, err := app.Debts.ListByPerson(ctx, id)
	if err != nil {
		return err
	}

	pairs := [][2]string{
		{"Tipo", personKindLabel(p.Kind)},
		{"Contacto", p.Contact()},
	}
	if p.Notes != "" {
		pairs = append(pairs, [2]string{"Notas", p.Notes})
	}
	if p.ServiceDescription != "" {
		pairs = append(pairs, [2]string{"Servicio", p.ServiceDescription})
	}
	if p.MonthlyAmount != nil {
		pairs = append(pairs, [2]string{"Mensual", money(*p.MonthlyAmount)})
	}
	outln(cmd, cli.RenderTitle(p.Name))
	outf(cmd, "%s", cli.RenderKV(pairs))

	if len(debts) == 0 {
		return nil
	}
	t := cli.Table{Title: "Deudas", Headers: []string{"Id", "Nombre", "Tipo", "Saldo", "Progreso"}}
	for _, d := range debts {
		t.Rows = append(t.Rows, []string{
			fmt.Sprint(d.ID), d.Name, kindLabel(d.Kind), money(d.Balance()), cli.FormatPercent(d.Progress()),
		})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}

func runPersonDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := app.Persons.Delete(cmd.Context(), id); err != nil {
		return err
	}
	outln(cmd, cli.Success("Persona eliminada"))
	return nil
}

func personKindLabel(k core.PersonKind) string {
	if k == core.KindCompany {
		return "empresa"
	}
	return "persona"
}
