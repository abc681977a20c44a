package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finanzas/internal/cli"
	"finanzas/internal/core"
)

var lotteryCmd = &cobra.Command{
	Use:   "lottery",
	Short: "Registro de apuestas y premios",
}

var (
	flagLotteryDesc  string
	flagLotteryFrom  string
	flagLotteryTo    string
	flagLotteryLimit int
)

func init() {
	bet := &cobra.Command{
		Use:   "bet MONTO",
		Short: "Registrar una apuesta",
		Args:  cobra.ExactArgs(1),
		RunE:  runLotteryBet,
	}
	bet.Flags().StringVar(&flagLotteryDesc, "desc", "", "Descripción")

	prize := &cobra.Command{
		Use:   "prize MONTO",
		Short: "Registrar un premio",
		Args:  cobra.ExactArgs(1),
		RunE:  runLotteryPrize,
	}
	prize.Flags().StringVar(&flagLotteryDesc, "desc", "", "Descripción")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Resumen de apuestas",
		Args:  cobra.NoArgs,
		RunE:  runLotteryStats,
	}
	stats.Flags().StringVar(&flagLotteryFrom, "from", "", "Desde AAAA-MM-DD")
	stats.Flags().StringVar(&flagLotteryTo, "to", "", "Hasta AAAA-MM-DD (inclusive)")

	history := &cobra.Command{
		Use:   "history",
		Short: "Apuestas y premios recientes",
		Args:  cobra.NoArgs,
		RunE:  runLotteryHistory,
	}
	history.Flags().IntVar(&flagLotteryLimit, "limit", 20, "Entradas a mostrar (0 = todas)")

	lotteryCmd.AddCommand(bet, prize, stats, history)
	rootCmd.AddCommand(lotteryCmd)
}

func runLotteryBet(cmd *cobra.Command, args []string) error {
	amount, err := cli.ParseAmount(args[0])
	if err != nil {
		return err
	}
	e, err := app.Lottery.RegisterBet(cmd.Context(), amount, flagLotteryDesc)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success("Apuesta de "+money(e.Amount)+" registrada"))
	return nil
}

func runLotteryPrize(cmd *cobra.Command, args []string) error {
	amount, err := cli.ParseAmount(args[0])
	if err != nil {
		return err
	}
	e, err := app.Lottery.RegisterPrize(cmd.Context(), amount, flagLotteryDesc)
	if err != nil {
		return err
	}
	outln(cmd, cli.Success("Premio de "+money(e.Amount)+" registrado"))
	return nil
}

func runLotteryStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		st  core.LotteryStats
		err error
	)
	if flagLotteryFrom == "" && flagLotteryTo == "" {
		st, err = app.Lottery.Stats(ctx)
	} else {
		from, to, perr := lotteryRange(flagLotteryFrom, flagLotteryTo)
		if perr != nil {
			return perr
		}
		st, err = app.Lottery.StatsInRange(ctx, from, to)
	}
	if err != nil {
		return err
	}

	roi := "-"
	if st.ROI != nil {
		roi = cli.FormatPercent(*st.ROI)
	}
	outln(cmd, cli.RenderTitle("LOTERÍA"))
	outf(cmd, "%s", cli.RenderKV([][2]string{
		{"Apuestas", fmt.Sprintf("%s (%s)", money(st.TotalBets), cli.FormatCount(st.BetCount))},
		{"Premios", fmt.Sprintf("%s (%s)", money(st.TotalPrizes), cli.FormatCount(st.PrizeCount))},
		{"Neto", money(st.Net)},
		{"ROI", roi},
		{"Apuesta promedio", money(st.AverageBet)},
		{"Premio promedio", money(st.AveragePrize)},
		{"Costo de oportunidad", money(st.OpportunityCost)},
		{"Pérdidas acumuladas", money(st.CumulativeLosses)},
	}))
	return nil
}

// lotteryRange turns the --from/--to dates into an inclusive range. A missing
// bound stays open.
func lotteryRange(fromS, toS string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now()
	if fromS != "" {
		d, err := cli.ParseDate(fromS)
		if err != nil {
			return from, to, err
		}
		from = d
	}
	if toS != "" {
		d, err := cli.ParseDate(toS)
		if err != nil {
			return from, to, err
		}
		to = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("rango inválido: %s es anterior a %s", toS, fromS)
	}
	return from, to, nil
}

func runLotteryHistory(cmd *cobra.Command, _ []string) error {
	items, err := app.Lottery.History(cmd.Context(), flagLotteryLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		outln(cmd, "  Sin movimientos.")
		return nil
	}
	t := cli.Table{Headers: []string{"Fecha", "Tipo", "Monto", "Descripción"}}
	for _, it := range items {
		kind := "apuesta"
		if it.Kind == core.EntryPrize {
			kind = "premio"
		}
		t.Rows = append(t.Rows, []string{cli.FormatDate(&it.Date), kind, money(it.Amount), it.Description})
	}
	outf(cmd, "%s", cli.RenderTable(t))
	return nil
}
