package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "finanzas.db"))
	t.Setenv("FINANZAS_PREFERENCES", filepath.Join(dir, "preferences.toml"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	t.Setenv("LOG_LEVEL", "info")
}

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("finanzas %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

var createdID = regexp.MustCompile(`(?:Deuda|Meta|Fondo|Persona) (\d+) (?:creada|creado|registrada)`)

func idFrom(t *testing.T, out string) string {
	t.Helper()
	m := createdID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no id in output %q", out)
	}
	return m[1]
}

func mustContain(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestDebtOverflowFlow(t *testing.T) {
	setupEnv(t)

	person := idFrom(t, runCLI(t, "person", "add", "Ana", "--phone", "9999-0000"))
	debt := idFrom(t, runCLI(t, "debt", "add", "Luz", "500", "--person", person))

	out := runCLI(t, "debt", "pay", debt, "600")
	mustContain(t, out, "Lps 500.00", "Deuda saldada", "Excedente de Lps 100.00 depositado en Ahorros")

	mustContain(t, runCLI(t, "saving", "list"), "Ahorros", "Lps 100.00")
	mustContain(t, runCLI(t, "person", "show", person), "Ana", "9999-0000", "Luz")
	mustContain(t, runCLI(t, "debt", "list", "--archived"), "Luz")
}

func TestGoalCycleFlow(t *testing.T) {
	setupEnv(t)

	goal := idFrom(t, runCLI(t, "goal", "add", "Bici", "300"))
	out := runCLI(t, "goal", "contribute", goal, "350")
	mustContain(t, out, "¡Meta completada!", "Ciclo 2 creado", "Excedente de Lps 50.00 pasado al siguiente ciclo")

	list := runCLI(t, "goal", "list", "--all")
	if strings.Count(list, "Bici") != 2 {
		t.Errorf("expected both cycles listed:\n%s", list)
	}
}

func TestGoalOverflowSplitsBetweenCycleAndFund(t *testing.T) {
	setupEnv(t)

	goal := idFrom(t, runCLI(t, "goal", "add", "Radio", "100"))
	out := runCLI(t, "goal", "contribute", goal, "350")
	mustContain(t, out,
		"Ciclo 2 creado",
		"Excedente de Lps 100.00 pasado al siguiente ciclo",
		"Ciclo 3 creado",
		"Excedente de Lps 150.00 depositado en Ahorros")

	list := runCLI(t, "goal", "list", "--all")
	if strings.Count(list, "Radio") != 3 {
		t.Errorf("expected three cycles listed:\n%s", list)
	}
}

func TestGoalSavingFlagUsage(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"goal", "add"})
	if err != nil {
		t.Fatalf("find goal add: %v", err)
	}
	f := cmd.Flags().Lookup("saving")
	if f == nil {
		t.Fatalf("goal add has no --saving flag")
	}
	if want := "recibe el total al completar la meta"; !strings.Contains(f.Usage, want) {
		t.Errorf("usage %q should mention %q", f.Usage, want)
	}
}

func TestSavingAndLotteryCommands(t *testing.T) {
	setupEnv(t)

	fund := idFrom(t, runCLI(t, "saving", "add", "Emergencias", "--target", "1,000"))
	mustContain(t, runCLI(t, "saving", "deposit", fund, "400"), "saldo Lps 400.00")
	mustContain(t, runCLI(t, "saving", "withdraw", fund, "100", "--note", "carro", "--loan"), "Préstamo interno", "saldo Lps 300.00")
	mustContain(t, runCLI(t, "saving", "show", fund), "Lps 100.00", "withdrawal/loan")

	runCLI(t, "lottery", "bet", "1000", "--desc", "chica")
	runCLI(t, "lottery", "prize", "200")
	mustContain(t, runCLI(t, "lottery", "stats"), "Lps -800.00", "-80.0%")
}

func TestInvalidArguments(t *testing.T) {
	setupEnv(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	for _, args := range [][]string{
		{"debt", "pay", "abc", "10"},
		{"debt", "add", "Luz", "-5"},
		{"history", "--collection", "expenses"},
	} {
		rootCmd.SetArgs(args)
		err := rootCmd.ExecuteContext(context.Background())
		if app != nil {
			app.Close()
		}
		if err == nil {
			t.Errorf("finanzas %s: expected error", strings.Join(args, " "))
		}
	}
}
