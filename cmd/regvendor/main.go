// Command regvendor issues license codes.
//
//	regvendor -machine FINGERPRINT -preset 1m [-issued YYYY/MM/DD] [-deadline YYYY/MM/DD] [-ledger issued.xlsx]
//
// A blank -machine issues a license for the machine regvendor runs on.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"regsys/internal/app"
	"regsys/internal/config"
	"regsys/internal/infrastructure"
	"regsys/internal/ledger"
	"regsys/internal/license"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("regvendor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	presets := make([]string, 0, len(license.Presets))
	for _, p := range license.Presets {
		presets = append(presets, string(p))
	}

	machine := fs.String("machine", "", "24 character machine code of the customer; blank for this machine")
	presetFlag := fs.String("preset", string(license.Preset3Days), "deadline preset: "+strings.Join(presets, " | "))
	issued := fs.String("issued", "", "issue date YYYY/MM/DD (default today)")
	deadlineFlag := fs.String("deadline", "", "deadline YYYY/MM/DD, required with -preset custom")
	ledgerPath := fs.String("ledger", "", "append the issued license to this xlsx workbook (overrides REGSYS_LEDGER_PATH)")
	asJSON := fs.Bool("json", false, "print the issued entry as JSON")
	logLevel := fs.String("log-level", "warn", "log level (debug|info|warn|error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	target := ""
	if strings.TrimSpace(*machine) != "" {
		fp, err := license.ValidateFingerprint(*machine)
		if err != nil {
			fmt.Fprintf(stderr, "regvendor: %v\n", err)
			return 2
		}
		target = fp
	}

	preset, ok := license.ParsePreset(*presetFlag)
	if !ok {
		fmt.Fprintf(stderr, "regvendor: unknown preset %q, using %s\n", *presetFlag, preset)
	}

	now := time.Now()
	issueDate, deadline, err := license.PlanDates(preset, *issued, *deadlineFlag, now)
	if err != nil {
		fmt.Fprintf(stderr, "regvendor: %v\n", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "regvendor: %v\n", err)
		return 1
	}
	cfg.Logging.Level = *logLevel
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "regvendor: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogFile()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "regvendor: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()

	payload := a.Engine.IssueLicense(ctx, target, deadline, issueDate)
	if target == "" {
		target = a.Engine.MachineFingerprint(ctx)
	}
	entry := ledger.NewEntry(now, target, preset, issueDate, deadline, payload)

	if a.Ledger != nil {
		if err := a.Ledger.Append(entry); err != nil {
			logger.ErrorContext(ctx, "Failed to record issued license",
				slog.String("ledger", a.Ledger.Path()),
				slog.String("error", err.Error()))
			fmt.Fprintf(stderr, "regvendor: ledger: %v\n", err)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entry); err != nil {
			fmt.Fprintf(stderr, "regvendor: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintln(stdout, entry.Payload)
	return 0
}
