// Command regclient is the customer side of the license system.
//
//	regclient machine              print the machine code to send to the vendor
//	regclient activate [CODE]      activate a license code (read from stdin when omitted)
//	regclient status [-json] [-v]  show the registration status
//	regclient serve                expose the license API on loopback
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"regsys/internal/app"
	"regsys/internal/config"
	"regsys/internal/infrastructure"
	"regsys/internal/license"
)

const usage = `usage: regclient [-log-level LEVEL] <command> [flags]

commands:
  machine              print the machine code
  activate [CODE]      activate a license code; reads stdin when CODE is omitted
  status [-json] [-v]  show the registration status
  serve                serve the license API on the configured loopback address
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("regclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error); serve defaults to the configured level, other commands to warn")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, rest := fs.Arg(0), fs.Args()[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "regclient: %v\n", err)
		return 1
	}
	switch {
	case *logLevel != "":
		cfg.Logging.Level = *logLevel
	case command != "serve":
		cfg.Logging.Level = "warn"
	}

	ctx = infrastructure.EnsureTraceID(ctx)

	// serve logs to stdout like any service; the other commands keep stdout
	// for their output.
	var logger *slog.Logger
	if command == "serve" {
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
	} else {
		logger, err = infrastructure.NewLogger(cfg.Logging, stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "regclient: %v\n", err)
		return 1
	}
	defer infrastructure.CloseLogFile()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "regclient: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()

	switch command {
	case "machine":
		fmt.Fprintln(stdout, a.Engine.MachineFingerprint(ctx))
		return 0
	case "activate":
		return activate(ctx, a.Engine, rest, stdin, stdout, stderr)
	case "status":
		return status(ctx, a.Engine, rest, stdout, stderr)
	case "serve":
		if err := a.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "Server stopped", slog.String("error", err.Error()))
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "regclient: unknown command %q\n", command)
		fs.Usage()
		return 2
	}
}

func activate(ctx context.Context, engine *license.Engine, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	code := strings.Join(args, "")
	if code == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintf(stderr, "regclient: read license code: %v\n", err)
			return 1
		}
		code = string(data)
	}

	if err := engine.Activate(ctx, code); err != nil {
		var activationErr *license.ActivationError
		if errors.As(err, &activationErr) {
			fmt.Fprintf(stderr, "activation failed [%s]: %s\n", activationErr.Kind, activationErr.Reason)
		} else {
			fmt.Fprintf(stderr, "activation failed: %v\n", err)
		}
		return 1
	}

	report := engine.RefreshStatus(ctx)
	fmt.Fprintf(stdout, "activated: %s\n", report.Describe(report.CheckedAt))
	return 0
}

func status(ctx context.Context, engine *license.Engine, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print the report as JSON")
	verbose := fs.Bool("v", false, "include the license file location")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	report := engine.RefreshStatus(ctx)

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(stderr, "regclient: %v\n", err)
			return 1
		}
		return 0
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Machine code:\t%s\n", report.Fingerprint)
	fmt.Fprintf(tw, "Status:\t%s\n", report.Status)
	if report.Deadline != nil {
		fmt.Fprintf(tw, "Deadline:\t%s\n", license.FormatDate(*report.Deadline))
	}
	if report.LastSeen != nil {
		fmt.Fprintf(tw, "Last seen:\t%s\n", license.FormatDate(*report.LastSeen))
	}
	fmt.Fprintf(tw, "Summary:\t%s\n", report.Describe(report.CheckedAt))
	if *verbose {
		fmt.Fprintf(tw, "License file:\t%s\n", engine.StoragePath(ctx))
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}
