// Command etl loads the film spreadsheet into the MovieDW star schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"filmdw/internal/app"
	"filmdw/internal/config"
	apperrors "filmdw/internal/errors"
	"filmdw/internal/infrastructure"
	"filmdw/internal/operations"
	"filmdw/pkg/contracts"
)

const (
	exitOK      = 0
	exitFailure = 1
)

// options are the command-line flags; set values override config and env
type options struct {
	configPath  string
	in          string
	sheet       string
	sheetsID    string
	exportDir   string
	statusAddr  string
	showVersion bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config file")
	fs.StringVar(&opts.in, "in", "", "path to the .xlsx film workbook")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet holding the film table")
	fs.StringVar(&opts.sheetsID, "sheets-id", "", "Google Sheets spreadsheet id, used when -in is empty")
	fs.StringVar(&opts.exportDir, "export", "", "write a CSV snapshot of every warehouse table to this directory")
	fs.StringVar(&opts.statusAddr, "status-addr", "", "serve /healthz, /status and /metrics on this address")
	fs.BoolVar(&opts.showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *options) apply(cfg *config.Config) {
	if o.in != "" {
		cfg.Source.Path = o.in
	}
	if o.sheet != "" {
		cfg.Source.Sheet = o.sheet
	}
	if o.sheetsID != "" {
		cfg.Source.SheetsID = o.sheetsID
	}
	if o.exportDir != "" {
		cfg.Export.Dir = o.exportDir
	}
	if o.statusAddr != "" {
		cfg.Telemetry.StatusAddr = o.statusAddr
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	bootstrap := slog.New(slog.NewJSONHandler(stderr, nil))

	cfg, err := config.Load(opts.configPath, opts.apply)
	if err != nil {
		err = apperrors.NewConfigError("failed to load configuration", err)
		bootstrap.Error("ETL run failed",
			slog.String("stage", apperrors.StageOf(err)),
			slog.String("error", err.Error()))
		return exitFailure
	}

	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		bootstrap.Error("Failed to initialize logger", slog.String("error", err.Error()))
		return exitFailure
	}
	defer infrastructure.CloseLogFile()

	ctx = infrastructure.WithRunID(ctx, uuid.New().String())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, logger); err != nil {
		attrs := []any{
			slog.String("stage", apperrors.StageOf(err)),
			slog.String("error", err.Error()),
		}
		if step := operations.FailedStep(err); step != "" {
			attrs = append(attrs, slog.String("step", step))
		}
		logger.ErrorContext(ctx, "ETL run failed", attrs...)
		return exitFailure
	}
	return exitOK
}

// execute builds the application from cfg and runs the pipeline once.
func execute(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Stop(ctx)

	_, err = application.Run(ctx)
	return err
}
