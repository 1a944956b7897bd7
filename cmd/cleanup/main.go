// Reqaudit - HTTP Request Audit Logging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqaudit

// Command cleanup deletes audit records older than the retention period.
//
//	cleanup [-days N] [-dry-run] [-batch-size N] [-log-type request|access|all]
//
// Without -days each log type uses its configured retention
// (AUDIT_LOGGER_RETENTION_DAYS, AUDIT_LOGGER_ACCESS_RETENTION_DAYS). Storage
// is selected by the same configuration as the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/reqaudit/internal/audit"
	"github.com/tomtom215/reqaudit/internal/config"
	"github.com/tomtom215/reqaudit/internal/logging"
	"github.com/tomtom215/reqaudit/internal/retention"
	"github.com/tomtom215/reqaudit/internal/storage"
)

// options are the parsed command-line flags.
type options struct {
	days      int
	daysSet   bool
	dryRun    bool
	batchSize int
	logType   audit.LogType
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts    options
		logType string
	)
	fs.IntVar(&opts.days, "days", 0, "delete records older than this many days (default: configured retention per log type)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "count matching records without deleting them")
	fs.IntVar(&opts.batchSize, "batch-size", 0, "records deleted per batch (default: AUDIT_LOGGER_CLEANUP_BATCH_SIZE)")
	fs.StringVar(&logType, "log-type", string(audit.LogTypeAll), "which records to clean: request, access or all")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "days" {
			opts.daysSet = true
		}
	})
	if opts.daysSet && opts.days <= 0 {
		return opts, errors.New("-days must be a positive integer")
	}
	if opts.batchSize < 0 {
		return opts, errors.New("-batch-size must be a positive integer")
	}

	lt, err := audit.ParseLogType(logType)
	if err != nil {
		return opts, err
	}
	opts.logType = lt
	return opts, nil
}

// run executes one cleanup and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}
	logging.Init(cfg.LoggingConfig())

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit storage")
		}
	}()

	if err := sweep(ctx, store.Sink, cfg.RetentionOptions(), opts, stdout); err != nil {
		fmt.Fprintf(stderr, "cleanup: %v\n", err)
		return 1
	}
	return 0
}

// sweep runs the retention sweep and prints one line per log type.
func sweep(ctx context.Context, sink audit.Sink, ropts retention.Options, opts options, stdout io.Writer) error {
	sweeper, err := retention.New(sink, ropts)
	if err != nil {
		return err
	}
	res, err := sweeper.Sweep(ctx, retention.Request{
		LogType:       opts.logType,
		OlderThanDays: opts.days,
		BatchSize:     opts.batchSize,
		DryRun:        opts.dryRun,
	})

	verb := "Deleted"
	if opts.dryRun {
		verb = "Would delete"
	}
	for _, t := range opts.logType.Types() {
		switch t {
		case audit.LogTypeRequest:
			if !res.RequestCutoff.IsZero() {
				fmt.Fprintf(stdout, "%s %d request log records older than %s\n", verb, res.RequestDeleted, res.RequestCutoff.Format("2006-01-02"))
			}
		case audit.LogTypeAccess:
			if !res.AccessCutoff.IsZero() {
				fmt.Fprintf(stdout, "%s %d access log records older than %s\n", verb, res.AccessDeleted, res.AccessCutoff.Format("2006-01-02"))
			}
		}
	}
	return err
}
