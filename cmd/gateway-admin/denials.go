package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/congresoumg/portal-gateway/internal/data"
)

type listDenialsOptions struct {
	Limit int
}

type purgeDenialsOptions struct {
	KeepFor time.Duration
	DryRun  bool
	Yes     bool
}

func parseListDenialsFlags(args []string) (listDenialsOptions, error) {
	fs := flag.NewFlagSet("list-denials", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listDenialsOptions{Limit: 50}
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of denials to list")

	if err := fs.Parse(args); err != nil {
		return listDenialsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listDenialsOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func runListDenials(cmdCtx *commandContext, args []string) error {
	opts, err := parseListDenialsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx.Logger, db)

	denials, err := data.NewAuditRepo(db).Recent(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("list denials: %w", err)
	}

	if len(denials) == 0 {
		return writeln(os.Stdout, "no denials recorded")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "OCCURRED (UTC)\tLAYER\tLEVEL\tUSER\tPATH\tREASON\tREDIRECT"); err != nil {
		return fmt.Errorf("write denials header row: %w", err)
	}

	for _, d := range denials {
		user := d.Email
		if user == "" {
			user = d.UserID
		}
		if user == "" {
			user = "-"
		}
		if err := writef(
			tw,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			d.OccurredAt.UTC().Format(time.RFC3339),
			d.Layer,
			d.RoleLevel,
			user,
			d.Path,
			d.Reason,
			d.RedirectTo,
		); err != nil {
			return fmt.Errorf("write denial row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush denials table: %w", err)
	}
	return writef(os.Stdout, "\n%d denial(s)\n", len(denials))
}

func parsePurgeDenialsFlags(args []string) (purgeDenialsOptions, error) {
	fs := flag.NewFlagSet("purge-denials", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := purgeDenialsOptions{KeepFor: 90 * 24 * time.Hour}
	fs.DurationVar(&opts.KeepFor, "keep-for", 90*24*time.Hour, "Retention window; denials older than this are deleted")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Report what would be deleted without deleting")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return purgeDenialsOptions{}, err
	}
	if opts.KeepFor <= 0 {
		return purgeDenialsOptions{}, errors.New("--keep-for must be greater than zero")
	}
	return opts, nil
}

func runPurgeDenials(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeDenialsFlags(args)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-opts.KeepFor)

	if opts.DryRun {
		return writef(os.Stdout, "dry run: would delete denials recorded before %s\n", cutoff.UTC().Format(time.RFC3339))
	}
	if !opts.Yes {
		return errors.New("refusing to purge without --yes (or use --dry-run)")
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx.Logger, db)

	deleted, err := data.NewAuditRepo(db).PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge denials: %w", err)
	}

	cmdCtx.Logger.Info("denials purged", "deleted", deleted, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return nil
}
