package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	redisadapter "github.com/congresoumg/portal-gateway/internal/adapters/redis"
)

type listSessionsOptions struct {
	Limit int
}

func parseListSessionsFlags(args []string) (listSessionsOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listSessionsOptions{Limit: 100}
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum number of sessions to list")

	if err := fs.Parse(args); err != nil {
		return listSessionsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listSessionsOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSessionsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	client, err := connectRedis(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	store := redisadapter.NewSessionStore(client)

	ids, err := store.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	sort.Strings(ids)
	if len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	if len(ids) == 0 {
		return writeln(os.Stdout, "no active sessions")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SESSION ID\tEMAIL\tLEVEL\tVERIFIED (UTC)\tEXPIRES (UTC)"); err != nil {
		return fmt.Errorf("write sessions header row: %w", err)
	}

	listed := 0
	for _, id := range ids {
		sess, getErr := store.Get(ctx, id)
		if getErr != nil {
			// Session may expire between SCAN and GET.
			continue
		}
		if err := writef(
			tw,
			"%s\t%s\t%d\t%s\t%s\n",
			sess.ID,
			sess.Profile.Email,
			sess.Profile.RoleLevel,
			sess.VerifiedAt.UTC().Format(time.RFC3339),
			sess.ExpiresAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
		listed++
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush sessions table: %w", err)
	}
	return writef(os.Stdout, "\n%d session(s)\n", listed)
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("id", "", "Session ID to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("--id is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 30*time.Second)
	defer cancel()

	client, err := connectRedis(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	if err := redisadapter.NewSessionStore(client).Delete(ctx, *id); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	cmdCtx.Logger.Info("session revoked", "session_id", *id)
	return nil
}

func runRevokeAllSessions(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("revoke-all-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errors.New("refusing to revoke all sessions without --yes")
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := connectRedis(cmdCtx.Logger, &cmdCtx.Config)
	if err != nil {
		return err
	}
	defer closeRedis(cmdCtx.Logger, client)

	store := redisadapter.NewSessionStore(client)

	ids, err := store.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("enumerate sessions: %w", err)
	}

	revoked := 0
	for _, id := range ids {
		if delErr := store.Delete(ctx, id); delErr != nil {
			cmdCtx.Logger.Warn("revoke session failed", "session_id", id, "error", delErr)
			continue
		}
		revoked++
	}

	cmdCtx.Logger.Info("sessions revoked", "revoked", revoked, "total", len(ids))
	return nil
}
