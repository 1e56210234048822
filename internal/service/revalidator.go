package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

const (
	defaultSweepConcurrency = 4
)

// RevalidatorOptions groups dependencies for RevalidatorService.
type RevalidatorOptions struct {
	Sessions ports.SessionStore // Required: session enumeration
	Service  *SessionService    // Required: revalidation logic
	Logger   *slog.Logger       // Optional: structured logger

	// Interval is how often the sweep runs. Defaults to the session
	// service's revalidation interval semantics (5 minutes).
	Interval time.Duration

	// Concurrency bounds parallel backend round trips per sweep.
	Concurrency int
}

// RevalidatorService periodically re-confirms every active session
// against the auth backend so a role change or server-side revocation
// takes effect within one interval even for idle users. Request-path
// resolution already revalidates on demand; the sweep covers sessions
// nobody is touching.
type RevalidatorService struct {
	sessions    ports.SessionStore
	service     *SessionService
	logger      *slog.Logger
	interval    time.Duration
	concurrency int
}

// NewRevalidatorService constructs a new RevalidatorService.
func NewRevalidatorService(opts RevalidatorOptions) (*RevalidatorService, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionStore is required")
	}
	if opts.Service == nil {
		return nil, errors.New("SessionService is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRevalidateInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSweepConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RevalidatorService{
		sessions:    opts.Sessions,
		service:     opts.Service,
		logger:      logger.With("component", "revalidator"),
		interval:    opts.Interval,
		concurrency: opts.Concurrency,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *RevalidatorService) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting session revalidator", "interval", r.interval)

	// Jitter so multiple gateway instances don't sweep in lockstep.
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "session revalidator stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				if isContextCancellation(err) {
					continue
				}
				r.logger.ErrorContext(ctx, "session sweep failed", "error", err)
				// Keep running despite errors.
			}
		}
	}
}

// Sweep revalidates every stored session that is stale. Sessions the
// backend rejects are deleted by the session service; transient backend
// failures leave the session for the next sweep.
func (r *RevalidatorService) Sweep(ctx context.Context) error {
	start := time.Now()

	ids, err := r.sessions.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	var revoked, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	results := make([]error, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			_, resolveErr := r.service.Resolve(gctx, id)
			results[i] = resolveErr
			// Individual failures never abort the sweep.
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return waitErr
	}

	for _, resolveErr := range results {
		switch {
		case resolveErr == nil:
		case apperrors.IsUnauthorized(resolveErr):
			revoked++
		case isContextCancellation(resolveErr):
			return resolveErr
		default:
			failed++
		}
	}

	r.logger.InfoContext(ctx, "session sweep complete",
		"total", len(ids),
		"revoked", revoked,
		"failed", failed,
		"elapsed", time.Since(start),
	)
	return nil
}

// waitWithJitter delays up to 10% of the interval before the first sweep.
func (r *RevalidatorService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
