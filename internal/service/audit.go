package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congresoumg/portal-gateway/internal/ports"
)

const (
	auditRecordTimeout = 2 * time.Second

	defaultDenialListLimit = 50
	maxDenialListLimit     = 200
)

// AuditServiceOptions groups dependencies for AuditService.
type AuditServiceOptions struct {
	Recorder ports.AuditRecorder // Required: denial persistence
	Logger   *slog.Logger        // Optional: structured logger
}

// AuditService records access denials for staff review. Recording is
// deliberately best effort: an audit write must never turn an access
// denial into a server error or delay the response.
type AuditService struct {
	recorder ports.AuditRecorder
	logger   *slog.Logger
}

// NewAuditService constructs a new AuditService.
func NewAuditService(opts AuditServiceOptions) (*AuditService, error) {
	if opts.Recorder == nil {
		return nil, errors.New("AuditRecorder is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditService{
		recorder: opts.Recorder,
		logger:   logger.With("component", "audit_service"),
	}, nil
}

// RecordDenial persists one denial. It detaches from the request context
// so a client hanging up mid-redirect doesn't lose the row, and logs
// failures instead of returning them.
func (s *AuditService) RecordDenial(ctx context.Context, d ports.Denial) {
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditRecordTimeout)
	defer cancel()

	if err := s.recorder.Record(recordCtx, d); err != nil {
		s.logger.ErrorContext(ctx, "failed to record access denial",
			"path", d.Path,
			"reason", d.Reason,
			"error", err,
		)
	}
}

// RecentDenials returns the most recent denials, newest first. A
// non-positive limit gets the default; oversized limits are clamped.
func (s *AuditService) RecentDenials(ctx context.Context, limit int) ([]ports.Denial, error) {
	if limit <= 0 {
		limit = defaultDenialListLimit
	}
	if limit > maxDenialListLimit {
		limit = maxDenialListLimit
	}

	denials, err := s.recorder.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent denials: %w", err)
	}
	return denials, nil
}
