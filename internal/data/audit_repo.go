package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/congresoumg/portal-gateway/internal/data/pgxutil"
	apperrors "github.com/congresoumg/portal-gateway/internal/errors"
	"github.com/congresoumg/portal-gateway/internal/ports"
)

// maxRecentDenials caps the audit listing page size.
const maxRecentDenials = 500

// AuditRepo provides database operations for the access-denial audit
// trail. Denials are append-only; staff read them via the admin API and
// the operator CLI.
type AuditRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ ports.AuditRecorder = (*AuditRepo)(nil)

// NewAuditRepo creates a new AuditRepo with real time provider.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewAuditRepoWithTimeProvider creates a new AuditRepo with a custom time provider (useful for tests).
func NewAuditRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *AuditRepo {
	return &AuditRepo{DB: db, timeProvider: tp}
}

// Record inserts one denial row.
func (r *AuditRepo) Record(ctx context.Context, d ports.Denial) error {
	if d.Path == "" {
		return errors.New("denial path is required")
	}
	if d.Reason == "" {
		return errors.New("denial reason is required")
	}

	occurredAt := d.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = r.timeProvider.Now().UTC()
	}

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO access_denials (
				occurred_at, user_id, email, role_level, path, reason, redirect_to, layer
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			occurredAt,
			nullIfEmpty(d.UserID),
			nullIfEmpty(d.Email),
			d.RoleLevel,
			d.Path,
			d.Reason,
			nullIfEmpty(d.RedirectTo),
			d.Layer,
		)
		return err
	}); err != nil {
		return fmt.Errorf("record denial: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Recent returns the most recent denials, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]ports.Denial, error) {
	if limit <= 0 || limit > maxRecentDenials {
		limit = maxRecentDenials
	}

	var out []ports.Denial
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, occurred_at, COALESCE(user_id, ''), COALESCE(email, ''),
			       role_level, path, reason, COALESCE(redirect_to, ''), layer
			FROM access_denials
			ORDER BY occurred_at DESC, id DESC
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var d ports.Denial
			if scanErr := rows.Scan(
				&d.ID, &d.OccurredAt, &d.UserID, &d.Email,
				&d.RoleLevel, &d.Path, &d.Reason, &d.RedirectTo, &d.Layer,
			); scanErr != nil {
				return scanErr
			}
			out = append(out, d)
		}
		return rows.Err()
	}); err != nil {
		return nil, fmt.Errorf("list denials: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// PurgeOlderThan deletes denial rows older than the cutoff and reports
// how many were removed. Used by the operator CLI.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, `DELETE FROM access_denials WHERE occurred_at < $1`, cutoff)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return nil
	}); err != nil {
		return 0, fmt.Errorf("purge denials: %w", apperrors.MapDBError(err))
	}
	return removed, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
