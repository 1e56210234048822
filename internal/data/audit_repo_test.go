package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congresoumg/portal-gateway/internal/ports"
	"github.com/congresoumg/portal-gateway/internal/testutil"
)

func testDenial(path string) ports.Denial {
	return ports.Denial{
		UserID:     "user-1",
		Email:      "alumno@miumg.edu.gt",
		RoleLevel:  0,
		Path:       path,
		Reason:     "insufficient_level",
		RedirectTo: "/mi-cuenta",
		Layer:      "guard",
	}
}

func TestAuditRepo_RecordAndRecent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)

		for i := 0; i < 3; i++ {
			d := testDenial(fmt.Sprintf("/dashboard/%d", i))
			d.OccurredAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
			require.NoError(t, repo.Record(ctx, d))
		}

		got, err := repo.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 3)

		// newest first
		assert.Equal(t, "/dashboard/2", got[0].Path)
		assert.Equal(t, "/dashboard/0", got[2].Path)
		assert.Equal(t, "user-1", got[0].UserID)
		assert.Equal(t, "alumno@miumg.edu.gt", got[0].Email)
		assert.Equal(t, "insufficient_level", got[0].Reason)
		assert.Equal(t, "guard", got[0].Layer)
		assert.NotZero(t, got[0].ID)
	})
}

func TestAuditRepo_RecordValidation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)

		d := testDenial("")
		err := repo.Record(ctx, d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path is required")

		d = testDenial("/dashboard")
		d.Reason = ""
		err = repo.Record(ctx, d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reason is required")
	})
}

func TestAuditRepo_RecordDefaultsOccurredAt(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		repo := NewAuditRepoWithTimeProvider(db, NewFixedTimeProvider(fixed))

		require.NoError(t, repo.Record(ctx, testDenial("/admin")))

		got, err := repo.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.WithinDuration(t, fixed, got[0].OccurredAt, time.Second)
	})
}

func TestAuditRepo_RecordAnonymousDenial(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)

		d := ports.Denial{
			Path:       "/dashboard",
			Reason:     "not_authenticated",
			RedirectTo: "/inscripcion",
			Layer:      "edge",
		}
		require.NoError(t, repo.Record(ctx, d))

		got, err := repo.Recent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].UserID)
		assert.Empty(t, got[0].Email)
		assert.Equal(t, "not_authenticated", got[0].Reason)
		assert.Equal(t, "edge", got[0].Layer)
	})
}

func TestAuditRepo_RecentClampsLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)

		require.NoError(t, repo.Record(ctx, testDenial("/admin")))

		// zero and oversized limits both fall back to the cap
		got, err := repo.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = repo.Recent(ctx, maxRecentDenials+1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestAuditRepo_PurgeOlderThan(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAuditRepo(db)

		now := time.Now().UTC()

		old := testDenial("/dashboard/old")
		old.OccurredAt = now.Add(-48 * time.Hour)
		require.NoError(t, repo.Record(ctx, old))

		fresh := testDenial("/dashboard/fresh")
		fresh.OccurredAt = now
		require.NoError(t, repo.Record(ctx, fresh))

		removed, err := repo.PurgeOlderThan(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		got, err := repo.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "/dashboard/fresh", got[0].Path)
	})
}
