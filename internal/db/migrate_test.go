package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/stretchr/testify/require"
)

func newTestQueries(t *testing.T) *Queries {
	t.Helper()
	sqlDB, err := Open(filepath.Join(t.TempDir(), "parcel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(sqlDB))
	// Running twice must be a no-op.
	require.NoError(t, Migrate(sqlDB))

	return New(sqlDB)
}

func TestUploadQueries(t *testing.T) {
	ctx := context.Background()
	q := newTestQueries(t)
	now := time.Now().UTC().Truncate(time.Second)

	created, err := q.CreateUpload(ctx, CreateUploadParams{
		ID:           "5f0c5a6e-8c1e-4d0b-9a53-1f6e0f1a2b3c",
		Filename:     "report.pdf",
		DeclaredSize: ptr.Int64(42),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	require.Equal(t, "uploading", created.Status)
	require.Nil(t, created.StoredFilename)
	require.Equal(t, int64(42), *created.DeclaredSize)

	stored := "5f0c5a6e-8c1e-4d0b-9a53-1f6e0f1a2b3c-report.pdf"
	require.NoError(t, q.UpdateUpload(ctx, UpdateUploadParams{
		ID:             created.ID,
		Status:         ptr.String("completed"),
		StoredFilename: ptr.String(stored),
		FileSize:       ptr.Int64(42),
		FileHash:       ptr.String("abc"),
		CompletedAt:    ptr.Time(now),
		UpdatedAt:      now,
	}))

	got, err := q.GetUploadByStoredFilename(ctx, ptr.String(stored))
	require.NoError(t, err)
	require.Equal(t, "completed", got.Status)
	require.Equal(t, "abc", *got.FileHash)
	require.Equal(t, "report.pdf", got.Filename)
	require.NotNil(t, got.CompletedAt)

	// Partial updates keep earlier values.
	require.NoError(t, q.UpdateUpload(ctx, UpdateUploadParams{
		ID:        created.ID,
		MimeType:  ptr.String("application/pdf"),
		UpdatedAt: now,
	}))
	got, err = q.GetUpload(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", got.Status)
	require.Equal(t, "application/pdf", *got.MimeType)

	count, err := q.CountUploads(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	list, err := q.ListUploads(ctx, ListUploadsParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = q.GetUpload(ctx, "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}
