package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/smithy-go/ptr"

	"github.com/beanbocchi/parcel/internal/db"
)

// StartReaper periodically removes sessions that saw no activity within the
// configured TTL. It returns immediately; the loop stops when ctx is done.
func (s *Service) StartReaper(ctx context.Context) {
	if !s.reaper.Enabled {
		slog.Info("upload reaper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.reaper.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Reap(ctx, time.Now().Add(-s.reaper.TTL)); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("failed to reap upload sessions", "error", err)
				}
			}
		}
	}()
}

// Reap removes sessions and leftover tombstones untouched since cutoff and
// marks still-open journal rows abandoned. It returns the number removed.
func (s *Service) Reap(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.scratch.Sweep(ctx, cutoff)
	s.metrics.AddSessionsReaped(len(ids))

	for _, id := range ids {
		if jErr := s.abandon(ctx, id); jErr != nil {
			slog.Warn("failed to mark upload abandoned", "uploadId", id, "error", jErr)
		}
	}

	if len(ids) > 0 {
		slog.Info("reaped upload sessions", "count", len(ids))
	}
	return len(ids), err
}

// abandon flips a journal row to abandoned unless it already reached a final state.
func (s *Service) abandon(ctx context.Context, uploadID string) error {
	return s.storage.WithTx(ctx, func(q *db.Queries) error {
		upload, err := q.GetUpload(ctx, uploadID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get upload: %w", err)
		}
		if upload.Status != StatusUploading {
			return nil
		}

		return q.UpdateUpload(ctx, db.UpdateUploadParams{
			ID:        uploadID,
			Status:    ptr.String(StatusAbandoned),
			UpdatedAt: time.Now(),
		})
	})
}
