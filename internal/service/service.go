package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/beanbocchi/parcel/config"
	"github.com/beanbocchi/parcel/internal/client/objectstore"
	"github.com/beanbocchi/parcel/internal/client/objectstore/cache"
	"github.com/beanbocchi/parcel/internal/client/objectstore/local"
	"github.com/beanbocchi/parcel/internal/client/objectstore/s3"
	"github.com/beanbocchi/parcel/internal/client/objectstore/stoj"
	"github.com/beanbocchi/parcel/internal/client/objectstore/sync"
	"github.com/beanbocchi/parcel/internal/client/scratch"
	"github.com/beanbocchi/parcel/internal/metrics"
	"github.com/beanbocchi/parcel/pkg/sqlc"
)

// Upload journal statuses.
const (
	StatusUploading = "uploading"
	StatusCompleted = "completed"
	StatusAborted   = "aborted"
	StatusAbandoned = "abandoned"
)

type Service struct {
	scratch     *scratch.Store
	objectStore objectstore.Client
	storage     *sqlc.Storage
	metrics     *metrics.Registry

	maxChunkSize int64
	publicURL    string
	reaper       config.Reaper

	closers []io.Closer
}

// NewService wires the scratch store, the artifact store and the journal.
// registry may be nil when metrics are disabled.
func NewService(ctx context.Context, cfg *config.Config, sqliteDB *sql.DB, registry *metrics.Registry) (*Service, error) {
	storage := sqlc.NewStorage(sqliteDB)

	scratchStore, err := scratch.New(scratch.Config{Root: cfg.Upload.ScratchDir})
	if err != nil {
		return nil, fmt.Errorf("create scratch store: %w", err)
	}

	s := &Service{
		scratch:      scratchStore,
		storage:      storage,
		metrics:      registry,
		maxChunkSize: int64(cfg.Upload.MaxChunkSize.Bytes()),
		publicURL:    cfg.App.PublicURL,
		reaper:       cfg.Upload.Reaper,
	}

	store, err := s.newObjectStore(ctx, cfg.Objectstore)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Serving must never observe an artifact that is still being written.
	s.objectStore, err = sync.NewSyncClient(sync.SyncConfig{Client: store})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create sync store: %w", err)
	}

	return s, nil
}

func (s *Service) newObjectStore(ctx context.Context, cfg config.Objectstore) (objectstore.Client, error) {
	localStore, err := local.NewClient(local.LocalConfig{Root: cfg.Local.Root})
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}

	var primary objectstore.Client
	switch cfg.Type {
	case "local":
		return localStore, nil
	case "s3":
		primary, err = s3.NewClient(ctx, s3.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 store: %w", err)
		}
	case "storj":
		storjStore, err := stoj.NewClient(ctx, stoj.StorjConfig{
			Bucket:      cfg.Storj.Bucket,
			AccessGrant: cfg.Storj.AccessGrant,
		})
		if err != nil {
			return nil, fmt.Errorf("create storj store: %w", err)
		}
		s.closers = append(s.closers, storjStore)
		primary = storjStore
	default:
		return nil, fmt.Errorf("unknown objectstore type %q", cfg.Type)
	}

	if !cfg.Cache.Enabled {
		return primary, nil
	}

	// The local root doubles as the read cache in front of the remote store.
	cacheStore, err := cache.NewCacheClient(cache.CacheConfig{
		Cache:          localStore,
		Primary:        primary,
		EvictionPolicy: NewLRUEvictionPolicy(s.storage, int64(cfg.Cache.MaxSize.Bytes())),
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}

	slog.Info("artifact cache enabled", "root", filepath.Clean(cfg.Local.Root), "maxSize", cfg.Cache.MaxSize.HumanReadable())
	return cacheStore, nil
}

// Close releases remote objectstore connections.
func (s *Service) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
