package stoj

import (
	"context"
	"errors"
	"fmt"
	"io"

	"storj.io/uplink"

	"github.com/beanbocchi/parcel/internal/client/objectstore"
)

type ClientImpl struct {
	project *uplink.Project
	bucket  string
}

type StorjConfig struct {
	// AccessGrant is the Storj access grant string
	AccessGrant string
	// Bucket is the bucket name where objects will be stored
	Bucket string
}

// NewClient creates a new Storj objectstore client
func NewClient(ctx context.Context, cfg StorjConfig) (*ClientImpl, error) {
	if cfg.AccessGrant == "" {
		return nil, fmt.Errorf("access grant is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	access, err := uplink.ParseAccess(cfg.AccessGrant)
	if err != nil {
		return nil, fmt.Errorf("parse access grant: %w", err)
	}

	project, err := uplink.OpenProject(ctx, access)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}

	if _, err := project.EnsureBucket(ctx, cfg.Bucket); err != nil {
		project.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	return &ClientImpl{
		project: project,
		bucket:  cfg.Bucket,
	}, nil
}

// Close closes the Storj project connection
func (c *ClientImpl) Close() error {
	if c.project != nil {
		return c.project.Close()
	}
	return nil
}

// Upload streams an artifact to Storj, committing only after the whole reader was consumed.
func (c *ClientImpl) Upload(ctx context.Context, key string, content io.Reader) error {
	upload, err := c.project.UploadObject(ctx, c.bucket, key, nil)
	if err != nil {
		return fmt.Errorf("initiate upload: %w", err)
	}

	if _, err := io.Copy(upload, content); err != nil {
		upload.Abort()
		return fmt.Errorf("write data: %w", err)
	}

	if err := upload.Commit(); err != nil {
		return fmt.Errorf("commit upload: %w", err)
	}

	return nil
}

func (c *ClientImpl) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	download, err := c.project.DownloadObject(ctx, c.bucket, key, nil)
	if err != nil {
		if errors.Is(err, uplink.ErrObjectNotFound) {
			return nil, objectstore.ErrNotFound
		}
		return nil, fmt.Errorf("download object: %w", err)
	}

	return download, nil
}

func (c *ClientImpl) Delete(ctx context.Context, key string) error {
	if _, err := c.project.DeleteObject(ctx, c.bucket, key); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
