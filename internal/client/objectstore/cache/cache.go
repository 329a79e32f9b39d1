package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/beanbocchi/parcel/internal/client/objectstore"
)

// EvictionPolicy defines the interface for cache eviction strategies.
type EvictionPolicy interface {
	// OnAccess is called when a cache key is accessed (read).
	OnAccess(key string)
	// OnAdd is called when a new item is successfully added to the cache, it returns the keys that should be evicted.
	OnAdd(key string) []string
	// OnRemove is called when an item is removed from the cache.
	OnRemove(key string)
}

// CacheConfig configures the cache storage.
type CacheConfig struct {
	// Cache is the cache storage client.
	Cache objectstore.Client
	// Primary is the primary storage client (e.g., S3, Storj).
	Primary objectstore.Client
	// EvictionPolicy is the eviction policy for the cache (e.g., LRU with size management).
	EvictionPolicy EvictionPolicy
}

// CacheClient serves artifacts from a local cache, filling it from the primary store on a miss.
type CacheClient struct {
	cache          objectstore.Client
	primary        objectstore.Client
	evictionPolicy EvictionPolicy
}

// NewCacheClient creates a new cache storage client.
func NewCacheClient(cfg CacheConfig) (*CacheClient, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache storage client is required")
	}
	if cfg.Primary == nil {
		return nil, fmt.Errorf("primary storage client is required")
	}
	if cfg.EvictionPolicy == nil {
		return nil, fmt.Errorf("eviction policy is required")
	}

	return &CacheClient{
		cache:          cfg.Cache,
		primary:        cfg.Primary,
		evictionPolicy: cfg.EvictionPolicy,
	}, nil
}

// Upload writes to the primary storage and drops any stale cached copy.
// The reader can only be consumed once, so the cache is filled lazily on the first download.
func (c *CacheClient) Upload(ctx context.Context, key string, content io.Reader) error {
	if err := c.primary.Upload(ctx, key, content); err != nil {
		return fmt.Errorf("upload to primary: %w", err)
	}

	c.dropCached(ctx, key)
	return nil
}

// Download retrieves a file from cache first, then falls back to primary.
func (c *CacheClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := c.cache.Download(ctx, key)
	if err == nil {
		c.evictionPolicy.OnAccess(key)
		return reader, nil
	}

	if err := c.fill(ctx, key); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, err
		}
		slog.Warn("failed to cache object, serving from primary", "key", key, "error", err)
		return c.primary.Download(ctx, key)
	}

	return c.cache.Download(ctx, key)
}

// fill copies key from primary into the cache and applies the eviction policy.
func (c *CacheClient) fill(ctx context.Context, key string) error {
	primaryReader, err := c.primary.Download(ctx, key)
	if err != nil {
		return err
	}
	defer primaryReader.Close()

	if err := c.cache.Upload(ctx, key, primaryReader); err != nil {
		return fmt.Errorf("upload to cache: %w", err)
	}

	for _, evictKey := range c.evictionPolicy.OnAdd(key) {
		if err := c.cache.Delete(ctx, evictKey); err != nil {
			slog.Warn("failed to evict cached object", "key", evictKey, "error", err)
		}
	}
	return nil
}

func (c *CacheClient) dropCached(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete cached object", "key", key, "error", err)
		return
	}
	c.evictionPolicy.OnRemove(key)
}

// Delete deletes a file from both cache and primary storage.
func (c *CacheClient) Delete(ctx context.Context, key string) error {
	c.dropCached(ctx, key)

	if err := c.primary.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete from primary: %w", err)
	}

	return nil
}
