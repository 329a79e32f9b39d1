package service

import (
	"container/list"
	"context"
	"sync"

	"github.com/beanbocchi/parcel/internal/client/objectstore/cache"
	"github.com/beanbocchi/parcel/pkg/sqlc"
)

// lruEntry holds metadata for a cached item.
type lruEntry struct {
	key  string
	size int64
}

// LRUEvictionPolicy is an in-memory LRU over cached artifacts. Artifact sizes
// come from the upload journal; the cache client deletes the keys it returns.
type LRUEvictionPolicy struct {
	mu sync.Mutex

	maxSizeBytes int64
	currentSize  int64

	// items maps cache keys to their position in the LRU list.
	items map[string]*list.Element
	// order keeps items ordered by recency (front = most recently used).
	order *list.List

	storage *sqlc.Storage
}

// NewLRUEvictionPolicy creates an LRU bounded by maxSizeBytes of cached artifacts.
// A non-positive limit disables eviction.
func NewLRUEvictionPolicy(storage *sqlc.Storage, maxSizeBytes int64) cache.EvictionPolicy {
	return &LRUEvictionPolicy{
		maxSizeBytes: maxSizeBytes,
		items:        make(map[string]*list.Element),
		order:        list.New(),
		storage:      storage,
	}
}

// OnAccess is called when a cache key is accessed (read).
func (p *LRUEvictionPolicy) OnAccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
	}
}

// OnAdd is called when a new item is successfully added to the cache.
// It returns the keys that should be evicted from the cache storage.
func (p *LRUEvictionPolicy) OnAdd(key string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	size := p.lookupSizeBytes(key)

	// A refill of a tracked key replaces its size.
	if elem, ok := p.items[key]; ok {
		entry := elem.Value.(*lruEntry)
		p.currentSize += size - entry.size
		entry.size = size
		p.order.MoveToFront(elem)
		return p.evictIfNeeded()
	}

	entry := &lruEntry{
		key:  key,
		size: size,
	}
	elem := p.order.PushFront(entry)
	p.items[key] = elem
	p.currentSize += size

	return p.evictIfNeeded()
}

// OnRemove is called when an item is removed from the cache.
func (p *LRUEvictionPolicy) OnRemove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elem, ok := p.items[key]
	if !ok {
		return
	}

	entry, _ := elem.Value.(*lruEntry)
	if entry != nil {
		p.currentSize -= entry.size
	}

	p.order.Remove(elem)
	delete(p.items, key)
}

// evictIfNeeded trims the LRU list so that total size stays within maxSizeBytes
// and returns the evicted keys. The most recent entry is always kept so a
// freshly filled artifact can be served.
func (p *LRUEvictionPolicy) evictIfNeeded() []string {
	if p.maxSizeBytes <= 0 {
		return nil
	}

	var evicted []string

	for p.currentSize > p.maxSizeBytes && p.order.Len() > 1 {
		back := p.order.Back()
		if back == nil {
			break
		}

		entry, _ := back.Value.(*lruEntry)
		if entry == nil {
			p.order.Remove(back)
			continue
		}

		delete(p.items, entry.key)
		p.order.Remove(back)
		p.currentSize -= entry.size
		evicted = append(evicted, entry.key)
	}

	return evicted
}

// lookupSizeBytes returns the journaled size of the artifact stored under key.
// Unknown artifacts are tracked with size 0 and never count towards the limit.
func (p *LRUEvictionPolicy) lookupSizeBytes(key string) int64 {
	if p.storage == nil || p.storage.Queries == nil {
		return 0
	}

	upload, err := p.storage.GetUploadByStoredFilename(context.Background(), &key)
	if err != nil || upload.FileSize == nil {
		return 0
	}

	return *upload.FileSize
}
