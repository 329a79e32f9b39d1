package cache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/parcel/internal/client/objectstore"
)

type memClient struct {
	mu        sync.Mutex
	objects   map[string][]byte
	downloads int
	failWrite bool
}

func newMemClient() *memClient {
	return &memClient{objects: make(map[string][]byte)}
}

func (m *memClient) Upload(ctx context.Context, key string, content io.Reader) error {
	if m.failWrite {
		return errors.New("disk full")
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memClient) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads++
	data, ok := m.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memClient) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type recordingPolicy struct {
	added, accessed, removed []string
	evict                    []string
}

func (p *recordingPolicy) OnAccess(key string) { p.accessed = append(p.accessed, key) }
func (p *recordingPolicy) OnAdd(key string) []string {
	p.added = append(p.added, key)
	return p.evict
}
func (p *recordingPolicy) OnRemove(key string) { p.removed = append(p.removed, key) }

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestNewCacheClient(t *testing.T) {
	_, err := NewCacheClient(CacheConfig{Primary: newMemClient(), EvictionPolicy: &recordingPolicy{}})
	require.ErrorContains(t, err, "cache storage client is required")
	_, err = NewCacheClient(CacheConfig{Cache: newMemClient(), EvictionPolicy: &recordingPolicy{}})
	require.ErrorContains(t, err, "primary storage client is required")
	_, err = NewCacheClient(CacheConfig{Cache: newMemClient(), Primary: newMemClient()})
	require.ErrorContains(t, err, "eviction policy is required")
}

func TestCacheClient(t *testing.T) {
	ctx := context.Background()

	t.Run("download fills the cache once", func(t *testing.T) {
		primary, local, policy := newMemClient(), newMemClient(), &recordingPolicy{}
		client, err := NewCacheClient(CacheConfig{Cache: local, Primary: primary, EvictionPolicy: policy})
		require.NoError(t, err)

		require.NoError(t, client.Upload(ctx, "k", strings.NewReader("artifact")))
		require.Equal(t, "artifact", readAll(t, mustDownload(t, client, "k")))
		require.Equal(t, "artifact", readAll(t, mustDownload(t, client, "k")))

		require.Equal(t, 1, primary.downloads)
		require.Equal(t, []string{"k"}, policy.added)
		require.Equal(t, []string{"k"}, policy.accessed)
	})

	t.Run("evicted keys are deleted from the cache", func(t *testing.T) {
		primary, local := newMemClient(), newMemClient()
		policy := &recordingPolicy{evict: []string{"old"}}
		client, err := NewCacheClient(CacheConfig{Cache: local, Primary: primary, EvictionPolicy: policy})
		require.NoError(t, err)

		local.objects["old"] = []byte("stale")
		primary.objects["new"] = []byte("fresh")

		require.Equal(t, "fresh", readAll(t, mustDownload(t, client, "new")))
		_, ok := local.objects["old"]
		require.False(t, ok)
	})

	t.Run("missing object", func(t *testing.T) {
		client, err := NewCacheClient(CacheConfig{Cache: newMemClient(), Primary: newMemClient(), EvictionPolicy: &recordingPolicy{}})
		require.NoError(t, err)
		_, err = client.Download(ctx, "missing")
		require.ErrorIs(t, err, objectstore.ErrNotFound)
	})

	t.Run("cache write failure falls back to primary", func(t *testing.T) {
		primary, local := newMemClient(), newMemClient()
		local.failWrite = true
		primary.objects["k"] = []byte("artifact")
		client, err := NewCacheClient(CacheConfig{Cache: local, Primary: primary, EvictionPolicy: &recordingPolicy{}})
		require.NoError(t, err)

		require.Equal(t, "artifact", readAll(t, mustDownload(t, client, "k")))
	})
}

func mustDownload(t *testing.T, client *CacheClient, key string) io.ReadCloser {
	t.Helper()
	rc, err := client.Download(context.Background(), key)
	require.NoError(t, err)
	return rc
}
