package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/c2h5oh/datasize"
	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/parcel/config"
	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/metrics"
	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/internal/utils/blake3"
)

const testChunkSize = 1024

type testEnv struct {
	svc     *Service
	cfg     *config.Config
	scratch string
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Env: "test",
		Upload: config.Upload{
			ScratchDir:   filepath.Join(dir, "temp_uploads"),
			MaxChunkSize: 4 * datasize.KB,
			Reaper: config.Reaper{
				Enabled:  false,
				Interval: time.Minute,
				TTL:      time.Hour,
			},
		},
		Objectstore: config.Objectstore{
			Type:  "local",
			Local: config.LocalObjectstore{Root: filepath.Join(dir, "uploads")},
		},
	}

	sqlDB, err := db.Open(filepath.Join(dir, "parcel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))

	svc, err := NewService(context.Background(), cfg, sqlDB, metrics.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	return &testEnv{svc: svc, cfg: cfg, scratch: cfg.Upload.ScratchDir}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func (e *testEnv) init(t *testing.T, filename string) string {
	t.Helper()
	res, err := e.svc.InitUpload(context.Background(), InitUploadParams{Filename: filename})
	require.NoError(t, err)
	return res.UploadID
}

func (e *testEnv) chunk(t *testing.T, uploadID string, index int, data []byte) {
	t.Helper()
	require.NoError(t, e.svc.ReceiveChunk(context.Background(), ReceiveChunkParams{
		UploadID:   uploadID,
		ChunkIndex: index,
		Content:    bytes.NewReader(data),
	}))
}

func (e *testEnv) serve(t *testing.T, storedFilename string) []byte {
	t.Helper()
	file, err := e.svc.ServeFile(context.Background(), storedFilename)
	require.NoError(t, err)
	defer file.Content.Close()
	data, err := io.ReadAll(file.Content)
	require.NoError(t, err)
	return data
}

func split(data []byte, size int) [][]byte {
	var chunks [][]byte
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		chunks = append(chunks, data[start:end])
	}
	return chunks
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	sizes := []int{0, 1, testChunkSize - 1, testChunkSize, testChunkSize + 1, 5*testChunkSize + 7}

	for _, size := range sizes {
		env := newTestService(t)
		payload := randomBytes(t, size)

		res, err := env.svc.InitUpload(ctx, InitUploadParams{Filename: "blob.bin", Size: null.IntFrom(int64(size))})
		require.NoError(t, err)

		for i, c := range split(payload, testChunkSize) {
			env.chunk(t, res.UploadID, i, c)
		}

		done, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: res.UploadID, Filename: "blob.bin"})
		require.NoError(t, err, "size %d", size)
		require.Equal(t, res.UploadID+"-blob.bin", done.StoredFilename)
		require.Equal(t, "/api/files/"+done.StoredFilename, done.URL)
		require.Equal(t, int64(size), done.Size)

		wantHash, err := blake3.Compute(bytes.NewReader(payload))
		require.NoError(t, err)
		require.Equal(t, wantHash, done.Hash)

		require.Equal(t, payload, env.serve(t, done.StoredFilename), "size %d", size)

		_, err = os.Stat(filepath.Join(env.scratch, res.UploadID))
		require.ErrorIs(t, err, os.ErrNotExist)
	}
}

func TestOutOfOrderChunks(t *testing.T) {
	env := newTestService(t)
	payload := randomBytes(t, 3*testChunkSize+10)
	chunks := split(payload, testChunkSize)
	id := env.init(t, "shuffled.bin")

	for _, i := range []int{3, 1, 0, 2} {
		env.chunk(t, id, i, chunks[i])
	}

	done, err := env.svc.CompleteUpload(context.Background(), CompleteUploadParams{UploadID: id, Filename: "shuffled.bin"})
	require.NoError(t, err)
	require.Equal(t, payload, env.serve(t, done.StoredFilename))
}

func TestChunkIndexesBeyondNine(t *testing.T) {
	env := newTestService(t)
	payload := randomBytes(t, 12*100)
	id := env.init(t, "many.bin")

	for i, c := range split(payload, 100) {
		env.chunk(t, id, i, c)
	}

	done, err := env.svc.CompleteUpload(context.Background(), CompleteUploadParams{UploadID: id, Filename: "many.bin"})
	require.NoError(t, err)
	require.Equal(t, payload, env.serve(t, done.StoredFilename))
}

func TestReuploadLaterWriteWins(t *testing.T) {
	env := newTestService(t)
	id := env.init(t, "a.txt")

	env.chunk(t, id, 0, []byte("first"))
	env.chunk(t, id, 0, []byte("second"))

	done, err := env.svc.CompleteUpload(context.Background(), CompleteUploadParams{UploadID: id, Filename: "a.txt"})
	require.NoError(t, err)
	require.Equal(t, "second", string(env.serve(t, done.StoredFilename)))
}

func TestCompleteTwice(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	id := env.init(t, "a.txt")
	env.chunk(t, id, 0, []byte("hello"))

	_, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "a.txt"})
	require.NoError(t, err)

	_, err = env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "a.txt"})
	require.ErrorIs(t, err, model.ErrSessionNotFound)

	err = env.svc.ReceiveChunk(ctx, ReceiveChunkParams{UploadID: id, ChunkIndex: 1, Content: bytes.NewReader([]byte("late"))})
	require.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestConcurrentCompleteOnlyOneWins(t *testing.T) {
	env := newTestService(t)
	id := env.init(t, "race.bin")
	env.chunk(t, id, 0, randomBytes(t, testChunkSize))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.svc.CompleteUpload(context.Background(), CompleteUploadParams{UploadID: id, Filename: "race.bin"})
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, model.ErrSessionNotFound)
	}
	require.Equal(t, 1, succeeded)
}

func TestOverCapChunk(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	id := env.init(t, "big.bin")

	limit := int(env.cfg.Upload.MaxChunkSize.Bytes())
	err := env.svc.ReceiveChunk(ctx, ReceiveChunkParams{UploadID: id, ChunkIndex: 0, Content: bytes.NewReader(randomBytes(t, limit+1))})
	require.ErrorIs(t, err, model.ErrPayloadTooLarge)

	status, err := env.svc.UploadStatus(ctx, id)
	require.NoError(t, err)
	require.Empty(t, status.Chunks)

	entries, err := os.ReadDir(filepath.Join(env.scratch, id))
	require.NoError(t, err)
	require.Empty(t, entries)

	// Exactly at the cap is accepted.
	env.chunk(t, id, 0, randomBytes(t, limit))
}

func TestConcurrentChunks(t *testing.T) {
	env := newTestService(t)
	id := env.init(t, "pair.bin")
	first, second := randomBytes(t, testChunkSize), randomBytes(t, testChunkSize)

	var wg sync.WaitGroup
	for i, data := range [][]byte{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.chunk(t, id, i, data)
		}()
	}
	wg.Wait()

	done, err := env.svc.CompleteUpload(context.Background(), CompleteUploadParams{UploadID: id, Filename: "pair.bin"})
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, first...), second...), env.serve(t, done.StoredFilename))
}

func TestCompleteWithGapKeepsSession(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	id := env.init(t, "gap.bin")
	env.chunk(t, id, 0, []byte("a"))
	env.chunk(t, id, 2, []byte("c"))

	_, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "gap.bin"})
	require.ErrorIs(t, err, model.ErrValidation)
	require.ErrorContains(t, err, "chunk 1 is missing")

	status, err := env.svc.UploadStatus(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, status.Chunks)

	env.chunk(t, id, 1, []byte("b"))
	done, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "gap.bin"})
	require.NoError(t, err)
	require.Equal(t, "abc", string(env.serve(t, done.StoredFilename)))
}

func TestCompleteDeclaredSizeMismatch(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)

	res, err := env.svc.InitUpload(ctx, InitUploadParams{Filename: "a.txt", Size: null.IntFrom(10)})
	require.NoError(t, err)
	env.chunk(t, res.UploadID, 0, []byte("short"))

	_, err = env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: res.UploadID, Filename: "a.txt"})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = env.svc.UploadStatus(ctx, res.UploadID)
	require.NoError(t, err)
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	id := env.init(t, "a.txt")

	_, err := env.svc.InitUpload(ctx, InitUploadParams{Filename: "  "})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = env.svc.InitUpload(ctx, InitUploadParams{Filename: "a.txt", Size: null.IntFrom(-1)})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = env.svc.InitUpload(ctx, InitUploadParams{Filename: "a.txt", MimeType: null.StringFrom("not a type")})
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "uploads/.."})
	require.ErrorIs(t, err, model.ErrValidation)
	_, err = env.svc.UploadStatus(ctx, id)
	require.NoError(t, err)

	err = env.svc.ReceiveChunk(ctx, ReceiveChunkParams{UploadID: id, ChunkIndex: -1, Content: bytes.NewReader(nil)})
	require.ErrorIs(t, err, model.ErrValidation)

	err = env.svc.ReceiveChunk(ctx, ReceiveChunkParams{UploadID: "../../etc", ChunkIndex: 0, Content: bytes.NewReader(nil)})
	require.ErrorIs(t, err, model.ErrValidation)

	err = env.svc.ReceiveChunk(ctx, ReceiveChunkParams{UploadID: "5f0c5a6e-8c1e-4d0b-9a53-1f6e0f1a2b3c", ChunkIndex: 0, Content: bytes.NewReader(nil)})
	require.ErrorIs(t, err, model.ErrSessionNotFound)

	_, err = env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: "nope", Filename: "a.txt"})
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestServeFileRejectsTraversal(t *testing.T) {
	env := newTestService(t)

	secret := filepath.Join(filepath.Dir(env.cfg.Objectstore.Local.Root), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o644))

	for _, name := range []string{"", ".", "..", "../secret.txt", "..%2Fsecret.txt", `..\secret.txt`, "a/b", "nul\x00byte", "missing.txt"} {
		_, err := env.svc.ServeFile(context.Background(), name)
		require.ErrorIs(t, err, model.ErrFileNotFound, "name %q", name)
	}
}

func TestServeFileMimeType(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), randomBytes(t, 64)...)
	id := env.init(t, "image")
	env.chunk(t, id, 0, png)
	done, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "image"})
	require.NoError(t, err)
	require.Equal(t, "image/png", done.MimeType)

	res, err := env.svc.InitUpload(ctx, InitUploadParams{Filename: "notes.md", MimeType: null.StringFrom("text/markdown")})
	require.NoError(t, err)
	env.chunk(t, res.UploadID, 0, []byte("# notes"))
	done, err = env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: res.UploadID, Filename: "notes.md"})
	require.NoError(t, err)

	file, err := env.svc.ServeFile(ctx, done.StoredFilename)
	require.NoError(t, err)
	defer file.Content.Close()
	require.Equal(t, "text/markdown", file.MimeType)
	require.Equal(t, int64(7), file.Size.Int64)
	require.False(t, file.Attachment)

	image, err := env.svc.ServeFile(ctx, id+"-image")
	require.NoError(t, err)
	defer image.Content.Close()
	require.False(t, image.Attachment)
}

func TestServeFileActiveContentIsAttachment(t *testing.T) {
	ctx := context.Background()

	for _, mimeType := range []string{"text/html", "text/html; charset=utf-8", "image/svg+xml", "application/xhtml+xml", "text/javascript"} {
		env := newTestService(t)
		res, err := env.svc.InitUpload(ctx, InitUploadParams{Filename: "page.html", MimeType: null.StringFrom(mimeType)})
		require.NoError(t, err)
		env.chunk(t, res.UploadID, 0, []byte("<script>alert(1)</script>"))
		done, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: res.UploadID, Filename: "page.html"})
		require.NoError(t, err)

		file, err := env.svc.ServeFile(ctx, done.StoredFilename)
		require.NoError(t, err)
		file.Content.Close()
		require.True(t, file.Attachment, mimeType)
		require.Equal(t, "page.html", file.Filename)
	}

	// Sniffed HTML is downloaded too.
	env := newTestService(t)
	id := env.init(t, "index")
	env.chunk(t, id, 0, []byte("<!DOCTYPE html><html><body>hi</body></html>"))
	done, err := env.svc.CompleteUpload(ctx, CompleteUploadParams{UploadID: id, Filename: "index"})
	require.NoError(t, err)
	file, err := env.svc.ServeFile(ctx, done.StoredFilename)
	require.NoError(t, err)
	file.Content.Close()
	require.True(t, file.Attachment)
}

func TestAbortUpload(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	id := env.init(t, "a.txt")
	env.chunk(t, id, 0, []byte("data"))

	require.NoError(t, env.svc.AbortUpload(ctx, id))
	require.ErrorIs(t, env.svc.AbortUpload(ctx, id), model.ErrSessionNotFound)

	_, err := env.svc.UploadStatus(ctx, id)
	require.ErrorIs(t, err, model.ErrSessionNotFound)

	upload, err := env.svc.storage.GetUpload(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusAborted, upload.Status)
}

func TestReapRemovesStaleSessionsOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)

	stale := env.init(t, "stale.txt")
	env.chunk(t, stale, 0, []byte("old"))
	fresh := env.init(t, "fresh.txt")

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(env.scratch, stale), past, past))

	removed, err := env.svc.Reap(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = env.svc.UploadStatus(ctx, stale)
	require.ErrorIs(t, err, model.ErrSessionNotFound)
	_, err = env.svc.UploadStatus(ctx, fresh)
	require.NoError(t, err)

	upload, err := env.svc.storage.GetUpload(ctx, stale)
	require.NoError(t, err)
	require.Equal(t, StatusAbandoned, upload.Status)

	upload, err = env.svc.storage.GetUpload(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, StatusUploading, upload.Status)
}

func TestListUploads(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)
	for range 3 {
		env.init(t, "a.txt")
	}

	page, err := env.svc.ListUploads(ctx, ListUploadsParams{PaginationParams: model.PaginationParams{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	require.Equal(t, int64(3), page.Total)
	require.Equal(t, int32(2), page.NextPage().Int32)

	page, err = env.svc.ListUploads(ctx, ListUploadsParams{PaginationParams: model.PaginationParams{Page: null.Int32From(2), Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.False(t, page.NextPage().Valid)
}

func TestLRUEvictionPolicyUsesJournalSizes(t *testing.T) {
	ctx := context.Background()
	env := newTestService(t)

	for key, size := range map[string]int64{"a": 60, "b": 30, "c": 30} {
		now := time.Now()
		_, err := env.svc.storage.CreateUpload(ctx, db.CreateUploadParams{ID: key, Filename: key, CreatedAt: now, UpdatedAt: now})
		require.NoError(t, err)
		require.NoError(t, env.svc.storage.UpdateUpload(ctx, db.UpdateUploadParams{
			ID:             key,
			StoredFilename: ptr.String(key),
			FileSize:       ptr.Int64(size),
			UpdatedAt:      now,
		}))
	}

	policy := NewLRUEvictionPolicy(env.svc.storage, 100)
	require.Empty(t, policy.OnAdd("a"))
	require.Empty(t, policy.OnAdd("b"))
	policy.OnAccess("a")
	require.Equal(t, []string{"b"}, policy.OnAdd("c"))
}
