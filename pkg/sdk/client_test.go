package sdk_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/parcel/config"
	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/internal/service"
	"github.com/beanbocchi/parcel/internal/transport"
	"github.com/beanbocchi/parcel/pkg/sdk"
)

const mib = 1024 * 1024

// chunkRecorder records the body size of every chunk request and can fail one index.
type chunkRecorder struct {
	next http.Handler

	mu     sync.Mutex
	sizes  []int64
	failAt int
}

func (r *chunkRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path == "/api/upload/chunk" {
		r.mu.Lock()
		r.sizes = append(r.sizes, req.ContentLength)
		fail := r.failAt >= 0 && req.URL.Query().Get("chunkIndex") == strconv.Itoa(r.failAt)
		if fail {
			r.failAt = -1
		}
		r.mu.Unlock()

		if fail {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"success":false,"error":"Storage error: disk full","code":"storage"}`)
			return
		}
	}
	r.next.ServeHTTP(w, req)
}

func (r *chunkRecorder) failChunk(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt = index
}

func (r *chunkRecorder) chunkSizes() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.sizes...)
}

func newTestServer(t *testing.T) (*httptest.Server, *chunkRecorder) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Env: "test",
		Upload: config.Upload{
			ScratchDir:   filepath.Join(dir, "temp_uploads"),
			MaxChunkSize: 6 * datasize.MB,
			Reaper:       config.Reaper{Interval: time.Minute, TTL: time.Hour},
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

	svc, err := service.NewService(context.Background(), cfg, sqlDB, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	e, err := transport.NewEcho(cfg, svc, nil)
	require.NoError(t, err)

	recorder := &chunkRecorder{next: e, failAt: -1}
	server := httptest.NewServer(recorder)
	t.Cleanup(server.Close)
	return server, recorder
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func download(t *testing.T, client *sdk.Client, res *sdk.UploadResult) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := client.Download(context.Background(), res.URL, &buf, res.Hash)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestUploadFileTwelveMiB(t *testing.T) {
	server, recorder := newTestServer(t)
	client := sdk.NewClient(server.URL)
	payload := randomBytes(t, 12*mib)

	var progress []int
	res, err := client.UploadFile(context.Background(), sdk.UploadRequest{
		File:       bytes.NewReader(payload),
		Size:       int64(len(payload)),
		FileName:   "video.mp4",
		OnProgress: func(p int) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	require.Equal(t, []int64{5 * mib, 5 * mib, 2 * mib}, recorder.chunkSizes())
	require.Equal(t, []int{33, 67, 100}, progress)
	require.Equal(t, res.UploadID+"-video.mp4", res.FileName)
	require.Equal(t, int64(len(payload)), res.Size)
	require.Equal(t, payload, download(t, client, res))
}

func TestUploadFileRoundTrip(t *testing.T) {
	const chunk = 1024
	server, _ := newTestServer(t)
	client := sdk.NewClient(server.URL, sdk.WithChunkSize(chunk))

	for _, size := range []int{0, 1, chunk - 1, chunk, chunk + 1, 5*chunk + 7} {
		payload := randomBytes(t, size)
		var progress []int

		res, err := client.UploadFile(context.Background(), sdk.UploadRequest{
			File:       bytes.NewReader(payload),
			Size:       int64(size),
			FileName:   "data.bin",
			OnProgress: func(p int) { progress = append(progress, p) },
		})
		require.NoError(t, err, "size %d", size)
		require.Equal(t, payload, download(t, client, res), "size %d", size)

		if size == 0 {
			require.Empty(t, progress)
			continue
		}
		require.Equal(t, 100, progress[len(progress)-1])
		for i := 1; i < len(progress); i++ {
			require.GreaterOrEqual(t, progress[i], progress[i-1])
		}
	}
}

func TestChunkFailureAndResume(t *testing.T) {
	const chunk = 1024
	server, recorder := newTestServer(t)
	client := sdk.NewClient(server.URL, sdk.WithChunkSize(chunk))
	payload := randomBytes(t, 4*chunk)
	req := sdk.UploadRequest{
		File:     bytes.NewReader(payload),
		Size:     int64(len(payload)),
		FileName: "resume.bin",
	}

	recorder.failChunk(2)
	_, err := client.UploadFile(context.Background(), req)

	var chunkErr *sdk.ChunkUploadError
	require.ErrorAs(t, err, &chunkErr)
	require.Equal(t, 2, chunkErr.Index)
	require.ErrorIs(t, err, model.ErrStorage)
	require.Len(t, recorder.chunkSizes(), 3)

	present, err := client.Status(context.Background(), chunkErr.UploadID)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, present)

	var progress []int
	req.OnProgress = func(p int) { progress = append(progress, p) }
	res, err := client.ResumeUpload(context.Background(), chunkErr.UploadID, req)
	require.NoError(t, err)
	require.Equal(t, []int{75, 100}, progress)
	require.Len(t, recorder.chunkSizes(), 5)
	require.Equal(t, payload, download(t, client, res))
}

func TestInitAndResumeErrors(t *testing.T) {
	server, _ := newTestServer(t)
	client := sdk.NewClient(server.URL)

	_, err := client.UploadFile(context.Background(), sdk.UploadRequest{File: bytes.NewReader(nil), FileName: ".."})
	var initErr *sdk.InitError
	require.ErrorAs(t, err, &initErr)
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = client.ResumeUpload(context.Background(), "5f0c5a6e-8c1e-4d0b-9a53-1f6e0f1a2b3c", sdk.UploadRequest{
		File:     bytes.NewReader([]byte("x")),
		Size:     1,
		FileName: "a.txt",
	})
	require.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestAbortAfterChunkFailure(t *testing.T) {
	const chunk = 4
	server, recorder := newTestServer(t)
	client := sdk.NewClient(server.URL, sdk.WithChunkSize(chunk))
	payload := []byte("abcdefgh")

	recorder.failChunk(1)
	_, err := client.UploadFile(context.Background(), sdk.UploadRequest{
		File:     bytes.NewReader(payload),
		Size:     int64(len(payload)),
		FileName: "a.txt",
	})
	var chunkErr *sdk.ChunkUploadError
	require.ErrorAs(t, err, &chunkErr)

	require.NoError(t, client.Abort(context.Background(), chunkErr.UploadID))
	require.ErrorIs(t, client.Abort(context.Background(), chunkErr.UploadID), model.ErrSessionNotFound)

	_, err = client.Status(context.Background(), chunkErr.UploadID)
	require.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestDownloadErrors(t *testing.T) {
	server, _ := newTestServer(t)
	client := sdk.NewClient(server.URL)

	_, err := client.Download(context.Background(), "/api/files/missing.txt", io.Discard, "")
	require.ErrorIs(t, err, model.ErrFileNotFound)

	res, err := client.UploadFile(context.Background(), sdk.UploadRequest{
		File:     bytes.NewReader([]byte("hello")),
		Size:     5,
		FileName: "hello.txt",
	})
	require.NoError(t, err)

	_, err = client.Download(context.Background(), res.URL, io.Discard, strings.Repeat("0", 64))
	require.True(t, errors.Is(err, sdk.ErrHashMismatch))
}

func TestListUploads(t *testing.T) {
	server, _ := newTestServer(t)
	client := sdk.NewClient(server.URL)

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err := client.UploadFile(context.Background(), sdk.UploadRequest{
			File:     bytes.NewReader([]byte(name)),
			Size:     int64(len(name)),
			FileName: name,
		})
		require.NoError(t, err)
	}

	page, err := client.ListUploads(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	require.Equal(t, "completed", page.Data[0].Status)
	require.Equal(t, int64(2), page.PageMeta.Total.Int64)
	require.Equal(t, int32(2), page.PageMeta.NextPage.Int32)
}
