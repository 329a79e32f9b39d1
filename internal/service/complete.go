package service

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/gabriel-vasile/mimetype"

	"github.com/beanbocchi/parcel/internal/client/scratch"
	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/internal/utils/blake3"
	"github.com/beanbocchi/parcel/internal/utils/ioutil"
	"github.com/beanbocchi/parcel/pkg/validator"
)

// sniffLen is how much of the artifact is inspected for MIME detection.
const sniffLen = 3072

const filesPath = "/api/files/"

type CompleteUploadParams struct {
	UploadID string `validate:"required,uuid"`
	Filename string `validate:"required,filename"`
}

type CompleteUploadResult struct {
	URL            string
	StoredFilename string
	Size           int64
	Hash           string
	MimeType       string
}

// CompleteUpload reassembles the committed chunks of a session into an artifact.
// On any failure the session is handed back untouched so the client can retry.
func (s *Service) CompleteUpload(ctx context.Context, params CompleteUploadParams) (_ CompleteUploadResult, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordUploadOperation("complete", err) }()

	if err := validator.Validate(&params); err != nil {
		return CompleteUploadResult{}, err
	}

	filename, err := sanitizeFilename(params.Filename)
	if err != nil {
		return CompleteUploadResult{}, err
	}

	claim, err := s.scratch.Claim(ctx, params.UploadID)
	if err != nil {
		return CompleteUploadResult{}, s.scratchError(params.UploadID, err)
	}

	result, err := s.assemble(ctx, claim, filename)
	if err != nil {
		if relErr := claim.Release(); relErr != nil {
			slog.Error("failed to release upload session", "uploadId", params.UploadID, "error", relErr)
		}
		return CompleteUploadResult{}, err
	}

	if err := claim.Remove(); err != nil {
		// The artifact is stored; the reaper collects the leftover tombstone.
		slog.Warn("failed to remove completed session", "uploadId", params.UploadID, "error", err)
	}

	s.journal(ctx, params.UploadID, db.UpdateUploadParams{
		Status:         ptr.String(StatusCompleted),
		StoredFilename: ptr.String(result.StoredFilename),
		FileSize:       ptr.Int64(result.Size),
		FileHash:       ptr.String(result.Hash),
		MimeType:       ptr.String(result.MimeType),
		ChunkCount:     ptr.Int64(int64(result.chunkCount)),
		CompletedAt:    ptr.Time(time.Now()),
	})
	s.metrics.ObserveCompletion(result.Size, time.Since(start).Seconds())

	slog.Info("upload completed",
		"uploadId", params.UploadID,
		"storedFilename", result.StoredFilename,
		"size", result.Size,
		"chunks", result.chunkCount,
	)
	return result.CompleteUploadResult, nil
}

type assembled struct {
	CompleteUploadResult
	chunkCount int
}

func (s *Service) assemble(ctx context.Context, claim *scratch.Claim, filename string) (assembled, error) {
	chunks, err := claim.Chunks()
	if err != nil {
		return assembled{}, model.ErrStorage.Fmt(err)
	}

	var total int64
	for i, c := range chunks {
		if c.Index != i {
			return assembled{}, model.ErrValidation.Fmt(fmt.Sprintf("chunk %d is missing", i))
		}
		total += c.Size
	}

	record, err := s.storage.GetUpload(ctx, claim.ID())
	switch {
	case errors.Is(err, sql.ErrNoRows):
		slog.Warn("upload has no journal entry", "uploadId", claim.ID())
	case err != nil:
		slog.Warn("failed to read upload journal", "uploadId", claim.ID(), "error", err)
	case record.DeclaredSize != nil && *record.DeclaredSize != total:
		return assembled{}, model.ErrValidation.Fmt(fmt.Sprintf("received %d bytes, expected %d", total, *record.DeclaredSize))
	}

	storedFilename := claim.ID() + "-" + filename

	chunkReader := newChunkReader(chunks)
	defer chunkReader.Close()

	sizeReader := ioutil.NewSizeReader(chunkReader)
	hashReader := blake3.NewReader(sizeReader)
	content := bufio.NewReaderSize(hashReader, sniffLen)

	// Peek reports short reads as errors; the bytes it did return are still valid.
	head, _ := content.Peek(sniffLen)
	mimeType := mimetype.Detect(head).String()
	if record.MimeType != nil && *record.MimeType != "" {
		mimeType = *record.MimeType
	}

	if err := s.objectStore.Upload(ctx, storedFilename, content); err != nil {
		return assembled{}, model.ErrStorage.Fmt(fmt.Errorf("store artifact: %w", err))
	}

	if sizeReader.Size != total {
		// A chunk changed underneath us; do not report a corrupt artifact as complete.
		if delErr := s.objectStore.Delete(ctx, storedFilename); delErr != nil {
			slog.Warn("failed to delete inconsistent artifact", "key", storedFilename, "error", delErr)
		}
		return assembled{}, model.ErrStorage.Fmt(fmt.Sprintf("reassembled %d bytes, chunks total %d", sizeReader.Size, total))
	}

	return assembled{
		CompleteUploadResult: CompleteUploadResult{
			URL:            s.FileURL(storedFilename),
			StoredFilename: storedFilename,
			Size:           sizeReader.Size,
			Hash:           hashReader.Sum(),
			MimeType:       mimeType,
		},
		chunkCount: len(chunks),
	}, nil
}

// FileURL is the retrieval URL of a stored artifact.
func (s *Service) FileURL(storedFilename string) string {
	return strings.TrimSuffix(s.publicURL, "/") + filesPath + url.PathEscape(storedFilename)
}

// chunkReader concatenates chunk files, opening one at a time.
type chunkReader struct {
	chunks  []scratch.Chunk
	current *os.File
}

func newChunkReader(chunks []scratch.Chunk) *chunkReader {
	return &chunkReader{chunks: chunks}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if len(r.chunks) == 0 {
				return 0, io.EOF
			}
			f, err := os.Open(r.chunks[0].Path)
			if err != nil {
				return 0, fmt.Errorf("open chunk %d: %w", r.chunks[0].Index, err)
			}
			r.current = f
			r.chunks = r.chunks[1:]
		}

		n, err := r.current.Read(p)
		if errors.Is(err, io.EOF) {
			r.current.Close()
			r.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *chunkReader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
