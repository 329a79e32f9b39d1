package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/beanbocchi/parcel/internal/client/objectstore"
	"github.com/beanbocchi/parcel/internal/model"
)

const defaultMimeType = "application/octet-stream"

type ServedFile struct {
	Content  io.ReadCloser
	MimeType string
	Size     null.Int64
	// Filename is the name the client uploaded under, when known.
	Filename string
	// Attachment is set for content a browser could execute, such as HTML or
	// SVG. Those must never render inline from the API's origin.
	Attachment bool
}

// inlineMediaTypes are rendered without running script.
var inlineMediaTypes = map[string]bool{
	"text/plain":               true,
	"text/csv":                 true,
	"text/markdown":            true,
	"application/json":         true,
	"application/pdf":          true,
	"application/octet-stream": true,
}

func servesInline(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	if inlineMediaTypes[mediaType] {
		return true
	}
	kind, _, _ := strings.Cut(mediaType, "/")
	switch kind {
	case "image":
		return mediaType != "image/svg+xml"
	case "audio", "video":
		return true
	}
	return false
}

// ServeFile opens a stored artifact. The name is an opaque key: anything that
// is not a single path segment is reported as not found.
func (s *Service) ServeFile(ctx context.Context, storedFilename string) (*ServedFile, error) {
	if !validStoredFilename(storedFilename) {
		return nil, model.ErrFileNotFound.Fmt(storedFilename)
	}

	content, err := s.objectStore.Download(ctx, storedFilename)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, model.ErrFileNotFound.Fmt(storedFilename)
		}
		return nil, model.ErrStorage.Fmt(err)
	}

	file := &ServedFile{Content: content, MimeType: defaultMimeType}

	record, err := s.storage.GetUploadByStoredFilename(ctx, &storedFilename)
	switch {
	case err == nil:
		if record.MimeType != nil && *record.MimeType != "" {
			file.MimeType = *record.MimeType
		}
		file.Size = null.IntFromPtr(record.FileSize)
		file.Filename = record.Filename
	case !errors.Is(err, sql.ErrNoRows):
		slog.Warn("failed to read upload journal", "storedFilename", storedFilename, "error", err)
	}

	file.Attachment = !servesInline(file.MimeType)
	return file, nil
}
