package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/smithy-go/ptr"
	"github.com/google/uuid"
	"github.com/guregu/null/v6"

	"github.com/beanbocchi/parcel/internal/client/scratch"
	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/pkg/validator"
)

type InitUploadParams struct {
	Filename string      `validate:"required,filename"`
	Size     null.Int64  `validate:"omitnil,gte=0"`
	MimeType null.String `validate:"omitnil,mediatype"`
}

type InitUploadResult struct {
	UploadID string
}

// InitUpload allocates a new session and records it in the journal.
func (s *Service) InitUpload(ctx context.Context, params InitUploadParams) (_ InitUploadResult, err error) {
	defer func() { s.metrics.RecordUploadOperation("init", err) }()

	if err := validator.Validate(&params); err != nil {
		return InitUploadResult{}, err
	}

	filename, err := sanitizeFilename(params.Filename)
	if err != nil {
		return InitUploadResult{}, err
	}

	uploadID := uuid.NewString()
	if err := s.scratch.Create(ctx, uploadID); err != nil {
		return InitUploadResult{}, model.ErrStorage.Fmt(err)
	}

	now := time.Now()
	if _, err := s.storage.CreateUpload(ctx, db.CreateUploadParams{
		ID:           uploadID,
		Filename:     filename,
		DeclaredSize: params.Size.Ptr(),
		MimeType:     params.MimeType.Ptr(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		if rmErr := s.scratch.Remove(ctx, uploadID); rmErr != nil {
			slog.Warn("failed to roll back session dir", "uploadId", uploadID, "error", rmErr)
		}
		return InitUploadResult{}, model.ErrStorage.Fmt(fmt.Errorf("create upload: %w", err))
	}

	slog.Debug("upload initialized", "uploadId", uploadID, "filename", filename)
	return InitUploadResult{UploadID: uploadID}, nil
}

type ReceiveChunkParams struct {
	UploadID   string `validate:"required,uuid"`
	ChunkIndex int    `validate:"gte=0"`
	Content    io.Reader
}

// ReceiveChunk stores one chunk, replacing any chunk previously stored at the same index.
func (s *Service) ReceiveChunk(ctx context.Context, params ReceiveChunkParams) (err error) {
	defer func() { s.metrics.RecordUploadOperation("chunk", err) }()

	if err := validator.Validate(&params); err != nil {
		return err
	}

	n, err := s.scratch.WriteChunk(ctx, params.UploadID, params.ChunkIndex, params.Content, s.maxChunkSize)
	if err != nil {
		return s.scratchError(params.UploadID, err)
	}

	s.metrics.AddChunkBytes(n)
	return nil
}

type UploadStatusResult struct {
	UploadID string
	Chunks   []int
}

// UploadStatus lists the committed chunk indices of a live session.
func (s *Service) UploadStatus(ctx context.Context, uploadID string) (UploadStatusResult, error) {
	if err := validateUploadID(uploadID); err != nil {
		return UploadStatusResult{}, err
	}

	chunks, err := s.scratch.Chunks(ctx, uploadID)
	if err != nil {
		return UploadStatusResult{}, s.scratchError(uploadID, err)
	}

	indices := make([]int, 0, len(chunks))
	for _, c := range chunks {
		indices = append(indices, c.Index)
	}
	return UploadStatusResult{UploadID: uploadID, Chunks: indices}, nil
}

// AbortUpload discards a live session and all of its chunks.
func (s *Service) AbortUpload(ctx context.Context, uploadID string) (err error) {
	defer func() { s.metrics.RecordUploadOperation("abort", err) }()

	if err := validateUploadID(uploadID); err != nil {
		return err
	}

	if err := s.scratch.Remove(ctx, uploadID); err != nil {
		return s.scratchError(uploadID, err)
	}

	s.journal(ctx, uploadID, db.UpdateUploadParams{Status: ptr.String(StatusAborted)})
	return nil
}

func validateUploadID(uploadID string) error {
	return validator.Validate(&struct {
		UploadID string `validate:"required,uuid"`
	}{UploadID: uploadID})
}

// scratchError maps scratch store failures onto coded errors.
func (s *Service) scratchError(uploadID string, err error) error {
	switch {
	case errors.Is(err, scratch.ErrSessionNotFound):
		return model.ErrSessionNotFound.Fmt(uploadID)
	case errors.Is(err, scratch.ErrChunkTooLarge):
		return model.ErrPayloadTooLarge.Fmt(s.maxChunkSize)
	case errors.Is(err, scratch.ErrInvalidIndex):
		return model.ErrValidation.Fmt("chunkIndex must be a non-negative integer")
	default:
		return model.ErrStorage.Fmt(err)
	}
}

// journal applies a best-effort update to the upload's journal row. The scratch
// directory is the source of truth, so a failed update is only logged.
func (s *Service) journal(ctx context.Context, uploadID string, params db.UpdateUploadParams) {
	params.ID = uploadID
	params.UpdatedAt = time.Now()
	if err := s.storage.UpdateUpload(ctx, params); err != nil {
		slog.Warn("failed to update upload journal", "uploadId", uploadID, "error", err)
	}
}
