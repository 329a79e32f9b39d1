package service

import (
	"context"
	"fmt"

	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/model"
)

type ListUploadsParams struct {
	model.PaginationParams
}

// ListUploads pages over the upload journal, newest first.
func (s *Service) ListUploads(ctx context.Context, params ListUploadsParams) (model.PaginateResult[db.Upload], error) {
	uploads, err := s.storage.ListUploads(ctx, db.ListUploadsParams{
		Limit:  int64(params.GetLimit()),
		Offset: int64(params.Offset()),
	})
	if err != nil {
		return model.PaginateResult[db.Upload]{}, fmt.Errorf("list uploads: %w", err)
	}

	total, err := s.storage.CountUploads(ctx)
	if err != nil {
		return model.PaginateResult[db.Upload]{}, fmt.Errorf("count uploads: %w", err)
	}

	return model.PaginateResult[db.Upload]{
		PageParams: params.PaginationParams,
		Data:       uploads,
		Total:      total,
	}, nil
}
