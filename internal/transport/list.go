package transport

import (
	"net/http"
	"time"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/internal/db"
	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/internal/service"
	"github.com/beanbocchi/parcel/pkg/response"
)

type ListUploadsRequest struct {
	model.PaginationParams
}

type UploadDTO struct {
	ID             string      `json:"id"`
	Filename       string      `json:"filename"`
	Status         string      `json:"status"`
	DeclaredSize   null.Int64  `json:"declaredSize"`
	MimeType       null.String `json:"mimeType"`
	StoredFilename null.String `json:"storedFilename"`
	URL            null.String `json:"url"`
	Size           null.Int64  `json:"size"`
	Hash           null.String `json:"hash"`
	ChunkCount     null.Int64  `json:"chunkCount"`
	CreatedAt      time.Time   `json:"createdAt"`
	CompletedAt    null.Time   `json:"completedAt"`
}

func (h *Handler) toUploadDTO(u db.Upload) UploadDTO {
	dto := UploadDTO{
		ID:             u.ID,
		Filename:       u.Filename,
		Status:         u.Status,
		DeclaredSize:   null.IntFromPtr(u.DeclaredSize),
		MimeType:       null.StringFromPtr(u.MimeType),
		StoredFilename: null.StringFromPtr(u.StoredFilename),
		Size:           null.IntFromPtr(u.FileSize),
		Hash:           null.StringFromPtr(u.FileHash),
		ChunkCount:     null.IntFromPtr(u.ChunkCount),
		CreatedAt:      u.CreatedAt,
		CompletedAt:    null.TimeFromPtr(u.CompletedAt),
	}
	if u.StoredFilename != nil {
		dto.URL = null.StringFrom(h.svc.FileURL(*u.StoredFilename))
	}
	return dto
}

func (h *Handler) ListUploads(c echo.Context) error {
	var req ListUploadsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	uploads, err := h.svc.ListUploads(c.Request().Context(), service.ListUploadsParams{
		PaginationParams: req.PaginationParams,
	})
	if err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromDTO(c.Response(), http.StatusOK, response.FromPaginateResult(uploads, h.toUploadDTO))
}
