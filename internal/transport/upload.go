package transport

import (
	"net/http"
	"strconv"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/internal/model"
	"github.com/beanbocchi/parcel/internal/service"
	"github.com/beanbocchi/parcel/pkg/response"
)

type InitUploadRequest struct {
	Filename string      `json:"filename" validate:"required,filename"`
	Size     null.Int64  `json:"size" validate:"omitnil,gte=0"`
	MimeType null.String `json:"mimeType" validate:"omitnil,mediatype"`
}

type InitUploadResponse struct {
	response.CommonResponse
	UploadID string `json:"uploadId"`
}

func (h *Handler) InitUpload(c echo.Context) error {
	var req InitUploadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	res, err := h.svc.InitUpload(c.Request().Context(), service.InitUploadParams{
		Filename: req.Filename,
		Size:     req.Size,
		MimeType: req.MimeType,
	})
	if err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromDTO(c.Response(), http.StatusOK, InitUploadResponse{
		CommonResponse: response.OK(),
		UploadID:       res.UploadID,
	})
}

type UploadChunkRequest struct {
	UploadID   string `query:"uploadId" validate:"required"`
	ChunkIndex string `query:"chunkIndex" validate:"required,number"`
}

// UploadChunk streams the raw request body into the session as one chunk.
func (h *Handler) UploadChunk(c echo.Context) error {
	var req UploadChunkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	index, err := strconv.Atoi(req.ChunkIndex)
	if err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, model.ErrValidation.Fmt("chunkIndex must be a non-negative integer"))
	}

	if err := h.svc.ReceiveChunk(c.Request().Context(), service.ReceiveChunkParams{
		UploadID:   req.UploadID,
		ChunkIndex: index,
		Content:    c.Request().Body,
	}); err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromDTO(c.Response(), http.StatusOK, response.OK())
}

type CompleteUploadRequest struct {
	UploadID string `json:"uploadId" validate:"required"`
	Filename string `json:"filename" validate:"required,filename"`
}

type CompleteUploadResponse struct {
	response.CommonResponse
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	MimeType string `json:"mimeType"`
}

func (h *Handler) CompleteUpload(c echo.Context) error {
	var req CompleteUploadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	res, err := h.svc.CompleteUpload(c.Request().Context(), service.CompleteUploadParams{
		UploadID: req.UploadID,
		Filename: req.Filename,
	})
	if err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromDTO(c.Response(), http.StatusOK, CompleteUploadResponse{
		CommonResponse: response.OK(),
		URL:            res.URL,
		Filename:       res.StoredFilename,
		Size:           res.Size,
		Hash:           res.Hash,
		MimeType:       res.MimeType,
	})
}

type UploadStatusRequest struct {
	UploadID string `query:"uploadId" validate:"required"`
}

type UploadStatusResponse struct {
	response.CommonResponse
	UploadID string `json:"uploadId"`
	Chunks   []int  `json:"chunks"`
}

func (h *Handler) UploadStatus(c echo.Context) error {
	var req UploadStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	res, err := h.svc.UploadStatus(c.Request().Context(), req.UploadID)
	if err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromDTO(c.Response(), http.StatusOK, UploadStatusResponse{
		CommonResponse: response.OK(),
		UploadID:       res.UploadID,
		Chunks:         res.Chunks,
	})
}

type AbortUploadRequest struct {
	UploadID string `param:"uploadId" validate:"required"`
}

func (h *Handler) AbortUpload(c echo.Context) error {
	var req AbortUploadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	if err := h.svc.AbortUpload(c.Request().Context(), req.UploadID); err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}

	return response.FromMessage(c.Response(), http.StatusOK, "Upload aborted")
}
