package transport

import (
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/internal/service"
)

type Handler struct {
	svc *service.Service
}

func SetupRoute(e *echo.Echo, svc *service.Service) {
	h := &Handler{svc: svc}
	api := e.Group("/api")

	api.POST("/upload/init", h.InitUpload)
	api.POST("/upload/chunk", h.UploadChunk)
	api.POST("/upload/complete", h.CompleteUpload)
	api.GET("/upload/status", h.UploadStatus)
	api.DELETE("/upload/:uploadId", h.AbortUpload)

	api.GET("/uploads", h.ListUploads)
	api.GET("/files/:filename", h.ServeFile)
}
