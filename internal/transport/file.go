package transport

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/pkg/response"
)

type ServeFileRequest struct {
	Filename string `param:"filename"`
}

func (h *Handler) ServeFile(c echo.Context) error {
	var req ServeFileRequest
	if err := c.Bind(&req); err != nil {
		return response.FromError(c.Response(), http.StatusBadRequest, err)
	}

	// Echo leaves params escaped when the request path needed RawPath.
	filename := req.Filename
	if c.Request().URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(filename); err == nil {
			filename = unescaped
		}
	}

	file, err := h.svc.ServeFile(c.Request().Context(), filename)
	if err != nil {
		return response.FromError(c.Response(), http.StatusInternalServerError, err)
	}
	defer file.Content.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderXContentTypeOptions, "nosniff")
	if file.Attachment {
		name := file.Filename
		if name == "" {
			name = filename
		}
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
		if disposition == "" {
			disposition = "attachment"
		}
		header.Set(echo.HeaderContentDisposition, disposition)
	}
	if file.Size.Valid {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(file.Size.Int64, 10))
	}
	return c.Stream(http.StatusOK, file.MimeType, file.Content)
}
