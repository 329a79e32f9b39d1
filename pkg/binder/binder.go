package binder

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// CustomBinder binds path and query parameters for every method and decodes
// the body only when it is JSON. Raw bodies (chunk payloads) are left
// untouched for the handler to stream.
type CustomBinder struct {
	echo.DefaultBinder
}

func NewCustomBinder() *CustomBinder {
	return &CustomBinder{}
}

func (b *CustomBinder) Bind(i any, c echo.Context) error {
	if err := b.BindPathParams(c, i); err != nil {
		return err
	}

	if err := b.BindQueryParams(c, i); err != nil {
		return err
	}

	req := c.Request()
	if req.ContentLength == 0 {
		return nil
	}

	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return b.BindBody(c, i)
	}

	return nil
}
