package transport

import (
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/internal/model"
)

// bindAndValidate binds req and validates it. Bind failures are reported as
// validation errors so that clients always get a coded error.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return model.ErrValidation.Fmt(fmt.Sprint(httpErr.Message))
		}
		return model.ErrValidation.Fmt(err.Error())
	}

	return c.Validate(req)
}
