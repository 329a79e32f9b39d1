package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// unmatchedEndpoint labels requests that did not hit a registered route.
const unmatchedEndpoint = "unmatched"

// HTTPMetrics returns an echo middleware that records HTTP request metrics.
// Requests to skipPath (the metrics endpoint itself) are not recorded.
func HTTPMetrics(registry *Registry, skipPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if registry == nil || c.Request().URL.Path == skipPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Render the error now so the recorded status is final. The error
				// still bubbles up for outer middleware; the response is committed.
				c.Error(err)
			}

			requestSize := c.Request().ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			registry.RecordHTTPRequest(
				c.Request().Method,
				NormalizeEndpoint(c.Path()),
				strconv.Itoa(c.Response().Status),
				time.Since(start).Seconds(),
				requestSize,
			)
			return err
		}
	}
}

// NormalizeEndpoint maps the matched route template to a metrics label.
// Echo already reports templates such as /api/files/:filename, which keeps
// label cardinality bounded; anything else collapses into one label.
func NormalizeEndpoint(routePath string) string {
	if routePath == "" || routePath == "/*" {
		return unmatchedEndpoint
	}
	return routePath
}
