package metrics

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the registry in the Prometheus text format. A nil registry
// means metrics are disabled and the route answers 404.
func Handler(registry *Registry) echo.HandlerFunc {
	if registry == nil {
		return func(c echo.Context) error {
			return echo.ErrNotFound
		}
	}

	return echo.WrapHandler(promhttp.HandlerFor(registry.GetRegistry(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

// BasicAuth guards the metrics route when both credentials are configured.
func BasicAuth(username, password string) []echo.MiddlewareFunc {
	if username == "" || password == "" {
		return nil
	}

	return []echo.MiddlewareFunc{middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "Metrics",
		Validator: func(user, pass string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1 &&
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1, nil
		},
	})}
}
