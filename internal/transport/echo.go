package transport

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/beanbocchi/parcel/config"
	"github.com/beanbocchi/parcel/internal/metrics"
	"github.com/beanbocchi/parcel/internal/service"
	"github.com/beanbocchi/parcel/pkg/binder"
	"github.com/beanbocchi/parcel/pkg/response"
	"github.com/beanbocchi/parcel/pkg/validator"
)

// NewEcho creates a new Echo instance. registry may be nil when metrics are disabled.
func NewEcho(cfg *config.Config, svc *service.Service, registry *metrics.Registry) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = &SonicSerializer{}
	e.HTTPErrorHandler = errorHandler

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:     true,
		LogURI:        true,
		LogStatus:     true,
		LogLatency:    true,
		LogError:      true,
		LogRemoteIP:   true,
		HandleError:   true,
		LogValuesFunc: logRequest,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if registry != nil {
		e.Use(metrics.HTTPMetrics(registry, cfg.Metrics.Path))
	}

	// Custom validator & binder
	customVal, err := validator.New()
	if err != nil {
		return nil, err
	}
	e.Validator = customVal
	e.Binder = binder.NewCustomBinder()

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if registry != nil {
		e.GET(cfg.Metrics.Path, metrics.Handler(registry), metrics.BasicAuth(cfg.Metrics.Username, cfg.Metrics.Password)...)
	}

	// Setup routes
	SetupRoute(e, svc)

	return e, nil
}

func logRequest(c echo.Context, v middleware.RequestLoggerValues) error {
	attrs := []slog.Attr{
		slog.String("method", v.Method),
		slog.String("uri", v.URI),
		slog.Int("status", v.Status),
		slog.Duration("latency", v.Latency),
		slog.String("remoteIp", v.RemoteIP),
	}

	level := slog.LevelInfo
	if v.Error != nil {
		attrs = append(attrs, slog.String("error", v.Error.Error()))
		if v.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
	}

	slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
	return nil
}

// errorHandler renders every unhandled error (unknown routes, panics, bind
// failures) with the same envelope as handler errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}

	if wErr := response.FromError(c.Response(), status, err); wErr != nil {
		slog.Error("failed to write error response", "error", wErr)
	}
}
