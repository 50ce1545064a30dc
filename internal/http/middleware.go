package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/logging"
)

// HeaderUserID carries the authenticated caller. An upstream gateway sets it.
const HeaderUserID = "X-User-ID"

// requestContext copies the request ID and caller into the request context
// so service logs carry them.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = logging.WithRequestID(ctx, id)
			}
			if caller := req.Header.Get(HeaderUserID); caller != "" {
				ctx = logging.WithUserID(ctx, caller)
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// requestLogger logs one line per request with its correlation fields.
func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the logged status is the one the client sees.
				c.Error(err)
			}

			fields := append(logging.ContextFields(c.Request().Context()),
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			logger.Info("http request", fields...)
			return nil
		}
	}
}

// requireCaller rejects requests without the caller identity header.
func requireCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if caller(c) == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, HeaderUserID+" header is required")
		}
		return next(c)
	}
}

func caller(c echo.Context) string {
	return c.Request().Header.Get(HeaderUserID)
}
