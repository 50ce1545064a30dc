package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questboard/internal/domain"
)

// KindUnauthenticated is reported when the caller identity header is missing.
const KindUnauthenticated = "Unauthenticated"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error kind and carries a human-readable message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case domain.KindNotFound, domain.KindUserNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState, domain.KindFull, domain.KindAlreadyMember, domain.KindAlreadyCompleted:
		return http.StatusConflict
	case domain.KindInvalidAmount, domain.KindInvalid:
		return http.StatusBadRequest
	case domain.KindDownstreamUnavailable:
		return http.StatusBadGateway
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders domain errors and echo errors as ErrorBody.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			kind    string
			message string
			status  int
			he      *echo.HTTPError
		)
		switch {
		case errors.As(err, &he):
			status = he.Code
			message = http.StatusText(status)
			if m, ok := he.Message.(string); ok {
				message = m
			}
			kind = kindForStatus(status)
		default:
			kind = domain.KindOf(err)
			status = StatusFor(kind)
			message = err.Error()
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
			if kind == domain.KindInternal {
				message = "internal error"
			}
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
		}
		if writeErr != nil {
			logger.Warn("write error response", zap.Error(writeErr))
		}
	}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusForbidden:
		return domain.KindForbidden
	case http.StatusConflict:
		return domain.KindInvalidState
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return domain.KindInvalid
	case http.StatusMethodNotAllowed:
		return "MethodNotAllowed"
	default:
		return domain.KindInternal
	}
}

// requestValidator adapts validator/v10 to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

// Validate returns a 400 HTTPError naming the first failed field.
func (rv *requestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return echo.NewHTTPError(http.StatusBadRequest, "invalid "+fe.Field()+": failed "+fe.Tag())
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// bindAndValidate decodes the request body into dst and validates it.
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(dst)
}
