package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/orms/orms/pkg/apperrors"
)

// ErrorDetail is the wire form of an application error.
type ErrorDetail struct {
	Kind      apperrors.Kind `json:"kind"`
	Entity    string         `json:"entity,omitempty"`
	Field     string         `json:"field,omitempty"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
}

type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindReferentialConflict, apperrors.KindUniquenessConflict:
		return http.StatusConflict
	case apperrors.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func kindForStatus(code int) apperrors.Kind {
	switch {
	case code == http.StatusNotFound:
		return apperrors.KindNotFound
	case code == http.StatusConflict:
		return apperrors.KindReferentialConflict
	case code >= 400 && code < 500:
		return apperrors.KindValidation
	default:
		return apperrors.KindInternal
	}
}

// ErrorHandler renders every error returned by a handler as
// {"error": {...}}. Causes of internal errors are logged, never sent.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		rid, _ := c.Get("request_id").(string)

		var (
			status int
			detail ErrorDetail
		)
		var he *echo.HTTPError
		if errors.As(err, &he) && !isAppError(err) {
			status = he.Code
			detail = ErrorDetail{Kind: kindForStatus(he.Code), Message: fmt.Sprint(he.Message)}
			if status >= 500 {
				detail.Message = http.StatusText(status)
			}
		} else {
			appErr := apperrors.As(err)
			status = StatusFor(appErr.Kind)
			detail = ErrorDetail{
				Kind:    appErr.Kind,
				Entity:  appErr.Entity,
				Field:   appErr.Field,
				Message: appErr.Message,
			}
		}
		detail.RequestID = rid

		if status >= 500 {
			logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, ErrorBody{Error: detail})
		}
		if err != nil {
			logger.Error().Err(err).Str("request_id", rid).Msg("write error response")
		}
	}
}

func isAppError(err error) bool {
	var e *apperrors.Error
	return errors.As(err, &e)
}
