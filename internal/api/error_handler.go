package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
)

const (
	maskedStorageMessage  = "A database error occurred. Please try again later."
	upstreamMessage       = "Unable to fetch location data. Please try again later."
	invalidIDMessage      = "Resource not found"
	validationMessage     = "Validation failed"
	internalServerMessage = "Internal Server Error"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	Message string                  `json:"message"`
	Details []domain.FieldViolation `json:"details,omitempty"`
	Stack   string                  `json:"stack,omitempty"`
}

type resolved struct {
	status   int
	category string
	message  string
	details  []domain.FieldViolation
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps tagged domain errors to status, category and message by Kind.
//   - Falls back to the status code of *echo.HTTPError, then to 500.
//   - Masks storage and unknown failures in production.
//   - Logs every error response; stacks are logged and rendered outside production only.
func NewHTTPErrorHandler(log zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		r := resolveError(err, production)

		evt := log.Warn()
		if r.status >= http.StatusInternalServerError {
			evt = log.Error()
		}
		if !production {
			evt = evt.Stack()
		}
		evt.Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Str("request_id", requestID(c)).
			Int("status", r.status).
			Str("category", r.category).
			Msg("request failed")

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(r.status)
			return
		}

		body := errorResponse{
			Success: false,
			Error:   r.category,
			Message: r.message,
			Details: r.details,
		}
		if !production {
			body.Stack = stackOf(err)
		}
		_ = c.JSON(r.status, body)
	}
}

func resolveError(err error, production bool) resolved {
	var de *domain.Error
	if errors.As(err, &de) {
		return resolveTagged(de, production)
	}

	// Echo's own errors (router 404, 405, body limit, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprint(he.Message)
		if he.Message == nil || msg == "" {
			msg = http.StatusText(he.Code)
		}
		return resolved{status: he.Code, category: statusCategory(he.Code), message: msg}
	}

	msg := err.Error()
	if msg == "" || production {
		msg = internalServerMessage
	}
	return resolved{status: http.StatusInternalServerError, category: "Error", message: msg}
}

func resolveTagged(de *domain.Error, production bool) resolved {
	switch de.Kind {
	case domain.KindBadRequest, domain.KindTimeout:
		return resolved{status: http.StatusBadRequest, category: "Bad Request", message: de.Message}
	case domain.KindValidation:
		return resolved{status: http.StatusBadRequest, category: "Validation Error", message: validationMessage, details: de.Fields}
	case domain.KindInvalidID:
		return resolved{status: http.StatusNotFound, category: "Not Found", message: invalidIDMessage}
	case domain.KindNotFound:
		return resolved{status: http.StatusNotFound, category: "Not Found", message: de.Message}
	case domain.KindConflict:
		return resolved{status: http.StatusConflict, category: "Duplicate Entry", message: de.Message}
	case domain.KindStorage:
		msg := de.Message
		if production {
			msg = maskedStorageMessage
		}
		return resolved{status: http.StatusInternalServerError, category: "Database Error", message: msg}
	case domain.KindUpstream:
		return resolved{status: http.StatusServiceUnavailable, category: "External Service Error", message: upstreamMessage}
	default:
		msg := de.Message
		if msg == "" {
			msg = internalServerMessage
		}
		return resolved{status: http.StatusInternalServerError, category: "Server Error", message: msg}
	}
}

func statusCategory(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	default:
		return "Error"
	}
}

func stackOf(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		if st := de.StackTrace(); len(st) > 0 {
			return fmt.Sprintf("%s%+v", err.Error(), st)
		}
	}
	return err.Error()
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
