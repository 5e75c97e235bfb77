package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dukerupert/tabletill/internal/domain"
	"github.com/dukerupert/tabletill/internal/middleware"
)

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request. Fields is set for validation
// failures and maps field paths to messages.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.EGONE:
		return http.StatusGone // 410
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// httpStatusToErrorCode maps statuses produced by echo itself (bad JSON,
// unknown routes, wrong methods) back onto domain codes.
func httpStatusToErrorCode(status int) string {
	switch {
	case status == http.StatusNotFound:
		return domain.ENOTFOUND
	case status == http.StatusTooManyRequests:
		return domain.ERATELIMIT
	case status >= 500:
		return domain.EINTERNAL
	default:
		return domain.EINVALID
	}
}

// Describe converts err into a status and response body.
func Describe(err error) (int, ErrorBody) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Code:    domain.EINVALID,
			Message: "Validation failed",
			Fields:  ve.Fields,
		}}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		} else if he.Message != nil {
			message = fmt.Sprint(he.Message)
		}
		return he.Code, ErrorBody{Error: ErrorDetail{
			Code:    httpStatusToErrorCode(he.Code),
			Message: message,
		}}
	}

	code := domain.ErrorCode(err)
	return ErrorCodeToHTTPStatus(code), ErrorBody{Error: ErrorDetail{
		Code:    code,
		Message: domain.ErrorMessage(err),
	}}
}

// HTTPErrorHandler renders handler errors as JSON and logs them. Server
// errors are logged at error level, client errors at info.
func HTTPErrorHandler(logger *zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Describe(err)

		log := middleware.GetLogger(c.Request().Context(), logger)
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		}
		event.
			Err(err).
			Str("code", body.Error.Code).
			Str("op", domain.ErrorOp(err)).
			Int("status", status).
			Msg("request failed")

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to write error response")
		}
	}
}
