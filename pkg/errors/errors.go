package errors

import (
	"fmt"
	"net/http"
)

type ApiError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Fields    []any  `json:"fields,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var (
	ErrBadRequest       = func(detail string) *ApiError { return New(http.StatusBadRequest, "Bad Request", detail) }
	ErrNotFound         = func(detail string) *ApiError { return New(http.StatusNotFound, "Not Found", detail) }
	ErrMethodNotAllowed = func(detail string) *ApiError { return New(http.StatusMethodNotAllowed, "Method Not Allowed", detail) }
	ErrConflict         = func(detail string) *ApiError { return New(http.StatusConflict, "Conflict", detail) }
	ErrUnprocessable    = func(detail string) *ApiError {
		return New(http.StatusUnprocessableEntity, "Validation Failed", detail)
	}
	ErrInternalServer = func(detail string) *ApiError {
		return New(http.StatusInternalServerError, "Internal Server Error", detail)
	}
	ErrBadGateway = func(detail string) *ApiError {
		return New(http.StatusBadGateway, "Upstream Fetch Failed", detail)
	}
	ErrLLMProcessing = func(detail string) *ApiError {
		return New(http.StatusInternalServerError, "LLM Processing Failed", detail)
	}
)

func New(code int, message, detail string) *ApiError {
	return &ApiError{
		Code:    code,
		Message: message,
		Detail:  detail,
	}
}

func (e *ApiError) WithRequestID(requestID string) *ApiError {
	e.RequestID = requestID
	return e
}

// WithFields attaches per-field details, e.g. schema violations.
func (e *ApiError) WithFields(fields ...any) *ApiError {
	e.Fields = append(e.Fields, fields...)
	return e
}

func (e *ApiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *ApiError) StatusCode() int {
	return e.Code
}
