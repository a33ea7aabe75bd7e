package api

import (
	"errors"
	"fmt"
	"net/http"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

// IsStatus reports whether err is an ApiError with the given status code.
func IsStatus(err error, statusCode int) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == statusCode
	}
	return false
}

func newApiError(statusCode int, message string) *ApiError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
	}
}
