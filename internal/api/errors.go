package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/samcharles93/seremi/pkg/tia"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// statusFor maps decoder and request errors to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, tia.ErrIndex):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, tia.ErrFormat), errors.Is(err, tia.ErrUnsupportedType):
		return http.StatusUnprocessableEntity, "decode_error"
	case errors.Is(err, tia.ErrClosed):
		return http.StatusGone, "closed_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
