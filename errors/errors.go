package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrRoutingMiss is never returned to callers, the target identity holds no live connection.
	ErrRoutingMiss = fmt.Errorf("identity is not connected")
	// ErrPersistence wraps any failure of the durable store.
	ErrPersistence    = fmt.Errorf("persistence failure")
	ErrMalformedEvent = fmt.Errorf("malformed event")
	ErrStaleHandle    = fmt.Errorf("connection handle superseded")
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrNotRegistered  = fmt.Errorf("connection is not registered")
	ErrInvalidImage   = fmt.Errorf("inline image is not a supported image")
	ErrSinkFull       = fmt.Errorf("connection buffer is full")

	ErrMessageNotFound    = fmt.Errorf("message not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUnknownDriver      = fmt.Errorf("unknown storage driver")
)

// HTTPStatus maps a domain error to the status code returned by the HTTP API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrInvalidImage), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
