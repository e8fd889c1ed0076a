package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"malformed", fmt.Errorf("%w: missing receiver", ErrMalformedEvent), http.StatusBadRequest},
		{"bad image", ErrInvalidImage, http.StatusBadRequest},
		{"credentials", ErrInvalidCredentials, http.StatusUnauthorized},
		{"missing message", fmt.Errorf("mark one: %w", ErrMessageNotFound), http.StatusNotFound},
		{"duplicate", ErrUserAlreadyExists, http.StatusConflict},
		{"store", fmt.Errorf("%w: disk full", ErrPersistence), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
