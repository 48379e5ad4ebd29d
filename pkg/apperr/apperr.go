// Package apperr defines the error kinds the storage core raises and the
// HTTP statuses handlers map them to
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication required")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrGone       = errors.New("gone")
	ErrIntegrity  = errors.New("integrity check failed")
	ErrFormat     = errors.New("bad blob format")
	ErrConfig     = errors.New("bad configuration")
	ErrConflict   = errors.New("conflict")
	ErrTooLarge   = errors.New("payload too large")
	ErrInfra      = errors.New("infrastructure error")
)

// QuotaExceeded carries the numbers the client needs to show a meaningful
// "disk full" message. Always maps to 413.
type QuotaExceeded struct {
	UsedBytes  int64
	QuotaBytes int64
	Requested  int64
}

func (q *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded: used %d of %d, requested %d more", q.UsedBytes, q.QuotaBytes, q.Requested)
}

func (q *QuotaExceeded) Available() int64 {
	if q.UsedBytes >= q.QuotaBytes {
		return 0
	}
	return q.QuotaBytes - q.UsedBytes
}

// Status returns the HTTP status an error kind maps to. Unknown errors are
// treated as infrastructure failures.
func Status(err error) int {
	var q *QuotaExceeded
	if errors.As(err, &q) {
		return http.StatusRequestEntityTooLarge
	}

	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrGone):
		return http.StatusGone
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
