package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrAuth, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrGone, http.StatusGone},
		{ErrConflict, http.StatusConflict},
		{ErrTooLarge, http.StatusRequestEntityTooLarge},
		{ErrIntegrity, http.StatusInternalServerError},
		{ErrFormat, http.StatusInternalServerError},
		{ErrConfig, http.StatusInternalServerError},
		{ErrInfra, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Status(c.err), c.err.Error())
	}
}

func TestStatusUnwrapsChains(t *testing.T) {
	wrapped := fmt.Errorf("%w: folder belongs to another user", ErrForbidden)
	assert.Equal(t, http.StatusForbidden, Status(wrapped))

	deeper := fmt.Errorf("outer context: %w", wrapped)
	assert.Equal(t, http.StatusForbidden, Status(deeper))
}

func TestQuotaExceeded(t *testing.T) {
	q := &QuotaExceeded{UsedBytes: 800, QuotaBytes: 1000, Requested: 500}

	assert.Equal(t, http.StatusRequestEntityTooLarge, Status(q))
	assert.Equal(t, int64(200), q.Available())
	assert.Contains(t, q.Error(), "800")

	over := &QuotaExceeded{UsedBytes: 1200, QuotaBytes: 1000}
	assert.Equal(t, int64(0), over.Available())

	wrapped := fmt.Errorf("ingest: %w", q)
	var out *QuotaExceeded
	assert.True(t, errors.As(wrapped, &out))
	assert.Equal(t, int64(500), out.Requested)
}
