package overlay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliskhannn/bg-remover/internal/errs"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte("tile"))
	}))
	defer srv.Close()

	data, err := NewSource(srv.URL, nil).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("tile"), data)
}

func TestFetchFailures(t *testing.T) {
	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer empty.Close()

	_, err := NewSource(notFound.URL, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrUpstream)

	_, err = NewSource(empty.URL, nil).Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrUpstream)

	_, err = NewSource("", nil).Fetch(context.Background())
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}
