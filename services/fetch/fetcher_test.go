package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hubfetch/pkg/hub"
)

func newHubClient(t *testing.T, srv *httptest.Server) *hub.Client {
	t.Helper()
	c, err := hub.NewClient(hub.Options{Endpoint: srv.URL})
	require.NoError(t, err)
	return c
}

func TestDirectFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/datasets/org/foo/resolve/main/foo.yaml":
			_, _ = w.Write([]byte("name: foo\n"))
		case "/datasets/org/foo/resolve/main/moved.yaml":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := DirectFetcher{Hub: newHubClient(t, srv)}
	ctx := context.Background()

	body, err := f.Fetch(ctx, hub.KindDataset, "org/foo", "foo.yaml")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "name: foo\n", string(data))

	_, err = f.Fetch(ctx, hub.KindDataset, "org/foo", "stats.yaml")
	var unavailable *UnavailableError
	require.True(t, errors.As(err, &unavailable), "expected UnavailableError, got %v", err)
	assert.Equal(t, http.StatusNotFound, unavailable.StatusCode)
	assert.Contains(t, err.Error(), "404")

	// Only 200 counts as success.
	_, err = f.Fetch(ctx, hub.KindDataset, "org/foo", "moved.yaml")
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, http.StatusNoContent, unavailable.StatusCode)
}

func TestDirectFetcherTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := newHubClient(t, srv)
	srv.Close()

	_, err := DirectFetcher{Hub: client}.Fetch(context.Background(), hub.KindDataset, "org/foo", "stats.yaml")
	require.Error(t, err)
	var unavailable *UnavailableError
	assert.False(t, errors.As(err, &unavailable))
}

type fakeDownloader struct {
	dir     string
	content map[string]string
	fail    map[string]error
}

func (d *fakeDownloader) Download(_ context.Context, _ hub.Kind, _ string, filename string) (string, error) {
	if err := d.fail[filename]; err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, "blob-"+filename)
	if err := os.WriteFile(path, []byte(d.content[filename]), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func TestCacheFetcher(t *testing.T) {
	notFound := &hub.StatusError{Method: http.MethodHead, URL: "x", StatusCode: http.StatusNotFound}
	d := &fakeDownloader{
		dir:     t.TempDir(),
		content: map[string]string{"model.safetensors": "weights"},
		fail:    map[string]error{"config.json": notFound},
	}
	f := CacheFetcher{Cache: d}

	body, err := f.Fetch(context.Background(), hub.KindModel, "org/m-d", "model.safetensors")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	body.Close()
	assert.Equal(t, "weights", string(data))

	// Status failures from the cache are plain errors, never soft warnings.
	_, err = f.Fetch(context.Background(), hub.KindModel, "org/m-d", "config.json")
	require.ErrorIs(t, err, notFound)
	var unavailable *UnavailableError
	assert.False(t, errors.As(err, &unavailable))
}
