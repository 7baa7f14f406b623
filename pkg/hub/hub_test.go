package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := NewClient(Options{
		Endpoint: srv.URL,
		Token:    token,
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	cases := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{name: "default", endpoint: ""},
		{name: "trailing slash", endpoint: "https://hub.example.com/"},
		{name: "ftp", endpoint: "ftp://hub.example.com", wantErr: true},
		{name: "no host", endpoint: "https://", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(Options{Endpoint: tc.endpoint})
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestListFollowsPagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/models", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("cursor") {
		case "":
			assert.Equal(t, "polymathic-ai", r.URL.Query().Get("author"))
			assert.Equal(t, "true", r.URL.Query().Get("full"))
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/models?author=polymathic-ai&full=true&cursor=2>; rel="next"`, srv.URL))
			_ = json.NewEncoder(w).Encode([]Resource{{ID: "polymathic-ai/b-one"}, {ID: "polymathic-ai/a-two"}})
		case "2":
			_ = json.NewEncoder(w).Encode([]Resource{{ModelID: "polymathic-ai/c-three"}})
		default:
			http.Error(w, "unexpected cursor", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret")
	resources, err := c.List(context.Background(), KindModel, "polymathic-ai")
	require.NoError(t, err)

	var ids []string
	for _, r := range resources {
		ids = append(ids, r.Identifier())
	}
	assert.Equal(t, []string{"polymathic-ai/b-one", "polymathic-ai/a-two", "polymathic-ai/c-three"}, ids)
}

func TestListDatasetsPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/datasets", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":"polymathic-ai/shear_flow"}]`))
	}))
	defer srv.Close()

	resources, err := newTestClient(t, srv, "").List(context.Background(), KindDataset, "polymathic-ai")
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "shear_flow", resources[0].Name())
}

func TestListStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "").List(context.Background(), KindModel, "polymathic-ai")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr), "expected StatusError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestListRejectsUnknownKind(t *testing.T) {
	c, err := NewClient(Options{})
	require.NoError(t, err)
	_, err = c.List(context.Background(), Kind("space"), "x")
	require.Error(t, err)
}

func TestNextLink(t *testing.T) {
	base, _ := url.Parse("https://hub.example.com/api/models?author=x")
	cases := []struct {
		name   string
		header []string
		want   string
	}{
		{name: "none", want: ""},
		{name: "absolute", header: []string{`<https://hub.example.com/api/models?cursor=abc>; rel="next"`}, want: "https://hub.example.com/api/models?cursor=abc"},
		{name: "relative", header: []string{`</api/models?cursor=2>; rel=next`}, want: "https://hub.example.com/api/models?cursor=2"},
		{name: "prev only", header: []string{`</api/models?cursor=1>; rel="prev"`}, want: ""},
		{name: "multiple", header: []string{`</p1>; rel="prev", </p3>; rel="next"`}, want: "https://hub.example.com/p3"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tc.header {
				h.Add("Link", v)
			}
			got, err := nextLink(h, base)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFileURL(t *testing.T) {
	c, err := NewClient(Options{Endpoint: "https://hub.example.com", Revision: "v1"})
	require.NoError(t, err)

	assert.Equal(t,
		"https://hub.example.com/polymathic-ai/UNetConvNext-shear_flow/resolve/v1/config.json",
		c.FileURL(KindModel, "polymathic-ai/UNetConvNext-shear_flow", "config.json"))
	assert.Equal(t,
		"https://hub.example.com/datasets/polymathic-ai/shear_flow/resolve/v1/stats.yaml",
		c.FileURL(KindDataset, "polymathic-ai/shear_flow", "stats.yaml"))
}

func TestListStopsOnPaginationLoop(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("cursor") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/models?cursor=a>; rel="next"`, srv.URL))
		} else {
			// Echo the cursor that was just served.
			w.Header().Set("Link", fmt.Sprintf(`<%s%s>; rel="next"`, srv.URL, r.URL.RequestURI()))
		}
		_ = json.NewEncoder(w).Encode([]Resource{{ID: "polymathic-ai/m-d"}})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, "").List(context.Background(), KindModel, "polymathic-ai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pagination loop at")
	assert.EqualValues(t, 2, hits.Load())
}

func TestNewCacheDefaults(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCache(dir, " ")
	require.NoError(t, err)
	assert.Equal(t, dir, c.Dir())
	assert.Equal(t, DefaultRevision, c.Revision())

	c, err = NewCache("", "v2")
	require.NoError(t, err)
	assert.Equal(t, "hubfetch", filepath.Base(c.Dir()))
	assert.Equal(t, "v2", c.Revision())
}

func TestCacheDownloadChecksInputFirst(t *testing.T) {
	c, err := NewCache(t.TempDir(), "")
	require.NoError(t, err)

	_, err = c.Download(context.Background(), Kind("space"), "org/m-d", "config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource kind")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Download(ctx, KindModel, "org/m-d", "config.json")
	require.ErrorIs(t, err, context.Canceled)
}
