package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"hubfetch/pkg/hub"
)

// Fetcher yields the bytes of one artifact of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, kind hub.Kind, repoID, filename string) (io.ReadCloser, error)
}

// CachedDownloader resolves an artifact to a path in a local hub cache. *hub.Cache implements it.
type CachedDownloader interface {
	Download(ctx context.Context, kind hub.Kind, repoID, filename string) (string, error)
}

// FileGetter builds artifact URLs and retrieves them.
type FileGetter interface {
	FileURL(kind hub.Kind, repoID, filename string) string
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// UnavailableError is a non-200 answer to a direct artifact request. It is reported as a warning, not a failure.
type UnavailableError struct {
	URL        string
	StatusCode int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
}

// CacheFetcher downloads into the hub cache and opens the cached file. Every error it returns is a failure.
type CacheFetcher struct {
	Cache CachedDownloader
}

func (f CacheFetcher) Fetch(ctx context.Context, kind hub.Kind, repoID, filename string) (io.ReadCloser, error) {
	path, err := f.Cache.Download(ctx, kind, repoID, filename)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", filename, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cached %s: %w", filename, err)
	}
	return file, nil
}

// DirectFetcher issues a plain GET against the artifact URL.
type DirectFetcher struct {
	Hub FileGetter
}

func (f DirectFetcher) Fetch(ctx context.Context, kind hub.Kind, repoID, filename string) (io.ReadCloser, error) {
	fileURL := f.Hub.FileURL(kind, repoID, filename)
	resp, err := f.Hub.Get(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", fileURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &UnavailableError{URL: fileURL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
