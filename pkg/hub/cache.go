package hub

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	hfhub "github.com/cozy-creator/hf-hub/hub"
)

// Cache resolves repository files to paths inside a local Hugging Face cache. A file already cached at the
// configured revision is not downloaded again.
//
// The hf-hub client reads the registry endpoint and access token from HF_ENDPOINT and HF_TOKEN.
type Cache struct {
	client   *hfhub.Client
	dir      string
	revision string
}

// NewCache returns a Cache rooted at dir, defaulting to <user cache dir>/hubfetch.
func NewCache(dir, revision string) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, "hubfetch")
	}
	revision = strings.TrimSpace(revision)
	if revision == "" {
		revision = DefaultRevision
	}

	return &Cache{
		client:   hfhub.DefaultClient().WithCacheDir(dir),
		dir:      dir,
		revision: revision,
	}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Revision returns the branch, tag or commit files are resolved against.
func (c *Cache) Revision() string {
	return c.revision
}

// Download returns a local path holding the bytes of filename in repoID.
func (c *Cache) Download(ctx context.Context, kind Kind, repoID, filename string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", kind)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	repo := hfhub.NewRepo(repoID).WithType(string(kind)).WithRevision(c.revision)
	file := repo.File(strings.TrimLeft(filename, "/")).WithSubFolder("")

	path, err := c.client.FileDownload(file, false, false)
	if err != nil {
		return "", fmt.Errorf("download %s from %s: %w", filename, repoID, err)
	}
	return path, nil
}
