package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ObjectPutter is satisfied by *s3.Client.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// Mirror copies every written artifact to an object store.
type Mirror struct {
	store  ObjectPutter
	bucket string
	prefix string
}

func NewMirror(store ObjectPutter, bucket, prefix string) *Mirror {
	return &Mirror{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for an outcome: <prefix>/<pipeline>/<relpath>.
func (m *Mirror) Key(o Outcome) string {
	return path.Join(m.prefix, o.Pipeline, o.RelPath)
}

func (m *Mirror) Observe(ctx context.Context, o Outcome) error {
	if o.Status != StatusSuccess {
		return nil
	}

	f, err := os.Open(o.Path)
	if err != nil {
		return fmt.Errorf("open %s for mirror: %w", o.Path, err)
	}
	defer f.Close()

	key := m.Key(o)
	if err := m.store.PutObject(ctx, m.bucket, key, f, o.Size, o.SHA256); err != nil {
		return fmt.Errorf("mirror s3://%s/%s: %w", m.bucket, key, err)
	}
	return nil
}
