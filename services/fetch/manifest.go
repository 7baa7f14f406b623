package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// RunManifest is the YAML record of one run.
type RunManifest struct {
	Version    string    `yaml:"version"`
	FinishedAt time.Time `yaml:"finished_at"`
	Summary    Summary   `yaml:"summary"`
	Outcomes   []Outcome `yaml:"outcomes"`
}

// ManifestRecorder collects outcomes and writes them to Path when the run finishes.
type ManifestRecorder struct {
	Path string
	Now  func() time.Time

	mu       sync.Mutex
	outcomes []Outcome
}

func NewManifestRecorder(path string) *ManifestRecorder {
	return &ManifestRecorder{Path: path, Now: time.Now}
}

func (m *ManifestRecorder) Observe(_ context.Context, o Outcome) error {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, o)
	m.mu.Unlock()
	return nil
}

func (m *ManifestRecorder) Finish(_ context.Context, s Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	data, err := yaml.Marshal(RunManifest{
		Version:    "1",
		FinishedAt: now().UTC().Truncate(time.Second),
		Summary:    s,
		Outcomes:   m.outcomes,
	})
	if err != nil {
		return fmt.Errorf("marshal run manifest: %w", err)
	}

	if dir := filepath.Dir(m.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create manifest dir: %w", err)
		}
	}
	if err := os.WriteFile(m.Path, data, 0o644); err != nil {
		return fmt.Errorf("write run manifest: %w", err)
	}
	return nil
}

// ReadRunManifest loads a manifest written by ManifestRecorder.
func ReadRunManifest(path string) (*RunManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run manifest: %w", err)
	}
	var m RunManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal run manifest: %w", err)
	}
	return &m, nil
}
