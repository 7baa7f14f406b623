package fetch

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status classifies the result of one artifact attempt or one skipped resource.
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Outcome is reported to observers once per artifact, and once per resource that was skipped before fetching.
type Outcome struct {
	RunID    uuid.UUID `json:"run_id" yaml:"run_id"`
	Pipeline string    `json:"pipeline" yaml:"pipeline"`
	Resource string    `json:"resource" yaml:"resource"`
	Filename string    `json:"filename,omitempty" yaml:"filename,omitempty"`
	// Path is the written file; RelPath is the same path relative to the pipeline base dir.
	Path       string    `json:"path,omitempty" yaml:"path,omitempty"`
	RelPath    string    `json:"rel_path,omitempty" yaml:"rel_path,omitempty"`
	Status     Status    `json:"status" yaml:"status"`
	StatusCode int       `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Size       int64     `json:"size,omitempty" yaml:"size,omitempty"`
	SHA256     string    `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	At         time.Time `json:"at" yaml:"at"`
}

// Observer receives outcomes as the run progresses. Errors are logged by the pipeline and never stop it.
type Observer interface {
	Observe(ctx context.Context, o Outcome) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome) error

func (f ObserverFunc) Observe(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}

// Summary counts what a run did.
type Summary struct {
	RunID      uuid.UUID `json:"run_id" yaml:"run_id"`
	Pipeline   string    `json:"pipeline" yaml:"pipeline"`
	Listed     int       `json:"listed" yaml:"listed"`
	Selected   int       `json:"selected" yaml:"selected"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Downloaded int       `json:"downloaded" yaml:"downloaded"`
	Warned     int       `json:"warned" yaml:"warned"`
	Failed     int       `json:"failed" yaml:"failed"`
	Bytes      int64     `json:"bytes" yaml:"bytes"`
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusSuccess:
		s.Downloaded++
		s.Bytes += o.Size
	case StatusWarning:
		s.Warned++
	case StatusError:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}
