package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hubfetch/pkg/hub"
)

const tracerName = "hubfetch/services/fetch"

// Lister enumerates resources of one kind owned by author.
type Lister interface {
	List(ctx context.Context, kind hub.Kind, author string) ([]hub.Resource, error)
}

// Finisher is implemented by observers that flush state once the run is over.
type Finisher interface {
	Finish(ctx context.Context, s Summary) error
}

// Config describes one pipeline run.
type Config struct {
	// Name labels logs, metrics and outcomes. Defaults to the plural kind.
	Name      string
	Kind      hub.Kind
	Author    string
	BaseDir   string
	Filenames []string
	// Select is optional; nil keeps every listed resource.
	Select SelectFunc
	Derive DeriveFunc

	Lister    Lister
	Fetcher   Fetcher
	Observers []Observer

	Logger *zerolog.Logger
	Now    func() time.Time
	RunID  uuid.UUID
}

func (cfg *Config) setDefaults() error {
	if !cfg.Kind.Valid() {
		return fmt.Errorf("unknown resource kind %q", cfg.Kind)
	}
	if cfg.Lister == nil {
		return errors.New("lister is required")
	}
	if cfg.Fetcher == nil {
		return errors.New("fetcher is required")
	}
	if cfg.Derive == nil {
		return errors.New("path deriver is required")
	}
	if len(cfg.Filenames) == 0 {
		return errors.New("at least one filename is required")
	}
	if cfg.Name == "" {
		cfg.Name = string(cfg.Kind) + "s"
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = "."
	}
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	return nil
}

// Run lists resources, derives a target directory for each selected one and writes every configured artifact into
// it. Only configuration and listing failures are returned; per-resource and per-artifact failures are logged,
// reported to observers and counted in the Summary.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	if err := cfg.setDefaults(); err != nil {
		return Summary{}, fmt.Errorf("configure pipeline: %w", err)
	}

	r := &runner{cfg: cfg, log: cfg.Logger.With().Str("pipeline", cfg.Name).Logger(), tracer: otel.Tracer(tracerName)}
	r.summary = Summary{RunID: cfg.RunID, Pipeline: cfg.Name}

	resources, err := cfg.Lister.List(ctx, cfg.Kind, cfg.Author)
	if err != nil {
		return r.summary, fmt.Errorf("list %ss by %s: %w", cfg.Kind, cfg.Author, err)
	}
	r.summary.Listed = len(resources)
	r.log.Info().Str("author", cfg.Author).Int("count", len(resources)).Msg("listed resources")

	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			r.finish(ctx)
			return r.summary, fmt.Errorf("run interrupted: %w", err)
		}
		if cfg.Select != nil && !cfg.Select(res) {
			continue
		}
		r.summary.Selected++
		r.processResource(ctx, res)
	}

	r.finish(ctx)
	r.log.Info().
		Int("selected", r.summary.Selected).
		Int("skipped", r.summary.Skipped).
		Int("downloaded", r.summary.Downloaded).
		Int("warned", r.summary.Warned).
		Int("failed", r.summary.Failed).
		Msg("run complete")
	return r.summary, nil
}

type runner struct {
	cfg     Config
	log     zerolog.Logger
	tracer  trace.Tracer
	summary Summary
}

func (r *runner) processResource(ctx context.Context, res hub.Resource) {
	id := res.Identifier()
	ctx, span := r.tracer.Start(ctx, "fetch.resource", trace.WithAttributes(
		attribute.String("hubfetch.pipeline", r.cfg.Name),
		attribute.String("hubfetch.resource", id),
	))
	defer span.End()

	logger := r.log.With().Str("resource", id).Logger()

	target, err := r.cfg.Derive(r.cfg.BaseDir, res)
	if err != nil {
		logger.Warn().Err(err).Msgf("skipping %s: identifier does not match the expected naming", id)
		span.SetStatus(codes.Error, "malformed identifier")
		r.notify(ctx, r.outcome(id, StatusSkipped, func(o *Outcome) { o.Error = err.Error() }))
		return
	}

	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", target.Dir).Msg("create target directory")
		span.RecordError(err)
		span.SetStatus(codes.Error, "create target directory")
		r.notify(ctx, r.outcome(id, StatusSkipped, func(o *Outcome) { o.Error = err.Error() }))
		return
	}

	for _, pattern := range r.cfg.Filenames {
		r.processArtifact(ctx, logger, target, ExpandFilename(pattern, target))
	}
}

func (r *runner) processArtifact(ctx context.Context, logger zerolog.Logger, target Target, filename string) {
	id := target.Resource.Identifier()
	ctx, span := r.tracer.Start(ctx, "fetch.artifact", trace.WithAttributes(
		attribute.String("hubfetch.resource", id),
		attribute.String("hubfetch.file", filename),
	))
	defer span.End()

	logger = logger.With().Str("file", filename).Logger()
	path := filepath.Join(target.Dir, filename)

	body, err := r.cfg.Fetcher.Fetch(ctx, r.cfg.Kind, id, filename)
	if err != nil {
		var unavailable *UnavailableError
		if errors.As(err, &unavailable) {
			logger.Warn().Int("status", unavailable.StatusCode).
				Msgf("%s not available for %s (status %d)", filename, id, unavailable.StatusCode)
			span.SetAttributes(attribute.Int("http.response.status_code", unavailable.StatusCode))
			r.notify(ctx, r.outcome(id, StatusWarning, func(o *Outcome) {
				o.Filename = filename
				o.StatusCode = unavailable.StatusCode
				o.Error = err.Error()
			}))
			return
		}
		r.fail(ctx, logger, span, id, filename, err)
		return
	}

	size, sum, err := writeArtifact(path, body)
	body.Close()
	if err != nil {
		r.fail(ctx, logger, span, id, filename, err)
		return
	}

	rel, relErr := filepath.Rel(r.cfg.BaseDir, path)
	if relErr != nil {
		rel = path
	}
	logger.Info().Str("path", path).Int64("bytes", size).Msgf("downloaded %s for %s", filename, id)
	span.SetAttributes(attribute.Int64("hubfetch.bytes", size))
	r.notify(ctx, r.outcome(id, StatusSuccess, func(o *Outcome) {
		o.Filename = filename
		o.Path = path
		o.RelPath = filepath.ToSlash(rel)
		o.Size = size
		o.SHA256 = sum
	}))
}

func (r *runner) fail(ctx context.Context, logger zerolog.Logger, span trace.Span, id, filename string, err error) {
	logger.Error().Err(err).Msgf("failed to fetch %s for %s", filename, id)
	span.RecordError(err)
	span.SetStatus(codes.Error, "fetch artifact")
	r.notify(ctx, r.outcome(id, StatusError, func(o *Outcome) {
		o.Filename = filename
		o.Error = err.Error()
	}))
}

func (r *runner) outcome(resource string, status Status, fill func(*Outcome)) Outcome {
	o := Outcome{
		RunID:    r.cfg.RunID,
		Pipeline: r.cfg.Name,
		Resource: resource,
		Status:   status,
		At:       r.cfg.Now().UTC(),
	}
	fill(&o)
	return o
}

func (r *runner) notify(ctx context.Context, o Outcome) {
	r.summary.add(o)
	for _, obs := range r.cfg.Observers {
		if err := obs.Observe(ctx, o); err != nil {
			r.log.Warn().Err(err).Str("resource", o.Resource).Str("file", o.Filename).Msg("observer failed")
		}
	}
}

func (r *runner) finish(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, obs := range r.cfg.Observers {
		f, ok := obs.(Finisher)
		if !ok {
			continue
		}
		if err := f.Finish(ctx, r.summary); err != nil {
			r.log.Warn().Err(err).Msg("observer finish failed")
		}
	}
}

// writeArtifact replaces path with the contents of body and returns the size and sha256 written.
// A failed copy removes the partial file.
func writeArtifact(path string, body io.Reader) (int64, string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, "", fmt.Errorf("create directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("create %s: %w", path, err)
	}

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, hash), body)
	if err != nil {
		out.Close()
		_ = os.Remove(path)
		return 0, "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return 0, "", fmt.Errorf("close %s: %w", path, err)
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}
