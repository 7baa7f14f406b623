package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"hubfetch/pkg/bus"
	"hubfetch/pkg/db"
	"hubfetch/pkg/hub"
	gos3 "hubfetch/pkg/s3"
	"hubfetch/pkg/telemetry"
	"hubfetch/services/fetch/internal/config"
)

// Runtime owns the clients and observers a fetch binary needs for one process lifetime.
type Runtime struct {
	Config  config.Config
	Logger  zerolog.Logger
	Hub     *hub.Client
	Cache   *hub.Cache
	Metrics *Metrics

	observers []Observer
	closers   []func(context.Context) error
}

// NewRuntime builds the logger, tracer, hub client, download cache and every observer enabled by cfg.
// Optional sinks that are configured but unreachable fail setup.
func NewRuntime(ctx context.Context, cfg config.Config, service string) (rt *Runtime, err error) {
	logger, err := telemetry.NewLogger(service, cfg.LogFormat, cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	shutdown, err := telemetry.InitTracing(ctx, service, cfg.OTLPEndpoint)
	if err != nil {
		return rt, fmt.Errorf("init tracing: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	rt.Hub, err = hub.NewClient(hub.Options{
		Endpoint:   cfg.HubEndpoint,
		Token:      cfg.HubToken,
		Revision:   cfg.HubRevision,
		HTTPClient: &http.Client{Transport: telemetry.Transport(nil)},
	})
	if err != nil {
		return rt, fmt.Errorf("hub client: %w", err)
	}
	rt.Cache, err = hub.NewCache(cfg.CacheDir, cfg.HubRevision)
	if err != nil {
		return rt, fmt.Errorf("hub cache: %w", err)
	}

	rt.Metrics = NewMetrics(cfg.PushgatewayURL, service)
	rt.observers = append(rt.observers, rt.Metrics)

	if cfg.LedgerDSN != "" {
		pool, err := db.Open(ctx, cfg.LedgerDSN)
		if err != nil {
			return rt, fmt.Errorf("open ledger: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if err := db.Migrate(ctx, pool); err != nil {
			return rt, fmt.Errorf("migrate ledger: %w", err)
		}
		rt.observers = append(rt.observers, NewLedger(pool))
		logger.Debug().Msg("ledger enabled")
	}

	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL, nats.Name(service))
		if err != nil {
			return rt, fmt.Errorf("connect nats: %w", err)
		}
		rt.closers = append(rt.closers, func(context.Context) error {
			b.Close()
			return nil
		})
		rt.observers = append(rt.observers, NewEventPublisher(b, cfg.EventSubject))
		logger.Debug().Str("subject", cfg.EventSubject).Msg("event publishing enabled")
	}

	if cfg.S3.Bucket != "" {
		client, err := gos3.NewClient(ctx, gos3.Options{
			Endpoint:       cfg.S3.Endpoint,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			Region:         cfg.S3.Region,
			DisableTLS:     cfg.S3.DisableTLS,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return rt, fmt.Errorf("s3 client: %w", err)
		}
		rt.observers = append(rt.observers, NewMirror(client, cfg.S3.Bucket, cfg.S3.Prefix))
		logger.Debug().Str("bucket", cfg.S3.Bucket).Msg("s3 mirror enabled")
	}

	return rt, nil
}

// Run executes pcfg with the runtime's logger and observers. A non-empty manifestPath also records a run manifest.
func (rt *Runtime) Run(ctx context.Context, pcfg Config, manifestPath string) (Summary, error) {
	pcfg.Logger = &rt.Logger
	pcfg.Observers = append(append([]Observer(nil), pcfg.Observers...), rt.observers...)
	if manifestPath != "" {
		pcfg.Observers = append(pcfg.Observers, NewManifestRecorder(manifestPath))
	}
	return Run(ctx, pcfg)
}

// Close releases clients in reverse order of creation.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
