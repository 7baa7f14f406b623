package fetch

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics counts outcomes in a private registry and optionally pushes them to a Pushgateway when the run ends.
type Metrics struct {
	registry  *prometheus.Registry
	artifacts *prometheus.CounterVec
	skipped   *prometheus.CounterVec
	bytes     *prometheus.CounterVec

	pushURL string
	job     string
}

// NewMetrics registers the hubfetch counters. An empty pushURL disables pushing.
func NewMetrics(pushURL, job string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubfetch_artifacts_total",
				Help: "Artifact fetch attempts by pipeline and outcome status.",
			},
			[]string{"pipeline", "status"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubfetch_resources_skipped_total",
				Help: "Resources skipped before any artifact was fetched.",
			},
			[]string{"pipeline"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubfetch_artifact_bytes_total",
				Help: "Bytes written to disk for successfully fetched artifacts.",
			},
			[]string{"pipeline"},
		),
		pushURL: pushURL,
		job:     job,
	}
	m.registry.MustRegister(m.artifacts, m.skipped, m.bytes)
	return m
}

func (m *Metrics) Observe(_ context.Context, o Outcome) error {
	if o.Status == StatusSkipped {
		m.skipped.WithLabelValues(o.Pipeline).Inc()
		return nil
	}
	m.artifacts.WithLabelValues(o.Pipeline, string(o.Status)).Inc()
	if o.Status == StatusSuccess {
		m.bytes.WithLabelValues(o.Pipeline).Add(float64(o.Size))
	}
	return nil
}

// Finish pushes the collected counters under the job name. The pipeline is already a label on every series.
func (m *Metrics) Finish(ctx context.Context, _ Summary) error {
	if m.pushURL == "" {
		return nil
	}
	job := m.job
	if job == "" {
		job = "hubfetch"
	}
	err := push.New(m.pushURL, job).
		Gatherer(m.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
