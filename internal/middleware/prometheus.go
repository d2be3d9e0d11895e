package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/vk/taproot/internal/ctxlog"
)

// PrometheusSettings configures the metrics middleware. The fields bind from
// the environment under the PROMETHEUS prefix via the settings resolver.
type PrometheusSettings struct {
	Gateway string `default:"" desc:"host:port of a pushgateway; empty disables pushing"`
	Job     string `default:"taproot" desc:"job label used when pushing"`
}

// Prometheus records step execution metrics: invocation and failure counters,
// produced item counters, and per-phase duration histograms. Every series is
// labeled with the step name and the run ID so one pipeline run can be
// grouped across steps. When a gateway is configured the collected registry
// is pushed once during teardown.
type Prometheus struct {
	settings PrometheusSettings
	registry *prometheus.Registry

	started   *prometheus.CounterVec
	failed    *prometheus.CounterVec
	items     *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheus builds the metrics middleware with its own registry so tests
// and embedders never collide on the default one.
func NewPrometheus(settings PrometheusSettings) *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		settings: settings,
		registry: reg,
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taproot_step_started_total",
			Help: "Number of step invocations started.",
		}, []string{"step_name", "run_id"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taproot_step_failed_total",
			Help: "Number of step invocations that failed.",
		}, []string{"step_name", "run_id"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taproot_step_items_total",
			Help: "Number of output items persisted per step.",
		}, []string{"step_name", "run_id"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taproot_step_phase_seconds",
			Help:    "Duration of step phases (load, run, save).",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"step_name", "run_id", "phase"}),
	}
	reg.MustRegister(p.started, p.failed, p.items, p.durations)
	return p
}

// Name implements Middleware.
func (p *Prometheus) Name() string { return "prometheus" }

// Registry exposes the collector registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Execute implements Middleware.
func (p *Prometheus) Execute(ctx context.Context, inv *Invocation, next Next) (*Result, error) {
	labels := prometheus.Labels{"step_name": inv.Step.Name(), "run_id": inv.RunID}
	p.started.With(labels).Inc()

	res, err := next(ctx)
	if err != nil {
		p.failed.With(labels).Inc()
		return res, err
	}

	p.items.With(labels).Add(float64(res.Items))
	p.observe(inv, "load", res.Load)
	p.observe(inv, "run", res.Run)
	p.observe(inv, "save", res.Save)
	return res, nil
}

func (p *Prometheus) observe(inv *Invocation, phase string, d time.Duration) {
	p.durations.WithLabelValues(inv.Step.Name(), inv.RunID, phase).Observe(d.Seconds())
}

// Setup implements Lifecycle.
func (p *Prometheus) Setup(ctx context.Context) error { return nil }

// Teardown implements Lifecycle: pushes the registry to the configured
// gateway. The push is best-effort; a gateway outage must not mask the run
// result, so failures are logged, not returned.
func (p *Prometheus) Teardown(ctx context.Context, runErr error) error {
	if p.settings.Gateway == "" {
		return nil
	}
	pusher := push.New(p.settings.Gateway, p.settings.Job).Gatherer(p.registry)
	if err := pusher.Push(); err != nil {
		ctxlog.FromContext(ctx).Warn("pushgateway push failed", "gateway", p.settings.Gateway, "error", err)
	}
	return nil
}
