package service

import (
	"context"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/iancoleman/strcase"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsListener records command counts and latencies. Attach it to both
// PhasePost and PhaseError.
type MetricsListener struct {
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
}

// NewMetricsListener creates the collectors and registers them with reg. A
// nil reg leaves them unregistered.
func NewMetricsListener(reg prometheus.Registerer) (*MetricsListener, error) {
	m := &MetricsListener{
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchdispatch_commands_total",
				Help: "Total number of executed search commands",
			},
			[]string{"backend", "operation", "path", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchdispatch_command_duration_seconds",
				Help:    "Duration of search command execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // 0.5ms to ~16s
			},
			[]string{"backend", "operation"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.commandsTotal, m.commandDuration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *MetricsListener) OnEvent(ctx context.Context, ev *Event) {
	backend := ev.Command.TargetIdentifier()
	op := strcase.ToSnake(ev.Command.Operation())

	status, path := "success", "none"
	if ev.Err != nil {
		status = "error"
	} else if r, err := ev.Command.Result(); err == nil {
		path = r.Path.String()
	}

	m.commandsTotal.WithLabelValues(backend, op, path, status).Inc()
	if ev.Backend != nil {
		m.commandDuration.WithLabelValues(backend, op).Observe(ev.Elapsed.Seconds())
	}
}

// Collectors exposes the underlying collectors, mostly for tests.
func (m *MetricsListener) Collectors() (*prometheus.CounterVec, *prometheus.HistogramVec) {
	return m.commandsTotal, m.commandDuration
}

// DetailsLogger logs backend diagnostics captured by successful commands.
type DetailsLogger struct {
	logger hclog.Logger
}

// NewDetailsLogger creates a listener for PhasePost.
func NewDetailsLogger(logger hclog.Logger) *DetailsLogger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &DetailsLogger{logger: logger.Named("request-details")}
}

func (d *DetailsLogger) OnEvent(ctx context.Context, ev *Event) {
	if ev.Err != nil {
		return
	}
	r, err := ev.Command.Result()
	if err != nil || len(r.Details) == 0 {
		return
	}

	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := []any{"id", ev.Command.ID(), "backend", ev.Command.TargetIdentifier(), "operation", ev.Command.Operation()}
	for _, k := range keys {
		args = append(args, k, r.Details[k])
	}
	d.logger.Debug("request details", args...)
}
