package base

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/afero"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/hashicorp-forge/searchdispatch/internal/config"
	"github.com/hashicorp-forge/searchdispatch/internal/version"
	"github.com/hashicorp-forge/searchdispatch/pkg/kafka"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/events"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/registry"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/service"
)

// Runtime is a configured set of backends behind a command service.
type Runtime struct {
	Config   *config.Config
	Registry *registry.Registry
	Service  *service.Service
	Metrics  *prometheus.Registry

	publisher *events.Publisher
	tracing   bool
	logger    hclog.Logger
}

// NewRuntime loads the config file and builds the backends, the service and
// its listeners. Close must be called when done.
func (c *Command) NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.Load(c.Fs, configPath)
	if err != nil {
		return nil, err
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	rt := &Runtime{Config: cfg, Metrics: prometheus.NewRegistry(), logger: c.Log}

	if cfg.Tracing != nil && cfg.Tracing.Enabled {
		opts := []tracer.StartOption{
			tracer.WithService(cfg.Tracing.Service),
			tracer.WithServiceVersion(version.Version),
		}
		if cfg.Tracing.Env != "" {
			opts = append(opts, tracer.WithEnv(cfg.Tracing.Env))
		}
		if cfg.Tracing.AgentAddr != "" {
			opts = append(opts, tracer.WithAgentAddr(cfg.Tracing.AgentAddr))
		}
		if cfg.Tracing.Version != "" {
			opts = append(opts, tracer.WithServiceVersion(cfg.Tracing.Version))
		}
		tracer.Start(opts...)
		rt.tracing = true
	}

	rt.Registry, err = cfg.BuildRegistry(c.Log)
	if err != nil {
		rt.Close()
		return nil, err
	}

	metrics, err := service.NewMetricsListener(rt.Metrics)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("error registering metrics: %w", err)
	}
	details := service.NewDetailsLogger(c.Log)
	rt.Service = service.New(rt.Registry,
		service.WithLogger(c.Log),
		service.WithListener(service.PhasePost, metrics),
		service.WithListener(service.PhaseError, metrics),
		service.WithListener(service.PhasePost, details),
	)

	if cfg.Events != nil {
		rt.publisher, err = events.NewPublisher(events.PublisherConfig{
			Brokers: kafka.GetBrokers(cfg.Events),
			Topic:   kafka.GetCommandEventTopic(cfg.Events),
			Logger:  c.Log,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		if cfg.Events.CreateTopic {
			if err := rt.publisher.EnsureTopic(ctx, int32(cfg.Events.Partitions), int16(cfg.Events.ReplicationFactor)); err != nil {
				rt.Close()
				return nil, err
			}
		}
		rt.Service.Attach(service.PhasePost, rt.publisher)
		rt.Service.Attach(service.PhaseError, rt.publisher)
	}

	return rt, nil
}

// WriteMetrics writes the gathered command metrics to path on fs in the
// Prometheus text exposition format.
func (r *Runtime) WriteMetrics(fs afero.Fs, path string) error {
	families, err := r.Metrics.Gather()
	if err != nil {
		return fmt.Errorf("error gathering metrics: %w", err)
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("error creating metrics file: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return fmt.Errorf("error writing metrics: %w", err)
		}
	}
	return f.Close()
}

// Close releases backends, the event publisher and the tracer.
func (r *Runtime) Close() {
	if r.publisher != nil {
		r.publisher.Close()
	}
	if r.Registry != nil {
		if err := r.Registry.Close(); err != nil {
			r.logger.Warn("error closing backends", "error", err)
		}
	}
	if r.tracing {
		tracer.Stop()
	}
}
