// Package service routes commands to registered backends and runs listener
// hooks around each execution.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
)

// Phase identifies when a listener fires.
type Phase string

const (
	// PhasePre fires before execution. Listeners may still mutate the
	// command's ParamBag.
	PhasePre Phase = "pre"

	// PhasePost fires after successful execution.
	PhasePost Phase = "post"

	// PhaseError fires after failed execution.
	PhaseError Phase = "error"
)

// Event is passed to listeners.
type Event struct {
	Phase   Phase
	Command command.Command
	Backend search.Backend // nil when the target could not be resolved
	Err     error
	Elapsed time.Duration
}

// Listener observes command execution.
type Listener interface {
	OnEvent(ctx context.Context, ev *Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev *Event)

func (f ListenerFunc) OnEvent(ctx context.Context, ev *Event) { f(ctx, ev) }

// Resolver finds the backend a command targets.
type Resolver interface {
	Get(id string) (search.Backend, error)
}

// Service executes commands against backends from a Resolver.
type Service struct {
	resolver  Resolver
	logger    hclog.Logger
	mu        sync.RWMutex
	listeners map[Phase][]Listener
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithListener attaches l to phase.
func WithListener(phase Phase, l Listener) Option {
	return func(s *Service) { s.listeners[phase] = append(s.listeners[phase], l) }
}

// New creates a service resolving backends from resolver.
func New(resolver Resolver, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		logger:    hclog.NewNullLogger(),
		listeners: make(map[Phase][]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("search-service")
	return s
}

// Attach adds a listener for phase. Listeners run in attachment order.
func (s *Service) Attach(phase Phase, l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[phase] = append(s.listeners[phase], l)
}

// Invoke resolves the command's target backend and executes the command on
// it. Backend and dispatch errors are returned unmodified.
func (s *Service) Invoke(ctx context.Context, cmd command.Command) (command.Result, error) {
	span, ctx := tracer.StartSpanFromContext(ctx, "search.command",
		tracer.ResourceName(cmd.Operation()),
		tracer.Tag("search.backend", cmd.TargetIdentifier()),
		tracer.Tag("search.operation", cmd.Operation()),
		tracer.Tag("search.context", cmd.Context()),
	)

	backend, err := s.resolver.Get(cmd.TargetIdentifier())
	if err != nil {
		s.logger.Warn("backend lookup failed",
			"backend", cmd.TargetIdentifier(),
			"operation", cmd.Operation(),
			"error", err)
		s.fire(ctx, &Event{Phase: PhaseError, Command: cmd, Err: err})
		span.Finish(tracer.WithError(err))
		return command.Result{}, err
	}

	s.fire(ctx, &Event{Phase: PhasePre, Command: cmd, Backend: backend})

	start := time.Now()
	err = cmd.Execute(ctx, backend)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Debug("command failed",
			"id", cmd.ID(),
			"backend", cmd.TargetIdentifier(),
			"operation", cmd.Operation(),
			"error", err)
		s.fire(ctx, &Event{Phase: PhaseError, Command: cmd, Backend: backend, Err: err, Elapsed: elapsed})
		span.Finish(tracer.WithError(err))
		return command.Result{}, err
	}

	result, err := cmd.Result()
	if err != nil {
		span.Finish(tracer.WithError(err))
		return command.Result{}, err
	}
	span.SetTag("search.path", result.Path.String())

	s.logger.Trace("command executed",
		"id", cmd.ID(),
		"backend", cmd.TargetIdentifier(),
		"operation", cmd.Operation(),
		"path", result.Path,
		"elapsed", elapsed)
	s.fire(ctx, &Event{Phase: PhasePost, Command: cmd, Backend: backend, Elapsed: elapsed})
	span.Finish()
	return result, nil
}

func (s *Service) fire(ctx context.Context, ev *Event) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners[ev.Phase]...)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.OnEvent(ctx, ev)
	}
}
