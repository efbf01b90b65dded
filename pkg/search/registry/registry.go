// Package registry keeps the set of configured backends addressable by id.
package registry

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// BackendConfig describes a registered backend.
type BackendConfig struct {
	Type         search.BackendType
	HealthStatus string // "healthy", "unhealthy", "unknown"
	LastCheck    *time.Time
}

// Health is the outcome of a backend health check.
type Health struct {
	ID      string
	Type    search.BackendType
	Healthy bool
	Error   string
}

// Registry maps backend ids to backend instances.
type Registry struct {
	backends map[string]search.Backend
	configs  map[string]*BackendConfig
	mu       sync.RWMutex
	logger   hclog.Logger
}

// New creates an empty registry.
func New(logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		backends: make(map[string]search.Backend),
		configs:  make(map[string]*BackendConfig),
		logger:   logger.Named("backend-registry"),
	}
}

// Register adds a backend under its own identifier.
func (r *Registry) Register(backend search.Backend, config *BackendConfig) error {
	if backend == nil {
		return fmt.Errorf("backend is nil")
	}
	id := backend.Identifier()
	if id == "" {
		return fmt.Errorf("backend identifier is empty")
	}
	if config == nil {
		config = &BackendConfig{}
	}
	if config.HealthStatus == "" {
		config.HealthStatus = "unknown"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[id]; exists {
		return fmt.Errorf("backend %s already registered", id)
	}
	r.backends[id] = backend
	r.configs[id] = config

	r.logger.Info("backend registered",
		"id", id,
		"type", config.Type,
		"capabilities", Capabilities(backend))
	return nil
}

// Unregister removes a backend without closing it.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[id]; !exists {
		return fmt.Errorf("backend %s not registered", id)
	}
	delete(r.backends, id)
	delete(r.configs, id)

	r.logger.Info("backend unregistered", "id", id)
	return nil
}

// Get returns the backend registered under id.
func (r *Registry) Get(id string) (search.Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, exists := r.backends[id]
	if !exists {
		return nil, &search.Error{Op: "lookup", Backend: id, Err: search.ErrBackendUnavailable, Msg: "backend not registered"}
	}
	return backend, nil
}

// Config returns a copy of the configuration of backend id.
func (r *Registry) Config(id string) (BackendConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[id]
	if !ok {
		return BackendConfig{}, false
	}
	return *cfg, true
}

// IDs returns the registered backend ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CheckHealth checks every backend implementing search.HealthChecker.
// Others are reported healthy. Results are sorted by id.
func (r *Registry) CheckHealth(ctx context.Context) []Health {
	ids := r.IDs()
	results := make([]Health, 0, len(ids))

	for _, id := range ids {
		r.mu.RLock()
		backend, ok := r.backends[id]
		cfg := r.configs[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		h := Health{ID: id, Type: cfg.Type, Healthy: true}
		if checker, ok := backend.(search.HealthChecker); ok {
			if err := checker.Healthy(ctx); err != nil {
				h.Healthy = false
				h.Error = err.Error()
				r.logger.Warn("backend unhealthy", "id", id, "error", err)
			}
		}

		now := time.Now()
		r.mu.Lock()
		if cfg, ok := r.configs[id]; ok {
			cfg.LastCheck = &now
			if h.Healthy {
				cfg.HealthStatus = "healthy"
			} else {
				cfg.HealthStatus = "unhealthy"
			}
		}
		r.mu.Unlock()

		results = append(results, h)
	}
	return results
}

// Close closes every backend implementing io.Closer and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result *multierror.Error
	for id, backend := range r.backends {
		if closer, ok := backend.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("failed to close backend %s: %w", id, err))
			}
		}
	}
	r.backends = make(map[string]search.Backend)
	r.configs = make(map[string]*BackendConfig)

	return result.ErrorOrNil()
}

// Capabilities lists the optional capabilities backend implements.
func Capabilities(backend search.Backend) []string {
	var caps []string
	add := func(ok bool, name string) {
		if ok {
			caps = append(caps, name)
		}
	}
	_, ok := backend.(search.BatchRetriever)
	add(ok, "retrieveBatch")
	_, ok = backend.(search.RandomSampler)
	add(ok, "random")
	_, ok = backend.(search.IDLister)
	add(ok, "getIds")
	_, ok = backend.(search.SitemapFieldLister)
	add(ok, "getSitemapFields")
	_, ok = backend.(search.WorkExpressionLister)
	add(ok, "workExpressions")
	_, ok = backend.(search.QueryAnalyzer)
	add(ok, "getSearchTerms")
	_, ok = backend.(search.TermsLister)
	add(ok, "getTerms")
	_, ok = backend.(search.AlphabeticBrowser)
	add(ok, "alphabeticBrowse")
	_, ok = backend.(search.RecordCollectionFactoryAware)
	add(ok, "setRecordCollectionFactory")
	_, ok = backend.(search.RequestDetailer)
	add(ok, "extraRequestDetails")
	_, ok = backend.(search.ConnectorProvider)
	add(ok, "getConnector")
	_, ok = backend.(search.QueryBuilderProvider)
	add(ok, "getQueryBuilder")
	return caps
}
