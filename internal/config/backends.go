package config

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	algoliaadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/algolia"
	bleveadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/bleve"
	esadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/elasticsearch"
	meilisearchadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/meilisearch"
	sqladapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/sql"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/registry"
)

// BuildRegistry creates every configured backend and registers it. On error,
// backends created so far are closed.
func (c *Config) BuildRegistry(logger hclog.Logger) (*registry.Registry, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	reg := registry.New(logger)

	add := func(b search.Backend, kind search.BackendType, err error) error {
		if err != nil {
			return fmt.Errorf("failed to create %s backend: %w", kind, err)
		}
		if err := reg.Register(b, &registry.BackendConfig{Type: kind}); err != nil {
			return err
		}
		logger.Debug("registered backend", "backend", b.Identifier(), "type", kind)
		return nil
	}

	if err := c.buildAll(logger, add); err != nil {
		if closeErr := reg.Close(); closeErr != nil {
			logger.Warn("error closing backends", "error", closeErr)
		}
		return nil, err
	}
	return reg, nil
}

func (c *Config) buildAll(logger hclog.Logger, add func(search.Backend, search.BackendType, error) error) error {
	for _, bc := range c.Bleve {
		a, err := bleveadapter.NewAdapter(bc, logger)
		if err := add(a, search.BackendTypeBleve, err); err != nil {
			return err
		}
	}
	for _, bc := range c.Meilisearch {
		a, err := meilisearchadapter.NewAdapter(bc, logger)
		if err := add(a, search.BackendTypeMeilisearch, err); err != nil {
			return err
		}
	}
	for _, bc := range c.Algolia {
		a, err := algoliaadapter.NewAdapter(bc, logger)
		if err := add(a, search.BackendTypeAlgolia, err); err != nil {
			return err
		}
	}
	for _, bc := range c.Elasticsearch {
		a, err := esadapter.NewAdapter(bc, logger)
		if err := add(a, search.BackendTypeElasticsearch, err); err != nil {
			return err
		}
	}
	for _, bc := range c.SQL {
		a, err := sqladapter.NewAdapter(bc, logger)
		if err := add(a, search.BackendTypeSQL, err); err != nil {
			return err
		}
	}
	return nil
}
