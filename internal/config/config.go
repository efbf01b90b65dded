package config

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"

	algoliaadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/algolia"
	bleveadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/bleve"
	esadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/elasticsearch"
	meilisearchadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/meilisearch"
	sqladapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/sql"
)

// Config is the searchdispatch configuration file.
type Config struct {
	// LogLevel is the level of the root logger (trace, debug, info, warn,
	// error). Defaults to info.
	LogLevel string `hcl:"log_level,optional"`

	// Events configures publishing of command events to Kafka/Redpanda.
	Events *Events `hcl:"events,block"`

	// Tracing configures Datadog tracing of command execution.
	Tracing *Tracing `hcl:"tracing,block"`

	// Backends, one block per instance, labeled with the backend id.
	Bleve         []*bleveadapter.Config       `hcl:"bleve,block"`
	Meilisearch   []*meilisearchadapter.Config `hcl:"meilisearch,block"`
	Algolia       []*algoliaadapter.Config     `hcl:"algolia,block"`
	Elasticsearch []*esadapter.Config          `hcl:"elasticsearch,block"`
	SQL           []*sqladapter.Config         `hcl:"sql,block"`
}

// Events is the configuration for the command event publisher. Brokers and
// topic may also be set with SEARCHDISPATCH_BROKERS and
// SEARCHDISPATCH_EVENTS_TOPIC.
type Events struct {
	Brokers           []string `hcl:"brokers,optional"`
	Topic             string   `hcl:"topic,optional"`
	CreateTopic       bool     `hcl:"create_topic,optional"`
	Partitions        int      `hcl:"partitions,optional"`
	ReplicationFactor int      `hcl:"replication_factor,optional"`
}

// Validate validates the events configuration.
func (e Events) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Brokers, validation.Each(validation.Required)),
		validation.Field(&e.Partitions, validation.Min(0)),
		validation.Field(&e.ReplicationFactor, validation.Min(0)),
	)
}

// Tracing is the configuration for Datadog tracing.
type Tracing struct {
	Enabled   bool   `hcl:"enabled,optional"`
	Service   string `hcl:"service,optional"`
	Env       string `hcl:"env,optional"`
	AgentAddr string `hcl:"agent_addr,optional"`
	Version   string `hcl:"version,optional"`
}

// Load reads and validates the HCL configuration file at path.
func Load(fs afero.Fs, path string) (*Config, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes HCL source. The filename determines the syntax: names ending
// in .json are decoded as HCL JSON.
func Parse(filename string, src []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Events != nil {
		if cfg.Events.Partitions == 0 {
			cfg.Events.Partitions = 1
		}
		if cfg.Events.ReplicationFactor == 0 {
			cfg.Events.ReplicationFactor = 1
		}
	}
	if cfg.Tracing != nil && cfg.Tracing.Service == "" {
		cfg.Tracing.Service = "searchdispatch"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the top-level settings, every backend block, and that
// backend ids are unique across all backend types.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := validation.Validate(strings.ToLower(c.LogLevel),
		validation.In("trace", "debug", "info", "warn", "error"),
	); err != nil {
		result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
	}
	if c.Events != nil {
		if err := c.Events.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("events: %w", err))
		}
	}

	seen := map[string]string{}
	check := func(kind, id string, v validation.Validatable) {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s %q: %w", kind, id, err))
		}
		if prev, ok := seen[id]; ok {
			result = multierror.Append(result, fmt.Errorf("%s %q: backend id already used by a %s block", kind, id, prev))
		}
		seen[id] = kind
	}
	for _, b := range c.Bleve {
		check("bleve", b.ID, b)
	}
	for _, b := range c.Meilisearch {
		check("meilisearch", b.ID, b)
	}
	for _, b := range c.Algolia {
		check("algolia", b.ID, b)
	}
	for _, b := range c.Elasticsearch {
		check("elasticsearch", b.ID, b)
	}
	for _, b := range c.SQL {
		check("sql", b.ID, b)
	}

	return result.ErrorOrNil()
}

// BackendCount returns the number of configured backends.
func (c *Config) BackendCount() int {
	return len(c.Bleve) + len(c.Meilisearch) + len(c.Algolia) + len(c.Elasticsearch) + len(c.SQL)
}
