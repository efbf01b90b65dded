package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	bleveadapter "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/bleve"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/registry"
)

func TestBuildRegistry(t *testing.T) {
	cfg, err := Parse("config.hcl", []byte(`
bleve "catalog" {}

sql "db" {
  driver       = "sqlite"
  dsn          = ":memory:"
  auto_migrate = true
}

meilisearch "meili" {
  host  = "http://localhost:7700"
  index = "books"
}
`))
	require.NoError(t, err)

	reg, err := cfg.BuildRegistry(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	assert.Equal(t, []string{"catalog", "db", "meili"}, reg.IDs())

	bc, ok := reg.Config("db")
	require.True(t, ok)
	assert.Equal(t, search.BackendTypeSQL, bc.Type)

	b, err := reg.Get("catalog")
	require.NoError(t, err)
	assert.Contains(t, registry.Capabilities(b), "retrieveBatch")
	assert.NotContains(t, registry.Capabilities(b), "random")
}

func TestBuildRegistry_Failure(t *testing.T) {
	cfg := &Config{
		Bleve: []*bleveadapter.Config{{ID: "dup"}, {ID: "dup"}},
	}

	_, err := cfg.BuildRegistry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dup")

	cfg = &Config{Bleve: []*bleveadapter.Config{{}}}
	_, err = cfg.BuildRegistry(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create bleve backend")
}
