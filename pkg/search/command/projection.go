package command

import (
	"context"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// GetIDsCommand lists the ids of records matching a query.
//
// A search.IDLister backend returns search.IDRecord projections
// (PathOptimized). Any other backend is searched instead and the result holds
// whatever full records Search returns (PathFallback). The two shapes are not
// normalized here; callers inspect Result.Path or read record ids only.
type GetIDsCommand struct {
	base
	query  search.Query
	offset int
	limit  int
}

// NewGetIDsCommand creates an id listing for q.
func NewGetIDsCommand(backendID string, q search.Query, offset, limit int, params *search.ParamBag, opts ...Option) *GetIDsCommand {
	b, _ := newBase(OpGetIDs, backendID, params, opts)
	return &GetIDsCommand{base: b, query: q, offset: offset, limit: limit}
}

func (c *GetIDsCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	if lister, ok := backend.(search.IDLister); ok {
		return c.run(backend, PathOptimized, func() (any, error) {
			return lister.GetIDs(ctx, c.query, c.offset, c.limit, c.params)
		})
	}
	return c.run(backend, PathFallback, func() (any, error) {
		return backend.Search(ctx, c.query, c.offset, c.limit, c.params)
	})
}

// Records returns the id projections or, after a fallback, full records.
func (c *GetIDsCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}

// GetSitemapFieldsCommand lists the fields needed to build a sitemap for
// records matching a query. Its fallback behaves like GetIDsCommand's.
type GetSitemapFieldsCommand struct {
	base
	query  search.Query
	offset int
	limit  int
}

// NewGetSitemapFieldsCommand creates a sitemap field listing for q.
func NewGetSitemapFieldsCommand(backendID string, q search.Query, offset, limit int, params *search.ParamBag, opts ...Option) *GetSitemapFieldsCommand {
	b, _ := newBase(OpGetSitemapFields, backendID, params, opts)
	return &GetSitemapFieldsCommand{base: b, query: q, offset: offset, limit: limit}
}

func (c *GetSitemapFieldsCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	if lister, ok := backend.(search.SitemapFieldLister); ok {
		return c.run(backend, PathOptimized, func() (any, error) {
			return lister.GetSitemapFields(ctx, c.query, c.offset, c.limit, c.params)
		})
	}
	return c.run(backend, PathFallback, func() (any, error) {
		return backend.Search(ctx, c.query, c.offset, c.limit, c.params)
	})
}

// Records returns the sitemap projections or, after a fallback, full records.
func (c *GetSitemapFieldsCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}
