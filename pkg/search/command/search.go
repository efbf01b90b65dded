package command

import (
	"context"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// SearchCommand runs a paged search. Every backend supports it.
type SearchCommand struct {
	base
	query  search.Query
	offset int
	limit  int
}

// NewSearchCommand creates a search for q returning limit records from offset.
func NewSearchCommand(backendID string, q search.Query, offset, limit int, params *search.ParamBag, opts ...Option) *SearchCommand {
	b, _ := newBase(OpSearch, backendID, params, opts)
	return &SearchCommand{base: b, query: q, offset: offset, limit: limit}
}

// Query returns the search query.
func (c *SearchCommand) Query() search.Query { return c.query }

func (c *SearchCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpSearch, PathOptimized, func(be search.Backend) (any, error) {
		return be.Search(ctx, c.query, c.offset, c.limit, c.params)
	})
}

// Records returns the search result.
func (c *SearchCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}

// RetrieveCommand fetches a single record by id. Every backend supports it.
type RetrieveCommand struct {
	base
	recordID string
}

// NewRetrieveCommand creates a retrieval of record id.
func NewRetrieveCommand(backendID, id string, params *search.ParamBag, opts ...Option) *RetrieveCommand {
	b, _ := newBase(OpRetrieve, backendID, params, opts)
	return &RetrieveCommand{base: b, recordID: id}
}

// RecordID returns the id being retrieved.
func (c *RetrieveCommand) RecordID() string { return c.recordID }

func (c *RetrieveCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpRetrieve, PathOptimized, func(be search.Backend) (any, error) {
		return be.Retrieve(ctx, c.recordID, c.params)
	})
}

// Records returns the retrieved collection.
func (c *RetrieveCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}
