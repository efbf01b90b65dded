package command

import (
	"context"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// RetrieveBatchCommand fetches several records by id.
//
// Backends implementing search.BatchRetriever answer in one call. Otherwise
// each id is retrieved in input order and the records are appended to the
// first collection returned. The first failing retrieval aborts the batch.
type RetrieveBatchCommand struct {
	base
	ids []string
}

// NewRetrieveBatchCommand creates a batch retrieval of ids.
func NewRetrieveBatchCommand(backendID string, ids []string, params *search.ParamBag, opts ...Option) *RetrieveBatchCommand {
	b, _ := newBase(OpRetrieveBatch, backendID, params, opts)
	return &RetrieveBatchCommand{base: b, ids: append([]string(nil), ids...)}
}

// IDs returns the requested ids.
func (c *RetrieveBatchCommand) IDs() []string { return append([]string(nil), c.ids...) }

func (c *RetrieveBatchCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}

	if batcher, ok := backend.(search.BatchRetriever); ok {
		return c.run(backend, PathOptimized, func() (any, error) {
			return batcher.RetrieveBatch(ctx, c.ids, c.params)
		})
	}

	var response *search.RecordCollection
	for _, id := range c.ids {
		next, err := backend.Retrieve(ctx, id, c.params)
		if err != nil {
			return err
		}
		if response == nil {
			response = next
			continue
		}
		if record := next.First(); record != nil {
			response.Add(record)
		}
	}
	if response == nil {
		response = search.NewRecordCollection(backend.Identifier(), nil, 0, 0)
	}

	c.finalize(response, PathFallback, nil)
	return nil
}

// Records returns the retrieved records in input id order.
func (c *RetrieveBatchCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}
