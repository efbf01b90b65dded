package command

import (
	"context"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// WorkExpressionsCommand lists the other expressions of a record's work.
type WorkExpressionsCommand struct {
	base
	recordID    string
	includeSelf bool
}

// NewWorkExpressionsCommand creates a work expression listing for record id.
func NewWorkExpressionsCommand(backendID, id string, includeSelf bool, params *search.ParamBag, opts ...Option) *WorkExpressionsCommand {
	b, _ := newBase(OpWorkExpressions, backendID, params, opts)
	return &WorkExpressionsCommand{base: b, recordID: id, includeSelf: includeSelf}
}

func (c *WorkExpressionsCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpWorkExpressions, PathOptimized, func(l search.WorkExpressionLister) (any, error) {
		return l.WorkExpressions(ctx, c.recordID, c.includeSelf, c.params)
	})
}

// Records returns the expressions.
func (c *WorkExpressionsCommand) Records() (*search.RecordCollection, error) {
	return resultAs[*search.RecordCollection](&c.base)
}

// GetSearchTermsCommand asks a backend which terms it would search for.
type GetSearchTermsCommand struct {
	base
	query search.Query
}

// NewGetSearchTermsCommand creates a query analysis of q.
func NewGetSearchTermsCommand(backendID string, q search.Query, params *search.ParamBag, opts ...Option) *GetSearchTermsCommand {
	b, _ := newBase(OpGetSearchTerms, backendID, params, opts)
	return &GetSearchTermsCommand{base: b, query: q}
}

func (c *GetSearchTermsCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpGetSearchTerms, PathOptimized, func(a search.QueryAnalyzer) (any, error) {
		return a.GetSearchTerms(ctx, c.query)
	})
}

// SearchTerms returns the analyzed terms.
func (c *GetSearchTermsCommand) SearchTerms() ([]string, error) {
	return resultAs[[]string](&c.base)
}

// SetRecordCollectionFactoryCommand replaces the factory a backend builds
// its collections with. Its result value is nil.
type SetRecordCollectionFactoryCommand struct {
	base
	factory search.RecordCollectionFactory
}

// NewSetRecordCollectionFactoryCommand creates a factory replacement.
func NewSetRecordCollectionFactoryCommand(backendID string, factory search.RecordCollectionFactory, params *search.ParamBag, opts ...Option) *SetRecordCollectionFactoryCommand {
	b, _ := newBase(OpSetRecordCollectionFactory, backendID, params, opts)
	return &SetRecordCollectionFactoryCommand{base: b, factory: factory}
}

func (c *SetRecordCollectionFactoryCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpSetRecordCollectionFactory, PathOptimized, func(a search.RecordCollectionFactoryAware) (any, error) {
		a.SetRecordCollectionFactory(c.factory)
		return nil, nil
	})
}
