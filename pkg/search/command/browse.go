package command

import (
	"context"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// TermsCommand lists indexed terms of a field. It requires search.TermsLister.
type TermsCommand struct {
	base
	field string
	from  string
	limit int
}

// NewTermsCommand creates a listing of up to limit terms of field starting at
// from.
func NewTermsCommand(backendID, field, from string, limit int, params *search.ParamBag, opts ...Option) *TermsCommand {
	b, _ := newBase(OpTerms, backendID, params, opts)
	return &TermsCommand{base: b, field: field, from: from, limit: limit}
}

func (c *TermsCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpTerms, PathOptimized, func(l search.TermsLister) (any, error) {
		return l.Terms(ctx, c.field, c.from, c.limit, c.params)
	})
}

// Terms returns the term list.
func (c *TermsCommand) Terms() (*search.TermList, error) {
	return resultAs[*search.TermList](&c.base)
}

// AlphabeticBrowseCommand pages through an alphabetic browse index. It
// requires search.AlphabeticBrowser.
type AlphabeticBrowseCommand struct {
	base
	source      string
	from        string
	page        int
	limit       int
	offsetDelta int
}

// NewAlphabeticBrowseCommand creates a browse of source starting at from.
func NewAlphabeticBrowseCommand(backendID, source, from string, page, limit int, params *search.ParamBag, offsetDelta int, opts ...Option) *AlphabeticBrowseCommand {
	b, _ := newBase(OpAlphabeticBrowse, backendID, params, opts)
	return &AlphabeticBrowseCommand{
		base:        b,
		source:      source,
		from:        from,
		page:        page,
		limit:       limit,
		offsetDelta: offsetDelta,
	}
}

func (c *AlphabeticBrowseCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}
	return invoke(&c.base, backend, OpAlphabeticBrowse, PathOptimized, func(br search.AlphabeticBrowser) (any, error) {
		return br.AlphabeticBrowse(ctx, c.source, c.from, c.page, c.limit, c.params, c.offsetDelta)
	})
}

// Browse returns the browse page.
func (c *AlphabeticBrowseCommand) Browse() (*search.BrowseResult, error) {
	return resultAs[*search.BrowseResult](&c.base)
}
