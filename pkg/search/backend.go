package search

import (
	"context"
)

// ===================================================================
// BASELINE INTERFACE: Backend
// ===================================================================
// Backend is an identity-bearing adapter to a single data source. Every
// backend supports Search and Retrieve; everything else is an optional
// capability declared by the interfaces below.
type Backend interface {
	// Identifier returns the id the backend is registered and addressed under.
	Identifier() string

	// Search returns up to limit records matching q starting at offset.
	// A limit of 0 is a count-only request: Total is set, no records are held.
	Search(ctx context.Context, q Query, offset, limit int, params *ParamBag) (*RecordCollection, error)

	// Retrieve returns the record with the given id.
	Retrieve(ctx context.Context, id string, params *ParamBag) (*RecordCollection, error)
}

// ===================================================================
// OPTIONAL CAPABILITIES
// ===================================================================

// BatchRetriever retrieves many records in one round trip. Implementations
// are expected to return records in input id order.
type BatchRetriever interface {
	RetrieveBatch(ctx context.Context, ids []string, params *ParamBag) (*RecordCollection, error)
}

// RandomSampler returns a random sample of up to limit matching records.
type RandomSampler interface {
	Random(ctx context.Context, q Query, limit int, params *ParamBag) (*RecordCollection, error)
}

// IDLister returns IDRecord projections instead of full records.
type IDLister interface {
	GetIDs(ctx context.Context, q Query, offset, limit int, params *ParamBag) (*RecordCollection, error)
}

// SitemapFieldLister returns SitemapRecord projections instead of full records.
type SitemapFieldLister interface {
	GetSitemapFields(ctx context.Context, q Query, offset, limit int, params *ParamBag) (*RecordCollection, error)
}

// WorkExpressionLister lists the other expressions (editions, formats) of the
// work a record belongs to.
type WorkExpressionLister interface {
	WorkExpressions(ctx context.Context, id string, includeSelf bool, params *ParamBag) (*RecordCollection, error)
}

// QueryAnalyzer extracts the terms a backend would actually search for.
type QueryAnalyzer interface {
	GetSearchTerms(ctx context.Context, q Query) ([]string, error)
}

// TermsLister lists indexed terms of a field starting at from.
type TermsLister interface {
	Terms(ctx context.Context, field, from string, limit int, params *ParamBag) (*TermList, error)
}

// AlphabeticBrowser pages through an alphabetic browse index.
type AlphabeticBrowser interface {
	AlphabeticBrowse(ctx context.Context, source, from string, page, limit int, params *ParamBag, offsetDelta int) (*BrowseResult, error)
}

// RecordCollectionFactoryAware backends build their collections with a
// replaceable factory.
type RecordCollectionFactoryAware interface {
	SetRecordCollectionFactory(factory RecordCollectionFactory)
}

// RequestDetailer exposes backend-defined diagnostics about the last request.
type RequestDetailer interface {
	ResetExtraRequestDetails()
	ExtraRequestDetails() map[string]any
}

// ===================================================================
// SOFT-PROBE ACCESSORS
// ===================================================================
// These are probed without raising an error when the final accessor is
// missing; see GetUniqueKeyCommand and GetLuceneHelperCommand.

// ConnectorProvider exposes the low-level client a backend talks through.
type ConnectorProvider interface {
	Connector() any
}

// UniqueKeyProvider is implemented by connectors that know the name of the
// unique key field of their index.
type UniqueKeyProvider interface {
	UniqueKey() string
}

// QueryBuilderProvider exposes the component that turns Query values into
// backend requests.
type QueryBuilderProvider interface {
	QueryBuilder() any
}

// LuceneHelperProvider is implemented by query builders of Lucene-like
// backends.
type LuceneHelperProvider interface {
	LuceneHelper() LuceneHelper
}

// LuceneHelper inspects and normalizes Lucene query syntax.
type LuceneHelper interface {
	ContainsAdvancedSyntax(s string) bool
	Normalize(s string) string
}

// ===================================================================
// AUXILIARY INTERFACES
// ===================================================================

// HealthChecker is implemented by backends that can verify connectivity.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// TermCount is an indexed term and the number of records containing it.
type TermCount struct {
	Term  string `json:"term" yaml:"term"`
	Count int    `json:"count" yaml:"count"`
}

// TermList is the result of a Terms request.
type TermList struct {
	Field string      `json:"field" yaml:"field"`
	Terms []TermCount `json:"terms" yaml:"terms"`
}

// BrowseItem is a single heading in an alphabetic browse index.
type BrowseItem struct {
	Heading string   `json:"heading" yaml:"heading"`
	Count   int      `json:"count" yaml:"count"`
	IDs     []string `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// BrowseResult is a page of an alphabetic browse index.
type BrowseResult struct {
	Source     string       `json:"source" yaml:"source"`
	StartRow   int          `json:"startRow" yaml:"startRow"`
	TotalCount int          `json:"totalCount" yaml:"totalCount"`
	Items      []BrowseItem `json:"items" yaml:"items"`
}
