package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ search.Backend                      = (*Adapter)(nil)
	_ search.BatchRetriever               = (*Adapter)(nil)
	_ search.IDLister                     = (*Adapter)(nil)
	_ search.SitemapFieldLister           = (*Adapter)(nil)
	_ search.TermsLister                  = (*Adapter)(nil)
	_ search.AlphabeticBrowser            = (*Adapter)(nil)
	_ search.QueryAnalyzer                = (*Adapter)(nil)
	_ search.QueryBuilderProvider         = (*Adapter)(nil)
	_ search.RequestDetailer              = (*Adapter)(nil)
	_ search.RecordCollectionFactoryAware = (*Adapter)(nil)
	_ search.HealthChecker                = (*Adapter)(nil)
)

// Adapter is an embedded Bleve full-text backend. It does not implement
// search.RandomSampler.
type Adapter struct {
	id     string
	cfg    *Config
	index  bleve.Index
	logger hclog.Logger

	mu      sync.Mutex
	factory search.RecordCollectionFactory
	details map[string]any
	builder *QueryBuilder
}

// Config contains Bleve configuration.
type Config struct {
	// ID is the backend identifier.
	ID string `hcl:"id,label"`

	// IndexPath is the on-disk index location. Empty means in-memory.
	IndexPath string `hcl:"index_path,optional"`

	// KeywordFields are indexed unanalyzed, for exact filters, terms and
	// browsing.
	KeywordFields []string `hcl:"keyword_fields,optional"`

	// TextAnalyzer is the analyzer for all other text fields.
	TextAnalyzer string `hcl:"text_analyzer,optional"`

	// LastModifiedField holds the modification timestamp used for sitemaps.
	LastModifiedField string `hcl:"last_modified_field,optional"`
}

// Validate validates the Bleve configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
	)
}

func (c *Config) lastModifiedField() string {
	if c.LastModifiedField == "" {
		return "last_modified"
	}
	return c.LastModifiedField
}

// NewAdapter opens or creates the index described by cfg.
func NewAdapter(cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bleve config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bleve config: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	idx, err := openOrCreateIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open bleve index: %w", err)
	}

	return &Adapter{
		id:      cfg.ID,
		cfg:     cfg,
		index:   idx,
		logger:  logger.Named("bleve").With("backend", cfg.ID),
		factory: search.NewRecordCollection,
		builder: &QueryBuilder{helper: search.NewLuceneSyntaxHelper()},
	}, nil
}

func openOrCreateIndex(cfg *Config) (bleve.Index, error) {
	if cfg.IndexPath == "" {
		return bleve.NewMemOnly(createMapping(cfg))
	}
	idx, err := bleve.Open(cfg.IndexPath)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		return bleve.New(cfg.IndexPath, createMapping(cfg))
	}
	return idx, err
}

// createMapping maps keyword and timestamp fields explicitly and leaves the
// rest dynamic.
func createMapping(cfg *Config) mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	for _, f := range cfg.KeywordFields {
		docMapping.AddFieldMappingsAt(f, keywordFieldMapping)
	}
	docMapping.AddFieldMappingsAt(cfg.lastModifiedField(), dateFieldMapping)

	if cfg.TextAnalyzer != "" {
		indexMapping.DefaultAnalyzer = cfg.TextAnalyzer
	}
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

func (a *Adapter) Identifier() string { return a.id }

// Healthy checks that the index is readable.
func (a *Adapter) Healthy(ctx context.Context) error {
	if _, err := a.index.DocCount(); err != nil {
		return fmt.Errorf("bleve index unhealthy: %w", err)
	}
	return nil
}

// Close closes the index.
func (a *Adapter) Close() error {
	return a.index.Close()
}

// Index adds or replaces a document.
func (a *Adapter) Index(ctx context.Context, doc *search.Document) error {
	return a.index.Index(doc.ID, doc.Fields)
}

// IndexBatch adds or replaces documents in one batch.
func (a *Adapter) IndexBatch(ctx context.Context, docs []*search.Document) error {
	batch := a.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			return fmt.Errorf("failed to add document to batch: %w", err)
		}
	}
	return a.index.Batch(batch)
}

// Delete removes a document.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	return a.index.Delete(id)
}

func (a *Adapter) Search(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	req := bleve.NewSearchRequestOptions(a.builder.Build(q, params), max(limit, 0), max(offset, 0), false)
	req.Fields = []string{"*"}
	applySort(req, params)

	res, err := a.run(ctx, "search", req)
	if err != nil {
		return nil, err
	}
	return a.collect(hitsToDocuments(a.id, res), int(res.Total), offset), nil
}

func (a *Adapter) Retrieve(ctx context.Context, id string, params *search.ParamBag) (*search.RecordCollection, error) {
	records, err := a.byIDs(ctx, "retrieve", []string{id})
	if err != nil {
		return nil, err
	}
	return a.collect(records, len(records), 0), nil
}

// RetrieveBatch fetches ids with one doc id query, returning records in input
// order. Unknown ids are skipped.
func (a *Adapter) RetrieveBatch(ctx context.Context, ids []string, params *search.ParamBag) (*search.RecordCollection, error) {
	records, err := a.byIDs(ctx, "retrieveBatch", ids)
	if err != nil {
		return nil, err
	}
	return a.collect(records, len(records), 0), nil
}

func (a *Adapter) byIDs(ctx context.Context, op string, ids []string) ([]search.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery(ids), len(ids), 0, false)
	req.Fields = []string{"*"}

	res, err := a.run(ctx, op, req)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]search.Record, len(res.Hits))
	for _, r := range hitsToDocuments(a.id, res) {
		byID[r.RecordID()] = r
	}
	var out []search.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// run executes req and records its timing details.
func (a *Adapter) run(ctx context.Context, op string, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	res, err := a.index.SearchInContext(ctx, req)
	if err != nil {
		a.logger.Debug("bleve query failed", "operation", op, "error", err)
		return nil, &search.Error{Op: op, Backend: a.id, Err: err, Msg: "bleve query failed"}
	}

	a.mu.Lock()
	a.details = map[string]any{
		"took_ms":    res.Took.Milliseconds(),
		"total_hits": res.Total,
		"max_score":  res.MaxScore,
	}
	a.mu.Unlock()
	return res, nil
}

func (a *Adapter) collect(records []search.Record, total, offset int) *search.RecordCollection {
	a.mu.Lock()
	factory := a.factory
	a.mu.Unlock()
	return factory(a.id, records, total, offset)
}

func (a *Adapter) ResetExtraRequestDetails() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.details = nil
}

func (a *Adapter) ExtraRequestDetails() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.details
}

func (a *Adapter) SetRecordCollectionFactory(factory search.RecordCollectionFactory) {
	if factory == nil {
		factory = search.NewRecordCollection
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.factory = factory
}

// QueryBuilder returns the builder translating queries for this index.
func (a *Adapter) QueryBuilder() any { return a.builder }

// QueryBuilder translates search queries and parameters into Bleve queries.
type QueryBuilder struct {
	helper *search.LuceneSyntaxHelper
}

// LuceneHelper returns the helper for the query string syntax Bleve accepts.
func (b *QueryBuilder) LuceneHelper() search.LuceneHelper { return b.helper }

// Build converts q into a Bleve query. Each "filter" parameter of the form
// field:value narrows the result with a phrase match on that field.
func (b *QueryBuilder) Build(q search.Query, params *search.ParamBag) query.Query {
	var base query.Query
	if search.IsMatchAll(q) {
		base = bleve.NewMatchAllQuery()
	} else {
		base = bleve.NewQueryStringQuery(b.helper.Normalize(q.String()))
	}

	var filters []query.Query
	for _, f := range params.Get("filter") {
		field, value, ok := strings.Cut(f, ":")
		if !ok || field == "" {
			continue
		}
		match := bleve.NewMatchPhraseQuery(strings.Trim(value, `"`))
		match.SetField(field)
		filters = append(filters, match)
	}
	if len(filters) == 0 {
		return base
	}
	return bleve.NewConjunctionQuery(append([]query.Query{base}, filters...)...)
}

// applySort honours a "sort" parameter such as "-last_modified". Results are
// otherwise ordered by score with the document id breaking ties.
func applySort(req *bleve.SearchRequest, params *search.ParamBag) {
	order := append([]string(nil), params.Get("sort")...)
	if len(order) == 0 {
		order = []string{"-_score"}
	}
	req.SortBy(append(order, "_id"))
}

func hitsToDocuments(source string, res *bleve.SearchResult) []search.Record {
	out := make([]search.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		fields := hit.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		out = append(out, &search.Document{ID: hit.ID, Source: source, Fields: fields})
	}
	return out
}

// Clear removes every document by recreating the index.
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	if a.cfg.IndexPath != "" {
		if err := os.RemoveAll(a.cfg.IndexPath); err != nil {
			return fmt.Errorf("failed to remove index: %w", err)
		}
	}
	idx, err := openOrCreateIndex(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	a.index = idx
	return nil
}
