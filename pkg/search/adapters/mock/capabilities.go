package mock

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ search.BatchRetriever               = (*BatchBackend)(nil)
	_ search.RandomSampler                = (*RandomBackend)(nil)
	_ search.IDLister                     = (*IDBackend)(nil)
	_ search.SitemapFieldLister           = (*SitemapBackend)(nil)
	_ search.WorkExpressionLister         = (*WorkBackend)(nil)
	_ search.QueryAnalyzer                = (*AnalyzerBackend)(nil)
	_ search.TermsLister                  = (*TermsBackend)(nil)
	_ search.AlphabeticBrowser            = (*BrowseBackend)(nil)
	_ search.RecordCollectionFactoryAware = (*FactoryBackend)(nil)
	_ search.RequestDetailer              = (*DetailedBackend)(nil)
	_ search.ConnectorProvider            = (*ConnectedBackend)(nil)
	_ search.QueryBuilderProvider         = (*QueryBuilderBackend)(nil)
)

// BatchBackend adds search.BatchRetriever.
type BatchBackend struct{ *FakeBackend }

// WithBatch returns f with batch retrieval.
func (f *FakeBackend) WithBatch() *BatchBackend { return &BatchBackend{f} }

func (b *BatchBackend) RetrieveBatch(ctx context.Context, ids []string, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := b.record("retrieveBatch", ids, params); err != nil {
		return nil, err
	}
	b.mu.RLock()
	byID := make(map[string]*search.Document, len(b.records))
	for _, r := range b.records {
		byID[r.ID] = r
	}
	b.mu.RUnlock()

	var out []search.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return b.collection(out, len(out), 0), nil
}

// RandomBackend adds search.RandomSampler.
type RandomBackend struct{ *FakeBackend }

// WithRandom returns f with native random sampling.
func (f *FakeBackend) WithRandom() *RandomBackend { return &RandomBackend{f} }

func (b *RandomBackend) Random(ctx context.Context, q search.Query, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := b.record("random", q, limit, params); err != nil {
		return nil, err
	}
	matches := b.match(q)
	perm := rand.Perm(len(matches))
	var out []search.Record
	for _, i := range perm {
		if len(out) == limit {
			break
		}
		out = append(out, matches[i])
	}
	return b.collection(out, len(matches), 0), nil
}

// IDBackend adds search.IDLister.
type IDBackend struct{ *FakeBackend }

// WithIDs returns f with id listing.
func (f *FakeBackend) WithIDs() *IDBackend { return &IDBackend{f} }

func (b *IDBackend) GetIDs(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := b.record("getIds", q, offset, limit, params); err != nil {
		return nil, err
	}
	matches := b.match(q)
	var out []search.Record
	for _, r := range page(matches, offset, limit) {
		out = append(out, &search.IDRecord{ID: r.RecordID(), Source: b.id})
	}
	return b.collection(out, len(matches), offset), nil
}

// SitemapBackend adds search.SitemapFieldLister.
type SitemapBackend struct{ *FakeBackend }

// WithSitemap returns f with sitemap field listing.
func (f *FakeBackend) WithSitemap() *SitemapBackend { return &SitemapBackend{f} }

func (b *SitemapBackend) GetSitemapFields(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := b.record("getSitemapFields", q, offset, limit, params); err != nil {
		return nil, err
	}
	matches := b.match(q)
	var out []search.Record
	for _, r := range page(matches, offset, limit) {
		rec := &search.SitemapRecord{ID: r.RecordID(), Source: b.id}
		if doc, ok := r.(*search.Document); ok {
			if t, ok := doc.Fields["lastModified"].(time.Time); ok {
				rec.LastModified = t
			}
		}
		out = append(out, rec)
	}
	return b.collection(out, len(matches), offset), nil
}

// WorkBackend adds search.WorkExpressionLister using FakeBackend.WorkKeys.
type WorkBackend struct{ *FakeBackend }

// WithWorks returns f with work expression listing.
func (f *FakeBackend) WithWorks() *WorkBackend { return &WorkBackend{f} }

func (b *WorkBackend) WorkExpressions(ctx context.Context, id string, includeSelf bool, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := b.record("workExpressions", id, includeSelf, params); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	key, ok := b.WorkKeys[id]
	var out []search.Record
	if ok {
		for _, r := range b.records {
			if b.WorkKeys[r.ID] != key || (!includeSelf && r.ID == id) {
				continue
			}
			out = append(out, r)
		}
	}
	return b.factory(b.id, out, len(out), 0), nil
}

// AnalyzerBackend adds search.QueryAnalyzer; terms are the lower-cased
// whitespace-separated words of the query.
type AnalyzerBackend struct{ *FakeBackend }

// WithAnalyzer returns f with query analysis.
func (f *FakeBackend) WithAnalyzer() *AnalyzerBackend { return &AnalyzerBackend{f} }

func (b *AnalyzerBackend) GetSearchTerms(ctx context.Context, q search.Query) ([]string, error) {
	if err := b.record("getSearchTerms", q); err != nil {
		return nil, err
	}
	if search.IsMatchAll(q) {
		return []string{}, nil
	}
	return strings.Fields(strings.ToLower(q.String())), nil
}

// TermsBackend adds search.TermsLister over string field values.
type TermsBackend struct{ *FakeBackend }

// WithTerms returns f with term listing.
func (f *FakeBackend) WithTerms() *TermsBackend { return &TermsBackend{f} }

func (b *TermsBackend) Terms(ctx context.Context, field, from string, limit int, params *search.ParamBag) (*search.TermList, error) {
	if err := b.record("getTerms", field, from, limit, params); err != nil {
		return nil, err
	}
	list := &search.TermList{Field: field}
	for _, tc := range b.fieldTerms(field) {
		if tc.Term < from {
			continue
		}
		if limit > 0 && len(list.Terms) == limit {
			break
		}
		list.Terms = append(list.Terms, tc)
	}
	return list, nil
}

func (f *FakeBackend) fieldTerms(field string) []search.TermCount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	counts := make(map[string]int)
	for _, r := range f.records {
		if s, ok := r.Fields[field].(string); ok {
			counts[s]++
		}
	}
	out := make([]search.TermCount, 0, len(counts))
	for term, n := range counts {
		out = append(out, search.TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

// BrowseBackend adds search.AlphabeticBrowser over string field values,
// treating the browse source as a field name.
type BrowseBackend struct{ *FakeBackend }

// WithBrowse returns f with alphabetic browsing.
func (f *FakeBackend) WithBrowse() *BrowseBackend { return &BrowseBackend{f} }

func (b *BrowseBackend) AlphabeticBrowse(ctx context.Context, source, from string, page, limit int, params *search.ParamBag, offsetDelta int) (*search.BrowseResult, error) {
	if err := b.record("alphabeticBrowse", source, from, page, limit, params, offsetDelta); err != nil {
		return nil, err
	}
	terms := b.fieldTerms(source)
	start := sort.Search(len(terms), func(i int) bool { return terms[i].Term >= from })
	if page > 1 {
		start += (page - 1) * limit
	}
	start += offsetDelta
	if start < 0 {
		start = 0
	}

	result := &search.BrowseResult{Source: source, StartRow: start + 1, TotalCount: len(terms)}
	for i := start; i < len(terms) && len(result.Items) < limit; i++ {
		result.Items = append(result.Items, search.BrowseItem{Heading: terms[i].Term, Count: terms[i].Count})
	}
	return result, nil
}

// FactoryBackend adds search.RecordCollectionFactoryAware.
type FactoryBackend struct{ *FakeBackend }

// WithFactory returns f with a replaceable record collection factory.
func (f *FakeBackend) WithFactory() *FactoryBackend { return &FactoryBackend{f} }

func (b *FactoryBackend) SetRecordCollectionFactory(factory search.RecordCollectionFactory) {
	_ = b.record("setRecordCollectionFactory", factory)
	if factory == nil {
		factory = search.NewRecordCollection
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factory = factory
}

// DetailedBackend adds search.RequestDetailer reporting FakeBackend.Details.
type DetailedBackend struct {
	*FakeBackend
	resets int
}

// WithDetails returns f reporting details after every call.
func (f *FakeBackend) WithDetails(details map[string]any) *DetailedBackend {
	f.Details = details
	return &DetailedBackend{FakeBackend: f}
}

func (b *DetailedBackend) ResetExtraRequestDetails() {
	_ = b.record("resetExtraRequestDetails")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
}

// Resets returns how many times the details were reset.
func (b *DetailedBackend) Resets() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.resets
}

func (b *DetailedBackend) ExtraRequestDetails() map[string]any {
	_ = b.record("getExtraRequestDetails")
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Details
}

// Connector is a fake low-level client.
type Connector struct{}

// KeyedConnector is a fake client that knows its index's unique key.
type KeyedConnector struct {
	Key string
}

func (c *KeyedConnector) UniqueKey() string { return c.Key }

// ConnectedBackend adds search.ConnectorProvider.
type ConnectedBackend struct {
	*FakeBackend
	Conn any
}

// WithConnector returns f exposing conn as its connector.
func (f *FakeBackend) WithConnector(conn any) *ConnectedBackend {
	return &ConnectedBackend{FakeBackend: f, Conn: conn}
}

func (b *ConnectedBackend) Connector() any { return b.Conn }

// QueryBuilderBackend adds search.QueryBuilderProvider.
type QueryBuilderBackend struct {
	*FakeBackend
	Builder any
}

// WithQueryBuilder returns f exposing builder as its query builder.
func (f *FakeBackend) WithQueryBuilder(builder any) *QueryBuilderBackend {
	return &QueryBuilderBackend{FakeBackend: f, Builder: builder}
}

func (b *QueryBuilderBackend) QueryBuilder() any { return b.Builder }

// LuceneQueryBuilder is a fake query builder exposing a Lucene helper.
type LuceneQueryBuilder struct {
	Helper search.LuceneHelper
}

func (q *LuceneQueryBuilder) LuceneHelper() search.LuceneHelper { return q.Helper }
