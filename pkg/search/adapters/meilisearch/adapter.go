package meilisearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-hclog"
	"github.com/meilisearch/meilisearch-go"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ search.Backend           = (*Adapter)(nil)
	_ search.BatchRetriever    = (*Adapter)(nil)
	_ search.RequestDetailer   = (*Adapter)(nil)
	_ search.ConnectorProvider = (*Adapter)(nil)
	_ search.HealthChecker     = (*Adapter)(nil)
)

// Config contains Meilisearch configuration.
type Config struct {
	ID         string `hcl:"id,label"`
	Host       string `hcl:"host"`
	APIKey     string `hcl:"api_key,optional"`
	IndexName  string `hcl:"index"`
	PrimaryKey string `hcl:"primary_key,optional"` // must be filterable for batch retrieval
}

// Validate validates the Meilisearch configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Host, validation.Required, is.URL),
		validation.Field(&c.IndexName, validation.Required),
	)
}

// index is the part of meilisearch.IndexManager the adapter uses.
type index interface {
	SearchRawWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*json.RawMessage, error)
	GetDocumentWithContext(ctx context.Context, identifier string, request *meilisearch.DocumentQuery, documentPtr interface{}) error
	FetchPrimaryKeyWithContext(ctx context.Context) (*string, error)
}

// Adapter is a Meilisearch backend. Meilisearch has no random ordering, so
// random sampling falls back to paged searches.
type Adapter struct {
	id         string
	client     meilisearch.ServiceManager
	index      index
	primaryKey string
	logger     hclog.Logger

	mu      sync.Mutex
	details map[string]any
}

// NewAdapter creates a Meilisearch adapter. No request is made until the
// first operation.
func NewAdapter(cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("meilisearch config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid meilisearch config: %w", err)
	}

	client := meilisearch.New(cfg.Host, meilisearch.WithAPIKey(cfg.APIKey))
	return newAdapter(cfg, client, client.Index(cfg.IndexName), logger), nil
}

func newAdapter(cfg *Config, client meilisearch.ServiceManager, idx index, logger hclog.Logger) *Adapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	pk := cfg.PrimaryKey
	if pk == "" {
		pk = "id"
	}
	return &Adapter{
		id:         cfg.ID,
		client:     client,
		index:      idx,
		primaryKey: pk,
		logger:     logger.Named("meilisearch").With("backend", cfg.ID),
	}
}

func (a *Adapter) Identifier() string { return a.id }

// searchResponse is the subset of the Meilisearch search response we read.
type searchResponse struct {
	Hits               []map[string]any `json:"hits"`
	EstimatedTotalHits int64            `json:"estimatedTotalHits"`
	TotalHits          int64            `json:"totalHits"`
	ProcessingTimeMs   int64            `json:"processingTimeMs"`
	Query              string           `json:"query"`
}

func (r *searchResponse) total() int {
	if r.TotalHits > 0 {
		return int(r.TotalHits)
	}
	return int(r.EstimatedTotalHits)
}

func (a *Adapter) Search(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	text := ""
	if !search.IsMatchAll(q) {
		text = q.String()
	}

	req := &meilisearch.SearchRequest{
		Offset: int64(max(offset, 0)),
		Limit:  int64(max(limit, 0)),
	}
	if filters := params.Get("filter"); len(filters) > 0 {
		req.Filter = filters
	}
	if order := params.Get("sort"); len(order) > 0 {
		req.Sort = order
	}

	resp, err := a.search(ctx, "search", text, req)
	if err != nil {
		return nil, err
	}
	records := a.toRecords(resp.Hits)
	// Meilisearch ignores a zero limit and returns its default page.
	if limit <= 0 {
		records = nil
	}
	return search.NewRecordCollection(a.id, records, resp.total(), offset), nil
}

func (a *Adapter) Retrieve(ctx context.Context, id string, params *search.ParamBag) (*search.RecordCollection, error) {
	var doc map[string]any
	err := a.index.GetDocumentWithContext(ctx, id, &meilisearch.DocumentQuery{}, &doc)
	if err != nil {
		var apiErr *meilisearch.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return search.NewRecordCollection(a.id, nil, 0, 0), nil
		}
		return nil, &search.Error{Op: "retrieve", Backend: a.id, Err: err}
	}
	return search.NewRecordCollection(a.id, a.toRecords([]map[string]any{doc}), 1, 0), nil
}

// RetrieveBatch fetches all ids with one filtered search on the primary key
// and returns them in input order.
func (a *Adapter) RetrieveBatch(ctx context.Context, ids []string, params *search.ParamBag) (*search.RecordCollection, error) {
	if len(ids) == 0 {
		return search.NewRecordCollection(a.id, nil, 0, 0), nil
	}

	req := &meilisearch.SearchRequest{
		Limit:  int64(len(ids)),
		Filter: idFilter(a.primaryKey, ids),
	}
	resp, err := a.search(ctx, "retrieveBatch", "", req)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]search.Record, len(resp.Hits))
	for _, r := range a.toRecords(resp.Hits) {
		byID[r.RecordID()] = r
	}
	var out []search.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return search.NewRecordCollection(a.id, out, len(out), 0), nil
}

// idFilter builds `pk IN ["a", "b"]`.
func idFilter(pk string, ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s IN [%s]", pk, strings.Join(quoted, ", "))
}

func (a *Adapter) search(ctx context.Context, op, text string, req *meilisearch.SearchRequest) (*searchResponse, error) {
	raw, err := a.index.SearchRawWithContext(ctx, text, req)
	if err != nil {
		a.logger.Debug("meilisearch query failed", "operation", op, "error", err)
		return nil, &search.Error{Op: op, Backend: a.id, Err: err, Msg: "meilisearch query failed"}
	}

	var resp searchResponse
	if raw != nil {
		if err := json.Unmarshal(*raw, &resp); err != nil {
			return nil, &search.Error{Op: op, Backend: a.id, Err: err, Msg: "failed to decode response"}
		}
	}

	a.mu.Lock()
	a.details = map[string]any{
		"processing_time_ms":   resp.ProcessingTimeMs,
		"estimated_total_hits": resp.EstimatedTotalHits,
	}
	a.mu.Unlock()
	return &resp, nil
}

func (a *Adapter) toRecords(hits []map[string]any) []search.Record {
	out := make([]search.Record, 0, len(hits))
	for _, hit := range hits {
		out = append(out, &search.Document{ID: stringID(hit[a.primaryKey]), Source: a.id, Fields: hit})
	}
	return out
}

// stringID renders a primary key value, which Meilisearch allows to be an
// integer.
func stringID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
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

// Connector returns the index connector, which knows the index primary key.
func (a *Adapter) Connector() any {
	return &Connector{index: a.index, fallback: a.primaryKey}
}

// Healthy reports whether the Meilisearch server is available.
func (a *Adapter) Healthy(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	if !a.client.IsHealthy() {
		return fmt.Errorf("meilisearch is not healthy")
	}
	return nil
}

// Connector exposes the Meilisearch index behind an adapter.
type Connector struct {
	index    index
	fallback string
}

// UniqueKey returns the index primary key, or the configured key when the
// index cannot be asked.
func (c *Connector) UniqueKey() string {
	pk, err := c.index.FetchPrimaryKeyWithContext(context.Background())
	if err != nil || pk == nil || *pk == "" {
		return c.fallback
	}
	return *pk
}
