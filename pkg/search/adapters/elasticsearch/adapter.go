package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"

	dispatch "github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ dispatch.Backend         = (*Adapter)(nil)
	_ dispatch.BatchRetriever  = (*Adapter)(nil)
	_ dispatch.RandomSampler   = (*Adapter)(nil)
	_ dispatch.IDLister        = (*Adapter)(nil)
	_ dispatch.RequestDetailer = (*Adapter)(nil)
	_ dispatch.HealthChecker   = (*Adapter)(nil)
)

// Config contains Elasticsearch configuration.
type Config struct {
	ID        string   `hcl:"id,label"`
	Addresses []string `hcl:"addresses"`
	Username  string   `hcl:"username,optional"`
	Password  string   `hcl:"password,optional"`
	IndexName string   `hcl:"index"`
}

// Validate validates the Elasticsearch configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Addresses, validation.Required),
		validation.Field(&c.IndexName, validation.Required),
	)
}

// Adapter is an Elasticsearch backend using the typed client.
type Adapter struct {
	id        string
	client    *elasticsearch.TypedClient
	indexName string
	logger    hclog.Logger

	mu      sync.Mutex
	details map[string]any
}

// NewAdapter creates an Elasticsearch adapter. No request is made until the
// first operation.
func NewAdapter(cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("elasticsearch config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid elasticsearch config: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	esCfg := elasticsearch.Config{Addresses: cfg.Addresses}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	client, err := elasticsearch.NewTypedClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &Adapter{
		id:        cfg.ID,
		client:    client,
		indexName: cfg.IndexName,
		logger:    logger.Named("elasticsearch").With("backend", cfg.ID),
	}, nil
}

func (a *Adapter) Identifier() string { return a.id }

// buildQuery turns q into a query_string query, or match_all, and adds every
// "filter" parameter as a query_string filter clause.
func buildQuery(q dispatch.Query, params *dispatch.ParamBag) *types.Query {
	var base *types.Query
	if dispatch.IsMatchAll(q) {
		base = &types.Query{MatchAll: &types.MatchAllQuery{}}
	} else {
		base = &types.Query{QueryString: &types.QueryStringQuery{Query: q.String()}}
	}

	filters := params.Get("filter")
	if len(filters) == 0 {
		return base
	}
	clauses := make([]types.Query, 0, len(filters))
	for _, f := range filters {
		clauses = append(clauses, types.Query{QueryString: &types.QueryStringQuery{Query: f}})
	}
	return &types.Query{Bool: &types.BoolQuery{
		Must:   []types.Query{*base},
		Filter: clauses,
	}}
}

func (a *Adapter) Search(ctx context.Context, q dispatch.Query, offset, limit int, params *dispatch.ParamBag) (*dispatch.RecordCollection, error) {
	req := a.client.Search().
		Index(a.indexName).
		Query(buildQuery(q, params)).
		From(max(offset, 0)).
		Size(max(limit, 0)).
		TrackTotalHits(true)

	res, err := a.do(ctx, "search", req)
	if err != nil {
		return nil, err
	}
	records, err := a.toDocuments(res.Hits.Hits)
	if err != nil {
		return nil, err
	}
	return dispatch.NewRecordCollection(a.id, records, totalHits(res), offset), nil
}

func (a *Adapter) Retrieve(ctx context.Context, id string, params *dispatch.ParamBag) (*dispatch.RecordCollection, error) {
	records, err := a.byIDs(ctx, "retrieve", []string{id})
	if err != nil {
		return nil, err
	}
	return dispatch.NewRecordCollection(a.id, records, len(records), 0), nil
}

// RetrieveBatch fetches ids with one ids query and returns them in input
// order. Unknown ids are skipped.
func (a *Adapter) RetrieveBatch(ctx context.Context, ids []string, params *dispatch.ParamBag) (*dispatch.RecordCollection, error) {
	records, err := a.byIDs(ctx, "retrieveBatch", ids)
	if err != nil {
		return nil, err
	}
	return dispatch.NewRecordCollection(a.id, records, len(records), 0), nil
}

func (a *Adapter) byIDs(ctx context.Context, op string, ids []string) ([]dispatch.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req := a.client.Search().
		Index(a.indexName).
		Query(&types.Query{Ids: &types.IdsQuery{Values: ids}}).
		Size(len(ids))

	res, err := a.do(ctx, op, req)
	if err != nil {
		return nil, err
	}
	docs, err := a.toDocuments(res.Hits.Hits)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]dispatch.Record, len(docs))
	for _, d := range docs {
		byID[d.RecordID()] = d
	}
	var out []dispatch.Record
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// Random samples with a function_score random_score query.
func (a *Adapter) Random(ctx context.Context, q dispatch.Query, limit int, params *dispatch.ParamBag) (*dispatch.RecordCollection, error) {
	req := a.client.Search().
		Index(a.indexName).
		Query(&types.Query{FunctionScore: &types.FunctionScoreQuery{
			Query:     buildQuery(q, params),
			Functions: []types.FunctionScore{{RandomScore: &types.RandomScoreFunction{}}},
		}}).
		Size(max(limit, 0)).
		TrackTotalHits(true)

	res, err := a.do(ctx, "random", req)
	if err != nil {
		return nil, err
	}
	records, err := a.toDocuments(res.Hits.Hits)
	if err != nil {
		return nil, err
	}
	return dispatch.NewRecordCollection(a.id, records, totalHits(res), 0), nil
}

// GetIDs returns id-only records for matching documents.
func (a *Adapter) GetIDs(ctx context.Context, q dispatch.Query, offset, limit int, params *dispatch.ParamBag) (*dispatch.RecordCollection, error) {
	req := a.client.Search().
		Index(a.indexName).
		Query(buildQuery(q, params)).
		From(max(offset, 0)).
		Size(max(limit, 0)).
		TrackTotalHits(true)

	res, err := a.do(ctx, "getIds", req)
	if err != nil {
		return nil, err
	}
	out := make([]dispatch.Record, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		out = append(out, &dispatch.IDRecord{ID: hitID(hit), Source: a.id})
	}
	return dispatch.NewRecordCollection(a.id, out, totalHits(res), offset), nil
}

func (a *Adapter) do(ctx context.Context, op string, req *search.Search) (*search.Response, error) {
	res, err := req.Do(ctx)
	if err != nil {
		a.logger.Debug("elasticsearch query failed", "operation", op, "error", err)
		return nil, &dispatch.Error{Op: op, Backend: a.id, Err: err, Msg: "elasticsearch query failed"}
	}

	details := map[string]any{"took_ms": res.Took, "timed_out": res.TimedOut}
	if res.Hits.MaxScore != nil {
		details["max_score"] = float64(*res.Hits.MaxScore)
	}
	a.mu.Lock()
	a.details = details
	a.mu.Unlock()
	return res, nil
}

func (a *Adapter) toDocuments(hits []types.Hit) ([]dispatch.Record, error) {
	out := make([]dispatch.Record, 0, len(hits))
	for _, hit := range hits {
		fields := map[string]any{}
		if len(hit.Source_) > 0 {
			if err := json.Unmarshal(hit.Source_, &fields); err != nil {
				return nil, &dispatch.Error{Op: "decode", Backend: a.id, Err: err, Msg: "failed to unmarshal document"}
			}
		}
		out = append(out, &dispatch.Document{ID: hitID(hit), Source: a.id, Fields: fields})
	}
	return out, nil
}

func hitID(hit types.Hit) string {
	if hit.Id_ == nil {
		return ""
	}
	return *hit.Id_
}

func totalHits(res *search.Response) int {
	if res.Hits.Total == nil {
		return len(res.Hits.Hits)
	}
	return int(res.Hits.Total.Value)
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

// Healthy checks that the index exists.
func (a *Adapter) Healthy(ctx context.Context) error {
	exists, err := a.client.Indices.Exists(a.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("elasticsearch unreachable: %w", err)
	}
	if !exists {
		return fmt.Errorf("index %s does not exist", a.indexName)
	}
	return nil
}

// String describes the adapter for logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("elasticsearch(%s/%s)", a.id, strings.ToLower(a.indexName))
}
