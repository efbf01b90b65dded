package algolia

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	algoliasearch "github.com/algolia/algoliasearch-client-go/v3/algolia/search"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Compile-time interface checks
var (
	_ search.Backend           = (*Adapter)(nil)
	_ search.BatchRetriever    = (*Adapter)(nil)
	_ search.IDLister          = (*Adapter)(nil)
	_ search.RequestDetailer   = (*Adapter)(nil)
	_ search.ConnectorProvider = (*Adapter)(nil)
	_ search.HealthChecker     = (*Adapter)(nil)
)

// objectIDKey is the unique key of every Algolia index.
const objectIDKey = "objectID"

// Config contains Algolia configuration.
type Config struct {
	ID        string `hcl:"id,label"`
	AppID     string `hcl:"app_id"`
	APIKey    string `hcl:"api_key"`
	IndexName string `hcl:"index"`
}

// Validate validates the Algolia configuration.
func (c Config) Validate() error {
	if c.AppID == "" || c.APIKey == "" {
		return fmt.Errorf("algolia credentials required")
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.IndexName, validation.Required),
	)
}

// index is the part of *algoliasearch.Index the adapter uses.
type index interface {
	Search(query string, opts ...interface{}) (algoliasearch.QueryRes, error)
	GetObjects(objectIDs []string, objects interface{}, opts ...interface{}) error
	Exists() (bool, error)
}

// Adapter is an Algolia backend.
type Adapter struct {
	id     string
	index  index
	logger hclog.Logger

	mu      sync.Mutex
	details map[string]any
}

// NewAdapter creates an Algolia adapter. No request is made until the first
// operation.
func NewAdapter(cfg *Config, logger hclog.Logger) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("algolia config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid algolia config: %w", err)
	}

	client := algoliasearch.NewClient(cfg.AppID, cfg.APIKey)
	return newAdapter(cfg.ID, client.InitIndex(cfg.IndexName), logger), nil
}

func newAdapter(id string, idx index, logger hclog.Logger) *Adapter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Adapter{
		id:     id,
		index:  idx,
		logger: logger.Named("algolia").With("backend", id),
	}
}

func (a *Adapter) Identifier() string { return a.id }

func (a *Adapter) Search(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	res, err := a.search("search", q, offset, limit, params)
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, a.toRecords(res.Hits), res.NbHits, offset), nil
}

// GetIDs runs the search retrieving only objectID.
func (a *Adapter) GetIDs(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	res, err := a.search("getIds", q, offset, limit, params, opt.AttributesToRetrieve(objectIDKey))
	if err != nil {
		return nil, err
	}
	out := make([]search.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, _ := hit[objectIDKey].(string)
		out = append(out, &search.IDRecord{ID: id, Source: a.id})
	}
	return search.NewRecordCollection(a.id, out, res.NbHits, offset), nil
}

func (a *Adapter) search(op string, q search.Query, offset, limit int, params *search.ParamBag, extra ...interface{}) (algoliasearch.QueryRes, error) {
	text := ""
	if !search.IsMatchAll(q) {
		text = q.String()
	}

	opts := []interface{}{opt.Offset(max(offset, 0)), opt.Length(max(limit, 0))}
	if filters := params.Get("filter"); len(filters) > 0 {
		opts = append(opts, opt.Filters(strings.Join(filters, " AND ")))
	}
	opts = append(opts, extra...)

	res, err := a.index.Search(text, opts...)
	if err != nil {
		a.logger.Debug("algolia query failed", "operation", op, "error", err)
		return res, &search.Error{Op: op, Backend: a.id, Err: err, Msg: "algolia query failed"}
	}

	a.mu.Lock()
	a.details = map[string]any{
		"processing_time_ms": res.ProcessingTimeMS,
		"nb_hits":            res.NbHits,
	}
	a.mu.Unlock()
	return res, nil
}

func (a *Adapter) Retrieve(ctx context.Context, id string, params *search.ParamBag) (*search.RecordCollection, error) {
	records, err := a.getObjects("retrieve", []string{id})
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, records, len(records), 0), nil
}

// RetrieveBatch fetches ids with a single getObjects request. Algolia answers
// in request order with null for unknown ids, which are skipped.
func (a *Adapter) RetrieveBatch(ctx context.Context, ids []string, params *search.ParamBag) (*search.RecordCollection, error) {
	if len(ids) == 0 {
		return search.NewRecordCollection(a.id, nil, 0, 0), nil
	}
	records, err := a.getObjects("retrieveBatch", ids)
	if err != nil {
		return nil, err
	}
	return search.NewRecordCollection(a.id, records, len(records), 0), nil
}

func (a *Adapter) getObjects(op string, ids []string) ([]search.Record, error) {
	var objects []map[string]any
	if err := a.index.GetObjects(ids, &objects); err != nil {
		return nil, &search.Error{Op: op, Backend: a.id, Err: err}
	}
	var hits []map[string]any
	for _, obj := range objects {
		if obj != nil {
			hits = append(hits, obj)
		}
	}
	return a.toRecords(hits), nil
}

func (a *Adapter) toRecords(hits []map[string]any) []search.Record {
	out := make([]search.Record, 0, len(hits))
	for _, hit := range hits {
		id, _ := hit[objectIDKey].(string)
		out = append(out, &search.Document{ID: id, Source: a.id, Fields: hit})
	}
	return out
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

// Connector returns the Algolia index connector.
func (a *Adapter) Connector() any { return Connector{} }

// Healthy checks that the index exists.
func (a *Adapter) Healthy(ctx context.Context) error {
	ok, err := a.index.Exists()
	if err != nil {
		return fmt.Errorf("algolia unreachable: %w", err)
	}
	if !ok {
		return fmt.Errorf("algolia index does not exist")
	}
	return nil
}

// Connector describes an Algolia index.
type Connector struct{}

// UniqueKey is always objectID.
func (Connector) UniqueKey() string { return objectIDKey }
