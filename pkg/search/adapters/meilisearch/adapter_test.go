package meilisearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
)

// fakeIndex answers searches with a canned response and records requests.
type fakeIndex struct {
	response   string
	err        error
	docs       map[string]map[string]any
	primaryKey *string

	queries  []string
	requests []*meilisearch.SearchRequest
}

func (f *fakeIndex) SearchRawWithContext(ctx context.Context, query string, request *meilisearch.SearchRequest) (*json.RawMessage, error) {
	f.queries = append(f.queries, query)
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}
	raw := json.RawMessage(f.response)
	return &raw, nil
}

func (f *fakeIndex) GetDocumentWithContext(ctx context.Context, identifier string, request *meilisearch.DocumentQuery, documentPtr interface{}) error {
	doc, ok := f.docs[identifier]
	if !ok {
		return &meilisearch.Error{StatusCode: http.StatusNotFound}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, documentPtr)
}

func (f *fakeIndex) FetchPrimaryKeyWithContext(ctx context.Context) (*string, error) {
	if f.primaryKey == nil {
		return nil, errors.New("index not found")
	}
	return f.primaryKey, nil
}

func newTestAdapter(idx *fakeIndex) *Adapter {
	return newAdapter(&Config{ID: "meili", Host: "http://localhost:7700", IndexName: "books"}, nil, idx, nil)
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "valid", cfg: Config{ID: "m", Host: "http://localhost:7700", IndexName: "books"}},
		{name: "missing host", cfg: Config{ID: "m", IndexName: "books"}, wantErr: true},
		{name: "missing index", cfg: Config{ID: "m", Host: "http://localhost:7700"}, wantErr: true},
		{name: "missing id", cfg: Config{Host: "http://localhost:7700", IndexName: "books"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewAdapter(t *testing.T) {
	_, err := NewAdapter(nil, nil)
	assert.Error(t, err)

	a, err := NewAdapter(&Config{ID: "meili", Host: "http://localhost:7700", IndexName: "books"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "meili", a.Identifier())
}

func TestAdapter_Search(t *testing.T) {
	idx := &fakeIndex{response: `{
		"hits": [{"id": "b1", "title": "Dune"}, {"id": 7, "title": "Emma"}],
		"estimatedTotalHits": 42,
		"processingTimeMs": 3,
		"query": "dune"
	}`}
	a := newTestAdapter(idx)

	params := search.NewParamBag(nil)
	params.Add("filter", "format = Book")
	res, err := a.Search(context.Background(), search.NewStringQuery("dune"), 10, 2, params)
	require.NoError(t, err)

	assert.Equal(t, 42, res.Total())
	assert.Equal(t, 10, res.Offset())
	assert.Equal(t, []string{"b1", "7"}, res.IDs())
	assert.Equal(t, "Dune", res.First().(*search.Document).Field("title"))

	require.Len(t, idx.requests, 1)
	assert.Equal(t, "dune", idx.queries[0])
	assert.Equal(t, int64(10), idx.requests[0].Offset)
	assert.Equal(t, int64(2), idx.requests[0].Limit)
	assert.Equal(t, []string{"format = Book"}, idx.requests[0].Filter)

	assert.Equal(t, int64(3), a.ExtraRequestDetails()["processing_time_ms"])
}

func TestAdapter_SearchCountOnly(t *testing.T) {
	idx := &fakeIndex{response: `{"hits": [{"id": "b1"}], "estimatedTotalHits": 9}`}
	a := newTestAdapter(idx)

	res, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Total())
	assert.Equal(t, 0, res.Len())
	assert.Equal(t, "", idx.queries[0])
}

func TestAdapter_SearchError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestAdapter(&fakeIndex{err: boom})

	_, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var searchErr *search.Error
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, "meili", searchErr.Backend)
}

func TestAdapter_Retrieve(t *testing.T) {
	a := newTestAdapter(&fakeIndex{docs: map[string]map[string]any{
		"b1": {"id": "b1", "title": "Dune"},
	}})

	res, err := a.Retrieve(context.Background(), "b1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, res.IDs())

	res, err = a.Retrieve(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestAdapter_RetrieveBatch(t *testing.T) {
	idx := &fakeIndex{response: `{"hits": [{"id": "a"}, {"id": "c"}, {"id": "b"}]}`}
	a := newTestAdapter(idx)

	res, err := a.RetrieveBatch(context.Background(), []string{"b", "x", "a", "c"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, res.IDs())
	assert.Equal(t, `id IN ["b", "x", "a", "c"]`, idx.requests[0].Filter)
	assert.Equal(t, int64(4), idx.requests[0].Limit)

	res, err = a.RetrieveBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Len(t, idx.requests, 1)
}

func TestAdapter_UniqueKey(t *testing.T) {
	pk := "isbn"
	a := newTestAdapter(&fakeIndex{primaryKey: &pk})

	cmd := command.NewGetUniqueKeyCommand("meili", nil)
	require.NoError(t, cmd.Execute(context.Background(), a))
	key, ok, err := cmd.UniqueKey()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "isbn", key)

	// Falls back to the configured key when the index is unreachable.
	a = newTestAdapter(&fakeIndex{})
	assert.Equal(t, "id", a.Connector().(*Connector).UniqueKey())
}

func TestAdapter_RandomFallsBack(t *testing.T) {
	idx := &fakeIndex{response: `{"hits": [{"id": "only"}], "estimatedTotalHits": 1}`}
	a := newTestAdapter(idx)

	cmd := command.NewRandomCommand("meili", search.MatchAllQuery{}, 5, nil)
	require.NoError(t, cmd.Execute(context.Background(), a))

	r, err := cmd.Result()
	require.NoError(t, err)
	assert.Equal(t, command.PathFallback, r.Path)
	records, err := cmd.Records()
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, records.IDs())

	// count probe, then one fetch of all matches
	require.Len(t, idx.requests, 2)
	assert.Equal(t, int64(0), idx.requests[0].Limit)
	assert.Equal(t, int64(5), idx.requests[1].Limit)
}
