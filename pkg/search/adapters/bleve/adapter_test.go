package bleve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
)

var modified = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(&Config{ID: "catalog", KeywordFields: []string{"format"}}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	docs := []*search.Document{
		{ID: "doc-1", Fields: map[string]any{"title": "Dune", "format": "Book", "last_modified": modified}},
		{ID: "doc-2", Fields: map[string]any{"title": "Dune Messiah", "format": "Book", "last_modified": modified.Add(time.Hour)}},
		{ID: "doc-3", Fields: map[string]any{"title": "Solaris", "format": "DVD"}},
		{ID: "doc-4", Fields: map[string]any{"title": "Foundation", "format": "Book"}},
		{ID: "doc-5", Fields: map[string]any{"title": "Nature Physics", "format": "Journal"}},
	}
	require.NoError(t, adapter.IndexBatch(context.Background(), docs))
	return adapter
}

func TestNewAdapter_Validation(t *testing.T) {
	_, err := NewAdapter(nil, nil)
	assert.Error(t, err)

	_, err = NewAdapter(&Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bleve config")
}

func TestAdapter_Search(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	res, err := a.Search(ctx, search.MatchAllQuery{}, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())
	assert.Equal(t, 1, res.Offset())
	assert.Equal(t, []string{"doc-2", "doc-3"}, res.IDs())
	assert.Equal(t, "catalog", res.SourceIdentifier())

	doc := res.First().(*search.Document)
	assert.Equal(t, "Dune Messiah", doc.Field("title"))

	res, err = a.Search(ctx, search.NewStringQuery("title:dune"), 0, 10, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc-1", "doc-2"}, res.IDs())

	res, err = a.Search(ctx, search.MatchAllQuery{}, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())
	assert.Equal(t, 0, res.Len())
}

func TestAdapter_SearchFilter(t *testing.T) {
	a := setupAdapter(t)

	params := search.NewParamBag(nil)
	params.Add("filter", "format:Book")
	res, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 10, params)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"doc-1", "doc-2", "doc-4"}, res.IDs())
}

func TestAdapter_Retrieve(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	res, err := a.Retrieve(ctx, "doc-3", nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "Solaris", res.First().(*search.Document).Field("title"))

	res, err = a.Retrieve(ctx, "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Nil(t, res.First())
}

func TestAdapter_RetrieveBatchKeepsInputOrder(t *testing.T) {
	a := setupAdapter(t)

	res, err := a.RetrieveBatch(context.Background(), []string{"doc-5", "missing", "doc-1", "doc-3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-5", "doc-1", "doc-3"}, res.IDs())

	res, err = a.RetrieveBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestAdapter_GetIDs(t *testing.T) {
	a := setupAdapter(t)

	res, err := a.GetIDs(context.Background(), search.MatchAllQuery{}, 0, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())
	assert.Equal(t, []string{"doc-1", "doc-2", "doc-3"}, res.IDs())
	_, ok := res.First().(*search.IDRecord)
	assert.True(t, ok)
}

func TestAdapter_GetSitemapFields(t *testing.T) {
	a := setupAdapter(t)

	res, err := a.GetSitemapFields(context.Background(), search.MatchAllQuery{}, 0, 3, nil)
	require.NoError(t, err)
	require.Equal(t, 3, res.Len())

	recs := res.Records()
	first := recs[0].(*search.SitemapRecord)
	assert.Equal(t, "doc-1", first.ID)
	assert.True(t, modified.Equal(first.LastModified), "got %s", first.LastModified)
	assert.True(t, modified.Add(time.Hour).Equal(recs[1].(*search.SitemapRecord).LastModified))
	assert.True(t, recs[2].(*search.SitemapRecord).LastModified.IsZero())
}

func TestAdapter_Terms(t *testing.T) {
	a := setupAdapter(t)

	list, err := a.Terms(context.Background(), "format", "C", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, "format", list.Field)
	assert.Equal(t, []search.TermCount{{Term: "DVD", Count: 1}, {Term: "Journal", Count: 1}}, list.Terms)

	list, err = a.Terms(context.Background(), "format", "", 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []search.TermCount{{Term: "Book", Count: 3}}, list.Terms)
}

func TestAdapter_AlphabeticBrowse(t *testing.T) {
	a := setupAdapter(t)

	params := search.NewParamBag(nil)
	params.Set("include_ids", "true")
	res, err := a.AlphabeticBrowse(context.Background(), "format", "B", 1, 2, params, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 1, res.StartRow)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Book", res.Items[0].Heading)
	assert.Equal(t, []string{"doc-1", "doc-2", "doc-4"}, res.Items[0].IDs)

	res, err = a.AlphabeticBrowse(context.Background(), "format", "DVD", 1, 5, nil, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.StartRow)
	assert.Len(t, res.Items, 3)
	assert.Nil(t, res.Items[0].IDs)
}

func TestAdapter_GetSearchTerms(t *testing.T) {
	a := setupAdapter(t)

	terms, err := a.GetSearchTerms(context.Background(), search.NewStringQuery("title:Dune AND Messiah dune"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dune", "messiah"}, terms)

	terms, err = a.GetSearchTerms(context.Background(), search.MatchAllQuery{})
	require.NoError(t, err)
	assert.Empty(t, terms)
}

func TestAdapter_RequestDetails(t *testing.T) {
	a := setupAdapter(t)

	_, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 1, nil)
	require.NoError(t, err)
	details := a.ExtraRequestDetails()
	require.NotNil(t, details)
	assert.Equal(t, uint64(5), details["total_hits"])

	a.ResetExtraRequestDetails()
	assert.Nil(t, a.ExtraRequestDetails())
}

func TestAdapter_RecordCollectionFactory(t *testing.T) {
	a := setupAdapter(t)

	var calls int
	a.SetRecordCollectionFactory(func(source string, records []search.Record, total, offset int) *search.RecordCollection {
		calls++
		return search.NewRecordCollection("wrapped-"+source, records, total, offset)
	})

	res, err := a.Retrieve(context.Background(), "doc-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "wrapped-catalog", res.SourceIdentifier())

	a.SetRecordCollectionFactory(nil)
	res, err = a.Retrieve(context.Background(), "doc-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "catalog", res.SourceIdentifier())
}

func TestAdapter_OnDisk(t *testing.T) {
	dir := t.TempDir() + "/catalog.bleve"
	ctx := context.Background()

	a, err := NewAdapter(&Config{ID: "disk", IndexPath: dir}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Index(ctx, &search.Document{ID: "x", Fields: map[string]any{"title": "Persisted"}}))
	require.NoError(t, a.Healthy(ctx))
	require.NoError(t, a.Close())

	reopened, err := NewAdapter(&Config{ID: "disk", IndexPath: dir}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	res, err := reopened.Retrieve(ctx, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())

	require.NoError(t, reopened.Delete(ctx, "x"))
	res, err = reopened.Search(ctx, search.MatchAllQuery{}, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total())
}

func TestAdapter_Clear(t *testing.T) {
	a := setupAdapter(t)
	require.NoError(t, a.Clear(context.Background()))

	res, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total())
}

func TestAdapter_Commands(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	t.Run("random falls back to search", func(t *testing.T) {
		cmd := command.NewRandomCommand("catalog", search.MatchAllQuery{}, 3, nil)
		require.NoError(t, cmd.Execute(ctx, a))
		r, err := cmd.Result()
		require.NoError(t, err)
		assert.Equal(t, command.PathFallback, r.Path)

		records, err := cmd.Records()
		require.NoError(t, err)
		assert.Equal(t, 3, records.Len())
		assert.Equal(t, 5, records.Total())
	})

	t.Run("batch retrieve is optimized", func(t *testing.T) {
		cmd := command.NewRetrieveBatchCommand("catalog", []string{"doc-4", "doc-2"}, nil)
		require.NoError(t, cmd.Execute(ctx, a))
		r, err := cmd.Result()
		require.NoError(t, err)
		assert.Equal(t, command.PathOptimized, r.Path)
		assert.Contains(t, r.Details, "took_ms")
	})

	t.Run("lucene helper via query builder", func(t *testing.T) {
		cmd := command.NewGetLuceneHelperCommand("catalog", nil)
		require.NoError(t, cmd.Execute(ctx, a))
		helper, err := cmd.LuceneHelper()
		require.NoError(t, err)
		require.NotNil(t, helper)
		assert.True(t, helper.ContainsAdvancedSyntax("title:dune"))
	})

	t.Run("unique key is unsupported", func(t *testing.T) {
		cmd := command.NewGetUniqueKeyCommand("catalog", nil)
		err := cmd.Execute(ctx, a)
		assert.ErrorIs(t, err, search.ErrUnsupportedOperation)
	})
}
