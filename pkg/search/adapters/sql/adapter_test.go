package sql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
)

var modified = time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)

func setupAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(&Config{ID: "catalog", Driver: "sqlite", DSN: ":memory:", AutoMigrate: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.Save(context.Background(),
		&CatalogRecord{ID: "r1", WorkKey: "w-dune", Title: "Dune", Body: "desert planet", LastModified: &modified,
			Fields: map[string]any{"format": "Book"}},
		&CatalogRecord{ID: "r2", WorkKey: "w-dune", Title: "Dune (audiobook)", Fields: map[string]any{"format": "Audio"}},
		&CatalogRecord{ID: "r3", WorkKey: "w-dune", Title: "Dune", Body: "large print"},
		&CatalogRecord{ID: "r4", Title: "Solaris", Body: "ocean planet"},
		&CatalogRecord{ID: "r5", WorkKey: "w-emma", Title: "Emma"},
	))
	return a
}

func TestConfig_Validation(t *testing.T) {
	assert.NoError(t, Config{ID: "c", Driver: "sqlite", DSN: ":memory:"}.Validate())
	assert.Error(t, Config{Driver: "sqlite", DSN: ":memory:"}.Validate())
	assert.Error(t, Config{ID: "c", Driver: "mysql", DSN: "x"}.Validate())
	assert.Error(t, Config{ID: "c", Driver: "postgres"}.Validate())

	_, err := NewAdapter(nil, nil)
	assert.Error(t, err)
}

func TestAdapter_Search(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	res, err := a.Search(ctx, search.NewStringQuery("planet"), 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total())
	assert.Equal(t, []string{"r1", "r4"}, res.IDs())

	doc := res.First().(*search.Document)
	assert.Equal(t, "Dune", doc.Field("title"))
	assert.Equal(t, "Book", doc.Field("format"))
	assert.Equal(t, "2024-05-02T09:00:00Z", doc.Field("last_modified"))

	res, err = a.Search(ctx, search.NewStringQuery("title:dune AND print"), 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3"}, res.IDs())

	res, err = a.Search(ctx, search.MatchAllQuery{}, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())
	assert.Equal(t, 1, res.Offset())
	assert.Equal(t, []string{"r2", "r3"}, res.IDs())

	res, err = a.Search(ctx, search.MatchAllQuery{}, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Total())
	assert.Equal(t, 0, res.Len())
}

func TestAdapter_SearchFilterAndSort(t *testing.T) {
	a := setupAdapter(t)

	params := search.NewParamBag(nil)
	params.Add("filter", "work_key:w-dune")
	params.Set("sort", "-id")
	res, err := a.Search(context.Background(), search.MatchAllQuery{}, 0, 10, params)
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2", "r1"}, res.IDs())

	bad := search.NewParamBag(nil)
	bad.Add("filter", "format:Book")
	_, err = a.Search(context.Background(), search.MatchAllQuery{}, 0, 10, bad)
	assert.ErrorIs(t, err, search.ErrInvalidQuery)
}

func TestAdapter_RetrieveBatchKeepsInputOrder(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	res, err := a.RetrieveBatch(ctx, []string{"r5", "nope", "r2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r5", "r2"}, res.IDs())

	res, err = a.Retrieve(ctx, "nope", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = a.RetrieveBatch(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestAdapter_Random(t *testing.T) {
	a := setupAdapter(t)

	cmd := command.NewRandomCommand("catalog", search.MatchAllQuery{}, 3, nil)
	require.NoError(t, cmd.Execute(context.Background(), a))
	r, err := cmd.Result()
	require.NoError(t, err)
	assert.Equal(t, command.PathOptimized, r.Path)

	records, err := cmd.Records()
	require.NoError(t, err)
	assert.Equal(t, 3, records.Len())
	assert.Equal(t, 5, records.Total())
	assert.Subset(t, []string{"r1", "r2", "r3", "r4", "r5"}, records.IDs())
}

func TestAdapter_Projections(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	ids, err := a.GetIDs(ctx, search.MatchAllQuery{}, 0, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, ids.IDs())
	assert.Equal(t, 5, ids.Total())
	_, ok := ids.First().(*search.IDRecord)
	assert.True(t, ok)

	sitemap, err := a.GetSitemapFields(ctx, search.MatchAllQuery{}, 0, 2, nil)
	require.NoError(t, err)
	recs := sitemap.Records()
	require.Len(t, recs, 2)
	assert.True(t, modified.Equal(recs[0].(*search.SitemapRecord).LastModified))
	assert.True(t, recs[1].(*search.SitemapRecord).LastModified.IsZero())
}

func TestAdapter_WorkExpressions(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	res, err := a.WorkExpressions(ctx, "r1", false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r3"}, res.IDs())

	res, err = a.WorkExpressions(ctx, "r1", true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r3"}, res.IDs())

	res, err = a.WorkExpressions(ctx, "r4", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	res, err = a.WorkExpressions(ctx, "missing", true, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	cmd := command.NewWorkExpressionsCommand("catalog", "r5", true, nil)
	require.NoError(t, cmd.Execute(ctx, a))
	records, err := cmd.Records()
	require.NoError(t, err)
	assert.Equal(t, []string{"r5"}, records.IDs())
}

func TestAdapter_SaveUpdates(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, &CatalogRecord{ID: "r4", Title: "Solaris (revised)"}))
	res, err := a.Retrieve(ctx, "r4", nil)
	require.NoError(t, err)
	assert.Equal(t, "Solaris (revised)", res.First().(*search.Document).Field("title"))
}

func TestAdapter_RequestDetailsAndHealth(t *testing.T) {
	a := setupAdapter(t)
	ctx := context.Background()

	_, err := a.Search(ctx, search.MatchAllQuery{}, 0, 1, nil)
	require.NoError(t, err)
	details := a.ExtraRequestDetails()
	assert.Equal(t, 5, details["total"])
	assert.Equal(t, 1, details["rows"])

	a.ResetExtraRequestDetails()
	assert.Nil(t, a.ExtraRequestDetails())
	assert.NoError(t, a.Healthy(ctx))
}
