package bleve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/blevesearch/bleve/v2"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// GetIDs returns id-only records for matching documents.
func (a *Adapter) GetIDs(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	req := bleve.NewSearchRequestOptions(a.builder.Build(q, params), max(limit, 0), max(offset, 0), false)
	applySort(req, params)

	res, err := a.run(ctx, "getIds", req)
	if err != nil {
		return nil, err
	}
	out := make([]search.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, &search.IDRecord{ID: hit.ID, Source: a.id})
	}
	return a.collect(out, int(res.Total), offset), nil
}

// GetSitemapFields returns ids with last modification times. Unparseable
// timestamps are left zero.
func (a *Adapter) GetSitemapFields(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	field := a.cfg.lastModifiedField()
	req := bleve.NewSearchRequestOptions(a.builder.Build(q, params), max(limit, 0), max(offset, 0), false)
	req.Fields = []string{field}
	applySort(req, params)

	res, err := a.run(ctx, "getSitemapFields", req)
	if err != nil {
		return nil, err
	}
	out := make([]search.Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec := &search.SitemapRecord{ID: hit.ID, Source: a.id}
		if raw, ok := hit.Fields[field].(string); ok {
			if t, err := dateparse.ParseAny(raw); err == nil {
				rec.LastModified = t.UTC()
			} else {
				a.logger.Trace("unparseable timestamp", "id", hit.ID, "value", raw)
			}
		}
		out = append(out, rec)
	}
	return a.collect(out, int(res.Total), offset), nil
}

// fieldTerms reads the indexed terms of field in lexical order.
func (a *Adapter) fieldTerms(field string) ([]search.TermCount, error) {
	dict, err := a.index.FieldDict(field)
	if err != nil {
		return nil, &search.Error{Op: "fieldDict", Backend: a.id, Err: err}
	}
	defer dict.Close()

	var terms []search.TermCount
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, &search.Error{Op: "fieldDict", Backend: a.id, Err: err}
		}
		if entry == nil {
			break
		}
		terms = append(terms, search.TermCount{Term: entry.Term, Count: int(entry.Count)})
	}
	return terms, nil
}

// Terms lists indexed terms of field starting at from.
func (a *Adapter) Terms(ctx context.Context, field, from string, limit int, params *search.ParamBag) (*search.TermList, error) {
	terms, err := a.fieldTerms(field)
	if err != nil {
		return nil, err
	}
	list := &search.TermList{Field: field, Terms: []search.TermCount{}}
	for _, tc := range terms {
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

// AlphabeticBrowse pages through the terms of the field named by source. The
// page starts at the first term not before from, moved by whole pages and by
// offsetDelta rows. With the "include_ids" parameter set each heading lists
// the ids of documents carrying it.
func (a *Adapter) AlphabeticBrowse(ctx context.Context, source, from string, page, limit int, params *search.ParamBag, offsetDelta int) (*search.BrowseResult, error) {
	terms, err := a.fieldTerms(source)
	if err != nil {
		return nil, err
	}

	start := sort.Search(len(terms), func(i int) bool { return terms[i].Term >= from })
	if page > 1 {
		start += (page - 1) * limit
	}
	start = max(start+offsetDelta, 0)

	result := &search.BrowseResult{Source: source, StartRow: start + 1, TotalCount: len(terms), Items: []search.BrowseItem{}}
	_, withIDs := params.GetFirst("include_ids")
	for i := start; i < len(terms) && len(result.Items) < limit; i++ {
		item := search.BrowseItem{Heading: terms[i].Term, Count: terms[i].Count}
		if withIDs {
			ids, err := a.idsForTerm(ctx, source, terms[i].Term, terms[i].Count)
			if err != nil {
				return nil, err
			}
			item.IDs = ids
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (a *Adapter) idsForTerm(ctx context.Context, field, term string, count int) ([]string, error) {
	tq := bleve.NewTermQuery(term)
	tq.SetField(field)
	req := bleve.NewSearchRequestOptions(tq, count, 0, false)
	req.SortBy([]string{"_id"})

	res, err := a.run(ctx, "alphabeticBrowse", req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// GetSearchTerms analyzes the query text with the index's default analyzer,
// skipping boolean operators and field qualifiers.
func (a *Adapter) GetSearchTerms(ctx context.Context, q search.Query) ([]string, error) {
	if search.IsMatchAll(q) {
		return []string{}, nil
	}

	name := a.cfg.TextAnalyzer
	if name == "" {
		name = "standard"
	}
	analyzer := a.index.Mapping().AnalyzerNamed(name)
	if analyzer == nil {
		return nil, &search.Error{Op: "getSearchTerms", Backend: a.id, Msg: "no default analyzer"}
	}

	var words []string
	for _, w := range strings.Fields(q.String()) {
		switch w {
		case "AND", "OR", "NOT", "&&", "||":
			continue
		}
		if _, value, ok := strings.Cut(w, ":"); ok {
			w = value
		}
		words = append(words, strings.TrimLeft(w, "+-"))
	}

	terms := []string{}
	seen := make(map[string]bool)
	for _, token := range analyzer.Analyze([]byte(strings.Join(words, " "))) {
		t := string(token.Term)
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms, nil
}

// String describes the adapter for logs.
func (a *Adapter) String() string {
	return fmt.Sprintf("bleve(%s)", a.id)
}
