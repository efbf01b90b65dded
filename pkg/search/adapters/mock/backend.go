// Package mock provides in-memory fake backends for testing.
//
// FakeBackend implements only the baseline search.Backend contract. Each
// With* method returns a wrapper that adds exactly one optional capability,
// so tests can choose precisely which capabilities a backend exposes. All
// wrappers share the FakeBackend's records and call log.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Call records one backend method invocation.
type Call struct {
	Method string
	Args   []any
}

// FakeBackend is an in-memory baseline backend.
type FakeBackend struct {
	mu sync.RWMutex

	id      string
	records []*search.Document
	factory search.RecordCollectionFactory

	// Calls logs every backend method invocation in order.
	Calls []Call

	// Errors makes the named method fail with the given error.
	Errors map[string]error

	// RetrieveErrors makes Retrieve fail for specific ids.
	RetrieveErrors map[string]error

	// Details are reported by wrappers implementing search.RequestDetailer.
	Details map[string]any

	// WorkKeys groups record ids into works for WorkExpressions.
	WorkKeys map[string]string
}

var _ search.Backend = (*FakeBackend)(nil)

// NewFakeBackend creates a fake backend holding records in the given order.
func NewFakeBackend(id string, records ...*search.Document) *FakeBackend {
	for _, r := range records {
		if r.Source == "" {
			r.Source = id
		}
	}
	return &FakeBackend{
		id:             id,
		records:        records,
		factory:        search.NewRecordCollection,
		Errors:         make(map[string]error),
		RetrieveErrors: make(map[string]error),
		WorkKeys:       make(map[string]string),
	}
}

// NewNumberedBackend creates a fake backend holding n records with ids
// "rec-0" to "rec-(n-1)".
func NewNumberedBackend(id string, n int) *FakeBackend {
	records := make([]*search.Document, n)
	for i := range records {
		records[i] = &search.Document{
			ID:     fmt.Sprintf("rec-%d", i),
			Fields: map[string]any{"title": fmt.Sprintf("Record %d", i), "index": i},
		}
	}
	return NewFakeBackend(id, records...)
}

func (f *FakeBackend) Identifier() string { return f.id }

func (f *FakeBackend) Search(ctx context.Context, q search.Query, offset, limit int, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := f.record("search", q, offset, limit, params); err != nil {
		return nil, err
	}

	matches := f.match(q)
	return f.collection(page(matches, offset, limit), len(matches), offset), nil
}

func (f *FakeBackend) Retrieve(ctx context.Context, id string, params *search.ParamBag) (*search.RecordCollection, error) {
	if err := f.record("retrieve", id, params); err != nil {
		return nil, err
	}

	f.mu.RLock()
	err, failed := f.RetrieveErrors[id]
	var found *search.Document
	for _, r := range f.records {
		if r.ID == id {
			found = r
			break
		}
	}
	f.mu.RUnlock()

	if failed {
		return nil, err
	}
	if found == nil {
		return f.collection(nil, 0, 0), nil
	}
	return f.collection([]search.Record{found}, 1, 0), nil
}

// Methods returns the names of the invoked methods in call order.
func (f *FakeBackend) Methods() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		out[i] = c.Method
	}
	return out
}

// CallsTo returns the invocations of method in call order.
func (f *FakeBackend) CallsTo(method string) []Call {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Call
	for _, c := range f.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears the call log.
func (f *FakeBackend) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
}

// record logs a call and returns the injected error for method, if any.
func (f *FakeBackend) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Method: method, Args: args})
	return f.Errors[method]
}

func (f *FakeBackend) match(q search.Query) []search.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []search.Record
	text := ""
	if !search.IsMatchAll(q) {
		text = strings.ToLower(q.String())
	}
	for _, r := range f.records {
		if text == "" || matchesText(r, text) {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeBackend) collection(records []search.Record, total, offset int) *search.RecordCollection {
	f.mu.RLock()
	factory := f.factory
	f.mu.RUnlock()
	return factory(f.id, records, total, offset)
}

func matchesText(r *search.Document, text string) bool {
	if strings.Contains(strings.ToLower(r.ID), text) {
		return true
	}
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := r.Fields[k].(string); ok && strings.Contains(strings.ToLower(s), text) {
			return true
		}
	}
	return false
}

func page(records []search.Record, offset, limit int) []search.Record {
	if offset >= len(records) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
