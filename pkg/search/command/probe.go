package command

import (
	"context"
	"reflect"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// GetUniqueKeyCommand reads the name of the unique key field from a
// backend's connector.
//
// A backend without a connector at all is unsupported and fails. A connector
// that does not know its unique key is not an error: the result is
// PathAbsent with an empty key.
type GetUniqueKeyCommand struct {
	base
}

// NewGetUniqueKeyCommand creates a unique key probe.
func NewGetUniqueKeyCommand(backendID string, params *search.ParamBag, opts ...Option) *GetUniqueKeyCommand {
	b, _ := newBase(OpGetUniqueKey, backendID, params, opts)
	return &GetUniqueKeyCommand{base: b}
}

func (c *GetUniqueKeyCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}

	provider, ok := backend.(search.ConnectorProvider)
	if !ok {
		return unsupported(backend.Identifier(), "getConnector")
	}

	if keyed, ok := provider.Connector().(search.UniqueKeyProvider); ok && !isNil(keyed) {
		c.finalize(keyed.UniqueKey(), PathOptimized, nil)
		return nil
	}
	c.finalize(nil, PathAbsent, nil)
	return nil
}

// UniqueKey returns the key field name and whether the connector knew it.
func (c *GetUniqueKeyCommand) UniqueKey() (string, bool, error) {
	r, err := c.Result()
	if err != nil {
		return "", false, err
	}
	key, _ := r.Value.(string)
	return key, r.Path != PathAbsent, nil
}

// GetLuceneHelperCommand fetches the Lucene syntax helper of a backend's
// query builder. It never fails for lack of support: backends without a
// query builder, or whose builder has no helper, yield PathAbsent.
type GetLuceneHelperCommand struct {
	base
}

// NewGetLuceneHelperCommand creates a Lucene helper probe.
func NewGetLuceneHelperCommand(backendID string, params *search.ParamBag, opts ...Option) *GetLuceneHelperCommand {
	b, _ := newBase(OpGetLuceneHelper, backendID, params, opts)
	return &GetLuceneHelperCommand{base: b}
}

func (c *GetLuceneHelperCommand) Execute(ctx context.Context, backend search.Backend) error {
	if err := c.validateTarget(backend); err != nil {
		return err
	}

	if provider, ok := backend.(search.QueryBuilderProvider); ok {
		if helped, ok := provider.QueryBuilder().(search.LuceneHelperProvider); ok {
			if helper := helped.LuceneHelper(); !isNil(helper) {
				c.finalize(helper, PathOptimized, nil)
				return nil
			}
		}
	}
	c.finalize(nil, PathAbsent, nil)
	return nil
}

// LuceneHelper returns the helper, or nil when the backend has none.
func (c *GetLuceneHelperCommand) LuceneHelper() (search.LuceneHelper, error) {
	return resultAs[search.LuceneHelper](&c.base)
}

// isNil reports whether v is nil or an interface holding a nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
