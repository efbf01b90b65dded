// Package command implements capability-checked commands that run uniform
// operations against heterogeneous search backends.
//
// Each command targets one backend by identifier, checks at execution time
// which optional capability that backend implements, and either calls the
// optimized capability or degrades to a composition of the baseline Search and
// Retrieve operations. A command executes synchronously and issues its backend
// calls strictly one at a time.
package command

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// Operation names. They double as the default command context.
const (
	OpSearch                     = "search"
	OpRetrieve                   = "retrieve"
	OpRetrieveBatch              = "retrieveBatch"
	OpRandom                     = "random"
	OpGetIDs                     = "getIds"
	OpGetSitemapFields           = "getSitemapFields"
	OpTerms                      = "getTerms"
	OpAlphabeticBrowse           = "alphabeticBrowse"
	OpWorkExpressions            = "workExpressions"
	OpGetSearchTerms             = "getSearchTerms"
	OpGetUniqueKey               = "getUniqueKey"
	OpGetLuceneHelper            = "getLuceneHelper"
	OpSetRecordCollectionFactory = "setRecordCollectionFactory"
)

// Command is one operation against one backend.
type Command interface {
	// ID uniquely identifies this command instance.
	ID() string

	// Operation returns the operation name, e.g. "retrieveBatch".
	Operation() string

	// TargetIdentifier returns the id of the backend the command must run on.
	TargetIdentifier() string

	// Context returns the caller-supplied context tag.
	Context() string

	// SearchParameters returns the ParamBag handed to the backend. It may be
	// mutated freely until Execute is called.
	SearchParameters() *search.ParamBag

	// Execute runs the command against backend, whose identifier must equal
	// TargetIdentifier.
	Execute(ctx context.Context, backend search.Backend) error

	// IsExecuted reports whether Execute has completed successfully.
	IsExecuted() bool

	// Result returns the stored result, or ErrNotExecuted.
	Result() (Result, error)
}

// Path records how a command produced its result.
type Path int

const (
	// PathOptimized means the backend's own capability produced the result.
	PathOptimized Path = iota + 1

	// PathFallback means the result was composed from baseline operations.
	// For GetIDs and GetSitemapFields this also means the records are full
	// records rather than projections.
	PathFallback

	// PathAbsent means a soft probe found nothing; Value is nil.
	PathAbsent
)

func (p Path) String() string {
	switch p {
	case PathOptimized:
		return "optimized"
	case PathFallback:
		return "fallback"
	case PathAbsent:
		return "absent"
	}
	return "unknown"
}

// Result is the outcome of a successfully executed command.
type Result struct {
	Value   any
	Path    Path
	Details map[string]any // diagnostics from a RequestDetailer backend, if any
}

// Option configures a command at construction.
type Option func(*options)

type options struct {
	context string
	rng     *rand.Rand
}

// WithContext overrides the context tag, which defaults to the operation name.
func WithContext(tag string) Option {
	return func(o *options) { o.context = tag }
}

// WithRand injects the random source used by RandomCommand's fallback. Other
// commands ignore it.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// base holds the state every command shares.
type base struct {
	id        string
	operation string
	backendID string
	context   string
	params    *search.ParamBag

	executed bool
	result   Result
}

func newBase(operation, backendID string, params *search.ParamBag, opts []Option) (base, options) {
	o := options{context: operation}
	for _, opt := range opts {
		opt(&o)
	}
	if params == nil {
		params = search.NewParamBag(nil)
	}
	return base{
		id:        uuid.NewString(),
		operation: operation,
		backendID: backendID,
		context:   o.context,
		params:    params,
	}, o
}

func (b *base) ID() string                         { return b.id }
func (b *base) Operation() string                  { return b.operation }
func (b *base) TargetIdentifier() string           { return b.backendID }
func (b *base) Context() string                    { return b.context }
func (b *base) SearchParameters() *search.ParamBag { return b.params }
func (b *base) IsExecuted() bool                   { return b.executed }

func (b *base) Result() (Result, error) {
	if !b.executed {
		return Result{}, &search.Error{Op: b.operation, Backend: b.backendID, Err: search.ErrNotExecuted}
	}
	return b.result, nil
}

// validateTarget guards against a command being routed to the wrong backend.
func (b *base) validateTarget(backend search.Backend) error {
	if backend == nil {
		return &search.Error{Op: b.operation, Err: search.ErrTargetMismatch, Msg: fmt.Sprintf("no backend given for target %q", b.backendID)}
	}
	if got := backend.Identifier(); got != b.backendID {
		return &search.Error{
			Op:      b.operation,
			Backend: got,
			Err:     search.ErrTargetMismatch,
			Msg:     fmt.Sprintf("expected backend %q", b.backendID),
		}
	}
	return nil
}

func (b *base) finalize(value any, path Path, details map[string]any) {
	b.result = Result{Value: value, Path: path, Details: details}
	b.executed = true
}

// resultAs returns the stored value as T. A nil value yields T's zero value.
func resultAs[T any](b *base) (T, error) {
	var zero T
	r, err := b.Result()
	if err != nil {
		return zero, err
	}
	if r.Value == nil {
		return zero, nil
	}
	v, ok := r.Value.(T)
	if !ok {
		return zero, fmt.Errorf("%s: result has type %T, want %T", b.operation, r.Value, zero)
	}
	return v, nil
}
