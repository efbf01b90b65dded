package search

import (
	"errors"
	"fmt"
)

// Command-layer error kinds.
var (
	// ErrTargetMismatch is returned when a command executes against a backend
	// whose identifier differs from the command's target.
	ErrTargetMismatch = errors.New("backend identifier does not match command target")

	// ErrUnsupportedOperation is returned when a backend lacks the capability a
	// command requires and the command has no fallback.
	ErrUnsupportedOperation = errors.New("operation not supported by backend")

	// ErrNotExecuted is returned when a result is read before execution.
	ErrNotExecuted = errors.New("command was not yet executed")
)

// Backend error kinds.
var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidQuery       = errors.New("invalid search query")
	ErrBackendUnavailable = errors.New("search backend unavailable")
)

// Error describes a failed operation against a backend.
type Error struct {
	Op      string // Operation, e.g. "retrieveBatch"
	Backend string // Backend identifier, if known
	Err     error  // Underlying error
	Msg     string // Optional context
}

func (e *Error) Error() string {
	op := e.Op
	if e.Backend != "" {
		op = fmt.Sprintf("%s [%s]", e.Op, e.Backend)
	}
	switch {
	case e.Err == nil && e.Msg == "":
		return op
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", op, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %s", op, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s: %s", op, e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BackendType names a family of backend adapters.
type BackendType string

const (
	BackendTypeBleve         BackendType = "bleve"
	BackendTypeMeilisearch   BackendType = "meilisearch"
	BackendTypeAlgolia       BackendType = "algolia"
	BackendTypeElasticsearch BackendType = "elasticsearch"
	BackendTypeSQL           BackendType = "sql"
	BackendTypeMock          BackendType = "mock"
)
