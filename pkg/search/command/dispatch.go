package command

import (
	"github.com/hashicorp-forge/searchdispatch/pkg/search"
)

// invoke is the capability-checked call shared by every command: it asserts
// that backend implements capability C, calls method through it and stores
// the result. A backend lacking C yields ErrUnsupportedOperation naming the
// backend and method.
func invoke[C any](b *base, backend search.Backend, method string, path Path, call func(C) (any, error)) error {
	capable, ok := backend.(C)
	if !ok {
		return unsupported(backend.Identifier(), method)
	}
	return b.run(backend, path, func() (any, error) {
		return call(capable)
	})
}

// run performs a single backend call, bracketing it with the backend's
// diagnostics reset/capture when it offers them. Backend errors are returned
// unmodified and leave the command's previous state untouched.
func (b *base) run(backend search.Backend, path Path, call func() (any, error)) error {
	detailer, hasDetails := backend.(search.RequestDetailer)
	if hasDetails {
		detailer.ResetExtraRequestDetails()
	}

	value, err := call()
	if err != nil {
		return err
	}

	var details map[string]any
	if hasDetails {
		details = detailer.ExtraRequestDetails()
	}
	b.finalize(value, path, details)
	return nil
}

func unsupported(backendID, method string) error {
	return &search.Error{
		Op:      method,
		Backend: backendID,
		Err:     search.ErrUnsupportedOperation,
	}
}
