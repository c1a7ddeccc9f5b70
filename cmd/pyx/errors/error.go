package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds of failures. Any error returned from pyx is (or wraps) one of them,
// so callers can tell what has failed with errors.Is.
var (
	// config file or project descriptor is missing, broken or incomplete.
	ErrConfiguration = errors.New("configuration error")

	// the project is not permitted the operation yet (e.g. it has no model id).
	ErrPermission = errors.New("permission error")

	// pyx.ai has rejected the request, or it is not reachable.
	ErrTransport = errors.New("transport error")

	// boilerplate is not found or cannot be placed.
	ErrBoilerplate = errors.New("boilerplate error")

	// local test of endpoints has failed.
	ErrHarness = errors.New("harness error")
)

var kinds = []error{
	ErrConfiguration, ErrPermission, ErrTransport, ErrBoilerplate, ErrHarness,
}

// KindOf returns the kind of err, or nil if err is not categorized.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type Verbose interface {
	Verbose() string
}

type CUIError interface {
	error
	Verbose
}

type cuierror struct {
	summary     string
	verbose     string
	printDetail func(summary string) (string, error)
	base        error
	kind        error
}

func (ce *cuierror) Unwrap() error {
	return ce.base
}

// Is reports the kind given by WithKind.
func (ce *cuierror) Is(target error) bool {
	return ce.kind != nil && ce.kind == target
}

func (ce *cuierror) Error() string {
	if ce.printDetail == nil {
		return ce.summary
	}
	message, err := ce.printDetail(ce.summary)
	if err != nil {
		message = fmt.Sprintf(
			"%s\n(building detailed message causes error: %s)",
			ce.summary, err.Error(),
		)
	}
	return message
}

func (ce *cuierror) Verbose() string {
	message := []string{ce.Error()}
	if ce.verbose != "" {
		message = append(message, " ("+ce.verbose+") ")
	}

	switch base := ce.base.(type) {
	case nil:
		// no-op
	case Verbose:
		message = append(message, "caused by: ", base.Verbose())
	default:
		message = append(message, "caused by: ", base.Error())
	}
	return strings.Join(message, "\n")
}

type CuiErrorOption func(cerr *cuierror) *cuierror

func NewCuiError(
	summary string,
	options ...CuiErrorOption,
) CUIError {
	err := &cuierror{summary: summary}
	for _, o := range options {
		err = o(err)
	}
	return err
}

func WithVerbose(verbose string) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.verbose = verbose
		return cerr
	}
}

func WithDetail(printer func(summary string) (string, error)) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.printDetail = printer
		return cerr
	}
}

func WithCause(err error) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.base = err
		return cerr
	}
}

// WithKind categorizes the error. kind should be one of Err* in this package.
func WithKind(kind error) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.kind = kind
		return cerr
	}
}
