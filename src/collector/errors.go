package collector

import (
	"errors"
	"fmt"
)

// Resolution failure kinds. Every error returned by Resolver.Resolve matches exactly one.
var (
	ErrUnreachable          = errors.New("unreachable")
	ErrEmptyBody            = errors.New("empty response body")
	ErrParse                = errors.New("configuration is neither json nor xml")
	ErrMissingRequiredField = errors.New("missing required field")
)

// ResolveError describes why a host's path info could not be resolved
type ResolveError struct {
	Host  string
	URL   string
	Kind  error
	Field string // set for ErrMissingRequiredField
	Err   error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("resolve %s: %v", e.Host, e.Kind)
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FailureKind returns a stable label for the kind of a resolution error
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.Is(err, ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	default:
		return "unknown"
	}
}
