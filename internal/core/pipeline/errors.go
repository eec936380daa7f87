package pipeline

import "fmt"

// Kind classifies pipeline failures for callers deciding on retry and
// reporting. Model failures abort the whole request with no partial results.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindModelFailure Kind = "model_failure"
)

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s: %w", stage, err)}
}
