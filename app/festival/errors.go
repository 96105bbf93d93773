package festival

import (
	"errors"
	"fmt"
)

const (
	SourceListing = "listing"
	SourceSearch  = "search"
	SourceDetail  = "detail"
)

var ErrUnknownRegion = errors.New("unknown region code")

// FetchError is a transport or decoding failure from one of the upstream sources.
type FetchError struct {
	Source string
	Err    error
}

func NewFetchError(source string, err error) *FetchError {
	return &FetchError{Source: source, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch from %s source: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError wraps err for source unless it already carries a FetchError.
func AsFetchError(source string, err error) error {
	if err == nil {
		return nil
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	return NewFetchError(source, err)
}

// ParseError reports a malformed date or period string.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %q: %s", e.Input, e.Reason)
}
