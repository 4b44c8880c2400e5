package feed

import (
	"errors"
	"fmt"
)

// ErrMalformedItem marks content records that cannot be published
var ErrMalformedItem = errors.New("malformed content item")

// UpstreamFetchError wraps a content source failure. Builders recover it
// into a fallback document and never hand it to their callers.
type UpstreamFetchError struct {
	Kind string
	Err  error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %q content: %v", e.Kind, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }
