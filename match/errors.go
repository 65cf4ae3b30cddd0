package match

import (
	"errors"
	"fmt"
	"strings"

	"skinmatch"
)

var (
	// ErrNotFound is returned when a product id does not resolve in the source
	ErrNotFound = errors.New("product not found")

	// ErrUpstreamUnavailable is matched by every *UpstreamError
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoTags is returned when a search has an empty tag set
	ErrNoTags = errors.New("at least one concern tag is required")
)

// ValidationError reports tags outside a closed vocabulary
type ValidationError struct {
	Invalid []string
	Allowed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unknown concern tag(s) %s; allowed values: %s",
		quoteAll(e.Invalid), strings.Join(e.Allowed, ", "))
}

// NoMatchesError is returned when a well-formed search selects nothing
type NoMatchesError struct {
	Tags     []string
	MaxPrice *skinmatch.Cents
}

func (e *NoMatchesError) Error() string {
	msg := fmt.Sprintf("no products match %s", quoteAll(e.Tags))
	if e.MaxPrice != nil {
		msg += " under " + e.MaxPrice.String()
	}
	return msg + "; try broadening your filters"
}

// UpstreamError wraps a failure of the product source, text generator or
// theme fetcher.
type UpstreamError struct {
	Component string
	Product   string // product id the call was made for, if any
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Product != "" {
		return fmt.Sprintf("%s unavailable for product %s: %v", e.Component, e.Product, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Component, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
