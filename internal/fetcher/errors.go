package fetcher

import (
	"errors"
	"fmt"
)

// Category buckets a fetch failure for the run summary.
type Category string

const (
	CategoryTransient Category = "transient"
	CategoryTerminal  Category = "terminal"
	CategoryPolicy    Category = "policy"
	CategoryParse     Category = "parse"
)

// Sentinel conditions surfaced by the fetcher
var (
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrTooManyRedirects = errors.New("redirect hop limit exceeded")
	ErrNotHTML          = errors.New("response is not HTML")
)

// FetchError is a terminal fetch outcome. Transient failures only become a
// FetchError once retries are exhausted, at which point the category
// records that the root cause was transient.
type FetchError struct {
	URL        string
	Category   Category
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches on category so callers can test error classes
func (e *FetchError) Is(target error) bool {
	if t, ok := target.(*FetchError); ok {
		return e.Category == t.Category
	}
	return errors.Is(e.Err, target)
}
