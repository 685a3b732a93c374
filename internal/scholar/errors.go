package scholar

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the profile client.
var (
	// ErrListingUnavailable indicates the profile listing page could not be fetched.
	// This is the one fatal scrape failure.
	ErrListingUnavailable = errors.New("profile listing unavailable")

	// ErrRateLimited indicates the site answered with 429 Too Many Requests.
	ErrRateLimited = errors.New("profile site rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with profile site")

	// ErrEmptyProfileID is returned when no profile identifier was configured.
	ErrEmptyProfileID = errors.New("profile id is empty")
)

// HTTPError represents a non-success HTTP status from the profile site.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// checkHTTPErrors returns an error if the HTTP response is not a success.
func checkHTTPErrors(resp *http.Response, url string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ErrRateLimited, &HTTPError{StatusCode: resp.StatusCode, URL: url})
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return nil
}
