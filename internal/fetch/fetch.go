// Package fetch retrieves pages and files from the library site.
package fetch

import (
	"context"
	"net/http"
)

// Page is the raw result of fetching a single URL.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Fetcher fetches a URL and returns the body plus metadata.
// Implementations must treat non-2xx responses as errors.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}
