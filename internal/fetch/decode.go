package fetch

import (
	"fmt"
	"mime"

	"golang.org/x/text/encoding/htmlindex"
)

// DecodeHTML converts a fetched page body to UTF-8 text.
// The charset declared in the Content-Type header wins; pages served
// without one are decoded using fallback, the site's legacy default.
func DecodeHTML(p Page, fallback string) (string, error) {
	name := fallback
	if ct := p.Headers.Get("Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil && params["charset"] != "" {
			name = params["charset"]
		}
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("lookup page encoding %q: %w", name, err)
	}
	decoded, err := enc.NewDecoder().Bytes(p.Body)
	if err != nil {
		return "", fmt.Errorf("decode page %s as %s: %w", p.URL, name, err)
	}
	return string(decoded), nil
}
