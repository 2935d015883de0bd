package models

import (
	"net/url"
	"strings"
)

// IconRequest is the query for GET /api/favicon.
type IconRequest struct {
	// URL is the site address as typed by the user. Required.
	// A missing scheme is filled in with https://.
	URL string `form:"url" json:"url" binding:"required"`

	// Fields restricts which metadata fields are extracted.
	// Comma separated, e.g. "favicon,logo". Empty means all fields.
	Fields string `form:"fields" json:"fields,omitempty"`

	// MaxAge enables the result cache. A cached result younger than
	// MaxAge milliseconds is served without fetching the page.
	// Default: 0 (no caching).
	MaxAge int `form:"max_age" json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// FieldList splits Fields into trimmed, lower-cased names.
func (r *IconRequest) FieldList() []string {
	if strings.TrimSpace(r.Fields) == "" {
		return nil
	}
	parts := strings.Split(r.Fields, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if f := strings.ToLower(strings.TrimSpace(p)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeURL turns free text into a fully-qualified http(s) URL.
//
// Text without an http:// or https:// prefix gets https:// prepended.
// The result must parse and carry a host; anything else is rejected
// with ErrCodeInvalidInput before any network call is made.
func NormalizeURL(raw string) (*url.URL, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, NewLookupError(ErrCodeInvalidInput, "URL parameter is required", nil)
	}

	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, NewLookupError(ErrCodeInvalidInput, "invalid URL", err)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return nil, NewLookupError(ErrCodeInvalidInput, "invalid URL: missing host", nil)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	return u, nil
}
