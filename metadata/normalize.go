package metadata

import (
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// isoMillis is the date layout of every "date" value the pipeline returns.
const isoMillis = "2006-01-02T15:04:05.000Z"

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absoluteURL resolves ref against base and keeps only http(s) results.
func absoluteURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") && base != nil {
		ref = base.Scheme + ":" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// normalizeDate parses any common date notation and renders it in UTC
// with millisecond precision. Unparsable input yields "".
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return ""
	}
	if t.Year() < 1970 || t.After(time.Now().AddDate(1, 0, 0)) {
		return ""
	}
	return t.UTC().Format(isoMillis)
}

// looksLikeURL reports whether s is a link rather than a name.
func looksLikeURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "www.")
}
