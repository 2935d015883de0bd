// Package iconurl builds icon URLs from a hostname alone, with no network
// access. It backs both the server-side fallback and the client-only path.
package iconurl

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/use-agent/favgrab/models"
)

// ServiceBase is the public favicon image service keyed by hostname.
const ServiceBase = "https://www.google.com/s2/favicons"

const (
	DefaultSize = 32
	minSize     = 16
	maxSize     = 256
)

var errNoHost = errors.New("iconurl: URL has no host")

// Fallback returns the conventional favicon location for u:
// <scheme>://<hostname>/favicon.ico. The port is dropped.
func Fallback(u *url.URL) (string, error) {
	if u == nil || u.Hostname() == "" {
		return "", errNoHost
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	host := u.Hostname()
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host + "/favicon.ico", nil
}

// FallbackString parses raw and calls Fallback.
func FallbackString(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	return Fallback(u)
}

// ServiceURL returns the favicon-service image URL for host.
func ServiceURL(host string, size int) string {
	q := url.Values{}
	q.Set("domain", host)
	q.Set("sz", strconv.Itoa(clampSize(size)))
	return ServiceBase + "?" + q.Encode()
}

// ClientIcon normalises free text and returns the service URL for its host.
// It never blocks on the network.
func ClientIcon(raw string, size int) (string, error) {
	u, err := models.NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	return ServiceURL(u.Hostname(), size), nil
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < minSize:
		return minSize
	case size > maxSize:
		return maxSize
	}
	return size
}
