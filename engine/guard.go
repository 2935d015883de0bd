package engine

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// maxRedirects bounds every redirect chain the fetch clients follow.
const maxRedirects = 10

// ErrPrivateRedirect is returned when a redirect points at a private or
// loopback host while private hosts are blocked.
var ErrPrivateRedirect = errors.New("redirect to a private or loopback address")

// IsPrivateHost reports whether host is a literal loopback, private,
// link-local or unspecified address, or a localhost name. DNS names are
// not resolved.
func IsPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// GuardRedirects returns a shallow copy of client whose redirect policy
// caps the chain at 10 hops and, when blockPrivate is set, refuses any hop
// to a private host. The original client is left untouched.
func GuardRedirects(client *http.Client, blockPrivate bool) *http.Client {
	guarded := *client
	guarded.CheckRedirect = redirectPolicy(blockPrivate)
	return &guarded
}

func redirectPolicy(blockPrivate bool) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("too many redirects")
		}
		if blockPrivate && IsPrivateHost(req.URL.Hostname()) {
			return fmt.Errorf("%w: %s", ErrPrivateRedirect, req.URL.Host)
		}
		return nil
	}
}
