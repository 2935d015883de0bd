package engine

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceTypes maps config names to Rod protocol resource types. Scripts
// are deliberately absent: head tags are often written by JavaScript.
var resourceTypes = map[string]proto.NetworkResourceType{
	"image":      proto.NetworkResourceTypeImage,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"font":       proto.NetworkResourceTypeFont,
	"media":      proto.NetworkResourceTypeMedia,
}

// adDomains are ad and tracking hosts that never contribute head metadata.
var adDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"googletagservices.com": {},
	"connect.facebook.net":  {},
	"adnxs.com":             {},
	"adsrvr.org":            {},
	"amazon-adsystem.com":   {},
	"criteo.com":            {},
	"criteo.net":            {},
	"outbrain.com":          {},
	"taboola.com":           {},
	"moatads.com":           {},
	"pubmatic.com":          {},
	"rubiconproject.com":    {},
	"scorecardresearch.com": {},
	"quantserve.com":        {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"segment.io":            {},
	"chartbeat.com":         {},
	"optimizely.com":        {},
	"demdex.net":            {},
	"krxd.net":              {},
	"consensu.org":          {},
}

// isAdDomain checks if a hostname (or any parent domain) is in the ad blocklist.
func isAdDomain(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for {
		if _, ok := adDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			return false
		}
		host = host[idx+1:]
	}
}

// blockedTypes builds the lookup set for the configured resource names.
// Unknown names are ignored; matching is case-insensitive.
func blockedTypes(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := resourceTypes[strings.ToLower(strings.TrimSpace(name))]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// requestFilter decides which sub-requests a tab may make.
type requestFilter struct {
	types   map[proto.NetworkResourceType]struct{}
	ads     bool
	private bool
}

func newRequestFilter(resources []string, blockAds, blockPrivate bool) requestFilter {
	return requestFilter{types: blockedTypes(resources), ads: blockAds, private: blockPrivate}
}

func (f requestFilter) empty() bool {
	return len(f.types) == 0 && !f.ads && !f.private
}

// blocks reports whether a request of type rt for rawURL must fail.
// Private hosts are refused for every type, the document included, so a
// redirect to one never reaches the network.
func (f requestFilter) blocks(rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := f.types[rt]; ok {
		return true
	}
	if !f.ads && !f.private {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return (f.ads && isAdDomain(host)) || (f.private && IsPrivateHost(host))
}

// setupHijack installs a request interceptor on the tab that fails every
// request the filter blocks.
//
// Returns the running HijackRouter so the caller can stop it, or nil if
// there is nothing to block.
func setupHijack(page *rod.Page, filter requestFilter) *rod.HijackRouter {
	if filter.empty() {
		return nil
	}

	router := page.HijackRequests()

	// Pattern "*" with an empty resource type intercepts every request.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if filter.blocks(ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// router.Run blocks until router.Stop.
	go router.Run()

	return router
}
