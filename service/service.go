// Package service implements the favicon lookup behind GET /api/favicon:
// normalise the address, fetch the page within a time budget, extract its
// metadata, and degrade to the conventional /favicon.ico when the page
// cannot be had.
package service

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/use-agent/favgrab/cache"
	"github.com/use-agent/favgrab/engine"
	"github.com/use-agent/favgrab/iconurl"
	"github.com/use-agent/favgrab/logging"
	"github.com/use-agent/favgrab/metadata"
	"github.com/use-agent/favgrab/models"
)

// fallbackNote marks fallbacks caused by anything other than a timeout.
const fallbackNote = "Used fallback favicon"

// DefaultTimeout is the fetch budget when Options.Timeout is unset.
const DefaultTimeout = 8 * time.Second

// Options tunes a Resolver.
type Options struct {
	// Timeout bounds the page fetch. Default: 8s.
	Timeout time.Duration

	// BlockPrivate rejects loopback, private and link-local literal hosts,
	// both as the requested host and as the page's final URL.
	BlockPrivate bool
}

// Resolver performs favicon lookups. It is safe for concurrent use.
type Resolver struct {
	engine    engine.Engine
	extractor metadata.Extractor
	cache     *cache.Cache
	opts      Options
}

// New creates a Resolver. cc may be nil to disable caching entirely.
func New(eng engine.Engine, ext metadata.Extractor, cc *cache.Cache, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Resolver{
		engine:    eng,
		extractor: ext,
		cache:     cc,
		opts:      opts,
	}
}

// EngineName reports which fetch engine the resolver uses.
func (r *Resolver) EngineName() string {
	return r.engine.Name()
}

// Resolve looks up the icon metadata for req.URL.
//
// Flow:
//  1. Normalise the URL; invalid input fails before any network call.
//  2. Reject private hosts when configured.
//  3. Serve from cache when max_age > 0 and a fresh entry exists.
//  4. Fetch the page within the timeout budget.
//     Timeout          → fallback, no error note.
//     Any other error  → fallback with error note.
//     Redirect to a private host → BLOCKED_HOST, no fallback.
//  5. Extract metadata; an extraction error also degrades to the fallback.
//
// The returned error is always a *models.LookupError.
func (r *Resolver) Resolve(ctx context.Context, req *models.IconRequest) (*models.Lookup, error) {
	target, err := models.NormalizeURL(req.URL)
	if err != nil {
		return nil, err
	}
	if r.opts.BlockPrivate && engine.IsPrivateHost(target.Hostname()) {
		return nil, errBlocked(nil)
	}
	log := logging.Ctx(ctx)

	fields := req.FieldList()
	useCache := r.cache != nil && req.MaxAge > 0
	key := cache.Key(target.String(), fields)
	if useCache {
		if hit, ok := r.cache.Get(key, req.MaxAge); ok {
			return &models.Lookup{Result: hit, CacheStatus: "hit"}, nil
		}
	}

	// ── Fetch ──────────────────────────────────────────────────────
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	start := time.Now()
	page, err := r.engine.Fetch(fetchCtx, &engine.FetchRequest{URL: target.String()})
	timedOut := fetchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancel()

	if err != nil {
		if errors.Is(err, engine.ErrPrivateRedirect) {
			log.Warn("page redirected to a private host", "url", target.String(), "error", err)
			return nil, errBlocked(err)
		}
		if timedOut || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			log.Warn("page fetch timed out, using fallback favicon",
				"url", target.String(),
				"timeout", r.opts.Timeout,
				"engine", r.engine.Name(),
			)
			return r.fallback(target, "")
		}
		log.Error("page fetch failed, using fallback favicon",
			"url", target.String(),
			"engine", r.engine.Name(),
			"error", err,
		)
		return r.fallback(target, fallbackNote)
	}

	// ── Extract ────────────────────────────────────────────────────
	sourceURL := page.FinalURL
	if sourceURL == "" {
		sourceURL = target.String()
	}
	if r.opts.BlockPrivate {
		// Engines that follow redirects without a policy hook (the browser)
		// are caught here before anything from the page is returned.
		if final, perr := url.Parse(sourceURL); perr != nil || engine.IsPrivateHost(final.Hostname()) {
			log.Warn("page landed on a private host", "url", target.String(), "final_url", sourceURL)
			return nil, errBlocked(engine.ErrPrivateRedirect)
		}
	}
	result, err := r.extractor.Extract(ctx, page.HTML, sourceURL, fields...)
	if err != nil || result == nil {
		log.Error("metadata extraction failed, using fallback favicon",
			"url", sourceURL,
			"error", err,
		)
		return r.fallback(target, fallbackNote)
	}

	log.Info("metadata extracted",
		"url", target.String(),
		"final_url", sourceURL,
		"engine", page.EngineName,
		"fetch_ms", time.Since(start).Milliseconds(),
		"metadata", result.Fields(),
	)

	lookup := &models.Lookup{Result: result, EngineUsed: page.EngineName}
	if useCache {
		r.cache.Set(key, result)
		lookup.CacheStatus = "miss"
	}
	return lookup, nil
}

// fallback builds the degraded response for target.
func (r *Resolver) fallback(target *url.URL, note string) (*models.Lookup, error) {
	fav, err := iconurl.Fallback(target)
	if err != nil {
		return nil, models.NewLookupError(models.ErrCodeFallbackFailed, "Failed to fetch favicon and generate fallback", err)
	}
	return &models.Lookup{
		Fallback: &models.FallbackResult{
			Logo:     nil,
			Favicon:  fav,
			URL:      target.String(),
			Fallback: true,
			Error:    note,
		},
		EngineUsed: r.engine.Name(),
	}, nil
}

func errBlocked(cause error) error {
	return models.NewLookupError(models.ErrCodeBlockedHost, "refusing to fetch a private or loopback address", cause)
}
