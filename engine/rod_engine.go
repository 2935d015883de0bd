package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/favgrab/config"
	"github.com/use-agent/favgrab/logging"
	"github.com/ysmood/gson"
)

// errEngineClosed is returned by Fetch after Close.
var errEngineClosed = errors.New("rod_engine: engine closed")

// RodEngine renders the page in headless Chromium. The browser is launched
// once, in the background, and shared by every request; each request gets
// its own tab. A request never waits on the launch longer than its context
// allows.
type RodEngine struct {
	cfg    config.BrowserConfig
	filter requestFilter
	launch func() (*rod.Browser, error)

	mu      sync.Mutex
	browser *rod.Browser
	pending *launchCall
	closed  bool
}

// launchCall is one in-flight browser launch; done closes when it ends.
type launchCall struct {
	done    chan struct{}
	browser *rod.Browser
	err     error
}

// NewRodEngine creates a RodEngine. No browser is started until Start or
// the first Fetch. With blockPrivate set, the tab refuses every request to
// a private host, redirects included.
func NewRodEngine(cfg config.BrowserConfig, blockPrivate bool) *RodEngine {
	e := &RodEngine{
		cfg:    cfg,
		filter: newRequestFilter(cfg.BlockResources, cfg.BlockAds, blockPrivate),
	}
	e.launch = e.launchChromium
	return e
}

func (e *RodEngine) Name() string { return "browser" }

// Start launches the browser in the background without waiting for it.
// The first lookup then only waits for whatever is left of the launch.
func (e *RodEngine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil && !e.closed {
		e.startLaunchLocked()
	}
}

// Fetch lifecycle:
//
//  1. Acquire browser (launch on first call), bounded by ctx
//  2. Open a fresh tab under ctx, closed on return
//  3. Stealth, request filtering and headers, before navigation
//  4. Navigate, wait for the DOM to settle
//  5. Read rendered HTML, status code and final URL
func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	browser, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	log := logging.Ctx(ctx)

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("rod_engine: open tab: %w", err)
	}
	defer func() {
		// ctx may be done by now; the tab still has to go.
		if closeErr := page.Context(context.Background()).Close(); closeErr != nil {
			log.Debug("rod_engine: close tab failed", "error", closeErr)
		}
	}()

	if e.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			log.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if router := setupHijack(page, e.filter); router != nil {
		defer func() { _ = router.Stop() }()
	}

	headers := map[string]string{"User-Agent": UserAgent}
	for k, v := range req.Headers {
		headers[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)

	if err := page.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("rod_engine: navigate: %w", err)
	}
	if err := page.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("rod_engine: wait: %w", ctx.Err())
		}
		log.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	statusCode := 0
	if res, evalErr := page.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}
	if statusCode >= 400 {
		return nil, &StatusError{StatusCode: statusCode, URL: req.URL}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("rod_engine: read html: %w", err)
	}

	finalURL := req.URL
	if res, evalErr := page.Eval(`() => window.location.href`); evalErr == nil && res.Value.Str() != "" {
		finalURL = res.Value.Str()
	}

	return &FetchResult{
		HTML:       html,
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineName: e.Name(),
	}, nil
}

// acquire returns the shared browser. If none is running it joins (or
// starts) the background launch and waits for it no longer than ctx.
func (e *RodEngine) acquire(ctx context.Context) (*rod.Browser, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errEngineClosed
	}
	if e.browser != nil {
		b := e.browser
		e.mu.Unlock()
		return b, nil
	}
	call := e.startLaunchLocked()
	e.mu.Unlock()

	select {
	case <-call.done:
		return call.browser, call.err
	case <-ctx.Done():
		return nil, fmt.Errorf("rod_engine: waiting for browser: %w", ctx.Err())
	}
}

// startLaunchLocked returns the in-flight launch, starting one if needed.
// e.mu must be held.
func (e *RodEngine) startLaunchLocked() *launchCall {
	if e.pending != nil {
		return e.pending
	}
	call := &launchCall{done: make(chan struct{})}
	e.pending = call
	go e.runLaunch(call)
	return call
}

func (e *RodEngine) runLaunch(call *launchCall) {
	start := time.Now()
	browser, err := e.launch()

	e.mu.Lock()
	e.pending = nil
	switch {
	case err != nil:
		slog.Error("browser launch failed", "error", err)
	case e.closed:
		// Close ran while we were launching.
		_ = browser.Close()
		browser, err = nil, errEngineClosed
	default:
		e.browser = browser
		slog.Info("browser launched", "launch_ms", time.Since(start).Milliseconds())
	}
	e.mu.Unlock()

	call.browser, call.err = browser, err
	close(call.done)
}

// launchChromium starts Chromium with the configured flags and connects.
// launcher.Launch may download a browser first, which is why it never
// runs on a request's clock.
func (e *RodEngine) launchChromium() (*rod.Browser, error) {
	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("rod_engine: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("rod_engine: connect browser: %w", err)
	}
	return browser, nil
}

// Close kills the browser if it was started. A launch still in flight is
// torn down as soon as it finishes.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
