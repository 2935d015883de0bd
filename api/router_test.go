package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/config"
	"github.com/use-agent/favgrab/engine"
	"github.com/use-agent/favgrab/metadata"
	"github.com/use-agent/favgrab/service"
)

const githubPage = `<!DOCTYPE html>
<html><head>
<title>GitHub: Let's build from here</title>
<meta property="og:site_name" content="GitHub">
<link rel="icon" type="image/svg+xml" href="/fav.svg">
<link rel="icon" sizes="64x64" href="/fav-64.png">
</head><body></body></html>`

// recordingEngine serves fixed HTML and records every URL it is asked for.
type recordingEngine struct {
	mu    sync.Mutex
	urls  []string
	html  string
	block bool
}

func (e *recordingEngine) Name() string { return "fake" }

func (e *recordingEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	e.mu.Lock()
	e.urls = append(e.urls, req.URL)
	e.mu.Unlock()
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &engine.FetchResult{HTML: e.html, StatusCode: 200, FinalURL: req.URL, EngineName: e.Name()}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	return cfg
}

func newRouter(t *testing.T, cfg *config.Config, eng engine.Engine, timeout time.Duration) *gin.Engine {
	t.Helper()
	res := service.New(eng, metadata.Default(), nil, service.Options{Timeout: timeout})
	r, err := NewRouter(cfg, res, time.Now())
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestEndToEnd_PageServerMode(t *testing.T) {
	eng := &recordingEngine{html: githubPage}
	r := newRouter(t, testConfig(t), eng, time.Second)

	w := do(r, httptest.NewRequest(http.MethodGet, "/?url=github.com&mode=server", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(eng.urls) != 1 || eng.urls[0] != "https://github.com" {
		t.Fatalf("engine fetched %v, want [https://github.com]", eng.urls)
	}
	if !strings.Contains(w.Body.String(), `<img id="icon" src="https://github.com/fav-64.png"`) {
		t.Errorf("rendered page lacks the favicon image:\n%s", w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("request ID header missing")
	}
}

func TestEndToEnd_API(t *testing.T) {
	eng := &recordingEngine{html: githubPage}
	r := newRouter(t, testConfig(t), eng, time.Second)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/favicon?url=github.com", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["favicon"] != "https://github.com/fav-64.png" {
		t.Errorf("favicon = %v", body["favicon"])
	}
	if body["publisher"] != "GitHub" {
		t.Errorf("publisher = %v", body["publisher"])
	}
	if w.Header().Get("X-Fetch-Engine") != "fake" {
		t.Errorf("X-Fetch-Engine = %q", w.Header().Get("X-Fetch-Engine"))
	}
}

func TestEndToEnd_TimeoutFallback(t *testing.T) {
	eng := &recordingEngine{block: true}
	r := newRouter(t, testConfig(t), eng, 50*time.Millisecond)

	w := do(r, httptest.NewRequest(http.MethodGet, "/api/favicon?url=slow.example", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["fallback"] != true || body["favicon"] != "https://slow.example/favicon.ico" {
		t.Errorf("unexpected body: %v", body)
	}
	if logo, ok := body["logo"]; !ok || logo != nil {
		t.Errorf("logo must be null, got %v", logo)
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	r := newRouter(t, cfg, &recordingEngine{html: githubPage}, time.Second)

	if w := do(r, httptest.NewRequest(http.MethodGet, "/api/favicon?url=github.com", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/favicon?url=github.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := do(r, req); w.Code != http.StatusOK {
		t.Errorf("bearer key: status = %d, want 200", w.Code)
	}

	if w := do(r, httptest.NewRequest(http.MethodGet, "/api/health", nil)); w.Code != http.StatusOK {
		t.Errorf("health must stay open, status = %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.RequestsPerSecond = 0.001
	cfg.RateLimit.Burst = 1
	r := newRouter(t, cfg, &recordingEngine{html: githubPage}, time.Second)

	if w := do(r, httptest.NewRequest(http.MethodGet, "/api/favicon?url=github.com", nil)); w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	if w := do(r, httptest.NewRequest(http.MethodGet, "/api/favicon?url=github.com", nil)); w.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", w.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	r := newRouter(t, testConfig(t), &recordingEngine{}, time.Second)

	for _, path := range []string{"/static/app.js", "/static/style.css", "/favicon.svg", "/favicon.ico"} {
		if w := do(r, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, w.Code)
		}
	}
}

func TestRequestID_Propagates(t *testing.T) {
	r := newRouter(t, testConfig(t), &recordingEngine{}, time.Second)

	const id = "4f1c0c2a-8f7e-4d43-9c1a-2f9a4d0b6e11"
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", id)
	if got := do(r, req).Header().Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}
