package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/favgrab/models"
	"github.com/use-agent/favgrab/ui"
	"github.com/use-agent/favgrab/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeResolver answers every lookup with fn and counts calls.
type fakeResolver struct {
	mu    sync.Mutex
	calls []models.IconRequest
	fn    func(req *models.IconRequest) (*models.Lookup, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, req *models.IconRequest) (*models.Lookup, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeResolver) EngineName() string { return "fake" }

func (f *fakeResolver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestRouter(t *testing.T, res Resolver) *gin.Engine {
	t.Helper()
	tmpl, err := web.Templates()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.GET("/", Page(res, PageOptions{Mode: "server", IconSize: 32}))
	r.GET("/api/favicon", Favicon(res))
	r.GET("/api/health", Health(res, time.Now()))
	r.GET("/api/favicon/download", Download(DownloadOptions{Timeout: 2 * time.Second}))
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestFavicon_MissingURL(t *testing.T) {
	res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) {
		t.Fatal("resolver must not be called")
		return nil, nil
	}}
	r := newTestRouter(t, res)

	for _, target := range []string{"/api/favicon", "/api/favicon?url="} {
		w := get(r, target)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", target, w.Code)
		}
		var body models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Error != "URL parameter is required" {
			t.Errorf("%s: error = %q", target, body.Error)
		}
	}
	if res.count() != 0 {
		t.Error("no lookup may happen without a url")
	}
}

func TestFavicon_ResultVerbatim(t *testing.T) {
	res := &fakeResolver{fn: func(req *models.IconRequest) (*models.Lookup, error) {
		return &models.Lookup{
			Result:      &models.IconResult{Title: "Example Domain", Favicon: "https://example.com/favicon.ico"},
			EngineUsed:  "http",
			CacheStatus: "miss",
		}, nil
	}}
	r := newTestRouter(t, res)

	w := get(r, "/api/favicon?url=example.com&fields=title,favicon&max_age=1000")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["title"] != "Example Domain" || body["favicon"] != "https://example.com/favicon.ico" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["description"]; ok {
		t.Error("absent fields must be omitted")
	}
	if w.Header().Get("X-Fetch-Engine") != "http" || w.Header().Get("X-Cache") != "miss" {
		t.Errorf("headers = %v", w.Header())
	}
	got := res.calls[0]
	if got.URL != "example.com" || got.Fields != "title,favicon" || got.MaxAge != 1000 {
		t.Errorf("request not bound: %+v", got)
	}
}

func TestFavicon_FallbackBody(t *testing.T) {
	res := &fakeResolver{fn: func(req *models.IconRequest) (*models.Lookup, error) {
		return &models.Lookup{Fallback: &models.FallbackResult{
			Favicon:  "https://slow.example/favicon.ico",
			URL:      "https://slow.example",
			Fallback: true,
		}}, nil
	}}
	r := newTestRouter(t, res)

	w := get(r, "/api/favicon?url=slow.example")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	logo, present := body["logo"]
	if !present || logo != nil {
		t.Errorf("logo must be present and null, got %v (present=%v)", logo, present)
	}
	if body["fallback"] != true || body["favicon"] != "https://slow.example/favicon.ico" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Error("timeout fallback carries no error field")
	}
}

func TestFavicon_ErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{models.NewLookupError(models.ErrCodeFallbackFailed, "Failed to fetch favicon and generate fallback", nil), 500},
		{models.NewLookupError(models.ErrCodeBlockedHost, "blocked", nil), 400},
		{models.NewLookupError(models.ErrCodeInvalidInput, "bad", nil), 400},
		{context.Canceled, 500},
	}
	for _, tc := range cases {
		res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) { return nil, tc.err }}
		w := get(newTestRouter(t, res), "/api/favicon?url=x.example")
		if w.Code != tc.code {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.code)
		}
		var body models.ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == "" {
			t.Errorf("%v: body = %s", tc.err, w.Body)
		}
	}
}

func TestHealth(t *testing.T) {
	w := get(newTestRouter(t, &fakeResolver{}), "/api/health")
	var body models.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || body.Engine != "fake" || body.Version != Version {
		t.Errorf("unexpected health: %+v", body)
	}
}

func TestPage_Idle(t *testing.T) {
	res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) {
		t.Fatal("idle page must not look anything up")
		return nil, nil
	}}
	w := get(newTestRouter(t, res), "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `data-state="idle"`) {
		t.Error("page should render in the idle state")
	}
}

func TestPage_ServerMode(t *testing.T) {
	res := &fakeResolver{fn: func(req *models.IconRequest) (*models.Lookup, error) {
		return &models.Lookup{Result: &models.IconResult{Favicon: "https://github.com/fav.png"}}, nil
	}}
	w := get(newTestRouter(t, res), "/?url=github.com")
	html := w.Body.String()
	if !strings.Contains(html, `data-state="success"`) {
		t.Fatalf("expected success state, got %s", html)
	}
	if !strings.Contains(html, `<img id="icon" src="https://github.com/fav.png"`) {
		t.Error("icon image not rendered")
	}
	if !strings.Contains(html, "google.com/s2/favicons") {
		t.Error("image-service fallback not rendered")
	}
}

func TestPage_ClientModeSkipsServer(t *testing.T) {
	res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) {
		t.Fatal("client mode must not call the resolver")
		return nil, nil
	}}
	w := get(newTestRouter(t, res), "/?url=github.com&mode=client")
	if !strings.Contains(w.Body.String(), "https://www.google.com/s2/favicons?domain=github.com&amp;sz=32") {
		t.Errorf("service icon not rendered: %s", w.Body)
	}
}

func TestPage_ErrorState(t *testing.T) {
	res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) {
		return &models.Lookup{Result: &models.IconResult{Title: "no icon"}}, nil
	}}
	w := get(newTestRouter(t, res), "/?url=example.com")
	if !strings.Contains(w.Body.String(), `data-state="error"`) {
		t.Error("expected error state when no icon was found")
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDownload(t *testing.T) {
	icon := pngBytes(t, 16, 16)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/icon":
			w.Write(icon)
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>hello</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	r := newTestRouter(t, &fakeResolver{})

	w := get(r, "/api/favicon/download?src="+upstream.URL+"/icon")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="favicon.png"` {
		t.Errorf("content disposition = %q", cd)
	}
	if w.Header().Get("X-Icon-Width") != "16" || w.Header().Get("X-Icon-Height") != "16" {
		t.Errorf("dimensions = %s x %s", w.Header().Get("X-Icon-Width"), w.Header().Get("X-Icon-Height"))
	}
	if !bytes.Equal(w.Body.Bytes(), icon) {
		t.Error("body differs from upstream icon")
	}

	if w := get(r, "/api/favicon/download?src="+upstream.URL+"/page"); w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("html src: status = %d, want 415", w.Code)
	}
	if w := get(r, "/api/favicon/download?src="+upstream.URL+"/missing"); w.Code != http.StatusBadGateway {
		t.Errorf("404 upstream: status = %d, want 502", w.Code)
	}
	if w := get(r, "/api/favicon/download?src=ftp://example.com/x"); w.Code != http.StatusBadRequest {
		t.Errorf("ftp src: status = %d, want 400", w.Code)
	}
}

func TestDownload_BlockPrivateAndSize(t *testing.T) {
	big := pngBytes(t, 64, 64)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	}))
	defer upstream.Close()

	r := gin.New()
	r.GET("/blocked", Download(DownloadOptions{BlockPrivate: true}))
	r.GET("/small", Download(DownloadOptions{MaxBytes: 10}))

	if w := get(r, "/blocked?src="+upstream.URL); w.Code != http.StatusBadRequest {
		t.Errorf("loopback src: status = %d, want 400", w.Code)
	}
	if w := get(r, "/small?src="+upstream.URL); w.Code != http.StatusBadGateway {
		t.Errorf("oversized icon: status = %d, want 502", w.Code)
	}
}

func TestPage_FailuresAskToCheckAddress(t *testing.T) {
	errs := []error{
		models.NewLookupError(models.ErrCodeBlockedHost, "refusing to fetch a private or loopback address", nil),
		models.NewLookupError(models.ErrCodeInvalidInput, "invalid URL: missing host", nil),
		models.NewLookupError(models.ErrCodeFallbackFailed, "Failed to fetch favicon and generate fallback", nil),
	}
	for _, lookupErr := range errs {
		res := &fakeResolver{fn: func(*models.IconRequest) (*models.Lookup, error) { return nil, lookupErr }}
		html := get(newTestRouter(t, res), "/?url=x.example").Body.String()
		if !strings.Contains(html, ui.ErrorMessage) {
			t.Errorf("%v: page lacks the check-the-address message", lookupErr)
		}
		if strings.Contains(html, lookupErr.(*models.LookupError).Message) {
			t.Errorf("%v: raw server text leaked onto the page", lookupErr)
		}
	}
}
