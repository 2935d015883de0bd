package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/use-agent/favgrab/config"
)

// stalledEngine returns a RodEngine whose launch blocks until release is
// closed and then fails with launchErr.
func stalledEngine(launchErr error) (e *RodEngine, release chan struct{}, launches *atomic.Int32) {
	e = NewRodEngine(config.BrowserConfig{}, false)
	release = make(chan struct{})
	launches = new(atomic.Int32)
	e.launch = func() (*rod.Browser, error) {
		launches.Add(1)
		<-release
		return nil, launchErr
	}
	return e, release, launches
}

func TestRodEngine_FetchBoundedBySlowLaunch(t *testing.T) {
	e, release, launches := stalledEngine(errors.New("no chromium"))
	defer close(release)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	start := time.Now()
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, errs[i] = e.Fetch(ctx, &FetchRequest{URL: "https://example.com"})
		}(i)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Fetch outlived its deadline: %v", elapsed)
	}
	for i, err := range errs {
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("fetch %d: err = %v, want deadline exceeded", i, err)
		}
	}
	if n := launches.Load(); n != 1 {
		t.Errorf("launches = %d, want one shared launch", n)
	}
}

func TestRodEngine_LaunchFailureRetried(t *testing.T) {
	launchErr := errors.New("no chromium")
	e, release, launches := stalledEngine(launchErr)
	close(release)

	for i := 0; i < 2; i++ {
		_, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
		if !errors.Is(err, launchErr) {
			t.Fatalf("fetch %d: err = %v, want launch error", i, err)
		}
	}
	if n := launches.Load(); n != 2 {
		t.Errorf("launches = %d, a failed launch should be retried", n)
	}
}

func TestRodEngine_StartLaunchesInBackground(t *testing.T) {
	e, release, launches := stalledEngine(errors.New("no chromium"))
	defer close(release)

	e.Start()
	e.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := e.Fetch(ctx, &FetchRequest{URL: "https://example.com"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if n := launches.Load(); n != 1 {
		t.Errorf("launches = %d, want 1", n)
	}
}

func TestRodEngine_FetchAfterClose(t *testing.T) {
	e, release, launches := stalledEngine(nil)
	defer close(release)

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"}); !errors.Is(err, errEngineClosed) {
		t.Errorf("err = %v, want errEngineClosed", err)
	}
	if launches.Load() != 0 {
		t.Error("a closed engine must not launch")
	}
}

// Needs a local Chromium; skipped when none is installed.
func TestRodEngine_FetchRendersScriptedHead(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium found")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Rendered</title>
<script>
var l = document.createElement("link");
l.rel = "icon"; l.href = "/scripted.png";
document.head.appendChild(l);
</script></head><body></body></html>`))
	}))
	defer srv.Close()

	e := NewRodEngine(config.BrowserConfig{
		Headless:       true,
		NoSandbox:      true,
		BrowserBin:     bin,
		Stealth:        true,
		BlockResources: []string{"Image", "Font"},
		BlockAds:       true,
	}, false)
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := e.Fetch(ctx, &FetchRequest{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(res.HTML, "/scripted.png") {
		t.Errorf("script-inserted icon missing from rendered HTML:\n%s", res.HTML)
	}
	if res.EngineName != "browser" || !strings.HasPrefix(res.FinalURL, srv.URL) {
		t.Errorf("result = %+v", res)
	}
}
