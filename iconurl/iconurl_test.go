package iconurl

import (
	"net/url"
	"strings"
	"testing"
)

func TestFallback_DropsPortAndPath(t *testing.T) {
	u, _ := url.Parse("http://127.0.0.1:8123/some/page?q=1")
	got, err := Fallback(u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://127.0.0.1/favicon.ico" {
		t.Errorf("got %q", got)
	}
}

func TestFallback_IPv6(t *testing.T) {
	got, err := FallbackString("https://[::1]:443/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://[::1]/favicon.ico" {
		t.Errorf("got %q", got)
	}
}

func TestFallback_NoHost(t *testing.T) {
	if _, err := FallbackString("/relative/only"); err == nil {
		t.Error("expected error for URL without host")
	}
	if _, err := Fallback(nil); err == nil {
		t.Error("expected error for nil URL")
	}
}

func TestServiceURL(t *testing.T) {
	got := ServiceURL("github.com", 0)
	if got != "https://www.google.com/s2/favicons?domain=github.com&sz=32" {
		t.Errorf("got %q", got)
	}
	if !strings.HasSuffix(ServiceURL("a.b", 4096), "sz=256") {
		t.Error("size should clamp to 256")
	}
	if !strings.HasSuffix(ServiceURL("a.b", 2), "sz=16") {
		t.Error("size should clamp to 16")
	}
}

func TestClientIcon_AlwaysNonEmptyForValidHost(t *testing.T) {
	for _, in := range []string{"github.com", "https://example.org/path", "sub.domain.co.uk"} {
		got, err := ClientIcon(in, 32)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", in, err)
		}
		if got == "" {
			t.Errorf("%q: empty icon URL", in)
		}
	}
}

func TestClientIcon_Invalid(t *testing.T) {
	if _, err := ClientIcon("", 32); err == nil {
		t.Error("expected error for empty input")
	}
}
