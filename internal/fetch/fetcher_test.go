package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
)

func TestFetcherLoad(t *testing.T) {
	t.Parallel()

	t.Run("fetches an HTML page", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "spoilerguard-test" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body><p>Alex wins</p></body></html>"))
		}))
		defer srv.Close()

		f := NewFetcher(WithUserAgent("spoilerguard-test"))
		page, err := f.Load(context.Background(), srv.URL+"/post#comments")
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if page.URL != srv.URL+"/post" {
			t.Errorf("URL = %q, want fragment stripped", page.URL)
		}
		if !strings.Contains(string(page.Body), "Alex wins") {
			t.Errorf("unexpected body %q", page.Body)
		}
	})

	t.Run("sends site cookie and headers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Cookie") != "consent=yes" || r.Header.Get("X-Spoilers") != "hide" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>ok</p>"))
		}))
		defer srv.Close()

		f := NewFetcher(WithCookie("consent=yes"), WithHeaders(map[string]string{"X-Spoilers": "hide"}))
		if _, err := f.Load(context.Background(), srv.URL); err != nil {
			t.Fatalf("Load() error: %v", err)
		}
	})

	t.Run("rejects error status", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		_, err := NewFetcher().Load(context.Background(), srv.URL)
		if !errors.Is(err, ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})

	t.Run("rejects non-HTML content", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF"))
		}))
		defer srv.Close()

		_, err := NewFetcher().Load(context.Background(), srv.URL)
		if !errors.Is(err, ErrNotHTML) {
			t.Errorf("expected ErrNotHTML, got %v", err)
		}
	})

	t.Run("truncates large bodies", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		}))
		defer srv.Close()

		page, err := NewFetcher(WithMaxBodySize(100)).Load(context.Background(), srv.URL)
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Body) != 100 {
			t.Errorf("body length = %d, want 100", len(page.Body))
		}
	})

	t.Run("reads local files", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "page.html")
		if err := os.WriteFile(path, []byte("<p>local</p>"), 0o600); err != nil {
			t.Fatal(err)
		}

		page, err := NewFetcher().Load(context.Background(), path)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		if !strings.HasPrefix(page.URL, "file://") || string(page.Body) != "<p>local</p>" {
			t.Errorf("page = %+v", page)
		}
	})

	t.Run("missing local file", func(t *testing.T) {
		t.Parallel()

		_, err := NewFetcher().Load(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM", "https://example.com/"},
		{"https://example.com/post#top", "https://example.com/post"},
		{"HTTP://example.com/a?b=c", "http://example.com/a?b=c"},
		{"file:///tmp/page.html", "file:///tmp/page.html"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com", true},
		{"http://localhost:8080/x", true},
		{"file:///tmp/x.html", false},
		{"./page.html", false},
		{"https://", false},
	}
	for _, tt := range tests {
		if got := IsRemote(tt.in); got != tt.want {
			t.Errorf("IsRemote(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRenderer(t *testing.T) {
	t.Parallel()

	r := NewRenderer(WithRenderTimeout(5*time.Second), WithSettleTime(0), WithExecPath("/usr/bin/chromium"))
	if r.timeout != 5*time.Second || r.settleTime != 0 || r.execPath != "/usr/bin/chromium" {
		t.Errorf("options not applied: %+v", r)
	}
	if len(r.allocatorOptions()) <= len(chromedpDefaults()) {
		t.Error("expected extra allocator options")
	}

	if os.Getenv("SPOILERGUARD_CHROME") == "" {
		t.Skip("set SPOILERGUARD_CHROME=1 to run headless Chrome")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<body><div id="x"></div><script>document.getElementById("x").textContent = "rendered"</script></body>`))
	}))
	defer srv.Close()

	page, err := NewRenderer().Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !strings.Contains(string(page.Body), "rendered") {
		t.Errorf("script output missing from %s", page.Body)
	}
}

func chromedpDefaults() []chromedp.ExecAllocatorOption {
	return chromedp.DefaultExecAllocatorOptions[:]
}
