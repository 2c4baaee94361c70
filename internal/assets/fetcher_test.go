package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f := NewFetcher(t.TempDir())
	f.RetryDelay = time.Millisecond
	f.MaxRetryDelay = 5 * time.Millisecond
	return f
}

func TestCachePath(t *testing.T) {
	f := NewFetcher("/cache")

	a := f.CachePath("https://example.com/a/rock.blend")
	b := f.CachePath("https://example.com/b/rock.blend")
	if a == b {
		t.Errorf("CachePath() collided for different URLs: %s", a)
	}
	if !strings.HasSuffix(a, "_rock.blend") {
		t.Errorf("CachePath() = %s, want suffix _rock.blend", a)
	}
	if filepath.Dir(a) != "/cache" {
		t.Errorf("CachePath() dir = %s, want /cache", filepath.Dir(a))
	}
	if got := f.CachePath("https://example.com/"); !strings.HasSuffix(got, "_download") {
		t.Errorf("CachePath() = %s, want suffix _download", got)
	}
	if a != f.CachePath("https://example.com/a/rock.blend") {
		t.Error("CachePath() is not stable")
	}
}

func TestDownloadCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "trellis-bridge/") {
			t.Errorf("User-Agent = %q", ua)
		}
		_, _ = w.Write([]byte("texture-bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	url := srv.URL + "/tex/wood_diff.jpg"

	for i := 0; i < 2; i++ {
		path, err := f.Download(context.Background(), url)
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "texture-bytes" {
			t.Errorf("content = %q, want texture-bytes", data)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if !f.IsCached(url) {
		t.Error("IsCached() = false after download")
	}
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	if _, err := f.Download(context.Background(), srv.URL+"/model.glb"); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("server hits = %d, want 3", got)
	}
}

func TestDownloadNotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	_, err := f.Download(context.Background(), srv.URL+"/missing.hdr")
	if !IsNotFound(err) {
		t.Fatalf("Download() error = %v, want 404", err)
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true for 404")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
	if f.IsCached(srv.URL + "/missing.hdr") {
		t.Error("failed download left a cache entry")
	}
}

func TestDownloadTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	f.MaxSize = 16
	_, err := f.Download(context.Background(), srv.URL+"/big.bin")
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Type != ErrTypeTooLarge {
		t.Fatalf("Download() error = %v, want ErrTypeTooLarge", err)
	}
}

func TestDownloadRejectsBadURL(t *testing.T) {
	f := newTestFetcher(t)
	tests := []string{"ftp://example.com/x", "not a url", "http:///nohost"}
	for _, url := range tests {
		if _, err := f.Download(context.Background(), url); err == nil {
			t.Errorf("Download(%q) error = nil, want error", url)
		}
	}
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			_, _ = w.Write([]byte("{not json"))
			return
		}
		_, _ = w.Write([]byte(`{"wood": 12, "metal": 3}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	var got map[string]int
	if err := f.GetJSON(context.Background(), srv.URL+"/categories", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got["wood"] != 12 || got["metal"] != 3 {
		t.Errorf("GetJSON() = %v", got)
	}

	err := f.GetJSON(context.Background(), srv.URL+"/bad", &got)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Type != ErrTypeParse {
		t.Errorf("GetJSON() error = %v, want ErrTypeParse", err)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	f.RetryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var v any
	if err := f.GetJSON(ctx, srv.URL, &v); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetJSON() error = %v, want deadline exceeded", err)
	}
}

func TestConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newTestFetcher(t)
	f.MaxRetries = 0
	_, err := f.Download(context.Background(), url+"/x")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Download() error = %v, want *FetchError", err)
	}
	if fe.Type != ErrTypeConnectionRefused {
		t.Errorf("Type = %v, want %v", fe.Type, ErrTypeConnectionRefused)
	}
	if !fe.Retryable {
		t.Error("Retryable = false, want true")
	}
}
