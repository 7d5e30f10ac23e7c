package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type countingFetcher struct {
	calls int
	body  []byte
	err   error
}

func (c *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.body, nil
}

func TestCachedFetcherHitsMemory(t *testing.T) {
	next := &countingFetcher{body: []byte("<html>page</html>")}
	cached, err := NewCachedFetcher(next, t.TempDir())
	if err != nil {
		t.Fatalf("new cached fetcher: %v", err)
	}

	url := "http://example.test/catalogue/book-1/index.html"
	for i := 0; i < 3; i++ {
		body, err := cached.Fetch(context.Background(), url)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if string(body) != "<html>page</html>" {
			t.Fatalf("body = %q", body)
		}
	}
	if next.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", next.calls)
	}
}

func TestCachedFetcherPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	url := "http://example.test/catalogue/book-2/index.html"

	first := &countingFetcher{body: []byte("<html>v1</html>")}
	cached, err := NewCachedFetcher(first, dir)
	if err != nil {
		t.Fatalf("new cached fetcher: %v", err)
	}
	if _, err := cached.Fetch(context.Background(), url); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	path := filepath.Join(dir, cacheKey(url)+".html")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// A fresh decorator over the same directory must serve from disk
	// without touching the network.
	second := &countingFetcher{err: errors.New("network must not be used")}
	reopened, err := NewCachedFetcher(second, dir)
	if err != nil {
		t.Fatalf("reopen cached fetcher: %v", err)
	}
	body, err := reopened.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("fetch from disk: %v", err)
	}
	if string(body) != "<html>v1</html>" {
		t.Fatalf("body = %q", body)
	}
	if second.calls != 0 {
		t.Fatalf("upstream calls = %d, want 0", second.calls)
	}
}

func TestCachedFetcherPropagatesError(t *testing.T) {
	next := &countingFetcher{err: errors.New("boom")}
	cached, err := NewCachedFetcher(next, t.TempDir())
	if err != nil {
		t.Fatalf("new cached fetcher: %v", err)
	}
	if _, err := cached.Fetch(context.Background(), "http://example.test/x"); err == nil {
		t.Fatalf("expected upstream error")
	}
	if next.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", next.calls)
	}
}

func TestCachedFetcherSurvivesWriteFailure(t *testing.T) {
	// Pointing the cache at an existing file makes MkdirAll fail.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	next := &countingFetcher{body: []byte("<html>ok</html>")}
	cached, err := NewCachedFetcher(next, blocked)
	if err != nil {
		t.Fatalf("new cached fetcher: %v", err)
	}

	body, err := cached.Fetch(context.Background(), "http://example.test/y")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestCacheKeyStable(t *testing.T) {
	a := cacheKey("http://example.test/page")
	b := cacheKey("http://example.test/page")
	if a != b {
		t.Fatalf("cache key is not deterministic: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("key length = %d, want 40 hex chars", len(a))
	}
	if a == cacheKey("http://example.test/other") {
		t.Fatalf("distinct URLs must not collide")
	}
}
