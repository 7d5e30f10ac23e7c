package fetcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

// memCacheSize bounds how many raw pages stay resident per process.
const memCacheSize = 256

// CachedFetcher decorates a Fetcher with a write-once-read-many page cache:
// one file per URL under dir, named by the hex digest of the URL, fronted by
// a small in-memory LRU. Entries are never invalidated; the key is URL
// identity, not content freshness.
type CachedFetcher struct {
	next Fetcher
	dir  string
	mem  *lru.Cache[string, []byte]
}

// NewCachedFetcher wraps next with caching under dir. The directory is
// created lazily on first write.
func NewCachedFetcher(next Fetcher, dir string) (*CachedFetcher, error) {
	mem, err := lru.New[string, []byte](memCacheSize)
	if err != nil {
		return nil, err
	}
	return &CachedFetcher{next: next, dir: dir, mem: mem}, nil
}

// Fetch returns the cached page when present, otherwise delegates and
// persists the result. A failed cache write is logged and otherwise
// ignored; it only forfeits the cache benefit for that URL.
func (c *CachedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := cacheKey(url)
	if body, ok := c.mem.Get(key); ok {
		return body, nil
	}

	path := filepath.Join(c.dir, key+".html")
	if body, err := os.ReadFile(path); err == nil {
		c.mem.Add(key, body)
		return body, nil
	}

	body, err := c.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, body)

	if err := c.persist(path, body); err != nil {
		slog.Warn("page cache write failed",
			slog.String("url", url),
			slog.String("path", path),
			slog.Any("error", err),
		)
	}
	return body, nil
}

func (c *CachedFetcher) persist(path string, body []byte) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}

// cacheKey returns the stable cache key for a fully resolved URL.
func cacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}
