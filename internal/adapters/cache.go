package adapters

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedExtractor wraps a TextExtractor with a content-hash cache, so a
// presenter lingering on one slide costs a single extraction.
type CachedExtractor struct {
	next  TextExtractor
	cache *expirable.LRU[string, Extraction]
}

func NewCachedExtractor(next TextExtractor, size int, ttl time.Duration) *CachedExtractor {
	if size <= 0 {
		size = 256
	}
	return &CachedExtractor{
		next:  next,
		cache: expirable.NewLRU[string, Extraction](size, nil, ttl),
	}
}

// Extract returns the extraction for image, using the cache when available.
func (c *CachedExtractor) Extract(ctx context.Context, image []byte) (*Extraction, error) {
	hash := ContentHash(image)
	if hit, ok := c.cache.Get(hash); ok {
		return &hit, nil
	}

	ex, err := c.next.Extract(ctx, image)
	if err != nil {
		return nil, err
	}
	c.cache.Add(hash, *ex)
	return ex, nil
}

// ContentHash computes a SHA-256 hash of content.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return fmt.Sprintf("%x", h)
}
