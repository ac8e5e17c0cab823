package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/domain"
)

type cacheEntry struct {
	Articles  []domain.Article
	CreatedAt time.Time
	ExpiresAt time.Time
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// ResultCache keeps recent search responses so retried attempts and widened
// windows do not re-query the upstream for the same queries.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
}

func NewResultCache(config CacheConfig) *ResultCache {
	if config.TTL <= 0 {
		config.TTL = 15 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 500
	}
	return &ResultCache{
		entries:    make(map[string]cacheEntry),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
	}
}

func (c *ResultCache) Get(signature string) ([]domain.Article, bool) {
	c.mu.RLock()
	entry, exists := c.entries[signature]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Now().UTC().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, signature)
		c.mu.Unlock()
		return nil, false
	}
	return append([]domain.Article(nil), entry.Articles...), true
}

func (c *ResultCache) Set(signature string, articles []domain.Article) {
	now := time.Now().UTC()
	entry := cacheEntry{
		Articles:  append([]domain.Article(nil), articles...),
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	c.entries[signature] = entry
}

// BuildSignature keys a cache entry on the normalized queries and the exact
// search window, so widened windows never read a narrower window's results.
func BuildSignature(queries []string, windowDays int) string {
	normalized := make([]string, 0, len(queries))
	for _, query := range queries {
		normalized = append(normalized, strings.TrimSpace(strings.ToLower(query)))
	}
	sort.Strings(normalized)
	joined := strings.Join(normalized, "||") + "||" + strconv.Itoa(windowDays)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

func (c *ResultCache) evictOldest() {
	if len(c.entries) == 0 {
		return
	}

	oldestKey := ""
	oldestAt := time.Time{}
	for key, entry := range c.entries {
		if oldestKey == "" || entry.CreatedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.CreatedAt
		}
	}
	delete(c.entries, oldestKey)
}
