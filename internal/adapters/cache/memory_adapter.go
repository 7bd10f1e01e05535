package cache

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryAdapter is an in-process CacheProvider bounded by an LRU. It backs
// single-node deployments and tests.
type MemoryAdapter struct {
	mu    sync.Mutex
	items *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryAdapter creates an in-memory cache holding at most capacity keys
func NewMemoryAdapter(capacity int) (providers.CacheProvider, error) {
	return newMemoryAdapter(capacity, time.Now)
}

func newMemoryAdapter(capacity int, now func() time.Time) (*MemoryAdapter, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	items, err := lru.New[string, memoryEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryAdapter{items: items, now: now}, nil
}

// Get retrieves a copy of the cached value
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.items.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	if entry.expired(a.now()) {
		a.items.Remove(key)
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value; a non-positive expiration keeps it until evicted
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if expirationSeconds > 0 {
		entry.expiresAt = a.now().Add(time.Duration(expirationSeconds) * time.Second)
	}

	a.mu.Lock()
	a.items.Add(key, entry)
	a.mu.Unlock()
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.mu.Lock()
	a.items.Remove(key)
	a.mu.Unlock()
	return nil
}

// DeletePattern removes every key matching a glob pattern
func (a *MemoryAdapter) DeletePattern(ctx context.Context, pattern string) error {
	re, err := globToRegexp(pattern)
	if err != nil {
		return fmt.Errorf("invalid cache pattern %q: %w", pattern, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, key := range a.items.Keys() {
		if re.MatchString(key) {
			a.items.Remove(key)
		}
	}
	return nil
}

// Exists checks if an unexpired key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.items.Peek(key)
	if !ok {
		return false, nil
	}
	if entry.expired(a.now()) {
		a.items.Remove(key)
		return false, nil
	}
	return true, nil
}

// globToRegexp translates the Redis glob subset used for invalidation
// ("*" and "?") into an anchored regular expression.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
