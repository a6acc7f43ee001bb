// -----------------------------------------------------------------------------
// Memory Cache Driver
// -----------------------------------------------------------------------------
// In-memory probe cache (non-persistent).
//
// Resolver'ın varsayılan cache'idir: builder veya resolver ömrü boyunca
// yaşar. Expire olmuş entry'ler okuma anında temizlenir, arka planda
// goroutine çalışmaz.
//
// Sınırlamalar:
// - Non-persistent (restart'ta kaybolur)
// - Single-process (paylaşım için RedisCache kullanılmalı)
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCacheEntry, memory'de saklanan probe sonucu.
type MemoryCacheEntry struct {
	Exists    bool
	ExpiresAt time.Time // zero value = süresiz
}

// IsExpired, entry'nin expire olup olmadığını kontrol eder.
func (e *MemoryCacheEntry) IsExpired() bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(e.ExpiresAt)
}

// MemoryCache, in-memory cache implementation. Thread-safe.
type MemoryCache struct {
	store map[string]*MemoryCacheEntry
	mu    sync.RWMutex
	hits  int64
	miss  int64
}

// NewMemoryCache, yeni bir Memory cache instance oluşturur.
//
// Örnek:
//
//	c := cache.NewMemoryCache()
//	_ = c.Set(ctx, "col:.users.email", true, 0)
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]*MemoryCacheEntry)}
}

// Get, cache'den probe sonucunu okur.
func (m *MemoryCache) Get(_ context.Context, key string) (bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.store[key]
	if !ok {
		m.miss++
		return false, false, nil
	}
	if entry.IsExpired() {
		delete(m.store, key)
		m.miss++
		return false, false, nil
	}
	m.hits++
	return entry.Exists, true, nil
}

// Set, probe sonucunu yazar.
func (m *MemoryCache) Set(_ context.Context, key string, exists bool, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	m.store[key] = &MemoryCacheEntry{Exists: exists, ExpiresAt: expiresAt}
	return nil
}

// Delete, key'i siler.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.store, key)
	return nil
}

// Flush, tüm entry'leri siler.
func (m *MemoryCache) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = make(map[string]*MemoryCacheEntry)
	return nil
}

// Size, cache'deki toplam entry sayısını döndürür.
func (m *MemoryCache) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.store)
}

// Stats, memory cache istatistiklerini döndürür.
func (m *MemoryCache) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"driver": "memory",
		"keys":   len(m.store),
		"hits":   m.hits,
		"misses": m.miss,
	}
}
