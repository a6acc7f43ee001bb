// -----------------------------------------------------------------------------
// Cache Interface
// -----------------------------------------------------------------------------
// Şema probe cache'i. Identifier Resolver, "schema.table.column var mı?"
// sorularının cevaplarını burada saklar; aynı builder (veya paylaşılan bir
// resolver) aynı metadata sorgusunu tekrar tekrar çalıştırmaz.
//
// Driver'lar:
//   - Memory: builder/resolver başına, process içi (varsayılan)
//   - Redis: birden fazla process arasında paylaşılan, TTL'li
//
// Cache'te "yok" cevabı da saklanır; hit bilgisi ayrı döner. Probe hataları
// cache'lenmez, bu karar Resolver'a aittir.
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"time"
)

// Cache, tüm cache driver'ların implement etmesi gereken interface.
type Cache interface {
	// Get, cache'den probe sonucunu okur.
	//
	// Döndürür:
	//   - exists: Saklanan cevap
	//   - hit: Key cache'te var mı?
	//   - error: Okuma hatası
	Get(ctx context.Context, key string) (exists bool, hit bool, err error)

	// Set, probe sonucunu cache'e yazar. ttl = 0 ise süresiz saklanır.
	Set(ctx context.Context, key string, exists bool, ttl time.Duration) error

	// Delete, tek bir key'i siler. Key yoksa hata vermez.
	Delete(ctx context.Context, key string) error

	// Flush, driver'ın namespace'ini tamamen temizler.
	Flush(ctx context.Context) error
}

// Stats, istatistik sağlayan driver'lar için opsiyonel interface.
type Stats interface {
	Stats() map[string]any
}

// Logger, log interface'i (dependency injection için).
type Logger interface {
	Printf(format string, v ...any)
	Println(v ...any)
}

// Remember, cache'den okur; miss durumunda callback'i çalıştırıp sonucu cache'ler.
// Callback hatası cache'lenmez ve olduğu gibi döner. Cache yazma hatası
// sonucu etkilemez.
//
// Örnek:
//
//	exists, err := cache.Remember(ctx, c, "col:app.users.email", time.Hour, probe)
func Remember(ctx context.Context, c Cache, key string, ttl time.Duration, callback func() (bool, error)) (bool, error) {
	if exists, hit, err := c.Get(ctx, key); err == nil && hit {
		return exists, nil
	}

	exists, err := callback()
	if err != nil {
		return false, err
	}

	_ = c.Set(ctx, key, exists, ttl)
	return exists, nil
}
