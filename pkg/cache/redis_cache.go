// -----------------------------------------------------------------------------
// Redis Cache Driver
// -----------------------------------------------------------------------------
// Redis-based probe cache. Birden fazla process aynı şema metadata'sını
// paylaştığında kullanılır; böylece her process information_schema'yı ayrı
// ayrı sorgulamaz.
//
// Özellikler:
// - msgpack serialization (kompakt payload)
// - TTL support (şema değişikliklerinin görünmesi için önerilir)
// - Prefix bazlı namespace ve Flush
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// redisEntry, Redis'e yazılan payload.
type redisEntry struct {
	Exists    bool  `msgpack:"e"`
	CheckedAt int64 `msgpack:"t"`
}

// RedisCache, Redis-based cache implementation.
type RedisCache struct {
	client redis.UniversalClient
	logger Logger
	prefix string // Key prefix (namespace)
}

// NewRedisCache, yeni bir Redis cache instance oluşturur.
//
// Parametreler:
//   - client: Redis client
//   - logger: Log instance
//   - prefix: Cache key prefix (örn: "mlquery:schema:")
//
// Örnek:
//
//	c := cache.NewRedisCache(redisClient, logger, "mlquery:schema:")
//	// Gerçek key: "mlquery:schema:col:app.users.email"
func NewRedisCache(client redis.UniversalClient, logger Logger, prefix string) *RedisCache {
	return &RedisCache{client: client, logger: logger, prefix: prefix}
}

func (r *RedisCache) prefixKey(key string) string {
	return r.prefix + key
}

// Get, cache'den probe sonucunu okur. redis.Nil bir miss'tir, hata değil.
func (r *RedisCache) Get(ctx context.Context, key string) (bool, bool, error) {
	prefixedKey := r.prefixKey(key)
	raw, err := r.client.Get(ctx, prefixedKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		r.logger.Printf("❌ Redis Get hatası [%s]: %v", prefixedKey, err)
		return false, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry redisEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		r.logger.Printf("❌ msgpack decode hatası [%s]: %v", prefixedKey, err)
		return false, false, fmt.Errorf("msgpack decode failed: %w", err)
	}
	return entry.Exists, true, nil
}

// Set, probe sonucunu yazar.
func (r *RedisCache) Set(ctx context.Context, key string, exists bool, ttl time.Duration) error {
	data, err := msgpack.Marshal(redisEntry{Exists: exists, CheckedAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("msgpack encode failed: %w", err)
	}

	prefixedKey := r.prefixKey(key)
	if err := r.client.Set(ctx, prefixedKey, data, ttl).Err(); err != nil {
		r.logger.Printf("❌ Redis Set hatası [%s]: %v", prefixedKey, err)
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete, key'i siler.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefixKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Flush, sadece prefix namespace'ini temizler.
//
// UYARI: Prefix boşsa hiçbir şey silinmez; paylaşılan bir Redis'te
// FlushDB çağırmak başka uygulamaların verisini de siler.
func (r *RedisCache) Flush(ctx context.Context) error {
	if r.prefix == "" {
		return errors.New("redis flush requires a prefix")
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.Printf("❌ Redis Scan hatası: %v", err)
		return fmt.Errorf("redis scan failed: %w", err)
	}

	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis flush failed: %w", err)
		}
	}

	r.logger.Printf("⚠️  Şema cache temizlendi [prefix: %s, keys: %d]", r.prefix, len(keys))
	return nil
}

// Stats, Redis cache istatistiklerini döndürür.
func (r *RedisCache) Stats() map[string]any {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := r.client.Info(ctx, "stats").Result()
	if err != nil {
		return map[string]any{"driver": "redis", "error": err.Error()}
	}
	return map[string]any{"driver": "redis", "prefix": r.prefix, "info": info}
}
