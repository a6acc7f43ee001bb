// -----------------------------------------------------------------------------
// Redis Connection
// -----------------------------------------------------------------------------
// Şema probe cache'i (cache.RedisCache) ve dağıtık lock'lar (RedisLocker)
// için paylaşılan Redis bağlantısı.
//
// Özellikler:
// - Connection pooling
// - Açılışta health check
// - Probe cache ve locker için hazır constructor'lar
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/cache"
)

// RedisConfig, Redis bağlantı yapılandırması.
type RedisConfig struct {
	Host         string        // Redis sunucu adresi
	Port         int           // Redis port
	Password     string        // Redis şifresi (opsiyonel)
	DB           int           // Database numarası (0-15)
	Prefix       string        // Probe cache ve lock key'lerinin ortak prefix'i
	PoolSize     int           // Connection pool boyutu
	MinIdleConns int           // Minimum idle connection sayısı
	MaxRetries   int           // Maksimum retry sayısı
	DialTimeout  time.Duration // Bağlantı timeout süresi
	ReadTimeout  time.Duration // Okuma timeout süresi
	WriteTimeout time.Duration // Yazma timeout süresi
}

// DefaultRedisConfig, varsayılan Redis yapılandırması.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         "127.0.0.1",
		Port:         6379,
		Prefix:       "mlquery:",
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisClient, redis.Client wrapper'ı.
type RedisClient struct {
	client *redis.Client
	prefix string
	logger Logger
}

// NewRedisClient, yeni bir Redis client oluşturur ve bağlantıyı test eder.
//
// Parametreler:
//   - ctx: Ping için context
//   - config: Redis yapılandırması (nil ise varsayılanlar)
//   - logger: Log instance
//
// Döndürür:
//   - *RedisClient: Redis client instance
//   - error: Bağlantı hatası
//
// Örnek:
//
//	rc, err := database.NewRedisClient(ctx, database.DefaultRedisConfig(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rc.Close()
//	conn := database.NewConnection(db, grammar, database.ConnectionOptions{
//	    Cache: rc.ProbeCache(),
//	})
func NewRedisClient(ctx context.Context, config *RedisConfig, logger Logger) (*RedisClient, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Printf("❌ Redis bağlantı hatası: %v", err)
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Printf("✅ Redis bağlantısı başarılı: %s:%d (DB: %d)", config.Host, config.Port, config.DB)

	return &RedisClient{client: client, prefix: config.Prefix, logger: logger}, nil
}

// Client, raw redis.Client instance döndürür.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// ProbeCache, bu bağlantı üzerinde "<prefix>schema:" namespace'li bir
// şema probe cache'i döndürür.
func (r *RedisClient) ProbeCache() *cache.RedisCache {
	return cache.NewRedisCache(r.client, r.logger, r.prefix+"schema:")
}

// Locker, bu bağlantı üzerinde "<prefix>lock:" namespace'li bir RedisLocker döndürür.
func (r *RedisClient) Locker(ttl time.Duration) *RedisLocker {
	return NewRedisLocker(r.client, r.prefix+"lock:", ttl)
}

// Ping, Redis sunucusunun erişilebilir olup olmadığını kontrol eder.
func (r *RedisClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.client.Ping(ctx).Err()
}

// Stats, Redis connection pool istatistiklerini döndürür.
func (r *RedisClient) Stats() map[string]any {
	poolStats := r.client.PoolStats()

	return map[string]any{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}

// Close, Redis bağlantısını kapatır.
func (r *RedisClient) Close() error {
	r.logger.Println("🔌 Redis bağlantısı kapatılıyor...")
	return r.client.Close()
}
