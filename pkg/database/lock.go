// -----------------------------------------------------------------------------
// Advisory Locks
// -----------------------------------------------------------------------------
// İsimli, uygulama seviyesinde kilitler. İki implementasyon vardır:
//
//   - DBLocker: Veritabanının kendi advisory lock'ları (MySQL GET_LOCK,
//     PostgreSQL pg_try_advisory_lock). Lock bağlantıya bağlı olduğu için
//     alınan her lock için havuzdan bir *sql.Conn ayrılır ve Release'e kadar
//     tutulur. SQLite'ta ErrUnsupported döner.
//   - RedisLocker: Birden fazla process/veritabanı arasında paylaşılan,
//     TTL'li SET NX kilidi. Sadece kilidi alan token onu bırakabilir.
//
// WithLock her iki implementasyonla çalışır ve fn'in nasıl sonlandığından
// bağımsız olarak lock'u bırakır.
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker, isimli advisory lock implementasyonlarının ortak interface'i.
type Locker interface {
	// Acquire, lock'u en fazla timeout süresince almaya çalışır.
	// Süre dolarsa (false, nil) döner.
	Acquire(ctx context.Context, name string, timeout time.Duration) (bool, error)

	// Release, daha önce alınmış lock'u bırakır.
	Release(ctx context.Context, name string) error
}

// defaultLockPoll, lock tekrar denemeleri arasındaki bekleme süresi.
const defaultLockPoll = 100 * time.Millisecond

// WithLock, lock'u alır, fn'i çalıştırır ve her çıkış yolunda (hata veya
// panic dahil) lock'u bırakır. Lock alınamazsa ErrLockTimeout döner.
//
// Örnek:
//
//	err := database.WithLock(ctx, locker, "reports:nightly", 5*time.Second, func() error {
//	    return buildNightlyReport(ctx)
//	})
func WithLock(ctx context.Context, locker Locker, name string, timeout time.Duration, fn func() error) (err error) {
	ok, err := locker.Acquire(ctx, name, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockTimeout, name)
	}
	defer func() {
		if relErr := locker.Release(context.WithoutCancel(ctx), name); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn()
}

// truthy, lock fonksiyonlarının döndürdüğü lehçeye özgü sonucu yorumlar:
// MySQL 1/0/NULL, PostgreSQL true/false.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x == 1
	case []byte:
		s := string(x)
		return s == "1" || strings.EqualFold(s, "t") || strings.EqualFold(s, "true")
	case string:
		return x == "1" || strings.EqualFold(x, "t") || strings.EqualFold(x, "true")
	}
	return false
}

// -----------------------------------------------------------------------------
// DB LOCKER
// -----------------------------------------------------------------------------

// pinnedConn, pinlenmiş tek bağlantı. *sql.Conn bunu sağlar.
type pinnedConn interface {
	QueryExecutor
	Close() error
}

// DBLocker, veritabanı advisory lock'larını kullanan Locker.
type DBLocker struct {
	pool    func(ctx context.Context) (pinnedConn, error)
	grammar Grammar
	logger  Logger
	poll    time.Duration

	mu   sync.Mutex
	held map[string]pinnedConn
}

// NewDBLocker, verilen havuz ve lehçe için bir DBLocker oluşturur.
//
// Örnek:
//
//	locker := database.NewDBLocker(conn.DB, conn.Grammar, logger)
//	ok, err := locker.Acquire(ctx, "invoices", 3*time.Second)
func NewDBLocker(db *sql.DB, grammar Grammar, logger Logger) *DBLocker {
	return &DBLocker{
		pool: func(ctx context.Context) (pinnedConn, error) {
			c, err := db.Conn(ctx)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
		grammar: grammar,
		logger:  logger,
		poll:    defaultLockPoll,
		held:    make(map[string]pinnedConn),
	}
}

// Acquire, lock'u alana veya timeout dolana kadar dener. MySQL'de sunucu
// GET_LOCK içinde kendisi bekler; PostgreSQL'de pg_try_advisory_lock
// poll edilir.
func (l *DBLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	seconds := int(timeout / time.Second)
	query, args, err := l.grammar.LockSQL(name, seconds)
	if err != nil {
		return false, err
	}

	l.mu.Lock()
	_, already := l.held[name]
	l.mu.Unlock()
	if already {
		return false, fmt.Errorf("database: lock %q is already held by this locker", name)
	}

	c, err := l.pool(ctx)
	if err != nil {
		return false, err
	}

	deadline := time.Now().Add(timeout)
	for {
		var got any
		if err := c.QueryRowContext(ctx, query, args...).Scan(&got); err != nil {
			c.Close()
			return false, wrapDriverError(err, query)
		}
		if truthy(got) {
			l.mu.Lock()
			l.held[name] = c
			l.mu.Unlock()
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.Close()
			l.logger.Printf("⏱️  Lock alınamadı (timeout): %s", name)
			return false, nil
		}
		wait := min(l.poll, remaining)
		select {
		case <-ctx.Done():
			c.Close()
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Release, lock'u aldığı bağlantı üzerinden bırakır ve bağlantıyı havuza iade eder.
func (l *DBLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	c, ok := l.held[name]
	delete(l.held, name)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("database: lock %q is not held", name)
	}
	defer c.Close()

	query, args, err := l.grammar.UnlockSQL(name)
	if err != nil {
		return err
	}
	var released any
	if err := c.QueryRowContext(ctx, query, args...).Scan(&released); err != nil {
		return wrapDriverError(err, query)
	}
	if !truthy(released) {
		l.logger.Printf("⚠️  Lock bırakılamadı (sahibi değil): %s", name)
	}
	return nil
}

// -----------------------------------------------------------------------------
// REDIS LOCKER
// -----------------------------------------------------------------------------

// releaseScript, sadece token eşleşirse key'i siler.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker, Redis SET NX PX kullanan dağıtık Locker.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisLocker, yeni bir RedisLocker oluşturur. ttl, lock sahibi çökerse
// kilidin kendiliğinden düşeceği süredir.
//
// Örnek:
//
//	locker := database.NewRedisLocker(redisClient.Client(), "mlquery:lock:", 30*time.Second)
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		poll:   defaultLockPoll,
		tokens: make(map[string]string),
	}
}

// Acquire, lock'u timeout dolana kadar poll ederek almaya çalışır.
func (l *RedisLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	key := l.prefix + name
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("redis lock %s: %w", name, err)
		}
		if ok {
			l.mu.Lock()
			l.tokens[name] = token
			l.mu.Unlock()
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(min(l.poll, remaining)):
		}
	}
}

// Release, lock'u sadece bu locker'ın token'ı hâlâ geçerliyse siler.
func (l *RedisLocker) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("redis lock %q is not held", name)
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("redis unlock %s: %w", name, err)
	}
	return nil
}
