// -----------------------------------------------------------------------------
// Database Connection
// -----------------------------------------------------------------------------
// Bu dosya, veritabanı bağlantısını (havuz + lehçe + resolver ayarları) tek
// bir noktadan yöneten Connection tipini içerir.
//
// Open, driver adını ve DSN'i alır, bağlantı havuzunu başlatır, havuz
// ayarlarını uygular ve veritabanının ulaşılabilirliğini kontrol eder.
// Desteklenen driver'lar:
//
//   - mysql    → github.com/go-sql-driver/mysql
//   - postgres → github.com/lib/pq
//   - sqlite   → modernc.org/sqlite (cgo gerektirmez)
//
// Bir Connection'dan üretilen tüm builder'lar aynı Table Map'i ve aynı şema
// probe cache'ini paylaşır; böylece aynı kolon sorusu process içinde bir
// kez sorulur.
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/cache"
	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/events"
)

// ConnectionOptions, Connection yapılandırması. Sıfır değerler varsayılanlara döner.
type ConnectionOptions struct {
	MaxOpenConns    int           // Varsayılan 25
	MaxIdleConns    int           // Varsayılan 25
	ConnMaxLifetime time.Duration // Varsayılan 5 dakika

	Schema     string             // Probe'larda varsayılan schema
	Tables     *TableMap          // nil ise DefaultTableMap()
	Cache      cache.Cache        // nil ise process içi MemoryCache
	CacheTTL   time.Duration      // 0 = süresiz
	Logger     Logger             // nil ise stderr
	Dispatcher *events.Dispatcher // QueryExecuted/Transaction event'leri için
	Macros     Macros

	// DisableResolver, preflight çözümlemeyi kapatır; SQL olduğu gibi render
	// edilir ve hiç metadata probe'u çalışmaz.
	DisableResolver bool
}

// Connection, havuz ve lehçe ile builder/transaction fabrikasıdır.
type Connection struct {
	DB         *sql.DB
	Grammar    Grammar
	Dispatcher *events.Dispatcher

	schema    string
	tables    *TableMap
	cache     cache.Cache
	cacheTTL  time.Duration
	log       Logger
	macros    Macros
	noResolve bool
	pool      *Resolver
}

// sqlDriverName, lehçe adını database/sql driver adına çevirir.
func sqlDriverName(driver string) string {
	if driver == DriverSQLite {
		return "sqlite"
	}
	return driver
}

// Open, verilen driver ve DSN ile veritabanına bağlanır.
// Bağlantı sırasında şu adımlar gerçekleştirilir:
//  1. Driver adından lehçe (Grammar) seçilir.
//  2. sql.Open ile havuz oluşturulur ve havuz ayarları uygulanır.
//  3. PingContext ile veritabanının ulaşılabilirliği kontrol edilir.
//  4. Hata varsa havuz kapatılır ve error döner.
//
// Örnek:
//
//	conn, err := database.Open(ctx, "postgres", os.Getenv("DATABASE_DSN"), database.ConnectionOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
func Open(ctx context.Context, driver, dsn string, opts ConnectionOptions) (*Connection, error) {
	grammar, err := GrammarFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlDriverName(grammar.Driver()), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 25
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	conn := NewConnection(db, grammar, opts)
	conn.log.Printf("Veritabanına bağlanılıyor (%s)...", grammar.Driver())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	conn.log.Println("✅ Veritabanı bağlantısı başarılı!")
	return conn, nil
}

// NewConnection, mevcut bir *sql.DB'yi Connection'a sarar. Havuz ayarlarına
// dokunmaz; testlerde sqlmock veya in-memory SQLite ile kullanılır.
func NewConnection(db *sql.DB, grammar Grammar, opts ConnectionOptions) *Connection {
	c := &Connection{
		DB:         db,
		Grammar:    grammar,
		Dispatcher: opts.Dispatcher,
		schema:     opts.Schema,
		tables:     opts.Tables,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		log:        opts.Logger,
		macros:     opts.Macros,
		noResolve:  opts.DisableResolver,
	}
	if c.tables == nil {
		c.tables = DefaultTableMap()
	}
	if c.cache == nil {
		c.cache = cache.NewMemoryCache()
	}
	if c.log == nil {
		c.log = log.New(os.Stderr, "[database] ", log.LstdFlags)
	}
	c.pool = c.newResolver(db)
	return c
}

func (c *Connection) logger() Logger { return c.log }

// Tables, bağlantının Table Map'ini döndürür.
func (c *Connection) Tables() *TableMap { return c.tables }

// ProbeCache, paylaşılan şema probe cache'ini döndürür.
func (c *Connection) ProbeCache() cache.Cache { return c.cache }

// Resolver, verilen executor üzerinde paylaşılan cache'i kullanan bir
// Resolver döndürür. Havuz (c.DB) için her zaman aynı Resolver döner; böylece
// farklı builder'lardan gelen eşzamanlı metadata sorguları tek sorguda birleşir.
// Transaction içinde probe'lar transaction'ın bağlantısından geçer.
func (c *Connection) Resolver(executor QueryExecutor) *Resolver {
	if db, ok := executor.(*sql.DB); ok && db == c.DB && c.pool != nil {
		return c.pool
	}
	return c.newResolver(executor)
}

func (c *Connection) newResolver(executor QueryExecutor) *Resolver {
	return NewResolver(executor, c.Grammar,
		WithTableMap(c.tables),
		WithProbeCache(c.cache, c.cacheTTL),
		WithResolverLogger(c.log),
	)
}

// Builder, havuz üzerinde yeni bir QueryBuilder döndürür.
//
// Örnek:
//
//	users, err := conn.Builder().From("users").Where("active", "=", 1).FetchAll()
func (c *Connection) Builder(opts ...Option) *QueryBuilder {
	return c.builderFor(c.DB, opts...)
}

func (c *Connection) builderFor(executor QueryExecutor, opts ...Option) *QueryBuilder {
	var resolver IdentifierResolver
	if !c.noResolve {
		resolver = c.Resolver(executor)
	}
	base := []Option{
		WithResolver(resolver),
		WithLogger(c.log),
		WithSchema(c.schema),
	}
	if c.Dispatcher != nil {
		base = append(base, WithDispatcher(c.Dispatcher))
	}
	if c.macros != nil {
		base = append(base, WithMacros(c.macros))
	}
	return NewBuilder(executor, c.Grammar, append(base, opts...)...)
}

// Transactions, bu bağlantı için yeni bir TransactionManager döndürür.
func (c *Connection) Transactions() *TransactionManager {
	return NewTransactionManager(c)
}

// Close, bağlantı havuzunu kapatır.
func (c *Connection) Close() error {
	c.log.Println("🔌 Veritabanı bağlantısı kapatılıyor...")
	return c.DB.Close()
}
