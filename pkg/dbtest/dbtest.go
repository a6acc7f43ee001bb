// -----------------------------------------------------------------------------
// Database Testing Helpers
// -----------------------------------------------------------------------------
// Bu package, query builder ve repository testlerini kolaylaştıran helper
// fonksiyonlar sağlar.
//
// Özellikler:
// - In-memory SQLite bağlantısı (modernc.org/sqlite, cgo gerektirmez)
// - sqlmock ile SQL beklentisi tabanlı bağlantı
// - DatabaseTransaction: test sonunda her şeyi geri alan transaction
// - Log yakalayan Logger
// - Factory pattern for test data
//
// Kullanım:
//
//	func TestPosts(t *testing.T) {
//	    conn := dbtest.NewSQLite(t, dbtest.BlogSchema)
//	    dbtest.Seed(t, conn, "users", database.Values{"id": 1, "name": "Ada"})
//
//	    n, err := conn.Builder().Table("users").Count()
//	    require.NoError(t, err)
//	    assert.Equal(t, int64(1), n)
//	}
// -----------------------------------------------------------------------------

package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
)

// BlogSchema, testlerde kullanılan örnek blog şeması.
//
//	users 1─1 profiles
//	users 1─n posts 1─n comments
//	posts n─n tags (post_tags)
const BlogSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT
);
CREATE TABLE profiles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    bio TEXT
);
CREATE TABLE posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    views INTEGER NOT NULL DEFAULT 0,
    created_at TEXT
);
CREATE TABLE comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL,
    body TEXT NOT NULL
);
CREATE TABLE tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);
CREATE TABLE post_tags (
    post_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (post_id, tag_id)
);
`

// GallerySchema, camelCase "_id" kolonlu legacy tablolar.
const GallerySchema = `
CREATE TABLE project_gallery (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL
);
CREATE TABLE gallery_images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    "projectGallery_id" INTEGER NOT NULL,
    path TEXT NOT NULL
);
CREATE TABLE image_notes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    "projectGallery_id" INTEGER NOT NULL,
    note TEXT NOT NULL
);
`

// NewSQLite, şemaları uygulanmış in-memory bir SQLite Connection döndürür.
// Havuz tek bağlantıyla sınırlıdır; böylece tüm sorgular aynı veritabanını
// görür. Bağlantı test sonunda kapatılır.
//
// Parametreler:
//   - t: Test context'i
//   - schemas: Sırayla çalıştırılacak DDL script'leri (";" ile ayrılmış)
//
// Döndürür:
//   - *database.Connection: Logları t.Log'a yazan bağlantı
func NewSQLite(t testing.TB, schemas ...string) *database.Connection {
	t.Helper()
	return NewSQLiteWith(t, database.ConnectionOptions{}, schemas...)
}

// NewSQLiteWith, NewSQLite gibidir ama bağlantı seçeneklerini alır.
func NewSQLiteWith(t testing.TB, opts database.ConnectionOptions, schemas ...string) *database.Connection {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, schema := range schemas {
		for _, stmt := range splitStatements(schema) {
			_, err := db.Exec(stmt)
			require.NoError(t, err, "schema statement failed: %s", stmt)
		}
	}

	if opts.Logger == nil {
		opts.Logger = NewLogger(t)
	}
	conn := database.NewConnection(db, database.NewSQLiteGrammar(), opts)
	t.Cleanup(func() { _ = db.Close() })
	return conn
}

func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Seed, tabloya satırları ekler. Hata testi durdurur.
//
// Örnek:
//
//	dbtest.Seed(t, conn, "tags",
//	    database.Values{"id": 1, "name": "go"},
//	    database.Values{"id": 2, "name": "sql"},
//	)
func Seed(t testing.TB, conn *database.Connection, table string, rows ...database.Values) {
	t.Helper()
	for _, row := range rows {
		_, err := conn.Builder().Table(table).Insert(row)
		require.NoError(t, err, "seed %s", table)
	}
}

// NewMock, sqlmock tabanlı bir Connection döndürür. Preflight çözümleme
// kapalıdır; beklentilerde metadata probe'ları yer almaz. Test sonunda
// tüm beklentilerin karşılandığı doğrulanır.
//
// Örnek:
//
//	conn, mock := dbtest.NewMock(t, database.NewMySQLGrammar())
//	mock.ExpectExec("DELETE FROM sessions").WillReturnResult(sqlmock.NewResult(0, 3))
func NewMock(t testing.TB, grammar database.Grammar, opts ...database.ConnectionOptions) (*database.Connection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var o database.ConnectionOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	o.DisableResolver = true
	if o.Logger == nil {
		o.Logger = NewLogger(t)
	}

	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return database.NewConnection(db, grammar, o), mock
}

// DatabaseTransaction, fn'i bir transaction içinde çalıştırır ve sonunda
// her durumda geri alır. Test verisi kalıcı olmaz.
func DatabaseTransaction(t testing.TB, conn *database.Connection, fn func(tx *database.TransactionManager)) {
	t.Helper()

	ctx := context.Background()
	tm := conn.Transactions()
	require.NoError(t, tm.Begin(ctx))
	defer func() {
		for tm.InTransaction() {
			if err := tm.Rollback(ctx); err != nil {
				t.Errorf("rollback failed: %v", err)
				return
			}
		}
	}()
	fn(tm)
}

// -----------------------------------------------------------------------------
// Logger
// -----------------------------------------------------------------------------

// Logger, log satırlarını hem yakalayan hem de t.Log'a yazan database.Logger.
type Logger struct {
	mu    sync.Mutex
	t     testing.TB
	lines []string
}

// NewLogger, yeni bir yakalayıcı logger oluşturur. t nil olabilir.
func NewLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) record(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
	if l.t != nil {
		l.t.Log(line)
	}
}

// Printf, formatlı bir satır kaydeder.
func (l *Logger) Printf(format string, v ...any) {
	l.record(fmt.Sprintf(format, v...))
}

// Println, bir satır kaydeder.
func (l *Logger) Println(v ...any) {
	l.record(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Lines, kaydedilen satırların kopyasını döndürür.
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Contains, herhangi bir satırın substr içerip içermediğini döndürür.
func (l *Logger) Contains(substr string) bool {
	for _, line := range l.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Factory Pattern
// -----------------------------------------------------------------------------

// Factory, test satırları üretir.
type Factory struct {
	table    string
	defaults func(n int) database.Values
	sequence int
}

// NewFactory, tablo için varsayılan değer üreticisiyle factory oluşturur.
// defaults her satır için artan sıra numarasıyla (1'den başlar) çağrılır.
//
// Örnek:
//
//	users := dbtest.NewFactory("users", func(n int) database.Values {
//	    return database.Values{"name": fmt.Sprintf("user-%d", n)}
//	})
//	row := users.Make(database.Values{"active": 0})
func NewFactory(table string, defaults func(n int) database.Values) *Factory {
	return &Factory{table: table, defaults: defaults}
}

// Make, override'larla birleştirilmiş yeni bir satır üretir (veritabanına yazmaz).
func (f *Factory) Make(overrides ...database.Values) database.Values {
	f.sequence++
	row := database.Values{}
	for k, v := range f.defaults(f.sequence) {
		row[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			row[k] = v
		}
	}
	return row
}

// Create, count kadar satır üretip tabloya ekler ve üretilen id'leri döndürür.
func (f *Factory) Create(t testing.TB, conn *database.Connection, count int, overrides ...database.Values) []int64 {
	t.Helper()
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id, err := conn.Builder().Table(f.table).InsertGetID(f.Make(overrides...))
		require.NoError(t, err, "factory %s", f.table)
		ids = append(ids, id)
	}
	return ids
}

// UserFactory, users tablosu için factory.
func UserFactory() *Factory {
	return NewFactory("users", func(n int) database.Values {
		return database.Values{
			"name":   fmt.Sprintf("user-%d", n),
			"email":  fmt.Sprintf("user%d@example.com", n),
			"active": 1,
		}
	})
}

// PostFactory, posts tablosu için factory.
func PostFactory(userID int64) *Factory {
	return NewFactory("posts", func(n int) database.Values {
		return database.Values{
			"user_id": userID,
			"title":   fmt.Sprintf("Post %d", n),
			"status":  "published",
			"views":   n * 10,
		}
	})
}
