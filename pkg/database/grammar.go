package database

import (
	"fmt"
	"regexp"
	"strings"
)

// -----------------------------------------------------------------------------
// Grammar Interface
// -----------------------------------------------------------------------------
// Grammar, SQL lehçesine özgü her şeyi (identifier quoting, placeholder stili,
// metadata probe sorguları, advisory lock SQL'i, lehçeye özgü fonksiyonlar)
// tek bir noktada toplar. QueryBuilder ve Resolver lehçeden habersizdir.
//
// Implementasyonlar:
// - MySQLGrammar: MySQL/MariaDB
// - PostgresGrammar: PostgreSQL
// - SQLiteGrammar: SQLite (gömülü)
// -----------------------------------------------------------------------------

// Driver isimleri.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Grammar, SQL lehçesine özgü sorgu üretimini tanımlar.
type Grammar interface {
	// Driver, lehçenin driver adını döndürür (mysql, postgres, sqlite).
	Driver() string

	// Wrap, identifier'ları (kolon/tablo adları) lehçeye göre sarmalar.
	// MySQL: backtick (`table`), PostgreSQL/SQLite: çift tırnak ("table")
	Wrap(value string) (string, error)

	// Placeholder, n. (1'den başlayan) pozisyonel parametrenin işaretini döndürür.
	Placeholder(n int) string

	// TableExistsSQL, tablo varlığını kontrol eden sorguyu döndürür.
	// Sorgu, tablo varsa en az bir satır döndürür.
	TableExistsSQL(schema, table string) (string, []any)

	// ColumnExistsSQL, kolon varlığını kontrol eden sorguyu döndürür.
	// Sorgu, kolon varsa en az bir satır döndürür.
	ColumnExistsSQL(schema, table, column string) (string, []any)

	// GroupConcat, lehçeye özgü string birleştirme aggregate'ini üretir.
	GroupConcat(expr, separator string) string

	// DatePart, bir tarih kolonunun parçasını (date, year, month, day) çıkaran ifadeyi üretir.
	DatePart(part, column string) string

	// Random, rastgele sıralama ifadesini döndürür.
	Random() string

	// SupportsDistinctOn, DISTINCT ON desteği olup olmadığını döndürür.
	SupportsDistinctOn() bool

	// StatisticFunc, STDDEV/VARIANCE fonksiyon adını döndürür; desteklenmiyorsa ErrUnsupported.
	StatisticFunc(name string) (string, error)

	// LockSQL / UnlockSQL, advisory lock sorgularını döndürür; desteklenmiyorsa ErrUnsupported.
	LockSQL(name string, timeoutSeconds int) (string, []any, error)
	UnlockSQL(name string) (string, []any, error)

	// InsertReturning, INSERT'e eklenecek RETURNING ifadesini döndürür (yoksa "").
	InsertReturning(primaryKey string) string
}

// GrammarFor, driver adına göre uygun Grammar'ı döndürür.
//
// Örnek:
//
//	g, err := GrammarFor("postgres")
func GrammarFor(driver string) (Grammar, error) {
	switch strings.ToLower(driver) {
	case DriverMySQL, "mariadb":
		return NewMySQLGrammar(), nil
	case DriverPostgres, "pgsql", "postgresql":
		return NewPostgresGrammar(), nil
	case DriverSQLite, "sqlite3":
		return NewSQLiteGrammar(), nil
	default:
		return nil, fmt.Errorf("%w: driver %q", ErrUnsupported, driver)
	}
}

var validIdentifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_\.]+$`)

// baseGrammar, üç lehçenin ortak davranışını taşır. Lehçeler yalnızca
// farklılaşan metodları override eder.
type baseGrammar struct {
	driver string
	quote  string
}

func (g baseGrammar) Driver() string { return g.driver }

// Wrap, identifier'ı sarmalar. "table.column" formatı parçalara bölünerek
// sarmalanır; "*" olduğu gibi bırakılır.
func (g baseGrammar) Wrap(value string) (string, error) {
	if value == "*" {
		return value, nil
	}

	parts := strings.Split(value, ".")
	wrapped := make([]string, len(parts))
	for i, part := range parts {
		if part == "*" && i == len(parts)-1 {
			wrapped[i] = part
			continue
		}
		if part == "" || !validIdentifierPattern.MatchString(part) {
			return "", fmt.Errorf("%w: %s (contains unsafe characters)", ErrInvalidIdentifier, value)
		}
		wrapped[i] = g.quote + part + g.quote
	}
	return strings.Join(wrapped, "."), nil
}

func (g baseGrammar) Placeholder(int) string { return "?" }

func (g baseGrammar) GroupConcat(expr, separator string) string {
	return fmt.Sprintf("GROUP_CONCAT(%s, '%s')", expr, escapeString(separator))
}

func (g baseGrammar) DatePart(part, column string) string {
	return fmt.Sprintf("%s(%s)", strings.ToUpper(part), column)
}

func (g baseGrammar) Random() string { return "RANDOM()" }

func (g baseGrammar) SupportsDistinctOn() bool { return false }

func (g baseGrammar) StatisticFunc(name string) (string, error) {
	switch strings.ToUpper(name) {
	case "STDDEV":
		return "STDDEV_SAMP", nil
	case "VARIANCE":
		return "VAR_SAMP", nil
	}
	return "", fmt.Errorf("%w: statistic %s", ErrUnsupported, name)
}

func (g baseGrammar) LockSQL(string, int) (string, []any, error) {
	return "", nil, fmt.Errorf("%w: advisory locks on %s", ErrUnsupported, g.driver)
}

func (g baseGrammar) UnlockSQL(string) (string, []any, error) {
	return "", nil, fmt.Errorf("%w: advisory locks on %s", ErrUnsupported, g.driver)
}

func (g baseGrammar) InsertReturning(string) string { return "" }

// escapeString, tek tırnak ve backslash'leri escape eder.
func escapeString(s string) string {
	if !strings.ContainsAny(s, `'\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}
