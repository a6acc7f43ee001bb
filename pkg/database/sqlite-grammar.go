package database

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// SQLite Grammar
// -----------------------------------------------------------------------------
// Gömülü veritabanı lehçesi. Kolon probe'u pragma_table_info table-valued
// fonksiyonu ile yapılır (PRAGMA table_info eşdeğeri, parametre bağlanabilir).
// Advisory lock ve STDDEV/VARIANCE desteklenmez.
// -----------------------------------------------------------------------------

type SQLiteGrammar struct {
	baseGrammar
}

func NewSQLiteGrammar() *SQLiteGrammar {
	return &SQLiteGrammar{baseGrammar{driver: DriverSQLite, quote: `"`}}
}

func (g *SQLiteGrammar) TableExistsSQL(schema, table string) (string, []any) {
	if schema == "" || !validIdentifierPattern.MatchString(schema) {
		return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", []any{table}
	}
	return fmt.Sprintf(`SELECT 1 FROM "%s".sqlite_master WHERE type = 'table' AND name = ?`, schema), []any{table}
}

func (g *SQLiteGrammar) ColumnExistsSQL(schema, table, column string) (string, []any) {
	if schema == "" {
		return "SELECT 1 FROM pragma_table_info(?) WHERE name = ?", []any{table, column}
	}
	return "SELECT 1 FROM pragma_table_info(?, ?) WHERE name = ?", []any{table, schema, column}
}

// DatePart, SQLite'da strftime kullanır.
func (g *SQLiteGrammar) DatePart(part, column string) string {
	switch strings.ToLower(part) {
	case "year":
		return fmt.Sprintf("CAST(strftime('%%Y', %s) AS INTEGER)", column)
	case "month":
		return fmt.Sprintf("CAST(strftime('%%m', %s) AS INTEGER)", column)
	case "day":
		return fmt.Sprintf("CAST(strftime('%%d', %s) AS INTEGER)", column)
	default:
		return fmt.Sprintf("DATE(%s)", column)
	}
}

func (g *SQLiteGrammar) StatisticFunc(name string) (string, error) {
	return "", fmt.Errorf("%w: %s on sqlite", ErrUnsupported, strings.ToUpper(name))
}
