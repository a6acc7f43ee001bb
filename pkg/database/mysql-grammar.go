package database

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// MySQL Grammar
// -----------------------------------------------------------------------------
// MySQL/MariaDB lehçesi: backtick ile quoting, "?" placeholder, GET_LOCK tabanlı
// advisory lock ve information_schema üzerinden metadata probe.
// -----------------------------------------------------------------------------

type MySQLGrammar struct {
	baseGrammar
}

func NewMySQLGrammar() *MySQLGrammar {
	return &MySQLGrammar{baseGrammar{driver: DriverMySQL, quote: "`"}}
}

// TableExistsSQL, schema verilmemişse aktif veritabanını (DATABASE()) kullanır.
func (g *MySQLGrammar) TableExistsSQL(schema, table string) (string, []any) {
	if schema == "" {
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", []any{table}
	}
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = ? AND table_name = ?", []any{schema, table}
}

func (g *MySQLGrammar) ColumnExistsSQL(schema, table, column string) (string, []any) {
	if schema == "" {
		return "SELECT 1 FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?",
			[]any{table, column}
	}
	return "SELECT 1 FROM information_schema.columns WHERE table_schema = ? AND table_name = ? AND column_name = ?",
		[]any{schema, table, column}
}

// GroupConcat, MySQL'in SEPARATOR sözdizimini kullanır.
func (g *MySQLGrammar) GroupConcat(expr, separator string) string {
	return fmt.Sprintf("GROUP_CONCAT(%s SEPARATOR '%s')", expr, escapeString(separator))
}

func (g *MySQLGrammar) Random() string { return "RAND()" }

// LockSQL, GET_LOCK kullanır; sunucu timeout süresi boyunca kendisi bekler.
// Dönen değer 1 ise lock alınmıştır.
func (g *MySQLGrammar) LockSQL(name string, timeoutSeconds int) (string, []any, error) {
	return "SELECT GET_LOCK(?, ?)", []any{name, timeoutSeconds}, nil
}

func (g *MySQLGrammar) UnlockSQL(name string) (string, []any, error) {
	return "SELECT RELEASE_LOCK(?)", []any{name}, nil
}
