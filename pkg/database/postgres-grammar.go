package database

import (
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// PostgreSQL Grammar
// -----------------------------------------------------------------------------
// Çift tırnak ile quoting, $n placeholder, DISTINCT ON ve STRING_AGG desteği.
// Advisory lock'lar pg_try_advisory_lock ile alınır; timeout DBLocker
// tarafından polling ile uygulanır.
// -----------------------------------------------------------------------------

type PostgresGrammar struct {
	baseGrammar
}

func NewPostgresGrammar() *PostgresGrammar {
	return &PostgresGrammar{baseGrammar{driver: DriverPostgres, quote: `"`}}
}

func (g *PostgresGrammar) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (g *PostgresGrammar) TableExistsSQL(schema, table string) (string, []any) {
	if schema == "" {
		return "SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1", []any{table}
	}
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2", []any{schema, table}
}

func (g *PostgresGrammar) ColumnExistsSQL(schema, table, column string) (string, []any) {
	if schema == "" {
		return "SELECT 1 FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2",
			[]any{table, column}
	}
	return "SELECT 1 FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2 AND column_name = $3",
		[]any{schema, table, column}
}

func (g *PostgresGrammar) GroupConcat(expr, separator string) string {
	return fmt.Sprintf("STRING_AGG(%s, '%s')", expr, escapeString(separator))
}

// DatePart, PostgreSQL'de EXTRACT ve CAST kullanır.
func (g *PostgresGrammar) DatePart(part, column string) string {
	if strings.EqualFold(part, "date") {
		return fmt.Sprintf("CAST(%s AS DATE)", column)
	}
	return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(part), column)
}

func (g *PostgresGrammar) SupportsDistinctOn() bool { return true }

func (g *PostgresGrammar) LockSQL(name string, _ int) (string, []any, error) {
	return "SELECT pg_try_advisory_lock(hashtext($1))", []any{name}, nil
}

func (g *PostgresGrammar) UnlockSQL(name string) (string, []any, error) {
	return "SELECT pg_advisory_unlock(hashtext($1))", []any{name}, nil
}

func (g *PostgresGrammar) InsertReturning(primaryKey string) string {
	wrapped, err := g.Wrap(primaryKey)
	if err != nil {
		return ""
	}
	return "RETURNING " + wrapped
}
