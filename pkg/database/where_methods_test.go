// -----------------------------------------------------------------------------
// WHERE Methods Tests
// -----------------------------------------------------------------------------
// Bu testler, WHERE ailesinin render çıktısını ve SQL injection'a karşı
// korumalı olduğunu doğrular.
//
// Test edilen metodlar:
// - Where / OrWhere (bağlaç birleştirme)
// - WhereIn / WhereNotIn (boş liste dahil)
// - WhereBetween / WhereNull / WhereNotNull
// - WhereDate, WhereYear, WhereMonth, WhereDay (lehçe bazında)
// - WhereGroup, WhereRaw, WhereColumn, alt sorgular
// -----------------------------------------------------------------------------

package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSQL(t *testing.T, qb *QueryBuilder) (string, map[string]any) {
	t.Helper()
	sql, params, err := qb.ToSQL()
	require.NoError(t, err)
	return sql, params
}

func TestWhere_ConjunctionJoining(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		From("t").
		Where("a", "=", 1).
		Where("b", "=", 2).
		OrWhere("c", "=", 3)

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT * FROM t WHERE a = :p1 AND b = :p2 OR c = :p3", sql)
	assert.Equal(t, map[string]any{":p1": 1, ":p2": 2, ":p3": 3}, params)

	compiled, args, err := qb.Compiled()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ? OR c = ?", compiled)
	assert.Equal(t, []any{1, 2, 3}, args)
}

func TestWhere_FirstConnectorDropped(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).From("t").OrWhere("a", "=", 1).Where("b", "=", 2)

	sql, _ := mustSQL(t, qb)
	assert.Equal(t, "SELECT * FROM t WHERE a = :p1 AND b = :p2", sql)
}

func TestWhere_NilValueBecomesNullCheck(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		want     string
	}{
		{"equals", "=", "SELECT * FROM users WHERE deleted_at IS NULL"},
		{"not equals", "!=", "SELECT * FROM users WHERE deleted_at IS NOT NULL"},
		{"diamond", "<>", "SELECT * FROM users WHERE deleted_at IS NOT NULL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").Where("deleted_at", tt.operator, nil))
			assert.Equal(t, tt.want, sql)
			assert.Empty(t, params)
		})
	}
}

func TestWhere_OperatorNormalization(t *testing.T) {
	sql, _ := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").Where("name", "not   like", "a%"))
	assert.Equal(t, "SELECT * FROM users WHERE name NOT LIKE :p1", sql)
}

func TestWhereIn_BasicUsage(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		Table("users").
		Select("id", "name", "email").
		WhereIn("status", []any{"active", "pending", "approved"})

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT id, name, email FROM users WHERE status IN (:p1, :p2, :p3)", sql)
	assert.Len(t, params, 3)
}

func TestWhereIn_TypedSliceThroughWhere(t *testing.T) {
	sql, params := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").Where("id", "in", []int{4, 5}))
	assert.Equal(t, "SELECT * FROM users WHERE id IN (:p1, :p2)", sql)
	assert.Equal(t, map[string]any{":p1": 4, ":p2": 5}, params)
}

func TestWhereIn_EmptyList(t *testing.T) {
	sql, _ := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").WhereIn("id", nil))
	assert.Equal(t, "SELECT * FROM users WHERE 0 = 1", sql)

	sql, _ = mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").WhereNotIn("id", []any{}))
	assert.Equal(t, "SELECT * FROM users WHERE 1 = 1", sql)
}

func TestWhereIn_SQLInjectionPrevention(t *testing.T) {
	maliciousValues := []any{
		"active",
		"'; DROP TABLE users--",
		"' OR '1'='1",
		"admin' UNION SELECT * FROM passwords--",
	}

	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").WhereIn("status", maliciousValues)
	sql, params := mustSQL(t, qb)

	assert.NotContains(t, sql, "DROP TABLE")
	assert.NotContains(t, sql, "UNION SELECT")
	assert.Len(t, params, len(maliciousValues))
}

func TestWhereIn_MaliciousColumn(t *testing.T) {
	for _, col := range []string{"status; DROP TABLE users--", "status' OR '1'='1", "status`"} {
		t.Run(col, func(t *testing.T) {
			_, _, err := NewBuilder(nil, NewMySQLGrammar()).Table("users").WhereIn(col, []any{"active"}).ToSQL()
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
		})
	}
}

func TestWhereBetween_BasicUsage(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		Table("users").
		Select("id", "name", "age").
		WhereBetween("age", 18, 65)

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT id, name, age FROM users WHERE age BETWEEN :p1 AND :p2", sql)
	assert.Equal(t, map[string]any{":p1": 18, ":p2": 65}, params)

	sql, _ = mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("users").WhereNotBetween("age", 1, 2))
	assert.Equal(t, "SELECT * FROM users WHERE age NOT BETWEEN :p1 AND :p2", sql)
}

func TestWhereBetween_SQLInjection(t *testing.T) {
	sql, params := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).Table("users").WhereBetween("age", "18; DROP TABLE users--", 65))

	assert.NotContains(t, sql, "DROP TABLE")
	assert.Equal(t, "18; DROP TABLE users--", params[":p1"])
}

func TestWhereNull_BasicUsage(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").Select("id", "name").WhereNull("deleted_at")

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT id, name FROM users WHERE deleted_at IS NULL", sql)
	assert.Empty(t, params)
}

func TestWhereNotNull_BasicUsage(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		Table("users").
		Select("id", "name").
		WhereNotNull("email_verified_at").
		OrWhereNull("legacy_flag")

	sql, _ := mustSQL(t, qb)
	assert.Equal(t, "SELECT id, name FROM users WHERE email_verified_at IS NOT NULL OR legacy_flag IS NULL", sql)
}

func TestWhereDateParts_PerDialect(t *testing.T) {
	tests := []struct {
		name    string
		grammar Grammar
		build   func(*QueryBuilder) *QueryBuilder
		want    string
	}{
		{"mysql date", NewMySQLGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereDate("created_at", "2024-01-15") },
			"SELECT * FROM orders WHERE DATE(created_at) = :p1"},
		{"mysql year", NewMySQLGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereYear("created_at", 2024) },
			"SELECT * FROM orders WHERE YEAR(created_at) = :p1"},
		{"mysql month", NewMySQLGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereMonth("sale_date", 12) },
			"SELECT * FROM orders WHERE MONTH(sale_date) = :p1"},
		{"mysql day", NewMySQLGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereDay("scheduled_at", 15) },
			"SELECT * FROM orders WHERE DAY(scheduled_at) = :p1"},
		{"postgres date", NewPostgresGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereDate("created_at", "2024-01-15") },
			"SELECT * FROM orders WHERE CAST(created_at AS DATE) = :p1"},
		{"postgres year", NewPostgresGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereYear("created_at", 2024) },
			"SELECT * FROM orders WHERE EXTRACT(YEAR FROM created_at) = :p1"},
		{"sqlite month", NewSQLiteGrammar(), func(q *QueryBuilder) *QueryBuilder { return q.WhereMonth("created_at", 3) },
			"SELECT * FROM orders WHERE CAST(strftime('%m', created_at) AS INTEGER) = :p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := mustSQL(t, tt.build(NewBuilder(nil, tt.grammar).From("orders")))
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestCombinedWhereMethods(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		Table("users").
		Where("active", "=", true).
		WhereIn("role", []any{"admin", "moderator"}).
		WhereBetween("age", 18, 65).
		WhereNotNull("email_verified_at").
		WhereNull("deleted_at")

	sql, params := mustSQL(t, qb)
	assert.Equal(t,
		"SELECT * FROM users WHERE active = :p1 AND role IN (:p2, :p3) AND age BETWEEN :p4 AND :p5 AND email_verified_at IS NOT NULL AND deleted_at IS NULL",
		sql)
	assert.Len(t, params, 5)
}

func TestWhereGroup_SharesCounter(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		From("users").
		Where("active", "=", 1).
		WhereGroup(func(q *QueryBuilder) {
			q.Where("role", "=", "admin").OrWhere("role", "=", "owner")
		}).
		OrWhereGroup(func(q *QueryBuilder) {})

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT * FROM users WHERE active = :p1 AND (role = :p2 OR role = :p3)", sql)
	assert.Len(t, params, 3)
}

func TestWhereGroup_PropagatesError(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).From("users").WhereGroup(func(q *QueryBuilder) {
		q.Where("bad column", "=", 1)
	})
	_, _, err := qb.ToSQL()
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestWhereRaw_BindsQuestionMarks(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		From("products").
		WhereRaw("price > ? AND stock > ?", 100, 0).
		OrWhereRaw("label = '?'")

	sql, params := mustSQL(t, qb)
	assert.Equal(t, "SELECT * FROM products WHERE price > :p1 AND stock > :p2 OR label = '?'", sql)
	assert.Equal(t, map[string]any{":p1": 100, ":p2": 0}, params)
}

func TestWhereRaw_BindingCountMismatch(t *testing.T) {
	_, _, err := NewBuilder(nil, NewMySQLGrammar()).From("products").WhereRaw("price > ?").ToSQL()
	require.Error(t, err)

	_, _, err = NewBuilder(nil, NewMySQLGrammar()).From("products").WhereRaw("price > ?", 1, 2).ToSQL()
	require.Error(t, err)
}

func TestWhereColumn(t *testing.T) {
	sql, params := mustSQL(t, NewBuilder(nil, NewMySQLGrammar()).From("posts").WhereColumn("updated_at", ">", "created_at"))
	assert.Equal(t, "SELECT * FROM posts WHERE updated_at > created_at", sql)
	assert.Empty(t, params)
}

func TestWhereSubqueries_RenumberPlaceholders(t *testing.T) {
	base := NewBuilder(nil, NewMySQLGrammar())
	admins := base.NewQuery().From("admins").Select("user_id").Where("level", ">", 2)
	recent := base.NewQuery().From("logins").Where("at", ">", "2024-01-01")

	qb := base.From("users").
		Where("active", "=", 1).
		WhereInSub("id", admins).
		WhereExists(recent)

	sql, params := mustSQL(t, qb)
	assert.Equal(t,
		"SELECT * FROM users WHERE active = :p1 AND id IN (SELECT user_id FROM admins WHERE level > :p2) AND EXISTS (SELECT * FROM logins WHERE at > :p3)",
		sql)
	assert.Equal(t, map[string]any{":p1": 1, ":p2": 2, ":p3": "2024-01-01"}, params)
}

func TestHaving(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		From("orders").
		Select("user_id", "COUNT(*) AS total").
		GroupBy("user_id").
		Having("COUNT(*)", ">", 5).
		OrHaving("SUM(amount)", ">=", 1000)

	sql, _ := mustSQL(t, qb)
	assert.Equal(t,
		"SELECT user_id, COUNT(*) AS total FROM orders GROUP BY user_id HAVING COUNT(*) > :p1 OR SUM(amount) >= :p2",
		sql)
}

func TestWheres_ReturnsCopy(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).From("users").Where("a", "=", 1)
	wheres := qb.Wheres()
	wheres[0].SQL = "hacked"

	sql, _ := mustSQL(t, qb)
	assert.False(t, strings.Contains(sql, "hacked"))
}
