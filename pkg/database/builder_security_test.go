package database

import (
	"errors"
	"testing"
)

// -----------------------------------------------------------------------------
// SQL INJECTION GÜVENLİK TESTLERİ
// -----------------------------------------------------------------------------
// Bu testler, SQL injection saldırılarına karşı korumanın çalıştığını doğrular.
// Her test case bir exploit senaryosunu simüle eder. Geçersiz identifier'lar
// panic yerine builder üzerinde kaydedilir ve ToSQL ErrInvalidIdentifier döner.
// -----------------------------------------------------------------------------

func expectInvalid(t *testing.T, qb *QueryBuilder, input string) {
	t.Helper()
	_, _, err := qb.ToSQL()
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("Expected ErrInvalidIdentifier for malicious input '%s', got: %v", input, err)
	}
}

// TestSQLInjection_OrderBy_MaliciousColumn tests SQL injection prevention in OrderBy
func TestSQLInjection_OrderBy_MaliciousColumn(t *testing.T) {
	grammar := NewMySQLGrammar()

	maliciousInputs := []struct {
		name   string
		column string
	}{
		{name: "DROP TABLE attack", column: "id; DROP TABLE users--"},
		{name: "OR injection", column: "id' OR '1'='1"},
		{name: "UNION attack", column: "id UNION SELECT * FROM passwords--"},
		{name: "Comment injection", column: "id--"},
		{name: "Semicolon injection", column: "id; UPDATE users SET admin=1"},
		{name: "Quote injection", column: "id'"},
		{name: "Double quote injection", column: `id"`},
		{name: "Backtick injection", column: "id`"},
	}

	for _, tc := range maliciousInputs {
		t.Run(tc.name, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table("users").OrderBy(tc.column, "DESC")
			expectInvalid(t, qb, tc.column)
		})
	}
}

// TestSQLInjection_OrderBy_Direction tests that direction never reaches SQL verbatim
func TestSQLInjection_OrderBy_Direction(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").OrderBy("id", "DESC; DROP TABLE users")

	sql, _, err := qb.ToSQL()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sql != "SELECT * FROM users ORDER BY id ASC" {
		t.Errorf("Unexpected SQL: %s", sql)
	}
}

// TestSQLInjection_Where_MaliciousColumn tests SQL injection prevention in Where
func TestSQLInjection_Where_MaliciousColumn(t *testing.T) {
	grammar := NewMySQLGrammar()

	maliciousInputs := []string{
		"id; DROP TABLE users--",
		"id' OR '1'='1",
		"id/**/OR/**/1=1",
		"id'; DELETE FROM users WHERE '1'='1",
	}

	for _, column := range maliciousInputs {
		t.Run(column, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table("users").Where(column, "=", 1)
			expectInvalid(t, qb, column)
		})
	}
}

// TestSQLInjection_Where_MaliciousOperator tests operator whitelist
func TestSQLInjection_Where_MaliciousOperator(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").Where("id", "= 1 OR 1 =", 1)

	_, _, err := qb.ToSQL()
	if !errors.Is(err, ErrInvalidOperator) {
		t.Errorf("Expected ErrInvalidOperator, got: %v", err)
	}
}

// TestSQLInjection_Where_MaliciousValue tests that values are always bound
func TestSQLInjection_Where_MaliciousValue(t *testing.T) {
	payload := "1' OR '1'='1"
	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").Where("id", "=", payload)

	sql, params, err := qb.ToSQL()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sql != "SELECT * FROM users WHERE id = :p1" {
		t.Errorf("Unexpected SQL: %s", sql)
	}
	if params[":p1"] != payload {
		t.Errorf("Expected payload to be bound, got: %v", params)
	}
}

// TestSQLInjection_JoinWhere_Closure tests that closure-built join conditions
// go through the same checks as Join and Where
func TestSQLInjection_JoinWhere_Closure(t *testing.T) {
	cases := []struct {
		name    string
		build   func(j *JoinClause)
		wantErr error
	}{
		{
			name:    "operator payload in On",
			build:   func(j *JoinClause) { j.On("p.user_id", "= u.id OR 1=1; DROP TABLE users; --", "u.id") },
			wantErr: ErrInvalidOperator,
		},
		{
			name:    "column payload in On",
			build:   func(j *JoinClause) { j.On("p.user_id", "=", "u.id OR 1=1") },
			wantErr: ErrInvalidIdentifier,
		},
		{
			name:    "column payload in OrOn",
			build:   func(j *JoinClause) { j.On("p.user_id", "=", "u.id").OrOn("p.id; DROP TABLE posts", "=", "u.id") },
			wantErr: ErrInvalidIdentifier,
		},
		{
			name:    "column payload in Where",
			build:   func(j *JoinClause) { j.On("p.user_id", "=", "u.id").Where("u.role' OR '1'='1", "=", "x") },
			wantErr: ErrInvalidIdentifier,
		},
		{
			name:    "operator payload in Where",
			build:   func(j *JoinClause) { j.On("p.user_id", "=", "u.id").Where("u.role", "= 1 OR 1 =", 1) },
			wantErr: ErrInvalidOperator,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			qb := NewBuilder(nil, NewMySQLGrammar()).From("posts p").JoinWhere(InnerJoin, "users u", tc.build)

			sql, _, err := qb.ToSQL()
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got: %v (sql: %s)", tc.wantErr, err, sql)
			}
		})
	}
}

// TestJoinWhere_NilValueIsNull tests that a nil join value renders IS NULL like Where
func TestJoinWhere_NilValueIsNull(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).From("posts p").JoinWhere(LeftJoin, "users u", func(j *JoinClause) {
		j.On("p.user_id", "=", "u.id").Where("u.deleted_at", "=", nil).Where("u.banned_at", "!=", nil)
	})

	sql, params, err := qb.ToSQL()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := "SELECT * FROM posts AS p LEFT JOIN users AS u ON p.user_id = u.id AND u.deleted_at IS NULL AND u.banned_at IS NOT NULL"
	if sql != want {
		t.Errorf("Unexpected SQL:\n got: %s\nwant: %s", sql, want)
	}
	if len(params) != 0 {
		t.Errorf("Expected no bound params, got: %v", params)
	}
}

// TestSQLInjection_Table_MaliciousName tests SQL injection prevention in Table
func TestSQLInjection_Table_MaliciousName(t *testing.T) {
	grammar := NewMySQLGrammar()

	maliciousInputs := []string{
		"users; DROP TABLE sessions--",
		"users' OR '1'='1",
		"users/**/UNION/**/SELECT",
	}

	for _, table := range maliciousInputs {
		t.Run(table, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table(table)
			expectInvalid(t, qb, table)
		})
	}
}

// TestSQLInjection_Select_MaliciousColumn tests SQL injection prevention in Select
func TestSQLInjection_Select_MaliciousColumn(t *testing.T) {
	grammar := NewMySQLGrammar()

	maliciousInputs := []string{
		"id; DROP TABLE users--",
		"id, (SELECT password FROM admin)--",
		"*; DELETE FROM users--",
		"name AS x; DROP TABLE users",
	}

	for _, column := range maliciousInputs {
		t.Run(column, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table("users").Select(column)
			expectInvalid(t, qb, column)
		})
	}
}

// TestSQLInjection_Insert_MaliciousColumn tests SQL injection prevention in Insert
func TestSQLInjection_Insert_MaliciousColumn(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar())

	_, err := qb.Table("users").ExecInsert(Values{"name; DROP TABLE users--": "test"})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("Expected ErrInvalidIdentifier for malicious column name in Insert, got: %v", err)
	}
}

// TestSQLInjection_Update_MaliciousColumn tests SQL injection prevention in Update
func TestSQLInjection_Update_MaliciousColumn(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar())

	_, err := qb.Table("users").Where("id", "=", 1).Update(Values{"id' OR '1'='1": "hacked"})
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("Expected ErrInvalidIdentifier for malicious column name in Update, got: %v", err)
	}
}

// TestValidIdentifiers tests that legitimate identifiers are accepted
func TestValidIdentifiers(t *testing.T) {
	grammar := NewMySQLGrammar()

	validCases := []struct {
		name   string
		method func(qb *QueryBuilder)
	}{
		{name: "Simple column", method: func(qb *QueryBuilder) { qb.Table("users").OrderBy("id", "DESC") }},
		{name: "Underscore column", method: func(qb *QueryBuilder) { qb.Table("users").OrderBy("user_id", "ASC") }},
		{name: "Table.column format", method: func(qb *QueryBuilder) { qb.Table("users").OrderBy("users.created_at", "DESC") }},
		{name: "Schema.table.column format", method: func(qb *QueryBuilder) { qb.Table("app.users").OrderBy("app.users.id", "DESC") }},
		{name: "Numeric in name", method: func(qb *QueryBuilder) { qb.Table("table123").OrderBy("column2", "ASC") }},
		{name: "Wildcard select", method: func(qb *QueryBuilder) { qb.Table("users").Select("*") }},
		{name: "Alias wildcard", method: func(qb *QueryBuilder) { qb.Table("users", "u").Select("u.*") }},
		{name: "Column alias", method: func(qb *QueryBuilder) { qb.Table("users").Select("email AS contact") }},
		{name: "Multiple columns", method: func(qb *QueryBuilder) { qb.Table("users").Select("id", "name", "email") }},
	}

	for _, tc := range validCases {
		t.Run(tc.name, func(t *testing.T) {
			qb := NewBuilder(nil, grammar)
			tc.method(qb)
			if _, _, err := qb.ToSQL(); err != nil {
				t.Errorf("Valid identifier rejected: %v", err)
			}
		})
	}
}

// TestSQLFunctions tests that SQL functions are handled correctly
func TestSQLFunctions(t *testing.T) {
	grammar := NewMySQLGrammar()

	validFunctions := []string{
		"COUNT(*) as total",
		"SUM(price)",
		"MAX(id)",
		"MIN(created_at)",
		"AVG(rating)",
	}

	for _, fn := range validFunctions {
		t.Run(fn, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table("users").Select(fn)
			if _, _, err := qb.ToSQL(); err != nil {
				t.Errorf("Valid SQL function '%s' rejected: %v", fn, err)
			}
		})
	}
}

// TestMaliciousSQLFunctions tests that malicious SQL functions are blocked
func TestMaliciousSQLFunctions(t *testing.T) {
	grammar := NewMySQLGrammar()

	maliciousFunctions := []string{
		"COUNT(*); DROP TABLE users--",
		"SUM(price)--comment",
		"MAX(id) /* hidden */",
	}

	for _, fn := range maliciousFunctions {
		t.Run(fn, func(t *testing.T) {
			qb := NewBuilder(nil, grammar).Table("users").Select(fn)
			expectInvalid(t, qb, fn)
		})
	}
}

// TestEmptyIdentifiers tests that empty identifiers are rejected
func TestEmptyIdentifiers(t *testing.T) {
	grammar := NewMySQLGrammar()

	testCases := []struct {
		name   string
		method func(qb *QueryBuilder)
	}{
		{name: "Empty table name", method: func(qb *QueryBuilder) { qb.Table("") }},
		{name: "Empty column in Where", method: func(qb *QueryBuilder) { qb.Table("users").Where("", "=", 1) }},
		{name: "Empty column in OrderBy", method: func(qb *QueryBuilder) { qb.Table("users").OrderBy("", "ASC") }},
		{name: "Whitespace only table", method: func(qb *QueryBuilder) { qb.Table("   ") }},
		{name: "Dangling dot", method: func(qb *QueryBuilder) { qb.Table("users").OrderBy("users.", "ASC") }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			qb := NewBuilder(nil, grammar)
			tc.method(qb)
			expectInvalid(t, qb, tc.name)
		})
	}
}

// TestMultipleDots tests that identifiers with too many dots are rejected
func TestMultipleDots(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).Table("users").OrderBy("a.b.c.d", "ASC")
	expectInvalid(t, qb, "a.b.c.d")
}

// TestFirstErrorWins tests that later mutators do not overwrite the recorded error
func TestFirstErrorWins(t *testing.T) {
	qb := NewBuilder(nil, NewMySQLGrammar()).
		Table("users").
		Where("id", "bogus", 1).
		OrderBy("id; --", "ASC")

	_, _, err := qb.ToSQL()
	if !errors.Is(err, ErrInvalidOperator) {
		t.Errorf("Expected first error (ErrInvalidOperator), got: %v", err)
	}
}

// BenchmarkValidation_OrderBy benchmarks the validation overhead
func BenchmarkValidation_OrderBy(b *testing.B) {
	qb := NewBuilder(nil, NewMySQLGrammar())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		qb.Reset().Table("users").OrderBy("created_at", "DESC")
	}
}

// BenchmarkValidation_Where benchmarks the validation overhead
func BenchmarkValidation_Where(b *testing.B) {
	qb := NewBuilder(nil, NewMySQLGrammar())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		qb.Reset().Table("users").Where("status", "=", "active")
	}
}
