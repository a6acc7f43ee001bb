package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// INSERT / UPDATE / DELETE
// -----------------------------------------------------------------------------
// DML statement'ları builder'ın FROM tablosunu ve WHERE koşullarını kullanır.
// Kolon listeleri deterministik olması için isme göre sıralanır ve lehçeye
// göre sarmalanır. SET/VALUES değerleri türetilmiş bir kopyanın parametre
// map'ine bağlanır; builder'ın kendisi değişmez.
//
// GÜVENLİK UYARISI:
// WHERE olmadan Update/Delete TÜM TABLOYU etkiler.
// -----------------------------------------------------------------------------

func sortedColumns(values Values) []string {
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// dmlTarget, çözümlenmiş tabloyu içeren türetilmiş kopyayı döndürür.
func (qb *QueryBuilder) dmlTarget() (*QueryBuilder, string, error) {
	if qb.err != nil {
		return nil, "", qb.err
	}
	if qb.fromTable == "" {
		return nil, "", ErrNoTable
	}
	view := qb.derive()
	table := view.qualifiedTable()
	if view.fromAlias != "" {
		table += " AS " + view.fromAlias
	}
	return view, table, nil
}

func (qb *QueryBuilder) wrapColumns(cols []string) ([]string, error) {
	out := make([]string, len(cols))
	for i, col := range cols {
		wrapped, err := qb.grammar.Wrap(col)
		if err != nil {
			return nil, err
		}
		out[i] = wrapped
	}
	return out, nil
}

func (qb *QueryBuilder) whereSuffix() string {
	if len(qb.wheres) == 0 {
		return ""
	}
	return " WHERE " + joinClauses(qb.wheres)
}

// execSQL, :pN SQL'ini derleyip çalıştırır.
func (qb *QueryBuilder) execSQL(query string) (sql.Result, error) {
	ex, err := qb.exec()
	if err != nil {
		return nil, err
	}
	positional, args, err := Compile(query, qb.params.Values(), qb.grammar)
	if err != nil {
		return nil, err
	}
	return ex.run(qb.ctx, positional, args)
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// insertSQL, tek satırlık INSERT statement'ını view'ın parametreleriyle üretir.
func (qb *QueryBuilder) insertSQL(table string, values Values) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("database: insert into %s requires at least one column", table)
	}
	cols := sortedColumns(values)
	wrapped, err := qb.wrapColumns(cols)
	if err != nil {
		return "", err
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = qb.params.Add(values[col])
	}
	return "INSERT INTO " + table + " (" + strings.Join(wrapped, ", ") + ") VALUES (" + strings.Join(names, ", ") + ")", nil
}

// ExecInsert, INSERT sorgusunu çalıştırır ve ham sql.Result döndürür.
//
// Örnek:
//
//	result, err := qb.Table("users").ExecInsert(database.Values{
//	    "name":  "John Doe",
//	    "email": "john@example.com",
//	})
//	lastID, _ := result.LastInsertId()
func (qb *QueryBuilder) ExecInsert(values Values) (sql.Result, error) {
	view, _, err := qb.dmlTarget()
	if err != nil {
		return nil, err
	}
	query, err := view.insertSQL(view.qualifiedTable(), values)
	if err != nil {
		return nil, err
	}
	return view.execSQL(query)
}

// Insert, tek bir satır ekler ve etkilenen satır sayısını döndürür.
func (qb *QueryBuilder) Insert(values Values) (int64, error) {
	return rowsAffected(qb.ExecInsert(values))
}

// InsertGetID, bir satır ekler ve üretilen primary key'i döndürür.
// PostgreSQL'de RETURNING, diğer lehçelerde LastInsertId kullanılır.
//
// Örnek:
//
//	id, err := qb.Table("users").InsertGetID(database.Values{"name": "Ada"}, "id")
func (qb *QueryBuilder) InsertGetID(values Values, primaryKey ...string) (int64, error) {
	view, _, err := qb.dmlTarget()
	if err != nil {
		return 0, err
	}
	query, err := view.insertSQL(view.qualifiedTable(), values)
	if err != nil {
		return 0, err
	}

	returning := view.grammar.InsertReturning(firstOr(primaryKey, "id"))
	if returning == "" {
		res, err := view.execSQL(query)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}

	ex, err := view.exec()
	if err != nil {
		return 0, err
	}
	positional, args, err := Compile(query+" "+returning, view.params.Values(), view.grammar)
	if err != nil {
		return 0, err
	}
	rows, err := ex.query(view.ctx, positional, args)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("database: insert into %s returned no key", view.fromTable)
	}
	var id any
	if err := rows.Scan(&id); err != nil {
		return 0, err
	}
	return toInt64(normalizeValue(id))
}

// InsertBatch, birden fazla satırı tek bir INSERT ile ekler. Tüm satırlar
// aynı kolon kümesine sahip olmalıdır.
//
// Örnek:
//
//	n, err := qb.Table("tags").InsertBatch([]database.Values{
//	    {"name": "go"}, {"name": "sql"},
//	})
func (qb *QueryBuilder) InsertBatch(rows []Values) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	view, _, err := qb.dmlTarget()
	if err != nil {
		return 0, err
	}

	cols := sortedColumns(rows[0])
	wrapped, err := view.wrapColumns(cols)
	if err != nil {
		return 0, err
	}
	tuples := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(cols) {
			return 0, fmt.Errorf("database: batch row %d has %d columns, expected %d", i, len(row), len(cols))
		}
		names := make([]string, len(cols))
		for j, col := range cols {
			value, ok := row[col]
			if !ok {
				return 0, fmt.Errorf("database: batch row %d is missing column %s", i, col)
			}
			names[j] = view.params.Add(value)
		}
		tuples[i] = "(" + strings.Join(names, ", ") + ")"
	}

	query := "INSERT INTO " + view.qualifiedTable() + " (" + strings.Join(wrapped, ", ") + ") VALUES " + strings.Join(tuples, ", ")
	return rowsAffected(view.execSQL(query))
}

// Update, WHERE koşullarına uyan satırları günceller.
//
// Örnek:
//
//	n, err := qb.Table("users").Where("id", "=", 1).Update(database.Values{"name": "Jane"})
//	→ UPDATE users SET `name` = :p2 WHERE id = :p1
func (qb *QueryBuilder) Update(values Values) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	view, table, err := qb.dmlTarget()
	if err != nil {
		return 0, err
	}
	cols := sortedColumns(values)
	wrapped, err := view.wrapColumns(cols)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = wrapped[i] + " = " + view.params.Add(values[col])
	}
	return rowsAffected(view.execSQL("UPDATE " + table + " SET " + strings.Join(sets, ", ") + view.whereSuffix()))
}

// Delete, WHERE koşullarına uyan satırları siler. Tablo alias'lıysa alias
// korunur; MySQL'de hedef "DELETE p FROM posts AS p" biçiminde yazılır.
func (qb *QueryBuilder) Delete() (int64, error) {
	view, table, err := qb.dmlTarget()
	if err != nil {
		return 0, err
	}
	target := "DELETE FROM "
	if view.fromAlias != "" && view.grammar.Driver() == DriverMySQL {
		target = "DELETE " + view.fromAlias + " FROM "
	}
	return rowsAffected(view.execSQL(target + table + view.whereSuffix()))
}

// Increment, kolonu amount kadar artırır; extra kolonlar aynı statement'ta güncellenir.
//
// Örnek:
//
//	qb.Table("posts").Where("id", "=", 9).Increment("views", 1)
func (qb *QueryBuilder) Increment(column string, amount any, extra ...Values) (int64, error) {
	return qb.step(column, "+", amount, extra)
}

// Decrement, kolonu amount kadar azaltır.
func (qb *QueryBuilder) Decrement(column string, amount any, extra ...Values) (int64, error) {
	return qb.step(column, "-", amount, extra)
}

func (qb *QueryBuilder) step(column, sign string, amount any, extra []Values) (int64, error) {
	view, table, err := qb.dmlTarget()
	if err != nil {
		return 0, err
	}
	wrapped, err := view.grammar.Wrap(column)
	if err != nil {
		return 0, err
	}
	sets := []string{wrapped + " = " + wrapped + " " + sign + " " + view.params.Add(amount)}
	for _, values := range extra {
		cols := sortedColumns(values)
		wrappedCols, err := view.wrapColumns(cols)
		if err != nil {
			return 0, err
		}
		for i, col := range cols {
			sets = append(sets, wrappedCols[i]+" = "+view.params.Add(values[col]))
		}
	}
	return rowsAffected(view.execSQL("UPDATE " + table + " SET " + strings.Join(sets, ", ") + view.whereSuffix()))
}

// Execute, render edilen statement'ı (genelde Custom) çalıştırır ve
// etkilenen satır sayısını döndürür.
//
// Örnek:
//
//	n, err := qb.Custom("DELETE FROM sessions").Where("expires_at", "<", now).Execute()
func (qb *QueryBuilder) Execute() (int64, error) {
	query, _, err := qb.ToSQL()
	if err != nil {
		return 0, err
	}
	return rowsAffected(qb.execSQL(query))
}
