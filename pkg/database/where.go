package database

import (
	"fmt"
	"reflect"
	"strings"
)

// -----------------------------------------------------------------------------
// WHERE / HAVING
// -----------------------------------------------------------------------------
// Her koşul, değerleri :pN olarak bağlanmış tek bir fragment olarak saklanır:
// WhereClause{Boolean: "AND"|"OR", SQL: "status = :p1"}.
//
// Render sırasında ilk koşulun bağlacı düşürülür, sonrakiler
// " AND " / " OR " ile eklenir:
//
//	[("", "a=1"), ("AND", "b=2"), ("OR", "c=3")] → a=1 AND b=2 OR c=3
// -----------------------------------------------------------------------------

// allowedOperators, Where/Having için izin verilen operatörlerdir.
var allowedOperators = map[string]bool{
	"=": true, "!=": true, "<>": true, "<": true, ">": true, "<=": true, ">=": true,
	"LIKE": true, "NOT LIKE": true, "ILIKE": true, "NOT ILIKE": true,
	"IN": true, "NOT IN": true, "IS": true, "IS NOT": true,
	"REGEXP": true, "NOT REGEXP": true, "<=>": true,
}

func normalizeOperator(op string) (string, error) {
	normalized := strings.Join(strings.Fields(strings.ToUpper(op)), " ")
	if !allowedOperators[normalized] {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, op)
	}
	return normalized, nil
}

// joinClauses, koşulları bağlaçlarıyla birleştirir. İlk bağlaç düşürülür.
func joinClauses(clauses []WhereClause) string {
	var b strings.Builder
	for i, c := range clauses {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(c.Boolean)
			b.WriteString(" ")
		}
		b.WriteString(c.SQL)
	}
	return b.String()
}

func (qb *QueryBuilder) addWhere(boolean, sql string) *QueryBuilder {
	qb.wheres = append(qb.wheres, WhereClause{Boolean: boolean, SQL: sql})
	qb.touch()
	return qb
}

// Wheres, biriken WHERE koşullarının bir kopyasını döndürür.
func (qb *QueryBuilder) Wheres() []WhereClause {
	return append([]WhereClause(nil), qb.wheres...)
}

// compare, "column op value" fragment'ını üretir. nil değer IS NULL'a,
// slice değer IN'e çevrilir.
func (qb *QueryBuilder) compare(column, operator string, value any) (string, error) {
	return compareFragment(qb.params, column, operator, value)
}

// compareFragment, "column op :pN" koşulunu üretir ve değeri params'a bağlar.
// Builder WHERE'leri ve JoinClause.Where aynı kuralları paylaşır.
func compareFragment(params *Params, column, operator string, value any) (string, error) {
	if err := validateIdentifier(column, "column"); err != nil {
		return "", err
	}
	op, err := normalizeOperator(operator)
	if err != nil {
		return "", err
	}

	if value == nil {
		switch op {
		case "=", "IS":
			return column + " IS NULL", nil
		case "!=", "<>", "IS NOT":
			return column + " IS NOT NULL", nil
		}
	}
	if op == "IN" || op == "NOT IN" {
		values, ok := toAnySlice(value)
		if !ok {
			values = []any{value}
		}
		return inFragment(params, column, op, values), nil
	}
	return column + " " + op + " " + params.Add(value), nil
}

// toAnySlice, []int, []string gibi tipli slice'ları []any'ye çevirir.
// []byte tek bir değer kabul edilir.
func toAnySlice(value any) ([]any, bool) {
	if values, ok := value.([]any); ok {
		return values, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func inFragment(params *Params, column, op string, values []any) string {
	if len(values) == 0 {
		if op == "IN" {
			return "0 = 1"
		}
		return "1 = 1"
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = params.Add(v)
	}
	return column + " " + op + " (" + strings.Join(names, ", ") + ")"
}

// Where, sorguya bir AND WHERE koşulu ekler.
// Tüm değerler placeholder ile bağlandığı için SQL injection korumalıdır.
//
// Parametreler:
//   - column: Koşul uygulanacak kolon adı
//   - operator: Karşılaştırma operatörü (=, !=, <, >, <=, >=, LIKE, IN, vb.)
//   - value: Karşılaştırılacak değer (nil → IS NULL)
//
// Örnek:
//
//	qb.Where("status", "=", "active")
//	qb.Where("age", ">", 18)
//	→ WHERE status = :p1 AND age > :p2
func (qb *QueryBuilder) Where(column, operator string, value any) *QueryBuilder {
	sql, err := qb.compare(column, operator, value)
	if err != nil {
		return qb.fail(err)
	}
	return qb.addWhere("AND", sql)
}

// OrWhere, sorguya bir OR WHERE koşulu ekler.
//
// Örnek:
//
//	qb.Where("role", "=", "admin").OrWhere("role", "=", "moderator")
//	→ WHERE role = :p1 OR role = :p2
func (qb *QueryBuilder) OrWhere(column, operator string, value any) *QueryBuilder {
	sql, err := qb.compare(column, operator, value)
	if err != nil {
		return qb.fail(err)
	}
	return qb.addWhere("OR", sql)
}

// WhereIn, kolonun değer listesinde olup olmadığını kontrol eder.
// Boş liste hiçbir satırla eşleşmeyen "0 = 1" üretir.
//
// Örnek:
//
//	qb.WhereIn("status", []any{"active", "pending"})
//	→ WHERE status IN (:p1, :p2)
func (qb *QueryBuilder) WhereIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("AND", column, "IN", values)
}

// WhereNotIn, kolonun değer listesinde olmadığını kontrol eder.
func (qb *QueryBuilder) WhereNotIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("AND", column, "NOT IN", values)
}

// OrWhereIn, OR bağlacıyla WhereIn.
func (qb *QueryBuilder) OrWhereIn(column string, values []any) *QueryBuilder {
	return qb.whereIn("OR", column, "IN", values)
}

func (qb *QueryBuilder) whereIn(boolean, column, op string, values []any) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	return qb.addWhere(boolean, inFragment(qb.params, column, op, values))
}

// WhereNull, kolonun NULL olduğunu kontrol eder.
//
// Örnek:
//
//	qb.WhereNull("deleted_at") → WHERE deleted_at IS NULL
func (qb *QueryBuilder) WhereNull(column string) *QueryBuilder {
	return qb.whereNull("AND", column, false)
}

// WhereNotNull, kolonun NULL olmadığını kontrol eder.
func (qb *QueryBuilder) WhereNotNull(column string) *QueryBuilder {
	return qb.whereNull("AND", column, true)
}

// OrWhereNull, OR bağlacıyla WhereNull.
func (qb *QueryBuilder) OrWhereNull(column string) *QueryBuilder {
	return qb.whereNull("OR", column, false)
}

// OrWhereNotNull, OR bağlacıyla WhereNotNull.
func (qb *QueryBuilder) OrWhereNotNull(column string) *QueryBuilder {
	return qb.whereNull("OR", column, true)
}

func (qb *QueryBuilder) whereNull(boolean, column string, not bool) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	if not {
		return qb.addWhere(boolean, column+" IS NOT NULL")
	}
	return qb.addWhere(boolean, column+" IS NULL")
}

// WhereBetween, kolonun iki değer arasında olduğunu kontrol eder.
//
// Örnek:
//
//	qb.WhereBetween("age", 18, 65) → WHERE age BETWEEN :p1 AND :p2
func (qb *QueryBuilder) WhereBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween(column, "BETWEEN", min, max)
}

// WhereNotBetween, kolonun iki değer arasında olmadığını kontrol eder.
func (qb *QueryBuilder) WhereNotBetween(column string, min, max any) *QueryBuilder {
	return qb.whereBetween(column, "NOT BETWEEN", min, max)
}

func (qb *QueryBuilder) whereBetween(column, op string, min, max any) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	return qb.addWhere("AND", column+" "+op+" "+qb.params.Add(min)+" AND "+qb.params.Add(max))
}

// WhereLike, LIKE koşulu ekler. Pattern olduğu gibi bağlanır.
func (qb *QueryBuilder) WhereLike(column, pattern string) *QueryBuilder {
	return qb.Where(column, "LIKE", pattern)
}

// OrWhereLike, OR bağlacıyla WhereLike.
func (qb *QueryBuilder) OrWhereLike(column, pattern string) *QueryBuilder {
	return qb.OrWhere(column, "LIKE", pattern)
}

// WhereColumn, iki kolonu karşılaştırır.
//
// Örnek:
//
//	qb.WhereColumn("updated_at", ">", "created_at")
func (qb *QueryBuilder) WhereColumn(first, operator, second string) *QueryBuilder {
	if err := validateIdentifier(first, "column"); err != nil {
		return qb.fail(err)
	}
	if err := validateIdentifier(second, "column"); err != nil {
		return qb.fail(err)
	}
	op, err := normalizeOperator(operator)
	if err != nil {
		return qb.fail(err)
	}
	return qb.addWhere("AND", first+" "+op+" "+second)
}

// WhereRaw, ham bir koşul ekler. "?" işaretleri bindings ile sırasıyla bağlanır.
//
// Örnek:
//
//	qb.WhereRaw("price > ? AND stock > ?", 100, 0)
//	→ WHERE price > :p1 AND stock > :p2
func (qb *QueryBuilder) WhereRaw(sql string, bindings ...any) *QueryBuilder {
	return qb.whereRaw("AND", sql, bindings)
}

// OrWhereRaw, OR bağlacıyla WhereRaw.
func (qb *QueryBuilder) OrWhereRaw(sql string, bindings ...any) *QueryBuilder {
	return qb.whereRaw("OR", sql, bindings)
}

func (qb *QueryBuilder) whereRaw(boolean, sql string, bindings []any) *QueryBuilder {
	if err := validateExpression(sql); err != nil {
		return qb.fail(err)
	}
	bound, err := qb.params.bindQuestionMarks(sql, bindings)
	if err != nil {
		return qb.fail(err)
	}
	return qb.addWhere(boolean, bound)
}

// WhereGroup, parantez içinde gruplanmış koşullar ekler. Grup içindeki
// koşullar aynı parametre sayacını paylaşır.
//
// Örnek:
//
//	qb.Where("active", "=", 1).WhereGroup(func(q *database.QueryBuilder) {
//	    q.Where("role", "=", "admin").OrWhere("role", "=", "owner")
//	})
//	→ WHERE active = :p1 AND (role = :p2 OR role = :p3)
func (qb *QueryBuilder) WhereGroup(fn func(*QueryBuilder)) *QueryBuilder {
	return qb.whereGroup("AND", fn)
}

// OrWhereGroup, OR bağlacıyla WhereGroup.
func (qb *QueryBuilder) OrWhereGroup(fn func(*QueryBuilder)) *QueryBuilder {
	return qb.whereGroup("OR", fn)
}

func (qb *QueryBuilder) whereGroup(boolean string, fn func(*QueryBuilder)) *QueryBuilder {
	nested := &QueryBuilder{grammar: qb.grammar, params: qb.params, limit: -1, offset: -1}
	fn(nested)
	if nested.err != nil {
		return qb.fail(nested.err)
	}
	if len(nested.wheres) == 0 {
		return qb
	}
	return qb.addWhere(boolean, "("+joinClauses(nested.wheres)+")")
}

// WhereExists, alt sorgunun en az bir satır döndürmesini şart koşar.
func (qb *QueryBuilder) WhereExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereSub("AND", "EXISTS ", sub)
}

// WhereNotExists, alt sorgunun hiç satır döndürmemesini şart koşar.
func (qb *QueryBuilder) WhereNotExists(sub *QueryBuilder) *QueryBuilder {
	return qb.whereSub("AND", "NOT EXISTS ", sub)
}

// WhereInSub, kolonun alt sorgu sonucunda olmasını şart koşar.
//
// Örnek:
//
//	admins := qb.NewQuery().From("admins").Select("user_id")
//	qb.From("users").WhereInSub("id", admins)
//	→ WHERE id IN (SELECT user_id FROM admins)
func (qb *QueryBuilder) WhereInSub(column string, sub *QueryBuilder) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	return qb.whereSub("AND", column+" IN ", sub)
}

// WhereNotInSub, kolonun alt sorgu sonucunda olmamasını şart koşar.
func (qb *QueryBuilder) WhereNotInSub(column string, sub *QueryBuilder) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	return qb.whereSub("AND", column+" NOT IN ", sub)
}

func (qb *QueryBuilder) whereSub(boolean, prefix string, sub *QueryBuilder) *QueryBuilder {
	sql, params, err := sub.ToSQL()
	if err != nil {
		return qb.fail(err)
	}
	return qb.addWhere(boolean, prefix+"("+qb.params.absorb(sql, params)+")")
}

// WhereDate, tarih kolonunun gün kısmını karşılaştırır.
//
// Örnek:
//
//	qb.WhereDate("created_at", "2024-01-15")
//	→ MySQL: WHERE DATE(created_at) = :p1
func (qb *QueryBuilder) WhereDate(column string, date string) *QueryBuilder {
	return qb.whereDatePart("date", column, date)
}

// WhereYear, tarih kolonunun yılını karşılaştırır.
func (qb *QueryBuilder) WhereYear(column string, year int) *QueryBuilder {
	return qb.whereDatePart("year", column, year)
}

// WhereMonth, tarih kolonunun ayını (1-12) karşılaştırır.
func (qb *QueryBuilder) WhereMonth(column string, month int) *QueryBuilder {
	return qb.whereDatePart("month", column, month)
}

// WhereDay, tarih kolonunun gününü (1-31) karşılaştırır.
func (qb *QueryBuilder) WhereDay(column string, day int) *QueryBuilder {
	return qb.whereDatePart("day", column, day)
}

func (qb *QueryBuilder) whereDatePart(part, column string, value any) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	return qb.addWhere("AND", qb.grammar.DatePart(part, column)+" = "+qb.params.Add(value))
}

// -----------------------------------------------------------------------------
// HAVING
// -----------------------------------------------------------------------------

func (qb *QueryBuilder) having(boolean, column, operator string, value any) *QueryBuilder {
	if err := validateExpression(column); err != nil {
		return qb.fail(err)
	}
	op, err := normalizeOperator(operator)
	if err != nil {
		return qb.fail(err)
	}
	qb.havings = append(qb.havings, WhereClause{Boolean: boolean, SQL: column + " " + op + " " + qb.params.Add(value)})
	qb.touch()
	return qb
}

// Having, HAVING koşulu ekler. Kolon bir aggregate ifadesi olabilir.
//
// Örnek:
//
//	qb.GroupBy("user_id").Having("COUNT(*)", ">", 5)
func (qb *QueryBuilder) Having(column, operator string, value any) *QueryBuilder {
	return qb.having("AND", column, operator, value)
}

// OrHaving, OR bağlacıyla Having.
func (qb *QueryBuilder) OrHaving(column, operator string, value any) *QueryBuilder {
	return qb.having("OR", column, operator, value)
}

// HavingRaw, ham bir HAVING koşulu ekler.
func (qb *QueryBuilder) HavingRaw(sql string, bindings ...any) *QueryBuilder {
	if err := validateExpression(sql); err != nil {
		return qb.fail(err)
	}
	bound, err := qb.params.bindQuestionMarks(sql, bindings)
	if err != nil {
		return qb.fail(err)
	}
	qb.havings = append(qb.havings, WhereClause{Boolean: "AND", SQL: bound})
	qb.touch()
	return qb
}
