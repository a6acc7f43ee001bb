package database

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// SQL RENDERER
// -----------------------------------------------------------------------------
// ToSQL, builder state'ini tek bir SQL string'e ve :pN → değer map'ine
// dönüştürür:
//
//  1. Custom statement varsa olduğu gibi döner; UPDATE/DELETE ise biriken
//     WHERE koşulları sona eklenir.
//  2. Aksi halde preflight çözümleme geçişi (builder başına bir kez) çalışır.
//  3. SELECT [DISTINCT] ... FROM ... [JOIN] [WHERE] [GROUP BY] [HAVING]
//     [ORDER BY] [LIMIT] [OFFSET] birleştirilir, ardından UNION dalları eklenir.
//
// Placeholder isimleri aynı builder için render'lar arasında sabittir.
// -----------------------------------------------------------------------------

// ToSQL, sorguyu render eder.
//
// Döndürür:
//   - string: :pN placeholder'lı SQL
//   - map[string]any: Placeholder → değer
//   - error: Build hatası (geçersiz identifier, koşulsuz join, tablo yok)
//
// Örnek:
//
//	sql, params, err := qb.From("users").Where("status", "=", "active").ToSQL()
//	// sql:    "SELECT * FROM users WHERE status = :p1"
//	// params: map[":p1":"active"]
func (qb *QueryBuilder) ToSQL() (string, map[string]any, error) {
	if qb.err != nil {
		return "", nil, qb.err
	}
	if qb.custom != nil {
		return qb.renderCustom(), qb.params.Values(), nil
	}
	sql, err := qb.renderSelect()
	if err != nil {
		return "", nil, err
	}
	return sql, qb.params.Values(), nil
}

// Compiled, SQL'i driver'ın pozisyonel formatına çevrilmiş olarak döndürür.
func (qb *QueryBuilder) Compiled() (string, []any, error) {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return "", nil, err
	}
	return Compile(sql, params, qb.grammar)
}

func (qb *QueryBuilder) renderCustom() string {
	sql := qb.custom.sql
	if (qb.custom.kind == "UPDATE" || qb.custom.kind == "DELETE") && len(qb.wheres) > 0 {
		sql += " WHERE " + joinClauses(qb.wheres)
	}
	return sql
}

func (qb *QueryBuilder) fromClause() (string, error) {
	switch {
	case qb.fromExpr != "" && qb.fromAlias != "":
		return qb.fromExpr + " AS " + qb.fromAlias, nil
	case qb.fromExpr != "":
		return qb.fromExpr, nil
	case qb.fromTable == "":
		return "", ErrNoTable
	}
	table := qb.qualifiedTable()
	if qb.fromAlias != "" {
		return table + " AS " + qb.fromAlias, nil
	}
	return table, nil
}

func (qb *QueryBuilder) qualifiedTable() string {
	if qb.fromSchema != "" {
		return qb.fromSchema + "." + qb.fromTable
	}
	return qb.fromTable
}

func (qb *QueryBuilder) renderSelect() (string, error) {
	if _, err := qb.fromClause(); err != nil {
		return "", err
	}
	qb.preflight()
	from, err := qb.fromClause()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if qb.distinct {
		b.WriteString("DISTINCT ")
		if len(qb.distinctOn) > 0 {
			b.WriteString("ON (")
			b.WriteString(strings.Join(qb.distinctOn, ", "))
			b.WriteString(") ")
		}
	}
	if len(qb.selects) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(qb.selects, ", "))
	}

	b.WriteString(" FROM ")
	b.WriteString(from)

	for _, j := range qb.joins {
		sql, err := j.render()
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(sql)
	}

	if len(qb.wheres) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(joinClauses(qb.wheres))
	}
	if len(qb.groups) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(qb.groups, ", "))
	}
	if len(qb.havings) > 0 {
		b.WriteString(" HAVING ")
		b.WriteString(joinClauses(qb.havings))
	}
	if len(qb.orders) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(qb.orders, ", "))
	}
	qb.writeLimit(&b)

	for _, u := range qb.unions {
		if u.All {
			b.WriteString(" UNION ALL ")
		} else {
			b.WriteString(" UNION ")
		}
		b.WriteString(u.SQL)
	}
	return b.String(), nil
}

func (qb *QueryBuilder) writeLimit(b *strings.Builder) {
	limit := qb.limit
	if limit < 0 && qb.offset >= 0 {
		// MySQL ve SQLite LIMIT'siz OFFSET kabul etmez.
		switch {
		case qb.grammar == nil || qb.grammar.Driver() == DriverPostgres:
		case qb.grammar.Driver() == DriverMySQL:
			b.WriteString(" LIMIT 18446744073709551615")
		default:
			b.WriteString(" LIMIT -1")
		}
	}
	if limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	if qb.offset >= 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(qb.offset))
	}
}

// -----------------------------------------------------------------------------
// PREFLIGHT
// -----------------------------------------------------------------------------

// aliasMap, mevcut FROM ve JOIN hedeflerinden render-scoped alias map'i kurar.
func (qb *QueryBuilder) aliasMap() AliasMap {
	aliases := AliasMap{}
	if qb.fromTable != "" {
		key := qb.fromAlias
		if key == "" {
			key = qb.fromTable
		}
		aliases[key] = AliasTarget{Schema: qb.probeSchema(qb.fromSchema), Table: qb.fromTable}
	}
	for _, j := range qb.joins {
		schema, table := splitSchema(j.Table)
		if j.Alias == "" {
			aliases[table] = AliasTarget{Schema: qb.probeSchema(schema), Table: table}
			continue
		}
		aliases[j.Alias] = AliasTarget{Schema: qb.probeSchema(schema), Table: table}
	}
	return aliases
}

func (qb *QueryBuilder) probeSchema(schema string) string {
	if schema != "" {
		return schema
	}
	return qb.schema
}

func splitSchema(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// preflight, tablo ve kolon referanslarını Resolver ile bir kez düzeltir.
// Fragment'lar yerinde yeniden yazılır; geçiş idempotent'tir.
func (qb *QueryBuilder) preflight() {
	if qb.resolved || qb.resolver == nil {
		return
	}
	ctx := qb.ctx

	// Alias'sız tablolarda mantıksal ad nitelik olarak kullanılmış olabilir
	// (post.id); fiziksel ad değişince bu nitelikler de taşınır.
	renames := map[string]string{}
	if qb.fromTable != "" {
		logical := qb.fromTable
		qb.fromTable = qb.resolver.ResolveTable(ctx, logical, qb.probeSchema(qb.fromSchema))
		if qb.fromAlias == "" && qb.fromTable != logical {
			renames[logical] = qb.fromTable
		}
	}
	for _, j := range qb.joins {
		schema, table := splitSchema(j.Table)
		resolved := qb.resolver.ResolveTable(ctx, table, qb.probeSchema(schema))
		if j.Alias == "" && resolved != table {
			renames[table] = resolved
		}
		if schema != "" {
			resolved = schema + "." + resolved
		}
		j.Table = resolved
	}

	aliases := qb.aliasMap()
	for logical := range renames {
		if _, taken := aliases[logical]; taken {
			delete(renames, logical)
		}
	}
	rewrite := func(fragment string) string {
		fragment = renameQualifiers(fragment, renames)
		return qb.resolver.Rewrite(ctx, fragment, aliases)
	}

	for i, s := range qb.selects {
		qb.selects[i] = rewrite(s)
	}
	for _, j := range qb.joins {
		for i := range j.Conditions {
			j.Conditions[i].SQL = rewrite(j.Conditions[i].SQL)
		}
		if len(j.Using) > 0 {
			qb.resolveUsing(j, aliases)
		}
	}
	for i := range qb.wheres {
		qb.wheres[i].SQL = rewrite(qb.wheres[i].SQL)
	}
	for i := range qb.havings {
		qb.havings[i].SQL = rewrite(qb.havings[i].SQL)
	}
	for i, g := range qb.groups {
		qb.groups[i] = rewrite(g)
	}
	for i, o := range qb.orders {
		qb.orders[i] = rewrite(o)
	}
	qb.resolved = true
}

var qualifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*\.`)

// renameQualifiers, literal dışındaki "eski.kolon" niteliklerini "yeni.kolon"
// olarak yazar. schema.table.column içindeki orta parça atlanır.
func renameQualifiers(fragment string, renames map[string]string) string {
	if len(renames) == 0 || fragment == "" {
		return fragment
	}
	return mapOutsideLiterals(fragment, func(s string) string {
		matches := qualifierPattern.FindAllStringIndex(s, -1)
		if matches == nil {
			return s
		}
		var b strings.Builder
		last := 0
		for _, m := range matches {
			start, end := m[0], m[1]
			if start > 0 && (s[start-1] == '.' || s[start-1] == ':' || isIdentChar(s[start-1])) {
				continue
			}
			physical, ok := renames[s[start:end-1]]
			if !ok {
				continue
			}
			b.WriteString(s[last:start])
			b.WriteString(physical)
			b.WriteByte('.')
			last = end
		}
		if last == 0 {
			return s
		}
		b.WriteString(s[last:])
		return b.String()
	})
}

// resolveUsing, USING kolonlarını join edilen tablodaki gerçek kolon adına
// çevirir. USING kolonları nitelenmez.
func (qb *QueryBuilder) resolveUsing(j *JoinClause, aliases AliasMap) {
	r, ok := qb.resolver.(*Resolver)
	if !ok {
		return
	}
	_, table := splitSchema(j.Table)
	key := j.Alias
	if key == "" {
		key = table
	}
	for i, col := range j.Using {
		if resolved, found := r.ResolveColumnForAlias(qb.ctx, aliases, key, col); found {
			j.Using[i] = resolved
		}
	}
}

// String, sorgunun debug SQL'ini döndürür (fmt.Stringer).
func (qb *QueryBuilder) String() string {
	sql, err := qb.ToDebugSQL()
	if err != nil {
		return fmt.Sprintf("<invalid query: %v>", err)
	}
	return sql
}
