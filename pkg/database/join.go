package database

import (
	"fmt"
	"strings"
)

// -----------------------------------------------------------------------------
// JOIN
// -----------------------------------------------------------------------------
// Join'ler eklenme sırasıyla render edilir. Tablo adı mantıksal olarak
// saklanır ve preflight sırasında Resolver ile fiziksel ada çevrilir.
//
// CROSS JOIN dışındaki her join en az bir ON koşulu veya USING listesi
// taşımalıdır; aksi halde render ErrJoinWithoutConditions döner.
// -----------------------------------------------------------------------------

func (qb *QueryBuilder) newJoin(joinType JoinType, table string) (*JoinClause, error) {
	schema, name, alias, err := parseTableRef(table)
	if err != nil {
		return nil, err
	}
	if schema != "" {
		name = schema + "." + name
	}
	return &JoinClause{Type: joinType, Table: name, Alias: alias, params: qb.params}, nil
}

func (qb *QueryBuilder) addJoin(joinType JoinType, table, first, operator, second string) *QueryBuilder {
	j, err := qb.newJoin(joinType, table)
	if err != nil {
		return qb.fail(err)
	}
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
	j.Conditions = append(j.Conditions, WhereClause{Boolean: "AND", SQL: first + " " + op + " " + second})
	qb.joins = append(qb.joins, j)
	qb.touch()
	return qb
}

// Join, INNER JOIN ekler.
//
// Örnek:
//
//	qb.From("users u").Join("posts p", "p.user_id", "=", "u.id")
//	→ FROM users AS u INNER JOIN posts AS p ON p.user_id = u.id
func (qb *QueryBuilder) Join(table, first, operator, second string) *QueryBuilder {
	return qb.addJoin(InnerJoin, table, first, operator, second)
}

// LeftJoin, LEFT JOIN ekler.
func (qb *QueryBuilder) LeftJoin(table, first, operator, second string) *QueryBuilder {
	return qb.addJoin(LeftJoin, table, first, operator, second)
}

// RightJoin, RIGHT JOIN ekler.
func (qb *QueryBuilder) RightJoin(table, first, operator, second string) *QueryBuilder {
	return qb.addJoin(RightJoin, table, first, operator, second)
}

// CrossJoin, koşulsuz CROSS JOIN ekler.
func (qb *QueryBuilder) CrossJoin(table string) *QueryBuilder {
	j, err := qb.newJoin(CrossJoin, table)
	if err != nil {
		return qb.fail(err)
	}
	qb.joins = append(qb.joins, j)
	qb.touch()
	return qb
}

// JoinUsing, JOIN ... USING (col, ...) ekler.
//
// Örnek:
//
//	qb.From("orders").JoinUsing("invoices", "order_id")
//	→ INNER JOIN invoices USING (order_id)
func (qb *QueryBuilder) JoinUsing(table string, columns ...string) *QueryBuilder {
	j, err := qb.newJoin(InnerJoin, table)
	if err != nil {
		return qb.fail(err)
	}
	for _, col := range columns {
		if err := validateIdentifier(col, "column"); err != nil {
			return qb.fail(err)
		}
	}
	j.Using = append(j.Using, columns...)
	qb.joins = append(qb.joins, j)
	qb.touch()
	return qb
}

// JoinWhere, koşulları bir closure ile kurulan join ekler. Closure içindeki
// ilk geçersiz kolon veya operatör builder'a kaydedilir ve ToSQL'de döner.
//
// Örnek:
//
//	qb.JoinWhere(database.LeftJoin, "posts p", func(j *database.JoinClause) {
//	    j.On("p.user_id", "=", "u.id").Where("p.published", "=", true)
//	})
func (qb *QueryBuilder) JoinWhere(joinType JoinType, table string, fn func(*JoinClause)) *QueryBuilder {
	j, err := qb.newJoin(joinType, table)
	if err != nil {
		return qb.fail(err)
	}
	fn(j)
	if j.err != nil {
		return qb.fail(j.err)
	}
	qb.joins = append(qb.joins, j)
	qb.touch()
	return qb
}

// render, join'i SQL'e çevirir.
func (j *JoinClause) render() (string, error) {
	var b strings.Builder
	b.WriteString(string(j.Type))
	b.WriteString(" JOIN ")
	b.WriteString(j.Table)
	if j.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(j.Alias)
	}

	switch {
	case j.Type == CrossJoin:
	case len(j.Using) > 0:
		b.WriteString(" USING (")
		b.WriteString(strings.Join(j.Using, ", "))
		b.WriteString(")")
	case len(j.Conditions) > 0:
		b.WriteString(" ON ")
		b.WriteString(joinClauses(j.Conditions))
	default:
		return "", fmt.Errorf("%w: %s JOIN %s", ErrJoinWithoutConditions, j.Type, j.Table)
	}
	return b.String(), nil
}
