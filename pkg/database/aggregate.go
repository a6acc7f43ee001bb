package database

import (
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// AGGREGATES
// -----------------------------------------------------------------------------
// Aggregate'ler türetilmiş bir görünüm üzerinde hesaplanır: select
// "FUNC(column) AS result" ile değiştirilir, order/limit/offset her iki
// yolda da temizlenir.
// Orijinal builder'a dokunulmaz.
//
// GROUP BY, UNION veya DISTINCT içeren sorgular alt sorgu olarak sarılır:
//
//	SELECT COUNT(*) AS result FROM (<sorgu>) AS aggregate_table
//
// NULL sonuç (boş tabloda SUM gibi) 0 olarak döner.
// -----------------------------------------------------------------------------

func (qb *QueryBuilder) aggregateView(fn, column string) *QueryBuilder {
	view := qb.derive()
	view.orders = nil
	view.limit, view.offset = -1, -1
	if len(view.groups) == 0 && len(view.unions) == 0 && !view.distinct {
		view.selects = []string{fn + "(" + column + ") AS result"}
		return view
	}

	if rest, ok := strings.CutPrefix(column, "DISTINCT "); ok {
		column = "DISTINCT " + lastSegment(rest)
	} else if column != "*" {
		column = lastSegment(column)
	}
	outer := qb.NewQuery().FromSub(view, "aggregate_table")
	outer.selects = []string{fn + "(" + column + ") AS result"}
	return outer
}

// aggregate, tek bir skaler döndüren aggregate sorgusunu çalıştırır.
func (qb *QueryBuilder) aggregate(fn, column string) (any, error) {
	if column != "*" {
		if err := validateIdentifier(column, "column"); err != nil {
			return nil, err
		}
	}
	return qb.aggregateExpr(fn, column)
}

func (qb *QueryBuilder) aggregateExpr(fn, expr string) (any, error) {
	rows, err := qb.aggregateView(fn, expr).queryRows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var v any
	if err := rows.Scan(&v); err != nil {
		return nil, err
	}
	return normalizeValue(v), rows.Err()
}

// Count, WHERE state'ine uyan satır sayısını döndürür.
//
// Örnek:
//
//	n, err := qb.From("users").Where("active", "=", 1).Count()
func (qb *QueryBuilder) Count() (int64, error) {
	v, err := qb.aggregate("COUNT", "*")
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// CountDistinct, kolonun farklı değerlerini sayar.
func (qb *QueryBuilder) CountDistinct(column string) (int64, error) {
	if err := validateIdentifier(column, "column"); err != nil {
		return 0, err
	}
	v, err := qb.aggregateExpr("COUNT", "DISTINCT "+column)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

// CountWhere, ek bir koşulla sayar; builder'ın kendi koşullarına eklenmez.
func (qb *QueryBuilder) CountWhere(column, operator string, value any) (int64, error) {
	return qb.derive().Where(column, operator, value).Count()
}

// Sum, kolon toplamını döndürür.
func (qb *QueryBuilder) Sum(column string) (float64, error) {
	return qb.floatAggregate("SUM", column)
}

// SumDistinct, kolonun farklı değerlerinin toplamını döndürür.
func (qb *QueryBuilder) SumDistinct(column string) (float64, error) {
	return qb.distinctAggregate("SUM", column)
}

// SumWhere, ek bir koşulla toplam alır.
func (qb *QueryBuilder) SumWhere(column, whereColumn, operator string, value any) (float64, error) {
	return qb.derive().Where(whereColumn, operator, value).Sum(column)
}

// Avg, kolon ortalamasını döndürür.
func (qb *QueryBuilder) Avg(column string) (float64, error) {
	return qb.floatAggregate("AVG", column)
}

// AvgDistinct, kolonun farklı değerlerinin ortalamasını döndürür.
func (qb *QueryBuilder) AvgDistinct(column string) (float64, error) {
	return qb.distinctAggregate("AVG", column)
}

// Min, kolonun en küçük değerini driver'ın döndürdüğü tipte döndürür.
func (qb *QueryBuilder) Min(column string) (any, error) {
	return qb.aggregate("MIN", column)
}

// Max, kolonun en büyük değerini driver'ın döndürdüğü tipte döndürür.
func (qb *QueryBuilder) Max(column string) (any, error) {
	return qb.aggregate("MAX", column)
}

// StdDev, örneklem standart sapmasını döndürür. SQLite'ta ErrUnsupported.
func (qb *QueryBuilder) StdDev(column string) (float64, error) {
	fn, err := qb.grammar.StatisticFunc("STDDEV")
	if err != nil {
		return 0, err
	}
	return qb.floatAggregate(fn, column)
}

// Variance, örneklem varyansını döndürür. SQLite'ta ErrUnsupported.
func (qb *QueryBuilder) Variance(column string) (float64, error) {
	fn, err := qb.grammar.StatisticFunc("VARIANCE")
	if err != nil {
		return 0, err
	}
	return qb.floatAggregate(fn, column)
}

func (qb *QueryBuilder) floatAggregate(fn, column string) (float64, error) {
	v, err := qb.aggregate(fn, column)
	if err != nil {
		return 0, err
	}
	return toFloat64(v)
}

func (qb *QueryBuilder) distinctAggregate(fn, column string) (float64, error) {
	if err := validateIdentifier(column, "column"); err != nil {
		return 0, err
	}
	v, err := qb.aggregateExpr(fn, "DISTINCT "+column)
	if err != nil {
		return 0, err
	}
	return toFloat64(v)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n, 64)
		return int64(f), err
	}
	return 0, fmt.Errorf("database: cannot convert %T to int64", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("database: cannot convert %T to float64", v)
}
