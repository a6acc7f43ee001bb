package database

import "fmt"

// -----------------------------------------------------------------------------
// MACROS
// -----------------------------------------------------------------------------
// Macro, builder'a isimle çağrılabilen extension davranışı ekler. Global bir
// registry yoktur: macro'lar NewBuilder'a WithMacros ile verilir ve
// Clone/NewQuery ile kopyalanır.
//
// Örnek:
//
//	macros := database.Macros{
//	    "active": func(q *database.QueryBuilder, _ ...any) *database.QueryBuilder {
//	        return q.Where("status", "=", "active").WhereNull("deleted_at")
//	    },
//	}
//	qb := database.NewBuilder(db, grammar, database.WithMacros(macros))
//	qb.From("users").Call("active")
// -----------------------------------------------------------------------------

// Macro, builder üzerinde çalışan bir extension fonksiyonudur.
type Macro func(qb *QueryBuilder, args ...any) *QueryBuilder

// Macros, isim → Macro eşlemesidir.
type Macros map[string]Macro

func (m Macros) clone() Macros {
	if m == nil {
		return nil
	}
	out := make(Macros, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HasMacro, builder'da verilen isimde macro olup olmadığını döndürür.
func (qb *QueryBuilder) HasMacro(name string) bool {
	_, ok := qb.macros[name]
	return ok
}

// Call, isimli macro'yu çalıştırır. Macro yoksa hata builder'a kaydedilir.
func (qb *QueryBuilder) Call(name string, args ...any) *QueryBuilder {
	macro, ok := qb.macros[name]
	if !ok {
		return qb.fail(fmt.Errorf("database: macro %q is not registered", name))
	}
	if out := macro(qb, args...); out != nil {
		return out
	}
	return qb
}
