package database

import (
	"fmt"
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// PARAMETER BINDER
// -----------------------------------------------------------------------------
// Params, literal değerleri benzersiz isimli placeholder'lara (:p1, :p2, ...)
// dönüştürür. Sayaç builder ömrü boyunca sadece artar; WHERE temizlense bile
// bir isim asla tekrar kullanılmaz. Clone, map'i ve sayacı derin kopyalar.
//
// Render edilen SQL her zaman :pN isimlerini taşır. Driver'ın pozisyonel
// formatına (?, $1) çeviri sadece execution anında Compile ile yapılır.
// -----------------------------------------------------------------------------

// Params, placeholder adı -> değer eşlemesini ve sayacı tutar.
type Params struct {
	counter int
	names   []string
	values  map[string]any
}

// NewParams, boş bir parametre map'i oluşturur.
func NewParams() *Params {
	return &Params{values: make(map[string]any)}
}

// Add, değeri yeni bir placeholder'a bağlar ve placeholder adını döndürür.
//
// Örnek:
//
//	name := p.Add(42) // ":p1"
func (p *Params) Add(value any) string {
	p.counter++
	name := ":p" + strconv.Itoa(p.counter)
	p.names = append(p.names, name)
	p.values[name] = value
	return name
}

// Values, bağlı değerlerin bir kopyasını döndürür.
func (p *Params) Values() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Names, placeholder adlarını üretilme sırasıyla döndürür.
func (p *Params) Names() []string {
	return append([]string(nil), p.names...)
}

// Len, bağlı değer sayısıdır.
func (p *Params) Len() int { return len(p.values) }

// Counter, şimdiye kadar üretilen placeholder sayısıdır.
func (p *Params) Counter() int { return p.counter }

func (p *Params) clone() *Params {
	return &Params{
		counter: p.counter,
		names:   append([]string(nil), p.names...),
		values:  p.Values(),
	}
}

// clear, değerleri siler; sayaç korunur.
func (p *Params) clear() {
	p.names = nil
	p.values = make(map[string]any)
}

// absorb, başka bir parametre kümesiyle render edilmiş SQL'i bu kümeye taşır:
// her placeholder bu kümenin sayacından yeni bir isim alır.
func (p *Params) absorb(fragment string, params map[string]any) string {
	renamed := make(map[string]string, len(params))
	return walkPlaceholders(fragment, func(name string) string {
		if n, ok := renamed[name]; ok {
			return n
		}
		value, ok := params[name]
		if !ok {
			return name
		}
		n := p.Add(value)
		renamed[name] = n
		return n
	})
}

// bindQuestionMarks, ham SQL'deki "?" işaretlerini sırasıyla yeni placeholder'larla değiştirir.
func (p *Params) bindQuestionMarks(raw string, args []any) (string, error) {
	var b strings.Builder
	used := 0
	inQuote := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			if used >= len(args) {
				return "", fmt.Errorf("database: raw fragment %q has more placeholders than bindings", raw)
			}
			b.WriteString(p.Add(args[used]))
			used++
		default:
			b.WriteByte(c)
		}
	}
	if used != len(args) {
		return "", fmt.Errorf("database: raw fragment %q expects %d bindings, got %d", raw, used, len(args))
	}
	return b.String(), nil
}

// walkPlaceholders, string literal'leri atlayarak her :pN token'ı için fn'i çağırır
// ve dönüş değeriyle değiştirir. "::" cast'leri ve identifier içindeki ':' atlanır.
func walkPlaceholders(s string, fn func(name string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\'' {
			inQuote = !inQuote
		}
		if inQuote || c != ':' || !placeholderStart(s, i) {
			b.WriteByte(c)
			continue
		}
		j := i + 2
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == i+2 || (j < len(s) && isIdentChar(s[j])) {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fn(s[i:j]))
		i = j - 1
	}
	return b.String()
}

// placeholderStart, s[i] == ':' konumunun bir :pN token'ı başlatıp başlatmadığını kontrol eder.
func placeholderStart(s string, i int) bool {
	if i+1 >= len(s) || s[i+1] != 'p' {
		return false
	}
	if i > 0 && (s[i-1] == ':' || isIdentChar(s[i-1])) {
		return false
	}
	return true
}

func isIdentChar(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// Compile, :pN placeholder'lı SQL'i driver'ın pozisyonel formatına çevirir.
//
// Döndürür:
//   - string: Pozisyonel SQL (MySQL/SQLite: ?, PostgreSQL: $1, $2, ...)
//   - []any: Sıralı argümanlar
//   - error: Bağlanmamış bir placeholder varsa
func Compile(query string, params map[string]any, grammar Grammar) (string, []any, error) {
	args := make([]any, 0, len(params))
	var missing string
	out := walkPlaceholders(query, func(name string) string {
		value, ok := params[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return name
		}
		args = append(args, value)
		return grammar.Placeholder(len(args))
	})
	if missing != "" {
		return "", nil, fmt.Errorf("database: unbound placeholder %s", missing)
	}
	return out, args, nil
}
