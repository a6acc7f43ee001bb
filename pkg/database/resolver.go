// -----------------------------------------------------------------------------
// IDENTIFIER RESOLVER
// -----------------------------------------------------------------------------
// Resolver, tablo ve kolon referanslarını canlı veritabanı metadata'sına göre
// düzeltir:
//   - Tablo: Table Map → direkt varlık → tekil/çoğul varyantları
//   - Kolon: birebir isim → "_id" ile bitiyorsa snake/camel varyantları
//   - Bare "*_id" token'ları: tek bir alias'ta eşleşiyorsa alias ile nitelenir
//
// Bu bir uyumluluk katmanıdır, garanti değildir: hiçbir aday bulunamazsa
// referans olduğu gibi bırakılır. Metadata sorgusu hata verirse loglanır ve
// "yok" kabul edilir; sorgu orijinal identifier ile devam eder.
//
// Fragment rewriting regex tabanlıdır ve IdentifierResolver interface'inin
// arkasında izole edilmiştir; ileride gerçek bir tokenizer ile değiştirilebilir.
// -----------------------------------------------------------------------------

package database

import (
	"context"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/inflect"
	"golang.org/x/sync/singleflight"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/cache"
)

// IdentifierResolver, SQL Renderer'ın preflight geçişinde kullandığı sözleşmedir.
type IdentifierResolver interface {
	// ResolveTable, mantıksal tablo adını fiziksel ada çevirir.
	ResolveTable(ctx context.Context, name, schema string) string

	// ColumnExists, kolonun varlığını (cache'li) kontrol eder.
	ColumnExists(ctx context.Context, schema, table, column string) bool

	// Rewrite, bir clause fragment'ındaki alias.column ve bare *_id
	// referanslarını alias map'e göre düzeltir.
	Rewrite(ctx context.Context, fragment string, aliases AliasMap) string
}

// -----------------------------------------------------------------------------
// Table Map
// -----------------------------------------------------------------------------

// TableMap, mantıksal tablo adı → fiziksel tablo adı eşlemesidir.
// Metadata probe'undan önce kontrol edilir. Başlangıçta bir kez set edilmesi
// beklenir; eşzamanlı okuma güvenlidir.
type TableMap struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTableMap, verilen eşlemelerle yeni bir TableMap oluşturur.
func NewTableMap(entries map[string]string) *TableMap {
	t := &TableMap{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		t.entries[k] = v
	}
	return t
}

var defaultTableMap = NewTableMap(nil)

// DefaultTableMap, process genelindeki (varsayılan olarak boş) Table Map'i döndürür.
func DefaultTableMap() *TableMap { return defaultTableMap }

// Set, tek bir eşleme ekler veya günceller.
func (t *TableMap) Set(logical, physical string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[logical] = physical
}

// Replace, tüm eşlemeleri verilen map ile değiştirir.
func (t *TableMap) Replace(entries map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]string, len(entries))
	for k, v := range entries {
		t.entries[k] = v
	}
}

// Lookup, mantıksal ada karşılık gelen fiziksel adı döndürür.
func (t *TableMap) Lookup(logical string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	physical, ok := t.entries[logical]
	return physical, ok
}

// -----------------------------------------------------------------------------
// Alias Map
// -----------------------------------------------------------------------------

// AliasTarget, bir alias'ın işaret ettiği (schema, fiziksel tablo) çiftidir.
type AliasTarget struct {
	Schema string
	Table  string
}

// AliasMap, render süresince yaşayan alias → tablo eşlemesidir. Aliassız
// tablolar kendi adlarıyla yer alır. Her render'da yeniden kurulur.
type AliasMap map[string]AliasTarget

// keys, deterministik tarama için sıralı alias listesini döndürür.
func (a AliasMap) keys() []string {
	out := make([]string, 0, len(a))
	for k := range a {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// Resolver
// -----------------------------------------------------------------------------

// Resolver, IdentifierResolver'ın metadata tabanlı implementasyonudur.
type Resolver struct {
	executor QueryExecutor
	grammar  Grammar
	tables   *TableMap
	cache    cache.Cache
	ttl      time.Duration
	logger   Logger
	group    singleflight.Group
}

// ResolverOption, Resolver yapılandırma fonksiyonudur.
type ResolverOption func(*Resolver)

// WithTableMap, varsayılan process Table Map'i yerine verileni kullanır.
func WithTableMap(t *TableMap) ResolverOption {
	return func(r *Resolver) { r.tables = t }
}

// WithProbeCache, kolon/tablo varlık cache'ini değiştirir (örn: paylaşılan RedisCache).
func WithProbeCache(c cache.Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
		r.ttl = ttl
	}
}

// WithResolverLogger, probe hatalarının yazılacağı logger'ı belirler.
func WithResolverLogger(l Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver, yeni bir Resolver oluşturur.
//
// Parametreler:
//   - executor: Metadata sorgularını çalıştıracak executor
//   - grammar: Probe SQL'ini üreten lehçe
//
// Örnek:
//
//	r := database.NewResolver(conn.DB, conn.Grammar,
//	    database.WithProbeCache(redisCache, time.Hour))
func NewResolver(executor QueryExecutor, grammar Grammar, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		executor: executor,
		grammar:  grammar,
		tables:   defaultTableMap,
		cache:    cache.NewMemoryCache(),
		logger:   log.New(os.Stderr, "[resolver] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// probe, cache → singleflight → veritabanı sırasıyla bir varlık sorusunu cevaplar.
// Hata durumunda loglar ve false döner; hata cache'lenmez.
func (r *Resolver) probe(ctx context.Context, key, query string, args []any) bool {
	if r.executor == nil {
		return false
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		return cache.Remember(ctx, r.cache, key, r.ttl, func() (bool, error) {
			rows, err := r.executor.QueryContext(ctx, query, args...)
			if err != nil {
				return false, err
			}
			defer rows.Close()
			found := rows.Next()
			return found, rows.Err()
		})
	})
	if err != nil {
		r.logger.Printf("⚠️  Şema probe hatası [%s]: %v", key, err)
		return false
	}
	return v.(bool)
}

// TableExists, tablonun varlığını kontrol eder.
func (r *Resolver) TableExists(ctx context.Context, schema, table string) bool {
	query, args := r.grammar.TableExistsSQL(schema, table)
	return r.probe(ctx, "tbl:"+schema+"."+table, query, args)
}

// ColumnExists, kolonun varlığını kontrol eder. Sonuç schema.table.column
// anahtarıyla cache'lenir.
func (r *Resolver) ColumnExists(ctx context.Context, schema, table, column string) bool {
	query, args := r.grammar.ColumnExistsSQL(schema, table, column)
	return r.probe(ctx, "col:"+schema+"."+table+"."+column, query, args)
}

// ResolveTable, mantıksal tablo adını fiziksel ada çevirir.
//
// Sıra:
//  1. Table Map
//  2. Tablo olduğu gibi varsa kendisi
//  3. Sondaki "s" eklenmiş/çıkarılmış hali, ardından inflect tekil/çoğul hali
//  4. Hiçbiri yoksa girdi değişmeden döner
//
// Örnek:
//
//	r.ResolveTable(ctx, "user", "") // "users" (sadece users tablosu varsa)
func (r *Resolver) ResolveTable(ctx context.Context, name, schema string) string {
	if physical, ok := r.tables.Lookup(name); ok {
		return physical
	}
	if r.TableExists(ctx, schema, name) {
		return name
	}
	for _, candidate := range tableCandidates(name) {
		if r.TableExists(ctx, schema, candidate) {
			return candidate
		}
	}
	return name
}

// tableCandidates, tekil/çoğul aday isimlerini döndürür.
func tableCandidates(name string) []string {
	var toggled string
	if strings.HasSuffix(name, "s") {
		toggled = strings.TrimSuffix(name, "s")
	} else {
		toggled = name + "s"
	}

	seen := map[string]bool{name: true, "": true}
	var out []string
	for _, c := range []string{toggled, inflect.Pluralize(name), inflect.Singularize(name)} {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// ResolveColumnForAlias, alias'ın tablosunda kolonun gerçek adını bulur.
//
// Döndürür:
//   - string: Bulunan kolon (birebir veya _id varyantı)
//   - bool: false ise referans olduğu gibi bırakılmalıdır
func (r *Resolver) ResolveColumnForAlias(ctx context.Context, aliases AliasMap, alias, column string) (string, bool) {
	target, ok := aliases[alias]
	if !ok {
		return "", false
	}
	if r.ColumnExists(ctx, target.Schema, target.Table, column) {
		return column, true
	}
	for _, variant := range idVariants(column) {
		if r.ColumnExists(ctx, target.Schema, target.Table, variant) {
			return variant, true
		}
	}
	return "", false
}

// FindAliasForColumn, bare bir kolonun hangi alias'a ait olduğunu bulur.
// Sıfır veya birden fazla alias eşleşirse ok=false döner; belirsiz
// referanslar asla otomatik nitelenmez.
func (r *Resolver) FindAliasForColumn(ctx context.Context, aliases AliasMap, column string) (alias, resolved string, ok bool) {
	matches := 0
	for _, a := range aliases.keys() {
		if col, found := r.ResolveColumnForAlias(ctx, aliases, a, column); found {
			matches++
			alias, resolved = a, col
		}
	}
	if matches != 1 {
		return "", "", false
	}
	return alias, resolved, true
}

// -----------------------------------------------------------------------------
// Fragment rewriting
// -----------------------------------------------------------------------------

var (
	qualifiedRefPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)`)
	bareIDPattern       = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*_id`)
	trailingASPattern   = regexp.MustCompile(`(?i)\bAS\s+$`)
)

// Rewrite, fragment'taki alias.column ve bare *_id referanslarını düzeltir.
// Tek tırnaklı string literal'lerin içine dokunulmaz.
func (r *Resolver) Rewrite(ctx context.Context, fragment string, aliases AliasMap) string {
	if len(aliases) == 0 || fragment == "" {
		return fragment
	}
	return mapOutsideLiterals(fragment, func(segment string) string {
		segment = r.rewriteQualified(ctx, segment, aliases)
		return r.rewriteBareIDs(ctx, segment, aliases)
	})
}

func (r *Resolver) rewriteQualified(ctx context.Context, s string, aliases AliasMap) string {
	matches := qualifiedRefPattern.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && (s[start-1] == '.' || isIdentChar(s[start-1]) || s[start-1] == ':') {
			continue
		}
		if end < len(s) && (s[end] == '.' || s[end] == '(') {
			continue
		}
		alias, column := s[m[2]:m[3]], s[m[4]:m[5]]
		if _, known := aliases[alias]; !known {
			continue
		}
		resolved, ok := r.ResolveColumnForAlias(ctx, aliases, alias, column)
		if !ok || resolved == column {
			continue
		}
		b.WriteString(s[last:m[4]])
		b.WriteString(resolved)
		last = m[5]
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

func (r *Resolver) rewriteBareIDs(ctx context.Context, s string, aliases AliasMap) string {
	matches := bareIDPattern.FindAllStringIndex(s, -1)
	if matches == nil {
		return s
	}
	single := ""
	if len(aliases) == 1 {
		single = aliases.keys()[0]
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && strings.ContainsRune("._:`\"", rune(s[start-1])) || start > 0 && isIdentChar(s[start-1]) {
			continue
		}
		if end < len(s) && (isIdentChar(s[end]) || strings.ContainsRune(".(`\"", rune(s[end]))) {
			continue
		}
		if trailingASPattern.MatchString(s[:start]) {
			continue
		}
		token := s[start:end]

		var replacement string
		if single != "" {
			resolved, ok := r.ResolveColumnForAlias(ctx, aliases, single, token)
			if !ok || resolved == token {
				continue
			}
			replacement = resolved
		} else {
			alias, resolved, ok := r.FindAliasForColumn(ctx, aliases, token)
			if !ok {
				continue
			}
			replacement = alias + "." + resolved
		}
		b.WriteString(s[last:start])
		b.WriteString(replacement)
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// mapOutsideLiterals, tek tırnaklı literal'ler dışındaki parçalara fn uygular.
func mapOutsideLiterals(s string, fn func(string) string) string {
	if !strings.ContainsRune(s, '\'') {
		return fn(s)
	}
	var b strings.Builder
	segStart := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			continue
		}
		if !inQuote {
			b.WriteString(fn(s[segStart:i]))
			segStart = i
			inQuote = true
			continue
		}
		b.WriteString(s[segStart : i+1])
		segStart = i + 1
		inQuote = false
	}
	if inQuote {
		b.WriteString(s[segStart:])
	} else {
		b.WriteString(fn(s[segStart:]))
	}
	return b.String()
}
