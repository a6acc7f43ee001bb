package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/events"
)

// -----------------------------------------------------------------------------
// QUERY BUILDER — CLAUSE ACCUMULATOR
// -----------------------------------------------------------------------------
// Bu dosya, QueryBuilder'ın ana gövdesini içerir. Builder; select listesi,
// from hedefi, join'ler, where/having koşulları, group/order listeleri,
// limit/offset, union'lar ve ham (custom) statement override'ı gibi state
// bilgilerini render edilmiş SQL parçaları olarak tutar.
//
// Builder stateful ve reentrant'tır: her mutator aynı instance'ı döner.
// "Build edildi" gibi terminal bir state yoktur; ToSQL tekrar tekrar
// çağrılabilir ve sonrasında mutator'lar uygulanmaya devam edebilir.
//
// GÜVENLİK:
// - Tüm değerler :pN placeholder'larıyla bağlanır, SQL'e gömülmez
// - Identifier'lar whitelist pattern'inden geçer
// - Geçersiz input panic yerine builder üzerinde hata olarak kaydedilir ve
//   bir sonraki render'da döner
//
// Eşzamanlılık: tek bir builder birden fazla goroutine'de paylaşılmamalıdır.
// Paralel kullanım için Clone ile bağımsız kopyalar alınır.
// -----------------------------------------------------------------------------

type QueryBuilder struct {
	executor   QueryExecutor
	grammar    Grammar
	resolver   IdentifierResolver
	logger     Logger
	dispatcher *events.Dispatcher
	macros     Macros
	ctx        context.Context
	schema     string

	selects    []string
	distinct   bool
	distinctOn []string

	fromTable  string
	fromSchema string
	fromAlias  string
	fromExpr   string // FromSub/FromRaw: resolve edilmez

	joins   []*JoinClause
	wheres  []WhereClause
	groups  []string
	havings []WhereClause
	orders  []string
	limit   int
	offset  int
	unions  []UnionClause
	custom  *customStatement

	params      *Params
	err         error
	resolved    bool
	resolverSet bool
}

// Option, QueryBuilder yapılandırma fonksiyonudur.
type Option func(*QueryBuilder)

// WithResolver, identifier resolver'ı belirler. nil verilirse preflight
// çözümleme tamamen kapatılır.
func WithResolver(r IdentifierResolver) Option {
	return func(qb *QueryBuilder) {
		qb.resolver = r
		qb.resolverSet = true
	}
}

// WithLogger, builder logger'ını belirler.
func WithLogger(l Logger) Option {
	return func(qb *QueryBuilder) { qb.logger = l }
}

// WithDispatcher, her çalıştırılan statement için QueryExecuted event'i
// gönderecek dispatcher'ı bağlar.
func WithDispatcher(d *events.Dispatcher) Option {
	return func(qb *QueryBuilder) { qb.dispatcher = d }
}

// WithMacros, builder'a Call ile çağrılabilecek extension metodları ekler.
func WithMacros(m Macros) Option {
	return func(qb *QueryBuilder) { qb.macros = m.clone() }
}

// WithSchema, metadata probe'larında kullanılacak varsayılan schema'yı belirler.
func WithSchema(schema string) Option {
	return func(qb *QueryBuilder) { qb.schema = schema }
}

// NewBuilder, veritabanı bağlantısını alarak yeni QueryBuilder üretir.
//
// Parametreler:
//   - executor: SQL komutlarını çalıştıracak executor (*sql.DB, *sql.Tx veya *sql.Conn)
//   - grammar: SQL dialect'ini yöneten grammar (MySQL, PostgreSQL, SQLite)
//   - opts: Opsiyonel ayarlar (resolver, logger, dispatcher, macros)
//
// Döndürür:
//   - *QueryBuilder: Yeni QueryBuilder instance'ı
//
// Executor verilmiş ve WithResolver kullanılmamışsa builder'a özel bir
// Resolver (kendi kolon cache'i ile) oluşturulur.
//
// Örnek:
//
//	qb := database.NewBuilder(conn.DB, conn.Grammar)
//	rows, err := qb.From("users").Where("active", "=", 1).FetchAll()
func NewBuilder(executor QueryExecutor, grammar Grammar, opts ...Option) *QueryBuilder {
	qb := &QueryBuilder{
		executor: executor,
		grammar:  grammar,
		ctx:      context.Background(),
		limit:    -1,
		offset:   -1,
		params:   NewParams(),
		logger:   log.New(os.Stderr, "[query] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(qb)
	}
	if !qb.resolverSet && executor != nil {
		qb.resolver = NewResolver(executor, grammar, WithResolverLogger(qb.logger))
	}
	return qb
}

// Grammar, builder'ın lehçesini döndürür.
func (qb *QueryBuilder) Grammar() Grammar { return qb.grammar }

// Executor, builder'ın executor'ını döndürür.
func (qb *QueryBuilder) Executor() QueryExecutor { return qb.executor }

// Err, kaydedilmiş ilk build hatasını döndürür.
func (qb *QueryBuilder) Err() error { return qb.err }

// NewQuery, aynı executor/grammar/resolver ile boş bir builder döndürür.
func (qb *QueryBuilder) NewQuery() *QueryBuilder {
	fresh := &QueryBuilder{
		executor:   qb.executor,
		grammar:    qb.grammar,
		resolver:   qb.resolver,
		logger:     qb.logger,
		dispatcher: qb.dispatcher,
		macros:     qb.macros,
		ctx:        qb.ctx,
		schema:     qb.schema,
		limit:      -1,
		offset:     -1,
		params:     NewParams(),
	}
	return fresh
}

// WithContext, sonraki tüm blocking çağrılarda kullanılacak context'i bağlar.
func (qb *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	if ctx == nil {
		ctx = context.Background()
	}
	qb.ctx = ctx
	return qb
}

// Context, builder'a bağlı context'i döndürür.
func (qb *QueryBuilder) Context() context.Context { return qb.ctx }

// fail, ilk build hatasını kaydeder. Sonraki hatalar yok sayılır.
func (qb *QueryBuilder) fail(err error) *QueryBuilder {
	if qb.err == nil {
		qb.err = err
	}
	return qb
}

// touch, state değiştiğinde preflight'ın yeniden çalışmasını sağlar.
func (qb *QueryBuilder) touch() { qb.resolved = false }

// validateIdentifier, SQL identifier'ı (column/table adı) validate eder.
//
// İzin verilen karakterler:
// - Harfler (a-z, A-Z), rakamlar (0-9), underscore (_)
// - Nokta (.) - schema.table ve table.column formatı için (en fazla 2 nokta)
// - "*" ve "alias.*"
//
// Örnekler:
//   - ✅ "users", "user_id", "users.id", "u.*"
//   - ❌ "id; DROP TABLE users--"
//   - ❌ "id' OR '1'='1"
func validateIdentifier(identifier, context string) error {
	if identifier == "*" {
		return nil
	}
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: empty %s name", ErrInvalidIdentifier, context)
	}
	check := strings.TrimSuffix(identifier, ".*")
	if !validIdentifierPattern.MatchString(check) {
		return fmt.Errorf("%w: %s '%s' (contains unsafe characters)", ErrInvalidIdentifier, context, identifier)
	}
	parts := strings.Split(check, ".")
	if len(parts) > 3 {
		return fmt.Errorf("%w: %s '%s' (too many dots)", ErrInvalidIdentifier, context, identifier)
	}
	for _, part := range parts {
		if part == "" {
			return fmt.Errorf("%w: %s '%s' (empty part)", ErrInvalidIdentifier, context, identifier)
		}
	}
	return nil
}

// validateExpression, developer tarafından yazılan ham ifadeler (COUNT(*),
// "price * qty AS total") için temel bir kontrol yapar.
func validateExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("%w: empty expression", ErrInvalidIdentifier)
	}
	if strings.Contains(expr, ";") || strings.Contains(expr, "--") || strings.Contains(expr, "/*") {
		return fmt.Errorf("%w: expression '%s' (suspicious content)", ErrInvalidIdentifier, expr)
	}
	return nil
}

// validateSelectColumn, select listesindeki tek bir girdiyi kontrol eder:
// identifier, "identifier AS alias" veya fonksiyon ifadesi.
func validateSelectColumn(col string) error {
	if strings.Contains(col, "(") {
		return validateExpression(col)
	}
	if idx := indexFold(col, " as "); idx > 0 {
		if err := validateIdentifier(strings.TrimSpace(col[:idx]), "column"); err != nil {
			return err
		}
		return validateIdentifier(strings.TrimSpace(col[idx+4:]), "column alias")
	}
	return validateIdentifier(col, "column")
}

func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), substr)
}

// parseTableRef, "schema.table alias" / "table AS alias" biçimindeki referansı ayrıştırır.
func parseTableRef(ref string) (schema, table, alias string, err error) {
	fields := strings.Fields(ref)
	switch {
	case len(fields) == 0:
		return "", "", "", fmt.Errorf("%w: empty table name", ErrInvalidIdentifier)
	case len(fields) == 1:
	case len(fields) == 2:
		alias = fields[1]
	case len(fields) == 3 && strings.EqualFold(fields[1], "as"):
		alias = fields[2]
	default:
		return "", "", "", fmt.Errorf("%w: table reference '%s'", ErrInvalidIdentifier, ref)
	}
	name := fields[0]
	if err := validateIdentifier(name, "table"); err != nil {
		return "", "", "", err
	}
	if alias != "" {
		if err := validateIdentifier(alias, "table alias"); err != nil {
			return "", "", "", err
		}
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		schema, table = name[:i], name[i+1:]
	} else {
		table = name
	}
	return schema, table, alias, nil
}

// -----------------------------------------------------------------------------
// SELECT / FROM
// -----------------------------------------------------------------------------

// Select, sorgudan döndürülecek kolonları belirler (önceki listeyi değiştirir).
//
// Örnek:
//
//	qb.Select("id", "name", "email")
//	qb.Select("COUNT(*) AS total")
func (qb *QueryBuilder) Select(columns ...string) *QueryBuilder {
	qb.selects = nil
	return qb.AddSelect(columns...)
}

// AddSelect, mevcut select listesine kolon ekler.
func (qb *QueryBuilder) AddSelect(columns ...string) *QueryBuilder {
	for _, col := range columns {
		col = strings.TrimSpace(col)
		if err := validateSelectColumn(col); err != nil {
			return qb.fail(err)
		}
		if col == "*" && len(columns) == 1 && len(qb.selects) == 0 {
			qb.selects = nil
			continue
		}
		qb.selects = append(qb.selects, col)
	}
	qb.touch()
	return qb
}

// SelectRaw, ham bir select ifadesi ekler. "?" işaretleri bindings ile bağlanır.
//
// Örnek:
//
//	qb.SelectRaw("price * ? AS price_with_tax", 1.18)
func (qb *QueryBuilder) SelectRaw(expr string, bindings ...any) *QueryBuilder {
	if err := validateExpression(expr); err != nil {
		return qb.fail(err)
	}
	bound, err := qb.params.bindQuestionMarks(expr, bindings)
	if err != nil {
		return qb.fail(err)
	}
	qb.selects = append(qb.selects, bound)
	qb.touch()
	return qb
}

// Distinct, SELECT DISTINCT üretir.
func (qb *QueryBuilder) Distinct() *QueryBuilder {
	qb.distinct = true
	return qb
}

// DistinctOn, PostgreSQL'e özgü DISTINCT ON (...) üretir. Diğer lehçelerde
// render hata döner.
func (qb *QueryBuilder) DistinctOn(columns ...string) *QueryBuilder {
	for _, col := range columns {
		if err := validateIdentifier(col, "column"); err != nil {
			return qb.fail(err)
		}
	}
	if qb.grammar != nil && !qb.grammar.SupportsDistinctOn() {
		return qb.fail(fmt.Errorf("%w: DISTINCT ON on %s", ErrUnsupported, qb.grammar.Driver()))
	}
	qb.distinct = true
	qb.distinctOn = append(qb.distinctOn, columns...)
	qb.touch()
	return qb
}

// SelectGroupConcat, lehçeye özgü string aggregate'ini select listesine ekler.
//
// Örnek:
//
//	qb.SelectGroupConcat("tags.name", "tag_names", ", ")
//	// MySQL:    GROUP_CONCAT(tags.name SEPARATOR ', ') AS tag_names
//	// Postgres: STRING_AGG(tags.name, ', ') AS tag_names
func (qb *QueryBuilder) SelectGroupConcat(column, alias, separator string) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	if err := validateIdentifier(alias, "column alias"); err != nil {
		return qb.fail(err)
	}
	qb.selects = append(qb.selects, qb.grammar.GroupConcat(column, separator)+" AS "+alias)
	qb.touch()
	return qb
}

// From, sorgunun çalışacağı tabloyu belirler. Alias "users u" veya
// "users AS u" biçiminde verilebilir.
//
// Örnek:
//
//	qb.From("users u")
func (qb *QueryBuilder) From(table string) *QueryBuilder {
	schema, name, alias, err := parseTableRef(table)
	if err != nil {
		return qb.fail(err)
	}
	qb.fromSchema, qb.fromTable, qb.fromAlias, qb.fromExpr = schema, name, alias, ""
	qb.touch()
	return qb
}

// Table, From'un alias'ı ayrı parametre olarak alan biçimidir.
//
// Örnek:
//
//	qb.Table("users")
//	qb.Table("users", "u")
func (qb *QueryBuilder) Table(table string, alias ...string) *QueryBuilder {
	if len(alias) > 0 && alias[0] != "" {
		return qb.From(table + " " + alias[0])
	}
	return qb.From(table)
}

// FromSub, bir alt sorguyu FROM hedefi olarak kullanır.
//
// Örnek:
//
//	recent := qb.NewQuery().From("orders").Where("created_at", ">", since)
//	qb.FromSub(recent, "r").Select("r.user_id")
func (qb *QueryBuilder) FromSub(sub *QueryBuilder, alias string) *QueryBuilder {
	if err := validateIdentifier(alias, "table alias"); err != nil {
		return qb.fail(err)
	}
	sql, params, err := sub.ToSQL()
	if err != nil {
		return qb.fail(err)
	}
	qb.fromExpr = "(" + qb.params.absorb(sql, params) + ")"
	qb.fromTable, qb.fromSchema, qb.fromAlias = "", "", alias
	qb.touch()
	return qb
}

// FromRaw, ham bir FROM ifadesi kullanır. Resolver bu ifadeye dokunmaz.
func (qb *QueryBuilder) FromRaw(expr string, bindings ...any) *QueryBuilder {
	if err := validateExpression(expr); err != nil {
		return qb.fail(err)
	}
	bound, err := qb.params.bindQuestionMarks(expr, bindings)
	if err != nil {
		return qb.fail(err)
	}
	qb.fromExpr = bound
	qb.fromTable, qb.fromSchema, qb.fromAlias = "", "", ""
	qb.touch()
	return qb
}

// -----------------------------------------------------------------------------
// GROUP / ORDER / LIMIT
// -----------------------------------------------------------------------------

// GroupBy, GROUP BY kolonları ekler.
func (qb *QueryBuilder) GroupBy(columns ...string) *QueryBuilder {
	for _, col := range columns {
		if err := validateIdentifier(col, "column"); err != nil {
			return qb.fail(err)
		}
		qb.groups = append(qb.groups, col)
	}
	qb.touch()
	return qb
}

// GroupByRaw, ham bir GROUP BY ifadesi ekler.
func (qb *QueryBuilder) GroupByRaw(expr string) *QueryBuilder {
	if err := validateExpression(expr); err != nil {
		return qb.fail(err)
	}
	qb.groups = append(qb.groups, expr)
	qb.touch()
	return qb
}

// OrderBy, sorgu sonuçlarını belirtilen kolona göre sıralar.
//
// Direction whitelist kontrolünden geçer; geçersiz değerler ASC'ye düşer.
//
// Örnek:
//
//	qb.OrderBy("created_at", "DESC")
//	qb.OrderBy("name", "asc")
func (qb *QueryBuilder) OrderBy(column, direction string) *QueryBuilder {
	if err := validateIdentifier(column, "column"); err != nil {
		return qb.fail(err)
	}
	qb.orders = append(qb.orders, column+" "+string(normalizeDirection(direction)))
	qb.touch()
	return qb
}

// OrderByDesc, OrderBy(column, "DESC") kısayoludur.
func (qb *QueryBuilder) OrderByDesc(column string) *QueryBuilder {
	return qb.OrderBy(column, "DESC")
}

// OrderByRaw, ham bir ORDER BY ifadesi ekler.
func (qb *QueryBuilder) OrderByRaw(expr string, bindings ...any) *QueryBuilder {
	if err := validateExpression(expr); err != nil {
		return qb.fail(err)
	}
	bound, err := qb.params.bindQuestionMarks(expr, bindings)
	if err != nil {
		return qb.fail(err)
	}
	qb.orders = append(qb.orders, bound)
	qb.touch()
	return qb
}

// Latest, en yeni kayıtları başa alır (varsayılan kolon: created_at).
func (qb *QueryBuilder) Latest(column ...string) *QueryBuilder {
	return qb.OrderBy(firstOr(column, "created_at"), "DESC")
}

// Oldest, en eski kayıtları başa alır (varsayılan kolon: created_at).
func (qb *QueryBuilder) Oldest(column ...string) *QueryBuilder {
	return qb.OrderBy(firstOr(column, "created_at"), "ASC")
}

// InRandomOrder, lehçeye özgü rastgele sıralama ekler.
func (qb *QueryBuilder) InRandomOrder() *QueryBuilder {
	qb.orders = append(qb.orders, qb.grammar.Random())
	return qb
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}

// Limit, döndürülecek maksimum satır sayısını belirler. Negatif değer limiti kaldırır.
//
// Örnek:
//
//	qb.Limit(10) → LIMIT 10
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	if limit < 0 {
		limit = -1
	}
	qb.limit = limit
	return qb
}

// Offset, atlanacak satır sayısını belirler. Negatif değer offset'i kaldırır.
//
// Örnek:
//
//	qb.Limit(10).Offset(20) → LIMIT 10 OFFSET 20 (3. sayfa)
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	if offset < 0 {
		offset = -1
	}
	qb.offset = offset
	return qb
}

// ForPage, 1-index'li sayfa numarasına göre limit/offset ayarlar.
func (qb *QueryBuilder) ForPage(page, perPage int) *QueryBuilder {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	return qb.Limit(perPage).Offset((page - 1) * perPage)
}

// -----------------------------------------------------------------------------
// UNION / CUSTOM / WHEN
// -----------------------------------------------------------------------------

// Union, başka bir builder'ın sorgusunu UNION ile ekler. Alt sorgunun
// placeholder'ları bu builder'ın sayacıyla yeniden adlandırılır.
func (qb *QueryBuilder) Union(other *QueryBuilder) *QueryBuilder {
	return qb.addUnion(other, false)
}

// UnionAll, UNION ALL ekler.
func (qb *QueryBuilder) UnionAll(other *QueryBuilder) *QueryBuilder {
	return qb.addUnion(other, true)
}

func (qb *QueryBuilder) addUnion(other *QueryBuilder, all bool) *QueryBuilder {
	sql, params, err := other.ToSQL()
	if err != nil {
		return qb.fail(err)
	}
	local := NewParams()
	local.counter = qb.params.counter
	renamed := local.absorb(sql, params)
	for _, name := range local.names {
		qb.params.counter++
		qb.params.names = append(qb.params.names, name)
		qb.params.values[name] = local.values[name]
	}
	qb.unions = append(qb.unions, UnionClause{SQL: renamed, Params: local.Values(), All: all})
	return qb
}

// Custom, yapısal render'ı bypass eden ham bir statement belirler. "?"
// işaretleri bindings ile bağlanır. UPDATE/DELETE statement'larında
// biriken WHERE koşulları sona eklenir.
//
// Örnek:
//
//	qb.Custom("UPDATE users SET status = ?", "inactive").
//	    Where("last_login", "<", cutoff).
//	    Execute()
func (qb *QueryBuilder) Custom(sql string, bindings ...any) *QueryBuilder {
	bound, err := qb.params.bindQuestionMarks(strings.TrimSpace(sql), bindings)
	if err != nil {
		return qb.fail(err)
	}
	kind := "OTHER"
	if fields := strings.Fields(bound); len(fields) > 0 {
		switch k := strings.ToUpper(fields[0]); k {
		case "SELECT", "UPDATE", "DELETE", "INSERT", "WITH":
			kind = k
		}
	}
	qb.custom = &customStatement{sql: bound, kind: kind}
	return qb
}

// When, koşul doğruysa fn'i builder üzerinde çalıştırır.
//
// Örnek:
//
//	qb.When(filter.Status != "", func(q *database.QueryBuilder) {
//	    q.Where("status", "=", filter.Status)
//	})
func (qb *QueryBuilder) When(condition bool, fn func(*QueryBuilder)) *QueryBuilder {
	if condition {
		fn(qb)
	}
	return qb
}

// -----------------------------------------------------------------------------
// RESET / CLONE
// -----------------------------------------------------------------------------

// Reset, tüm statement state'ini temizler. Bağlantı, resolver, macro'lar ve
// placeholder sayacı korunur; sayaç hiçbir zaman geri sarılmaz.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.selects = nil
	qb.distinct = false
	qb.distinctOn = nil
	qb.fromTable, qb.fromSchema, qb.fromAlias, qb.fromExpr = "", "", "", ""
	qb.joins = nil
	qb.wheres = nil
	qb.groups = nil
	qb.havings = nil
	qb.orders = nil
	qb.limit, qb.offset = -1, -1
	qb.unions = nil
	qb.custom = nil
	qb.params.clear()
	qb.err = nil
	qb.resolved = false
	return qb
}

// Clone, builder'ın bağımsız bir derin kopyasını döndürür: statement state,
// parametre map'i ve sayaç kopyalanır. Kopya ve kaynak birbirini etkilemez.
// Resolver (ve kolon cache'i) paylaşılır.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	c := *qb
	c.params = qb.params.clone()
	c.selects = append([]string(nil), qb.selects...)
	c.distinctOn = append([]string(nil), qb.distinctOn...)
	c.wheres = append([]WhereClause(nil), qb.wheres...)
	c.groups = append([]string(nil), qb.groups...)
	c.havings = append([]WhereClause(nil), qb.havings...)
	c.orders = append([]string(nil), qb.orders...)
	c.unions = make([]UnionClause, len(qb.unions))
	for i, u := range qb.unions {
		u.Params = copyValues(u.Params)
		c.unions[i] = u
	}
	c.joins = make([]*JoinClause, len(qb.joins))
	for i, j := range qb.joins {
		jc := *j
		jc.Conditions = append([]WhereClause(nil), j.Conditions...)
		jc.Using = append([]string(nil), j.Using...)
		jc.params = c.params
		c.joins[i] = &jc
	}
	if qb.custom != nil {
		custom := *qb.custom
		c.custom = &custom
	}
	c.macros = qb.macros.clone()
	return &c
}

// Duplicate, Clone'un eş anlamlısıdır.
func (qb *QueryBuilder) Duplicate() *QueryBuilder { return qb.Clone() }

func copyValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// exec, executor çağrıları için instrumented sarmalayıcıyı döndürür.
func (qb *QueryBuilder) exec() (instrumented, error) {
	if qb.executor == nil {
		return instrumented{}, ErrNoExecutor
	}
	return instrumented{exec: qb.executor, dispatcher: qb.dispatcher}, nil
}
