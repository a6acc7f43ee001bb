// -----------------------------------------------------------------------------
// Database Types - SQL Builder İçin Yardımcı Tipler
// -----------------------------------------------------------------------------
// Bu dosya, QueryBuilder'ın state'ini oluşturan internal tipleri içerir.
// Builder, clause'ları render edilmiş SQL parçaları (fragment) olarak saklar;
// değerler ise her zaman Params üzerinden :pN placeholder'larına bağlanır.
//
// OrderDirection ve JoinType enum-like yapıları, kullanıcı input'unun direkt
// SQL'e enjekte edilmesini engeller.
// -----------------------------------------------------------------------------

package database

// OrderDirection, ORDER BY için izin verilen yönleri temsil eder.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// normalizeDirection, direction'ı whitelist'e göre normalize eder.
// Geçersiz değerler ASC'ye düşer.
func normalizeDirection(direction string) OrderDirection {
	switch toUpperTrim(direction) {
	case "DESC":
		return OrderDesc
	default:
		return OrderAsc
	}
}

// WhereClause, render edilmiş tek bir WHERE/HAVING koşulunu temsil eder.
//
// Alanlar:
//   - Boolean: Önceki koşulla bağlantı ("AND", "OR" veya ilk koşul için "")
//   - SQL: Koşulun kendisi (örn: "status = :p1")
//
// İlk koşulun Boolean alanı render sırasında her zaman yok sayılır.
type WhereClause struct {
	Boolean string
	SQL     string
}

// JoinType, JOIN tiplerini temsil eden enum-like yapıdır.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
	RightJoin JoinType = "RIGHT"
	CrossJoin JoinType = "CROSS"
)

// JoinClause, bir JOIN ifadesini temsil eder.
//
// Alanlar:
//   - Type: JOIN tipi (INNER, LEFT, RIGHT, CROSS)
//   - Table: JOIN yapılacak tablo (resolve edilmemiş, mantıksal ad)
//   - Alias: Opsiyonel tablo alias'ı
//   - Conditions: ON koşulları (ilk koşulun Boolean'ı yok sayılır)
//   - Using: USING kolonları (Conditions yerine)
//
// Örnek:
//
//	JoinClause{Type: LeftJoin, Table: "posts", Alias: "p",
//	    Conditions: []WhereClause{{SQL: "p.user_id = u.id"}}}
//	→ SQL: LEFT JOIN posts AS p ON p.user_id = u.id
type JoinClause struct {
	Type       JoinType
	Table      string
	Alias      string
	Conditions []WhereClause
	Using      []string
	params     *Params
	err        error
}

// fail, ilk hatayı saklar; JoinWhere bunu builder'a taşır.
func (j *JoinClause) fail(err error) *JoinClause {
	if j.err == nil {
		j.err = err
	}
	return j
}

// Err, closure içinde kaydedilen ilk geçersiz identifier/operatör hatasıdır.
func (j *JoinClause) Err() error { return j.err }

func (j *JoinClause) addOn(boolean, first, operator, second string) *JoinClause {
	if err := validateIdentifier(first, "column"); err != nil {
		return j.fail(err)
	}
	if err := validateIdentifier(second, "column"); err != nil {
		return j.fail(err)
	}
	op, err := normalizeOperator(operator)
	if err != nil {
		return j.fail(err)
	}
	j.Conditions = append(j.Conditions, WhereClause{Boolean: boolean, SQL: first + " " + op + " " + second})
	return j
}

// On, join'e bir AND ON koşulu ekler. Her iki taraf da kolon referansıdır.
func (j *JoinClause) On(first, operator, second string) *JoinClause {
	return j.addOn("AND", first, operator, second)
}

// OrOn, join'e bir OR ON koşulu ekler.
func (j *JoinClause) OrOn(first, operator, second string) *JoinClause {
	return j.addOn("OR", first, operator, second)
}

// Where, join koşuluna bağlı bir değer ekler (değer placeholder olarak bağlanır).
// nil değer, builder'daki Where gibi IS NULL / IS NOT NULL'a çevrilir.
//
// Örnek:
//
//	j.On("p.user_id", "=", "u.id").Where("p.published", "=", true)
//	→ ON p.user_id = u.id AND p.published = :p1
func (j *JoinClause) Where(column, operator string, value any) *JoinClause {
	sql, err := compareFragment(j.params, column, operator, value)
	if err != nil {
		return j.fail(err)
	}
	j.Conditions = append(j.Conditions, WhereClause{Boolean: "AND", SQL: sql})
	return j
}

// UnionClause, bir UNION dalını temsil eder. SQL içindeki placeholder'lar
// ana builder'ın sayacıyla yeniden adlandırılmıştır, çakışma olmaz.
type UnionClause struct {
	SQL    string
	Params map[string]any
	All    bool
}

// customStatement, yapısal render'ı bypass eden ham SQL override'ıdır.
type customStatement struct {
	sql  string
	kind string // SELECT, UPDATE, DELETE, INSERT, OTHER
}

// Row, tek bir sonuç satırıdır (kolon adı -> değer).
type Row map[string]any

// Values, INSERT/UPDATE için kolon adı -> değer eşlemesidir.
type Values map[string]any

// Pagination, tam sayfalama sonucudur.
//
// From ve To, 1-index'li ve kapsayıcıdır; Total == 0 ise ikisi de nil'dir.
type Pagination struct {
	Data     []Row `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	LastPage int   `json:"last_page"`
	From     *int  `json:"from"`
	To       *int  `json:"to"`
}

// SimplePagination, count sorgusu çalıştırmayan sayfalama sonucudur.
type SimplePagination struct {
	Data    []Row `json:"data"`
	HasMore bool  `json:"has_more"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}
