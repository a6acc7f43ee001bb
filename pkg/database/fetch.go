package database

import (
	"database/sql"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// EXECUTION & FETCH
// -----------------------------------------------------------------------------
// Okuma operasyonları builder'ın kalıcı state'ini (select, order, limit,
// offset) değiştirmez. Her biri preflight'tan sonra türetilmiş bir kopya
// (derive) üzerinde çalışır; böylece Count() ardından FetchAll() aynı
// WHERE/FROM state'ini görür.
// -----------------------------------------------------------------------------

// derive, çözümlenmiş state'in bağımsız bir kopyasını döndürür.
func (qb *QueryBuilder) derive() *QueryBuilder {
	qb.preflight()
	return qb.Clone()
}

// queryRows, sorguyu render edip çalıştırır. Çağıran rows'u kapatmalıdır.
func (qb *QueryBuilder) queryRows() (*sql.Rows, error) {
	ex, err := qb.exec()
	if err != nil {
		return nil, err
	}
	query, args, err := qb.Compiled()
	if err != nil {
		return nil, err
	}
	return ex.query(qb.ctx, query, args)
}

// FetchAll, sorguyu çalıştırır ve tüm satırları döndürür.
//
// Örnek:
//
//	rows, err := qb.From("users").Where("active", "=", 1).FetchAll()
//	for _, row := range rows {
//	    fmt.Println(row["email"])
//	}
func (qb *QueryBuilder) FetchAll() ([]Row, error) {
	rows, err := qb.queryRows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// Get, sorguyu çalıştırır ve sonuçları bir struct slice'ına tarar.
//
// Örnek:
//
//	var users []User
//	err := qb.From("users").Where("status", "=", "active").Get(&users)
func (qb *QueryBuilder) Get(dest any) error {
	rows, err := qb.queryRows()
	if err != nil {
		return err
	}
	defer rows.Close()
	return ScanSlice(rows, dest)
}

// First, ilk satırı (LIMIT 1) tek bir struct'a tarar. Satır yoksa
// errors.Is(err, ErrNotFound) ve errors.Is(err, sql.ErrNoRows) doğrudur.
//
// Örnek:
//
//	var user User
//	err := qb.From("users").Where("id", "=", 1).First(&user)
//	if errors.Is(err, database.ErrNotFound) {
//	    // kullanıcı yok
//	}
func (qb *QueryBuilder) First(dest any) error {
	rows, err := qb.derive().Limit(1).queryRows()
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %w", ErrNotFound, sql.ErrNoRows)
	}
	return ScanStruct(rows, dest)
}

// FirstRow, ilk satırı döndürür. Satır yoksa (nil, nil) döner.
func (qb *QueryBuilder) FirstRow() (Row, error) {
	rows, err := qb.derive().Limit(1).FetchAll()
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Value, ilk satırın tek bir kolonunu döndürür. Satır yoksa (nil, nil).
//
// Örnek:
//
//	email, err := qb.From("users").Where("id", "=", 7).Value("email")
func (qb *QueryBuilder) Value(column string) (any, error) {
	view := qb.derive().Select(column).Limit(1)
	rows, err := view.queryRows()
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
	return normalizeValue(v), nil
}

// Pluck, tek bir kolonun tüm değerlerini döndürür.
//
// Örnek:
//
//	ids, err := qb.From("users").Where("active", "=", 1).Pluck("id")
func (qb *QueryBuilder) Pluck(column string) ([]any, error) {
	rows, err := qb.derive().Select(column).queryRows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]any, 0)
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, normalizeValue(v))
	}
	return out, rows.Err()
}

// PluckKeyed, key kolonu → value kolonu map'i döndürür. Anahtarlar
// fmt.Sprint ile string'e çevrilir; tekrar eden anahtarlarda son satır kazanır.
//
// Örnek:
//
//	names, err := qb.From("users").PluckKeyed("name", "id") // {"1": "Ada", ...}
func (qb *QueryBuilder) PluckKeyed(column, key string) (map[string]any, error) {
	rows, err := qb.derive().Select(column, key).queryRows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]any)
	for rows.Next() {
		var v, k any
		if err := rows.Scan(&v, &k); err != nil {
			return nil, err
		}
		out[fmt.Sprint(normalizeValue(k))] = normalizeValue(v)
	}
	return out, rows.Err()
}

// FetchGrouped, satırları verilen kolonun değerine göre gruplar.
func (qb *QueryBuilder) FetchGrouped(column string) (map[string][]Row, error) {
	rows, err := qb.FetchAll()
	if err != nil {
		return nil, err
	}
	key := lastSegment(column)
	out := make(map[string][]Row)
	for _, row := range rows {
		k := fmt.Sprint(row[key])
		out[k] = append(out[k], row)
	}
	return out, nil
}

// FetchIndexed, satırları verilen kolonun değerine göre indeksler.
// Tekrar eden değerlerde son satır kazanır.
func (qb *QueryBuilder) FetchIndexed(column string) (map[string]Row, error) {
	rows, err := qb.FetchAll()
	if err != nil {
		return nil, err
	}
	key := lastSegment(column)
	out := make(map[string]Row, len(rows))
	for _, row := range rows {
		out[fmt.Sprint(row[key])] = row
	}
	return out, nil
}

// lastSegment, "u.email" → "email".
func lastSegment(column string) string {
	if i := strings.LastIndex(column, "."); i >= 0 {
		return column[i+1:]
	}
	return column
}

// Chunk, sonuçları size'lık sayfalar halinde (LIMIT size OFFSET page*size)
// çeker ve her sayfa için fn'i çağırır. fn false dönerse veya bir sayfa
// size'dan az satır içerirse durur. Sayfa numarası 1'den başlar.
//
// Örnek:
//
//	err := qb.From("users").OrderBy("id", "ASC").Chunk(500, func(rows []database.Row, page int) bool {
//	    process(rows)
//	    return true
//	})
func (qb *QueryBuilder) Chunk(size int, fn func(rows []Row, page int) bool) error {
	if size < 1 {
		return fmt.Errorf("database: chunk size must be positive, got %d", size)
	}
	base := qb.derive()
	for page := 0; ; page++ {
		rows, err := base.Clone().Limit(size).Offset(page * size).FetchAll()
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if !fn(rows, page+1) || len(rows) < size {
			return nil
		}
	}
}

// Cursor, satırları tek bir streaming sorgu ile, birer birer üreten ileri
// yönlü bir sequence döndürür. Sequence yeniden başlatılamaz: ikinci
// iterasyon ErrCursorConsumed üretir.
//
// Örnek:
//
//	for row, err := range qb.From("events").Cursor() {
//	    if err != nil {
//	        return err
//	    }
//	    handle(row)
//	}
func (qb *QueryBuilder) Cursor() iter.Seq2[Row, error] {
	view := qb.derive()
	var consumed atomic.Bool
	return func(yield func(Row, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrCursorConsumed)
			return
		}
		rows, err := view.queryRows()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}
		for rows.Next() {
			row, err := scanRow(rows, cols)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Lazy, Cursor gibi ileri yönlü bir sequence döndürür ama satırları
// arka planda size'lık chunk'lar halinde çeker.
func (qb *QueryBuilder) Lazy(size int) iter.Seq2[Row, error] {
	view := qb.derive()
	var consumed atomic.Bool
	return func(yield func(Row, error) bool) {
		if consumed.Swap(true) {
			yield(nil, ErrCursorConsumed)
			return
		}
		stopped := false
		err := view.Chunk(size, func(rows []Row, _ int) bool {
			for _, row := range rows {
				if !yield(row, nil) {
					stopped = true
					return false
				}
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// Paginate, bir count ve bir limitli veri sorgusu çalıştırır.
//
// Örnek:
//
//	p, err := qb.From("posts").Latest().Paginate(2, 15)
//	// total=150 → p.LastPage=10, *p.From=16, *p.To=30
func (qb *QueryBuilder) Paginate(page, perPage int) (*Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	total, err := qb.Count()
	if err != nil {
		return nil, err
	}
	var data []Row
	if total > 0 {
		if data, err = qb.derive().ForPage(page, perPage).FetchAll(); err != nil {
			return nil, err
		}
	}
	return NewPagination(data, total, page, perPage), nil
}

// SimplePaginate, count sorgusu çalıştırmadan perPage+1 satır çeker ve
// sonraki sayfanın varlığını buna göre belirler.
func (qb *QueryBuilder) SimplePaginate(page, perPage int) (*SimplePagination, error) {
	page, perPage = normalizePage(page, perPage)
	data, err := qb.derive().Limit(perPage + 1).Offset((page - 1) * perPage).FetchAll()
	if err != nil {
		return nil, err
	}
	hasMore := len(data) > perPage
	if hasMore {
		data = data[:perPage]
	}
	return &SimplePagination{Data: data, HasMore: hasMore, Page: page, PerPage: perPage}, nil
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	return page, perPage
}

// NewPagination, sayfa metadata'sını hesaplar: LastPage = ceil(total/perPage),
// From/To 1-index'li ve kapsayıcıdır; sayfada veri yoksa ikisi de nil'dir.
func NewPagination(data []Row, total int64, page, perPage int) *Pagination {
	if data == nil {
		data = []Row{}
	}
	p := &Pagination{
		Data:     data,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: int((total + int64(perPage) - 1) / int64(perPage)),
	}
	if total > 0 && len(data) > 0 {
		from := (page-1)*perPage + 1
		to := from + len(data) - 1
		p.From, p.To = &from, &to
	}
	return p
}

// Exists, WHERE state'ine uyan en az bir satır olup olmadığını
// SELECT 1 ... LIMIT 1 ile kontrol eder.
func (qb *QueryBuilder) Exists() (bool, error) {
	view := qb.derive()
	view.selects = []string{"1"}
	view.distinct, view.distinctOn = false, nil
	view.orders = nil
	view.limit, view.offset = 1, -1

	rows, err := view.queryRows()
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := rows.Next()
	return found, rows.Err()
}

// DoesntExist, Exists'in tersidir.
func (qb *QueryBuilder) DoesntExist() (bool, error) {
	exists, err := qb.Exists()
	return !exists, err
}
