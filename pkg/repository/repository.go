// -----------------------------------------------------------------------------
// Entity Repository
// -----------------------------------------------------------------------------
// Repository[T], tek bir tabloya bağlı entity tipi için CRUD operasyonlarını
// QueryBuilder üzerinden sağlar. Entity ile satır arasındaki dönüşüm
// Mapping[T] fonksiyonlarıyla açıkça tanımlanır; reflection kullanılmaz.
//
// Tüm sorgular bağlantının TransactionManager'ı üzerinden çalışır: dışarıda
// bir transaction açıksa repository operasyonları onun içinde (savepoint
// olarak) yer alır.
//
// Örnek:
//
//	posts, err := repository.New(tm, postMeta, repository.Mapping[*Post]{
//	    New:     func() *Post { return &Post{} },
//	    Values:  func(p *Post) database.Values { return database.Values{"id": p.ID, "title": p.Title} },
//	    Hydrate: hydratePost,
//	    ID:      func(p *Post) any { return p.ID },
//	    SetID:   func(p *Post, id int64) { p.ID = id },
//	})
//	post, found, err := posts.Find(ctx, 7, true)
// -----------------------------------------------------------------------------

package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
)

// RelationBinding, bir ilişkinin entity üzerindeki karşılığı.
type RelationBinding[T any] struct {
	// Load, ilişkili satırları entity'ye yerleştirir. Koleksiyon ilişkilerinde
	// rows boş olabilir ama nil değildir; tekil ilişkilerde satır yoksa rows nil'dir.
	Load func(entity T, rows []database.Row) error

	// Collection, many-to-many ilişkide entity'nin taşıdığı hedef id'lerini
	// döndürür. populated=false ise koleksiyon yüklenmemiştir ve Save
	// join tablosuna dokunmaz.
	Collection func(entity T) (ids []any, populated bool)
}

// Mapping, entity ile satır arasındaki dönüşümü tanımlar.
type Mapping[T any] struct {
	New     func() T
	Values  func(entity T) database.Values // kolon → değer (PK dahil olabilir)
	Hydrate func(entity T, row database.Row) error
	Changed func(entity T) []string // partial save için değişen alan/kolon adları (opsiyonel)
	ID      func(entity T) any
	SetID   func(entity T, id int64)

	Relations map[string]RelationBinding[T]
}

// Criteria, eşitlik koşullarının AND ile birleştirildiği filtre. nil değer IS NULL'dır.
type Criteria map[string]any

// Sort, tek bir sıralama ifadesi.
type Sort struct {
	Column    string
	Direction string
}

// FindOptions, FindBy için sıralama, sayfalama ve ilişki yükleme ayarları.
// OrderBy verilen sırada uygulanır. Limit/Offset 0 ise uygulanmaz.
type FindOptions struct {
	OrderBy       []Sort
	Limit         int
	Offset        int
	LoadRelations bool
}

// Repository, tek bir entity tipinin veri erişim katmanı.
type Repository[T any] struct {
	tm      *database.TransactionManager
	meta    *Metadata
	mapping Mapping[T]
}

// New, yeni bir Repository oluşturur.
//
// Parametreler:
//   - tm: Sorguların ve transaction'ların çalışacağı manager
//   - meta: Entity descriptor'ı (genelde Catalog.Resolve'dan)
//   - mapping: Entity ↔ satır dönüşümü
//
// Döndürür:
//   - *Repository[T]: Repository instance
//   - error: Eksik mapping fonksiyonu veya tanımsız ilişki binding'i
func New[T any](tm *database.TransactionManager, meta *Metadata, mapping Mapping[T]) (*Repository[T], error) {
	if tm == nil || meta == nil {
		return nil, errors.New("repository: transaction manager and metadata are required")
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if mapping.New == nil || mapping.Values == nil || mapping.Hydrate == nil || mapping.ID == nil || mapping.SetID == nil {
		return nil, fmt.Errorf("repository %s: New, Values, Hydrate, ID and SetID are required", meta.Table)
	}
	for name := range mapping.Relations {
		if _, ok := meta.Relation(name); !ok {
			return nil, fmt.Errorf("repository %s: binding for undeclared relation %q", meta.Table, name)
		}
	}
	return &Repository[T]{tm: tm, meta: meta, mapping: mapping}, nil
}

// Metadata, repository'nin descriptor'ını döndürür.
func (r *Repository[T]) Metadata() *Metadata { return r.meta }

func (r *Repository[T]) builder(ctx context.Context) *database.QueryBuilder {
	return r.tm.Builder().WithContext(ctx)
}

func (r *Repository[T]) query(ctx context.Context) *database.QueryBuilder {
	return r.builder(ctx).Table(r.meta.Table)
}

// isUnset, id'nin atanmamış (nil veya sıfır değer) olup olmadığını döndürür.
func isUnset(id any) bool {
	if id == nil {
		return true
	}
	v := reflect.ValueOf(id)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}
	return v.IsZero()
}

func (r *Repository[T]) hydrate(rows []database.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		entity := r.mapping.New()
		if err := r.mapping.Hydrate(entity, row); err != nil {
			return nil, fmt.Errorf("failed to hydrate %s: %w", r.meta.Table, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

func (r *Repository[T]) applyCriteria(qb *database.QueryBuilder, criteria Criteria) error {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		col, ok := r.meta.Column(k)
		if !ok {
			return fmt.Errorf("repository %s: unknown field %q", r.meta.Table, k)
		}
		if v := criteria[k]; v == nil {
			qb.WhereNull(col)
		} else {
			qb.Where(col, "=", v)
		}
	}
	return nil
}

// Find, primary key ile tek bir entity arar. Bulunamazsa (zero, false, nil)
// döner. loadRelations true ise her ilişki için bir ek sorgu çalışır.
func (r *Repository[T]) Find(ctx context.Context, id any, loadRelations bool) (T, bool, error) {
	var zero T
	row, err := r.query(ctx).Where(r.meta.PrimaryKey, "=", id).FirstRow()
	if err != nil {
		return zero, false, fmt.Errorf("failed to find %s: %w", r.meta.Table, err)
	}
	if row == nil {
		return zero, false, nil
	}

	entities, err := r.hydrate([]database.Row{row})
	if err != nil {
		return zero, false, err
	}
	if loadRelations {
		if err := r.LoadRelations(ctx, entities[0]); err != nil {
			return zero, false, err
		}
	}
	return entities[0], true, nil
}

// FindOrFail, Find gibidir ama entity yoksa database.ErrNotFound ile hata döner.
func (r *Repository[T]) FindOrFail(ctx context.Context, id any, loadRelations bool) (T, error) {
	entity, found, err := r.Find(ctx, id, loadRelations)
	if err != nil {
		return entity, err
	}
	if !found {
		return entity, fmt.Errorf("%s #%v: %w", r.meta.Table, id, database.ErrNotFound)
	}
	return entity, nil
}

// FindBy, criteria'ya uyan entity'leri döndürür.
//
// Örnek:
//
//	drafts, err := posts.FindBy(ctx, repository.Criteria{"status": "draft", "deleted_at": nil},
//	    repository.FindOptions{OrderBy: []repository.Sort{{Column: "created_at", Direction: "DESC"}}, Limit: 10})
func (r *Repository[T]) FindBy(ctx context.Context, criteria Criteria, opts FindOptions) ([]T, error) {
	qb := r.query(ctx)
	if err := r.applyCriteria(qb, criteria); err != nil {
		return nil, err
	}
	for _, s := range opts.OrderBy {
		col, ok := r.meta.Column(s.Column)
		if !ok {
			return nil, fmt.Errorf("repository %s: unknown order field %q", r.meta.Table, s.Column)
		}
		qb.OrderBy(col, s.Direction)
	}
	if opts.Limit > 0 {
		qb.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		qb.Offset(opts.Offset)
	}

	rows, err := qb.FetchAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", r.meta.Table, err)
	}
	entities, err := r.hydrate(rows)
	if err != nil {
		return nil, err
	}
	if opts.LoadRelations {
		for _, entity := range entities {
			if err := r.LoadRelations(ctx, entity); err != nil {
				return nil, err
			}
		}
	}
	return entities, nil
}

// FindOneBy, criteria'ya uyan ilk entity'yi döndürür.
func (r *Repository[T]) FindOneBy(ctx context.Context, criteria Criteria, loadRelations bool) (T, bool, error) {
	var zero T
	entities, err := r.FindBy(ctx, criteria, FindOptions{Limit: 1, LoadRelations: loadRelations})
	if err != nil || len(entities) == 0 {
		return zero, false, err
	}
	return entities[0], true, nil
}

// FindAll, tüm entity'leri primary key sırasıyla döndürür.
func (r *Repository[T]) FindAll(ctx context.Context, loadRelations bool) ([]T, error) {
	return r.FindBy(ctx, nil, FindOptions{
		OrderBy:       []Sort{{Column: r.meta.PrimaryKey, Direction: "ASC"}},
		LoadRelations: loadRelations,
	})
}

// Count, criteria'ya uyan satır sayısını döndürür.
func (r *Repository[T]) Count(ctx context.Context, criteria Criteria) (int64, error) {
	qb := r.query(ctx)
	if err := r.applyCriteria(qb, criteria); err != nil {
		return 0, err
	}
	return qb.Count()
}

// changedValues, partial save için sadece değişen kolonları bırakır.
func (r *Repository[T]) changedValues(entity T, values database.Values) database.Values {
	if r.mapping.Changed == nil {
		return values
	}
	out := make(database.Values)
	for _, name := range r.mapping.Changed(entity) {
		col, ok := r.meta.Column(name)
		if !ok {
			continue
		}
		if v, present := values[col]; present {
			out[col] = v
		}
	}
	return out
}

// Save, primary key atanmamışsa INSERT, atanmışsa UPDATE çalıştırır.
// INSERT sonrası üretilen key entity'ye yazılır. partial=true ise UPDATE
// sadece Changed'in bildirdiği kolonları içerir.
//
// Entity'nin yüklenmiş many-to-many koleksiyonları join tablosuyla tam
// olarak eşitlenir: eksik satırlar eklenir, fazlalar silinir.
func (r *Repository[T]) Save(ctx context.Context, entity T, partial bool) error {
	return r.tm.Transaction(ctx, func(tx *database.TransactionManager) error {
		pk := r.meta.PrimaryKey
		values := r.mapping.Values(entity)
		id := r.mapping.ID(entity)

		if isUnset(id) {
			delete(values, pk)
			newID, err := tx.Builder().WithContext(ctx).Table(r.meta.Table).InsertGetID(values, pk)
			if err != nil {
				return fmt.Errorf("failed to insert %s: %w", r.meta.Table, err)
			}
			r.mapping.SetID(entity, newID)
			id = r.mapping.ID(entity)
		} else {
			if partial {
				values = r.changedValues(entity, values)
			}
			delete(values, pk)
			if len(values) > 0 {
				_, err := tx.Builder().WithContext(ctx).Table(r.meta.Table).Where(pk, "=", id).Update(values)
				if err != nil {
					return fmt.Errorf("failed to update %s: %w", r.meta.Table, err)
				}
			}
		}

		return r.syncCollections(ctx, tx, entity, id)
	})
}

// Delete, entity'yi primary key ile siler. Bkz. DeleteByID.
func (r *Repository[T]) Delete(ctx context.Context, entity T) (int64, error) {
	id := r.mapping.ID(entity)
	if isUnset(id) {
		return 0, fmt.Errorf("repository %s: cannot delete an entity without a primary key", r.meta.Table)
	}
	return r.DeleteByID(ctx, id)
}

// DeleteByID, satırı siler ve etkilenen satır sayısını (yoksa 0) döndürür.
// Silmeden önce tüm many-to-many join tablolarından bu id'ye ait satırlar
// aynı transaction içinde temizlenir.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (int64, error) {
	var affected int64
	err := r.tm.Transaction(ctx, func(tx *database.TransactionManager) error {
		for _, rel := range r.meta.manyToMany() {
			jt := rel.JoinTable
			if _, err := tx.Builder().WithContext(ctx).Table(jt.Name).Where(jt.JoinColumn, "=", id).Delete(); err != nil {
				return fmt.Errorf("failed to detach %s.%s: %w", r.meta.Table, rel.Name, err)
			}
		}

		n, err := tx.Builder().WithContext(ctx).Table(r.meta.Table).Where(r.meta.PrimaryKey, "=", id).Delete()
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", r.meta.Table, err)
		}
		affected = n
		return nil
	})
	return affected, err
}
