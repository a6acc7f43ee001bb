package repository

import (
	"context"
	"fmt"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
)

// -----------------------------------------------------------------------------
// RELATION ENGINE
// -----------------------------------------------------------------------------
// İlişki yükleme kuralları:
//   - OneToMany ve ManyToMany her zaman (boş olabilen) bir dizi olarak yüklenir.
//   - ManyToOne ve OneToOne tek bir nullable referanstır; satır yoksa nil.
//
// Many-to-many yazma işlemleri join tablosu üzerinde çalışır. Sync tam bir
// diff'tir: koleksiyonda olup tabloda olmayanlar eklenir, tabloda olup
// koleksiyonda olmayanlar silinir.
// -----------------------------------------------------------------------------

func (r *Repository[T]) relation(name string) (Relation, error) {
	rel, ok := r.meta.Relation(name)
	if !ok {
		return Relation{}, fmt.Errorf("repository %s: unknown relation %q", r.meta.Table, name)
	}
	return rel, nil
}

func (r *Repository[T]) manyToManyRelation(name string) (Relation, error) {
	rel, err := r.relation(name)
	if err != nil {
		return rel, err
	}
	if rel.Kind != ManyToMany {
		return rel, fmt.Errorf("repository %s: relation %q is %s, not many-to-many", r.meta.Table, name, rel.Kind)
	}
	return rel, nil
}

func (r *Repository[T]) ownerID(entity T) (any, error) {
	id := r.mapping.ID(entity)
	if isUnset(id) {
		return nil, fmt.Errorf("repository %s: entity has no primary key", r.meta.Table)
	}
	return id, nil
}

// LoadRelations, entity'nin ilişkilerini yükler. names boşsa binding'i
// olan tüm ilişkiler yüklenir; her ilişki için bir sorgu çalışır.
//
// Örnek:
//
//	err := posts.LoadRelations(ctx, post, "author", "tags")
func (r *Repository[T]) LoadRelations(ctx context.Context, entity T, names ...string) error {
	relations := r.meta.Relations
	if len(names) > 0 {
		relations = make([]Relation, 0, len(names))
		for _, name := range names {
			rel, err := r.relation(name)
			if err != nil {
				return err
			}
			if b, ok := r.mapping.Relations[name]; !ok || b.Load == nil {
				return fmt.Errorf("repository %s: relation %q has no loader", r.meta.Table, name)
			}
			relations = append(relations, rel)
		}
	}

	for _, rel := range relations {
		binding, ok := r.mapping.Relations[rel.Name]
		if !ok || binding.Load == nil {
			continue
		}
		rows, err := r.relatedRows(ctx, entity, rel)
		if err != nil {
			return fmt.Errorf("failed to load %s.%s: %w", r.meta.Table, rel.Name, err)
		}
		if err := binding.Load(entity, rows); err != nil {
			return fmt.Errorf("failed to load %s.%s: %w", r.meta.Table, rel.Name, err)
		}
	}
	return nil
}

// relatedRows, tek bir ilişkinin hedef satırlarını çeker.
func (r *Repository[T]) relatedRows(ctx context.Context, entity T, rel Relation) ([]database.Row, error) {
	qb := r.builder(ctx)
	key := rel.targetKey()

	if rel.ownsForeignKey() {
		fk := r.mapping.Values(entity)[rel.ForeignKey]
		if isUnset(fk) {
			return nil, nil
		}
		rows, err := qb.Table(rel.TargetTable).Where(key, "=", fk).Limit(1).FetchAll()
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows, nil
	}

	id, err := r.ownerID(entity)
	if err != nil {
		return nil, err
	}

	if rel.Kind == ManyToMany {
		jt := rel.JoinTable
		return qb.Table(rel.TargetTable, "t").
			Select("t.*").
			Join(jt.Name+" j", "t."+key, "=", "j."+jt.InverseColumn).
			Where("j."+jt.JoinColumn, "=", id).
			OrderBy("t."+key, "ASC").
			FetchAll()
	}

	qb.Table(rel.TargetTable).Where(rel.ForeignKey, "=", id).OrderBy(key, "ASC")
	if !rel.Kind.Collection() {
		rows, err := qb.Limit(1).FetchAll()
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows, nil
	}
	return qb.FetchAll()
}

// AttachRelation, join tablosuna tek bir satır ekler ve etkilenen satır sayısını döndürür.
//
// Örnek:
//
//	n, err := posts.AttachRelation(ctx, post, "tags", 3)
func (r *Repository[T]) AttachRelation(ctx context.Context, entity T, relation string, relatedID any) (int64, error) {
	rel, err := r.manyToManyRelation(relation)
	if err != nil {
		return 0, err
	}
	id, err := r.ownerID(entity)
	if err != nil {
		return 0, err
	}
	jt := rel.JoinTable
	n, err := r.builder(ctx).Table(jt.Name).Insert(database.Values{
		jt.JoinColumn:    id,
		jt.InverseColumn: relatedID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to attach %s.%s: %w", r.meta.Table, relation, err)
	}
	return n, nil
}

// DetachRelation, join tablosundan tek bir satırı siler ve etkilenen satır sayısını döndürür.
func (r *Repository[T]) DetachRelation(ctx context.Context, entity T, relation string, relatedID any) (int64, error) {
	rel, err := r.manyToManyRelation(relation)
	if err != nil {
		return 0, err
	}
	id, err := r.ownerID(entity)
	if err != nil {
		return 0, err
	}
	jt := rel.JoinTable
	n, err := r.builder(ctx).Table(jt.Name).
		Where(jt.JoinColumn, "=", id).
		Where(jt.InverseColumn, "=", relatedID).
		Delete()
	if err != nil {
		return 0, fmt.Errorf("failed to detach %s.%s: %w", r.meta.Table, relation, err)
	}
	return n, nil
}

// SyncRelation, join tablosunu ids ile tam olarak eşitler. Boş ids tüm
// bağlantıları kaldırır.
func (r *Repository[T]) SyncRelation(ctx context.Context, entity T, relation string, ids []any) error {
	rel, err := r.manyToManyRelation(relation)
	if err != nil {
		return err
	}
	id, err := r.ownerID(entity)
	if err != nil {
		return err
	}
	return r.tm.Transaction(ctx, func(tx *database.TransactionManager) error {
		return syncJoin(ctx, tx, rel, id, ids)
	})
}

// syncCollections, binding'i yüklenmiş koleksiyon döndüren tüm
// many-to-many ilişkileri eşitler.
func (r *Repository[T]) syncCollections(ctx context.Context, tx *database.TransactionManager, entity T, id any) error {
	for _, rel := range r.meta.manyToMany() {
		binding, ok := r.mapping.Relations[rel.Name]
		if !ok || binding.Collection == nil {
			continue
		}
		ids, populated := binding.Collection(entity)
		if !populated {
			continue
		}
		if err := syncJoin(ctx, tx, rel, id, ids); err != nil {
			return fmt.Errorf("failed to sync %s.%s: %w", r.meta.Table, rel.Name, err)
		}
	}
	return nil
}

// syncJoin, owner'ın join satırlarını ids ile diff'leyip ekler/siler.
// Değerler fmt.Sprint ile karşılaştırılır; int ve int64 id'ler eşleşir.
func syncJoin(ctx context.Context, tx *database.TransactionManager, rel Relation, ownerID any, ids []any) error {
	jt := rel.JoinTable
	current, err := tx.Builder().WithContext(ctx).Table(jt.Name).
		Where(jt.JoinColumn, "=", ownerID).
		Pluck(jt.InverseColumn)
	if err != nil {
		return err
	}

	want := make(map[string]bool, len(ids))
	var attach []database.Values
	have := make(map[string]bool, len(current))
	for _, v := range current {
		have[fmt.Sprint(v)] = true
	}
	for _, v := range ids {
		k := fmt.Sprint(v)
		if want[k] {
			continue
		}
		want[k] = true
		if !have[k] {
			attach = append(attach, database.Values{jt.JoinColumn: ownerID, jt.InverseColumn: v})
		}
	}

	var detach []any
	for _, v := range current {
		if !want[fmt.Sprint(v)] {
			detach = append(detach, v)
		}
	}

	if len(detach) > 0 {
		_, err := tx.Builder().WithContext(ctx).Table(jt.Name).
			Where(jt.JoinColumn, "=", ownerID).
			WhereIn(jt.InverseColumn, detach).
			Delete()
		if err != nil {
			return err
		}
	}
	if len(attach) > 0 {
		if _, err := tx.Builder().WithContext(ctx).Table(jt.Name).InsertBatch(attach); err != nil {
			return err
		}
	}
	return nil
}

// FindByRelation, ilişki üzerinden tek bir hedef id'ye bağlı entity'leri döndürür.
//
// Örnek:
//
//	tagged, err := posts.FindByRelation(ctx, "tags", 3, false) // 3 numaralı tag'e sahip post'lar
func (r *Repository[T]) FindByRelation(ctx context.Context, relation string, relatedID any, loadRelations bool) ([]T, error) {
	rel, err := r.relation(relation)
	if err != nil {
		return nil, err
	}
	pk := r.meta.PrimaryKey
	qb := r.builder(ctx).Table(r.meta.Table, "e").Select("e.*")

	switch {
	case rel.Kind == ManyToMany:
		jt := rel.JoinTable
		qb.Join(jt.Name+" j", "j."+jt.JoinColumn, "=", "e."+pk).
			Where("j."+jt.InverseColumn, "=", relatedID)
	case rel.ownsForeignKey():
		qb.Where("e."+rel.ForeignKey, "=", relatedID)
	default:
		qb.Join(rel.TargetTable+" t", "t."+rel.ForeignKey, "=", "e."+pk).
			Where("t."+rel.targetKey(), "=", relatedID)
	}

	rows, err := qb.OrderBy("e."+pk, "ASC").FetchAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", r.meta.Table, relation, err)
	}
	entities, err := r.hydrate(rows)
	if err != nil {
		return nil, err
	}
	if loadRelations {
		for _, entity := range entities {
			if err := r.LoadRelations(ctx, entity); err != nil {
				return nil, err
			}
		}
	}
	return entities, nil
}
