// -----------------------------------------------------------------------------
// Entity Metadata
// -----------------------------------------------------------------------------
// Her entity tipi için statik olarak tanımlanan descriptor'lar: tablo adı,
// primary key, skaler alanlar ve ilişkiler. Reflection ile okunmaz;
// uygulama başlangıcında bir kez kurulur ve Catalog'da saklanır.
//
// İlişki türleri ve foreign key'in yeri:
//
//   ManyToOne            → FK bu tabloda       (posts.user_id → users.id)
//   OneToOne (Owning)    → FK bu tabloda       (users.profile_id → profiles.id)
//   OneToOne (inverse)   → FK hedef tabloda    (profiles.user_id → users.id)
//   OneToMany            → FK hedef tabloda    (comments.post_id → posts.id)
//   ManyToMany           → join tablosu        (post_tags.post_id, post_tags.tag_id)
// -----------------------------------------------------------------------------

package repository

import (
	"errors"
	"fmt"
)

// RelationKind, ilişki türü.
type RelationKind int

const (
	OneToOne RelationKind = iota + 1
	OneToMany
	ManyToOne
	ManyToMany
)

func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "one-to-one"
	case OneToMany:
		return "one-to-many"
	case ManyToOne:
		return "many-to-one"
	case ManyToMany:
		return "many-to-many"
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

// Collection, ilişkinin bir dizi (boş olabilir) olarak mı yoksa tek bir
// nullable referans olarak mı yükleneceğini döndürür.
func (k RelationKind) Collection() bool {
	return k == OneToMany || k == ManyToMany
}

// Field, skaler bir entity alanı.
type Field struct {
	Name     string // Mantıksal alan adı (örn: "createdAt")
	Column   string // Fiziksel kolon adı (örn: "created_at"); boşsa Name
	Nullable bool
}

// column, alanın fiziksel kolon adını döndürür.
func (f Field) column() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// JoinTable, many-to-many ilişkinin ara tablosu.
type JoinTable struct {
	Name          string // örn: "post_tags"
	JoinColumn    string // Bu entity'nin PK'sına işaret eden kolon (örn: "post_id")
	InverseColumn string // Hedef entity'nin key'ine işaret eden kolon (örn: "tag_id")
}

// Relation, tek bir ilişki tanımı.
type Relation struct {
	Name        string
	Kind        RelationKind
	TargetTable string
	TargetKey   string // Hedef tablonun key kolonu; boşsa "id"
	ForeignKey  string // ManyToOne/OneToOne/OneToMany için FK kolonu
	Owning      bool   // OneToOne: FK bu tabloda mı?
	JoinTable   *JoinTable
}

// targetKey, hedef key kolonunu döndürür.
func (r Relation) targetKey() string {
	if r.TargetKey != "" {
		return r.TargetKey
	}
	return "id"
}

// ownsForeignKey, FK'nin bu entity'nin tablosunda olup olmadığını döndürür.
func (r Relation) ownsForeignKey() bool {
	return r.Kind == ManyToOne || (r.Kind == OneToOne && r.Owning)
}

// Metadata, bir entity tipinin descriptor'ı.
//
// Örnek:
//
//	meta := &repository.Metadata{
//	    Table:      "posts",
//	    PrimaryKey: "id",
//	    Fields: []repository.Field{
//	        {Name: "title"},
//	        {Name: "userId", Column: "user_id"},
//	    },
//	    Relations: []repository.Relation{
//	        {Name: "author", Kind: repository.ManyToOne, TargetTable: "users", ForeignKey: "user_id"},
//	        {Name: "tags", Kind: repository.ManyToMany, TargetTable: "tags",
//	            JoinTable: &repository.JoinTable{Name: "post_tags", JoinColumn: "post_id", InverseColumn: "tag_id"}},
//	    },
//	}
type Metadata struct {
	Table      string
	PrimaryKey string
	Fields     []Field
	Relations  []Relation
}

// Validate, descriptor'ın tutarlı olup olmadığını kontrol eder.
func (m *Metadata) Validate() error {
	var errs []error
	if m.Table == "" {
		errs = append(errs, errors.New("table is required"))
	}
	if m.PrimaryKey == "" {
		errs = append(errs, errors.New("primary key is required"))
	}

	seen := make(map[string]bool, len(m.Relations))
	for _, rel := range m.Relations {
		if rel.Name == "" {
			errs = append(errs, errors.New("relation name is required"))
			continue
		}
		if seen[rel.Name] {
			errs = append(errs, fmt.Errorf("relation %q is declared twice", rel.Name))
		}
		seen[rel.Name] = true

		if rel.TargetTable == "" {
			errs = append(errs, fmt.Errorf("relation %q: target table is required", rel.Name))
		}
		switch rel.Kind {
		case ManyToMany:
			jt := rel.JoinTable
			if jt == nil || jt.Name == "" || jt.JoinColumn == "" || jt.InverseColumn == "" {
				errs = append(errs, fmt.Errorf("relation %q: many-to-many requires a join table with both columns", rel.Name))
			}
		case OneToOne, OneToMany, ManyToOne:
			if rel.ForeignKey == "" {
				errs = append(errs, fmt.Errorf("relation %q: foreign key is required for %s", rel.Name, rel.Kind))
			}
		default:
			errs = append(errs, fmt.Errorf("relation %q: unknown kind %d", rel.Name, int(rel.Kind)))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("metadata for %q: %w", m.Table, errors.Join(errs...))
	}
	return nil
}

// Relation, isimle ilişkiyi bulur.
func (m *Metadata) Relation(name string) (Relation, bool) {
	for _, rel := range m.Relations {
		if rel.Name == name {
			return rel, true
		}
	}
	return Relation{}, false
}

// Column, alan adını veya kolon adını fiziksel kolona çevirir.
// Bilinmeyen isimler için false döner.
func (m *Metadata) Column(name string) (string, bool) {
	if name == m.PrimaryKey {
		return name, true
	}
	for _, f := range m.Fields {
		if f.Name == name || f.column() == name {
			return f.column(), true
		}
	}
	for _, rel := range m.Relations {
		if rel.ownsForeignKey() && rel.ForeignKey == name {
			return name, true
		}
	}
	return "", false
}

// Columns, primary key dahil tüm fiziksel kolonları döndürür.
func (m *Metadata) Columns() []string {
	cols := make([]string, 0, len(m.Fields)+1)
	cols = append(cols, m.PrimaryKey)
	for _, f := range m.Fields {
		cols = append(cols, f.column())
	}
	return cols
}

// manyToMany, tüm many-to-many ilişkileri döndürür.
func (m *Metadata) manyToMany() []Relation {
	var out []Relation
	for _, rel := range m.Relations {
		if rel.Kind == ManyToMany {
			out = append(out, rel)
		}
	}
	return out
}
