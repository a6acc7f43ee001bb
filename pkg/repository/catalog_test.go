package repository

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagMetadata() *Metadata {
	return &Metadata{
		Table:      "tags",
		PrimaryKey: "id",
		Fields:     []Field{{Name: "name"}, {Name: "createdAt", Column: "created_at"}},
		Relations: []Relation{
			{Name: "posts", Kind: ManyToMany, TargetTable: "posts",
				JoinTable: &JoinTable{Name: "post_tags", JoinColumn: "tag_id", InverseColumn: "post_id"}},
			{Name: "owner", Kind: ManyToOne, TargetTable: "users", ForeignKey: "owner_id"},
		},
	}
}

func TestCatalog_ResolvesOnce(t *testing.T) {
	c := NewCatalog()
	calls := 0
	require.NoError(t, c.Register("tag", func() (*Metadata, error) {
		calls++
		return tagMetadata(), nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := c.Resolve("tag")
			assert.NoError(t, err)
			assert.Equal(t, "tags", meta.Table)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestCatalog_Errors(t *testing.T) {
	c := NewCatalog()

	_, err := c.Resolve("ghost")
	assert.ErrorContains(t, err, "not registered")

	require.NoError(t, c.Register("tag", func() (*Metadata, error) { return tagMetadata(), nil }))
	assert.Error(t, c.Register("tag", func() (*Metadata, error) { return nil, nil }))
	assert.Panics(t, func() { c.MustRegister("tag", nil) })

	boom := errors.New("boom")
	calls := 0
	c.MustRegister("broken", func() (*Metadata, error) {
		calls++
		return nil, boom
	})
	_, err = c.Resolve("broken")
	assert.ErrorIs(t, err, boom)
	_, err = c.Resolve("broken")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "provider errors are cached too")

	c.MustRegister("empty", func() (*Metadata, error) { return nil, nil })
	_, err = c.Resolve("empty")
	assert.ErrorContains(t, err, "returned no metadata")

	c.MustRegister("invalid", func() (*Metadata, error) { return &Metadata{Table: "x"}, nil })
	_, err = c.Resolve("invalid")
	assert.ErrorContains(t, err, "primary key is required")

	assert.Equal(t, []string{"broken", "empty", "invalid", "tag"}, c.Names())
}

func TestMetadata_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    *Metadata
		wantErr string
	}{
		{"valid", tagMetadata(), ""},
		{"no table", &Metadata{PrimaryKey: "id"}, "table is required"},
		{"duplicate relation", &Metadata{Table: "t", PrimaryKey: "id", Relations: []Relation{
			{Name: "a", Kind: ManyToOne, TargetTable: "x", ForeignKey: "x_id"},
			{Name: "a", Kind: ManyToOne, TargetTable: "x", ForeignKey: "x_id"},
		}}, `relation "a" is declared twice`},
		{"many-to-many without join table", &Metadata{Table: "t", PrimaryKey: "id", Relations: []Relation{
			{Name: "tags", Kind: ManyToMany, TargetTable: "tags"},
		}}, "requires a join table"},
		{"missing foreign key", &Metadata{Table: "t", PrimaryKey: "id", Relations: []Relation{
			{Name: "author", Kind: ManyToOne, TargetTable: "users"},
		}}, "foreign key is required for many-to-one"},
		{"unknown kind", &Metadata{Table: "t", PrimaryKey: "id", Relations: []Relation{
			{Name: "odd", TargetTable: "x"},
		}}, "unknown kind 0"},
		{"missing target", &Metadata{Table: "t", PrimaryKey: "id", Relations: []Relation{
			{Name: "owner", Kind: OneToOne, ForeignKey: "owner_id"},
		}}, "target table is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMetadata_Columns(t *testing.T) {
	meta := tagMetadata()

	col, ok := meta.Column("createdAt")
	assert.True(t, ok)
	assert.Equal(t, "created_at", col)

	col, ok = meta.Column("created_at")
	assert.True(t, ok)
	assert.Equal(t, "created_at", col)

	col, ok = meta.Column("owner_id")
	assert.True(t, ok, "owned foreign keys are addressable")
	assert.Equal(t, "owner_id", col)

	_, ok = meta.Column("post_id")
	assert.False(t, ok)

	assert.Equal(t, []string{"id", "name", "created_at"}, meta.Columns())
	assert.Len(t, meta.manyToMany(), 1)

	rel, ok := meta.Relation("owner")
	require.True(t, ok)
	assert.Equal(t, "id", rel.targetKey())
	assert.False(t, rel.Kind.Collection())
	assert.True(t, ManyToMany.Collection())
	assert.Equal(t, "many-to-one", rel.Kind.String())
}

func TestIsUnset(t *testing.T) {
	var nilPtr *int64
	one := int64(1)

	assert.True(t, isUnset(nil))
	assert.True(t, isUnset(0))
	assert.True(t, isUnset(""))
	assert.True(t, isUnset(nilPtr))
	assert.False(t, isUnset(&one))
	assert.False(t, isUnset(int64(7)))
	assert.False(t, isUnset("abc"))
}
