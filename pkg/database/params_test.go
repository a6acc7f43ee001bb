package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams_MonotonicNames(t *testing.T) {
	p := NewParams()
	assert.Equal(t, ":p1", p.Add("a"))
	assert.Equal(t, ":p2", p.Add("b"))

	p.clear()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, ":p3", p.Add("c"), "counter must never rewind")
	assert.Equal(t, 3, p.Counter())
	assert.Equal(t, []string{":p3"}, p.Names())
}

func TestParams_CloneIsDeep(t *testing.T) {
	p := NewParams()
	p.Add(1)
	c := p.clone()
	c.Add(2)
	p.Add(3)

	assert.Equal(t, map[string]any{":p1": 1, ":p2": 3}, p.Values())
	assert.Equal(t, map[string]any{":p1": 1, ":p2": 2}, c.Values())
}

func TestParams_Absorb(t *testing.T) {
	p := NewParams()
	p.Add("outer")

	got := p.absorb("a = :p1 AND b = :p2 OR c = :p1", map[string]any{":p1": 10, ":p2": 20})
	assert.Equal(t, "a = :p2 AND b = :p3 OR c = :p2", got)
	assert.Equal(t, map[string]any{":p1": "outer", ":p2": 10, ":p3": 20}, p.Values())
}

func TestWalkPlaceholders_SkipsLiteralsAndCasts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "a = :p1", "a = X"},
		{"two digits", "a IN (:p10, :p2)", "a IN (X, X)"},
		{"inside literal", "a = ':p1'", "a = ':p1'"},
		{"postgres cast", "a::pg = :p1", "a::pg = X"},
		{"identifier suffix", ":p1abc", ":p1abc"},
		{"not a placeholder", "a = :pa", "a = :pa"},
		{"glued to identifier", "x:p1", "x:p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, walkPlaceholders(tt.in, func(string) string { return "X" }))
		})
	}
}

func TestCompile_Dialects(t *testing.T) {
	params := map[string]any{":p1": "a", ":p2": "b"}

	sql, args, err := Compile("x = :p2 AND y = :p1 AND z = :p2", params, NewMySQLGrammar())
	require.NoError(t, err)
	assert.Equal(t, "x = ? AND y = ? AND z = ?", sql)
	assert.Equal(t, []any{"b", "a", "b"}, args)

	sql, args, err = Compile("x = :p2 AND y = :p1", params, NewPostgresGrammar())
	require.NoError(t, err)
	assert.Equal(t, "x = $1 AND y = $2", sql)
	assert.Equal(t, []any{"b", "a"}, args)
}

func TestCompile_UnboundPlaceholder(t *testing.T) {
	_, _, err := Compile("x = :p9", map[string]any{}, NewSQLiteGrammar())
	assert.ErrorContains(t, err, ":p9")
}

func TestBindQuestionMarks(t *testing.T) {
	p := NewParams()
	out, err := p.bindQuestionMarks("a = ? AND b = '?' AND c = ?", []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "a = :p1 AND b = '?' AND c = :p2", out)

	_, err = p.bindQuestionMarks("a = ?", nil)
	assert.Error(t, err)
}

func TestInterpolate(t *testing.T) {
	got := Interpolate("a = :p1 AND b = :p2 AND c = :p3 AND d = :p4", map[string]any{
		":p1": int64(5),
		":p2": `it's`,
		":p3": []byte("raw"),
	})
	assert.Equal(t, "a = 5 AND b = 'it''s' AND c = 'raw' AND d = :p4", got)
}
