package algebraic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhizo/internal/algebraic"
)

func TestTableSchemaOpFor(t *testing.T) {
	s := algebraic.NewTableSchema("counters")
	s.SetDefault(algebraic.GenericOverwrite)
	s.AddColumn("total", algebraic.AbelianAdd)

	assert.Equal(t, algebraic.AbelianAdd, s.OpFor("total"))
	assert.Equal(t, algebraic.GenericOverwrite, s.OpFor("unknown_column"))
}

func TestTableSchemaConflictFreeColumns(t *testing.T) {
	s := algebraic.NewTableSchema("metrics")
	s.AddColumn("views", algebraic.AbelianAdd)
	s.AddColumn("tags", algebraic.SemilatticeUnion)
	s.AddColumn("label", algebraic.GenericOverwrite)

	assert.ElementsMatch(t, []string{"views", "tags"}, s.ConflictFreeColumns())
	assert.ElementsMatch(t, []string{"label"}, s.ConflictingColumns())
	assert.False(t, s.IsFullyConflictFree())
	assert.True(t, s.CanAutoMerge([]string{"views", "tags"}))
	assert.False(t, s.CanAutoMerge([]string{"views", "label"}))
}

func TestDefaultIdentity(t *testing.T) {
	v, ok := algebraic.DefaultIdentity(algebraic.AbelianAdd)
	require.True(t, ok)
	assert.True(t, v.Equal(algebraic.Int(0)))

	v, ok = algebraic.DefaultIdentity(algebraic.AbelianMultiply)
	require.True(t, ok)
	assert.True(t, v.Equal(algebraic.Int(1)))

	_, ok = algebraic.DefaultIdentity(algebraic.GenericOverwrite)
	assert.False(t, ok)
}

func TestSchemaRegistry(t *testing.T) {
	reg := algebraic.NewSchemaRegistry()
	s := algebraic.NewTableSchema("users")
	reg.Register(s)

	got, ok := reg.Get("users")
	require.True(t, ok)
	assert.Equal(t, "users", got.Name)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}
