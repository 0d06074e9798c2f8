package algebraic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rhizo/internal/algebraic"
)

func TestMergeCommutative(t *testing.T) {
	ops := []algebraic.OpType{
		algebraic.SemilatticeMax,
		algebraic.SemilatticeMin,
		algebraic.SemilatticeUnion,
		algebraic.SemilatticeIntersect,
		algebraic.AbelianAdd,
		algebraic.AbelianMultiply,
	}
	pairs := [][2]algebraic.Value{
		{algebraic.Int(3), algebraic.Int(7)},
		{algebraic.Flt(1.5), algebraic.Flt(2.5)},
		{algebraic.StringSet("a", "b"), algebraic.StringSet("b", "c")},
		{algebraic.IntegerSet(1, 2), algebraic.IntegerSet(2, 3)},
	}

	m := algebraic.Merger{}
	for _, op := range ops {
		for _, p := range pairs {
			ab := m.Merge(op, p[0], p[1])
			ba := m.Merge(op, p[1], p[0])
			if ab.IsMerged() && ba.IsMerged() {
				assert.True(t, ab.Unwrap().Equal(ba.Unwrap()), "op %s not commutative for %v/%v", op, p[0], p[1])
			}
		}
	}
}

func TestMergeAssociative(t *testing.T) {
	m := algebraic.Merger{}
	a, b, c := algebraic.Int(2), algebraic.Int(5), algebraic.Int(9)

	left := m.Merge(algebraic.AbelianAdd, m.Merge(algebraic.AbelianAdd, a, b).Unwrap(), c)
	right := m.Merge(algebraic.AbelianAdd, a, m.Merge(algebraic.AbelianAdd, b, c).Unwrap())
	assert.True(t, left.Unwrap().Equal(right.Unwrap()))
}

func TestMergeIdempotentSemilattice(t *testing.T) {
	m := algebraic.Merger{}
	v := algebraic.Int(42)
	res := m.Merge(algebraic.SemilatticeMax, v, v)
	assert.True(t, res.IsMerged())
	assert.True(t, res.Unwrap().Equal(v))
}

func TestMergeNullIsIdentity(t *testing.T) {
	m := algebraic.Merger{}
	v := algebraic.Int(10)
	null := algebraic.Null()

	for _, op := range []algebraic.OpType{algebraic.AbelianAdd, algebraic.SemilatticeMax, algebraic.SemilatticeUnion} {
		res := m.Merge(op, v, null)
		assert.True(t, res.IsMerged())
		assert.True(t, res.Unwrap().Equal(v))

		res2 := m.Merge(op, null, v)
		assert.True(t, res2.IsMerged())
		assert.True(t, res2.Unwrap().Equal(v))
	}
}

func TestMergeIntegerOverflowIsConflict(t *testing.T) {
	m := algebraic.Merger{}
	res := m.Merge(algebraic.AbelianAdd, algebraic.Int(9223372036854775807), algebraic.Int(1))
	assert.True(t, res.IsConflict())
}

func TestMergeTypeMismatch(t *testing.T) {
	m := algebraic.Merger{}
	res := m.Merge(algebraic.AbelianAdd, algebraic.Int(1), algebraic.StringSet("x"))
	assert.True(t, res.IsTypeMismatch())
}

func TestMergeGenericOpsAreNotConflictFree(t *testing.T) {
	m := algebraic.Merger{}
	res := m.Merge(algebraic.GenericOverwrite, algebraic.Int(1), algebraic.Int(2))
	assert.True(t, res.IsConflict())

	res2 := m.Merge(algebraic.GenericConditional, algebraic.Int(1), algebraic.Int(2))
	assert.True(t, res2.IsConflict())
}

func TestUnionIntersectSets(t *testing.T) {
	m := algebraic.Merger{}
	a := algebraic.StringSet("x", "y")
	b := algebraic.StringSet("y", "z")

	union := m.Merge(algebraic.SemilatticeUnion, a, b).Unwrap()
	assert.Equal(t, 3, len(union.StringSet))

	intersect := m.Merge(algebraic.SemilatticeIntersect, a, b).Unwrap()
	assert.Equal(t, 1, len(intersect.StringSet))
	_, ok := intersect.StringSet["y"]
	assert.True(t, ok)
}
