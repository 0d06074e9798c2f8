// Package algebraic implements the conflict-free merge engine: a closed
// enumeration of operation types, a tagged value union, and a pure,
// stateless merge function between the two. The full merge table is
// finite and exhaustive, so no open polymorphism is needed here.
package algebraic

// OpType is the closed enumeration of merge semantics a column (or a
// coordination-free key) can carry.
type OpType int

const (
	// Semilattice family: idempotent, commutative, associative.

	// SemilatticeMax: MAX(a,b) - larger value wins. Use for timestamps,
	// version numbers, high-water marks.
	SemilatticeMax OpType = iota
	// SemilatticeMin: MIN(a,b) - smaller value wins.
	SemilatticeMin
	// SemilatticeUnion: set union.
	SemilatticeUnion
	// SemilatticeIntersect: set intersection.
	SemilatticeIntersect

	// Abelian family: commutative, associative, has an identity, but not
	// idempotent.

	// AbelianAdd: a + b. Use for counters and deltas.
	AbelianAdd
	// AbelianMultiply: a * b.
	AbelianMultiply

	// Generic family: not conflict-free.

	// GenericOverwrite: last writer wins; requires coordination to order.
	GenericOverwrite
	// GenericConditional: requires a version match; condition itself is
	// unspecified (see DESIGN.md open-question decisions) so this always
	// resolves to Conflict.
	GenericConditional

	// Unknown is the default when no schema entry says otherwise.
	Unknown
)

func (t OpType) String() string {
	switch t {
	case SemilatticeMax:
		return "MAX"
	case SemilatticeMin:
		return "MIN"
	case SemilatticeUnion:
		return "UNION"
	case SemilatticeIntersect:
		return "INTERSECT"
	case AbelianAdd:
		return "ADD"
	case AbelianMultiply:
		return "MULTIPLY"
	case GenericOverwrite:
		return "OVERWRITE"
	case GenericConditional:
		return "CONDITIONAL"
	default:
		return "UNKNOWN"
	}
}

// IsSemilattice reports whether t is in the semilattice family (conflict
// free and additionally idempotent).
func (t OpType) IsSemilattice() bool {
	switch t {
	case SemilatticeMax, SemilatticeMin, SemilatticeUnion, SemilatticeIntersect:
		return true
	default:
		return false
	}
}

// IsAbelian reports whether t is in the Abelian-group family.
func (t OpType) IsAbelian() bool {
	return t == AbelianAdd || t == AbelianMultiply
}

// IsConflictFree reports whether t lies in the semilattice or Abelian
// families: concurrent applications of such an op can be merged without
// coordination.
func (t OpType) IsConflictFree() bool {
	return t.IsSemilattice() || t.IsAbelian()
}
