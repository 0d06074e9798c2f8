package coordfree

import (
	"fmt"

	"rhizo/internal/algebraic"
	"rhizo/internal/vclock"
)

type keyedOp struct {
	op    algebraic.OpType
	value algebraic.Value
	seen  bool
}

// Merge combines two updates: operations are grouped by key, each group
// reduced through the algebraic engine (operations sharing a key must
// share an op_type, else MergeFailedOpMismatch), and the result clock is
// the element-wise max of both inputs. The synthetic origin
// "merged:{o1}+{o2}" is a debugging label only — never key logic on it.
func Merge(u1, u2 VersionedUpdate) (VersionedUpdate, error) {
	return MergeAll([]VersionedUpdate{u1, u2})
}

// MergeAll reduces an arbitrary number of updates in a single pass,
// equivalent to a left-fold of Merge but computed without the
// intermediate allocations a literal fold would require.
func MergeAll(updates []VersionedUpdate) (VersionedUpdate, error) {
	if len(updates) == 0 {
		return VersionedUpdate{}, fmt.Errorf("coordfree: cannot merge zero updates")
	}

	groups := map[string]*keyedOp{}
	order := make([]string, 0)
	clock := vclock.New()
	origins := make([]string, 0, len(updates))
	var merger algebraic.Merger

	for _, u := range updates {
		clock = clock.Merge(u.Clock)
		origins = append(origins, u.Origin)
		for _, op := range u.Operations {
			g, ok := groups[op.Key]
			if !ok {
				g = &keyedOp{op: op.Op, value: algebraic.Null()}
				groups[op.Key] = g
				order = append(order, op.Key)
			} else if g.seen && g.op != op.Op {
				return VersionedUpdate{}, &MergeError{
					Kind: MergeFailedOpMismatch, Key: op.Key,
					Detail: fmt.Sprintf("operations on key %q disagree on op_type (%s vs %s)", op.Key, g.op, op.Op),
				}
			}
			result := merger.Merge(g.op, g.value, op.Value)
			if result.IsTypeMismatch() {
				return VersionedUpdate{}, &MergeError{Kind: MergeFailedTypeMismatch, Key: op.Key, Detail: "type mismatch while merging"}
			}
			if result.IsConflict() {
				return VersionedUpdate{}, &MergeError{Kind: MergeFailedConflict, Key: op.Key, Detail: result.Reason}
			}
			g.value = result.Unwrap()
			g.seen = true
		}
	}

	ops := make([]Operation, 0, len(order))
	for _, key := range order {
		g := groups[key]
		ops = append(ops, Operation{Key: key, Op: g.op, Value: g.value})
	}

	origin := origins[0]
	if len(origins) > 1 {
		joined := origins[0]
		for _, o := range origins[1:] {
			joined += "+" + o
		}
		origin = "merged:" + joined
	}

	return VersionedUpdate{Operations: ops, Clock: clock, Origin: origin}, nil
}
