package algebraic

import "fmt"

// ResultKind discriminates MergeResult's three variants.
type ResultKind int

const (
	ResultMerged ResultKind = iota
	ResultConflict
	ResultTypeMismatch
)

// MergeResult is the outcome of Merge: exactly one of Merged, Conflict, or
// TypeMismatch applies, discriminated by Kind.
type MergeResult struct {
	Kind ResultKind

	Value Value // valid when Kind == ResultMerged

	// valid when Kind == ResultConflict
	ConflictValue1 Value
	ConflictValue2 Value
	Reason         string

	// valid when Kind == ResultTypeMismatch
	Type1 string
	Type2 string
	Op    OpType
}

func merged(v Value) MergeResult {
	return MergeResult{Kind: ResultMerged, Value: v}
}

func conflict(v1, v2 Value, reason string) MergeResult {
	return MergeResult{Kind: ResultConflict, ConflictValue1: v1, ConflictValue2: v2, Reason: reason}
}

func typeMismatch(t1, t2 string, op OpType) MergeResult {
	return MergeResult{Kind: ResultTypeMismatch, Type1: t1, Type2: t2, Op: op}
}

func (r MergeResult) IsMerged() bool       { return r.Kind == ResultMerged }
func (r MergeResult) IsConflict() bool     { return r.Kind == ResultConflict }
func (r MergeResult) IsTypeMismatch() bool { return r.Kind == ResultTypeMismatch }

// Unwrap returns the merged value, panicking if the result is not Merged.
// Mirrors the original engine's unwrap(), reserved for callers (such as
// tests) that have already checked IsMerged.
func (r MergeResult) Unwrap() Value {
	if r.Kind != ResultMerged {
		panic(fmt.Sprintf("algebraic: Unwrap called on non-merged result: %+v", r))
	}
	return r.Value
}

// Ok returns the merged value and true, or the zero Value and false.
func (r MergeResult) Ok() (Value, bool) {
	if r.Kind == ResultMerged {
		return r.Value, true
	}
	return Value{}, false
}

// Merger is the stateless engine described by the specification: Merge is
// pure and carries no state across calls.
type Merger struct{}

// Merge merges two algebraic values under the given operation type.
func (Merger) Merge(op OpType, a, b Value) MergeResult {
	if a.IsNull() {
		return merged(b)
	}
	if b.IsNull() {
		return merged(a)
	}
	if !op.IsConflictFree() {
		return conflict(a, b, fmt.Sprintf("operation type %s is not conflict-free", op))
	}
	switch op {
	case SemilatticeMax:
		return mergeMax(a, b)
	case SemilatticeMin:
		return mergeMin(a, b)
	case SemilatticeUnion:
		return mergeUnion(a, b)
	case SemilatticeIntersect:
		return mergeIntersect(a, b)
	case AbelianAdd:
		return mergeAdd(a, b)
	case AbelianMultiply:
		return mergeMultiply(a, b)
	default:
		return conflict(a, b, "unexpected operation type")
	}
}

func promote(v Value) float64 {
	if v.Kind == KindInteger {
		return float64(v.Integer)
	}
	return v.Float
}

func isNumeric(v Value) bool { return v.Kind == KindInteger || v.Kind == KindFloat }

func mergeMax(a, b Value) MergeResult {
	switch {
	case a.Kind == KindInteger && b.Kind == KindInteger:
		if a.Integer >= b.Integer {
			return merged(a)
		}
		return merged(b)
	case a.Kind == KindFloat && b.Kind == KindFloat:
		if a.Float >= b.Float {
			return merged(a)
		}
		return merged(b)
	case isNumeric(a) && isNumeric(b):
		fa, fb := promote(a), promote(b)
		if fa >= fb {
			return merged(Flt(fa))
		}
		return merged(Flt(fb))
	case a.Kind == KindBoolean && b.Kind == KindBoolean:
		return merged(Bool(a.Boolean || b.Boolean))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), SemilatticeMax)
	}
}

func mergeMin(a, b Value) MergeResult {
	switch {
	case a.Kind == KindInteger && b.Kind == KindInteger:
		if a.Integer <= b.Integer {
			return merged(a)
		}
		return merged(b)
	case a.Kind == KindFloat && b.Kind == KindFloat:
		if a.Float <= b.Float {
			return merged(a)
		}
		return merged(b)
	case isNumeric(a) && isNumeric(b):
		fa, fb := promote(a), promote(b)
		if fa <= fb {
			return merged(Flt(fa))
		}
		return merged(Flt(fb))
	case a.Kind == KindBoolean && b.Kind == KindBoolean:
		return merged(Bool(a.Boolean && b.Boolean))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), SemilatticeMin)
	}
}

func mergeUnion(a, b Value) MergeResult {
	switch {
	case a.Kind == KindStringSet && b.Kind == KindStringSet:
		out := make(map[string]struct{}, len(a.StringSet)+len(b.StringSet))
		for k := range a.StringSet {
			out[k] = struct{}{}
		}
		for k := range b.StringSet {
			out[k] = struct{}{}
		}
		return merged(Value{Kind: KindStringSet, StringSet: out})
	case a.Kind == KindIntegerSet && b.Kind == KindIntegerSet:
		out := make(map[int64]struct{}, len(a.IntegerSet)+len(b.IntegerSet))
		for k := range a.IntegerSet {
			out[k] = struct{}{}
		}
		for k := range b.IntegerSet {
			out[k] = struct{}{}
		}
		return merged(Value{Kind: KindIntegerSet, IntegerSet: out})
	case a.Kind == KindBoolean && b.Kind == KindBoolean:
		return merged(Bool(a.Boolean || b.Boolean))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), SemilatticeUnion)
	}
}

func mergeIntersect(a, b Value) MergeResult {
	switch {
	case a.Kind == KindStringSet && b.Kind == KindStringSet:
		out := make(map[string]struct{})
		for k := range a.StringSet {
			if _, ok := b.StringSet[k]; ok {
				out[k] = struct{}{}
			}
		}
		return merged(Value{Kind: KindStringSet, StringSet: out})
	case a.Kind == KindIntegerSet && b.Kind == KindIntegerSet:
		out := make(map[int64]struct{})
		for k := range a.IntegerSet {
			if _, ok := b.IntegerSet[k]; ok {
				out[k] = struct{}{}
			}
		}
		return merged(Value{Kind: KindIntegerSet, IntegerSet: out})
	case a.Kind == KindBoolean && b.Kind == KindBoolean:
		return merged(Bool(a.Boolean && b.Boolean))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), SemilatticeIntersect)
	}
}

func mergeAdd(a, b Value) MergeResult {
	switch {
	case a.Kind == KindInteger && b.Kind == KindInteger:
		sum := a.Integer + b.Integer
		// overflow check: signs of operands match but sign of sum differs
		if (a.Integer > 0 && b.Integer > 0 && sum < 0) || (a.Integer < 0 && b.Integer < 0 && sum >= 0) {
			return conflict(a, b, fmt.Sprintf("integer overflow: %d + %d", a.Integer, b.Integer))
		}
		return merged(Int(sum))
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return merged(Flt(a.Float + b.Float))
	case isNumeric(a) && isNumeric(b):
		return merged(Flt(promote(a) + promote(b)))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), AbelianAdd)
	}
}

func mergeMultiply(a, b Value) MergeResult {
	switch {
	case a.Kind == KindInteger && b.Kind == KindInteger:
		product := a.Integer * b.Integer
		if a.Integer != 0 && product/a.Integer != b.Integer {
			return conflict(a, b, fmt.Sprintf("integer overflow: %d * %d", a.Integer, b.Integer))
		}
		return merged(Int(product))
	case a.Kind == KindFloat && b.Kind == KindFloat:
		return merged(Flt(a.Float * b.Float))
	case isNumeric(a) && isNumeric(b):
		return merged(Flt(promote(a) * promote(b)))
	default:
		return typeMismatch(a.TypeName(), b.TypeName(), AbelianMultiply)
	}
}
