package algebraic

import "fmt"

// ValueKind discriminates the tagged AlgebraicValue union.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindFloat
	KindStringSet
	KindIntegerSet
	KindBoolean
)

// Value is a tagged variant over {Integer, Float, StringSet, IntegerSet,
// Boolean, Null}. The zero Value is Null.
type Value struct {
	Kind       ValueKind
	Integer    int64
	Float      float64
	StringSet  map[string]struct{}
	IntegerSet map[int64]struct{}
	Boolean    bool
}

func Null() Value                   { return Value{Kind: KindNull} }
func Int(v int64) Value             { return Value{Kind: KindInteger, Integer: v} }
func Flt(v float64) Value           { return Value{Kind: KindFloat, Float: v} }
func Bool(v bool) Value             { return Value{Kind: KindBoolean, Boolean: v} }

func StringSet(items ...string) Value {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return Value{Kind: KindStringSet, StringSet: s}
}

func IntegerSet(items ...int64) Value {
	s := make(map[int64]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return Value{Kind: KindIntegerSet, IntegerSet: s}
}

// IsNull reports whether v is the Null variant. NULL is an identity under
// every operation type.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// TypeName returns a short human-readable type tag, used in TypeMismatch
// errors.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindInteger:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindStringSet:
		return "StringSet"
	case KindIntegerSet:
		return "IntegerSet"
	case KindBoolean:
		return "Boolean"
	default:
		return "Null"
	}
}

// Equal reports deep equality between two values of the same kind.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInteger:
		return v.Integer == o.Integer
	case KindFloat:
		return v.Float == o.Float
	case KindBoolean:
		return v.Boolean == o.Boolean
	case KindStringSet:
		if len(v.StringSet) != len(o.StringSet) {
			return false
		}
		for k := range v.StringSet {
			if _, ok := o.StringSet[k]; !ok {
				return false
			}
		}
		return true
	case KindIntegerSet:
		if len(v.IntegerSet) != len(o.IntegerSet) {
			return false
		}
		for k := range v.IntegerSet {
			if _, ok := o.IntegerSet[k]; !ok {
				return false
			}
		}
		return true
	default:
		return true // both Null
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger:
		return fmt.Sprintf("Integer(%d)", v.Integer)
	case KindFloat:
		return fmt.Sprintf("Float(%g)", v.Float)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%v)", v.Boolean)
	case KindStringSet:
		return fmt.Sprintf("StringSet(%d items)", len(v.StringSet))
	case KindIntegerSet:
		return fmt.Sprintf("IntegerSet(%d items)", len(v.IntegerSet))
	default:
		return "Null"
	}
}
