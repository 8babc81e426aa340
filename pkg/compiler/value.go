package compiler

import (
	"fmt"
	"strings"
)

// Kind is the base type of a value.
type Kind int

const (
	Undefined Kind = iota // not yet inferred
	Bool
	Char
	I8
	I16
	I32
	I64
	Str
	Unit
	Func
)

var kindNames = [...]string{
	Undefined: "undefined",
	Bool:      "bool",
	Char:      "char",
	I8:        "i8",
	I16:       "i16",
	I32:       "i32",
	I64:       "i64",
	Str:       "str",
	Unit:      "()",
	Func:      "fn",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindFromName maps a TYPE lexeme to its Kind.
func kindFromName(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name && Kind(k) != Undefined && Kind(k) != Func {
			return Kind(k), true
		}
	}
	return Undefined, false
}

// IsInteger reports whether k is one of the signed integer kinds.
func (k Kind) IsInteger() bool {
	return k == I8 || k == I16 || k == I32 || k == I64
}

// Type is the static type of an expression: a base kind and, for arrays,
// the element count.
type Type struct {
	Kind Kind
	Size int // 0 for scalars
}

// Scalar returns the type of a single element.
func (t Type) Scalar() Type { return Type{Kind: t.Kind} }

// IsArray reports whether t describes a fixed-size array.
func (t Type) IsArray() bool { return t.Size > 0 }

func (t Type) String() string {
	if t.Size > 0 {
		return fmt.Sprintf("[%s; %d]", t.Kind, t.Size)
	}
	return t.Kind.String()
}

var (
	typeUndefined = Type{Kind: Undefined}
	typeBool      = Type{Kind: Bool}
	typeChar      = Type{Kind: Char}
	typeI32       = Type{Kind: I32}
	typeStr       = Type{Kind: Str}
	typeUnit      = Type{Kind: Unit}
)

// Value is the semantic descriptor shared by literals, declarations and
// symbol table entries.
//
// For a function entry Kind is Func, Params lists the parameter descriptors
// in order and Return holds the (possibly inferred) result type. Literals
// carry their payload in Int or Text. Offset is the frame slot assigned
// during code generation.
type Value struct {
	Type
	Mut         bool
	Ref         bool
	Initialized bool

	Params []Value
	Return Type

	Int  int64
	Text string

	Offset int
}

// IsFunction reports whether v describes a function.
func (v *Value) IsFunction() bool { return v.Kind == Func }

// Indirect reports whether the value's storage holds an address rather than
// the value itself. String references are plain pointers and do not count.
func (v *Value) Indirect() bool { return v.Ref && v.Kind != Str && v.Size == 0 }

// annotation renders the declared type the way it is written in source.
func (v *Value) annotation() string {
	ref := ""
	if v.Ref {
		ref = "&"
	}
	if v.Size > 0 {
		return fmt.Sprintf("[%s%s; %d]", ref, v.Kind, v.Size)
	}
	return ref + v.Kind.String()
}

func (v *Value) String() string {
	if v.IsFunction() {
		params := make([]string, len(v.Params))
		for i := range v.Params {
			params[i] = v.Params[i].annotation()
		}
		return fmt.Sprintf("fn(%s) -> %s", strings.Join(params, ", "), v.Return)
	}
	var flags []string
	if v.Mut {
		flags = append(flags, "mut")
	}
	if !v.Initialized {
		flags = append(flags, "uninit")
	}
	if len(flags) == 0 {
		return v.annotation()
	}
	return fmt.Sprintf("%s (%s)", v.annotation(), strings.Join(flags, ", "))
}

// sameType is the exact type equality used by every type rule: base kind and
// array size must both agree.
func sameType(a, b Type) bool {
	return a.Kind == b.Kind && a.Size == b.Size
}
