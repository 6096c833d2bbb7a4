// Package types represents the type system of the intermediate
// representation: primitive, compound and generic types, their
// interning, and their runtime layout.
//
// This mirrors the role of ctypes.Type in a C front-end, but extends it
// with tagged unions, function signatures and type variables, since the
// IR this package supports is generic.
package types

// Type is the interface implemented by every member of the closed set
// of type kinds. Types are plain values compared structurally with
// Equal; interning maps each structural shape to a Handle, after which
// equal types compare by Handle identity (see Interner.Intern).
type Type interface {
	implType()
	String() string
}

// Integer is the bit width of an integer type.
type Integer int

const (
	I8 Integer = iota
	I16
	I32
	I64
	ISize
)

func (w Integer) String() string {
	names := []string{"i8", "i16", "i32", "i64", "isize"}
	if int(w) < len(names) {
		return names[w]
	}
	return "?"
}

// Int is a signed or unsigned integer type of a given width.
type Int struct {
	Width  Integer
	Signed bool
}

// FloatWidth is the bit width of a floating-point type.
type FloatWidth int

const (
	F32 FloatWidth = iota
	F64
)

func (w FloatWidth) String() string {
	if w == F32 {
		return "f32"
	}
	return "f64"
}

// Bool is the boolean type.
type Bool struct{}

// Float is a floating-point type.
type Float struct {
	Width FloatWidth
}

// Ptr is a raw pointer to a value of type Elem.
type Ptr struct {
	Elem Type
}

// Box is an owned, heap-allocated value of type Elem.
type Box struct {
	Elem Type
}

// Tuple is a fixed-arity product type, fields placed in source order.
type Tuple struct {
	Fields []Type
}

// Variant is one case of a tagged union.
type Variant struct {
	Name   string
	Fields []Type
}

// Union is a discriminated tagged union (a sum type).
type Union struct {
	Name     string
	Variants []Variant
}

// FuncParam is one parameter of a function signature.
type FuncParam struct {
	Ty    Type
	Flags ParamFlags
}

// ParamFlags marks a parameter or return's passing convention.
type ParamFlags uint8

const (
	// PassDirect passes the value directly (by register/stack slot).
	PassDirect ParamFlags = 0
	// PassIn means the builder rewrites this parameter to be passed
	// indirectly: the caller stack-allocates a slot, stores the
	// argument, and passes the slot's address.
	PassIn ParamFlags = 1 << iota
	// PassOut means the builder rewrites this return to be passed
	// indirectly: the caller stack-allocates a slot, passes its
	// address as a leading argument, and loads the result back.
	PassOut
)

func (f ParamFlags) Is(flag ParamFlags) bool { return f&flag != 0 }

// Signature is a function type: calling parameters and returns, each
// with its own passing-convention flags.
type Signature struct {
	Params []FuncParam
	Rets   []FuncParam
}

// Func is a function-signature type.
type Func struct {
	Sig Signature
}

// GenericParam describes one generic parameter of a quantified type.
type GenericParam struct {
	Name string
}

// Generic is a universally-quantified type: `forall params. Body`.
// Var(0, i) inside Body refers to the i-th entry of Params.
type Generic struct {
	Params []GenericParam
	Body   Type
}

// Var is a reference to a generic parameter: De Bruijn depth and index.
// A value of this type carries no statically known size/alignment;
// any operation on it requires runtime type metadata.
type Var struct {
	Depth int
	Index int
}

func (Int) implType()       {}
func (Bool) implType()      {}
func (Float) implType()     {}
func (Ptr) implType()       {}
func (Box) implType()       {}
func (Tuple) implType()     {}
func (Union) implType()     {}
func (Func) implType()      {}
func (Generic) implType()   {}
func (Var) implType()       {}

func (t Int) String() string {
	sign := "i"
	if !t.Signed {
		sign = "u"
	}
	return sign + t.Width.String()[1:]
}

func (Bool) String() string { return "bool" }

func (t Float) String() string { return t.Width.String() }

func (t Ptr) String() string { return "*" + t.Elem.String() }

func (t Box) String() string { return "box " + t.Elem.String() }

func (t Tuple) String() string {
	s := "("
	for i, f := range t.Fields {
		if i > 0 {
			s += ", "
		}
		s += f.String()
	}
	return s + ")"
}

func (t Union) String() string {
	if t.Name == "" {
		return "union <anonymous>"
	}
	return "union " + t.Name
}

func (t Func) String() string { return "fn(...)" }

func (t Generic) String() string { return "forall ... . " + t.Body.String() }

func (t Var) String() string { return "Var(_)" }

// IsVar reports whether ty is a bare type variable (used by the IR
// builder to decide whether indirect passing applies).
func IsVar(ty Type) bool {
	_, ok := ty.(Var)
	return ok
}

// Equal reports structural equality of two types. Used before interning
// collapses types to identity-comparable handles.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}

	switch ta := a.(type) {
	case Int:
		tb, ok := b.(Int)
		return ok && ta.Width == tb.Width && ta.Signed == tb.Signed
	case Bool:
		_, ok := b.(Bool)
		return ok
	case Float:
		tb, ok := b.(Float)
		return ok && ta.Width == tb.Width
	case Ptr:
		tb, ok := b.(Ptr)
		return ok && Equal(ta.Elem, tb.Elem)
	case Box:
		tb, ok := b.(Box)
		return ok && Equal(ta.Elem, tb.Elem)
	case Tuple:
		tb, ok := b.(Tuple)
		if !ok || len(ta.Fields) != len(tb.Fields) {
			return false
		}
		for i := range ta.Fields {
			if !Equal(ta.Fields[i], tb.Fields[i]) {
				return false
			}
		}
		return true
	case Union:
		tb, ok := b.(Union)
		if !ok || ta.Name != tb.Name || len(ta.Variants) != len(tb.Variants) {
			return false
		}
		for i := range ta.Variants {
			if ta.Variants[i].Name != tb.Variants[i].Name || len(ta.Variants[i].Fields) != len(tb.Variants[i].Fields) {
				return false
			}
			for j := range ta.Variants[i].Fields {
				if !Equal(ta.Variants[i].Fields[j], tb.Variants[i].Fields[j]) {
					return false
				}
			}
		}
		return true
	case Func:
		tb, ok := b.(Func)
		return ok && equalSig(ta.Sig, tb.Sig)
	case Generic:
		tb, ok := b.(Generic)
		return ok && len(ta.Params) == len(tb.Params) && Equal(ta.Body, tb.Body)
	case Var:
		tb, ok := b.(Var)
		return ok && ta.Depth == tb.Depth && ta.Index == tb.Index
	}
	return false
}

func equalSig(a, b Signature) bool {
	if len(a.Params) != len(b.Params) || len(a.Rets) != len(b.Rets) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].Flags != b.Params[i].Flags || !Equal(a.Params[i].Ty, b.Params[i].Ty) {
			return false
		}
	}
	for i := range a.Rets {
		if a.Rets[i].Flags != b.Rets[i].Flags || !Equal(a.Rets[i].Ty, b.Rets[i].Ty) {
			return false
		}
	}
	return true
}

// Common constructors, mirroring ctypes' Int/UInt/Char/... helpers.

func I32Signed() Type   { return Int{Width: I32, Signed: true} }
func I32Unsigned() Type { return Int{Width: I32, Signed: false} }
func ISizeSigned() Type { return Int{Width: ISize, Signed: true} }
func U8() Type           { return Int{Width: I8, Signed: false} }

func PointerTo(elem Type) Type { return Ptr{Elem: elem} }
func BoxOf(elem Type) Type     { return Box{Elem: elem} }
func TupleOf(fields ...Type) Type { return Tuple{Fields: fields} }
