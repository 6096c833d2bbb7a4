package types

// Interner canonicalizes types so equal types compare identical after
// interning: equality is structural but checked by identity once a
// type has been interned. It follows the same opaque-id-over-arena
// idiom as pkg/rtl's Node/Reg: each distinct
// type gets a small integer handle, and the handle - not the Type value
// - is what the lowering engine's VWT and type-info caches key off of.
type Interner struct {
	byKey map[string]Handle
	types []Type
}

// Handle is an interned type's identity: two Handles are equal iff the
// types they were interned from are structurally Equal.
type Handle int

// NewInterner creates an empty interning table.
func NewInterner() *Interner {
	return &Interner{byKey: make(map[string]Handle)}
}

// Intern returns the canonical Handle for ty, allocating a fresh one on
// first sight of this structural shape.
func (in *Interner) Intern(ty Type) Handle {
	key := structuralKey(ty)
	if h, ok := in.byKey[key]; ok {
		return h
	}

	h := Handle(len(in.types))
	in.types = append(in.types, ty)
	in.byKey[key] = h
	return h
}

// Lookup returns the Type a Handle was interned from.
func (in *Interner) Lookup(h Handle) Type {
	return in.types[h]
}

// structuralKey renders a Type to a string that is equal iff the types
// are Equal; used as the interning table's map key.
func structuralKey(ty Type) string {
	var b []byte
	b = appendKey(b, ty)
	return string(b)
}

func appendKey(b []byte, ty Type) []byte {
	switch t := ty.(type) {
	case Int:
		b = append(b, 'i')
		b = append(b, byte(t.Width))
		if t.Signed {
			b = append(b, 's')
		} else {
			b = append(b, 'u')
		}
	case Bool:
		b = append(b, 'b')
	case Float:
		b = append(b, 'f', byte(t.Width))
	case Ptr:
		b = append(b, 'p')
		b = appendKey(b, t.Elem)
	case Box:
		b = append(b, 'x')
		b = appendKey(b, t.Elem)
	case Tuple:
		b = append(b, 't', '(')
		for _, f := range t.Fields {
			b = appendKey(b, f)
			b = append(b, ',')
		}
		b = append(b, ')')
	case Union:
		b = append(b, 'U', '[')
		b = append(b, t.Name...)
		b = append(b, ']', '(')
		for _, v := range t.Variants {
			b = append(b, v.Name...)
			b = append(b, '{')
			for _, f := range v.Fields {
				b = appendKey(b, f)
				b = append(b, ',')
			}
			b = append(b, '}')
		}
		b = append(b, ')')
	case Func:
		b = append(b, 'F', '(')
		for _, p := range t.Sig.Params {
			b = appendKey(b, p.Ty)
			b = append(b, byte(p.Flags), ',')
		}
		b = append(b, ')', '-', '>', '(')
		for _, r := range t.Sig.Rets {
			b = appendKey(b, r.Ty)
			b = append(b, byte(r.Flags), ',')
		}
		b = append(b, ')')
	case Generic:
		b = append(b, 'G', byte(len(t.Params)), ':')
		b = appendKey(b, t.Body)
	case Var:
		b = append(b, 'V', byte(t.Depth), byte(t.Index))
	default:
		panic("types: appendKey: unhandled type")
	}
	return b
}
