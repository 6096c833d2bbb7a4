package types

// Subst replaces every Var(depth, index) in ty with s[index], provided
// the variable's depth equals the given depth; variables with a greater
// depth (bound outside the quantifier being substituted) are shifted
// down by one (they cross one fewer enclosing Generic once this
// substitution is applied), and variables with a smaller depth (bound
// by a Generic nested inside ty) are left alone.
//
// This is the Go counterpart of the Rust Ty::subst(&self, s: &[Ty],
// depth: usize) used at every Apply-instruction call site in the IR
// builder (ir/src/builder.rs).
func Subst(ty Type, s []Type, depth int) Type {
	switch t := ty.(type) {
	case Var:
		if t.Depth == depth {
			return s[t.Index]
		}
		if t.Depth > depth {
			return Var{Depth: t.Depth - 1, Index: t.Index}
		}
		return t
	case Ptr:
		return Ptr{Elem: Subst(t.Elem, s, depth)}
	case Box:
		return Box{Elem: Subst(t.Elem, s, depth)}
	case Tuple:
		fields := make([]Type, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = Subst(f, s, depth)
		}
		return Tuple{Fields: fields}
	case Union:
		variants := make([]Variant, len(t.Variants))
		for i, v := range t.Variants {
			fields := make([]Type, len(v.Fields))
			for j, f := range v.Fields {
				fields[j] = Subst(f, s, depth)
			}
			variants[i] = Variant{Name: v.Name, Fields: fields}
		}
		return Union{Name: t.Name, Variants: variants}
	case Func:
		return Func{Sig: substSig(t.Sig, s, depth)}
	case Generic:
		return Generic{Params: t.Params, Body: Subst(t.Body, s, depth+1)}
	default:
		// Primitive types (Int, Bool, Float) carry no Var and are
		// returned unchanged.
		return ty
	}
}

func substSig(sig Signature, s []Type, depth int) Signature {
	params := make([]FuncParam, len(sig.Params))
	for i, p := range sig.Params {
		params[i] = FuncParam{Ty: Subst(p.Ty, s, depth), Flags: p.Flags}
	}
	rets := make([]FuncParam, len(sig.Rets))
	for i, r := range sig.Rets {
		rets[i] = FuncParam{Ty: Subst(r.Ty, s, depth), Flags: r.Flags}
	}
	return Signature{Params: params, Rets: rets}
}

// Unwrap strips one layer of Generic quantification, substituting
// nothing (used by the builder when it only needs the shape of the
// quantified body, e.g. to count params/rets before substitution).
func Unwrap(ty Type) Type {
	if g, ok := ty.(Generic); ok {
		return g.Body
	}
	return ty
}
