package main

import (
	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// buildDemoModule constructs a small, self-contained module exercising
// the generic/polymorphic-dispatch path end to end: a generic identity
// function (forced into the indirect/pointer passing convention since
// its parameter and return type are both a bare type variable) called
// once at i32.
//
// There is no source-language front end in this pipeline's scope: the
// driver's only input is an already-typed ir.Module. This demo plays
// the role the original CLI's own bundled .c fixtures play - a fixed,
// known-good program the CLI can run through every stage for a sanity
// check and for --dump-ir/--dump-rtti/--emit-asm to have something to show.
func buildDemoModule() *ir.Module {
	m := ir.NewModule("demo")

	// Both the parameter and return are declared PassIn/PassOut: a
	// type-variable value is always passed by address, and the
	// signature's passing-convention flags are how a caller's
	// Apply rewrite learns to pass/receive through a stack slot rather
	// than by value, independent of the body-side AddParam/Return
	// rewrite that forces the callee's own block parameter indirect.
	identity := m.DeclareFunc("identity", ir.LinkageLocal, types.Generic{
		Params: []types.GenericParam{{Name: "T"}},
		Body: types.Func{Sig: types.Signature{
			Params: []types.FuncParam{{Ty: types.Var{Depth: 0, Index: 0}, Flags: types.PassIn}},
			Rets:   []types.FuncParam{{Ty: types.Var{Depth: 0, Index: 0}, Flags: types.PassOut}},
		}},
	})
	buildIdentity(m, identity)

	main := m.DeclareFunc("main", ir.LinkageExport, types.Func{Sig: types.Signature{
		Rets: []types.FuncParam{{Ty: types.I32Signed()}},
	}})
	buildMain(m, main, identity)

	return m
}

// buildIdentity defines `fn identity<T>(x: T) -> T { return x }`. Both
// x and the return value are bare type variables, so the builder's
// AddParam/Return rewrites force them behind pointers: the lowered
// body is really `fn identity<T>(ret: *T, x: *T)` with a CopyAddr from
// x into ret.
func buildIdentity(m *ir.Module, fn ir.FuncId) {
	body := m.DeclareBody()
	m.DefineFunc(fn, body)

	b := m.DefineBody(body)
	tv := b.AddGenericParam("T")
	x := b.AddParam(ir.ENTRY, tv)
	b.Return(x)
	b.Finish()
}

// buildMain defines a concrete caller: stack-allocate an i32, store 42
// into it, load it back into a value, and call identity<i32> on that
// value - exercising StackAlloc/Store/Load directly, plus Apply's own
// IN/OUT stack-slot rewrite for the call itself (Apply already
// allocates and frees the indirect argument/return slots; the caller
// hands it plain values and gets a plain value back).
func buildMain(m *ir.Module, fn ir.FuncId, identity ir.FuncId) {
	body := m.DeclareBody()
	m.DefineFunc(fn, body)

	b := m.DefineBody(body)
	i32 := types.I32Signed()

	slot := b.StackAlloc(i32)
	c42 := b.ConstInt(42, i32)
	b.Store(c42, slot)
	val := b.Load(slot)

	idRef := b.FuncRef(identity)
	rets := b.Apply(idRef, []types.Type{i32}, []ir.Var{val})

	b.Return(rets[0])
	b.Finish()
}
