package ir

import (
	"testing"

	"github.com/lowlangc/lowlangc/internal/types"
)

// TestIndirectParamRewrite checks P1: a block parameter declared with
// a type-variable type gets rewritten to a pointer variable flagged
// INDIRECT.
func TestIndirectParamRewrite(t *testing.T) {
	m := NewModule("test")
	body := m.DeclareBody()
	b := m.DefineBody(body)

	tvar := b.AddGenericParam("T")
	p := b.AddParam(ENTRY, tvar)

	info := m.Body(body).Vars[p]
	if !info.Flags.IsSet(INDIRECT) {
		t.Fatal("expected INDIRECT flag on a Var-typed block parameter")
	}
	ptr, ok := info.Ty.(types.Ptr)
	if !ok {
		t.Fatalf("expected pointer type for indirect parameter, got %T", info.Ty)
	}
	if !types.Equal(ptr.Elem, tvar) {
		t.Errorf("expected pointer to point at %v, got %v", tvar, ptr.Elem)
	}
}

// TestReturnRewriteInsertsRetParam checks the return rewrite: an
// indirect return value produces a synthetic RETURN-flagged parameter
// at entry-block position 0 and a CopyAddr instead of appearing in
// Term.Return.Ops.
func TestReturnRewriteInsertsRetParam(t *testing.T) {
	m := NewModule("test")
	body := m.DeclareBody()
	b := m.DefineBody(body)

	tvar := b.AddGenericParam("T")
	x := b.AddParam(ENTRY, tvar) // *T, INDIRECT
	b.Return(x)

	entry := m.Body(body).Blocks[ENTRY]
	if len(entry.Params) != 2 {
		t.Fatalf("expected entry block to gain a RETURN param, got %d params", len(entry.Params))
	}
	retParam := entry.Params[0]
	if !m.Body(body).Vars[retParam].Flags.IsSet(RETURN) {
		t.Fatal("expected entry param 0 to carry the RETURN flag")
	}

	ret, ok := entry.Term.(Return)
	if !ok {
		t.Fatalf("expected Return terminator, got %T", entry.Term)
	}
	if len(ret.Ops) != 0 {
		t.Errorf("expected the indirect value to be removed from Return.Ops, got %v", ret.Ops)
	}

	foundCopy := false
	for _, instr := range entry.Instrs {
		if ca, ok := instr.(CopyAddr); ok && ca.Old == x && ca.New == retParam {
			foundCopy = true
		}
	}
	if !foundCopy {
		t.Error("expected a CopyAddr(x, ret_param) instruction")
	}
}

// TestStoreTypeMismatchPanics checks that Store requires
// type_of(addr) == Ptr(type_of(val)).
func TestStoreTypeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Store to panic on type mismatch")
		}
	}()

	m := NewModule("test")
	body := m.DeclareBody()
	b := m.DefineBody(body)

	i32 := types.I32Signed()
	i64 := types.Int{Width: types.I64, Signed: true}

	val := b.ConstInt(1, i32)
	addr := b.StackAlloc(i64)
	b.Store(val, addr)
}

// TestApplyInOutRoundTrip checks P4: IN params are passed through a
// stack slot whose address is the actual argument, and OUT returns are
// passed via a leading out-pointer argument and re-inserted at their
// source position in the result list.
func TestApplyInOutRoundTrip(t *testing.T) {
	m := NewModule("test")

	i32 := types.I32Signed()
	sig := types.Func{Sig: types.Signature{
		Params: []types.FuncParam{{Ty: i32, Flags: types.PassIn}},
		Rets:   []types.FuncParam{{Ty: i32, Flags: types.PassOut}},
	}}
	callee := m.DeclareFunc("callee", LinkageLocal, sig)

	body := m.DeclareBody()
	b := m.DefineBody(body)

	fnVar := b.FuncRef(callee)
	arg := b.ConstInt(42, i32)
	rets := b.Apply(fnVar, nil, []Var{arg})

	if len(rets) != 1 {
		t.Fatalf("expected 1 return var, got %d", len(rets))
	}

	entry := m.Body(body).Blocks[ENTRY]
	var apply Apply
	found := false
	for _, instr := range entry.Instrs {
		if a, ok := instr.(Apply); ok {
			apply = a
			found = true
		}
	}
	if !found {
		t.Fatal("expected an Apply instruction")
	}

	// The callee sees 2 args: the out-slot address, then the in-slot
	// address (not the raw i32 value).
	if len(apply.Args) != 2 {
		t.Fatalf("expected 2 call args (out-slot, in-slot), got %d", len(apply.Args))
	}
	for _, a := range apply.Args {
		if _, ok := m.Body(body).VarType(a).(types.Ptr); !ok {
			t.Errorf("expected call argument %v to be a pointer, got %v", a, m.Body(body).VarType(a))
		}
	}

	if _, ok := m.Body(body).VarType(rets[0]).(types.Ptr); ok {
		t.Error("expected the caller-visible return value to be the dereferenced i32, not a pointer")
	}
}

// TestSwitchBindsAllParams checks that a Switch terminator with one
// case and a default binds all of each target's block parameters.
func TestSwitchBindsAllParams(t *testing.T) {
	m := NewModule("test")
	body := m.DeclareBody()
	b := m.DefineBody(body)

	i32 := types.I32Signed()
	caseBlock := b.CreateBlock()
	b.AddParam(caseBlock, i32)
	defBlock := b.CreateBlock()
	b.AddParam(defBlock, i32)

	pred := b.ConstInt(0, i32)
	arg := b.ConstInt(7, i32)

	b.Switch(pred).
		Case(0, caseBlock, arg).
		Build(defBlock, arg)

	term, ok := m.Body(body).Blocks[ENTRY].Term.(Switch)
	if !ok {
		t.Fatalf("expected Switch terminator, got %T", m.Body(body).Blocks[ENTRY].Term)
	}
	if len(term.Cases) != 1 || len(term.Cases[0].To.Args) != 1 {
		t.Fatal("expected one case with one bound argument")
	}
	if len(term.Default.Args) != 1 {
		t.Fatal("expected default target's parameter to be bound")
	}
}
