package vm

import (
	"testing"

	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// TestRunFuncBoxRoundTrip builds `fn f() -> i32 { b := box 0; addr :=
// box_addr b; store 42 into addr; v := load addr; box_free b; return v
// }` and checks RunFunc interprets the box alloc/store/load/free round
// trip and returns 42.
func TestRunFuncBoxRoundTrip(t *testing.T) {
	m := ir.NewModule("test")
	fn := m.DeclareFunc("f", ir.LinkageLocal, types.Func{Sig: types.Signature{
		Rets: []types.FuncParam{{Ty: types.I32Signed()}},
	}})

	body := m.DeclareBody()
	m.DefineFunc(fn, body)

	b := m.DefineBody(body)
	i32 := types.I32Signed()

	boxed := b.BoxAlloc(i32)
	addr := b.BoxAddr(boxed)
	c42 := b.ConstInt(42, i32)
	b.Store(c42, addr)
	v := b.Load(addr)
	b.BoxFree(boxed)
	b.Return(v)
	b.Finish()

	out := New(m, 8).RunFunc(fn, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 return value, got %d", len(out))
	}
	if out[0] != 42 {
		t.Errorf("expected RunFunc to return 42, got %d", out[0])
	}
}

// TestRunFuncSwitchDispatch checks that RunFunc follows a Switch
// terminator to the matching case, binding its block argument; the
// default target is built but not taken here.
func TestRunFuncSwitchDispatch(t *testing.T) {
	m := ir.NewModule("test")
	fn := m.DeclareFunc("g", ir.LinkageLocal, types.Func{Sig: types.Signature{
		Rets: []types.FuncParam{{Ty: types.I32Signed()}},
	}})

	body := m.DeclareBody()
	m.DefineFunc(fn, body)

	b := m.DefineBody(body)
	i32 := types.I32Signed()

	caseBlock := b.CreateBlock()
	caseParam := b.AddParam(caseBlock, i32)
	defBlock := b.CreateBlock()
	defParam := b.AddParam(defBlock, i32)

	pred := b.ConstInt(1, i32)
	caseVal := b.ConstInt(100, i32)
	defVal := b.ConstInt(200, i32)

	b.Switch(pred).
		Case(1, caseBlock, caseVal).
		Build(defBlock, defVal)

	b.SetBlock(caseBlock)
	b.Return(caseParam)

	b.SetBlock(defBlock)
	b.Return(defParam)

	b.Finish()

	out := New(m, 8).RunFunc(fn, nil)
	if len(out) != 1 || out[0] != 100 {
		t.Errorf("expected Switch to take the pred==1 case and return 100, got %v", out)
	}
}
