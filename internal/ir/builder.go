package ir

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/compileerr"
	"github.com/lowlangc/lowlangc/internal/intrinsics"
	"github.com/lowlangc/lowlangc/internal/types"
)

// Builder constructs a single Body's instructions and terminators,
// enforcing the rewrites and type checks a well-formed body must
// satisfy. All builder invariant violations are programmer errors:
// they panic with a diagnostic rather than return an error, the same
// convention as the original builder's own construction-time panics.
type Builder struct {
	module  *Module
	bodyID  BodyId
	blockID Block
}

// DefineBody starts building the body previously declared with
// DeclareBody.
func (m *Module) DefineBody(body BodyId) *Builder {
	return &Builder{module: m, bodyID: body, blockID: ENTRY}
}

func (b *Builder) body() *Body       { return b.module.Body(b.bodyID) }
func (b *Builder) block() *BlockData { return &b.body().Blocks[b.blockID] }

// Finish completes construction of the body. Every reachable block
// must already carry a terminator; this is enforced by the caller
// driving construction to call br/return_/switch/unreachable on every
// block it creates, so Finish itself is a no-op marker matching
// ir::builder::Builder::finish's signature.
func (b *Builder) Finish() {}

// AddGenericParam declares a new generic parameter of the body and
// returns the type variable referring to it at depth 0.
func (b *Builder) AddGenericParam(name string) types.Var {
	i := len(b.body().GenericParams)
	b.body().GenericParams = append(b.body().GenericParams, GenericParam{Name: name})
	return types.Var{Depth: 0, Index: i}
}

// CreateVar declares a fresh variable of type ty.
func (b *Builder) CreateVar(ty types.Type) Var {
	id := Var(len(b.body().Vars))
	b.body().Vars = append(b.body().Vars, VarInfo{Ty: ty, Flags: EMPTY})
	return id
}

// CreateBlock allocates a new, terminator-less basic block.
func (b *Builder) CreateBlock() Block {
	id := Block(len(b.body().Blocks))
	b.body().Blocks = append(b.body().Blocks, BlockData{})
	return id
}

// SetBlock moves the insertion point to block.
func (b *Builder) SetBlock(block Block) { b.blockID = block }

// AddParam adds a new parameter to block. If ty is a bare type
// variable, the builder allocates a variable of type *ty flagged
// INDIRECT instead and every subsequent reference is a pointer.
func (b *Builder) AddParam(block Block, ty types.Type) Var {
	var v Var
	if types.IsVar(ty) {
		v = b.CreateVar(types.PointerTo(ty))
		b.body().Vars[v].Flags = INDIRECT
	} else {
		v = b.CreateVar(ty)
	}
	b.body().Blocks[block].Params = append(b.body().Blocks[block].Params, v)
	return v
}

// Unreachable terminates the current block with Unreachable.
func (b *Builder) Unreachable() {
	b.block().Term = Unreachable{}
}

// Return terminates the current block, returning ops: any op flagged
// INDIRECT is rewritten into a CopyAddr into the entry block's RETURN
// parameter (inserted at position 0 if one doesn't already exist)
// instead of appearing in Term.Return.Ops.
func (b *Builder) Return(ops ...Var) {
	var kept []Var
	i := 0

	for _, op := range ops {
		if !b.body().Vars[op].Flags.IsSet(INDIRECT) {
			kept = append(kept, op)
			continue
		}

		entry := &b.body().Blocks[ENTRY]
		if i < len(entry.Params) && b.body().Vars[entry.Params[i]].Flags.IsSet(RETURN) {
			b.CopyAddrAt(op, entry.Params[i], CopyEMPTY)
		} else {
			param := b.CreateVar(b.body().VarType(op))
			b.body().Vars[param].Flags = RETURN
			entry.Params = append([]Var{param}, entry.Params...)
			b.CopyAddrAt(op, param, CopyEMPTY)
		}
		i++
	}

	b.block().Term = Return{Ops: kept}
}

// Br terminates the current block with an unconditional jump to
// target, binding args to its block parameters.
func (b *Builder) Br(target Block, args ...Var) {
	b.block().Term = Br{To: BrTarget{Block: target, Args: args}}
}

// SwitchBuilder accumulates cases for a Switch terminator.
type SwitchBuilder struct {
	b     *Builder
	pred  Var
	cases []SwitchCase
}

// Switch begins building a Switch terminator on pred.
func (b *Builder) Switch(pred Var) *SwitchBuilder {
	return &SwitchBuilder{b: b, pred: pred}
}

// Case adds one (value, target) arm.
func (sb *SwitchBuilder) Case(val uint64, block Block, args ...Var) *SwitchBuilder {
	sb.cases = append(sb.cases, SwitchCase{Val: val, To: BrTarget{Block: block, Args: args}})
	return sb
}

// Build finishes the Switch terminator with the given default target.
func (sb *SwitchBuilder) Build(block Block, args ...Var) {
	sb.b.block().Term = Switch{
		Pred:    sb.pred,
		Cases:   sb.cases,
		Default: BrTarget{Block: block, Args: args},
	}
}

// StackAlloc allocates stack space for a value of type ty; the
// returned var has type *ty.
func (b *Builder) StackAlloc(ty types.Type) Var {
	ret := b.CreateVar(types.PointerTo(ty))
	b.block().Instrs = append(b.block().Instrs, StackAlloc{Ret: ret, Ty: ty})
	return ret
}

// StackFree deallocates a value previously returned by StackAlloc.
// Callers must free stack slots in the reverse order they were
// allocated.
func (b *Builder) StackFree(addr Var) {
	b.block().Instrs = append(b.block().Instrs, StackFree{Addr: addr})
}

// BoxAlloc allocates a new generational-reference box for a value of
// type ty; the returned var has type box ty.
func (b *Builder) BoxAlloc(ty types.Type) Var {
	ret := b.CreateVar(types.BoxOf(ty))
	b.block().Instrs = append(b.block().Instrs, BoxAlloc{Ret: ret, Ty: ty})
	return ret
}

// BoxFree deallocates a previously allocated box.
func (b *Builder) BoxFree(boxed Var) {
	b.block().Instrs = append(b.block().Instrs, BoxFree{Boxed: boxed})
}

// BoxAddr returns the address of a boxed value (type *ty for a box ty).
func (b *Builder) BoxAddr(boxed Var) Var {
	bt, ok := b.body().VarType(boxed).(types.Box)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: BoxAddr: operand is not a box"))
	}
	ret := b.CreateVar(types.PointerTo(bt.Elem))
	b.block().Instrs = append(b.block().Instrs, BoxAddr{Ret: ret, Boxed: boxed})
	return ret
}

// Load reads a value of type ty from an address of type *ty.
func (b *Builder) Load(addr Var) Var {
	pt, ok := b.body().VarType(addr).(types.Ptr)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: Load: operand is not a pointer"))
	}
	ret := b.CreateVar(pt.Elem)
	b.block().Instrs = append(b.block().Instrs, Load{Ret: ret, Addr: addr})
	return ret
}

// Store writes val into an address of type *type_of(val):
// type_of(addr) must equal Ptr(type_of(val)).
func (b *Builder) Store(val, addr Var) {
	pt, ok := b.body().VarType(addr).(types.Ptr)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: Store: address operand is not a pointer"))
	}
	if !types.Equal(pt.Elem, b.body().VarType(val)) {
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("ir: Store: cannot store value of type %s into address of type %s", b.body().VarType(val), b.body().VarType(addr))))
	}
	b.block().Instrs = append(b.block().Instrs, Store{Val: val, Addr: addr})
}

// CopyAddrAt copies the value at old into new (both must be *T for the
// same T). Flags: CopyTAKE moves from old, CopyINIT marks new as
// previously uninitialized.
func (b *Builder) CopyAddrAt(old, new Var, flags CopyFlags) {
	op, ok := b.body().VarType(old).(types.Ptr)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: CopyAddr: source operand is not a pointer"))
	}
	np, ok := b.body().VarType(new).(types.Ptr)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: CopyAddr: destination operand is not a pointer"))
	}
	if !types.Equal(op.Elem, np.Elem) {
		panic(compileerr.New(compileerr.IRMalformed, "ir: CopyAddr: source and destination point to different types"))
	}
	b.block().Instrs = append(b.block().Instrs, CopyAddr{Old: old, New: new, Flags: flags})
}

// ConstInt creates a constant integer value of type ty.
func (b *Builder) ConstInt(val uint64, ty types.Type) Var {
	ret := b.CreateVar(ty)
	b.block().Instrs = append(b.block().Instrs, ConstInt{Ret: ret, Val: val})
	return ret
}

// FuncRef creates a constant reference to a function; the returned var
// has the function's signature type.
func (b *Builder) FuncRef(fn FuncId) Var {
	sig := b.module.Func(fn).Sig
	ret := b.CreateVar(sig)
	b.block().Instrs = append(b.block().Instrs, FuncRef{Ret: ret, Func: fn})
	return ret
}

// Apply calls fn with the given generic substitutions and arguments:
// every IN parameter is rewritten to a stack-allocated slot passed by
// address (freed in reverse order after the call), and every OUT
// return is rewritten to a leading out-pointer argument, loaded back
// and re-inserted at its original position in the result list.
func (b *Builder) Apply(fn Var, subst []types.Type, args []Var) []Var {
	sig := b.resolveCallSig(fn, subst)

	var retArgs []Var
	rets := make([]Var, 0, len(sig.Rets))
	outPositions := make([]int, 0)

	for i, ret := range sig.Rets {
		if ret.Flags.Is(types.PassOut) {
			slot := b.StackAlloc(ret.Ty)
			retArgs = append(retArgs, slot)
			outPositions = append(outPositions, i)
		} else {
			rets = append(rets, b.CreateVar(ret.Ty))
		}
	}

	var indirectArgs []Var
	callArgs := make([]Var, 0, len(retArgs)+len(args))
	callArgs = append(callArgs, retArgs...)

	for i, arg := range args {
		if i < len(sig.Params) && sig.Params[i].Flags.Is(types.PassIn) {
			slot := b.StackAlloc(sig.Params[i].Ty)
			b.Store(arg, slot)
			indirectArgs = append(indirectArgs, slot)
			callArgs = append(callArgs, slot)
		} else {
			callArgs = append(callArgs, arg)
		}
	}

	b.block().Instrs = append(b.block().Instrs, Apply{
		Rets:  append([]Var(nil), rets...),
		Func:  fn,
		Subst: subst,
		Args:  callArgs,
	})

	for i := len(indirectArgs) - 1; i >= 0; i-- {
		b.StackFree(indirectArgs[i])
	}

	for j := len(retArgs) - 1; j >= 0; j-- {
		slot := retArgs[j]
		pos := outPositions[j]
		val := b.Load(slot)
		b.StackFree(slot)
		rets = insertAt(rets, pos, val)
	}

	return rets
}

func insertAt(vs []Var, pos int, v Var) []Var {
	if pos >= len(vs) {
		return append(vs, v)
	}
	vs = append(vs, Var(0))
	copy(vs[pos+1:], vs[pos:])
	vs[pos] = v
	return vs
}

// resolveCallSig resolves fn's signature, substituting generic
// arguments if fn's type is quantified.
func (b *Builder) resolveCallSig(fn Var, subst []types.Type) types.Signature {
	sig := b.body().VarType(fn)

	if g, ok := sig.(types.Generic); ok {
		sig = types.Subst(g.Body, subst, 0)
	}

	f, ok := sig.(types.Func)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "ir: Apply: callee operand is not a function"))
	}
	return f.Sig
}

// Intrinsic emits a call to a named built-in operation. The name must
// exist in the intrinsic registry; a generic signature is unwrapped
// before result variables are allocated (the caller's subst, if any,
// is carried in args/rets' types being type variables - the engine
// resolves them at lowering time via the ambient info parameters, not
// here).
func (b *Builder) Intrinsic(name string, args ...Var) []Var {
	sig, ok := intrinsics.Lookup(name)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("ir: unknown intrinsic %q", name)))
	}

	sig = types.Unwrap(sig)
	f, ok := sig.(types.Func)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("ir: intrinsic %q does not have a function signature", name)))
	}

	rets := make([]Var, len(f.Sig.Rets))
	for i, r := range f.Sig.Rets {
		rets[i] = b.CreateVar(r.Ty)
	}

	b.block().Instrs = append(b.block().Instrs, Intrinsic{
		Name: name,
		Rets: append([]Var(nil), rets...),
		Args: args,
	})

	return rets
}
