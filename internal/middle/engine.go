// Package middle is the lowering engine: it walks a
// typed ir.Module function-by-function, block-by-block and
// instruction-by-instruction, driving a backend.Backend to produce
// native functions and data. It is the one place generic-aware
// polymorphic dispatch happens: wherever an operand's type is a bare
// type variable, the engine threads the ambient type-info pointer for
// that variable through to the backend instead of emitting a
// compile-time-sized operation.
//
// Grounded on backend-clif/src/middle.rs's MiddleCtx/FnCtx, generalized with a Br/Switch block-graph walk in the style
// of pkg/rtlgen's block-by-block translation of AST statements into
// pkg/rtl instructions.
package middle

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/backend"
	"github.com/lowlangc/lowlangc/internal/compileerr"
	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// VWT word layout: size, align, stride, copy_fn, move_fn, drop_fn, each
// one pointer-width word.
const (
	vwtSizeWord = 0
	vwtAlignWord = 1
	vwtStrideWord = 2
	vwtCopyWord  = 3
	vwtMoveWord  = 4
	vwtDropWord  = 5
)

// boxHeaderWords is the number of pointer-width words reserved at the
// front of a box allocation for the generational reference header
// before the boxed value itself begins.
const boxHeaderWords = 1

// Engine drives lowering of an entire Module against one Backend. It
// owns the compile-time caches for data symbols materialized once per
// concrete type (VWTs and type-info records), so repeated uses of the
// same concrete type across functions share one symbol.
//
// Every concrete type seen while lowering is interned through one
// types.Interner per Engine (per compilation unit), and the resulting
// types.Handle - not a recomputed string key - is what vwtCache/
// infoCache are keyed on, so two occurrences of the same structural
// type always hit the same cache entry after their first Intern call.
type Engine struct {
	be        backend.Backend
	ptrSize   uint64
	interner  *types.Interner
	vwtCache  map[types.Handle]backend.DataID
	infoCache map[types.Handle]backend.DataID
	anonSeq   int
}

// New creates a lowering engine targeting be.
func New(be backend.Backend) *Engine {
	return &Engine{
		be:        be,
		ptrSize:   be.PointerSize(),
		interner:  types.NewInterner(),
		vwtCache:  make(map[types.Handle]backend.DataID),
		infoCache: make(map[types.Handle]backend.DataID),
	}
}

// LowerModule lowers every defined function of m in declaration order,
// returning the backend's FuncID for each, keyed by its ir.FuncId.
func (e *Engine) LowerModule(m *ir.Module) map[ir.FuncId]backend.FuncID {
	out := make(map[ir.FuncId]backend.FuncID)
	for id := range m.Funcs {
		fn := m.Func(ir.FuncId(id))
		if fn.Body == nil {
			// A declared-but-undefined import; the caller resolves
			// these through Backend.ImportFn directly, not here.
			continue
		}
		out[ir.FuncId(id)] = e.LowerFunction(m, ir.FuncId(id))
	}
	return out
}

// infoFor returns the type-info data symbol for a concrete (non-Var)
// type, materializing its VWT and wrapping info record on first use.
// Every concrete type in this IR is plain-old-data (no user-defined
// destructors), so its witness functions are always the backend's
// trivial size-parameterized helpers - the VWT mechanism exists only so
// a truly generic callee, which does not know the concrete type at
// compile time, can dispatch to the right trivial helper at runtime.
func (e *Engine) infoFor(ty types.Type) backend.DataID {
	h := e.interner.Intern(ty)
	if id, ok := e.infoCache[h]; ok {
		return id
	}

	layout := types.LayoutOf(ty, e.ptrSize)
	vwtID, ok := e.vwtCache[h]
	if !ok {
		vwtID = e.be.AllocVWT(backend.ValueWitnessTable{
			Size:    layout.Size,
			Align:   layout.Align,
			Stride:  layout.Stride,
			CopyFn:  e.be.CopyTrivial(),
			MoveFn:  e.be.MoveTrivial(),
			DropFn:  e.be.DropNop(),
		})
		e.vwtCache[h] = vwtID
	}

	e.anonSeq++
	infoID := e.be.AllocInfo(fmt.Sprintf("info$%d", e.anonSeq), false, vwtID, 0)
	e.infoCache[h] = infoID
	return infoID
}

// fctx is the per-function lowering state: the live value/block maps
// and the ambient info parameters for the function's own generic
// parameters.
type fctx struct {
	eng     *Engine
	m       *ir.Module
	body    *ir.Body
	fb      backend.FnBuilder
	ptrSize uint64
	valueOf map[ir.Var]backend.Value
	blockOf map[ir.Block]backend.BlockRef
	infoOf  []backend.Value // infoOf[i] is the info pointer for GenericParams[i]
}

// LowerFunction lowers one function of m and returns its backend
// FuncID.
func (e *Engine) LowerFunction(m *ir.Module, id ir.FuncId) backend.FuncID {
	fn := m.Func(id)
	body := m.Body(*fn.Body)

	nValueParams := len(body.Blocks[ir.ENTRY].Params)
	nGeneric := len(body.GenericParams)
	total := nValueParams + nGeneric

	return e.be.MkFn(fn.Name, fn.Linkage == ir.LinkageExport, total, func(fb backend.FnBuilder) {
		fx := &fctx{
			eng:     e,
			m:       m,
			body:    body,
			fb:      fb,
			ptrSize: fb.PtrSize(),
			valueOf: make(map[ir.Var]backend.Value),
			blockOf: make(map[ir.Block]backend.BlockRef),
			infoOf:  make([]backend.Value, nGeneric),
		}

		for i, v := range body.Blocks[ir.ENTRY].Params {
			fx.valueOf[v] = fb.Param(i)
		}
		for i := range body.GenericParams {
			fx.infoOf[i] = fb.Param(nValueParams + i)
		}

		// Pre-declare every non-entry block and its parameters so that
		// forward jumps (Br/Switch targets) have a BlockRef and bound
		// values to reference before that block is lowered.
		for bid := 1; bid < len(body.Blocks); bid++ {
			b := ir.Block(bid)
			ref := fb.CreateBlock()
			fx.blockOf[b] = ref
			for _, p := range body.Blocks[b].Params {
				fx.valueOf[p] = fb.AppendBlockParam(ref)
			}
		}

		for bid := range body.Blocks {
			fx.lowerBlock(ir.Block(bid))
		}
	})
}

func (fx *fctx) lowerBlock(b ir.Block) {
	data := &fx.body.Blocks[b]
	if b != ir.ENTRY {
		fx.fb.SwitchToBlock(fx.blockOf[b])
	}
	for _, instr := range data.Instrs {
		fx.lowerInstr(instr)
	}
	fx.lowerTerm(data.Term)
}

func (fx *fctx) val(v ir.Var) backend.Value {
	val, ok := fx.valueOf[v]
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("middle: variable %v used before definition", v)))
	}
	return val
}

func (fx *fctx) vals(vs []ir.Var) []backend.Value {
	out := make([]backend.Value, len(vs))
	for i, v := range vs {
		out[i] = fx.val(v)
	}
	return out
}

func (fx *fctx) targetArgs(t ir.BrTarget) []backend.Value { return fx.vals(t.Args) }

// word returns the byte offset of a pointer-width VWT word index.
func (fx *fctx) word(i int) int64 { return int64(i) * int64(fx.ptrSize) }

// typeInfoValue returns the runtime type-info pointer for ty. For a
// type variable local to this function (depth 0) that is simply the
// matching trailing ambient parameter; a deeper Var would need the
// info record of an enclosing generic scope threaded in, which this
// reference implementation does not yet support (no lowering scenario
// in scope nests a type variable inside another function's type
// variable). Concrete types are materialized once per type and
// referenced by address.
func (fx *fctx) typeInfoValue(ty types.Type) backend.Value {
	if v, ok := ty.(types.Var); ok {
		if v.Depth != 0 {
			panic(compileerr.New(compileerr.Unsupported, "middle: nested type variable (depth>0) type-info lookup is not implemented"))
		}
		return fx.infoOf[v.Index]
	}
	id := fx.eng.infoFor(ty)
	return fx.fb.DataAddr(id)
}

// sizeOf returns a backend Value holding ty's size in bytes: a
// compile-time constant for concrete types, or a runtime load from
// ty's VWT when ty is a type variable.
func (fx *fctx) sizeOf(ty types.Type) backend.Value {
	if types.IsVar(ty) {
		info := fx.typeInfoValue(ty)
		vwt := fx.fb.Load(info, fx.word(0))
		return fx.fb.Load(vwt, fx.word(vwtSizeWord))
	}
	return fx.fb.ConstInt(types.LayoutOf(ty, fx.ptrSize).Size)
}

func (fx *fctx) lowerTerm(term ir.Term) {
	switch t := term.(type) {
	case ir.Unreachable:
		// No backend primitive emits unreachable code directly; a trap
		// would be the native equivalent, left to the concrete
		// backend's native emitter rather than this narrow interface.
	case ir.Return:
		fx.fb.Ret(fx.vals(t.Ops))
	case ir.Br:
		fx.fb.Jump(fx.blockOf[t.To.Block], fx.targetArgs(t.To))
	case ir.Switch:
		fx.lowerSwitch(t)
	default:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("middle: unhandled terminator %T", term)))
	}
}

// lowerSwitch lowers an N-way Switch as a cascade of equality tests
// against each case value: a case matches when pred == val, so the
// cascade branches into the case block on ne(pred,val)==0 and falls
// through to the next test otherwise, finally jumping unconditionally
// to Default. This generalizes the table's two-way Conditional helper
// to arbitrary case counts.
func (fx *fctx) lowerSwitch(sw ir.Switch) {
	pred := fx.val(sw.Pred)
	for _, c := range sw.Cases {
		caseVal := fx.fb.ConstInt(c.Val)
		notEq := fx.fb.Icmp("ne", pred, caseVal)
		next := fx.fb.CreateBlock()
		fx.fb.BrZero(notEq, fx.blockOf[c.To.Block], fx.targetArgs(c.To), next, nil)
		fx.fb.SwitchToBlock(next)
	}
	fx.fb.Jump(fx.blockOf[sw.Default.Block], fx.targetArgs(sw.Default))
}

func (fx *fctx) lowerInstr(instr ir.Instr) {
	switch in := instr.(type) {
	case ir.StackAlloc:
		fx.valueOf[in.Ret] = fx.lowerAlloc(in.Ty)

	case ir.StackFree:
		// Native stack slots are released automatically on function
		// return; StackFree exists to let the builder check LIFO
		// discipline, not to drive a backend primitive.

	case ir.BoxAlloc:
		size := fx.sizeOf(in.Ty)
		total := fx.fb.Add(size, fx.fb.ConstInt(uint64(boxHeaderWords)*fx.ptrSize))
		rets := fx.fb.Call(fx.fb.FnAddr(rtBoxAlloc), []backend.Value{total})
		fx.valueOf[in.Ret] = rets[0]

	case ir.BoxFree:
		fx.fb.Call(fx.fb.FnAddr(rtBoxFree), []backend.Value{fx.val(in.Boxed)})

	case ir.BoxAddr:
		fx.valueOf[in.Ret] = fx.fb.OffsetU64(fx.val(in.Boxed), uint64(boxHeaderWords)*fx.ptrSize)

	case ir.Load:
		fx.valueOf[in.Ret] = fx.fb.Load(fx.val(in.Addr), 0)

	case ir.Store:
		fx.fb.Store(fx.val(in.Addr), 0, fx.val(in.Val))

	case ir.CopyAddr:
		fx.lowerCopyAddr(in)

	case ir.ConstInt:
		fx.valueOf[in.Ret] = fx.fb.ConstInt(in.Val)

	case ir.FuncRef:
		fx.valueOf[in.Ret] = fx.fb.FnAddr(backend.FuncID(fx.m.Func(in.Func).Name))

	case ir.Apply:
		fx.lowerApply(in)

	case ir.Intrinsic:
		fx.lowerIntrinsic(in)

	default:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("middle: unhandled instruction %T", instr)))
	}
}

// lowerAlloc lowers a StackAlloc whose declared type may be a type
// variable: a concrete type gets a fixed-size native stack slot, a
// type variable gets a runtime-sized allocation computed from its VWT.
func (fx *fctx) lowerAlloc(ty types.Type) backend.Value {
	if types.IsVar(ty) {
		return fx.fb.DynStackAlloc(fx.sizeOf(ty))
	}
	return fx.fb.StackAlloc(types.LayoutOf(ty, fx.ptrSize).Size)
}

// lowerCopyAddr lowers CopyAddr between two *T pointers. When T is
// concrete the copy/move reduces to a fixed-size memcopy (every
// concrete type here is plain-old-data); when T is a type variable the
// engine dispatches through its VWT's copy_fn or move_fn, picked by the
// CopyTAKE flag.
func (fx *fctx) lowerCopyAddr(in ir.CopyAddr) {
	ptrTy, ok := fx.body.VarType(in.Old).(types.Ptr)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "middle: CopyAddr operand is not a pointer"))
	}
	elem := ptrTy.Elem
	dst, src := fx.val(in.New), fx.val(in.Old)

	if !types.IsVar(elem) {
		fx.fb.Memcopy(dst, src, types.LayoutOf(elem, fx.ptrSize).Size)
		return
	}

	info := fx.typeInfoValue(elem)
	vwt := fx.fb.Load(info, fx.word(0))
	size := fx.fb.Load(vwt, fx.word(vwtSizeWord))

	fnWord := vwtCopyWord
	if in.Flags.IsSet(ir.CopyTAKE) {
		fnWord = vwtMoveWord
	}
	fn := fx.fb.Load(vwt, fx.word(fnWord))
	fx.fb.Call(fn, []backend.Value{dst, src, size})
}

// lowerApply lowers a call, threading one ambient info argument per
// generic substitution after the ordinary arguments: a substitution
// that is itself a local type variable forwards this function's own
// ambient info pointer; a concrete substitution materializes (or
// reuses) that type's info record.
func (fx *fctx) lowerApply(in ir.Apply) {
	fnVal := fx.val(in.Func)
	args := fx.vals(in.Args)
	for _, s := range in.Subst {
		args = append(args, fx.typeInfoValue(s))
	}

	rets := fx.fb.Call(fnVal, args)
	for i, r := range in.Rets {
		fx.valueOf[r] = rets[i]
	}
}

// lowerIntrinsic lowers a call to a named built-in operation directly
// to the matching backend primitive. ptr_offset is
// generic over its pointee type and is resolved from the declared type
// of its first argument, the same operand-type-recovery trick used by
// lowerCopyAddr, rather than via a separate substitution list.
func (fx *fctx) lowerIntrinsic(in ir.Intrinsic) {
	args := fx.vals(in.Args)

	binop := func(f func(a, b backend.Value) backend.Value) {
		fx.valueOf[in.Rets[0]] = f(args[0], args[1])
	}
	cmp := func(op string) {
		fx.valueOf[in.Rets[0]] = fx.fb.Icmp(op, args[0], args[1])
	}

	switch in.Name {
	case "add_i32":
		binop(fx.fb.Add)
	case "sub_i32":
		binop(fx.fb.Sub)
	case "mul_i32":
		binop(fx.fb.Mul)
	case "div_i32":
		binop(fx.fb.Div)
	case "rem_i32":
		binop(fx.fb.Rem)
	case "eq_i32":
		cmp("eq")
	case "ne_i32":
		cmp("ne")
	case "lt_i32":
		cmp("lt")
	case "le_i32":
		cmp("le")
	case "gt_i32":
		cmp("gt")
	case "ge_i32":
		cmp("ge")
	case "ptr_offset":
		elem := fx.body.VarType(in.Args[0]).(types.Ptr).Elem
		var stride backend.Value
		if types.IsVar(elem) {
			info := fx.typeInfoValue(elem)
			vwt := fx.fb.Load(info, fx.word(0))
			stride = fx.fb.Load(vwt, fx.word(vwtStrideWord))
		} else {
			stride = fx.fb.ConstInt(types.LayoutOf(elem, fx.ptrSize).Stride)
		}
		fx.valueOf[in.Rets[0]] = fx.fb.Offset(args[0], fx.fb.Mul(args[1], stride))
	default:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("middle: unknown intrinsic %q", in.Name)))
	}
}

// Runtime helper symbols the box operations call through; a concrete
// backend/runtime is expected to provide these.
const (
	rtBoxAlloc backend.FuncID = "lowlang_rt_box_alloc"
	rtBoxFree  backend.FuncID = "lowlang_rt_box_free"
)
