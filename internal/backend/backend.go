// Package backend declares the narrow trait surface the lowering
// engine (internal/middle) speaks to: functions, data, signatures and
// relocations. It intentionally says nothing about how
// a concrete backend represents machine code - a real native emitter
// and the reference github.com/lowlangc/lowlangc/internal/backend/
// textasm implementation both satisfy the same two interfaces.
//
// Grounded on the trait surface implied by backend-clif/src/middle.rs's
// `impl Backend for MiddleCtx` (import_data, import_fn, alloc_vwt,
// alloc_info, mk_fn, copy_trivial/move_trivial/copy_move_nop/drop_nop)
// together with the per-function FnBuilder trait from
// lowlang-cranelift/src/pass.rs and backend-clif/src/middle.rs's
// `impl FnBuilder for FnCtx`.
package backend

import "fmt"

// DataID identifies a data symbol (VWT, type-info, or constant) known
// to a Backend.
type DataID string

// FuncID identifies a function symbol known to a Backend.
type FuncID string

// Value is an opaque backend-specific SSA value handle produced while
// building one function's body.
type Value int

func (v Value) String() string { return fmt.Sprintf("v%d", int(v)) }

// BlockRef is an opaque backend-specific basic block handle.
type BlockRef int

// Endianness is the target's byte order, consulted when writing
// multi-byte integers into data symbols.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// DataReloc is a pointer-width relocation inside a materialized
// constant's byte buffer: the word at Offset should be patched to hold
// the address of the function or data symbol named Symbol.
type DataReloc struct {
	Offset uint64
	Symbol string
}

// ValueWitnessTable is the backend-facing description of a value
// witness table to allocate: size, align and
// stride in bytes, plus the three function symbols that implement
// copy/move/drop for the concrete type this VWT describes.
type ValueWitnessTable struct {
	Size, Align, Stride uint64
	CopyFn, MoveFn, DropFn FuncID
}

// Backend is the module-level surface the lowering engine drives once
// per compilation unit.
type Backend interface {
	// PointerSize returns the target's pointer width in bytes.
	PointerSize() uint64
	// Endianness returns the target's byte order.
	Endianness() Endianness

	// ImportData declares an externally-defined data symbol.
	ImportData(name string) DataID
	// ImportFn declares an externally-defined function symbol of the
	// given arity (all parameters pointer-width).
	ImportFn(name string, nparams int) FuncID

	// AllocVWT emits a fresh anonymous value-witness-table data symbol.
	AllocVWT(vwt ValueWitnessTable) DataID
	// AllocInfo emits a type-info data symbol wrapping vwt: a relocated
	// pointer to vwt in word 0 and the given flags word in word 1. An
	// empty name allocates an anonymous symbol.
	AllocInfo(name string, export bool, vwt DataID, flags uint64) DataID

	// AllocConst emits a data symbol holding an arbitrary materialized
	// constant's bytes, patched at each DataReloc.Offset with the
	// address of the named function or data symbol. An
	// empty name allocates an anonymous symbol.
	AllocConst(name string, export bool, bytes []byte, relocs []DataReloc) DataID

	// MkFn declares and defines a function of the given arity (all
	// parameters pointer-width); body is invoked once with a fresh
	// per-function builder to emit its instructions. On return, the
	// backend finalizes the function and hands it to its emitter. The
	// textasm reference backend runs no unreachable-code or dead-code
	// elimination: it records the blocks exactly as the body built them.
	MkFn(name string, export bool, nparams int, body func(FnBuilder)) FuncID

	// The trivial runtime helpers, cached once per backend context.
	CopyTrivial() FuncID
	MoveTrivial() FuncID
	CopyMoveNop() FuncID
	DropNop() FuncID
}

// FnBuilder is the per-function surface passed to a Backend.MkFn body
// callback. It mirrors 's lowering-contract table, plus the
// block-graph primitives (CreateBlock/AppendBlockParam/SwitchToBlock/
// Jump/BrZero) needed to lower an arbitrary Br/Switch terminator graph,
// a generalization this repo adds beyond the table's two-way
// Conditional helper (the retrieved source is explicitly a partial
// prototype; a complete backend needs general block-argument control
// flow, not only the copy-dispatch ternary the table documents).
type FnBuilder interface {
	PtrSize() uint64

	// Param returns the n-th entry-block parameter value.
	Param(n int) Value

	StackAlloc(size uint64) Value
	// DynStackAlloc allocates size bytes known only at runtime (e.g.
	// the size field loaded from a Var's VWT) - the generalization of
	// StackAlloc needed when a StackAlloc instruction's type is itself
	// a type variable.
	DynStackAlloc(size Value) Value

	ConstInt(v uint64) Value
	FnAddr(id FuncID) Value
	// DataAddr returns the address of a data symbol previously
	// allocated with Backend.ImportData/AllocVWT/AllocInfo.
	DataAddr(id DataID) Value

	Load(ptr Value, offset int64) Value
	Store(ptr Value, offset int64, v Value)

	Add(a, b Value) Value
	Sub(a, b Value) Value
	Mul(a, b Value) Value
	Div(a, b Value) Value
	Rem(a, b Value) Value
	// Icmp computes a signed integer comparison; op is one of "eq",
	// "ne", "lt", "le", "gt", "ge". The result is a 0/1-valued Value.
	Icmp(op string, a, b Value) Value
	Offset(ptr, v Value) Value
	OffsetU64(ptr Value, n uint64) Value

	Memcopy(dst, src Value, bytes uint64)
	Memmove(dst, src Value, bytes uint64)

	// Conditional emits a two-way merge: brz cond -> next([b]);
	// jump next([a]); returns next's block parameter.
	Conditional(cond, a, b Value) Value

	// Call invokes fnPtr (an indirect call through a cached signature
	// of arity == len(args)) and returns its direct (non-OUT) return
	// values in order.
	Call(fnPtr Value, args []Value) []Value

	CreateBlock() BlockRef
	AppendBlockParam(block BlockRef) Value
	SwitchToBlock(block BlockRef)
	Jump(block BlockRef, args []Value)
	// BrZero branches to ifZero (with zeroArgs) when cond == 0,
	// otherwise falls through to otherwise (with otherArgs).
	BrZero(cond Value, ifZero BlockRef, zeroArgs []Value, otherwise BlockRef, otherArgs []Value)

	Ret(ops []Value)
}
