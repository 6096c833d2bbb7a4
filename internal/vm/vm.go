// Package vm is a small reference interpreter over internal/ir, used
// only by tests to validate end-to-end IR semantics independent of any
// backend (the box allocate/free round-trip and switch dispatch
// scenarios both need a ground truth that isn't the backend under
// test).
//
// Grounded on vm/src/lib.rs's VM: a flat byte-addressed memory, one
// stack frame per call holding its live values, and the same binary
// operator table (Add/Sub/Mul/Div/Mod/comparisons). The source
// interprets a place/rvalue/statement MIR; this one interprets this
// repo's own SSA-with-block-arguments IR directly, so there is no
// place/projection evaluation order to choose (Open Question #2 is
// vacuous here: Load/Store/CopyAddr already take pre-computed
// addresses, never a projection list).
package vm

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// boxHeaderWords mirrors internal/middle's box-allocation convention:
// one pointer-width word reserved before the boxed value.
const boxHeaderWords = 1

// Memory is a flat, append-only byte space. Stack slots and box
// allocations are both bump-allocated from it; nothing is ever
// reclaimed, since this interpreter only needs to run one test
// scenario per VM instance.
type Memory struct {
	bytes []byte
}

// NewMemory creates an empty memory space.
func NewMemory() *Memory { return &Memory{} }

// Alloc reserves size zero-initialized bytes and returns their address.
func (m *Memory) Alloc(size uint64) uint64 {
	addr := uint64(len(m.bytes))
	m.bytes = append(m.bytes, make([]byte, size)...)
	return addr
}

// ReadWord reads a little-endian, size-byte word at addr, zero-extended
// into a uint64. size is the pointee type's own layout size (1, 2, 4 or
// 8 bytes) - Load/Store never touch more of memory than the value they
// move actually occupies.
func (m *Memory) ReadWord(addr uint64, size uint64) uint64 {
	var v uint64
	for i := uint64(0); i < size; i++ {
		v |= uint64(m.bytes[addr+i]) << (i * 8)
	}
	return v
}

// WriteWord writes the low size bytes of v, little-endian, at addr.
func (m *Memory) WriteWord(addr uint64, size uint64, v uint64) {
	for i := uint64(0); i < size; i++ {
		m.bytes[addr+i] = byte(v >> (i * 8))
	}
}

// CopyBytes copies n bytes from src to dst, supporting overlap the way
// CopyAddr's move convention (read-then-write the same region) does.
func (m *Memory) CopyBytes(dst, src uint64, n uint64) {
	buf := make([]byte, n)
	copy(buf, m.bytes[src:src+n])
	copy(m.bytes[dst:dst+n], buf)
}

// VM interprets one ir.Module's functions against a shared Memory.
// It only supports concrete (non-generic) call graphs: a test scenario
// that wants to exercise runtime generic dispatch does so through
// internal/middle and a backend, not through this reference
// interpreter, which has no notion of an ambient type-info pointer.
type VM struct {
	mod     *ir.Module
	mem     *Memory
	ptrSize uint64
}

// New creates a VM over mod backed by a fresh Memory, using ptrSize as
// the target pointer width for layout computation.
func New(mod *ir.Module, ptrSize uint64) *VM {
	return &VM{mod: mod, mem: NewMemory(), ptrSize: ptrSize}
}

// Memory exposes the VM's backing store, e.g. so a test can inspect
// the bytes written by a Store/CopyAddr.
func (vm *VM) Memory() *Memory { return vm.mem }

// frame holds the live SSA values of one in-progress call.
type frame struct {
	values map[ir.Var]uint64
}

// RunFunc interprets fn with the given argument values bound to its
// entry block parameters, returning its Return values in order.
func (vm *VM) RunFunc(id ir.FuncId, args []uint64) []uint64 {
	fn := vm.mod.Func(id)
	if fn.Body == nil {
		panic(fmt.Sprintf("vm: cannot run undefined (imported) function %q", fn.Name))
	}
	body := vm.mod.Body(*fn.Body)

	fr := &frame{values: make(map[ir.Var]uint64)}
	entryParams := body.Blocks[ir.ENTRY].Params
	for i, p := range entryParams {
		fr.values[p] = args[i]
	}

	block := ir.ENTRY
	for {
		data := &body.Blocks[block]
		for _, instr := range data.Instrs {
			vm.execInstr(fr, body, instr)
		}

		switch t := data.Term.(type) {
		case ir.Unreachable:
			panic("vm: reached Unreachable terminator")
		case ir.Return:
			out := make([]uint64, len(t.Ops))
			for i, v := range t.Ops {
				out[i] = fr.values[v]
			}
			return out
		case ir.Br:
			block = vm.bindTarget(fr, body, t.To)
		case ir.Switch:
			pred := fr.values[t.Pred]
			target := t.Default
			for _, c := range t.Cases {
				if c.Val == pred {
					target = c.To
					break
				}
			}
			block = vm.bindTarget(fr, body, target)
		default:
			panic(fmt.Sprintf("vm: unhandled terminator %T", t))
		}
	}
}

// bindTarget evaluates a branch target's arguments against the current
// frame before rebinding them, so that a block jumping to itself (or to
// a block sharing a Var id with one of its own arguments) reads the old
// values, matching the SSA block-argument semantics the builder assumes.
func (vm *VM) bindTarget(fr *frame, body *ir.Body, to ir.BrTarget) ir.Block {
	vals := make([]uint64, len(to.Args))
	for i, a := range to.Args {
		vals[i] = fr.values[a]
	}
	params := body.Blocks[to.Block].Params
	for i, p := range params {
		fr.values[p] = vals[i]
	}
	return to.Block
}

func (vm *VM) execInstr(fr *frame, body *ir.Body, instr ir.Instr) {
	switch in := instr.(type) {
	case ir.StackAlloc:
		fr.values[in.Ret] = vm.mem.Alloc(vm.layoutSize(in.Ty))

	case ir.StackFree:
		// Memory is never reclaimed by this interpreter.

	case ir.BoxAlloc:
		total := boxHeaderWords*vm.ptrSize + vm.layoutSize(in.Ty)
		fr.values[in.Ret] = vm.mem.Alloc(total)

	case ir.BoxFree:
		// Memory is never reclaimed by this interpreter.

	case ir.BoxAddr:
		fr.values[in.Ret] = fr.values[in.Boxed] + boxHeaderWords*vm.ptrSize

	case ir.Load:
		size := vm.layoutSize(vm.elemType(body, in.Addr))
		fr.values[in.Ret] = vm.mem.ReadWord(fr.values[in.Addr], size)

	case ir.Store:
		size := vm.layoutSize(vm.elemType(body, in.Addr))
		vm.mem.WriteWord(fr.values[in.Addr], size, fr.values[in.Val])

	case ir.CopyAddr:
		elem := vm.elemType(body, in.Old)
		vm.mem.CopyBytes(fr.values[in.New], fr.values[in.Old], vm.layoutSize(elem))

	case ir.ConstInt:
		fr.values[in.Ret] = in.Val

	case ir.FuncRef:
		fr.values[in.Ret] = uint64(in.Func)

	case ir.Apply:
		args := make([]uint64, len(in.Args))
		for i, a := range in.Args {
			args[i] = fr.values[a]
		}
		rets := vm.RunFunc(ir.FuncId(fr.values[in.Func]), args)
		for i, r := range in.Rets {
			fr.values[r] = rets[i]
		}

	case ir.Intrinsic:
		vm.execIntrinsic(fr, in)

	default:
		panic(fmt.Sprintf("vm: unhandled instruction %T", instr))
	}
}

func (vm *VM) layoutSize(ty types.Type) uint64 {
	if types.IsVar(ty) {
		panic("vm: cannot size a type variable without runtime type metadata; generic scenarios run against internal/middle, not this interpreter")
	}
	return types.LayoutOf(ty, vm.ptrSize).Size
}

func (vm *VM) elemType(body *ir.Body, ptrVar ir.Var) types.Type {
	pt, ok := body.VarType(ptrVar).(types.Ptr)
	if !ok {
		panic("vm: operand is not a pointer")
	}
	return pt.Elem
}

func (vm *VM) execIntrinsic(fr *frame, in ir.Intrinsic) {
	a := fr.values[in.Args[0]]
	var b uint64
	if len(in.Args) > 1 {
		b = fr.values[in.Args[1]]
	}

	var out uint64
	switch in.Name {
	case "add_i32":
		out = a + b
	case "sub_i32":
		out = a - b
	case "mul_i32":
		out = a * b
	case "div_i32":
		out = a / b
	case "rem_i32":
		out = a % b
	case "eq_i32":
		out = boolU64(a == b)
	case "ne_i32":
		out = boolU64(a != b)
	case "lt_i32":
		out = boolU64(int32(a) < int32(b))
	case "le_i32":
		out = boolU64(int32(a) <= int32(b))
	case "gt_i32":
		out = boolU64(int32(a) > int32(b))
	case "ge_i32":
		out = boolU64(int32(a) >= int32(b))
	case "ptr_offset":
		panic("vm: ptr_offset requires element-type stride, not supported by this scalar-value interpreter")
	default:
		panic(fmt.Sprintf("vm: unknown intrinsic %q", in.Name))
	}
	fr.values[in.Rets[0]] = out
}

func boolU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
