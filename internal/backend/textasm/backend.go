package textasm

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/backend"
)

// Backend implements backend.Backend over a Program.
type Backend struct {
	prog *Program

	haveTrivial   bool
	copyTrivial   backend.FuncID
	moveTrivial   backend.FuncID
	copyMoveNop   backend.FuncID
	dropNop       backend.FuncID
}

// New creates a Backend targeting a fresh Program of the given pointer
// width and byte order.
func New(ptrSize uint64, endian backend.Endianness) *Backend {
	return &Backend{prog: NewProgram(ptrSize, endian)}
}

// Program returns the accumulated program, ready for Printer.Print.
func (b *Backend) Program() *Program { return b.prog }

func (b *Backend) PointerSize() uint64          { return b.prog.PtrSize }
func (b *Backend) Endianness() backend.Endianness { return b.prog.Endianness }

func (b *Backend) ImportData(name string) backend.DataID {
	b.prog.markImport(name)
	return backend.DataID(name)
}

func (b *Backend) ImportFn(name string, nparams int) backend.FuncID {
	b.prog.markImport(name)
	return backend.FuncID(name)
}

// AllocVWT emits an anonymous value-witness-table data symbol: three
// distinct pointer-width words (size, align, stride) followed by three
// relocated function-pointer words (copy_fn, move_fn, drop_fn).
func (b *Backend) AllocVWT(vwt backend.ValueWitnessTable) backend.DataID {
	ps := b.prog.PtrSize
	buf := make([]byte, vwtWordCount*ps)

	b.prog.writeWord(buf, 0*ps, vwt.Size)
	b.prog.writeWord(buf, 1*ps, vwt.Align)
	b.prog.writeWord(buf, 2*ps, vwt.Stride)

	b.prog.anonData++
	name := fmt.Sprintf("vwt$%d", b.prog.anonData)
	relocs := []Reloc{
		{Offset: 3 * ps, Symbol: string(vwt.CopyFn)},
		{Offset: 4 * ps, Symbol: string(vwt.MoveFn)},
		{Offset: 5 * ps, Symbol: string(vwt.DropFn)},
	}
	b.prog.Data = append(b.prog.Data, DataSym{Name: name, Bytes: buf, Relocs: relocs})
	return backend.DataID(name)
}

const vwtWordCount = 6

// AllocInfo emits a type-info data symbol: a relocated pointer to its
// VWT at word 0, a flags word at word 1.
func (b *Backend) AllocInfo(name string, export bool, vwt backend.DataID, flags uint64) backend.DataID {
	ps := b.prog.PtrSize
	buf := make([]byte, 2*ps)
	b.prog.writeWord(buf, 1*ps, flags)

	if name == "" {
		b.prog.anonData++
		name = fmt.Sprintf("info$%d", b.prog.anonData)
	}
	b.prog.Data = append(b.prog.Data, DataSym{
		Name:   name,
		Export: export,
		Bytes:  buf,
		Relocs: []Reloc{{Offset: 0, Symbol: string(vwt)}},
	})
	return backend.DataID(name)
}

// AllocConst emits a data symbol holding an already-materialized
// constant's bytes, applying each DataReloc as a symbol relocation.
func (b *Backend) AllocConst(name string, export bool, bytes []byte, relocs []backend.DataReloc) backend.DataID {
	if name == "" {
		b.prog.anonData++
		name = fmt.Sprintf("const$%d", b.prog.anonData)
	}
	rs := make([]Reloc, len(relocs))
	for i, r := range relocs {
		rs[i] = Reloc{Offset: r.Offset, Symbol: r.Symbol}
	}
	b.prog.Data = append(b.prog.Data, DataSym{Name: name, Export: export, Bytes: bytes, Relocs: rs})
	return backend.DataID(name)
}

func (b *Backend) MkFn(name string, export bool, nparams int, body func(backend.FnBuilder)) backend.FuncID {
	fb := newFnBuilder(b.prog, nparams)
	body(fb)
	// Backend finalization: seal all blocks, dead/unreachable-code
	// elimination is the native emitter's job once a real instruction
	// selector exists; this reference backend emits the block list as
	// built, at the level of fidelity this text emitter supports.
	b.prog.Funcs = append(b.prog.Funcs, PseudoFunc{
		Name:    name,
		Export:  export,
		NParams: nparams,
		Blocks:  fb.blocks,
	})
	return backend.FuncID(name)
}

func (b *Backend) CopyTrivial() backend.FuncID {
	b.ensureTrivialHelpers()
	return b.copyTrivial
}
func (b *Backend) MoveTrivial() backend.FuncID {
	b.ensureTrivialHelpers()
	return b.moveTrivial
}
func (b *Backend) CopyMoveNop() backend.FuncID {
	b.ensureTrivialHelpers()
	return b.copyMoveNop
}
func (b *Backend) DropNop() backend.FuncID {
	b.ensureTrivialHelpers()
	return b.dropNop
}

// ensureTrivialHelpers imports the four size-parameterized runtime
// helpers exactly once: a real runtime provides copy_trivial/
// move_trivial as a plain memcpy over (dst, src, size), and
// copy_move_nop/drop_nop as no-ops, used as the universal witnesses
// for this IR's plain-old-data types.
func (b *Backend) ensureTrivialHelpers() {
	if b.haveTrivial {
		return
	}
	b.copyTrivial = b.ImportFn("lowlang_rt_copy_trivial", 3)
	b.moveTrivial = b.ImportFn("lowlang_rt_move_trivial", 3)
	b.copyMoveNop = b.ImportFn("lowlang_rt_copy_move_nop", 3)
	b.dropNop = b.ImportFn("lowlang_rt_drop_nop", 2)
	b.haveTrivial = true
}
