// Package textasm is the reference Backend implementation: it emits a
// relocatable assembly-text representation rather than a binary object
// file.
//
// This mirrors the original CLI's own scope boundary precisely: its
// final stage is GNU `as`-syntax text handed to an external
// assembler/linker, not a binary object. Register allocation and
// instruction selection for the function bodies this backend emits
// are explicitly out of scope; what this package emits per function
// is therefore a readable three-address pseudo-instruction listing,
// not scheduled machine code, with real relocatable structure only for
// the data segment (VWTs, type-info records and materialized
// constants), which does require concrete byte layout and relocations.
package textasm

import "github.com/lowlangc/lowlangc/internal/backend"

// Reloc is a pointer-width relocation inside a DataSym's byte buffer:
// the word at Offset should be patched to hold the address of Symbol.
type Reloc struct {
	Offset uint64
	Symbol string
}

// DataSym is one emitted data symbol (VWT, type-info record, or
// materialized constant).
type DataSym struct {
	Name    string
	Export  bool
	Bytes   []byte
	Relocs  []Reloc
}

// PseudoFunc is one emitted function: a flat list of basic blocks in
// the block-argument SSA form the lowering engine produced, printed as
// commented pseudo-assembly rather than scheduled machine instructions
// (see package doc).
type PseudoFunc struct {
	Name    string
	Export  bool
	NParams int
	Blocks  []PseudoBlock
}

// PseudoBlock is one basic block of a PseudoFunc.
type PseudoBlock struct {
	Label  string
	Params []string
	Ops    []string
	Term   string
}

// Program accumulates every data symbol and function a lowering pass
// emits, plus the set of symbols referenced but never defined locally
// (runtime helpers, imported data) - these become `.extern` lines at
// print time.
type Program struct {
	PtrSize    uint64
	Endianness backend.Endianness

	Data  []DataSym
	Funcs []PseudoFunc

	imports  map[string]bool
	anonData int
}

// NewProgram creates an empty program targeting the given pointer
// width and byte order.
func NewProgram(ptrSize uint64, endian backend.Endianness) *Program {
	return &Program{PtrSize: ptrSize, Endianness: endian, imports: make(map[string]bool)}
}

func (p *Program) markImport(name string) { p.imports[name] = true }

// writeWord writes v as a PtrSize-byte word into buf at the given byte
// offset, honoring Endianness. Grounded on - and fixing - the
// double-write defect observed in the retrieved write_u64 helper: each
// of the three VWT scalar words (size, align, stride) is written from
// its own distinct value, never reusing an earlier word's bytes.
func (p *Program) writeWord(buf []byte, offset uint64, v uint64) {
	word := buf[offset : offset+p.PtrSize]
	if p.Endianness == backend.BigEndian {
		for i := range word {
			shift := uint(p.PtrSize-1-uint64(i)) * 8
			word[i] = byte(v >> shift)
		}
		return
	}
	for i := range word {
		word[i] = byte(v >> (uint(i) * 8))
	}
}
