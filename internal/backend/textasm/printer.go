package textasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/lowlangc/lowlangc/internal/backend"
)

// Printer writes a Program out as GNU `as`-syntax relocatable
// assembly text: a .data section holding VWTs/type-info/constants with
// .quad relocations, and a .text section holding each function as a
// labeled, commented pseudo-instruction listing.
//
// Grounded on pkg/asm/printer.go's PrintProgram: the section
// structure, .global/.quad/.byte directive choices and the
// GNU-as comment style (";" here, matching this IR's own printer
// conventions rather than ARM64 "//") all follow that file.
type Printer struct {
	w io.Writer
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

// Print writes prog in full.
func (p *Printer) Print(prog *Program) {
	if len(prog.imports) > 0 {
		names := make([]string, 0, len(prog.imports))
		for n := range prog.imports {
			names = append(names, n)
		}
		for _, n := range names {
			fmt.Fprintf(p.w, "\t.extern\t%s\n", n)
		}
		fmt.Fprintf(p.w, "\n")
	}

	if len(prog.Data) > 0 {
		fmt.Fprintf(p.w, "\t.data\n")
		for _, d := range prog.Data {
			p.printData(prog, d)
		}
		fmt.Fprintf(p.w, "\n")
	}

	fmt.Fprintf(p.w, "\t.text\n")
	for _, f := range prog.Funcs {
		p.printFunc(f)
	}
}

func (p *Printer) printData(prog *Program, d DataSym) {
	if d.Export {
		fmt.Fprintf(p.w, "\t.global\t%s\n", d.Name)
	}
	fmt.Fprintf(p.w, "%s:\n", d.Name)

	byReloc := make(map[uint64]string, len(d.Relocs))
	for _, r := range d.Relocs {
		byReloc[r.Offset] = r.Symbol
	}

	ps := prog.PtrSize
	for off := uint64(0); off < uint64(len(d.Bytes)); off += ps {
		if sym, ok := byReloc[off]; ok {
			fmt.Fprintf(p.w, "\t.quad\t%s\n", sym)
			continue
		}
		if off+ps > uint64(len(d.Bytes)) {
			// A trailing partial word (e.g. a two-byte constant).
			for _, b := range d.Bytes[off:] {
				fmt.Fprintf(p.w, "\t.byte\t%d\n", b)
			}
			break
		}
		v := prog.readWord(d.Bytes, off)
		fmt.Fprintf(p.w, "\t.quad\t%d\n", v)
	}
}

func (p *Program) readWord(buf []byte, offset uint64) uint64 {
	word := buf[offset : offset+p.PtrSize]
	var v uint64
	if p.Endianness == backend.BigEndian {
		for _, b := range word {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(word) - 1; i >= 0; i-- {
		v = v<<8 | uint64(word[i])
	}
	return v
}

func (p *Printer) printFunc(f PseudoFunc) {
	if f.Export {
		fmt.Fprintf(p.w, "\t.global\t%s\n", f.Name)
	}
	fmt.Fprintf(p.w, "%s: ; arity %d\n", f.Name, f.NParams)
	for _, b := range f.Blocks {
		fmt.Fprintf(p.w, ".%s(%s):\n", b.Label, strings.Join(b.Params, ", "))
		for _, op := range b.Ops {
			fmt.Fprintf(p.w, "\t%s\n", op)
		}
		if b.Term != "" {
			fmt.Fprintf(p.w, "\t%s\n", b.Term)
		}
	}
	fmt.Fprintf(p.w, "\n")
}
