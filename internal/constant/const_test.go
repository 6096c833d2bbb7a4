package constant

import (
	"testing"

	"github.com/lowlangc/lowlangc/internal/backend"
	"github.com/lowlangc/lowlangc/internal/backend/textasm"
	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// TestMaterializeOptionSome builds Option<i32> = None | Some(i32) and
// materializes the Some(7) case: tag byte 1, three bytes of padding to
// bring the i32 payload up to its own 4-byte alignment, then the
// little-endian payload itself.
func TestMaterializeOptionSome(t *testing.T) {
	option := types.Union{
		Name: "Option",
		Variants: []types.Variant{
			{Name: "None"},
			{Name: "Some", Fields: []types.Type{types.I32Signed()}},
		},
	}

	m := ir.NewModule("test")
	be := textasm.New(8, backend.LittleEndian)

	c := Variant{Idx: 1, Fields: []Const{Scalar{Val: 7}}}
	id, err := Materialize(m, be, "", false, c, option)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	sym := findData(t, be.Program(), string(id))
	want := []byte{0x01, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00}
	if !bytesEqual(sym.Bytes, want) {
		t.Errorf("Some(7) bytes = % x, want % x", sym.Bytes, want)
	}
	if len(sym.Relocs) != 0 {
		t.Errorf("expected no relocations for an all-scalar variant, got %v", sym.Relocs)
	}
}

// TestMaterializePtrToTuple materializes &"hi" modeled as a pointer to
// a two-byte tuple of u8 ('h'=104, 'i'=105): the outer symbol is a
// single pointer-width word relocated to a second, anonymous data
// symbol holding the two bytes.
func TestMaterializePtrToTuple(t *testing.T) {
	bytesTy := types.TupleOf(types.U8(), types.U8())

	m := ir.NewModule("test")
	be := textasm.New(8, backend.LittleEndian)

	c := Ptr{
		To:      Tuple{Fields: []Const{Scalar{Val: 104}, Scalar{Val: 105}}},
		Pointee: bytesTy,
	}
	id, err := Materialize(m, be, "", false, c, types.PointerTo(bytesTy))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	outer := findData(t, be.Program(), string(id))
	if uint64(len(outer.Bytes)) != be.PointerSize() {
		t.Fatalf("expected outer symbol to be one pointer-width word, got %d bytes", len(outer.Bytes))
	}
	if len(outer.Relocs) != 1 || outer.Relocs[0].Offset != 0 {
		t.Fatalf("expected a single relocation at offset 0, got %v", outer.Relocs)
	}

	pointee := findData(t, be.Program(), outer.Relocs[0].Symbol)
	want := []byte{104, 105}
	if !bytesEqual(pointee.Bytes, want) {
		t.Errorf("pointee bytes = % x, want % x", pointee.Bytes, want)
	}
}

func findData(t *testing.T, prog *textasm.Program, name string) textasm.DataSym {
	t.Helper()
	for _, d := range prog.Data {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("no data symbol named %q in program", name)
	return textasm.DataSym{}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
