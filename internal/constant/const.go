// Package constant materializes compile-time constant values into
// backend data symbols: raw bytes laid out per the constant's type
// layout, with relocations for any nested function or data address.
//
// Grounded line-for-line on
// codegen_cranelift/src/const_.rs's alloc_const/rec: the recursive
// walk over (Const, Layout) pairs, the running byte-cursor that pads
// gaps between field offsets with zero bytes, and the refusal of a
// niche-encoded tagged union are carried over from that function,
// re-expressed against this repo's own types.Layout/backend.Backend
// rather than cranelift's DataContext. A niche-encoded union is
// reported as an *UnsupportedError rather than a panic.
package constant

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/backend"
	"github.com/lowlangc/lowlangc/internal/ir"
	"github.com/lowlangc/lowlangc/internal/types"
)

// Const is the interface implemented by every member of the closed set
// of constant-value kinds a materialized constant can be built from.
type Const interface {
	implConst()
}

// Undefined reserves layout.Size zero bytes without attaching any
// meaning to them (e.g. padding, or a value whose initial content does
// not matter).
type Undefined struct{}

// Scalar is a plain integer/bit-pattern payload, truncated to the
// layout's size.
type Scalar struct {
	Val uint64
}

// Addr is the address of a function, taken as a constant (e.g. a
// function pointer stored in a VWT or vtable-like structure).
type Addr struct {
	Func ir.FuncId
}

// Ptr is the address of another constant, itself materialized
// (recursively) into its own data symbol.
type Ptr struct {
	To     Const
	Pointee types.Type
}

// Tuple is a fixed-arity aggregate constant, one Const per field in
// source order.
type Tuple struct {
	Fields []Const
}

// Variant is one case of a tagged-union constant: the discriminant
// index plus the payload fields of that case.
type Variant struct {
	Idx    int
	Fields []Const
}

func (Undefined) implConst() {}
func (Scalar) implConst()    {}
func (Addr) implConst()      {}
func (Ptr) implConst()       {}
func (Tuple) implConst()     {}
func (Variant) implConst()   {}

// UnsupportedError reports a constant that names a layout shape this
// materializer cannot encode - currently only a niche-tagged union.
type UnsupportedError struct {
	Reason string
}

func (e *UnsupportedError) Error() string { return "constant: unsupported: " + e.Reason }

// ctx carries the state threaded through one top-level Materialize
// call: the module (to resolve function addresses by name) and the
// target backend/pointer width.
type ctx struct {
	m       *ir.Module
	be      backend.Backend
	ptrSize uint64
}

// Materialize lays out c (of type ty) into a byte buffer per ty's
// runtime layout and emits it as a (possibly anonymous) data symbol
// through be, returning its DataID. name == "" allocates an anonymous
// symbol; export controls the emitted symbol's visibility.
func Materialize(m *ir.Module, be backend.Backend, name string, export bool, c Const, ty types.Type) (backend.DataID, error) {
	cx := &ctx{m: m, be: be, ptrSize: be.PointerSize()}
	layout := types.LayoutOf(ty, cx.ptrSize)

	buf := make([]byte, 0, layout.Size)
	var relocs []backend.DataReloc

	if err := cx.rec(&buf, &relocs, c, ty, layout); err != nil {
		return "", err
	}
	if uint64(len(buf)) < layout.Size {
		buf = append(buf, make([]byte, layout.Size-uint64(len(buf)))...)
	}

	return cx.be.AllocConst(name, export, buf, relocs), nil
}

// rec appends c's bytes (materialized against ty/layout) to *buf,
// recording relocations in *relocs at the offset each was written.
func (cx *ctx) rec(buf *[]byte, relocs *[]backend.DataReloc, c Const, ty types.Type, layout types.Layout) error {
	switch v := c.(type) {
	case Undefined:
		*buf = append(*buf, make([]byte, layout.Size)...)

	case Scalar:
		*buf = append(*buf, cx.scalarBytes(v.Val, layout.Size)...)

	case Addr:
		*relocs = append(*relocs, backend.DataReloc{
			Offset: uint64(len(*buf)),
			Symbol: cx.m.Func(v.Func).Name,
		})
		*buf = append(*buf, make([]byte, cx.ptrSize)...)

	case Ptr:
		pointeeLayout := types.LayoutOf(v.Pointee, cx.ptrSize)
		pointeeBuf := make([]byte, 0, pointeeLayout.Size)
		var pointeeRelocs []backend.DataReloc
		if err := cx.rec(&pointeeBuf, &pointeeRelocs, v.To, v.Pointee, pointeeLayout); err != nil {
			return err
		}
		if uint64(len(pointeeBuf)) < pointeeLayout.Size {
			pointeeBuf = append(pointeeBuf, make([]byte, pointeeLayout.Size-uint64(len(pointeeBuf)))...)
		}
		id := cx.be.AllocConst("", false, pointeeBuf, pointeeRelocs)

		*relocs = append(*relocs, backend.DataReloc{Offset: uint64(len(*buf)), Symbol: string(id)})
		*buf = append(*buf, make([]byte, layout.Size)...)

	case Tuple:
		return cx.recTuple(buf, relocs, v.Fields, tupleFieldTypes(ty), layout)

	case Variant:
		return cx.recVariant(buf, relocs, v, ty, layout)

	default:
		return fmt.Errorf("constant: unhandled constant kind %T", c)
	}
	return nil
}

// recTuple lays out each field at its layout offset, padding the gap
// since the previous field's end with zero bytes (grounded on rec's
// `bytes.extend(vec![0; offset - i])` gap-fill).
func (cx *ctx) recTuple(buf *[]byte, relocs *[]backend.DataReloc, fields []Const, fieldTypes []types.Type, layout types.Layout) error {
	offsets := layout.Offsets()
	cursor := uint64(0)
	for j, f := range fields {
		fieldLayout := types.LayoutOf(fieldTypes[j], cx.ptrSize)
		pad := offsets[j] - cursor
		*buf = append(*buf, make([]byte, pad)...)
		cursor = offsets[j]

		sub := make([]byte, 0, fieldLayout.Size)
		var subRelocs []backend.DataReloc
		if err := cx.rec(&sub, &subRelocs, f, fieldTypes[j], fieldLayout); err != nil {
			return err
		}
		base := uint64(len(*buf))
		for _, r := range subRelocs {
			*relocs = append(*relocs, backend.DataReloc{Offset: base + r.Offset, Symbol: r.Symbol})
		}
		*buf = append(*buf, sub...)
		cursor += fieldLayout.Size
	}
	return nil
}

// recVariant lays out a Direct-tag-encoded union constant: the
// discriminant first, then each payload field at its variant-relative
// offset. A Niche-encoded union is rejected.
func (cx *ctx) recVariant(buf *[]byte, relocs *[]backend.DataReloc, v Variant, ty types.Type, layout types.Layout) error {
	mv, ok := layout.Variants.(types.MultipleVariants)
	if !ok {
		return fmt.Errorf("constant: Variant constant against a layout with no tagged-union structure")
	}
	if _, ok := mv.TagEncoding.(types.NicheTag); ok {
		return &UnsupportedError{Reason: "niche tag encoding is not supported by the constant materializer"}
	}

	un, ok := types.Unwrap(ty).(types.Union)
	if !ok {
		return fmt.Errorf("constant: Variant constant against a non-union type %T", ty)
	}

	tagLayout := types.LayoutOf(types.Int{Width: mv.TagWidth, Signed: false}, cx.ptrSize)
	if err := cx.rec(buf, relocs, Scalar{Val: uint64(v.Idx)}, types.Int{Width: mv.TagWidth, Signed: false}, tagLayout); err != nil {
		return err
	}

	variantLayout := layout.Variant(v.Idx)
	offsets := variantLayout.Offsets()
	fieldTypes := un.Variants[v.Idx].Fields
	cursor := tagLayout.Size

	for j, f := range v.Fields {
		fieldLayout := types.LayoutOf(fieldTypes[j], cx.ptrSize)
		pad := offsets[j] - cursor
		*buf = append(*buf, make([]byte, pad)...)
		cursor = offsets[j]

		sub := make([]byte, 0, fieldLayout.Size)
		var subRelocs []backend.DataReloc
		if err := cx.rec(&sub, &subRelocs, f, fieldTypes[j], fieldLayout); err != nil {
			return err
		}
		base := uint64(len(*buf))
		for _, r := range subRelocs {
			*relocs = append(*relocs, backend.DataReloc{Offset: base + r.Offset, Symbol: r.Symbol})
		}
		*buf = append(*buf, sub...)
		cursor += fieldLayout.Size
	}
	return nil
}

func tupleFieldTypes(ty types.Type) []types.Type {
	t, ok := types.Unwrap(ty).(types.Tuple)
	if !ok {
		panic(fmt.Sprintf("constant: Tuple constant against a non-tuple type %T", ty))
	}
	return t.Fields
}

// scalarBytes truncates val to size bytes laid out in the target's
// byte order (be.Endianness()), the same order the backend uses for
// the VWT/info words it writes itself (codegen_cranelift's
// `to_ne_bytes`, with the target as the "native" side).
func (cx *ctx) scalarBytes(val uint64, size uint64) []byte {
	out := make([]byte, size)
	bigEndian := cx.be.Endianness() == backend.BigEndian
	for i := range out {
		shift := uint(i) * 8
		if bigEndian {
			shift = uint(size-1-uint64(i)) * 8
		}
		out[i] = byte(val >> shift)
	}
	return out
}
