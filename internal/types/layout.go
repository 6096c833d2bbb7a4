package types

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/compileerr"
)

// FieldsShape describes how the fields of a concrete type are arranged
// in memory.
type FieldsShape interface {
	implFieldsShape()
}

// Primitive is the fields shape of a scalar type: no sub-fields.
type Primitive struct{}

// Arbitrary is the fields shape of a struct-like type: one offset per
// field, in source order. len(Offsets) always equals the field count,
// Offsets is non-decreasing, and Offsets[i]+fieldSize[i] <= Size.
type Arbitrary struct {
	Offsets []uint64
}

// Array is the fields shape of a homogeneous repeated type.
type Array struct {
	Stride uint64
	Count  uint64
}

func (Primitive) implFieldsShape() {}
func (Arbitrary) implFieldsShape() {}
func (Array) implFieldsShape()     {}

// TagEncoding describes how a tagged union's discriminant is stored.
type TagEncoding interface {
	implTagEncoding()
}

// DirectTag stores the discriminant in a dedicated field.
type DirectTag struct{}

// NicheTag steals a reserved bit-pattern of an existing field to encode
// the discriminant. Recognized by the type system but unsupported by
// the constant materializer.
type NicheTag struct {
	Field       int
	NicheStart  uint64
	VariantsLen uint64
}

func (DirectTag) implTagEncoding() {}
func (NicheTag) implTagEncoding()  {}

// Variants describes the case layout of a (possibly tagged-union) type.
type Variants interface {
	implVariants()
}

// NoVariants marks a type with no tagged-union structure.
type NoVariants struct{}

// SingleVariant marks a union with exactly one inhabited case (no tag
// needed at runtime).
type SingleVariant struct {
	Index int
}

// MultipleVariants is the general tagged-union case.
type MultipleVariants struct {
	TagField    int
	TagWidth    Integer
	TagEncoding TagEncoding
	Variants    []Layout
}

func (NoVariants) implVariants()       {}
func (SingleVariant) implVariants()    {}
func (MultipleVariants) implVariants() {}

// Layout is the computed memory layout of a concrete (non-Var) type.
type Layout struct {
	Size     uint64
	Align    uint64
	Stride   uint64
	Fields   FieldsShape
	Variants Variants
}

// alignUp rounds n up to the nearest multiple of align (align must be a
// power of two, or zero meaning "no alignment constraint").
// Grounded on pkg/cshmgen/expr.go's alignUp.
func alignUp(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) / align * align
}

func strideOf(size, align uint64) uint64 {
	return alignUp(size, align)
}

// LayoutOf computes the layout of a concrete type for a target whose
// pointer width is ptrSize bytes. It is pure for concrete types and
// panics for a type variable: the caller must have materialized
// runtime type metadata before reaching here.
func LayoutOf(ty Type, ptrSize uint64) Layout {
	switch t := ty.(type) {
	case Var:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("types: LayoutOf called on unresolved type variable %s; size/align/stride of a Var are only known at runtime", t)))

	case Int:
		size := integerBytes(t.Width, ptrSize)
		return Layout{Size: size, Align: size, Stride: size, Fields: Primitive{}, Variants: NoVariants{}}

	case Bool:
		return Layout{Size: 1, Align: 1, Stride: 1, Fields: Primitive{}, Variants: NoVariants{}}

	case Float:
		size := uint64(4)
		if t.Width == F64 {
			size = 8
		}
		return Layout{Size: size, Align: size, Stride: size, Fields: Primitive{}, Variants: NoVariants{}}

	case Ptr, Box, Func:
		return Layout{Size: ptrSize, Align: ptrSize, Stride: ptrSize, Fields: Primitive{}, Variants: NoVariants{}}

	case Tuple:
		return layoutOfFields(t.Fields, ptrSize)

	case Union:
		return layoutOfUnion(t, ptrSize)

	default:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("types: LayoutOf: unhandled type %T", ty)))
	}
}

func integerBytes(w Integer, ptrSize uint64) uint64 {
	switch w {
	case I8:
		return 1
	case I16:
		return 2
	case I32:
		return 4
	case I64:
		return 8
	case ISize:
		return ptrSize
	default:
		panic(compileerr.New(compileerr.IRMalformed, fmt.Sprintf("types: unknown integer width %v", w)))
	}
}

// layoutOfFields places fields in source order, each rounded up to its
// own alignment; the aggregate size is rounded up to the aggregate
// alignment (the max of the field alignments, floor 1).
// Grounded on pkg/cshmgen/expr.go's fieldOffset/alignofType loop,
// generalized from named struct fields to a plain field list.
func layoutOfFields(fields []Type, ptrSize uint64) Layout {
	offsets := make([]uint64, len(fields))
	var cursor uint64
	var maxAlign uint64 = 1

	for i, f := range fields {
		fl := LayoutOf(f, ptrSize)
		cursor = alignUp(cursor, fl.Align)
		offsets[i] = cursor
		cursor += fl.Size
		if fl.Align > maxAlign {
			maxAlign = fl.Align
		}
	}

	size := alignUp(cursor, maxAlign)

	return Layout{
		Size:     size,
		Align:    maxAlign,
		Stride:   strideOf(size, maxAlign),
		Fields:   Arbitrary{Offsets: offsets},
		Variants: NoVariants{},
	}
}

// tagWidthFor returns the narrowest integer width that can hold
// nVariants-1 as a discriminant.
func tagWidthFor(nVariants int) Integer {
	switch {
	case nVariants <= 1:
		return I8
	case nVariants <= 1<<8:
		return I8
	case nVariants <= 1<<16:
		return I16
	default:
		return I32
	}
}

// layoutOfUnion computes a Direct-encoded tagged union's layout: the
// tag occupies field 0, each variant's payload is laid out as its own
// Arbitrary shape, and the union's size is the max of the tag+variant
// sizes, padded to the union's alignment - the standard tagged-union
// layout rule also used by the constant materializer.
func layoutOfUnion(t Union, ptrSize uint64) Layout {
	if len(t.Variants) == 1 {
		payload := layoutOfFields(t.Variants[0].Fields, ptrSize)
		return Layout{
			Size:     payload.Size,
			Align:    payload.Align,
			Stride:   payload.Stride,
			Fields:   payload.Fields,
			Variants: SingleVariant{Index: 0},
		}
	}

	tagWidth := tagWidthFor(len(t.Variants))
	tagLayout := LayoutOf(Int{Width: tagWidth, Signed: false}, ptrSize)

	variantLayouts := make([]Layout, len(t.Variants))
	maxAlign := tagLayout.Align
	maxSize := tagLayout.Size

	for i, v := range t.Variants {
		vl := layoutOfFields(v.Fields, ptrSize)
		// The payload's own first field starts right after the tag,
		// rounded to the payload's alignment.
		payloadStart := alignUp(tagLayout.Size, vl.Align)
		offsets := make([]uint64, len(vl.Offsets()))
		for j, off := range vl.Offsets() {
			offsets[j] = payloadStart + off
		}
		variantLayouts[i] = Layout{
			Size:     payloadStart + vl.Size,
			Align:    vl.Align,
			Stride:   vl.Stride,
			Fields:   Arbitrary{Offsets: offsets},
			Variants: NoVariants{},
		}
		if vl.Align > maxAlign {
			maxAlign = vl.Align
		}
		if variantLayouts[i].Size > maxSize {
			maxSize = variantLayouts[i].Size
		}
	}

	size := alignUp(maxSize, maxAlign)

	return Layout{
		Size:   size,
		Align:  maxAlign,
		Stride: strideOf(size, maxAlign),
		Fields: Arbitrary{Offsets: []uint64{0}},
		Variants: MultipleVariants{
			TagField:    0,
			TagWidth:    tagWidth,
			TagEncoding: DirectTag{},
			Variants:    variantLayouts,
		},
	}
}

// Offsets returns the field offsets of an Arbitrary fields shape, or
// nil for any other shape.
func (l Layout) Offsets() []uint64 {
	if a, ok := l.Fields.(Arbitrary); ok {
		return a.Offsets
	}
	return nil
}

// FieldLayout returns the layout of the i-th field of a tuple/struct layout,
// reconstructed from its type (offsets alone don't carry field size;
// callers that need field layouts recompute them from the source
// type list, matching codegen_cranelift/const_.rs's layout.field(j)).
func FieldLayout(fields []Type, i int, ptrSize uint64) Layout {
	return LayoutOf(fields[i], ptrSize)
}

// Variant returns the layout of the idx-th variant of a tagged union.
func (l Layout) Variant(idx int) Layout {
	m, ok := l.Variants.(MultipleVariants)
	if !ok {
		panic(compileerr.New(compileerr.IRMalformed, "types: Variant called on a layout with no Multiple variants"))
	}
	return m.Variants[idx]
}
