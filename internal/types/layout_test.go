package types

import "testing"

func TestLayoutOfPrimitives(t *testing.T) {
	tests := []struct {
		name       string
		ty         Type
		wantSize   uint64
		wantAlign  uint64
		wantStride uint64
	}{
		{"i8", Int{Width: I8, Signed: true}, 1, 1, 1},
		{"i32", Int{Width: I32, Signed: true}, 4, 4, 4},
		{"i64", Int{Width: I64, Signed: false}, 8, 8, 8},
		{"isize-64", Int{Width: ISize, Signed: true}, 8, 8, 8},
		{"bool", Bool{}, 1, 1, 1},
		{"f32", Float{Width: F32}, 4, 4, 4},
		{"f64", Float{Width: F64}, 8, 8, 8},
		{"ptr", Ptr{Elem: Int{Width: I32, Signed: true}}, 8, 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := LayoutOf(tt.ty, 8)
			if l.Size != tt.wantSize {
				t.Errorf("size = %d, want %d", l.Size, tt.wantSize)
			}
			if l.Align != tt.wantAlign {
				t.Errorf("align = %d, want %d", l.Align, tt.wantAlign)
			}
			if l.Stride != tt.wantStride {
				t.Errorf("stride = %d, want %d", l.Stride, tt.wantStride)
			}
		})
	}
}

func TestLayoutOfVarPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected LayoutOf(Var) to panic, it did not")
		}
	}()

	LayoutOf(Var{Depth: 0, Index: 0}, 8)
}

func TestLayoutOfTupleOffsetsMonotonic(t *testing.T) {
	// (i8, i32, i8): field 0 at offset 0, field 1 rounds up to 4-byte
	// alignment, field 2 packed right after it; total size rounds up
	// to the max field alignment (4).
	ty := Tuple{Fields: []Type{
		Int{Width: I8, Signed: true},
		Int{Width: I32, Signed: true},
		Int{Width: I8, Signed: true},
	}}

	l := LayoutOf(ty, 8)
	offsets := l.Offsets()

	want := []uint64{0, 4, 8}
	if len(offsets) != len(want) {
		t.Fatalf("offsets = %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}

	// Offsets must be non-decreasing and fit within size.
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			t.Errorf("offsets not monotonically non-decreasing: %v", offsets)
		}
	}
	if offsets[len(offsets)-1] >= l.Size {
		t.Errorf("last offset %d does not fit within size %d", offsets[len(offsets)-1], l.Size)
	}
	if l.Size > l.Stride {
		t.Errorf("size %d exceeds stride %d", l.Size, l.Stride)
	}
	if l.Align == 0 || l.Align&(l.Align-1) != 0 {
		t.Errorf("align %d is not a power of two", l.Align)
	}
}

func TestLayoutOfDirectTaggedUnion(t *testing.T) {
	// Option<i32> = None | Some(i32).
	ty := Union{
		Name: "Option",
		Variants: []Variant{
			{Name: "None", Fields: nil},
			{Name: "Some", Fields: []Type{Int{Width: I32, Signed: true}}},
		},
	}

	l := LayoutOf(ty, 8)
	mv, ok := l.Variants.(MultipleVariants)
	if !ok {
		t.Fatalf("expected MultipleVariants, got %T", l.Variants)
	}
	if mv.TagField != 0 {
		t.Errorf("TagField = %d, want 0", mv.TagField)
	}
	if _, ok := mv.TagEncoding.(DirectTag); !ok {
		t.Errorf("TagEncoding = %T, want DirectTag", mv.TagEncoding)
	}

	some := mv.Variants[1]
	if len(some.Offsets()) != 1 || some.Offsets()[0] != 4 {
		t.Errorf("Some payload offset = %v, want [4]", some.Offsets())
	}
	if l.Size != 8 {
		t.Errorf("union size = %d, want 8", l.Size)
	}
}

func TestInternerIdentity(t *testing.T) {
	in := NewInterner()

	a := in.Intern(Int{Width: I32, Signed: true})
	b := in.Intern(Int{Width: I32, Signed: true})
	c := in.Intern(Int{Width: I64, Signed: true})

	if a != b {
		t.Errorf("structurally equal types interned to different handles: %v != %v", a, b)
	}
	if a == c {
		t.Errorf("structurally distinct types interned to the same handle")
	}
}
