// Package intrinsics holds the process-wide, lazily-initialized,
// immutable table of built-in operation names to signature types
//. It is safe to read concurrently once initialized;
// the table itself is immutable after first access, mirroring
// ir/src/intrinsics.rs's SyncLazy<HashMap<&str, Ty>> and the fixed
// opcode catalogue shape of pkg/rtl/ast.go's Operation sum type.
package intrinsics

import (
	"sync"

	"github.com/lowlangc/lowlangc/internal/types"
)

var (
	once     sync.Once
	registry map[string]types.Type
)

// Lookup returns the signature type registered for name, lazily
// building the registry on first use. The returned bool is false if no
// intrinsic with that name exists.
func Lookup(name string) (types.Type, bool) {
	once.Do(initRegistry)
	ty, ok := registry[name]
	return ty, ok
}

func binI32(ret types.Type) types.Type {
	i32 := types.I32Signed()
	return types.Func{Sig: types.Signature{
		Params: []types.FuncParam{{Ty: i32}, {Ty: i32}},
		Rets:   []types.FuncParam{{Ty: ret}},
	}}
}

func initRegistry() {
	i32 := types.I32Signed()
	boolean := types.U8()
	isize := types.ISizeSigned()

	m := map[string]types.Type{
		"add_i32": binI32(i32),
		"sub_i32": binI32(i32),
		"mul_i32": binI32(i32),
		"div_i32": binI32(i32),
		"rem_i32": binI32(i32),
		"eq_i32":  binI32(boolean),
		"ne_i32":  binI32(boolean),
		"lt_i32":  binI32(boolean),
		"le_i32":  binI32(boolean),
		"gt_i32":  binI32(boolean),
		"ge_i32":  binI32(boolean),
	}

	// ptr_offset: forall T. (*T, isize) -> *T
	tVar := types.Var{Depth: 0, Index: 0}
	ptrOffsetSig := types.Func{Sig: types.Signature{
		Params: []types.FuncParam{{Ty: types.PointerTo(tVar)}, {Ty: isize}},
		Rets:   []types.FuncParam{{Ty: types.PointerTo(tVar)}},
	}}
	m["ptr_offset"] = types.Generic{
		Params: []types.GenericParam{{Name: "T"}},
		Body:   ptrOffsetSig,
	}

	registry = m
}
