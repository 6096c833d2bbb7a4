package textasm

import (
	"fmt"

	"github.com/lowlangc/lowlangc/internal/backend"
)

// loadKey identifies a cached load by the pointer value and byte
// offset it was read from.
type loadKey struct {
	ptr    backend.Value
	offset int64
}

// fnBuilder implements backend.FnBuilder over one PseudoFunc being
// built. It owns two of the three per-function caches assigns to
// the lowering engine: info materialization itself lives one level up
// in internal/middle (it only needs a type, not a per-function
// builder), but the load cache and the call-signature-arity cache are
// naturally per-function builder state, mirroring
// backend-clif/src/middle.rs's FnCtx fields of the same names.
type fnBuilder struct {
	prog *Program

	blocks  []PseudoBlock
	cur     int
	nextVal int

	loadCache map[loadKey]backend.Value
	sigCache  map[int]bool
}

func newFnBuilder(prog *Program, nparams int) *fnBuilder {
	fb := &fnBuilder{
		prog:      prog,
		loadCache: make(map[loadKey]backend.Value),
		sigCache:  make(map[int]bool),
	}
	params := make([]string, nparams)
	for i := range params {
		params[i] = fb.newVal().String()
	}
	fb.blocks = []PseudoBlock{{Label: "entry", Params: params}}
	return fb
}

func (fb *fnBuilder) newVal() backend.Value {
	v := backend.Value(fb.nextVal)
	fb.nextVal++
	return v
}

func (fb *fnBuilder) emit(line string) {
	b := &fb.blocks[fb.cur]
	b.Ops = append(b.Ops, line)
}

func (fb *fnBuilder) PtrSize() uint64 { return fb.prog.PtrSize }

func (fb *fnBuilder) Param(n int) backend.Value { return backend.Value(n) }

func (fb *fnBuilder) StackAlloc(size uint64) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = stack_alloc %d", v, size))
	return v
}

func (fb *fnBuilder) DynStackAlloc(size backend.Value) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = stack_alloc_dyn %s", v, size))
	return v
}

func (fb *fnBuilder) ConstInt(val uint64) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = const_int %d", v, val))
	return v
}

func (fb *fnBuilder) FnAddr(id backend.FuncID) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = fn_addr %s", v, id))
	return v
}

func (fb *fnBuilder) DataAddr(id backend.DataID) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = data_addr %s", v, id))
	return v
}

// Load is cached by (ptr, offset); Store conservatively invalidates
// every cached load, since this reference implementation tracks no alias
// information between distinct pointer values.
func (fb *fnBuilder) Load(ptr backend.Value, offset int64) backend.Value {
	key := loadKey{ptr, offset}
	if v, ok := fb.loadCache[key]; ok {
		return v
	}
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = load %s+%d", v, ptr, offset))
	fb.loadCache[key] = v
	return v
}

func (fb *fnBuilder) Store(ptr backend.Value, offset int64, val backend.Value) {
	fb.emit(fmt.Sprintf("store %s+%d, %s", ptr, offset, val))
	for k := range fb.loadCache {
		delete(fb.loadCache, k)
	}
}

func (fb *fnBuilder) binop(op string, a, b backend.Value) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = %s %s, %s", v, op, a, b))
	return v
}

func (fb *fnBuilder) Add(a, b backend.Value) backend.Value { return fb.binop("add", a, b) }
func (fb *fnBuilder) Sub(a, b backend.Value) backend.Value { return fb.binop("sub", a, b) }
func (fb *fnBuilder) Mul(a, b backend.Value) backend.Value { return fb.binop("mul", a, b) }
func (fb *fnBuilder) Div(a, b backend.Value) backend.Value { return fb.binop("div", a, b) }
func (fb *fnBuilder) Rem(a, b backend.Value) backend.Value { return fb.binop("rem", a, b) }

func (fb *fnBuilder) Icmp(op string, a, b backend.Value) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = icmp.%s %s, %s", v, op, a, b))
	return v
}

func (fb *fnBuilder) Offset(ptr, n backend.Value) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = offset %s, %s", v, ptr, n))
	return v
}

func (fb *fnBuilder) OffsetU64(ptr backend.Value, n uint64) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = offset %s, %d", v, ptr, n))
	return v
}

func (fb *fnBuilder) Memcopy(dst, src backend.Value, bytes uint64) {
	fb.emit(fmt.Sprintf("memcopy %s, %s, %d", dst, src, bytes))
}

func (fb *fnBuilder) Memmove(dst, src backend.Value, bytes uint64) {
	fb.emit(fmt.Sprintf("memmove %s, %s, %d", dst, src, bytes))
}

func (fb *fnBuilder) Conditional(cond, a, b backend.Value) backend.Value {
	v := fb.newVal()
	fb.emit(fmt.Sprintf("%s = conditional %s ? %s : %s", v, cond, a, b))
	return v
}

// Call emits an indirect call through a signature cached by arity
//: the first call of a given argument count notes the
// signature as newly registered; later calls of the same arity reuse
// it silently, mirroring FnCtx.sig_cache.
func (fb *fnBuilder) Call(fnPtr backend.Value, args []backend.Value) []backend.Value {
	arity := len(args)
	if !fb.sigCache[arity] {
		fb.emit(fmt.Sprintf("; sig(%d) cached", arity))
		fb.sigCache[arity] = true
	}
	ret := fb.newVal()
	fb.emit(fmt.Sprintf("%s = call %s(%s)", ret, fnPtr, joinValues(args)))
	return []backend.Value{ret}
}

func (fb *fnBuilder) CreateBlock() backend.BlockRef {
	id := backend.BlockRef(len(fb.blocks))
	fb.blocks = append(fb.blocks, PseudoBlock{Label: fmt.Sprintf("L%d", id)})
	return id
}

func (fb *fnBuilder) AppendBlockParam(block backend.BlockRef) backend.Value {
	v := fb.newVal()
	b := &fb.blocks[block]
	b.Params = append(b.Params, v.String())
	return v
}

func (fb *fnBuilder) SwitchToBlock(block backend.BlockRef) { fb.cur = int(block) }

func (fb *fnBuilder) Jump(block backend.BlockRef, args []backend.Value) {
	fb.blocks[fb.cur].Term = fmt.Sprintf("jump %s(%s)", fb.blocks[block].Label, joinValues(args))
}

func (fb *fnBuilder) BrZero(cond backend.Value, ifZero backend.BlockRef, zeroArgs []backend.Value, otherwise backend.BlockRef, otherArgs []backend.Value) {
	fb.blocks[fb.cur].Term = fmt.Sprintf("brz %s, %s(%s), %s(%s)",
		cond,
		fb.blocks[ifZero].Label, joinValues(zeroArgs),
		fb.blocks[otherwise].Label, joinValues(otherArgs))
}

func (fb *fnBuilder) Ret(ops []backend.Value) {
	fb.blocks[fb.cur].Term = fmt.Sprintf("ret %s", joinValues(ops))
}

func joinValues(vs []backend.Value) string {
	s := ""
	for i, v := range vs {
		if i > 0 {
			s += ", "
		}
		s += v.String()
	}
	return s
}
