// Package ir implements the typed, block-structured, SSA-style
// intermediate representation: modules, functions, bodies, basic
// blocks with block parameters, typed variables, instructions and
// terminators.
//
// Identifiers (FuncId, BodyId, Var, Block) are opaque indices into
// arenas owned by Module/Body - this is the same idiom as
// pkg/rtl/ast.go's Node/Reg int ids keyed into a Function's Code map,
// generalized here to own the arenas as slices on Module and Body so
// that cyclic references (a FuncRef naming a function that calls back)
// are expressed through indices, never pointers.
package ir

import "github.com/lowlangc/lowlangc/internal/types"

// FuncId identifies a function owned by a Module.
type FuncId int

// BodyId identifies a function body owned by a Module.
type BodyId int

// Var identifies a variable owned by a Body.
type Var int

// Block identifies a basic block owned by a Body.
type Block int

// ENTRY is the entry block of any Body (created first by DeclareBody).
const ENTRY Block = 0

// Linkage describes a function's visibility to the rest of the
// compilation unit / other units.
type Linkage int

const (
	LinkageLocal Linkage = iota
	LinkageImport
	LinkageExport
)

// Flags marks properties of a variable.
type Flags uint8

const (
	// EMPTY (no flags set).
	EMPTY Flags = 0
	// INDIRECT: the value lives behind a pointer because its type is
	// polymorphic.
	INDIRECT Flags = 1 << iota
	// RETURN: a synthetic out-parameter inserted for indirect returns.
	RETURN
	// IN: parameter is passed indirectly by the callee's convention.
	IN
	// OUT: return is passed indirectly by the callee's convention.
	OUT
)

// IsSet reports whether all bits of flag are present in f.
func (f Flags) IsSet(flag Flags) bool { return f&flag == flag }

// VarInfo is the per-variable metadata stored in a Body's variable
// table.
type VarInfo struct {
	Ty    types.Type
	Flags Flags
}

// Func is a function declared in a Module: linkage, name, signature
// type, and an optional body (absent for a declared-but-undefined
// import).
type Func struct {
	Linkage Linkage
	Name    string
	Sig     types.Type
	Body    *BodyId
}

// GenericParam names one generic parameter of a Body.
type GenericParam struct {
	Name string
}

// BlockData is one basic block of a Body: typed parameters (bound by
// the block's callers via Br/Switch), an ordered instruction list, and
// exactly one terminator once construction is complete.
type BlockData struct {
	Params []Var
	Instrs []Instr
	Term   Term
}

// Body owns a function's generic parameters, variable table and block
// table.
type Body struct {
	GenericParams []GenericParam
	Vars          []VarInfo
	Blocks        []BlockData
}

// VarType returns the declared type of v.
func (b *Body) VarType(v Var) types.Type { return b.Vars[v].Ty }

// Module owns all functions and bodies of a compilation unit.
type Module struct {
	Name  string
	Funcs []Func
	Bodies []Body
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// DeclareFunc allocates a new function declaration.
func (m *Module) DeclareFunc(name string, linkage Linkage, sig types.Type) FuncId {
	id := FuncId(len(m.Funcs))
	m.Funcs = append(m.Funcs, Func{Linkage: linkage, Name: name, Sig: sig})
	return id
}

// DefineFunc attaches a body to a previously declared function.
func (m *Module) DefineFunc(fn FuncId, body BodyId) {
	b := body
	m.Funcs[fn].Body = &b
}

// DeclareBody allocates a new, empty body (with its ENTRY block
// already created) and returns its id. Use Module.DefineBody to
// populate it.
func (m *Module) DeclareBody() BodyId {
	id := BodyId(len(m.Bodies))
	body := Body{Blocks: []BlockData{{}}} // ENTRY == Block(0)
	m.Bodies = append(m.Bodies, body)
	return id
}

// Body returns the body for id.
func (m *Module) Body(id BodyId) *Body { return &m.Bodies[id] }

// Func returns the function for id.
func (m *Module) Func(id FuncId) *Func { return &m.Funcs[id] }

// --- Instructions ---

// Instr is the interface implemented by every IR instruction.
type Instr interface {
	implInstr()
}

// CopyFlags marks a CopyAddr's take/init semantics.
type CopyFlags uint8

const (
	CopyEMPTY CopyFlags = 0
	CopyTAKE  CopyFlags = 1 << iota
	CopyINIT
)

func (f CopyFlags) IsSet(flag CopyFlags) bool { return f&flag == flag }

type StackAlloc struct {
	Ret Var
	Ty  types.Type
}

type StackFree struct {
	Addr Var
}

type BoxAlloc struct {
	Ret Var
	Ty  types.Type
}

type BoxFree struct {
	Boxed Var
}

type BoxAddr struct {
	Ret   Var
	Boxed Var
}

type Load struct {
	Ret  Var
	Addr Var
}

type Store struct {
	Val  Var
	Addr Var
}

type CopyAddr struct {
	Old   Var
	New   Var
	Flags CopyFlags
}

type ConstInt struct {
	Ret Var
	Val uint64
}

type FuncRef struct {
	Ret  Var
	Func FuncId
}

// Subst is one generic-argument substitution supplied to an Apply
// instruction.
type Subst = types.Type

type Apply struct {
	Rets  []Var
	Func  Var
	Subst []Subst
	Args  []Var
}

type Intrinsic struct {
	Name string
	Rets []Var
	Args []Var
}

func (StackAlloc) implInstr() {}
func (StackFree) implInstr()  {}
func (BoxAlloc) implInstr()   {}
func (BoxFree) implInstr()    {}
func (BoxAddr) implInstr()    {}
func (Load) implInstr()       {}
func (Store) implInstr()      {}
func (CopyAddr) implInstr()   {}
func (ConstInt) implInstr()   {}
func (FuncRef) implInstr()    {}
func (Apply) implInstr()      {}
func (Intrinsic) implInstr()  {}

// --- Terminators ---

// Term is the interface implemented by every terminator.
type Term interface {
	implTerm()
}

// BrTarget names a destination block and the values bound to its
// parameters - the SSA block-argument form.
type BrTarget struct {
	Block Block
	Args  []Var
}

type Unreachable struct{}

type Return struct {
	Ops []Var
}

type Br struct {
	To BrTarget
}

// SwitchCase is one case of a Switch terminator.
type SwitchCase struct {
	Val uint64
	To  BrTarget
}

type Switch struct {
	Pred    Var
	Cases   []SwitchCase
	Default BrTarget
}

func (Unreachable) implTerm() {}
func (Return) implTerm()      {}
func (Br) implTerm()          {}
func (Switch) implTerm()      {}
