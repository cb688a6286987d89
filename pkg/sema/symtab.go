// Package sema implements the lexically scoped symbol table and address
// allocator used to annotate the raw AST coming out of pkg/impparse.
//
// Imp has exactly two kinds of scope: the single global scope that backs the
// "main" block, and one flat scope per procedure body. Procedures are never
// nested and a procedure body cannot see another procedure's locals, so a
// lookup only ever searches the scope currently open plus the program-wide
// procedure table.
package sema

import (
	"imp.dev/compiler/pkg/diag"
	"imp.dev/compiler/pkg/token"
)

// Reserved scratch registers used by pkg/codegen while evaluating
// expressions and conditions; R4 is the canonical result register.
const (
	ScratchBase  = 1
	ScratchCount = 8
	// UserBase is the first address available to user declared variables,
	// numeric literals and procedure formals.
	UserBase = 10
)

// VarInfo is the resolved, address-bearing record backing one declared
// identifier (scalar, array, formal parameter or loop iterator).
type VarInfo struct {
	Tok     token.Token
	IsArray bool
	Lo, Hi  int64 // meaningful only when IsArray is true
}

// ProcEntry is the program-wide record of a declared procedure: its formal
// parameters, in declaration order, each already bound to an address inside
// that procedure's own scope.
type ProcEntry struct {
	Name    token.Token
	Formals []*VarInfo
}

type scope struct {
	vars map[string]*VarInfo
}

func newScope() *scope { return &scope{vars: map[string]*VarInfo{}} }

// Table is the compiler's symbol table plus linear address allocator. A new
// Table is created once per compilation (owned by the session) and reused
// across the main block and every procedure body, each opened with
// BeginScope and closed with EndScope.
type Table struct {
	sink    *diag.Sink
	next    int
	procs   map[string]*ProcEntry
	numbers map[int64]int
	current *scope
}

// NewTable returns a Table ready to annotate a fresh program. Diagnostics
// raised by Declare* methods are appended to sink rather than returned,
// matching the rest of the pipeline's best-effort-continuation policy.
func NewTable(sink *diag.Sink) *Table {
	return &Table{
		sink:    sink,
		next:    UserBase,
		procs:   map[string]*ProcEntry{},
		numbers: map[int64]int{},
	}
}

// BeginScope opens a fresh, empty scope (used for the main block and for
// each procedure body) and makes it the target of subsequent Declare calls.
func (t *Table) BeginScope() { t.current = newScope() }

// EndScope closes the currently open scope. Resolve calls after EndScope
// and before the next BeginScope will find nothing.
func (t *Table) EndScope() { t.current = nil }

func (t *Table) alloc(n int) int {
	base := t.next
	t.next += n
	return base
}

// DeclareScalar registers a scalar variable in the current scope, assigning
// it a fresh address. Redeclaring a name already present in the same scope
// is logged as a REDECLARED diagnostic and the original binding is kept.
func (t *Table) DeclareScalar(tok *token.Token) *VarInfo {
	if existing, ok := t.current.vars[tok.Lexeme]; ok {
		t.sink.Errorf(diag.Redeclared, tok, "identifier '%s' already declared", tok.Lexeme)
		return existing
	}
	tok.Address = t.alloc(1)
	tok.Role = token.RolePlain
	tok.Mutable = true
	info := &VarInfo{Tok: *tok}
	t.current.vars[tok.Lexeme] = info
	return info
}

// DeclareArray registers an array variable spanning the inclusive [lo, hi]
// index range, allocating hi-lo+1 contiguous cells. lo > hi is logged as a
// BAD_RANGE diagnostic; the array is still registered with a single cell so
// later lookups don't also fail with UNDECLARED.
func (t *Table) DeclareArray(tok *token.Token, lo, hi int64) *VarInfo {
	if existing, ok := t.current.vars[tok.Lexeme]; ok {
		t.sink.Errorf(diag.Redeclared, tok, "identifier '%s' already declared", tok.Lexeme)
		return existing
	}
	span := hi - lo + 1
	if lo > hi {
		t.sink.Errorf(diag.BadRange, tok, "array '%s' has invalid range [%d:%d]", tok.Lexeme, lo, hi)
		span = 1
	}
	// The recorded address is biased by -lo so that element i lives at
	// Address + i regardless of where the declared range starts.
	tok.Address = t.alloc(int(span)) - int(lo)
	tok.Role = token.RolePlain
	tok.Mutable = true
	info := &VarInfo{Tok: *tok, IsArray: true, Lo: lo, Hi: hi}
	t.current.vars[tok.Lexeme] = info
	return info
}

// DeclareFormal registers a procedure formal parameter in the current
// (procedure) scope. Formals are always passed by reference: the allocated
// cell holds the address of the caller's actual argument, not its value.
// isTable distinguishes an array-typed formal (role T_ARG) from a scalar
// one (role ARG).
func (t *Table) DeclareFormal(tok *token.Token, isTable bool) *VarInfo {
	if existing, ok := t.current.vars[tok.Lexeme]; ok {
		t.sink.Errorf(diag.Redeclared, tok, "formal parameter '%s' already declared", tok.Lexeme)
		return existing
	}
	tok.Address = t.alloc(1)
	tok.Mutable = true
	if isTable {
		tok.Role = token.RoleTArg
	} else {
		tok.Role = token.RoleArg
	}
	info := &VarInfo{Tok: *tok, IsArray: isTable}
	t.current.vars[tok.Lexeme] = info
	return info
}

// DeclareIterator registers a FOR loop's control variable. Iterators are
// immutable from inside the loop body: any direct assignment to one is
// caught later as an IMMUTABLE_WRITE diagnostic.
func (t *Table) DeclareIterator(tok *token.Token) *VarInfo {
	tok.Address = t.alloc(1)
	tok.Role = token.RolePlain
	tok.Mutable = false
	info := &VarInfo{Tok: *tok}
	t.current.vars[tok.Lexeme] = info
	return info
}

// Resolve looks up name in the currently open scope only. Procedures never
// see each other's locals, so there is no enclosing scope to fall back to.
func (t *Table) Resolve(tok *token.Token) (*VarInfo, bool) {
	if t.current == nil {
		t.sink.Errorf(diag.Undeclared, tok, "identifier '%s' used outside of any scope", tok.Lexeme)
		return nil, false
	}
	info, ok := t.current.vars[tok.Lexeme]
	if !ok {
		t.sink.Errorf(diag.Undeclared, tok, "undeclared identifier '%s'", tok.Lexeme)
		return nil, false
	}
	line, col := tok.Line, tok.Column
	*tok = info.Tok
	tok.Line, tok.Column = line, col // diagnostics point at the use site, not the declaration
	return info, true
}

// DeclareProc registers a procedure name and its already-annotated formals
// in the program-wide procedure table. Procedures share one flat namespace
// independent of variable scopes.
func (t *Table) DeclareProc(tok *token.Token, formals []*VarInfo) *ProcEntry {
	if _, ok := t.procs[tok.Lexeme]; ok {
		t.sink.Errorf(diag.Redeclared, tok, "procedure '%s' already declared", tok.Lexeme)
		return t.procs[tok.Lexeme]
	}
	tok.Role = token.RoleProc
	tok.Address = t.alloc(1) // holds the return address set by the caller's SET &3/STORE pair
	tok.Formals = make([]token.Token, len(formals))
	for i, f := range formals {
		tok.Formals[i] = f.Tok
	}
	entry := &ProcEntry{Name: *tok, Formals: formals}
	t.procs[tok.Lexeme] = entry
	return entry
}

// ResolveProc looks up a called procedure by name in the program-wide table.
func (t *Table) ResolveProc(tok *token.Token) (*ProcEntry, bool) {
	entry, ok := t.procs[tok.Lexeme]
	if !ok {
		t.sink.Errorf(diag.Undeclared, tok, "call to undeclared procedure '%s'", tok.Lexeme)
		return nil, false
	}
	return entry, true
}

// LookupProc is the diagnostic-free variant of ResolveProc, used by
// pkg/codegen during call emission: a missing callee was already reported
// during annotation and must not be reported a second time.
func (t *Table) LookupProc(name string) (*ProcEntry, bool) {
	entry, ok := t.procs[name]
	return entry, ok
}

// InternNumber returns the address backing the numeric literal value,
// allocating a fresh cell the first time that exact value is seen and
// reusing it for every subsequent occurrence in the program.
func (t *Table) InternNumber(value int64) int {
	if addr, ok := t.numbers[value]; ok {
		return addr
	}
	addr := t.alloc(1)
	t.numbers[value] = addr
	return addr
}

// InternedNumbers returns every distinct literal value interned so far,
// alongside its address, so pkg/codegen can emit the constant-building
// prologue once per program.
func (t *Table) InternedNumbers() map[int64]int {
	out := make(map[int64]int, len(t.numbers))
	for k, v := range t.numbers {
		out[k] = v
	}
	return out
}
