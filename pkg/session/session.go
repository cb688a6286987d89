// Package session bundles the pieces of state a single compilation threads
// through every phase: the diagnostic sink, the symbol table and the
// monotonic node-id counter used to mint globally-unique codegen labels.
package session

import (
	"imp.dev/compiler/pkg/diag"
	"imp.dev/compiler/pkg/sema"
)

// Session owns every piece of state shared across lexing, parsing, semantic
// annotation, code generation and label resolution for one source file.
type Session struct {
	Diag *diag.Sink
	Sema *sema.Table

	nextNodeID int
}

// New returns a freshly initialized Session.
func New() *Session {
	sink := diag.New()
	return &Session{
		Diag: sink,
		Sema: sema.NewTable(sink),
	}
}

// NextNodeID hands out monotonically increasing node identifiers, used by
// pkg/impparse while building the AST so that pkg/codegen can derive
// collision-free label suffixes (e.g. "END_IF_42") from a node's ID alone.
func (s *Session) NextNodeID() int {
	id := s.nextNodeID
	s.nextNodeID++
	return id
}
