// Package diag implements the per-compilation diagnostic sink used by every
// later compiler phase to report errors without aborting the whole pipeline.
package diag

import (
	"fmt"
	"sync"

	"imp.dev/compiler/pkg/token"
)

// Code names one of the error categories the compiler can raise.
type Code string

const (
	Lex            Code = "LEX"
	Parse          Code = "PARSE"
	Undeclared     Code = "UNDECLARED"
	Redeclared     Code = "REDECLARED"
	BadRange       Code = "BAD_RANGE"
	ImmutableWrite Code = "IMMUTABLE_WRITE"
	ArgCount       Code = "ARG_COUNT"
	ArgKind        Code = "ARG_KIND"
	UndefinedLabel Code = "UNDEFINED_LABEL"
)

// Diagnostic is a single logged error, optionally anchored on a token.
type Diagnostic struct {
	Code    Code
	Message string
	Token   *token.Token
}

// String renders a Diagnostic as "ERROR: <message> - '<lexeme>' on line: <n>"
// when a token is attached, or the bare "ERROR: <message>" otherwise. Code
// is left out of the rendered text; it exists for callers that want to
// branch on diagnostic category, e.g. checking for UNDEFINED_LABEL.
func (d Diagnostic) String() string {
	if d.Token == nil {
		return fmt.Sprintf("ERROR: %s", d.Message)
	}
	return fmt.Sprintf("ERROR: %s - '%s' on line: %d", d.Message, d.Token.Lexeme, d.Token.Line)
}

// Sink is a mutex-guarded, append-only collector of Diagnostics shared
// across lexing, parsing, semantic annotation and code generation. A Sink
// is an explicit value owned by a Session rather than a package singleton,
// so that multiple compilations never share state.
type Sink struct {
	mu   sync.Mutex
	errs []Diagnostic
}

// New returns an empty Sink ready to use.
func New() *Sink {
	return &Sink{}
}

// Error logs a diagnostic anchored on tok. Pass a nil tok for diagnostics
// that aren't attributable to a single token (e.g. a missing main block).
func (s *Sink) Error(code Code, message string, tok *token.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, Diagnostic{Code: code, Message: message, Token: tok})
}

// Errorf is a convenience wrapper around Error that formats the message.
func (s *Sink) Errorf(code Code, tok *token.Token, format string, args ...any) {
	s.Error(code, fmt.Sprintf(format, args...), tok)
}

// HasErrors reports whether any diagnostic has been logged.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs) > 0
}

// All returns a copy of every diagnostic logged so far, in logging order.
func (s *Sink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.errs))
	copy(out, s.errs)
	return out
}

// Strings renders every diagnostic with Diagnostic.String, in logging order.
func (s *Sink) Strings() []string {
	all := s.All()
	out := make([]string, len(all))
	for i, d := range all {
		out[i] = d.String()
	}
	return out
}
