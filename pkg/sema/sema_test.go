package sema_test

import (
	"strings"
	"testing"

	"imp.dev/compiler/pkg/diag"
	"imp.dev/compiler/pkg/impparse"
	"imp.dev/compiler/pkg/sema"
	"imp.dev/compiler/pkg/session"
	"imp.dev/compiler/pkg/token"
)

func tokenFor(name string) token.Token {
	return token.New(token.IDENTIFIER, name, 1, 1)
}

// annotateSource parses source and runs semantic annotation over it,
// returning the session for diagnostic inspection.
func annotateSource(t *testing.T, source string) *session.Session {
	t.Helper()

	sess := session.New()
	parser := impparse.NewParser(strings.NewReader(source), sess)
	root, err := parser.Parse()
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}
	sema.Annotate(sess.Sema, root)
	return sess
}

func hasCode(sess *session.Session, code diag.Code) bool {
	for _, d := range sess.Diag.All() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestAnnotateDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   diag.Code
	}{
		{
			name:   "redeclared scalar",
			source: `PROGRAM IS x, x BEGIN x := 1; END`,
			want:   diag.Redeclared,
		},
		{
			name:   "array with inverted bounds",
			source: `PROGRAM IS t[5:1], x BEGIN x := 1; END`,
			want:   diag.BadRange,
		},
		{
			name:   "undeclared identifier",
			source: `PROGRAM IS BEGIN x := 1; END`,
			want:   diag.Undeclared,
		},
		{
			name:   "undeclared procedure",
			source: `PROGRAM IS x BEGIN p(x); END`,
			want:   diag.Undeclared,
		},
		{
			name:   "assignment to a loop iterator",
			source: `PROGRAM IS s BEGIN FOR i FROM 1 TO 3 DO i := 5; ENDFOR s := 0; END`,
			want:   diag.ImmutableWrite,
		},
		{
			name: "call with too many arguments",
			source: `PROCEDURE p(a) IS BEGIN a := 1; END
			PROGRAM IS x BEGIN p(x, x); END`,
			want: diag.ArgCount,
		},
		{
			name: "array passed where a scalar formal is expected",
			source: `PROCEDURE p(a) IS BEGIN a := 1; END
			PROGRAM IS t[0:1] BEGIN p(t); END`,
			want: diag.ArgKind,
		},
		{
			name: "scalar passed where an array formal is expected",
			source: `PROCEDURE p(T t) IS BEGIN t[0] := 1; END
			PROGRAM IS x BEGIN p(x); END`,
			want: diag.ArgKind,
		},
		{
			name:   "array used without an index",
			source: `PROGRAM IS t[0:1], x BEGIN x := t; END`,
			want:   diag.ArgKind,
		},
		{
			name:   "scalar used with an index",
			source: `PROGRAM IS x, y BEGIN y := x[1]; END`,
			want:   diag.ArgKind,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			sess := annotateSource(t, tc.source)
			if !hasCode(sess, tc.want) {
				t.Fatalf("expected a %s diagnostic, got: %v", tc.want, sess.Diag.Strings())
			}
		})
	}
}

func TestAnnotateCleanProgramHasNoDiagnostics(t *testing.T) {
	sess := annotateSource(t, `
	PROCEDURE swap(a, b) IS tmp BEGIN
		tmp := a;
		a := b;
		b := tmp;
	END
	PROGRAM IS x, y, t[1:3], i BEGIN
		x := 1;
		y := 2;
		swap(x, y);
		FOR i FROM 1 TO 3 DO t[i] := i; ENDFOR
		WRITE t[2];
	END`)

	if sess.Diag.HasErrors() {
		t.Fatalf("expected a clean annotation, got: %v", sess.Diag.Strings())
	}
}

func TestInternNumberDeduplicatesValues(t *testing.T) {
	sess := session.New()

	first := sess.Sema.InternNumber(42)
	again := sess.Sema.InternNumber(42)
	other := sess.Sema.InternNumber(-42)

	if first != again {
		t.Fatalf("the same literal was interned at two addresses: %d vs %d", first, again)
	}
	if first == other {
		t.Fatalf("distinct literals share address %d", first)
	}
	if first < sema.UserBase {
		t.Fatalf("literal address %d collides with the reserved scratch cells", first)
	}
}

func TestDeclareArrayBiasesAddressByLowerBound(t *testing.T) {
	sess := session.New()
	sess.Sema.BeginScope()

	tok := tokenFor("t")
	sess.Sema.DeclareArray(&tok, 5, 7)

	// Element 5 must land on the first allocated cell.
	if got := tok.Address + 5; got != sema.UserBase {
		t.Fatalf("element 5 resolves to cell %d, want %d", got, sema.UserBase)
	}

	// The next declaration must start past the array's three cells.
	next := tokenFor("u")
	sess.Sema.DeclareScalar(&next)
	if next.Address != sema.UserBase+3 {
		t.Fatalf("next allocation landed on %d, want %d", next.Address, sema.UserBase+3)
	}
}
