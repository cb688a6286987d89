package codegen_test

import (
	"strconv"
	"strings"
	"testing"

	"imp.dev/compiler/pkg/codegen"
	"imp.dev/compiler/pkg/impparse"
	"imp.dev/compiler/pkg/resolve"
	"imp.dev/compiler/pkg/sema"
	"imp.dev/compiler/pkg/session"
)

// compileSource runs the whole pipeline (parse, annotate, generate, resolve)
// over an Imp source string and returns the final VM-ASM listing.
func compileSource(t *testing.T, source string) string {
	t.Helper()

	sess := session.New()
	parser := impparse.NewParser(strings.NewReader(source), sess)
	root, err := parser.Parse()
	if err != nil {
		t.Fatalf("parsing failed: %v", err)
	}

	sema.Annotate(sess.Sema, root)
	resolved := resolve.Resolve(codegen.New(sess).Build(root), sess.Diag)
	if sess.Diag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sess.Diag.Strings())
	}
	return resolved
}

// runVM interprets a resolved VM-ASM listing and returns everything it PUT,
// consuming values from input on GET. Memory cell 0 is the accumulator (the
// generated TABLE lowering relies on that: `LOADI 0` dereferences the element
// address currently sitting in the accumulator). A step cap guards against a
// lowering bug turning into a hung test run.
func runVM(t *testing.T, asm string, input []int64) []int64 {
	t.Helper()

	lines := strings.Split(strings.TrimRight(asm, "\n"), "\n")
	mem := map[int]int64{}
	var out []int64

	for pc, steps := 0, 0; pc >= 0 && pc < len(lines); steps++ {
		if steps > 1_000_000 {
			t.Fatalf("execution did not halt within 1M steps:\n%s", asm)
		}

		fields := strings.Fields(lines[pc])
		op := fields[0]
		var arg int
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				t.Fatalf("line %d: bad operand %q", pc, fields[1])
			}
			arg = n
		}

		switch op {
		case "SET":
			mem[0] = int64(arg)
			pc++
		case "LOAD":
			mem[0] = mem[arg]
			pc++
		case "STORE":
			mem[arg] = mem[0]
			pc++
		case "LOADI":
			mem[0] = mem[int(mem[arg])]
			pc++
		case "STOREI":
			mem[int(mem[arg])] = mem[0]
			pc++
		case "ADD":
			mem[0] += mem[arg]
			pc++
		case "SUB":
			mem[0] -= mem[arg]
			pc++
		case "HALF":
			mem[0] >>= 1
			pc++
		case "GET":
			if len(input) == 0 {
				t.Fatalf("line %d: GET with no input left", pc)
			}
			mem[arg], input = input[0], input[1:]
			pc++
		case "PUT":
			out = append(out, mem[arg])
			pc++
		case "JUMP":
			pc += arg
		case "JPOS":
			if mem[0] > 0 {
				pc += arg
			} else {
				pc++
			}
		case "JZERO":
			if mem[0] == 0 {
				pc += arg
			} else {
				pc++
			}
		case "JNEG":
			if mem[0] < 0 {
				pc += arg
			} else {
				pc++
			}
		case "RTRN":
			pc = int(mem[arg])
		case "HALT":
			return out
		default:
			t.Fatalf("line %d: unknown instruction %q", pc, op)
		}
	}

	t.Fatalf("execution fell off the end of the program:\n%s", asm)
	return nil
}

func TestCompiledProgramsExecute(t *testing.T) {
	tests := []struct {
		name   string
		source string
		input  []int64
		want   []int64
	}{
		{
			name:   "assign and write",
			source: `PROGRAM IS n BEGIN n := 7; WRITE n; END`,
			want:   []int64{7},
		},
		{
			name:   "if else takes the then branch",
			source: `PROGRAM IS BEGIN IF 1 = 1 THEN WRITE 1; ELSE WRITE 0; ENDIF END`,
			want:   []int64{1},
		},
		{
			name:   "if else takes the else branch",
			source: `PROGRAM IS BEGIN IF 1 > 2 THEN WRITE 1; ELSE WRITE 0; ENDIF END`,
			want:   []int64{0},
		},
		{
			name: "for to sums one through five",
			source: `PROGRAM IS s, i BEGIN
				s := 0;
				FOR i FROM 1 TO 5 DO s := s + i; ENDFOR
				WRITE s;
			END`,
			want: []int64{15},
		},
		{
			name: "for downto sums five through one",
			source: `PROGRAM IS s, i BEGIN
				s := 0;
				FOR i FROM 5 DOWNTO 1 DO s := s + i; ENDFOR
				WRITE s;
			END`,
			want: []int64{15},
		},
		{
			name: "for to with an empty range never runs its body",
			source: `PROGRAM IS s, i BEGIN
				s := 0;
				FOR i FROM 5 TO 1 DO s := s + 1; ENDFOR
				WRITE s;
			END`,
			want: []int64{0},
		},
		{
			name: "while counts down",
			source: `PROGRAM IS n BEGIN
				n := 3;
				WHILE n > 0 DO WRITE n; n := n - 1; ENDWHILE
			END`,
			want: []int64{3, 2, 1},
		},
		{
			name: "repeat runs its body at least once",
			source: `PROGRAM IS n BEGIN
				n := 0;
				REPEAT n := n + 1; UNTIL n >= 3;
				WRITE n;
			END`,
			want: []int64{3},
		},
		{
			name:   "read echoes its input",
			source: `PROGRAM IS x BEGIN READ x; WRITE x; END`,
			input:  []int64{42},
			want:   []int64{42},
		},
		{
			name: "multiplication",
			source: `PROGRAM IS x BEGIN
				x := 6 * 7;    WRITE x;
				x := 0 - 6;
				x := x * 7;    WRITE x;
				x := 0 * 7;    WRITE x;
			END`,
			want: []int64{42, -42, 0},
		},
		{
			name: "floor division and modulo",
			source: `PROGRAM IS a, b, q, r BEGIN
				a := 0 - 7;
				b := 2;
				q := a / b;  WRITE q;
				r := a % b;  WRITE r;
				a := 7;
				q := a / b;  WRITE q;
				r := a % b;  WRITE r;
			END`,
			want: []int64{-4, 1, 3, 1},
		},
		{
			name: "division with a smaller dividend",
			source: `PROGRAM IS q, r BEGIN
				q := 2 / 3;  WRITE q;
				r := 2 % 3;  WRITE r;
			END`,
			want: []int64{0, 2},
		},
		{
			name: "division and modulo by zero yield zero",
			source: `PROGRAM IS x BEGIN
				x := 7 / 0;  WRITE x;
				x := 7 % 0;  WRITE x;
			END`,
			want: []int64{0, 0},
		},
		{
			name: "array elements index from their declared lower bound",
			source: `PROGRAM IS t[1:3], i BEGIN
				t[1] := 5;
				i := 2;
				t[i] := 6;
				WRITE t[1];
				WRITE t[i];
			END`,
			want: []int64{5, 6},
		},
		{
			name: "single element array round trips",
			source: `PROGRAM IS t[4:4] BEGIN
				t[4] := 9;
				WRITE t[4];
			END`,
			want: []int64{9},
		},
		{
			name: "procedure increments through a reference scalar",
			source: `PROCEDURE p(a) IS BEGIN a := a + 1; END
			PROGRAM IS x BEGIN
				x := 10;
				p(x);
				WRITE x;
			END`,
			want: []int64{11},
		},
		{
			name: "procedure writes through a reference array",
			source: `PROCEDURE fill(T t) IS BEGIN t[0] := 9; t[1] := 8; END
			PROGRAM IS tab[0:1] BEGIN
				fill(tab);
				WRITE tab[0];
				WRITE tab[1];
			END`,
			want: []int64{9, 8},
		},
		{
			name: "read into a reference formal stores through the caller's cell",
			source: `PROCEDURE readinto(a) IS BEGIN READ a; END
			PROGRAM IS x BEGIN
				readinto(x);
				WRITE x;
			END`,
			input: []int64{5},
			want:  []int64{5},
		},
		{
			name: "empty procedure body returns immediately",
			source: `PROCEDURE noop(a) IS BEGIN END
			PROGRAM IS x BEGIN
				x := 1;
				noop(x);
				WRITE x;
			END`,
			want: []int64{1},
		},
		{
			name: "procedure forwards its reference argument to another procedure",
			source: `PROCEDURE inc(a) IS BEGIN a := a + 1; END
			PROCEDURE twice(b) IS BEGIN inc(b); inc(b); END
			PROGRAM IS x BEGIN
				x := 0;
				twice(x);
				WRITE x;
			END`,
			want: []int64{2},
		},
		{
			name: "procedure called twice keeps working",
			source: `PROCEDURE bump(a) IS BEGIN a := a + 1; END
			PROGRAM IS x BEGIN
				x := 0;
				bump(x);
				bump(x);
				WRITE x;
			END`,
			want: []int64{2},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			asm := compileSource(t, tc.source)
			got := runVM(t, asm, tc.input)

			if len(got) != len(tc.want) {
				t.Fatalf("got output %v, want %v\nprogram:\n%s", got, tc.want, asm)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("output[%d] = %d, want %d\nprogram:\n%s", i, got[i], tc.want[i], asm)
				}
			}
		})
	}
}

// A literal that occurs several times in the source is materialized exactly
// once, in the constant prologue.
func TestRepeatedLiteralIsMaterializedOnce(t *testing.T) {
	asm := compileSource(t, `PROGRAM IS x BEGIN
		x := 9999;
		IF x = 9999 THEN WRITE 9999; ENDIF
	END`)

	if got := strings.Count(asm, "SET 9999\n"); got != 1 {
		t.Fatalf("literal 9999 materialized %d times, want 1:\n%s", got, asm)
	}
}

// Re-running the resolver over its own output must be a no-op: resolved text
// contains no labels or scratch markers left to rewrite.
func TestResolvedOutputIsAFixedPoint(t *testing.T) {
	asm := compileSource(t, `PROGRAM IS s, i BEGIN
		s := 0;
		FOR i FROM 1 TO 5 DO s := s + i; ENDFOR
		WRITE s;
	END`)

	sess := session.New()
	again := resolve.Resolve(asm, sess.Diag)
	if sess.Diag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", sess.Diag.Strings())
	}
	if again != asm {
		t.Fatalf("resolver is not idempotent:\nfirst:\n%s\nsecond:\n%s", asm, again)
	}
}
