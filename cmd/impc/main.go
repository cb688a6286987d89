package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"imp.dev/compiler/pkg/ast"
	"imp.dev/compiler/pkg/codegen"
	"imp.dev/compiler/pkg/diag"
	"imp.dev/compiler/pkg/impparse"
	"imp.dev/compiler/pkg/resolve"
	"imp.dev/compiler/pkg/sema"
	"imp.dev/compiler/pkg/session"
)

var Description = strings.ReplaceAll(`
The Imp Compiler translates programs written in the Imp imperative language into
VM-ASM instructions for a simple register/memory virtual machine. It resolves
declarations and procedure calls, lowers every expression and control-flow
construct into VM-ASM and fixes up the resulting jump labels into the relative
offsets the virtual machine expects.
`, "\n", " ")

var ImpCompiler = cli.New(Description).
	WithArg(cli.NewArg("source", "The Imp (.imp) source file to compile")).
	WithArg(cli.NewArg("output", "The compiled VM-ASM (.mr) output file")).
	WithOption(cli.NewOption("t", "Lexer-only mode: print every token and exit").WithType(cli.TypeBool)).
	WithAction(Handler)

// Handler implements the CLI contract: parse, (optionally) dump tokens and
// stop, otherwise annotate, generate and resolve, writing the result only if
// the whole pipeline produced no diagnostics.
func Handler(args []string, options map[string]string) int {
	source := args[0]
	if filepath.Ext(source) != ".imp" {
		fmt.Printf("ERROR: input file '%s' must have a '.imp' extension\n", source)
		return 1
	}

	output := args[1]
	if filepath.Ext(output) != ".mr" {
		output += ".mr"
	}

	content, err := os.ReadFile(source)
	if err != nil {
		fmt.Printf("ERROR: unable to open input file: %s\n", err)
		return 1
	}

	sess := session.New()
	parser := impparse.NewParser(bytes.NewReader(content), sess)
	root, err := parser.Parse()
	if err != nil {
		sess.Diag.Errorf(diag.Parse, nil, "unable to complete 'parsing' pass: %s", err)
		for _, line := range sess.Diag.Strings() {
			fmt.Println(line)
		}
		return 2
	}

	if _, lexOnly := options["t"]; lexOnly {
		dumpTokens(root)
		return 0
	}

	sema.Annotate(sess.Sema, root)

	gen := codegen.New(sess)
	assembly := gen.Build(root)
	resolved := resolve.Resolve(assembly, sess.Diag)

	if sess.Diag.HasErrors() {
		for _, line := range sess.Diag.Strings() {
			fmt.Println(line)
		}
		return 2
	}

	if err := os.WriteFile(output, []byte(resolved), 0o644); err != nil {
		fmt.Printf("ERROR: unable to write output file: %s\n", err)
		return 1
	}

	return 0
}

// dumpTokens walks the parsed (not yet annotated) tree in source order and
// prints every token it carries, one per line. Address is still NoAddress
// and role/mutable are still at their zero values at this point since
// semantic annotation hasn't run, matching a lexer-only dump.
func dumpTokens(root *ast.Node) {
	var walk func(n *ast.Node)
	walk = func(n *ast.Node) {
		if n == nil {
			return
		}
		if n.Anchor.Kind != "" {
			fmt.Println(n.Anchor.String())
		}
		for _, extra := range n.Extra {
			fmt.Println(extra.String())
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)
}

func main() { os.Exit(ImpCompiler.Run(os.Args, os.Stdout)) }
