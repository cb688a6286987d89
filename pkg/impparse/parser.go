// Package impparse turns Imp source text into the shared pkg/ast tree.
//
// It is split into two phases: a
// parser-combinator pass that turns raw bytes into a generic traversable
// pc.Queryable AST (FromSource), followed by a DFS pass that turns that
// generic AST into pkg/ast's typed Node tree (FromAST). Semantic annotation
// (scopes, addresses, roles) is deliberately not done here: it's pkg/sema's
// job, run over the tree this package returns.
package impparse

import (
	"fmt"
	"io"
	"os"

	pc "github.com/prataprc/goparsec"

	"imp.dev/compiler/pkg/ast"
	"imp.dev/compiler/pkg/session"
)

// Parser drives the two-phase Imp parsing pipeline described above.
type Parser struct {
	reader io.Reader
	sess   *session.Session
}

// NewParser returns a Parser reading from r. sess supplies the monotonic
// node-id counter used to tag every ast.Node as it's built.
func NewParser(r io.Reader, sess *session.Session) Parser {
	return Parser{reader: r, sess: sess}
}

// Parse reads the whole input, parses it to a generic AST and then lowers
// that AST to the program's root ast.Node.
func (p *Parser) Parse() (*ast.Node, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, fmt.Errorf("cannot read from 'io.Reader': %w", err)
	}

	root, success := p.FromSource(content)
	if !success {
		return nil, fmt.Errorf("failed to parse AST from input content")
	}

	return p.FromAST(root, newPosTracker(content))
}

// FromSource scans the textual input and returns a traversable generic AST,
// honoring the PARSEC_DEBUG, EXPORT_AST and PRINT_AST debug env vars.
func (p *Parser) FromSource(source []byte) (pc.Queryable, bool) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		grammar.SetDebug()
	}

	root, _ := grammar.Parsewith(pProgramAll, pc.NewScanner(source))

	if os.Getenv("EXPORT_AST") != "" {
		file, _ := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER")))
		defer file.Close()
		file.Write([]byte(grammar.Dotstring("\"Imp AST\"")))
	}
	if os.Getenv("PRINT_AST") != "" {
		grammar.Prettyprint()
	}

	return root, root != nil && root.GetName() == "program_all"
}

// FromAST performs the DFS lowering from the generic parsed AST to the
// program's root ast.Node, threading pos through every leaf so each token
// carries its source line/column.
func (p *Parser) FromAST(root pc.Queryable, pos *posTracker) (*ast.Node, error) {
	return p.buildProgramAll(root, pos)
}

func (p *Parser) nextID() int { return p.sess.NextNodeID() }
