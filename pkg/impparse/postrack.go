package impparse

import "strings"

// posTracker recovers line/column information for the leaves of the parsed
// AST. goparsec's pc.Queryable only exposes a node's name/value/children,
// not its source position, so we walk the leaves in the same left-to-right
// order the parser visited them and re-locate each lexeme in the original
// source, advancing a cursor as we go. Visiting leaves out of source order
// will mis-locate them, so FromAST always descends through a production's
// children in grammar order.
type posTracker struct {
	src    []byte
	offset int
	line   int
	col    int
}

func newPosTracker(src []byte) *posTracker {
	return &posTracker{src: src, line: 1, col: 1}
}

// locate finds the next occurrence of lexeme at or after the cursor,
// advances the cursor past it, and returns the line/column the lexeme
// starts at.
func (pt *posTracker) locate(lexeme string) (line, col int) {
	idx := -1
	if pt.offset <= len(pt.src) {
		if rel := strings.Index(string(pt.src[pt.offset:]), lexeme); rel >= 0 {
			idx = pt.offset + rel
		}
	}
	if idx < 0 {
		idx = pt.offset
	}

	for i := pt.offset; i < idx && i < len(pt.src); i++ {
		if pt.src[i] == '\n' {
			pt.line++
			pt.col = 1
		} else {
			pt.col++
		}
	}

	startLine, startCol := pt.line, pt.col

	end := idx + len(lexeme)
	if end > len(pt.src) {
		end = len(pt.src)
	}
	for i := idx; i < end; i++ {
		if pt.src[i] == '\n' {
			pt.line++
			pt.col = 1
		} else {
			pt.col++
		}
	}
	pt.offset = end

	return startLine, startCol
}
