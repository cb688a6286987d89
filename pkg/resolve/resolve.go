// Package resolve implements the post-processing pass that turns the
// symbolic VM-ASM pkg/codegen emits into the VM's actual numeric wire
// format: label declarations are stripped out, every JUMP/JPOS/JZERO/JNEG
// that targeted one is rewritten to the relative line offset the VM
// expects, and every `SET &N` scratch marker is rewritten to the absolute
// line number N lines past its own.
package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"imp.dev/compiler/pkg/diag"
)

var (
	labelPrefix = regexp.MustCompile(`^\*(\w+) `)
	jumpRef     = regexp.MustCompile(`^(JUMP|JPOS|JZERO|JNEG) \*(\w+)$`)
	setRel      = regexp.MustCompile(`^SET &(\d+)$`)
)

// Resolve runs the two-pass label fixup over assembly and returns the final
// VM-ASM text, one instruction per line. Any JUMP/JPOS/JZERO/JNEG whose
// target label was never declared is logged to sink as UNDEFINED_LABEL and
// left as a dangling symbolic reference in the output; callers should
// treat that as a hard failure (sink.HasErrors()) rather than feeding the
// result to a VM.
func Resolve(assembly string, sink *diag.Sink) string {
	lines, positions := stripLabels(assembly)

	for i, line := range lines {
		switch {
		case jumpRef.MatchString(line):
			m := jumpRef.FindStringSubmatch(line)
			op, label := m[1], m[2]
			target, ok := positions[label]
			if !ok {
				sink.Error(diag.UndefinedLabel, fmt.Sprintf("undefined label '%s'", label), nil)
				continue
			}
			lines[i] = fmt.Sprintf("%s %d", op, target-i)

		case setRel.MatchString(line):
			m := setRel.FindStringSubmatch(line)
			n, _ := strconv.Atoi(m[1])
			lines[i] = fmt.Sprintf("SET %d", i+n)
		}
	}

	var out strings.Builder
	for _, line := range lines {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}

// stripLabels splits assembly into physical lines, peels every leading
// "*NAME " declaration off each one (a line may carry more than one, when
// two control-flow constructs end at exactly the same instruction), and
// records the final line index each label name resolves to. A line that
// turns out to carry nothing but label declarations is dropped entirely
// and does not consume a line index.
func stripLabels(assembly string) ([]string, map[string]int) {
	raw := strings.Split(strings.TrimRight(assembly, "\n"), "\n")
	lines := make([]string, 0, len(raw))
	positions := map[string]int{}

	for _, rest := range raw {
		for {
			m := labelPrefix.FindStringSubmatch(rest)
			if m == nil {
				break
			}
			positions[m[1]] = len(lines)
			rest = rest[len(m[0]):]
		}
		if rest == "" {
			continue
		}
		lines = append(lines, rest)
	}

	return lines, positions
}
