package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompilesToCleanVmAsm(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "sum.mr")

	status := Handler([]string{"testdata/sum.imp", output}, map[string]string{})
	if status != 0 {
		t.Fatalf("expected exit 0, got %d", status)
	}

	compiled, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading compiled output: %v", err)
	}
	if strings.ContainsAny(string(compiled), "*&") {
		t.Fatalf("compiled output still has an unresolved label or scratch marker:\n%s", compiled)
	}
	if !strings.HasSuffix(string(compiled), "HALT\n") {
		t.Fatalf("expected compiled output to end with HALT, got:\n%s", compiled)
	}
}

func TestAppendsMrExtension(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "sum") // no extension

	status := Handler([]string{"testdata/sum.imp", output}, map[string]string{})
	if status != 0 {
		t.Fatalf("expected exit 0, got %d", status)
	}
	if _, err := os.Stat(output + ".mr"); err != nil {
		t.Fatalf("expected %s.mr to exist: %v", output, err)
	}
}

func TestRejectsNonImpInput(t *testing.T) {
	dir := t.TempDir()
	status := Handler([]string{"testdata/sum.imp.txt", filepath.Join(dir, "out.mr")}, map[string]string{})
	if status != 1 {
		t.Fatalf("expected exit 1 for a non-.imp input, got %d", status)
	}
}

func TestCompileErrorsExitTwoAndWriteNoOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "bad.mr")

	status := Handler([]string{"testdata/bad.imp", output}, map[string]string{})
	if status != 2 {
		t.Fatalf("expected exit 2 for an undeclared identifier, got %d", status)
	}
	if _, err := os.Stat(output); err == nil {
		t.Fatal("expected no output file to be written on a compile error")
	}
}

func TestLexerOnlyModeExitsZeroWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "sum.mr")

	status := Handler([]string{"testdata/sum.imp", output}, map[string]string{"t": ""})
	if status != 0 {
		t.Fatalf("expected exit 0 in lexer-only mode, got %d", status)
	}
	if _, err := os.Stat(output); err == nil {
		t.Fatal("expected lexer-only mode not to write an output file")
	}
}
