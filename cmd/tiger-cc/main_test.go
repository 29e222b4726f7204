package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags() {
	dLex = false
	dParse = false
	dType = false
	dCanonize = false
	dFold = false
	dReorder = false
	dTile = false
	noConstantFold = false
	noMoveCoalesce = false
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeSource(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tig")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHelpWithNoArgs(t *testing.T) {
	out, _, err := runCommand(t)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "tiger-cc") {
		t.Errorf("expected help output, got %q", out)
	}
}

func TestMissingFile(t *testing.T) {
	_, errOut, err := runCommand(t, "no-such-file.tig")
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !strings.Contains(errOut, "no-such-file.tig") {
		t.Errorf("expected filename in error output, got %q", errOut)
	}
}

func TestCompileWritesAssembly(t *testing.T) {
	path := writeSource(t, `print("hello\n")`)
	_, _, err := runCommand(t, path)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	asmOut, err := os.ReadFile(withExt(path, "s"))
	if err != nil {
		t.Fatalf("assembly not written: %v", err)
	}
	for _, want := range []string{".globl main", "main:", "callq print", "retq"} {
		if !strings.Contains(string(asmOut), want) {
			t.Errorf("missing %q in assembly:\n%s", want, asmOut)
		}
	}
}

func TestSemanticErrorReporting(t *testing.T) {
	path := writeSource(t, `break`)
	_, errOut, err := runCommand(t, path)
	if err == nil {
		t.Fatalf("expected semantic error")
	}
	if !strings.Contains(errOut, "semantic error") {
		t.Errorf("expected diagnostic class in output, got %q", errOut)
	}
	if !strings.Contains(errOut, "break") {
		t.Errorf("expected message in output, got %q", errOut)
	}
}

func TestSyntaxErrorReporting(t *testing.T) {
	path := writeSource(t, `let var := 3`)
	_, errOut, err := runCommand(t, path)
	if err == nil {
		t.Fatalf("expected syntax error")
	}
	if !strings.Contains(errOut, "syntactic error") {
		t.Errorf("expected diagnostic class in output, got %q", errOut)
	}
}

func TestLaterFilesStillCompile(t *testing.T) {
	bad := writeSource(t, `break`)
	good := writeSource(t, `printi(1)`)
	_, _, err := runCommand(t, bad, good)
	if err == nil {
		t.Fatalf("expected overall failure")
	}
	if _, statErr := os.Stat(withExt(good, "s")); statErr != nil {
		t.Errorf("good file was not compiled: %v", statErr)
	}
}

func TestDumpFlags(t *testing.T) {
	path := writeSource(t, `let var x := 3 + 4 in printi(x) end`)
	_, _, err := runCommand(t,
		"-l", "-p", "-t", "--canonize", "--fold", "--reorder", "--tile", path)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	for _, ext := range []string{"lexed", "parsed", "typed", "canonized", "folded", "reordered", "tiled", "s"} {
		if _, err := os.Stat(withExt(path, ext)); err != nil {
			t.Errorf("dump .%s not written: %v", ext, err)
		}
	}

	lexed, _ := os.ReadFile(withExt(path, "lexed"))
	if !strings.Contains(string(lexed), "let") {
		t.Errorf("lexed dump missing tokens:\n%s", lexed)
	}
	typed, _ := os.ReadFile(withExt(path, "typed"))
	if !strings.Contains(string(typed), "Valid Tiger Program") {
		t.Errorf("typed dump wrong:\n%s", typed)
	}
}

func TestDisableConstantFolding(t *testing.T) {
	src := `let var x := 3 + 4 * 2 in printi(x) end`

	folded := writeSource(t, src)
	if _, _, err := runCommand(t, folded); err != nil {
		t.Fatal(err)
	}
	foldedAsm, _ := os.ReadFile(withExt(folded, "s"))
	if strings.Contains(string(foldedAsm), "imulq") {
		t.Errorf("folding left a multiply behind:\n%s", foldedAsm)
	}
	if !strings.Contains(string(foldedAsm), "$11") {
		t.Errorf("expected folded constant 11:\n%s", foldedAsm)
	}

	unfolded := writeSource(t, src)
	if _, _, err := runCommand(t, "--o-no-cf", unfolded); err != nil {
		t.Fatal(err)
	}
	unfoldedAsm, _ := os.ReadFile(withExt(unfolded, "s"))
	if !strings.Contains(string(unfoldedAsm), "imulq") {
		t.Errorf("expected multiply without folding:\n%s", unfoldedAsm)
	}
}

func TestDisableMoveCoalescing(t *testing.T) {
	src := `printi(42)`

	coalesced := writeSource(t, src)
	if _, _, err := runCommand(t, coalesced); err != nil {
		t.Fatal(err)
	}
	plain := writeSource(t, src)
	if _, _, err := runCommand(t, "--o-no-mc", plain); err != nil {
		t.Fatal(err)
	}

	coalescedAsm, _ := os.ReadFile(withExt(coalesced, "s"))
	plainAsm, _ := os.ReadFile(withExt(plain, "s"))
	coalescedMovs := strings.Count(string(coalescedAsm), "movq")
	plainMovs := strings.Count(string(plainAsm), "movq")
	if coalescedMovs >= plainMovs {
		t.Errorf("coalescing did not reduce moves: %d versus %d", coalescedMovs, plainMovs)
	}
}

func TestWithExt(t *testing.T) {
	if got := withExt("dir/file.tig", "s"); got != "dir/file.s" {
		t.Errorf("expected dir/file.s, got %q", got)
	}
	if got := withExt("file", "lexed"); got != "file.lexed" {
		t.Errorf("expected file.lexed, got %q", got)
	}
}
