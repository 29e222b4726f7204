package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// E2EAsmTestSpec is a single end-to-end assembly test case
type E2EAsmTestSpec struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	Flags        []string `yaml:"flags,omitempty"` // extra CLI flags
	Expect       []string `yaml:"expect"`          // strings that must appear in output
	ExpectOrder  []string `yaml:"expect_order"`    // strings that must appear in this order
	ExpectNot    []string `yaml:"expect_not"`      // strings that must NOT appear in output
	Skip         string   `yaml:"skip,omitempty"`  // reason to skip this test
}

// E2EAsmTestFile is the e2e_asm.yaml file structure
type E2EAsmTestFile struct {
	Tests []E2EAsmTestSpec `yaml:"tests"`
}

func loadE2ETests(t *testing.T) []E2EAsmTestSpec {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "e2e_asm.yaml"))
	if err != nil {
		t.Fatalf("reading fixtures: %v", err)
	}
	var file E2EAsmTestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		t.Fatalf("parsing fixtures: %v", err)
	}
	return file.Tests
}

func TestE2EAsm(t *testing.T) {
	for _, tc := range loadE2ETests(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			path := writeSource(t, tc.Input)
			args := append(append([]string{}, tc.Flags...), path)
			_, errOut, err := runCommand(t, args...)
			if err != nil {
				t.Fatalf("compile failed: %v\n%s", err, errOut)
			}

			asmBytes, err := os.ReadFile(withExt(path, "s"))
			if err != nil {
				t.Fatalf("assembly not written: %v", err)
			}
			output := string(asmBytes)

			for _, want := range tc.Expect {
				if !strings.Contains(output, want) {
					t.Errorf("missing %q in assembly:\n%s", want, output)
				}
			}

			pos := 0
			for _, want := range tc.ExpectOrder {
				idx := strings.Index(output[pos:], want)
				if idx == -1 {
					t.Errorf("missing %q (in order) in assembly:\n%s", want, output)
					break
				}
				pos += idx + len(want)
			}

			for _, not := range tc.ExpectNot {
				if strings.Contains(output, not) {
					t.Errorf("unexpected %q in assembly:\n%s", not, output)
				}
			}
		})
	}
}
