package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raymyers/tiger-cc/pkg/allocate"
	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/ast"
	"github.com/raymyers/tiger-cc/pkg/canonize"
	"github.com/raymyers/tiger-cc/pkg/check"
	"github.com/raymyers/tiger-cc/pkg/coalesce"
	"github.com/raymyers/tiger-cc/pkg/flow"
	"github.com/raymyers/tiger-cc/pkg/fold"
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/lexer"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/parser"
	"github.com/raymyers/tiger-cc/pkg/tile"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Diagnostic flags for dumping intermediate representations
var (
	dLex      bool
	dParse    bool
	dType     bool
	dCanonize bool
	dFold     bool
	dReorder  bool
	dTile     bool
)

// Optimization toggles
var (
	noConstantFold bool
	noMoveCoalesce bool
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "tiger-cc [files]",
		Short: "tiger-cc is a Tiger compiler targeting x86-64",
		Long: `tiger-cc compiles Tiger source files to x86-64 assembly in AT&T
syntax. Each phase of the pipeline can dump its output next to the
source file for inspection.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				cmd.Help()
				return nil
			}
			var failed error
			for _, filename := range args {
				if err := compile(filename, errOut); err != nil {
					fmt.Fprintf(errOut, "tiger-cc: %s: %v\n", filename, err)
					failed = err
				}
			}
			return failed
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().BoolVarP(&dLex, "lex", "l", false, "Dump lexed tokens")
	rootCmd.Flags().BoolVarP(&dParse, "parse", "p", false, "Dump parsed syntax tree")
	rootCmd.Flags().BoolVarP(&dType, "type", "t", false, "Dump type checking result")
	rootCmd.Flags().BoolVar(&dCanonize, "canonize", false, "Dump canonical IR")
	rootCmd.Flags().BoolVar(&dFold, "fold", false, "Dump constant-folded IR")
	rootCmd.Flags().BoolVar(&dReorder, "reorder", false, "Dump trace-scheduled IR")
	rootCmd.Flags().BoolVar(&dTile, "tile", false, "Dump abstract assembly")
	rootCmd.Flags().BoolVar(&noConstantFold, "o-no-cf", false, "Disable constant folding")
	rootCmd.Flags().BoolVar(&noMoveCoalesce, "o-no-mc", false, "Disable move coalescing")

	return rootCmd
}

// withExt replaces filename's extension.
func withExt(filename, ext string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return base + "." + ext
}

// writeDump writes one phase's diagnostic output next to the source.
func writeDump(filename, ext string, print func(io.Writer)) error {
	f, err := os.Create(withExt(filename, ext))
	if err != nil {
		return err
	}
	defer f.Close()
	print(f)
	return nil
}

// compile runs the full pipeline over one source file.
func compile(filename string, errOut io.Writer) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	source := string(src)

	if dLex {
		if err := writeDump(filename, "lexed", func(w io.Writer) {
			dumpTokens(w, source)
		}); err != nil {
			return err
		}
	}

	p := parser.New(lexer.New(source))
	program, diags := p.Parse()
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(errOut, "%s:%v\n", filename, d)
		}
		return diags[0]
	}

	if dParse {
		if err := writeDump(filename, "parsed", func(w io.Writer) {
			ast.NewPrinter(w).PrintExp(program)
		}); err != nil {
			return err
		}
	}

	unit, diagErr := check.Check(program)
	if diagErr != nil {
		fmt.Fprintf(errOut, "%s:%v\n", filename, diagErr)
		return diagErr
	}

	if dType {
		if err := writeDump(filename, "typed", func(w io.Writer) {
			fmt.Fprintln(w, "Valid Tiger Program")
		}); err != nil {
			return err
		}
	}

	unit = canonize.Canonize(unit)
	if dCanonize {
		if err := dumpIR(filename, "canonized", unit); err != nil {
			return err
		}
	}

	if !noConstantFold {
		unit = fold.Fold(unit)
		if dFold {
			if err := dumpIR(filename, "folded", unit); err != nil {
				return err
			}
		}
	}

	unit = flow.Reorder(unit)
	if dReorder {
		if err := dumpIR(filename, "reordered", unit); err != nil {
			return err
		}
	}

	tiled := tile.Tile(unit)
	if dTile {
		if err := writeDump(filename, "tiled", func(w io.Writer) {
			asm.NewPrinter[operand.Temp](w).PrintUnit(&tiled)
		}); err != nil {
			return err
		}
	}

	if !noMoveCoalesce {
		tiled = coalesce.Coalesce(tiled)
	}

	allocated := allocate.Allocate(tiled, allocate.NewTrivial)

	if !noMoveCoalesce {
		allocated = coalesce.Coalesce(allocated)
	}

	return writeDump(filename, "s", func(w io.Writer) {
		asm.NewPrinter[operand.Reg](w).PrintUnit(&allocated)
	})
}

func dumpIR(filename, ext string, unit ir.Unit) error {
	return writeDump(filename, ext, func(w io.Writer) {
		ir.NewPrinter(w).PrintUnit(&unit)
	})
}

// dumpTokens lexes the source from scratch and writes one token per line.
func dumpTokens(w io.Writer, source string) {
	l := lexer.New(source)
	for {
		tok := l.NextToken()
		if tok.Type == lexer.TokenEOF {
			break
		}
		fmt.Fprintf(w, "%d:%d %v %q\n", tok.Line, tok.Column, tok.Type, tok.Literal)
	}
}
