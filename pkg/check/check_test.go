package check

import (
	"strings"
	"testing"

	"github.com/raymyers/tiger-cc/pkg/ast"
	"github.com/raymyers/tiger-cc/pkg/diag"
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/lexer"
	"github.com/raymyers/tiger-cc/pkg/parser"
)

func parse(t *testing.T, input string) ast.Exp {
	t.Helper()
	p := parser.New(lexer.New(input))
	exp, errs := p.Parse()
	if len(errs) > 0 {
		t.Fatalf("parse errors: %v", errs)
	}
	return exp
}

func checkOK(t *testing.T, input string) ir.Unit {
	t.Helper()
	unit, err := Check(parse(t, input))
	if err != nil {
		t.Fatalf("unexpected semantic error: %v", err)
	}
	return unit
}

func checkErr(t *testing.T, input string) *diag.Error {
	t.Helper()
	_, err := Check(parse(t, input))
	if err == nil {
		t.Fatalf("expected semantic error for %q", input)
	}
	if err.Kind != diag.Semantic {
		t.Errorf("expected semantic kind, got %v", err.Kind)
	}
	return err
}

func TestCheckValidPrograms(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"print literal", `print("hello\n")`},
		{"arithmetic let", `let var x := 3 + 4 * 2 in printi(x) end`},
		{"recursion", `let function fact(n: int): int = if n = 0 then 1 else n * fact(n - 1) in printi(fact(6)) end`},
		{"array", `let type intArray = array of int var a := intArray[10] of 0 in (for i := 0 to 9 do a[i] := i; printi(a[9])) end`},
		{"recursive record", `let type list = { head: int, tail: list } var l := list { head = 1, tail = list { head = 2, tail = nil } } in printi(l.tail.head) end`},
		{"nested function", `let function outer() = let var x := 5 function inner() = printi(x) in inner() end in outer() end`},
		{"mutual recursion", `let function even(n: int): int = if n = 0 then 1 else odd(n - 1) function odd(n: int): int = if n = 0 then 0 else even(n - 1) in printi(even(10)) end`},
		{"string compare", `let var a := "x" in printi(a = "y") end`},
		{"while break", `while 1 do break`},
		{"logical operators", `printi(1 & 0 | 1)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkOK(t, tt.input)
		})
	}
}

func TestCheckSemanticErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unbound variable", `x`, "unbound variable"},
		{"unbound function", `f()`, "unbound function"},
		{"unbound type", `let var x: mystery := 3 in x end`, "unbound type"},
		{"break outside loop", `break`, "break outside of loop"},
		{"argument count", `printi(1, 2)`, "expects 1 arguments"},
		{"argument type", `printi("s")`, "argument type mismatch"},
		{"if guard", `if "s" then printi(1)`, "guard must be an integer"},
		{"if branches", `printi(if 1 then 2 else "s")`, "branches disagree"},
		{"if value without else", `if 1 then 2`, "cannot produce a value"},
		{"while body value", `while 1 do 2`, "cannot produce a value"},
		{"for bound", `for i := "a" to 9 do printi(i)`, "bound must be an integer"},
		{"nil inference", `let var x := nil in printi(0) end`, "cannot infer"},
		{"nil equality", `printi(nil = nil)`, "cannot compare nil"},
		{"var mismatch", `let var x: int := "s" in printi(x) end`, "variable type mismatch"},
		{"not a record", `let var x := 3 in x.f end`, "not a record"},
		{"not an array", `let var x := 3 in x[0] end`, "not an array"},
		{"assignment mismatch", `let var x := 3 in x := "s" end`, "assignment type mismatch"},
		{"duplicate types", `let type a = int type a = string in 0 end`, "conflicting declarations"},
		{"duplicate functions", `let function f() = () function f() = () in f() end`, "conflicting declarations"},
		{"function body type", `let function f(): int = "s" in f() end`, "body type mismatch"},
		{"cyclic type", `let type a = b type b = a var x: a := 0 in 0 end`, "cyclic type"},
		{"unit operand", `printi(1) + 2`, "cannot be unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkErr(t, tt.input)
			if !strings.Contains(err.Message, tt.want) {
				t.Errorf("expected message containing %q, got %q", tt.want, err.Message)
			}
		})
	}
}

func TestCheckNominalTypes(t *testing.T) {
	// Two structurally identical record types are distinct
	checkErr(t, `
let
  type a = { v: int }
  type b = { v: int }
  var x := a { v = 1 }
  var y: b := x
in 0 end`)

	// A name alias refers to the same type
	checkOK(t, `
let
  type a = { v: int }
  type b = a
  var x := a { v = 1 }
  var y: b := x
in printi(y.v) end`)
}

func TestCheckUnitShape(t *testing.T) {
	unit := checkOK(t, `let function f(): int = 1 in printi(f()) end`)
	// One function for f, one for main
	if len(unit.Functions) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(unit.Functions))
	}
	main := unit.Functions[1]
	if main.Label.String() != "main" {
		t.Errorf("expected main last, got %v", main.Label)
	}
}

func TestCheckStringData(t *testing.T) {
	unit := checkOK(t, `(print("a"); print("b"))`)
	if len(unit.Data) != 2 {
		t.Fatalf("expected 2 data entries, got %d", len(unit.Data))
	}
	if unit.Data[0].Contents != "a" || unit.Data[1].Contents != "b" {
		t.Errorf("unexpected data contents: %#v", unit.Data)
	}
}

func TestEscapeAnalysis(t *testing.T) {
	// x is captured by inner, so it escapes; y is not
	exp := parse(t, `
let
  function outer() =
    let
      var x := 5
      var y := 6
      function inner() = printi(x)
    in inner(); printi(y) end
in outer() end`)
	Escape(exp)

	let := exp.(*ast.LetExp)
	outer := let.Decs[0].(*ast.FunDecs).Funs[0]
	inner := outer.Body.(*ast.LetExp)
	x := inner.Decs[0].(*ast.VarDec)
	y := inner.Decs[1].(*ast.VarDec)
	if !x.Escape {
		t.Errorf("expected x to escape")
	}
	if y.Escape {
		t.Errorf("expected y not to escape")
	}
}

func TestEscapedLocalGetsFrameSlot(t *testing.T) {
	unit := checkOK(t, `
let
  function outer() =
    let
      var x := 5
      function inner() = printi(x)
    in inner() end
in outer() end`)
	// inner, outer, main
	if len(unit.Functions) != 3 {
		t.Fatalf("expected 3 functions, got %d", len(unit.Functions))
	}
	var outer ir.Function
	found := false
	for _, fn := range unit.Functions {
		if strings.HasPrefix(fn.Label.String(), "outer") {
			outer = fn
			found = true
		}
	}
	if !found {
		t.Fatalf("outer function not emitted")
	}
	// Static link and x both escape
	if outer.Escapes != 2 {
		t.Errorf("expected 2 escaping slots in outer, got %d", outer.Escapes)
	}
}
