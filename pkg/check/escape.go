package check

import "github.com/raymyers/tiger-cc/pkg/ast"

// Escape runs escape analysis over a program, marking every variable,
// parameter, and for-loop index whose use crosses a function boundary.
// Escaping names are forced into frame slots instead of registers.
func Escape(exp ast.Exp) {
	escaped := make(map[string]int)
	escapeExp(0, escaped, exp)
}

// escapeName resolves the escape flag for a definition: the name escapes
// if it was used at a greater static depth than the definition's.
func escapeName(depth int, escaped map[string]int, name string, escape *bool) {
	if usage, ok := escaped[name]; ok {
		*escape = usage > depth
		delete(escaped, name)
	} else {
		*escape = false
	}
}

func escapeVar(depth int, escaped map[string]int, v ast.Var) {
	switch v := v.(type) {
	case *ast.SimpleVar:
		if usage, ok := escaped[v.Name]; !ok || depth > usage {
			escaped[v.Name] = depth
		}
	case *ast.FieldVar:
		escapeVar(depth, escaped, v.Rec)
	case *ast.IndexVar:
		escapeVar(depth, escaped, v.Arr)
		escapeExp(depth, escaped, v.Index)
	}
}

func escapeExp(depth int, escaped map[string]int, exp ast.Exp) {
	switch e := exp.(type) {
	case *ast.NilExp, *ast.IntExp, *ast.StrExp, *ast.BreakExp:
	case *ast.VarExp:
		escapeVar(depth, escaped, e.Var)
	case *ast.NegExp:
		escapeExp(depth, escaped, e.Exp)
	case *ast.CallExp:
		for _, arg := range e.Args {
			escapeExp(depth, escaped, arg)
		}
	case *ast.BinExp:
		escapeExp(depth, escaped, e.Lhs)
		escapeExp(depth, escaped, e.Rhs)
	case *ast.RecExp:
		for _, field := range e.Fields {
			escapeExp(depth, escaped, field.Exp)
		}
	case *ast.SeqExp:
		for _, inner := range e.Exps {
			escapeExp(depth, escaped, inner)
		}
	case *ast.AssignExp:
		escapeVar(depth, escaped, e.Var)
		escapeExp(depth, escaped, e.Exp)
	case *ast.IfExp:
		escapeExp(depth, escaped, e.Guard)
		escapeExp(depth, escaped, e.Then)
		if e.Else != nil {
			escapeExp(depth, escaped, e.Else)
		}
	case *ast.WhileExp:
		escapeExp(depth, escaped, e.Guard)
		escapeExp(depth, escaped, e.Body)
	case *ast.ForExp:
		escapeExp(depth, escaped, e.Lo)
		escapeExp(depth, escaped, e.Hi)
		escapeExp(depth, escaped, e.Body)
		escapeName(depth, escaped, e.Name, &e.Escape)
	case *ast.LetExp:
		// Later declarations see earlier ones, so visit them last-first:
		// every use is recorded before the defining declaration resolves
		escapeExp(depth, escaped, e.Body)
		for i := len(e.Decs) - 1; i >= 0; i-- {
			escapeDec(depth, escaped, e.Decs[i])
		}
	case *ast.ArrExp:
		escapeExp(depth, escaped, e.Size)
		escapeExp(depth, escaped, e.Init)
	}
}

func escapeDec(depth int, escaped map[string]int, dec ast.Dec) {
	switch d := dec.(type) {
	case *ast.FunDecs:
		// Function bodies run one static level deeper
		for _, fun := range d.Funs {
			escapeExp(depth+1, escaped, fun.Body)
			for _, arg := range fun.Args {
				escapeName(depth+1, escaped, arg.Name, &arg.Escape)
			}
		}
	case *ast.VarDec:
		escapeExp(depth, escaped, d.Init)
		escapeName(depth, escaped, d.Name, &d.Escape)
	}
}
