package translate

import (
	"github.com/raymyers/tiger-cc/pkg/ast"
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/symbol"
)

// framePointer is the base-pointer expression of the currently executing
// function.
func framePointer() ir.Exp {
	return ir.Temp{Temp: operand.RegTemp(operand.RBP)}
}

// Nil translates the nil literal: a null pointer.
func Nil() ir.Tree {
	return ir.Ex{Exp: ir.Const{Value: 0}}
}

// Int translates an integer literal.
func Int(n int32) ir.Tree {
	return ir.Ex{Exp: ir.Const{Value: n}}
}

// Str interns a string literal into the unit's data list and yields the
// address of its label.
func Str(data *[]ir.Data, s string) ir.Tree {
	label := operand.NewLabel("STRING")
	*data = append(*data, ir.Data{ID: len(*data), Label: label, Contents: s})
	return ir.Ex{Exp: ir.Name{Label: label}}
}

// SimpleVar resolves a variable by walking the frame stack from the
// innermost outward, following each frame's static link until the
// defining frame is reached.
func SimpleVar(frames []*Frame, name symbol.Symbol) ir.Tree {
	base := framePointer()
	for i := len(frames) - 1; i >= 0; i-- {
		frame := frames[i]
		if frame.Contains(name) {
			return ir.Ex{Exp: frame.Retrieve(name, base)}
		}
		base = frame.StaticLink(base)
	}
	panic("internal error: variable not found in any frame")
}

// FieldVar loads field number index out of a record pointer.
func FieldVar(rec ir.Tree, index int) ir.Tree {
	return ir.Ex{Exp: ir.Mem{Addr: ir.BinExp{
		Lhs: ir.AsExp(rec),
		Op:  ir.Add,
		Rhs: ir.Const{Value: int32(index * operand.WordSize)},
	}}}
}

// IndexVar loads an array element: the index is scaled by the word size.
func IndexVar(arr, index ir.Tree) ir.Tree {
	return ir.Ex{Exp: ir.Mem{Addr: ir.BinExp{
		Lhs: ir.AsExp(arr),
		Op:  ir.Add,
		Rhs: ir.BinExp{
			Lhs: ir.AsExp(index),
			Op:  ir.Mul,
			Rhs: ir.Const{Value: operand.WordSize},
		},
	}}}
}

// Break jumps to the innermost loop's exit label.
func Break(loops []operand.Label) ir.Tree {
	if len(loops) == 0 {
		panic("internal error: break without enclosing loop")
	}
	exit := loops[len(loops)-1]
	return ir.Nx{Stm: ir.JumpTo(exit)}
}

// Call translates a function call. Internal functions receive the
// caller's frame pointer as a hidden first argument (the static link);
// externs do not.
func Call(label operand.Label, extern bool, args []ir.Tree) ir.Tree {
	exps := make([]ir.Exp, 0, len(args)+1)
	if !extern {
		exps = append(exps, framePointer())
	}
	for _, arg := range args {
		exps = append(exps, ir.AsExp(arg))
	}
	return ir.Ex{Exp: ir.Call{Fn: ir.Name{Label: label}, Args: exps}}
}

// Neg translates unary minus as subtraction from zero.
func Neg(exp ir.Tree) ir.Tree {
	return ir.Ex{Exp: ir.BinExp{
		Lhs: ir.Const{Value: 0},
		Op:  ir.Sub,
		Rhs: ir.AsExp(exp),
	}}
}

var arithmetic = map[ast.Binop]ir.Binop{
	ast.Add: ir.Add,
	ast.Sub: ir.Sub,
	ast.Mul: ir.Mul,
	ast.Div: ir.Div,
}

var relational = map[ast.Binop]ir.Relop{
	ast.Eq:  ir.Eq,
	ast.Neq: ir.Ne,
	ast.Lt:  ir.Lt,
	ast.Le:  ir.Le,
	ast.Gt:  ir.Gt,
	ast.Ge:  ir.Ge,
}

// Bin translates a binary operator: arithmetic maps onto IR binops,
// comparisons become branch builders, and the logical operators
// short-circuit through an intermediate label.
func Bin(lhs ir.Tree, op ast.Binop, rhs ir.Tree) ir.Tree {
	if binop, ok := arithmetic[op]; ok {
		return ir.Ex{Exp: ir.BinExp{
			Lhs: ir.AsExp(lhs),
			Op:  binop,
			Rhs: ir.AsExp(rhs),
		}}
	}
	if relop, ok := relational[op]; ok {
		lexp, rexp := ir.AsExp(lhs), ir.AsExp(rhs)
		return ir.Cx{Build: func(t, f operand.Label) ir.Stm {
			return ir.CJump{Lhs: lexp, Op: relop, Rhs: rexp, True: t, False: f}
		}}
	}
	lcond, rcond := ir.AsCond(lhs), ir.AsCond(rhs)
	switch op {
	case ast.LAnd:
		return ir.Cx{Build: func(t, f operand.Label) ir.Stm {
			mid := operand.NewLabel("AND_RHS")
			return ir.Seq{Stms: []ir.Stm{
				lcond(mid, f),
				ir.Label{Label: mid},
				rcond(t, f),
			}}
		}}
	case ast.LOr:
		return ir.Cx{Build: func(t, f operand.Label) ir.Stm {
			mid := operand.NewLabel("OR_RHS")
			return ir.Seq{Stms: []ir.Stm{
				lcond(t, mid),
				ir.Label{Label: mid},
				rcond(t, f),
			}}
		}}
	}
	panic("internal error: non-exhaustive binop translation")
}

// Rec translates record construction: allocate nfields words, then store
// each field at its offset; the record pointer is the value.
func Rec(fields []ir.Tree) ir.Tree {
	ptr := operand.NewTemp("REC_PTR")
	stms := []ir.Stm{
		ir.Move{
			Src: ir.Call{
				Fn:   ir.Name{Label: operand.FixedLabel("malloc")},
				Args: []ir.Exp{ir.Const{Value: int32(len(fields) * operand.WordSize)}},
			},
			Dst: ir.Temp{Temp: ptr},
		},
	}
	for i, field := range fields {
		stms = append(stms, ir.Move{
			Src: ir.AsExp(field),
			Dst: ir.Mem{Addr: ir.BinExp{
				Lhs: ir.Temp{Temp: ptr},
				Op:  ir.Add,
				Rhs: ir.Const{Value: int32(i * operand.WordSize)},
			}},
		})
	}
	return ir.Ex{Exp: ir.ESeq{Stm: ir.Seq{Stms: stms}, Exp: ir.Temp{Temp: ptr}}}
}

// Arr translates array construction via the init_array runtime call.
func Arr(size, init ir.Tree) ir.Tree {
	return ir.Ex{Exp: ir.Call{
		Fn:   ir.Name{Label: operand.FixedLabel("init_array")},
		Args: []ir.Exp{ir.AsExp(size), ir.AsExp(init)},
	}}
}

// Seq translates an expression sequence: all but the last run for effect,
// the last provides the value.
func Seq(exps []ir.Tree) ir.Tree {
	if len(exps) == 0 {
		return ir.Ex{Exp: ir.Const{Value: 0}}
	}
	last := exps[len(exps)-1]
	if len(exps) == 1 {
		return last
	}
	stms := make([]ir.Stm, len(exps)-1)
	for i, exp := range exps[:len(exps)-1] {
		stms[i] = ir.AsStm(exp)
	}
	return ir.Ex{Exp: ir.ESeq{Stm: ir.Seq{Stms: stms}, Exp: ir.AsExp(last)}}
}

// Ass translates assignment.
func Ass(lhs, rhs ir.Tree) ir.Tree {
	return ir.Nx{Stm: ir.Move{Src: ir.AsExp(rhs), Dst: ir.AsExp(lhs)}}
}

// If translates a conditional. Without an else the guard skips the body;
// with one, both branches move their value into a shared temp.
func If(guard, then ir.Tree, orElse ir.Tree) ir.Tree {
	cond := ir.AsCond(guard)
	if orElse == nil {
		t := operand.NewLabel("TRUE_BRANCH")
		e := operand.NewLabel("EXIT_IF")
		return ir.Nx{Stm: ir.Seq{Stms: []ir.Stm{
			cond(t, e),
			ir.Label{Label: t},
			ir.AsStm(then),
			ir.JumpTo(e),
			ir.Label{Label: e},
		}}}
	}
	t := operand.NewLabel("TRUE_BRANCH")
	f := operand.NewLabel("FALSE_BRANCH")
	e := operand.NewLabel("EXIT_IF_ELSE")
	result := operand.NewTemp("IF_ELSE_RESULT")
	return ir.Ex{Exp: ir.ESeq{
		Stm: ir.Seq{Stms: []ir.Stm{
			cond(t, f),
			ir.Label{Label: t},
			ir.Move{Src: ir.AsExp(then), Dst: ir.Temp{Temp: result}},
			ir.JumpTo(e),
			ir.Label{Label: f},
			ir.Move{Src: ir.AsExp(orElse), Dst: ir.Temp{Temp: result}},
			ir.JumpTo(e),
			ir.Label{Label: e},
		}},
		Exp: ir.Temp{Temp: result},
	}}
}

// While translates a loop with the standard header/body/back-edge form.
// The exit label doubles as the break target and is supplied by the
// caller, which pushed it while translating the body.
func While(exit operand.Label, guard, body ir.Tree) ir.Tree {
	start := operand.NewLabel("START_WHILE")
	t := operand.NewLabel("TRUE_BRANCH")
	return ir.Nx{Stm: ir.Seq{Stms: []ir.Stm{
		ir.Label{Label: start},
		ir.AsCond(guard)(t, exit),
		ir.Label{Label: t},
		ir.AsStm(body),
		ir.JumpTo(start),
		ir.Label{Label: exit},
	}}}
}

// For translates a bounded loop. The iteration variable lives at index
// (honoring its escape bit), the bound is evaluated once into a temp, and
// termination uses a signed greater-than comparison.
func For(exit operand.Label, index ir.Exp, lo, hi, body ir.Tree) ir.Tree {
	start := operand.NewLabel("START_FOR")
	t := operand.NewLabel("TRUE_BRANCH")
	limit := operand.NewTemp("FOR_LIMIT")
	return ir.Nx{Stm: ir.Seq{Stms: []ir.Stm{
		ir.Move{Src: ir.AsExp(lo), Dst: index},
		ir.Move{Src: ir.AsExp(hi), Dst: ir.Temp{Temp: limit}},
		ir.Label{Label: start},
		ir.CJump{
			Lhs:   index,
			Op:    ir.Gt,
			Rhs:   ir.Temp{Temp: limit},
			True:  exit,
			False: t,
		},
		ir.Label{Label: t},
		ir.AsStm(body),
		ir.Move{
			Src: ir.BinExp{Lhs: index, Op: ir.Add, Rhs: ir.Const{Value: 1}},
			Dst: index,
		},
		ir.JumpTo(start),
		ir.Label{Label: exit},
	}}}
}

// VarDec translates a variable declaration: a move of the initializer
// into the variable's freshly allocated access.
func VarDec(frame *Frame, name symbol.Symbol, escape bool, init ir.Tree) ir.Tree {
	access := frame.Allocate(name, escape)
	return ir.Nx{Stm: ir.Move{
		Src: ir.AsExp(init),
		Dst: accessExp(access, framePointer()),
	}}
}

// ForIndex allocates the iteration slot for a for-loop variable in the
// current frame and renders it.
func ForIndex(frame *Frame, name symbol.Symbol, escape bool) ir.Exp {
	access := frame.Allocate(name, escape)
	return accessExp(access, framePointer())
}

// Let wraps declaration statements around a body expression.
func Let(decs []ir.Tree, body ir.Tree) ir.Tree {
	if len(decs) == 0 {
		return body
	}
	stms := make([]ir.Stm, len(decs))
	for i, dec := range decs {
		stms[i] = ir.AsStm(dec)
	}
	return ir.Ex{Exp: ir.ESeq{Stm: ir.Seq{Stms: stms}, Exp: ir.AsExp(body)}}
}
