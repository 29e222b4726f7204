// Package fold performs constant folding over canonical IR: algebraic
// identities, whole-constant arithmetic with wrapping 32-bit semantics,
// and folding of conditional jumps with constant operands. The pass is
// idempotent.
package fold

import "github.com/raymyers/tiger-cc/pkg/ir"

// Fold folds every function in the unit.
func Fold(unit ir.Unit) ir.Unit {
	return unit.MapFunctions(Function)
}

// Function folds one function body.
func Function(fn ir.Function) ir.Function {
	body := make([]ir.Stm, len(fn.Body))
	for i, stm := range fn.Body {
		body[i] = foldStm(stm)
	}
	return ir.Function{Label: fn.Label, Body: body, Escapes: fn.Escapes}
}

func foldExp(exp ir.Exp) ir.Exp {
	switch e := exp.(type) {
	case ir.Const, ir.Name, ir.Temp:
		return e
	case ir.BinExp:
		return foldBinop(e)
	case ir.Mem:
		return ir.Mem{Addr: foldExp(e.Addr)}
	case ir.Call:
		args := make([]ir.Exp, len(e.Args))
		for i, arg := range e.Args {
			args[i] = foldExp(arg)
		}
		return ir.Call{Fn: foldExp(e.Fn), Args: args}
	case ir.ESeq:
		return ir.ESeq{Stm: foldStm(e.Stm), Exp: foldExp(e.Exp)}
	}
	panic("internal error: unknown expression variant")
}

func foldBinop(e ir.BinExp) ir.Exp {
	lhs := foldExp(e.Lhs)
	rhs := foldExp(e.Rhs)

	lc, lok := lhs.(ir.Const)
	rc, rok := rhs.(ir.Const)

	// Identity and absorbing laws
	if lok {
		switch {
		case lc.Value == 0 && (e.Op == ir.Add || e.Op == ir.Or || e.Op == ir.XOr):
			return rhs
		case lc.Value == 0 && (e.Op == ir.Mul || e.Op == ir.And):
			return ir.Const{Value: 0}
		}
	}
	if rok {
		switch {
		case rc.Value == 0 && (e.Op == ir.Add || e.Op == ir.Sub || e.Op == ir.Or || e.Op == ir.XOr):
			return lhs
		case rc.Value == 0 && (e.Op == ir.Mul || e.Op == ir.And):
			return ir.Const{Value: 0}
		}
	}

	if lok && rok {
		// Division and modulo by zero must reach runtime untouched
		if (e.Op == ir.Div || e.Op == ir.Mod) && rc.Value == 0 {
			return ir.BinExp{Lhs: lhs, Op: e.Op, Rhs: rhs}
		}
		return ir.Const{Value: apply(e.Op, lc.Value, rc.Value)}
	}

	return ir.BinExp{Lhs: lhs, Op: e.Op, Rhs: rhs}
}

// apply evaluates op with wrapping signed 32-bit semantics.
func apply(op ir.Binop, lhs, rhs int32) int32 {
	switch op {
	case ir.Add:
		return lhs + rhs
	case ir.Sub:
		return lhs - rhs
	case ir.Mul:
		return lhs * rhs
	case ir.Div:
		return lhs / rhs
	case ir.Mod:
		return lhs % rhs
	case ir.And:
		return lhs & rhs
	case ir.Or:
		return lhs | rhs
	case ir.XOr:
		return lhs ^ rhs
	}
	panic("internal error: unknown binop")
}

func foldStm(stm ir.Stm) ir.Stm {
	switch s := stm.(type) {
	case ir.Label, ir.Comment:
		return s
	case ir.Move:
		return ir.Move{Src: foldExp(s.Src), Dst: foldExp(s.Dst)}
	case ir.ExpStm:
		return ir.ExpStm{Exp: foldExp(s.Exp)}
	case ir.Jump:
		return ir.Jump{Dst: foldExp(s.Dst), Labels: s.Labels}
	case ir.CJump:
		return foldCJump(s)
	case ir.Seq:
		stms := make([]ir.Stm, len(s.Stms))
		for i, inner := range s.Stms {
			stms[i] = foldStm(inner)
		}
		return ir.Seq{Stms: stms}
	}
	panic("internal error: unknown statement variant")
}

// foldCJump replaces a comparison of two constants with an unconditional
// jump to the side the predicate selects.
func foldCJump(s ir.CJump) ir.Stm {
	lhs := foldExp(s.Lhs)
	rhs := foldExp(s.Rhs)

	lc, lok := lhs.(ir.Const)
	rc, rok := rhs.(ir.Const)
	if !lok || !rok {
		return ir.CJump{Lhs: lhs, Op: s.Op, Rhs: rhs, True: s.True, False: s.False}
	}

	if compare(s.Op, lc.Value, rc.Value) {
		return ir.JumpTo(s.True)
	}
	return ir.JumpTo(s.False)
}

// compare evaluates a signed relational predicate.
func compare(op ir.Relop, lhs, rhs int32) bool {
	switch op {
	case ir.Eq:
		return lhs == rhs
	case ir.Ne:
		return lhs != rhs
	case ir.Lt:
		return lhs < rhs
	case ir.Le:
		return lhs <= rhs
	case ir.Gt:
		return lhs > rhs
	case ir.Ge:
		return lhs >= rhs
	}
	panic("internal error: unknown relop")
}
