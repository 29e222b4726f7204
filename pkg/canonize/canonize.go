// Package canonize rewrites tree IR into canonical form: no ESeq
// anywhere, calls only directly under a Move into a temp or an
// expression statement, and a single flat statement list per function.
package canonize

import (
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

// Canonize rewrites every function in the unit into canonical form.
func Canonize(unit ir.Unit) ir.Unit {
	return unit.MapFunctions(Function)
}

// Function flattens one function body into canonical statements.
func Function(fn ir.Function) ir.Function {
	var body []ir.Stm
	for _, stm := range fn.Body {
		body = append(body, canonizeStm(stm)...)
	}
	return ir.Function{Label: fn.Label, Body: body, Escapes: fn.Escapes}
}

// pure reports whether evaluating exp can have no side effects. Constants,
// label addresses, and temp reads are pure; memory accesses and calls are
// not.
func pure(exp ir.Exp) bool {
	switch e := exp.(type) {
	case ir.Const, ir.Name, ir.Temp:
		return true
	case ir.BinExp:
		return pure(e.Lhs) && pure(e.Rhs)
	default:
		return false
	}
}

// impureStms reports whether a floated statement prefix can affect later
// evaluation. Any floated statement writes a temp or memory, so a
// non-empty prefix is impure.
func impureStms(stms []ir.Stm) bool {
	return len(stms) > 0
}

// protect saves exp into a fresh temp when the statements of a
// later-evaluated sibling could change its value.
func protect(exp ir.Exp, stms []ir.Stm, laterImpure bool) (ir.Exp, []ir.Stm) {
	if !laterImpure || pure(exp) {
		return exp, stms
	}
	saved := operand.NewTemp("CANONIZE_PROTECT")
	stms = append(stms, ir.Move{Src: exp, Dst: ir.Temp{Temp: saved}})
	return ir.Temp{Temp: saved}, stms
}

// canonizeExp rewrites an expression to (stms, exp) where exp is safe to
// evaluate after running stms in order. Calls are moved into the
// statement prefix behind a fresh result temp.
func canonizeExp(exp ir.Exp) (ir.Exp, []ir.Stm) {
	switch e := exp.(type) {
	case ir.Const, ir.Name, ir.Temp:
		return e, nil

	case ir.BinExp:
		lhs, lhsStms := canonizeExp(e.Lhs)
		rhs, rhsStms := canonizeExp(e.Rhs)
		lhs, lhsStms = protect(lhs, lhsStms, impureStms(rhsStms))
		return ir.BinExp{Lhs: lhs, Op: e.Op, Rhs: rhs}, append(lhsStms, rhsStms...)

	case ir.Mem:
		addr, stms := canonizeExp(e.Addr)
		return ir.Mem{Addr: addr}, stms

	case ir.Call:
		call, stms := canonizeCall(e)
		result := operand.NewTemp("CALL_RESULT")
		stms = append(stms, ir.Move{Src: call, Dst: ir.Temp{Temp: result}})
		return ir.Temp{Temp: result}, stms

	case ir.ESeq:
		stms := canonizeStm(e.Stm)
		inner, innerStms := canonizeExp(e.Exp)
		return inner, append(stms, innerStms...)
	}
	panic("internal error: unknown expression variant")
}

// canonizeCall rewrites a call's callee and arguments, leaving the call
// itself in place for the caller to anchor at statement level. Arguments
// are protected right to left: a value already computed must be saved
// before any later operand's impure statements run.
func canonizeCall(call ir.Call) (ir.Call, []ir.Stm) {
	type part struct {
		exp  ir.Exp
		stms []ir.Stm
	}

	parts := make([]part, 0, len(call.Args)+1)
	fn, fnStms := canonizeExp(call.Fn)
	parts = append(parts, part{fn, fnStms})
	for _, arg := range call.Args {
		exp, stms := canonizeExp(arg)
		parts = append(parts, part{exp, stms})
	}

	laterImpure := false
	for i := len(parts) - 1; i >= 0; i-- {
		exp, stms := protect(parts[i].exp, parts[i].stms, laterImpure)
		if impureStms(parts[i].stms) {
			laterImpure = true
		}
		parts[i] = part{exp, stms}
	}

	var stms []ir.Stm
	args := make([]ir.Exp, 0, len(call.Args))
	for i, p := range parts {
		stms = append(stms, p.stms...)
		if i > 0 {
			args = append(args, p.exp)
		}
	}
	return ir.Call{Fn: parts[0].exp, Args: args}, stms
}

// canonizeStm rewrites a statement into a flat canonical list.
func canonizeStm(stm ir.Stm) []ir.Stm {
	switch s := stm.(type) {
	case ir.Label, ir.Comment:
		return []ir.Stm{s}

	case ir.Seq:
		var stms []ir.Stm
		for _, inner := range s.Stms {
			stms = append(stms, canonizeStm(inner)...)
		}
		return stms

	case ir.Move:
		return canonizeMove(s)

	case ir.ExpStm:
		// A call survives as a bare statement; any other expression has
		// no effect of its own once its prefix ran
		if call, ok := s.Exp.(ir.Call); ok {
			canonical, stms := canonizeCall(call)
			return append(stms, ir.ExpStm{Exp: canonical})
		}
		_, stms := canonizeExp(s.Exp)
		return stms

	case ir.Jump:
		dst, stms := canonizeExp(s.Dst)
		return append(stms, ir.Jump{Dst: dst, Labels: s.Labels})

	case ir.CJump:
		// Both operand prefixes run before the CJump so nothing lands
		// between the eventual compare and jump
		lhs, lhsStms := canonizeExp(s.Lhs)
		rhs, rhsStms := canonizeExp(s.Rhs)
		lhs, lhsStms = protect(lhs, lhsStms, impureStms(rhsStms))
		stms := append(lhsStms, rhsStms...)
		return append(stms, ir.CJump{
			Lhs: lhs, Op: s.Op, Rhs: rhs, True: s.True, False: s.False,
		})
	}
	panic("internal error: unknown statement variant")
}

func canonizeMove(move ir.Move) []ir.Stm {
	switch dst := move.Dst.(type) {
	case ir.Temp:
		// Calls may sit directly under a move into a temp
		if call, ok := move.Src.(ir.Call); ok {
			canonical, stms := canonizeCall(call)
			return append(stms, ir.Move{Src: canonical, Dst: dst})
		}
		src, stms := canonizeExp(move.Src)
		return append(stms, ir.Move{Src: src, Dst: dst})

	case ir.Mem:
		// The destination address is evaluated before the source value
		addr, addrStms := canonizeExp(dst.Addr)
		src, srcStms := canonizeExp(move.Src)
		addr, addrStms = protect(addr, addrStms, impureStms(srcStms))
		stms := append(addrStms, srcStms...)
		return append(stms, ir.Move{Src: src, Dst: ir.Mem{Addr: addr}})

	case ir.ESeq:
		stms := canonizeStm(dst.Stm)
		return append(stms, canonizeMove(ir.Move{Src: move.Src, Dst: dst.Exp})...)
	}
	panic("internal error: move into non-location")
}
