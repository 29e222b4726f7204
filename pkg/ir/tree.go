package ir

import "github.com/raymyers/tiger-cc/pkg/operand"

// Cond builds the branch statement for a conditional: given the true and
// false targets, it produces a statement that jumps to True on success.
type Cond func(t, f operand.Label) Stm

// Tree is the result of translating one AST fragment: a value (Ex), an
// effect (Nx), or a deferred branch builder (Cx).
type Tree interface {
	implTree()
}

// Ex wraps a value-producing translation.
type Ex struct {
	Exp Exp
}

// Nx wraps an effect-only translation.
type Nx struct {
	Stm Stm
}

// Cx wraps a conditional translation.
type Cx struct {
	Build Cond
}

func (Ex) implTree() {}
func (Nx) implTree() {}
func (Cx) implTree() {}

// AsExp converts any tree into a value expression. A Cx is materialized
// into a fresh temp holding 1 on the true edge and 0 on the false edge.
func AsExp(t Tree) Exp {
	switch t := t.(type) {
	case Ex:
		return t.Exp
	case Nx:
		return ESeq{Stm: t.Stm, Exp: Const{0}}
	case Cx:
		result := operand.NewTemp("COND_RESULT")
		tl := operand.NewLabel("COND_TRUE")
		fl := operand.NewLabel("COND_FALSE")
		return ESeq{
			Stm: Seq{[]Stm{
				Move{Src: Const{1}, Dst: Temp{result}},
				t.Build(tl, fl),
				Label{fl},
				Move{Src: Const{0}, Dst: Temp{result}},
				Label{tl},
			}},
			Exp: Temp{result},
		}
	}
	panic("internal error: unknown tree variant")
}

// AsStm converts any tree into a statement, discarding its value.
func AsStm(t Tree) Stm {
	switch t := t.(type) {
	case Ex:
		return ExpStm{t.Exp}
	case Nx:
		return t.Stm
	case Cx:
		join := operand.NewLabel("COND_JOIN")
		return Seq{[]Stm{
			t.Build(join, join),
			Label{join},
		}}
	}
	panic("internal error: unknown tree variant")
}

// AsCond converts a tree into a branch builder. Effect-only trees have no
// boolean reading; requesting one is a compiler bug.
func AsCond(t Tree) Cond {
	switch t := t.(type) {
	case Ex:
		exp := t.Exp
		return func(tl, fl operand.Label) Stm {
			return CJump{Lhs: exp, Op: Eq, Rhs: Const{0}, True: fl, False: tl}
		}
	case Nx:
		panic("internal error: cannot convert statement to condition")
	case Cx:
		return t.Build
	}
	panic("internal error: unknown tree variant")
}
