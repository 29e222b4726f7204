// Package interp evaluates statement lists over the tree IR. It exists
// as a testing oracle: constant folding must not change what a program
// computes, and the interpreter gives both sides of that equation.
// Calls are outside its scope.
package interp

import (
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/symbol"
)

// Machine holds the mutable state of one evaluation: temp and memory
// environments plus a step budget guarding against runaway loops.
type Machine struct {
	Temps  map[operand.Temp]int32
	Memory map[int32]int32
	Steps  int
}

// NewMachine builds an empty machine with the given step budget.
func NewMachine(steps int) *Machine {
	return &Machine{
		Temps:  make(map[operand.Temp]int32),
		Memory: make(map[int32]int32),
		Steps:  steps,
	}
}

// Run executes a flat statement list from the beginning until it falls
// off the end. Jumps resolve against the labels appearing in the list.
func (m *Machine) Run(stms []ir.Stm) {
	stms = flatten(stms)
	labels := make(map[symbol.Symbol]int)
	for i, stm := range stms {
		if label, ok := stm.(ir.Label); ok {
			labels[label.Label.Symbol()] = i
		}
	}

	pc := 0
	for pc < len(stms) {
		if m.Steps--; m.Steps < 0 {
			panic("internal error: interpreter step budget exhausted")
		}
		switch s := stms[pc].(type) {
		case ir.Label, ir.Comment:
			pc++
		case ir.Move:
			m.move(s)
			pc++
		case ir.ExpStm:
			m.Exp(s.Exp)
			pc++
		case ir.Jump:
			name, ok := s.Dst.(ir.Name)
			if !ok {
				panic("internal error: can only jump to labels")
			}
			pc = m.target(labels, name.Label)
		case ir.CJump:
			if compare(s.Op, m.Exp(s.Lhs), m.Exp(s.Rhs)) {
				pc = m.target(labels, s.True)
			} else {
				pc = m.target(labels, s.False)
			}
		default:
			panic("internal error: unknown statement variant")
		}
	}
}

// flatten expands nested sequences into one statement list.
func flatten(stms []ir.Stm) []ir.Stm {
	var flat []ir.Stm
	for _, stm := range stms {
		if seq, ok := stm.(ir.Seq); ok {
			flat = append(flat, flatten(seq.Stms)...)
			continue
		}
		flat = append(flat, stm)
	}
	return flat
}

func (m *Machine) target(labels map[symbol.Symbol]int, l operand.Label) int {
	index, ok := labels[l.Symbol()]
	if !ok {
		panic("internal error: jump to undefined label")
	}
	return index
}

func (m *Machine) move(s ir.Move) {
	value := m.Exp(s.Src)
	switch dst := s.Dst.(type) {
	case ir.Temp:
		m.Temps[dst.Temp] = value
	case ir.Mem:
		m.Memory[m.Exp(dst.Addr)] = value
	default:
		panic("internal error: move into non-location")
	}
}

// Exp evaluates an expression in the current machine state.
func (m *Machine) Exp(exp ir.Exp) int32 {
	switch e := exp.(type) {
	case ir.Const:
		return e.Value
	case ir.Temp:
		return m.Temps[e.Temp]
	case ir.Mem:
		return m.Memory[m.Exp(e.Addr)]
	case ir.BinExp:
		lhs := m.Exp(e.Lhs)
		rhs := m.Exp(e.Rhs)
		return apply(e.Op, lhs, rhs)
	case ir.ESeq:
		m.Run([]ir.Stm{e.Stm})
		return m.Exp(e.Exp)
	case ir.Name:
		panic("internal error: interpreting label address")
	case ir.Call:
		panic("internal error: interpreting call")
	}
	panic("internal error: unknown expression variant")
}

func apply(op ir.Binop, lhs, rhs int32) int32 {
	switch op {
	case ir.Add:
		return lhs + rhs
	case ir.Sub:
		return lhs - rhs
	case ir.Mul:
		return lhs * rhs
	case ir.Div:
		if rhs == 0 {
			panic("division by zero")
		}
		return lhs / rhs
	case ir.Mod:
		if rhs == 0 {
			panic("division by zero")
		}
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
