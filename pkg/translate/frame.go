// Package translate lowers the type-checked AST into tree IR: frame
// layout, static-link access to non-local variables, calling conventions,
// and the record/array/string builtin protocols.
package translate

import (
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/symbol"
)

// staticLink names the hidden first argument of every internal function:
// a pointer to the lexical parent's frame.
var staticLink = symbol.Intern("STATIC_LINK")

// Access describes where a variable lives: a stack slot in its frame, or
// a virtual register when it never escapes.
type Access struct {
	InFrame bool
	Slot    int          // frame slot index, valid when InFrame
	Temp    operand.Temp // virtual register, valid otherwise
}

// Formal is one declared argument: its name and whether it escapes.
type Formal struct {
	Name   symbol.Symbol
	Escape bool
}

// Frame lays out one function's arguments and locals. Escaping values get
// numbered stack slots below the base pointer; everything else lives in
// temps. Slot bookkeeping doubles as the frame size.
type Frame struct {
	Label    operand.Label
	prologue []ir.Stm
	accesses map[symbol.Symbol]Access
	size     int
}

// NewFrame builds the frame for an internal function. The static link is
// installed as an always-escaping first argument ahead of the declared
// formals, and the prologue materializes every argument into its access.
func NewFrame(label operand.Label, formals []Formal) *Frame {
	f := &Frame{
		Label:    label,
		accesses: make(map[symbol.Symbol]Access),
	}
	all := append([]Formal{{Name: staticLink, Escape: true}}, formals...)
	base := ir.Temp{Temp: operand.RegTemp(operand.RBP)}
	for i, formal := range all {
		access := f.Allocate(formal.Name, formal.Escape)
		f.prologue = append(f.prologue, ir.Move{
			Src: argument(i),
			Dst: accessExp(access, base),
		})
	}
	return f
}

// MainFrame builds the frame for the program entry: no formals and no
// static link.
func MainFrame() *Frame {
	return &Frame{
		Label:    operand.FixedLabel("main"),
		accesses: make(map[symbol.Symbol]Access),
	}
}

// argument is the location of the i-th incoming argument at function
// entry: a register for the first six, a positive base-pointer offset for
// the rest (above the saved base pointer and return address).
func argument(i int) ir.Exp {
	if i < 6 {
		return ir.Temp{Temp: operand.RegTemp(operand.Argument(i))}
	}
	offset := int32((i-6+3) * operand.WordSize)
	return ir.Mem{Addr: ir.BinExp{
		Lhs: ir.Temp{Temp: operand.RegTemp(operand.RBP)},
		Op:  ir.Add,
		Rhs: ir.Const{Value: offset},
	}}
}

// Allocate reserves a home for a new name: a fresh frame slot when it
// escapes, a fresh temp otherwise.
func (f *Frame) Allocate(name symbol.Symbol, escape bool) Access {
	var access Access
	if escape {
		f.size++
		access = Access{InFrame: true, Slot: f.size}
	} else {
		access = Access{Temp: operand.NewTemp(name.String())}
	}
	f.accesses[name] = access
	return access
}

// Contains reports whether this frame defines name.
func (f *Frame) Contains(name symbol.Symbol) bool {
	_, ok := f.accesses[name]
	return ok
}

// Retrieve renders name's location relative to the given base-pointer
// expression.
func (f *Frame) Retrieve(name symbol.Symbol, base ir.Exp) ir.Exp {
	access, ok := f.accesses[name]
	if !ok {
		panic("internal error: variable not allocated in frame")
	}
	return accessExp(access, base)
}

// StaticLink renders this frame's static link slot relative to base,
// yielding the lexical parent's frame pointer.
func (f *Frame) StaticLink(base ir.Exp) ir.Exp {
	return f.Retrieve(staticLink, base)
}

// Size is the number of escaping slots the frame reserves.
func (f *Frame) Size() int {
	return f.size
}

func accessExp(access Access, base ir.Exp) ir.Exp {
	if !access.InFrame {
		return ir.Temp{Temp: access.Temp}
	}
	return ir.Mem{Addr: ir.BinExp{
		Lhs: base,
		Op:  ir.Sub,
		Rhs: ir.Const{Value: int32(access.Slot * operand.WordSize)},
	}}
}

// Wrap completes translation of a function: the frame prologue followed
// by a move of the body's value into the return register.
func (f *Frame) Wrap(body ir.Tree) ir.Function {
	stms := make([]ir.Stm, 0, len(f.prologue)+1)
	stms = append(stms, f.prologue...)
	stms = append(stms, ir.Move{
		Src: ir.AsExp(body),
		Dst: ir.Temp{Temp: operand.RegTemp(operand.Return())},
	})
	return ir.Function{
		Label:   f.Label,
		Body:    []ir.Stm{ir.Seq{Stms: stms}},
		Escapes: f.size,
	}
}
