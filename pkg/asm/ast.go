// Package asm defines the abstract x86-64 representation. It is generic
// over its register type: instruction selection produces Asm[operand.Temp]
// with symbolic temporaries, register allocation rewrites it to
// Asm[operand.Reg].
package asm

import (
	"fmt"

	"github.com/raymyers/tiger-cc/pkg/operand"
)

// Imm is an immediate operand: an integer or a label address.
type Imm struct {
	IsLabel bool
	Value   int32
	Label   operand.Label
}

// Int builds an integer immediate.
func Int(v int32) Imm {
	return Imm{Value: v}
}

// LabelImm builds a label-address immediate.
func LabelImm(l operand.Label) Imm {
	return Imm{IsLabel: true, Label: l}
}

func (imm Imm) String() string {
	if imm.IsLabel {
		return "$" + imm.Label.String()
	}
	return fmt.Sprintf("$%d", imm.Value)
}

// Value is the result of tiling an expression: a register, a memory
// operand, or an immediate.
type Value[T operand.Operand] interface {
	implValue(T)
}

// VReg holds a register-valued result.
type VReg[T operand.Operand] struct {
	Reg T
}

// VMem holds a memory-operand result.
type VMem[T operand.Operand] struct {
	Mem operand.Mem[T]
}

// VImm holds an immediate result.
type VImm[T operand.Operand] struct {
	Imm Imm
}

func (VReg[T]) implValue(T) {}
func (VMem[T]) implValue(T) {}
func (VImm[T]) implValue(T) {}

// Binary is a two-operand shape; the second operand is the destination.
type Binary[T operand.Operand] interface {
	implBinary(T)
	// Dest is the destination operand as a Value.
	Dest() Value[T]
}

// IR is imm -> reg.
type IR[T operand.Operand] struct {
	Src Imm
	Dst T
}

// IM is imm -> mem.
type IM[T operand.Operand] struct {
	Src Imm
	Dst operand.Mem[T]
}

// RM is reg -> mem.
type RM[T operand.Operand] struct {
	Src T
	Dst operand.Mem[T]
}

// MR is mem -> reg.
type MR[T operand.Operand] struct {
	Src operand.Mem[T]
	Dst T
}

// RR is reg -> reg.
type RR[T operand.Operand] struct {
	Src T
	Dst T
}

// LR is label -> reg.
type LR[T operand.Operand] struct {
	Src operand.Label
	Dst T
}

func (IR[T]) implBinary(T) {}
func (IM[T]) implBinary(T) {}
func (RM[T]) implBinary(T) {}
func (MR[T]) implBinary(T) {}
func (RR[T]) implBinary(T) {}
func (LR[T]) implBinary(T) {}

func (b IR[T]) Dest() Value[T] { return VReg[T]{b.Dst} }
func (b IM[T]) Dest() Value[T] { return VMem[T]{b.Dst} }
func (b RM[T]) Dest() Value[T] { return VMem[T]{b.Dst} }
func (b MR[T]) Dest() Value[T] { return VReg[T]{b.Dst} }
func (b RR[T]) Dest() Value[T] { return VReg[T]{b.Dst} }
func (b LR[T]) Dest() Value[T] { return VReg[T]{b.Dst} }

// Unary is a one-operand shape.
type Unary[T operand.Operand] interface {
	implUnary(T)
}

// UR is a register operand.
type UR[T operand.Operand] struct {
	Reg T
}

// UM is a memory operand.
type UM[T operand.Operand] struct {
	Mem operand.Mem[T]
}

func (UR[T]) implUnary(T) {}
func (UM[T]) implUnary(T) {}

// Unop is a one-operand opcode.
type Unop int

const (
	Inc Unop = iota
	Dec
	Not
	Neg
)

func (op Unop) String() string {
	switch op {
	case Inc:
		return "incq"
	case Dec:
		return "decq"
	case Not:
		return "notq"
	case Neg:
		return "negq"
	}
	panic("internal error: unknown unop")
}

// Binop is a two-operand opcode.
type Binop int

const (
	Add Binop = iota
	Sub
	And
	Or
	XOr
)

func (op Binop) String() string {
	switch op {
	case Add:
		return "addq"
	case Sub:
		return "subq"
	case And:
		return "andq"
	case Or:
		return "orq"
	case XOr:
		return "xorq"
	}
	panic("internal error: unknown binop")
}

// Relop is a condition code.
type Relop int

const (
	E Relop = iota
	Ne
	G
	Ge
	L
	Le
)

func (op Relop) String() string {
	switch op {
	case E:
		return "e"
	case Ne:
		return "ne"
	case G:
		return "g"
	case Ge:
		return "ge"
	case L:
		return "l"
	case Le:
		return "le"
	}
	panic("internal error: unknown relop")
}

// Directive is an assembler directive.
type Directive interface {
	implDirective()
}

// Local marks a label as file-local.
type Local struct {
	Label operand.Label
}

// Global exports a label.
type Global struct {
	Label operand.Label
}

// Align requests alignment.
type Align struct {
	N int
}

// Asciz emits a NUL-terminated string.
type Asciz struct {
	Contents string
}

// ROData switches to the read-only data section.
type ROData struct{}

// Text switches to the code section.
type Text struct{}

func (Local) implDirective()  {}
func (Global) implDirective() {}
func (Align) implDirective()  {}
func (Asciz) implDirective()  {}
func (ROData) implDirective() {}
func (Text) implDirective()   {}

// Asm is one abstract instruction.
type Asm[T operand.Operand] interface {
	implAsm(T)
}

// Mov is a data move.
type Mov[T operand.Operand] struct {
	Binary Binary[T]
}

// Bin applies a two-operand opcode.
type Bin[T operand.Operand] struct {
	Op     Binop
	Binary Binary[T]
}

// Mul is the one-operand signed multiply (rax * operand -> rdx:rax).
type Mul[T operand.Operand] struct {
	Unary Unary[T]
}

// Div is the one-operand signed divide (rdx:rax / operand).
type Div[T operand.Operand] struct {
	Unary Unary[T]
}

// Un applies a one-operand opcode.
type Un[T operand.Operand] struct {
	Op    Unop
	Unary Unary[T]
}

// Pop pops into its operand.
type Pop[T operand.Operand] struct {
	Unary Unary[T]
}

// Push pushes its operand.
type Push[T operand.Operand] struct {
	Unary Unary[T]
}

// Lea computes an address into a register.
type Lea[T operand.Operand] struct {
	Mem operand.Mem[T]
	Dst T
}

// Cmp compares its destination operand with its source.
type Cmp[T operand.Operand] struct {
	Binary Binary[T]
}

// Jmp is an unconditional jump.
type Jmp[T operand.Operand] struct {
	Label operand.Label
}

// Jcc is a conditional jump; it must directly follow a Cmp.
type Jcc[T operand.Operand] struct {
	Op    Relop
	Label operand.Label
}

// Call is a direct call.
type Call[T operand.Operand] struct {
	Label operand.Label
}

// Label marks a jump target.
type Label[T operand.Operand] struct {
	Label operand.Label
}

// Comment is an annotation; the allocator rewrites the frame-size marker
// comments into concrete stack adjustments.
type Comment[T operand.Operand] struct {
	Text string
}

// Direct wraps an assembler directive.
type Direct[T operand.Operand] struct {
	Directive Directive
}

// Cqo sign-extends rax into rdx:rax; it must directly precede a Div.
type Cqo[T operand.Operand] struct{}

// Ret returns from the current function.
type Ret[T operand.Operand] struct{}

func (Mov[T]) implAsm(T)     {}
func (Bin[T]) implAsm(T)     {}
func (Mul[T]) implAsm(T)     {}
func (Div[T]) implAsm(T)     {}
func (Un[T]) implAsm(T)      {}
func (Pop[T]) implAsm(T)     {}
func (Push[T]) implAsm(T)    {}
func (Lea[T]) implAsm(T)     {}
func (Cmp[T]) implAsm(T)     {}
func (Jmp[T]) implAsm(T)     {}
func (Jcc[T]) implAsm(T)     {}
func (Call[T]) implAsm(T)    {}
func (Label[T]) implAsm(T)   {}
func (Comment[T]) implAsm(T) {}
func (Direct[T]) implAsm(T)  {}
func (Cqo[T]) implAsm(T)     {}
func (Ret[T]) implAsm(T)     {}

// StackInfo carries a function's frame bookkeeping from tiling to
// allocation: the slot count before spills, and the unique marker
// comments standing in for the final stack adjustments.
type StackInfo struct {
	Size   int
	SubRsp string
	AddRsp string
}

// Function is one function's instruction stream.
type Function[T operand.Operand] struct {
	Body      []Asm[T]
	StackInfo StackInfo
}

// Unit is a whole translation unit: read-only data plus functions.
type Unit[T operand.Operand] struct {
	Data      []Asm[T]
	Functions []Function[T]
}
