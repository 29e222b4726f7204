// Package allocate resolves symbolic temporaries to machine registers.
// The driver walks the abstract instruction stream asking a pluggable
// Assigner for each temp (tagged with its read/write direction), splices
// the assigner's pending loads and stores around each instruction, and
// finishes the frame by patching the stack-size marker comments.
package allocate

import (
	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

type (
	temp = operand.Temp
	reg  = operand.Reg
)

// Dir tags how an instruction touches an operand.
type Dir int

const (
	R Dir = iota
	W
	RW
)

// Assigner maps temps to registers. The trivial implementation spills
// everything; a graph-coloring or linear-scan assigner plugs in without
// changing the driver.
type Assigner interface {
	// StackSize is the frame size in slots after all assignments.
	StackSize() int
	// LoadTemps appends the loads pending for the current instruction.
	LoadTemps(out []asm.Asm[reg]) []asm.Asm[reg]
	// StoreTemps appends the stores pending for the current instruction.
	StoreTemps(out []asm.Asm[reg]) []asm.Asm[reg]
	// Temp resolves one temp in the given direction.
	Temp(t temp, dir Dir) reg
	// Mem lifts a memory operand, resolving its registers as reads.
	Mem(m operand.Mem[temp]) operand.Mem[reg]
}

// New constructs an Assigner for a function with the given initial frame
// size (escaping locals plus outgoing argument slots).
type New func(stackSize int) Assigner

// Allocate rewrites a whole unit through fresh assigners, one per
// function.
func Allocate(unit asm.Unit[temp], newAssigner New) asm.Unit[reg] {
	data := make([]asm.Asm[reg], len(unit.Data))
	for i, a := range unit.Data {
		data[i] = convert(a)
	}
	functions := make([]asm.Function[reg], len(unit.Functions))
	for i, fn := range unit.Functions {
		functions[i] = Function(fn, newAssigner)
	}
	return asm.Unit[reg]{Data: data, Functions: functions}
}

// Function allocates one function and completes its frame: the stack is
// padded to an even slot count so every call site stays 16-byte aligned,
// and the marker comments become the concrete rsp adjustments.
func Function(fn asm.Function[temp], newAssigner New) asm.Function[reg] {
	a := &allocator{assigner: newAssigner(fn.StackInfo.Size)}

	for _, instr := range fn.Body {
		mapped := a.instr(instr)
		a.out = a.assigner.LoadTemps(a.out)
		a.out = append(a.out, mapped)
		a.out = a.assigner.StoreTemps(a.out)
	}

	stackSize := a.assigner.StackSize()
	if stackSize%2 != 0 {
		stackSize++
	}
	adjust := asm.IR[reg]{
		Src: asm.Int(int32(stackSize * operand.WordSize)),
		Dst: operand.RSP,
	}

	for i, instr := range a.out {
		comment, ok := instr.(asm.Comment[reg])
		if !ok {
			continue
		}
		switch comment.Text {
		case fn.StackInfo.SubRsp:
			a.out[i] = asm.Bin[reg]{Op: asm.Sub, Binary: adjust}
		case fn.StackInfo.AddRsp:
			a.out[i] = asm.Bin[reg]{Op: asm.Add, Binary: adjust}
		}
	}

	return asm.Function[reg]{Body: a.out, StackInfo: fn.StackInfo}
}

type allocator struct {
	assigner Assigner
	out      []asm.Asm[reg]
}

func (a *allocator) unary(u asm.Unary[temp], dir Dir) asm.Unary[reg] {
	switch u := u.(type) {
	case asm.UR[temp]:
		return asm.UR[reg]{Reg: a.assigner.Temp(u.Reg, dir)}
	case asm.UM[temp]:
		return asm.UM[reg]{Mem: a.assigner.Mem(u.Mem)}
	}
	panic("internal error: unknown unary shape")
}

func (a *allocator) binary(b asm.Binary[temp], destDir Dir) asm.Binary[reg] {
	switch b := b.(type) {
	case asm.IR[temp]:
		return asm.IR[reg]{Src: b.Src, Dst: a.assigner.Temp(b.Dst, destDir)}
	case asm.IM[temp]:
		return asm.IM[reg]{Src: b.Src, Dst: a.assigner.Mem(b.Dst)}
	case asm.RM[temp]:
		return asm.RM[reg]{Src: a.assigner.Temp(b.Src, R), Dst: a.assigner.Mem(b.Dst)}
	case asm.MR[temp]:
		return asm.MR[reg]{Src: a.assigner.Mem(b.Src), Dst: a.assigner.Temp(b.Dst, destDir)}
	case asm.RR[temp]:
		return asm.RR[reg]{Src: a.assigner.Temp(b.Src, R), Dst: a.assigner.Temp(b.Dst, destDir)}
	case asm.LR[temp]:
		return asm.LR[reg]{Src: b.Src, Dst: a.assigner.Temp(b.Dst, destDir)}
	}
	panic("internal error: unknown binary shape")
}

func (a *allocator) instr(instr asm.Asm[temp]) asm.Asm[reg] {
	switch instr := instr.(type) {
	case asm.Mov[temp]:
		return asm.Mov[reg]{Binary: a.binary(instr.Binary, W)}
	case asm.Bin[temp]:
		return asm.Bin[reg]{Op: instr.Op, Binary: a.binary(instr.Binary, RW)}
	case asm.Mul[temp]:
		return asm.Mul[reg]{Unary: a.unary(instr.Unary, R)}
	case asm.Div[temp]:
		return asm.Div[reg]{Unary: a.unary(instr.Unary, R)}
	case asm.Un[temp]:
		return asm.Un[reg]{Op: instr.Op, Unary: a.unary(instr.Unary, RW)}
	case asm.Pop[temp]:
		return asm.Pop[reg]{Unary: a.unary(instr.Unary, W)}
	case asm.Push[temp]:
		return asm.Push[reg]{Unary: a.unary(instr.Unary, R)}
	case asm.Lea[temp]:
		return asm.Lea[reg]{Mem: a.assigner.Mem(instr.Mem), Dst: a.assigner.Temp(instr.Dst, W)}
	case asm.Cmp[temp]:
		return asm.Cmp[reg]{Binary: a.binary(instr.Binary, R)}
	default:
		return convert(instr)
	}
}

// convert carries the register-free instructions across the type change.
func convert(instr asm.Asm[temp]) asm.Asm[reg] {
	switch instr := instr.(type) {
	case asm.Jmp[temp]:
		return asm.Jmp[reg]{Label: instr.Label}
	case asm.Jcc[temp]:
		return asm.Jcc[reg]{Op: instr.Op, Label: instr.Label}
	case asm.Call[temp]:
		return asm.Call[reg]{Label: instr.Label}
	case asm.Label[temp]:
		return asm.Label[reg]{Label: instr.Label}
	case asm.Comment[temp]:
		return asm.Comment[reg]{Text: instr.Text}
	case asm.Direct[temp]:
		return asm.Direct[reg]{Directive: instr.Directive}
	case asm.Cqo[temp]:
		return asm.Cqo[reg]{}
	case asm.Ret[temp]:
		return asm.Ret[reg]{}
	}
	panic("internal error: converting temp-dependent instruction")
}
