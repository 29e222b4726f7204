package allocate

import (
	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

// scratchRegs are the registers the trivial assigner shuttles spilled
// temps through, in assignment order. r10 and r11 are neither argument
// nor callee-saved registers; rax backs the worst case of three distinct
// temps in one instruction (a register operand against a base+index
// memory operand). An instruction that touches rax implicitly or as a
// pinned operand never also carries three spilled temps, so the third
// scratch cannot clobber it.
var scratchRegs = [...]reg{operand.R10, operand.R11, operand.RAX}

// use records one temp's scratch assignment within the current
// instruction.
type use struct {
	reg    reg
	stored bool
}

// Trivial is the spill-everywhere assigner: every generated temp gets a
// stack slot on first reference and borrows a scratch register for the
// duration of one instruction. A temp referenced twice in the same
// instruction keeps its first scratch register instead of loading again.
type Trivial struct {
	slots     map[temp]int32
	stackSize int
	assigned  map[temp]use
	loads     []asm.Asm[reg]
	stores    []asm.Asm[reg]
}

// NewTrivial builds a Trivial assigner; it satisfies the New signature.
func NewTrivial(stackSize int) Assigner {
	return &Trivial{
		slots:     make(map[temp]int32),
		stackSize: stackSize,
		assigned:  make(map[temp]use),
	}
}

// StackSize reports the frame size including every spilled temp.
func (t *Trivial) StackSize() int {
	return t.stackSize
}

// LoadTemps drains the loads pending for the current instruction.
func (t *Trivial) LoadTemps(out []asm.Asm[reg]) []asm.Asm[reg] {
	out = append(out, t.loads...)
	t.loads = t.loads[:0]
	return out
}

// StoreTemps drains the stores pending for the current instruction and
// releases its scratch assignments.
func (t *Trivial) StoreTemps(out []asm.Asm[reg]) []asm.Asm[reg] {
	out = append(out, t.stores...)
	t.stores = t.stores[:0]
	clear(t.assigned)
	return out
}

// slot returns the temp's stack slot home, reserving one on first
// reference.
func (t *Trivial) slot(tmp temp) operand.Mem[reg] {
	n, ok := t.slots[tmp]
	if !ok {
		t.stackSize++
		n = int32(t.stackSize)
		t.slots[tmp] = n
	}
	return operand.RO(operand.RBP, -n*operand.WordSize)
}

// Temp resolves a temp: pinned temps map straight to their register,
// everything else lives in its stack slot and borrows the next free
// scratch register. Repeated references within one instruction reuse
// the same scratch so a later operand cannot clobber an earlier one.
func (t *Trivial) Temp(tmp temp, dir Dir) reg {
	if tmp.Fixed {
		return tmp.Reg
	}

	mem := t.slot(tmp)

	if u, ok := t.assigned[tmp]; ok {
		if (dir == W || dir == RW) && !u.stored {
			t.stores = append(t.stores, asm.Mov[reg]{Binary: asm.RM[reg]{Src: u.reg, Dst: mem}})
			u.stored = true
			t.assigned[tmp] = u
		}
		return u.reg
	}

	if len(t.assigned) >= len(scratchRegs) {
		panic("internal error: out of scratch registers")
	}
	scratch := scratchRegs[len(t.assigned)]

	if dir == R || dir == RW {
		t.loads = append(t.loads, asm.Mov[reg]{Binary: asm.MR[reg]{Src: mem, Dst: scratch}})
	}
	stored := false
	if dir == W || dir == RW {
		t.stores = append(t.stores, asm.Mov[reg]{Binary: asm.RM[reg]{Src: scratch, Dst: mem}})
		stored = true
	}

	t.assigned[tmp] = use{reg: scratch, stored: stored}
	return scratch
}

// Mem lifts a memory operand, resolving each embedded temp as a read.
func (t *Trivial) Mem(m operand.Mem[temp]) operand.Mem[reg] {
	switch m.Kind {
	case operand.MemR:
		return operand.R(t.Temp(m.Base, R))
	case operand.MemRO:
		return operand.RO(t.Temp(m.Base, R), m.Offset)
	case operand.MemRSO:
		return operand.RSO(t.Temp(m.Index, R), m.Scale, m.Offset)
	case operand.MemBRSO:
		base := t.Temp(m.Base, R)
		return operand.BRSO(base, t.Temp(m.Index, R), m.Scale, m.Offset)
	}
	panic("internal error: unknown memory operand kind")
}
