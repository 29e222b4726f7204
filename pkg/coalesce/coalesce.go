// Package coalesce collapses redundant move pairs with a sliding
// two-instruction window. Every rule forwards a value through a dead
// intermediate register or memory cell, which holds for the freshly
// generated temps of the tiled stream, so the pass is sound both before
// and after register allocation.
package coalesce

import (
	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

// Coalesce rewrites every function in the unit.
func Coalesce[T operand.Operand](unit asm.Unit[T]) asm.Unit[T] {
	functions := make([]asm.Function[T], len(unit.Functions))
	for i, fn := range unit.Functions {
		functions[i] = Function(fn)
	}
	return asm.Unit[T]{Data: unit.Data, Functions: functions}
}

// Function slides the window over one instruction stream. A matched pair
// is replaced by its single combined move and the window restarts after
// it.
func Function[T operand.Operand](fn asm.Function[T]) asm.Function[T] {
	body := fn.Body
	var coalesced []asm.Asm[T]

	for i := 0; i < len(body); {
		if i == len(body)-1 {
			coalesced = append(coalesced, body[i])
			break
		}
		if merged, ok := merge(body[i], body[i+1]); ok {
			coalesced = append(coalesced, merged)
			i += 2
			continue
		}
		coalesced = append(coalesced, body[i])
		i++
	}

	return asm.Function[T]{Body: coalesced, StackInfo: fn.StackInfo}
}

// merge applies the window rules to two adjacent instructions.
func merge[T operand.Operand](first, second asm.Asm[T]) (asm.Asm[T], bool) {
	a, ok := first.(asm.Mov[T])
	if !ok {
		return nil, false
	}
	b, ok := second.(asm.Mov[T])
	if !ok {
		return nil, false
	}

	switch src := a.Binary.(type) {
	case asm.IR[T]:
		switch dst := b.Binary.(type) {
		case asm.RM[T]:
			// imm -> r ; r -> m  becomes  imm -> m
			if src.Dst == dst.Src {
				return asm.Mov[T]{Binary: asm.IM[T]{Src: src.Src, Dst: dst.Dst}}, true
			}
		case asm.RR[T]:
			// imm -> r ; r -> r'  becomes  imm -> r'
			if src.Dst == dst.Src {
				return asm.Mov[T]{Binary: asm.IR[T]{Src: src.Src, Dst: dst.Dst}}, true
			}
		}
	case asm.IM[T]:
		// imm -> m ; m -> r  becomes  imm -> r
		if dst, ok := b.Binary.(asm.MR[T]); ok && src.Dst == dst.Src {
			return asm.Mov[T]{Binary: asm.IR[T]{Src: src.Src, Dst: dst.Dst}}, true
		}
	case asm.MR[T]:
		// m -> r ; r -> r'  becomes  m -> r'
		if dst, ok := b.Binary.(asm.RR[T]); ok && src.Dst == dst.Src {
			return asm.Mov[T]{Binary: asm.MR[T]{Src: src.Src, Dst: dst.Dst}}, true
		}
	case asm.RM[T]:
		// r -> m ; m -> r'  becomes  r -> r'
		if dst, ok := b.Binary.(asm.MR[T]); ok && src.Dst == dst.Src {
			return asm.Mov[T]{Binary: asm.RR[T]{Src: src.Src, Dst: dst.Dst}}, true
		}
	case asm.RR[T]:
		switch dst := b.Binary.(type) {
		case asm.RR[T]:
			// r -> r' ; r' -> r''  becomes  r -> r''
			if src.Dst == dst.Src {
				return asm.Mov[T]{Binary: asm.RR[T]{Src: src.Src, Dst: dst.Dst}}, true
			}
		case asm.RM[T]:
			// r -> r' ; r' -> m  becomes  r -> m
			if src.Dst == dst.Src {
				return asm.Mov[T]{Binary: asm.RM[T]{Src: src.Src, Dst: dst.Dst}}, true
			}
		}
	}
	return nil, false
}
