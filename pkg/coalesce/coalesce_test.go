package coalesce

import (
	"testing"

	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

type reg = operand.Reg

func mov(b asm.Binary[reg]) asm.Asm[reg] {
	return asm.Mov[reg]{Binary: b}
}

func run(body ...asm.Asm[reg]) []asm.Asm[reg] {
	fn := Function(asm.Function[reg]{Body: body})
	return fn.Body
}

func TestCoalesceRules(t *testing.T) {
	mem := operand.RO(operand.RBP, -8)
	otherMem := operand.RO(operand.RBP, -16)

	tests := []struct {
		name   string
		first  asm.Binary[reg]
		second asm.Binary[reg]
		want   asm.Binary[reg]
	}{
		{
			"imm through reg to mem",
			asm.IR[reg]{Src: asm.Int(5), Dst: operand.R10},
			asm.RM[reg]{Src: operand.R10, Dst: mem},
			asm.IM[reg]{Src: asm.Int(5), Dst: mem},
		},
		{
			"imm through reg to reg",
			asm.IR[reg]{Src: asm.Int(5), Dst: operand.R10},
			asm.RR[reg]{Src: operand.R10, Dst: operand.RAX},
			asm.IR[reg]{Src: asm.Int(5), Dst: operand.RAX},
		},
		{
			"imm through mem to reg",
			asm.IM[reg]{Src: asm.Int(5), Dst: mem},
			asm.MR[reg]{Src: mem, Dst: operand.RAX},
			asm.IR[reg]{Src: asm.Int(5), Dst: operand.RAX},
		},
		{
			"mem through reg to reg",
			asm.MR[reg]{Src: mem, Dst: operand.R10},
			asm.RR[reg]{Src: operand.R10, Dst: operand.RAX},
			asm.MR[reg]{Src: mem, Dst: operand.RAX},
		},
		{
			"reg through mem to reg",
			asm.RM[reg]{Src: operand.RAX, Dst: mem},
			asm.MR[reg]{Src: mem, Dst: operand.RBX},
			asm.RR[reg]{Src: operand.RAX, Dst: operand.RBX},
		},
		{
			"reg through reg to reg",
			asm.RR[reg]{Src: operand.RAX, Dst: operand.R10},
			asm.RR[reg]{Src: operand.R10, Dst: operand.RBX},
			asm.RR[reg]{Src: operand.RAX, Dst: operand.RBX},
		},
		{
			"reg through reg to mem",
			asm.RR[reg]{Src: operand.RAX, Dst: operand.R10},
			asm.RM[reg]{Src: operand.R10, Dst: mem},
			asm.RM[reg]{Src: operand.RAX, Dst: mem},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(mov(tt.first), mov(tt.second))
			if len(out) != 1 {
				t.Fatalf("expected 1 instruction, got %d", len(out))
			}
			got, ok := out[0].(asm.Mov[reg])
			if !ok {
				t.Fatalf("expected mov, got %#v", out[0])
			}
			if got.Binary != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got.Binary)
			}
		})
	}

	// Mismatched intermediates stay untouched
	out := run(
		mov(asm.IR[reg]{Src: asm.Int(5), Dst: operand.R10}),
		mov(asm.RM[reg]{Src: operand.R11, Dst: otherMem}),
	)
	if len(out) != 2 {
		t.Errorf("expected no coalescing, got %d instructions", len(out))
	}
}

func TestCoalesceSkipsNonMoves(t *testing.T) {
	out := run(
		mov(asm.IR[reg]{Src: asm.Int(5), Dst: operand.R10}),
		asm.Bin[reg]{Op: asm.Add, Binary: asm.RR[reg]{Src: operand.R10, Dst: operand.RAX}},
		mov(asm.RR[reg]{Src: operand.RAX, Dst: operand.RBX}),
	)
	if len(out) != 3 {
		t.Errorf("expected 3 instructions untouched, got %d", len(out))
	}
}

func TestCoalesceChains(t *testing.T) {
	// Three moves collapse pairwise left to right: the first pair merges,
	// the window restarts after the merged move, and the third is kept
	out := run(
		mov(asm.RR[reg]{Src: operand.RAX, Dst: operand.R10}),
		mov(asm.RR[reg]{Src: operand.R10, Dst: operand.R11}),
		mov(asm.RR[reg]{Src: operand.R11, Dst: operand.RBX}),
	)
	// One window pass: first two merge, third is kept
	if len(out) != 2 {
		t.Fatalf("expected 2 instructions after one pass, got %d", len(out))
	}
	first := out[0].(asm.Mov[reg]).Binary.(asm.RR[reg])
	if first.Src != operand.RAX || first.Dst != operand.R11 {
		t.Errorf("unexpected first merge: %#v", first)
	}
}

func TestCoalesceWorksOverTemps(t *testing.T) {
	a := operand.NewTemp("A")
	b := operand.NewTemp("B")
	body := []asm.Asm[operand.Temp]{
		asm.Mov[operand.Temp]{Binary: asm.IR[operand.Temp]{Src: asm.Int(3), Dst: a}},
		asm.Mov[operand.Temp]{Binary: asm.RR[operand.Temp]{Src: a, Dst: b}},
	}
	fn := Function(asm.Function[operand.Temp]{Body: body})
	if len(fn.Body) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(fn.Body))
	}
	got := fn.Body[0].(asm.Mov[operand.Temp]).Binary.(asm.IR[operand.Temp])
	if got.Src.Value != 3 || got.Dst != b {
		t.Errorf("unexpected merge: %#v", got)
	}
}
