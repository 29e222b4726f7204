package asm

import (
	"strings"
	"testing"

	"github.com/raymyers/tiger-cc/pkg/operand"
)

func print(a Asm[operand.Reg]) string {
	var sb strings.Builder
	NewPrinter[operand.Reg](&sb).PrintAsm(a)
	return strings.TrimRight(sb.String(), "\n")
}

func TestPrintInstructions(t *testing.T) {
	mem := operand.RO(operand.RBP, -8)
	label := operand.FixedLabel("print")

	tests := []struct {
		name string
		asm  Asm[operand.Reg]
		want string
	}{
		{"mov imm reg", Mov[operand.Reg]{Binary: IR[operand.Reg]{Src: Int(42), Dst: operand.RAX}}, "    movq $42, %rax"},
		{"mov mem reg", Mov[operand.Reg]{Binary: MR[operand.Reg]{Src: mem, Dst: operand.RBX}}, "    movq -8(%rbp), %rbx"},
		{"mov label imm", Mov[operand.Reg]{Binary: IR[operand.Reg]{Src: LabelImm(label), Dst: operand.RDI}}, "    movq $print, %rdi"},
		{"add", Bin[operand.Reg]{Op: Add, Binary: RR[operand.Reg]{Src: operand.RAX, Dst: operand.RBX}}, "    addq %rax, %rbx"},
		{"sub imm", Bin[operand.Reg]{Op: Sub, Binary: IR[operand.Reg]{Src: Int(16), Dst: operand.RSP}}, "    subq $16, %rsp"},
		{"imul", Mul[operand.Reg]{Unary: UR[operand.Reg]{Reg: operand.RCX}}, "    imulq %rcx"},
		{"idiv mem", Div[operand.Reg]{Unary: UM[operand.Reg]{Mem: mem}}, "    idivq -8(%rbp)"},
		{"neg", Un[operand.Reg]{Op: Neg, Unary: UR[operand.Reg]{Reg: operand.RAX}}, "    negq %rax"},
		{"inc", Un[operand.Reg]{Op: Inc, Unary: UR[operand.Reg]{Reg: operand.RAX}}, "    incq %rax"},
		{"push", Push[operand.Reg]{Unary: UR[operand.Reg]{Reg: operand.RBP}}, "    pushq %rbp"},
		{"pop", Pop[operand.Reg]{Unary: UR[operand.Reg]{Reg: operand.RBP}}, "    popq %rbp"},
		{"lea", Lea[operand.Reg]{Mem: mem, Dst: operand.RAX}, "    leaq -8(%rbp), %rax"},
		{"cmp", Cmp[operand.Reg]{Binary: IR[operand.Reg]{Src: Int(0), Dst: operand.RAX}}, "    cmpq $0, %rax"},
		{"jmp", Jmp[operand.Reg]{Label: label}, "    jmp print"},
		{"jle", Jcc[operand.Reg]{Op: Le, Label: label}, "    jle print"},
		{"call", Call[operand.Reg]{Label: label}, "    callq print"},
		{"cqo", Cqo[operand.Reg]{}, "    cqo"},
		{"ret", Ret[operand.Reg]{}, "    retq"},
		{"label", Label[operand.Reg]{Label: label}, "print:"},
		{"globl", Direct[operand.Reg]{Directive: Global{Label: label}}, ".globl print"},
		{"align", Direct[operand.Reg]{Directive: Align{N: 4}}, ".align 4"},
		{"rodata", Direct[operand.Reg]{Directive: ROData{}}, ".rodata"},
		{"text", Direct[operand.Reg]{Directive: Text{}}, ".text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := print(tt.asm); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrintMemoryOperands(t *testing.T) {
	tests := []struct {
		name string
		mem  operand.Mem[operand.Reg]
		want string
	}{
		{"plain", operand.R(operand.RAX), "(%rax)"},
		{"offset", operand.RO(operand.RBP, -16), "-16(%rbp)"},
		{"scaled", operand.RSO(operand.RCX, operand.Eight, 0), "0(,%rcx,8)"},
		{"base scaled", operand.BRSO(operand.RAX, operand.RCX, operand.Four, 8), "8(%rax,%rcx,4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mem.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrintAsciz(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", `    .asciz "hello"`},
		{"newline", "hi\n", `    .asciz "hi\n"`},
		{"quote", `say "hi"`, `    .asciz "say \"hi\""`},
		{"backslash", `a\b`, `    .asciz "a\\b"`},
		{"control", "\x01", `    .asciz "\001"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := print(Direct[operand.Reg]{Directive: Asciz{Contents: tt.in}})
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPrintUnitSections(t *testing.T) {
	label := operand.FixedLabel("main")
	str := operand.NewLabel("STRING")
	unit := Unit[operand.Reg]{
		Data: []Asm[operand.Reg]{
			Direct[operand.Reg]{Directive: Local{Label: str}},
			Label[operand.Reg]{Label: str},
			Direct[operand.Reg]{Directive: Asciz{Contents: "hi"}},
		},
		Functions: []Function[operand.Reg]{{
			Body: []Asm[operand.Reg]{
				Direct[operand.Reg]{Directive: Global{Label: label}},
				Label[operand.Reg]{Label: label},
				Ret[operand.Reg]{},
			},
		}},
	}

	var sb strings.Builder
	NewPrinter[operand.Reg](&sb).PrintUnit(&unit)
	out := sb.String()

	rodata := strings.Index(out, ".rodata")
	text := strings.Index(out, ".text")
	if rodata == -1 || text == -1 || rodata > text {
		t.Fatalf("expected .rodata before .text:\n%s", out)
	}
	for _, want := range []string{".local", ".asciz \"hi\"", ".globl main", "main:", "retq"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}
