package ir

import (
	"testing"

	"github.com/raymyers/tiger-cc/pkg/operand"
)

func TestAsExpMaterializesCond(t *testing.T) {
	cx := Cx{Build: func(tl, fl operand.Label) Stm {
		return CJump{Lhs: Const{1}, Op: Lt, Rhs: Const{2}, True: tl, False: fl}
	}}
	exp := AsExp(cx)
	eseq, ok := exp.(ESeq)
	if !ok {
		t.Fatalf("expected ESeq, got %#v", exp)
	}
	seq, ok := eseq.Stm.(Seq)
	if !ok || len(seq.Stms) != 5 {
		t.Fatalf("expected 5-statement materialization, got %#v", eseq.Stm)
	}
	// First: move 1 into the result, then branch, false label, move 0,
	// true label
	first, ok := seq.Stms[0].(Move)
	if !ok || first.Src.(Const).Value != 1 {
		t.Errorf("expected move of 1 first, got %#v", seq.Stms[0])
	}
	if _, ok := seq.Stms[1].(CJump); !ok {
		t.Errorf("expected branch second, got %#v", seq.Stms[1])
	}
	fourth, ok := seq.Stms[3].(Move)
	if !ok || fourth.Src.(Const).Value != 0 {
		t.Errorf("expected move of 0 fourth, got %#v", seq.Stms[3])
	}
}

func TestAsStmJoinsCond(t *testing.T) {
	var gotT, gotF operand.Label
	cx := Cx{Build: func(tl, fl operand.Label) Stm {
		gotT, gotF = tl, fl
		return CJump{Lhs: Const{1}, Op: Eq, Rhs: Const{1}, True: tl, False: fl}
	}}
	stm := AsStm(cx)
	if _, ok := stm.(Seq); !ok {
		t.Fatalf("expected Seq, got %#v", stm)
	}
	if gotT != gotF {
		t.Errorf("effect-only cond should join both edges to one label")
	}
}

func TestAsCondOfExp(t *testing.T) {
	cond := AsCond(Ex{Exp: Temp{operand.NewTemp("X")}})
	tl := operand.NewLabel("T")
	fl := operand.NewLabel("F")
	cjump, ok := cond(tl, fl).(CJump)
	if !ok {
		t.Fatalf("expected CJump")
	}
	// Nonzero means true: equality with zero branches to the false label
	if cjump.Op != Eq || cjump.True != fl || cjump.False != tl {
		t.Errorf("unexpected comparison: %#v", cjump)
	}
	if cjump.Rhs.(Const).Value != 0 {
		t.Errorf("expected comparison with zero")
	}
}

func TestAsCondOfStmPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic converting statement to condition")
		}
	}()
	AsCond(Nx{Stm: ExpStm{Const{0}}})
}

func TestRelopNegate(t *testing.T) {
	pairs := map[Relop]Relop{
		Eq: Ne, Ne: Eq, Lt: Ge, Ge: Lt, Gt: Le, Le: Gt,
	}
	for op, want := range pairs {
		if got := op.Negate(); got != want {
			t.Errorf("negate %v: expected %v, got %v", op, want, got)
		}
		if got := op.Negate().Negate(); got != op {
			t.Errorf("double negation of %v changed it to %v", op, got)
		}
	}
}

func TestUniqueIDs(t *testing.T) {
	a := operand.NewLabel("L")
	b := operand.NewLabel("L")
	if a == b {
		t.Errorf("labels with the same name must have distinct ids")
	}
	x := operand.NewTemp("X")
	y := operand.NewTemp("X")
	if x == y {
		t.Errorf("temps with the same name must have distinct ids")
	}
}
