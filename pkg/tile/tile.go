// Package tile performs instruction selection: a maximal-munch walk over
// canonical IR emitting abstract x86-64 with symbolic temporaries. Each
// function is framed by a fixed prologue and epilogue whose stack
// adjustment is a marker comment patched in by the allocator once the
// frame size is known.
package tile

import (
	"github.com/raymyers/tiger-cc/pkg/asm"
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

type temp = operand.Temp

// Tile selects instructions for a whole unit. String literals become
// .local/.asciz entries in the data section.
func Tile(unit ir.Unit) asm.Unit[temp] {
	var data []asm.Asm[temp]
	for _, d := range unit.Data {
		data = append(data,
			asm.Direct[temp]{Directive: asm.Local{Label: d.Label}},
			asm.Label[temp]{Label: d.Label},
			asm.Direct[temp]{Directive: asm.Asciz{Contents: d.Contents}},
		)
	}

	functions := make([]asm.Function[temp], len(unit.Functions))
	for i, fn := range unit.Functions {
		functions[i] = Function(fn)
	}

	return asm.Unit[temp]{Data: data, Functions: functions}
}

// Function tiles one function body between the standard prologue and
// epilogue. Callee-saved registers are parked in fresh temps so a
// stronger assigner can keep them in registers.
func Function(fn ir.Function) asm.Function[temp] {
	t := &tiler{}
	for _, stm := range fn.Body {
		t.stm(stm)
	}

	storeRbx := operand.NewTemp("STORE_RBX")
	storeR12 := operand.NewTemp("STORE_R12")
	storeR13 := operand.NewTemp("STORE_R13")
	storeR14 := operand.NewTemp("STORE_R14")
	storeR15 := operand.NewTemp("STORE_R15")

	subRsp := "REPLACE_SUB_RSP_" + fn.Label.String()
	addRsp := "REPLACE_ADD_RSP_" + fn.Label.String()

	rbp := operand.RegTemp(operand.RBP)
	rsp := operand.RegTemp(operand.RSP)

	prologue := []asm.Asm[temp]{
		asm.Direct[temp]{Directive: asm.Global{Label: fn.Label}},
		asm.Direct[temp]{Directive: asm.Align{N: 4}},
		asm.Label[temp]{Label: fn.Label},
		asm.Push[temp]{Unary: asm.UR[temp]{Reg: rbp}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: rsp, Dst: rbp}},
		asm.Comment[temp]{Text: subRsp},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: operand.RegTemp(operand.RBX), Dst: storeRbx}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: operand.RegTemp(operand.R12), Dst: storeR12}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: operand.RegTemp(operand.R13), Dst: storeR13}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: operand.RegTemp(operand.R14), Dst: storeR14}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: operand.RegTemp(operand.R15), Dst: storeR15}},
	}

	epilogue := []asm.Asm[temp]{
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: storeRbx, Dst: operand.RegTemp(operand.RBX)}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: storeR12, Dst: operand.RegTemp(operand.R12)}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: storeR13, Dst: operand.RegTemp(operand.R13)}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: storeR14, Dst: operand.RegTemp(operand.R14)}},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: storeR15, Dst: operand.RegTemp(operand.R15)}},
		asm.Comment[temp]{Text: addRsp},
		asm.Mov[temp]{Binary: asm.RR[temp]{Src: rbp, Dst: rsp}},
		asm.Pop[temp]{Unary: asm.UR[temp]{Reg: rbp}},
		asm.Ret[temp]{},
	}

	body := make([]asm.Asm[temp], 0, len(prologue)+len(t.out)+len(epilogue))
	body = append(body, prologue...)
	body = append(body, t.out...)
	body = append(body, epilogue...)

	return asm.Function[temp]{
		Body: body,
		StackInfo: asm.StackInfo{
			Size:   fn.Escapes + t.spilledArgs,
			SubRsp: subRsp,
			AddRsp: addRsp,
		},
	}
}

type tiler struct {
	out         []asm.Asm[temp]
	spilledArgs int
}

func (t *tiler) push(a asm.Asm[temp]) {
	t.out = append(t.out, a)
}

// intoTemp forces a value into a register, emitting a load when needed.
func (t *tiler) intoTemp(v asm.Value[temp]) temp {
	switch v := v.(type) {
	case asm.VReg[temp]:
		return v.Reg
	case asm.VMem[temp]:
		dst := operand.NewTemp("TILE_MEM")
		t.push(asm.Mov[temp]{Binary: asm.MR[temp]{Src: v.Mem, Dst: dst}})
		return dst
	case asm.VImm[temp]:
		dst := operand.NewTemp("TILE_IMM")
		t.push(asm.Mov[temp]{Binary: asm.IR[temp]{Src: v.Imm, Dst: dst}})
		return dst
	}
	panic("internal error: unknown value variant")
}

func (t *tiler) stm(stm ir.Stm) {
	switch s := stm.(type) {
	case ir.Seq:
		panic("internal error: no Seq statement in canonical IR")
	case ir.Comment:
		t.push(asm.Comment[temp]{Text: s.Text})
	case ir.Label:
		t.push(asm.Label[temp]{Label: s.Label})
	case ir.Jump:
		name, ok := s.Dst.(ir.Name)
		if !ok {
			panic("internal error: can only jump to labels")
		}
		t.push(asm.Jmp[temp]{Label: name.Label})
	case ir.Move:
		binary := t.binary(s.Src, s.Dst)
		t.push(asm.Mov[temp]{Binary: binary})
	case ir.CJump:
		// Operands reversed: AT&T cmpq b, a compares a with b
		binary := t.binary(s.Rhs, s.Lhs)
		t.push(asm.Cmp[temp]{Binary: binary})
		t.push(asm.Jcc[temp]{Op: relop(s.Op), Label: s.True})
	case ir.ExpStm:
		call, ok := s.Exp.(ir.Call)
		if !ok {
			panic("internal error: no Exp statement in canonical IR")
		}
		t.exp(call)
	default:
		panic("internal error: unknown statement variant")
	}
}

// binary tiles a (source, destination) pair into the tightest two-operand
// shape.
func (t *tiler) binary(lhs, rhs ir.Exp) asm.Binary[temp] {
	lv := t.exp(lhs)
	rv := t.exp(rhs)

	if imm, ok := lv.(asm.VImm[temp]); ok {
		switch rv := rv.(type) {
		case asm.VReg[temp]:
			return asm.IR[temp]{Src: imm.Imm, Dst: rv.Reg}
		case asm.VMem[temp]:
			return asm.IM[temp]{Src: imm.Imm, Dst: rv.Mem}
		}
	}
	if mem, ok := lv.(asm.VMem[temp]); ok {
		if rv, ok := rv.(asm.VReg[temp]); ok {
			return asm.MR[temp]{Src: mem.Mem, Dst: rv.Reg}
		}
	}
	if rv, ok := rv.(asm.VMem[temp]); ok {
		return asm.RM[temp]{Src: t.intoTemp(lv), Dst: rv.Mem}
	}
	return asm.RR[temp]{Src: t.intoTemp(lv), Dst: t.intoTemp(rv)}
}

// matchScaled recognizes reg * scale in either operand order.
func matchScaled(exp ir.Exp) (ir.Exp, operand.Scale, bool) {
	bin, ok := exp.(ir.BinExp)
	if !ok || bin.Op != ir.Mul {
		return nil, 0, false
	}
	if c, ok := bin.Rhs.(ir.Const); ok && operand.ValidScale(c.Value) {
		return bin.Lhs, operand.ScaleOf(c.Value), true
	}
	if c, ok := bin.Lhs.(ir.Const); ok && operand.ValidScale(c.Value) {
		return bin.Rhs, operand.ScaleOf(c.Value), true
	}
	return nil, 0, false
}

// addr munches an address expression into the most specific memory
// operand shape the addressing modes allow.
func (t *tiler) addr(exp ir.Exp) operand.Mem[temp] {
	if bin, ok := exp.(ir.BinExp); ok {
		switch bin.Op {
		case ir.Add:
			if c, ok := bin.Rhs.(ir.Const); ok {
				return t.offsetAddr(bin.Lhs, c.Value)
			}
			if c, ok := bin.Lhs.(ir.Const); ok {
				return t.offsetAddr(bin.Rhs, c.Value)
			}
			if index, scale, ok := matchScaled(bin.Rhs); ok {
				base := t.expTemp(bin.Lhs)
				return operand.BRSO(base, t.expTemp(index), scale, 0)
			}
			if index, scale, ok := matchScaled(bin.Lhs); ok {
				base := t.expTemp(bin.Rhs)
				return operand.BRSO(base, t.expTemp(index), scale, 0)
			}
		case ir.Sub:
			if c, ok := bin.Rhs.(ir.Const); ok {
				return t.offsetAddr(bin.Lhs, -c.Value)
			}
		}
	}
	if index, scale, ok := matchScaled(exp); ok {
		return operand.RSO(t.expTemp(index), scale, 0)
	}
	return operand.R(t.expTemp(exp))
}

// offsetAddr munches the register part of an offset address.
func (t *tiler) offsetAddr(exp ir.Exp, offset int32) operand.Mem[temp] {
	if index, scale, ok := matchScaled(exp); ok {
		return operand.RSO(t.expTemp(index), scale, offset)
	}
	if bin, ok := exp.(ir.BinExp); ok && bin.Op == ir.Add {
		if index, scale, ok := matchScaled(bin.Rhs); ok {
			base := t.expTemp(bin.Lhs)
			return operand.BRSO(base, t.expTemp(index), scale, offset)
		}
		if index, scale, ok := matchScaled(bin.Lhs); ok {
			base := t.expTemp(bin.Rhs)
			return operand.BRSO(base, t.expTemp(index), scale, offset)
		}
	}
	return operand.RO(t.expTemp(exp), offset)
}

func (t *tiler) expTemp(exp ir.Exp) temp {
	return t.intoTemp(t.exp(exp))
}

func (t *tiler) exp(exp ir.Exp) asm.Value[temp] {
	switch e := exp.(type) {
	case ir.Const:
		return asm.VImm[temp]{Imm: asm.Int(e.Value)}
	case ir.Name:
		return asm.VImm[temp]{Imm: asm.LabelImm(e.Label)}
	case ir.Temp:
		return asm.VReg[temp]{Reg: e.Temp}
	case ir.ESeq:
		panic("internal error: no ESeq expression in canonical IR")
	case ir.Mem:
		return asm.VMem[temp]{Mem: t.addr(e.Addr)}
	case ir.BinExp:
		return t.binop(e)
	case ir.Call:
		return t.call(e)
	}
	panic("internal error: unknown expression variant")
}

func isConst(exp ir.Exp, value int32) bool {
	c, ok := exp.(ir.Const)
	return ok && c.Value == value
}

func (t *tiler) binop(e ir.BinExp) asm.Value[temp] {
	// Negation
	if e.Op == ir.Sub && isConst(e.Lhs, 0) {
		return t.unop(e.Rhs, asm.Neg)
	}

	// Increment and decrement
	if e.Op == ir.Add && isConst(e.Rhs, 1) {
		return t.unop(e.Lhs, asm.Inc)
	}
	if e.Op == ir.Add && isConst(e.Lhs, 1) {
		return t.unop(e.Rhs, asm.Inc)
	}
	if e.Op == ir.Sub && isConst(e.Rhs, 1) {
		return t.unop(e.Lhs, asm.Dec)
	}

	if op, ok := binop(e.Op); ok {
		// Materialize the result in its own temp: Sub destroys its
		// destination and has backwards operands, so every tile moves
		// the left operand first
		result := ir.Temp{Temp: operand.NewTemp("TILE_BINOP_RESULT")}
		binaryMv := t.binary(e.Lhs, result)
		binaryOp := t.binary(e.Rhs, result)
		t.push(asm.Mov[temp]{Binary: binaryMv})
		t.push(asm.Bin[temp]{Op: op, Binary: binaryOp})
		switch dest := binaryOp.Dest().(type) {
		case asm.VReg[temp]:
			return dest
		case asm.VMem[temp]:
			return dest
		}
		panic("internal error: binop destination is not a location")
	}

	return t.muldiv(e)
}

// muldiv tiles multiplication, division, and modulo through the
// rax/rdx protocol.
func (t *tiler) muldiv(e ir.BinExp) asm.Value[temp] {
	lv := t.exp(e.Lhs)
	rv := t.exp(e.Rhs)
	result := operand.NewTemp("TILE_DIV_MUL_RESULT")
	rax := operand.RegTemp(operand.RAX)
	rdx := operand.RegTemp(operand.RDX)

	var moveL asm.Binary[temp]
	switch lv := lv.(type) {
	case asm.VImm[temp]:
		moveL = asm.IR[temp]{Src: lv.Imm, Dst: rax}
	case asm.VMem[temp]:
		moveL = asm.MR[temp]{Src: lv.Mem, Dst: rax}
	default:
		moveL = asm.RR[temp]{Src: t.intoTemp(lv), Dst: rax}
	}

	var useR asm.Unary[temp]
	switch rv := rv.(type) {
	case asm.VMem[temp]:
		useR = asm.UM[temp]{Mem: rv.Mem}
	default:
		useR = asm.UR[temp]{Reg: t.intoTemp(rv)}
	}

	t.push(asm.Mov[temp]{Binary: moveL})

	switch e.Op {
	case ir.Mul:
		t.push(asm.Mul[temp]{Unary: useR})
		t.push(asm.Mov[temp]{Binary: asm.RR[temp]{Src: rax, Dst: result}})
	case ir.Div:
		t.push(asm.Cqo[temp]{})
		t.push(asm.Div[temp]{Unary: useR})
		t.push(asm.Mov[temp]{Binary: asm.RR[temp]{Src: rax, Dst: result}})
	case ir.Mod:
		t.push(asm.Cqo[temp]{})
		t.push(asm.Div[temp]{Unary: useR})
		t.push(asm.Mov[temp]{Binary: asm.RR[temp]{Src: rdx, Dst: result}})
	default:
		panic("internal error: non-exhaustive binop tiling")
	}

	return asm.VReg[temp]{Reg: result}
}

func (t *tiler) unop(exp ir.Exp, op asm.Unop) asm.Value[temp] {
	result := operand.NewTemp("TILE_UNARY_RESULT")
	binaryMv := t.binary(exp, ir.Temp{Temp: result})
	t.push(asm.Mov[temp]{Binary: binaryMv})
	t.push(asm.Un[temp]{Op: op, Unary: asm.UR[temp]{Reg: result}})
	return asm.VReg[temp]{Reg: result}
}

// call tiles a direct call: the first six arguments ride in registers,
// the rest spill to positive rsp offsets accounted into the frame.
func (t *tiler) call(e ir.Call) asm.Value[temp] {
	name, ok := e.Fn.(ir.Name)
	if !ok {
		panic("internal error: calling non-label")
	}

	argOffset := 0
	returnTemp := operand.NewTemp("TILE_CALL")

	for i, arg := range e.Args {
		var binary asm.Binary[temp]
		value := t.exp(arg)
		switch {
		case i < 6:
			dst := operand.RegTemp(operand.Argument(i))
			if mem, ok := value.(asm.VMem[temp]); ok {
				binary = asm.MR[temp]{Src: mem.Mem, Dst: dst}
			} else {
				binary = asm.RR[temp]{Src: t.intoTemp(value), Dst: dst}
			}
		default:
			src := t.intoTemp(value)
			argOffset++
			binary = asm.RM[temp]{
				Src: src,
				Dst: operand.RO(operand.RegTemp(operand.RSP), int32(argOffset*operand.WordSize)),
			}
		}
		t.push(asm.Mov[temp]{Binary: binary})
	}

	if argOffset > t.spilledArgs {
		t.spilledArgs = argOffset
	}
	t.push(asm.Call[temp]{Label: name.Label})
	t.push(asm.Mov[temp]{Binary: asm.RR[temp]{
		Src: operand.RegTemp(operand.Return()),
		Dst: returnTemp,
	}})

	return asm.VReg[temp]{Reg: returnTemp}
}

func binop(op ir.Binop) (asm.Binop, bool) {
	switch op {
	case ir.Add:
		return asm.Add, true
	case ir.Sub:
		return asm.Sub, true
	case ir.And:
		return asm.And, true
	case ir.Or:
		return asm.Or, true
	case ir.XOr:
		return asm.XOr, true
	}
	return 0, false
}

func relop(op ir.Relop) asm.Relop {
	switch op {
	case ir.Eq:
		return asm.E
	case ir.Ne:
		return asm.Ne
	case ir.Lt:
		return asm.L
	case ir.Le:
		return asm.Le
	case ir.Gt:
		return asm.G
	case ir.Ge:
		return asm.Ge
	}
	panic("internal error: unknown relop")
}
