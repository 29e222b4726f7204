// Package check implements the Tiger type checker. Checking and
// translation run in one walk: every well-typed expression comes back
// with its IR tree, and every function declaration emits a translated
// function into the unit under construction.
package check

import (
	"github.com/raymyers/tiger-cc/pkg/ast"
	"github.com/raymyers/tiger-cc/pkg/diag"
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/symbol"
	"github.com/raymyers/tiger-cc/pkg/translate"
	"github.com/raymyers/tiger-cc/pkg/types"
)

// Checker walks the AST carrying the contexts and translation state.
type Checker struct {
	done   []ir.Function
	data   []ir.Data
	loops  []operand.Label
	frames []*translate.Frame
	vc     *VarContext
	tc     *TypeContext
}

// typed pairs a checked expression's type with its translation.
type typed struct {
	ty   types.Ty
	tree ir.Tree
}

// Check runs escape analysis, type checking, and translation over a
// program, yielding the translated unit.
func Check(exp ast.Exp) (ir.Unit, *diag.Error) {
	Escape(exp)

	c := &Checker{
		frames: []*translate.Frame{translate.MainFrame()},
		vc:     NewVarContext(),
		tc:     NewTypeContext(),
	}

	main, err := c.exp(exp)
	if err != nil {
		return ir.Unit{}, err
	}

	frame := c.frames[len(c.frames)-1]
	c.done = append(c.done, frame.Wrap(main.tree))

	return ir.Unit{Data: c.data, Functions: c.done}, nil
}

func (c *Checker) frame() *translate.Frame {
	return c.frames[len(c.frames)-1]
}

func (c *Checker) variable(v ast.Var) (typed, *diag.Error) {
	switch v := v.(type) {
	case *ast.SimpleVar:
		ty, err := c.vc.Var(v.Position, v.Name)
		if err != nil {
			return typed{}, err
		}
		return typed{ty, translate.SimpleVar(c.frames, symbol.Intern(v.Name))}, nil

	case *ast.FieldVar:
		rec, err := c.variable(v.Rec)
		if err != nil {
			return typed{}, err
		}
		recTy, ok := rec.ty.(*types.Rec)
		if !ok {
			return typed{}, diag.Errorf(diag.Semantic, v.Rec.Pos(), "not a record type")
		}
		for i, field := range recTy.Fields {
			if field.Name != v.Field {
				continue
			}
			fieldTy, err := c.tc.Trace(v.Position, field.Type)
			if err != nil {
				return typed{}, err
			}
			return typed{fieldTy, translate.FieldVar(rec.tree, i)}, nil
		}
		return typed{}, diag.Errorf(diag.Semantic, v.Position, "unbound field %s", v.Field)

	case *ast.IndexVar:
		index, err := c.exp(v.Index)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(index.ty) {
			return typed{}, diag.Errorf(diag.Semantic, v.Index.Pos(), "array index must be an integer")
		}
		arr, err := c.variable(v.Arr)
		if err != nil {
			return typed{}, err
		}
		arrTy, ok := arr.ty.(*types.Arr)
		if !ok {
			return typed{}, diag.Errorf(diag.Semantic, v.Arr.Pos(), "not an array type")
		}
		return typed{arrTy.Elem, translate.IndexVar(arr.tree, index.tree)}, nil
	}
	panic("internal error: unknown variable variant")
}

func (c *Checker) exp(exp ast.Exp) (typed, *diag.Error) {
	switch e := exp.(type) {
	case *ast.NilExp:
		return typed{types.Nil{}, translate.Nil()}, nil

	case *ast.IntExp:
		return typed{types.Int{}, translate.Int(e.Value)}, nil

	case *ast.StrExp:
		return typed{types.Str{}, translate.Str(&c.data, e.Value)}, nil

	case *ast.VarExp:
		return c.variable(e.Var)

	case *ast.BreakExp:
		if len(c.loops) == 0 {
			return typed{}, diag.Errorf(diag.Semantic, e.Position, "break outside of loop")
		}
		return typed{types.Unit{}, translate.Break(c.loops)}, nil

	case *ast.CallExp:
		binding, err := c.vc.Fun(e.Position, e.Func)
		if err != nil {
			return typed{}, err
		}
		if len(e.Args) != len(binding.Args) {
			return typed{}, diag.Errorf(diag.Semantic, e.Position,
				"%s expects %d arguments, found %d", e.Func, len(binding.Args), len(e.Args))
		}
		args := make([]ir.Tree, len(e.Args))
		for i, arg := range e.Args {
			checked, err := c.exp(arg)
			if err != nil {
				return typed{}, err
			}
			if !types.Subtypes(checked.ty, binding.Args[i]) {
				return typed{}, diag.Errorf(diag.Semantic, arg.Pos(),
					"argument type mismatch: expected %v, found %v", binding.Args[i], checked.ty)
			}
			args[i] = checked.tree
		}
		extern := binding.Kind == BindExt
		return typed{binding.Type, translate.Call(binding.Label, extern, args)}, nil

	case *ast.NegExp:
		neg, err := c.exp(e.Exp)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(neg.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Exp.Pos(), "negation requires an integer")
		}
		return typed{types.Int{}, translate.Neg(neg.tree)}, nil

	case *ast.BinExp:
		return c.binary(e)

	case *ast.RecExp:
		return c.record(e)

	case *ast.SeqExp:
		if len(e.Exps) == 0 {
			return typed{types.Unit{}, translate.Nil()}, nil
		}
		trees := make([]ir.Tree, len(e.Exps))
		var last types.Ty
		for i, inner := range e.Exps {
			checked, err := c.exp(inner)
			if err != nil {
				return typed{}, err
			}
			trees[i] = checked.tree
			last = checked.ty
		}
		return typed{last, translate.Seq(trees)}, nil

	case *ast.AssignExp:
		lhs, err := c.variable(e.Var)
		if err != nil {
			return typed{}, err
		}
		rhs, err := c.exp(e.Exp)
		if err != nil {
			return typed{}, err
		}
		if !types.Subtypes(rhs.ty, lhs.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Exp.Pos(),
				"assignment type mismatch: expected %v, found %v", lhs.ty, rhs.ty)
		}
		return typed{types.Unit{}, translate.Ass(lhs.tree, rhs.tree)}, nil

	case *ast.IfExp:
		guard, err := c.exp(e.Guard)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(guard.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Guard.Pos(), "if guard must be an integer")
		}
		then, err := c.exp(e.Then)
		if err != nil {
			return typed{}, err
		}
		if e.Else == nil {
			if !types.IsUnit(then.ty) {
				return typed{}, diag.Errorf(diag.Semantic, e.Then.Pos(),
					"if without else cannot produce a value")
			}
			return typed{types.Unit{}, translate.If(guard.tree, then.tree, nil)}, nil
		}
		orElse, err := c.exp(e.Else)
		if err != nil {
			return typed{}, err
		}
		if !types.Subtypes(then.ty, orElse.ty) && !types.Subtypes(orElse.ty, then.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Else.Pos(),
				"if branches disagree: %v versus %v", then.ty, orElse.ty)
		}
		resultTy := then.ty
		if types.IsNil(resultTy) {
			resultTy = orElse.ty
		}
		return typed{resultTy, translate.If(guard.tree, then.tree, orElse.tree)}, nil

	case *ast.WhileExp:
		guard, err := c.exp(e.Guard)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(guard.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Guard.Pos(), "while guard must be an integer")
		}
		exit := operand.NewLabel("EXIT_WHILE")
		c.loops = append(c.loops, exit)
		body, err := c.exp(e.Body)
		c.loops = c.loops[:len(c.loops)-1]
		if err != nil {
			return typed{}, err
		}
		if !types.IsUnit(body.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Body.Pos(), "while body cannot produce a value")
		}
		return typed{types.Unit{}, translate.While(exit, guard.tree, body.tree)}, nil

	case *ast.ForExp:
		lo, err := c.exp(e.Lo)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(lo.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Lo.Pos(), "for bound must be an integer")
		}
		hi, err := c.exp(e.Hi)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(hi.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Hi.Pos(), "for bound must be an integer")
		}

		exit := operand.NewLabel("EXIT_FOR")
		index := translate.ForIndex(c.frame(), symbol.Intern(e.Name), e.Escape)

		c.vc.Push()
		c.vc.Insert(e.Name, Binding{Kind: BindVar, Type: types.Int{}})
		c.loops = append(c.loops, exit)

		body, err := c.exp(e.Body)

		c.loops = c.loops[:len(c.loops)-1]
		c.vc.Pop()

		if err != nil {
			return typed{}, err
		}
		if !types.IsUnit(body.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Body.Pos(), "for body cannot produce a value")
		}
		return typed{types.Unit{}, translate.For(exit, index, lo.tree, hi.tree, body.tree)}, nil

	case *ast.LetExp:
		c.vc.Push()
		c.tc.Push()

		var decs []ir.Tree
		for _, dec := range e.Decs {
			tree, err := c.dec(dec)
			if err != nil {
				return typed{}, err
			}
			if tree != nil {
				decs = append(decs, tree)
			}
		}

		body, err := c.exp(e.Body)
		if err != nil {
			return typed{}, err
		}

		c.vc.Pop()
		c.tc.Pop()

		return typed{body.ty, translate.Let(decs, body.tree)}, nil

	case *ast.ArrExp:
		arrTy, err := c.tc.Full(e.Position, e.Type)
		if err != nil {
			return typed{}, err
		}
		arr, ok := arrTy.(*types.Arr)
		if !ok {
			return typed{}, diag.Errorf(diag.Semantic, e.Position, "%s is not an array type", e.Type)
		}
		size, err := c.exp(e.Size)
		if err != nil {
			return typed{}, err
		}
		if !types.IsInt(size.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Size.Pos(), "array size must be an integer")
		}
		init, err := c.exp(e.Init)
		if err != nil {
			return typed{}, err
		}
		if !types.Subtypes(init.ty, arr.Elem) {
			return typed{}, diag.Errorf(diag.Semantic, e.Init.Pos(),
				"array initializer type mismatch: expected %v, found %v", arr.Elem, init.ty)
		}
		return typed{arrTy, translate.Arr(size.tree, init.tree)}, nil
	}
	panic("internal error: unknown expression variant")
}

func (c *Checker) binary(e *ast.BinExp) (typed, *diag.Error) {
	lhs, err := c.exp(e.Lhs)
	if err != nil {
		return typed{}, err
	}
	rhs, err := c.exp(e.Rhs)
	if err != nil {
		return typed{}, err
	}

	if types.IsUnit(lhs.ty) {
		return typed{}, diag.Errorf(diag.Semantic, e.Lhs.Pos(), "binary operand cannot be unit")
	}
	if types.IsUnit(rhs.ty) {
		return typed{}, diag.Errorf(diag.Semantic, e.Rhs.Pos(), "binary operand cannot be unit")
	}

	// Equality works for any mutually subtyping operands except nil = nil
	if e.Op.IsEquality() && (types.Subtypes(lhs.ty, rhs.ty) || types.Subtypes(rhs.ty, lhs.ty)) {
		if types.IsNil(lhs.ty) && types.IsNil(rhs.ty) {
			return typed{}, diag.Errorf(diag.Semantic, e.Position, "cannot compare nil with nil")
		}
		return typed{types.Int{}, translate.Bin(lhs.tree, e.Op, rhs.tree)}, nil
	}

	// Ordering comparisons work on int/int and string/string
	if e.Op.IsComparison() &&
		(types.IsInt(lhs.ty) || types.IsStr(lhs.ty)) && types.Same(lhs.ty, rhs.ty) {
		return typed{types.Int{}, translate.Bin(lhs.tree, e.Op, rhs.tree)}, nil
	}

	// Arithmetic and logical operators work on integers
	if types.IsInt(lhs.ty) && types.IsInt(rhs.ty) {
		return typed{types.Int{}, translate.Bin(lhs.tree, e.Op, rhs.tree)}, nil
	}

	return typed{}, diag.Errorf(diag.Semantic, e.Position,
		"operator %v undefined for %v and %v", e.Op, lhs.ty, rhs.ty)
}

func (c *Checker) record(e *ast.RecExp) (typed, *diag.Error) {
	recTy, err := c.tc.Full(e.Position, e.Type)
	if err != nil {
		return typed{}, err
	}
	rec, ok := recTy.(*types.Rec)
	if !ok {
		return typed{}, diag.Errorf(diag.Semantic, e.Position, "%s is not a record type", e.Type)
	}
	if len(e.Fields) != len(rec.Fields) {
		return typed{}, diag.Errorf(diag.Semantic, e.Position,
			"%s has %d fields, found %d", e.Type, len(rec.Fields), len(e.Fields))
	}

	fields := make([]ir.Tree, len(e.Fields))
	for i, field := range e.Fields {
		decl := rec.Fields[i]
		if field.Name != decl.Name {
			return typed{}, diag.Errorf(diag.Semantic, field.Position,
				"expected field %s, found %s", decl.Name, field.Name)
		}
		declTy, err := c.tc.Trace(field.Position, decl.Type)
		if err != nil {
			return typed{}, err
		}
		checked, err := c.exp(field.Exp)
		if err != nil {
			return typed{}, err
		}
		if !types.Subtypes(checked.ty, declTy) {
			return typed{}, diag.Errorf(diag.Semantic, field.Exp.Pos(),
				"field type mismatch: expected %v, found %v", declTy, checked.ty)
		}
		fields[i] = checked.tree
	}
	return typed{recTy, translate.Rec(fields)}, nil
}

func (c *Checker) checkUnique(names []string, positions []diag.Pos) *diag.Error {
	seen := make(map[string]bool)
	for i, name := range names {
		if seen[name] {
			return diag.Errorf(diag.Semantic, positions[i], "conflicting declarations of %s", name)
		}
		seen[name] = true
	}
	return nil
}

// dec checks a declaration. Variable declarations yield an
// initialization tree; function and type batches update the contexts.
func (c *Checker) dec(dec ast.Dec) (ir.Tree, *diag.Error) {
	switch d := dec.(type) {
	case *ast.FunDecs:
		return nil, c.funDecs(d)

	case *ast.VarDec:
		init, err := c.exp(d.Init)
		if err != nil {
			return nil, err
		}
		if types.IsNil(init.ty) && d.Type == "" {
			return nil, diag.Errorf(diag.Semantic, d.Position,
				"cannot infer type of nil without annotation")
		}
		varTy := init.ty
		if d.Type != "" {
			varTy, err = c.tc.Full(d.Position, d.Type)
			if err != nil {
				return nil, err
			}
			if !types.Subtypes(init.ty, varTy) {
				return nil, diag.Errorf(diag.Semantic, d.Init.Pos(),
					"variable type mismatch: expected %v, found %v", varTy, init.ty)
			}
		}
		c.vc.Insert(d.Name, Binding{Kind: BindVar, Type: varTy})
		return translate.VarDec(c.frame(), symbol.Intern(d.Name), d.Escape, init.tree), nil

	case *ast.TypeDecs:
		names := make([]string, len(d.Types))
		positions := make([]diag.Pos, len(d.Types))
		for i, t := range d.Types {
			names[i] = t.Name
			positions[i] = t.Position
		}
		if err := c.checkUnique(names, positions); err != nil {
			return nil, err
		}

		// Declare headers first so the batch can be mutually recursive
		for _, t := range d.Types {
			c.tc.Insert(t.Name, &types.Name{Name: t.Name})
		}
		for _, t := range d.Types {
			body, err := c.ty(t.Type)
			if err != nil {
				return nil, err
			}
			c.tc.Insert(t.Name, &types.Name{Name: t.Name, Body: body})
		}
		return nil, nil
	}
	panic("internal error: unknown declaration variant")
}

func (c *Checker) funDecs(d *ast.FunDecs) *diag.Error {
	names := make([]string, len(d.Funs))
	positions := make([]diag.Pos, len(d.Funs))
	for i, fun := range d.Funs {
		names[i] = fun.Name
		positions[i] = fun.Position
	}
	if err := c.checkUnique(names, positions); err != nil {
		return err
	}

	// Bind every header first so the batch can be mutually recursive
	labels := make(map[string]operand.Label, len(d.Funs))
	for _, fun := range d.Funs {
		label := operand.NewLabel(fun.Name)
		labels[fun.Name] = label

		args := make([]types.Ty, len(fun.Args))
		for i, arg := range fun.Args {
			ty, err := c.tc.Full(arg.Position, arg.Type)
			if err != nil {
				return err
			}
			args[i] = ty
		}

		ret, err := c.result(fun)
		if err != nil {
			return err
		}
		c.vc.Insert(fun.Name, Binding{Kind: BindFun, Type: ret, Args: args, Label: label})
	}

	// Check bodies with all headers in scope
	for _, fun := range d.Funs {
		label := labels[fun.Name]

		formals := make([]translate.Formal, len(fun.Args))
		for i, arg := range fun.Args {
			formals[i] = translate.Formal{Name: symbol.Intern(arg.Name), Escape: arg.Escape}
		}

		c.vc.Push()
		c.frames = append(c.frames, translate.NewFrame(label, formals))

		for _, arg := range fun.Args {
			ty, err := c.tc.Full(arg.Position, arg.Type)
			if err != nil {
				return err
			}
			c.vc.Insert(arg.Name, Binding{Kind: BindVar, Type: ty})
		}

		body, err := c.exp(fun.Body)

		c.vc.Pop()
		frame := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]

		if err != nil {
			return err
		}

		ret, err2 := c.result(fun)
		if err2 != nil {
			return err2
		}
		if !types.Subtypes(body.ty, ret) {
			return diag.Errorf(diag.Semantic, fun.Body.Pos(),
				"function body type mismatch: expected %v, found %v", ret, body.ty)
		}

		c.done = append(c.done, frame.Wrap(body.tree))
	}
	return nil
}

func (c *Checker) result(fun *ast.FunDec) (types.Ty, *diag.Error) {
	if fun.Result == "" {
		return types.Unit{}, nil
	}
	return c.tc.Full(fun.Position, fun.Result)
}

func (c *Checker) ty(t ast.Ty) (types.Ty, *diag.Error) {
	switch t := t.(type) {
	case *ast.NameTy:
		return c.tc.Partial(t.Position, t.Name)
	case *ast.ArrayTy:
		elem, err := c.tc.Partial(t.Position, t.Elem)
		if err != nil {
			return nil, err
		}
		return &types.Arr{Elem: elem, ID: types.NewID()}, nil
	case *ast.RecordTy:
		fields := make([]types.Field, len(t.Fields))
		for i, f := range t.Fields {
			ty, err := c.tc.Partial(f.Position, f.Type)
			if err != nil {
				return nil, err
			}
			fields[i] = types.Field{Name: f.Name, Type: ty}
		}
		return &types.Rec{Fields: fields, ID: types.NewID()}, nil
	}
	panic("internal error: unknown type variant")
}
