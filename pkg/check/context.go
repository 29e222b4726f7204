package check

import (
	"github.com/raymyers/tiger-cc/pkg/diag"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/types"
)

// BindingKind distinguishes the three things a value name can denote.
type BindingKind int

const (
	// BindVar is a mutable variable.
	BindVar BindingKind = iota
	// BindFun is an internal function (receives a static link).
	BindFun
	// BindExt is a runtime builtin (no static link).
	BindExt
)

// Binding is one entry in the variable context.
type Binding struct {
	Kind  BindingKind
	Type  types.Ty   // variable type, or function return type
	Args  []types.Ty // formal parameter types for functions
	Label operand.Label
}

// VarContext is a stack of value scopes, innermost last.
type VarContext struct {
	scopes []map[string]Binding
}

func ext(name string, args []types.Ty, ret types.Ty) Binding {
	return Binding{Kind: BindExt, Type: ret, Args: args, Label: operand.FixedLabel(name)}
}

// NewVarContext builds the initial context holding the runtime builtins.
func NewVarContext() *VarContext {
	builtins := map[string]Binding{
		"print":     ext("print", []types.Ty{types.Str{}}, types.Unit{}),
		"printi":    ext("printi", []types.Ty{types.Int{}}, types.Unit{}),
		"prints":    ext("prints", []types.Ty{types.Str{}}, types.Unit{}),
		"flush":     ext("flush", nil, types.Unit{}),
		"getchar":   ext("getchar", nil, types.Str{}),
		"ord":       ext("ord", []types.Ty{types.Str{}}, types.Int{}),
		"chr":       ext("chr", []types.Ty{types.Int{}}, types.Str{}),
		"size":      ext("size", []types.Ty{types.Str{}}, types.Int{}),
		"substring": ext("substring", []types.Ty{types.Str{}, types.Int{}, types.Int{}}, types.Str{}),
		"concat":    ext("concat", []types.Ty{types.Str{}, types.Str{}}, types.Str{}),
		"not":       ext("not", []types.Ty{types.Int{}}, types.Int{}),
		"exit":      ext("exit", []types.Ty{types.Int{}}, types.Unit{}),
	}
	return &VarContext{scopes: []map[string]Binding{builtins}}
}

// Push opens a new scope.
func (vc *VarContext) Push() {
	vc.scopes = append(vc.scopes, make(map[string]Binding))
}

// Pop closes the innermost scope.
func (vc *VarContext) Pop() {
	if len(vc.scopes) == 0 {
		panic("internal error: no variable context")
	}
	vc.scopes = vc.scopes[:len(vc.scopes)-1]
}

// Insert binds name in the innermost scope.
func (vc *VarContext) Insert(name string, binding Binding) {
	vc.scopes[len(vc.scopes)-1][name] = binding
}

// Var looks up a variable binding.
func (vc *VarContext) Var(pos diag.Pos, name string) (types.Ty, *diag.Error) {
	for i := len(vc.scopes) - 1; i >= 0; i-- {
		if binding, ok := vc.scopes[i][name]; ok {
			if binding.Kind != BindVar {
				return nil, diag.Errorf(diag.Semantic, pos, "%s is a function, not a variable", name)
			}
			return binding.Type, nil
		}
	}
	return nil, diag.Errorf(diag.Semantic, pos, "unbound variable %s", name)
}

// Fun looks up a function binding.
func (vc *VarContext) Fun(pos diag.Pos, name string) (Binding, *diag.Error) {
	for i := len(vc.scopes) - 1; i >= 0; i-- {
		if binding, ok := vc.scopes[i][name]; ok {
			if binding.Kind == BindVar {
				return Binding{}, diag.Errorf(diag.Semantic, pos, "%s is a variable, not a function", name)
			}
			return binding, nil
		}
	}
	return Binding{}, diag.Errorf(diag.Semantic, pos, "unbound function %s", name)
}

// TypeContext is a stack of type scopes, innermost last.
type TypeContext struct {
	scopes []map[string]types.Ty
}

// NewTypeContext builds the initial context binding int and string.
func NewTypeContext() *TypeContext {
	return &TypeContext{scopes: []map[string]types.Ty{{
		"int":    types.Int{},
		"string": types.Str{},
	}}}
}

// Push opens a new scope.
func (tc *TypeContext) Push() {
	tc.scopes = append(tc.scopes, make(map[string]types.Ty))
}

// Pop closes the innermost scope.
func (tc *TypeContext) Pop() {
	if len(tc.scopes) == 0 {
		panic("internal error: no type context")
	}
	tc.scopes = tc.scopes[:len(tc.scopes)-1]
}

// Insert binds name in the innermost scope.
func (tc *TypeContext) Insert(name string, ty types.Ty) {
	tc.scopes[len(tc.scopes)-1][name] = ty
}

func (tc *TypeContext) lookup(name string) (types.Ty, bool) {
	for i := len(tc.scopes) - 1; i >= 0; i-- {
		if ty, ok := tc.scopes[i][name]; ok {
			return ty, true
		}
	}
	return nil, false
}

// Partial resolves a type name without tracing through names, for use
// inside mutually-recursive declaration batches.
func (tc *TypeContext) Partial(pos diag.Pos, name string) (types.Ty, *diag.Error) {
	if ty, ok := tc.lookup(name); ok {
		return ty, nil
	}
	return nil, diag.Errorf(diag.Semantic, pos, "unbound type %s", name)
}

// Full resolves a type name and traces it to a concrete type.
func (tc *TypeContext) Full(pos diag.Pos, name string) (types.Ty, *diag.Error) {
	if ty, ok := tc.lookup(name); ok {
		return tc.Trace(pos, ty)
	}
	return nil, diag.Errorf(diag.Semantic, pos, "unbound type %s", name)
}

// Trace follows Name references until a concrete type remains. A cycle
// of names with no concrete body is a semantic error.
func (tc *TypeContext) Trace(pos diag.Pos, ty types.Ty) (types.Ty, *diag.Error) {
	return tc.trace(pos, ty, make(map[string]bool))
}

func (tc *TypeContext) trace(pos diag.Pos, ty types.Ty, seen map[string]bool) (types.Ty, *diag.Error) {
	switch ty := ty.(type) {
	case *types.Name:
		if seen[ty.Name] {
			return nil, diag.Errorf(diag.Semantic, pos, "cyclic type %s", ty.Name)
		}
		seen[ty.Name] = true
		if ty.Body != nil {
			return tc.trace(pos, ty.Body, seen)
		}
		inner, ok := tc.lookup(ty.Name)
		if !ok {
			return nil, diag.Errorf(diag.Semantic, pos, "unbound type %s", ty.Name)
		}
		// A forward reference resolves to its own completed definition
		if named, ok := inner.(*types.Name); ok && named.Name == ty.Name {
			if named.Body == nil {
				return nil, diag.Errorf(diag.Semantic, pos, "cyclic type %s", ty.Name)
			}
			return tc.trace(pos, named.Body, seen)
		}
		return tc.trace(pos, inner, seen)
	case *types.Arr:
		elem, err := tc.trace(pos, ty.Elem, seen)
		if err != nil {
			return nil, err
		}
		return &types.Arr{Elem: elem, ID: ty.ID}, nil
	default:
		return ty, nil
	}
}
