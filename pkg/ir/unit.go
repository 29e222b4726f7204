package ir

import "github.com/raymyers/tiger-cc/pkg/operand"

// Data is one read-only string literal interned by translation.
type Data struct {
	ID       int
	Label    operand.Label
	Contents string
}

// Function is one translated function: its entry label, a flat body, and
// the number of escaping locals (stack slots the frame must reserve).
type Function struct {
	Label   operand.Label
	Body    []Stm
	Escapes int
}

// Map rewrites the function body through f.
func (fn Function) Map(f func([]Stm) []Stm) Function {
	return Function{Label: fn.Label, Body: f(fn.Body), Escapes: fn.Escapes}
}

// Unit is one translation unit: string data plus translated functions.
type Unit struct {
	Data      []Data
	Functions []Function
}

// MapFunctions rewrites every function through f, keeping the data section.
func (u Unit) MapFunctions(f func(Function) Function) Unit {
	functions := make([]Function, len(u.Functions))
	for i, fn := range u.Functions {
		functions[i] = f(fn)
	}
	return Unit{Data: u.Data, Functions: functions}
}
