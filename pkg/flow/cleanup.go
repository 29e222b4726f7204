package flow

import (
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

// Clean drops every label no surviving jump refers to.
func Clean(fn ir.Function) ir.Function {
	used := make(map[operand.Label]bool)
	for _, stm := range fn.Body {
		switch s := stm.(type) {
		case ir.Jump:
			if name, ok := s.Dst.(ir.Name); ok {
				used[name.Label] = true
			}
		case ir.CJump:
			used[s.True] = true
			used[s.False] = true
		}
	}

	return fn.Map(func(body []ir.Stm) []ir.Stm {
		cleaned := make([]ir.Stm, 0, len(body))
		for _, stm := range body {
			if label, ok := stm.(ir.Label); ok && !used[label.Label] {
				continue
			}
			cleaned = append(cleaned, stm)
		}
		return cleaned
	})
}
