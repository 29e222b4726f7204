package flow

import (
	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
)

// Condense rewrites the traced statement list so that every surviving
// CJump falls through to its false label: jumps to the immediately
// following label are elided, a CJump whose true label follows is
// negated, and any other CJump gets a thunk redirecting its false edge.
func Condense(fn ir.Function) ir.Function {
	body := fn.Body
	var condensed []ir.Stm

	for i := range body {
		if i == len(body)-1 {
			condensed = append(condensed, body[i])
			break
		}

		label, nextIsLabel := body[i+1].(ir.Label)

		switch s := body[i].(type) {
		case ir.Jump:
			if name, ok := s.Dst.(ir.Name); ok && nextIsLabel && name.Label == label.Label {
				continue // falls through anyway
			}
			condensed = append(condensed, s)

		case ir.CJump:
			switch {
			case nextIsLabel && s.False == label.Label:
				condensed = append(condensed, s)
			case nextIsLabel && s.True == label.Label:
				condensed = append(condensed, ir.CJump{
					Lhs: s.Lhs, Op: s.Op.Negate(), Rhs: s.Rhs,
					True: s.False, False: s.True,
				})
			default:
				// Neither side falls through: bounce the false edge off
				// a fresh thunk
				thunk := operand.NewLabel("CONDENSE_CJUMP")
				condensed = append(condensed,
					ir.CJump{Lhs: s.Lhs, Op: s.Op, Rhs: s.Rhs, True: s.True, False: thunk},
					ir.Label{Label: thunk},
					ir.JumpTo(s.False),
				)
			}

		default:
			condensed = append(condensed, s)
		}
	}

	return ir.Function{Label: fn.Label, Body: condensed, Escapes: fn.Escapes}
}
