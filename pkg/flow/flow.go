// Package flow builds a basic-block control-flow graph over canonical IR
// and re-linearizes it along traces that maximize fall-through edges,
// then condenses redundant jumps and sweeps unreferenced labels.
package flow

import (
	"fmt"
	"io"

	"github.com/raymyers/tiger-cc/pkg/ir"
	"github.com/raymyers/tiger-cc/pkg/operand"
	"github.com/raymyers/tiger-cc/pkg/symbol"
)

// Reorder runs the whole phase over a unit: trace scheduling, jump
// condensing, and label cleanup per function.
func Reorder(unit ir.Unit) ir.Unit {
	return unit.MapFunctions(func(fn ir.Function) ir.Function {
		return Clean(Condense(Trace(fn)))
	})
}

// Graph is the control-flow graph of one function body. Blocks are keyed
// by the symbol of their header label; the entry block is keyed by the
// function label.
type Graph struct {
	start  symbol.Symbol
	order  []symbol.Symbol // block creation order, for deterministic walks
	blocks map[symbol.Symbol][]ir.Stm
	edges  map[symbol.Symbol][]symbol.Symbol

	// The block left open at the end of the body has no terminator:
	// control falls off the end of the function there, so the trace must
	// emit it last.
	exit    symbol.Symbol
	hasExit bool
}

// NewGraph splits a canonical statement list into basic blocks. A block
// begins at a label (or the entry) and ends at a jump. A block that falls
// into the next label is sealed with an explicit jump so reordering
// preserves control flow; after a CJump the false label implicitly heads
// the next block, fabricating its header when the source did not emit one.
func NewGraph(start operand.Label, body []ir.Stm) *Graph {
	g := &Graph{
		start:  start.Symbol(),
		blocks: make(map[symbol.Symbol][]ir.Stm),
		edges:  make(map[symbol.Symbol][]symbol.Symbol),
	}

	header := g.start
	var block []ir.Stm
	open := true
	phantom := false

	seal := func() {
		g.blocks[header] = block
		g.order = append(g.order, header)
		block = nil
		open = false
		phantom = false
	}

	for _, stm := range body {
		switch s := stm.(type) {
		case ir.Label:
			sym := s.Label.Symbol()
			if phantom {
				// Nothing followed the CJump. Either the source emitted
				// the false-branch header itself, or control reaches
				// this label only by jumping: drop the fabricated block
				if sym == header {
					phantom = false
					continue
				}
				block = nil
				open = false
				phantom = false
			}
			if open {
				block = append(block, ir.JumpTo(s.Label))
				g.addEdge(header, sym)
				seal()
			}
			header = sym
			block = append(block, stm)
			open = true

		case ir.Jump:
			if !open {
				continue // unreachable
			}
			name, ok := s.Dst.(ir.Name)
			if !ok {
				panic("internal error: can only jump to labels")
			}
			g.addEdge(header, name.Label.Symbol())
			block = append(block, stm)
			seal()

		case ir.CJump:
			if !open {
				continue // unreachable
			}
			g.addEdge(header, s.True.Symbol())
			g.addEdge(header, s.False.Symbol())
			block = append(block, stm)
			seal()

			// Fall-through on false: the next block is headed by the
			// false label
			header = s.False.Symbol()
			block = append(block, ir.Label{Label: s.False})
			open = true
			phantom = true

		default:
			if !open {
				continue // unreachable
			}
			phantom = false // the fabricated header now heads real code
			block = append(block, stm)
		}
	}
	if open {
		g.exit = header
		g.hasExit = true
		seal()
	}

	g.removeUnreachable()
	if g.hasExit {
		if _, ok := g.blocks[g.exit]; !ok {
			g.hasExit = false
		}
	}
	return g
}

func (g *Graph) addEdge(from, to symbol.Symbol) {
	for _, succ := range g.edges[from] {
		if succ == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// removeUnreachable drops every block with no path from the entry.
func (g *Graph) removeUnreachable() {
	reachable := make(map[symbol.Symbol]bool)
	var visit func(symbol.Symbol)
	visit = func(node symbol.Symbol) {
		if reachable[node] {
			return
		}
		reachable[node] = true
		for _, succ := range g.edges[node] {
			visit(succ)
		}
	}
	visit(g.start)

	var order []symbol.Symbol
	for _, node := range g.order {
		if reachable[node] {
			order = append(order, node)
			continue
		}
		delete(g.blocks, node)
		delete(g.edges, node)
	}
	g.order = order
}

// Export renders the graph in dot format for debugging.
func (g *Graph) Export(w io.Writer) {
	fmt.Fprintln(w, "digraph {")
	for _, node := range g.order {
		for _, succ := range g.edges[node] {
			fmt.Fprintf(w, "    %q -> %q\n", node, succ)
		}
	}
	fmt.Fprintln(w, "}")
}

// heights computes, per block, the length of the longest acyclic path to
// an exit, guarding against cycles with an on-stack set.
func (g *Graph) heights() map[symbol.Symbol]int {
	height := make(map[symbol.Symbol]int)
	seen := make(map[symbol.Symbol]bool)
	var walk func(symbol.Symbol) int
	walk = func(node symbol.Symbol) int {
		seen[node] = true
		max := 0
		for _, succ := range g.edges[node] {
			if seen[succ] {
				continue
			}
			if h := walk(succ) + 1; h > max {
				max = h
			}
		}
		delete(seen, node)
		height[node] = max
		return max
	}
	walk(g.start)
	return height
}

// Trace re-linearizes a function's blocks. The entry block is emitted
// first; afterwards the remaining block of greatest height starts each
// trace, which follows the highest remaining successor until it runs out.
func Trace(fn ir.Function) ir.Function {
	g := NewGraph(fn.Label, fn.Body)
	height := g.heights()

	var reordered []ir.Stm
	remove := func(node symbol.Symbol) {
		reordered = append(reordered, g.blocks[node]...)
		delete(g.blocks, node)
		for i, n := range g.order {
			if n == node {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
	}

	deferExit := g.hasExit && g.exit != g.start

	next := func(node symbol.Symbol) (symbol.Symbol, bool) {
		best := symbol.Symbol(-1)
		found := false
		for _, succ := range g.edges[node] {
			if deferExit && succ == g.exit {
				continue
			}
			if _, remaining := g.blocks[succ]; !remaining {
				continue
			}
			if !found || height[succ] > height[best] {
				best = succ
				found = true
			}
		}
		return best, found
	}

	emit := func(node symbol.Symbol) {
		remove(node)
		for {
			succ, ok := next(node)
			if !ok {
				return
			}
			node = succ
			remove(node)
		}
	}

	// Execution enters at the entry block, so its trace leads
	if _, ok := g.blocks[g.start]; ok {
		emit(g.start)
	}

	for {
		best := symbol.Symbol(-1)
		found := false
		for _, node := range g.order {
			if deferExit && node == g.exit {
				continue
			}
			if !found || height[node] > height[best] {
				best = node
				found = true
			}
		}
		if !found {
			break
		}
		emit(best)
	}

	// Control falls off the end of the function in the exit block
	if deferExit {
		if _, ok := g.blocks[g.exit]; ok {
			remove(g.exit)
		}
	}

	return ir.Function{Label: fn.Label, Body: reordered, Escapes: fn.Escapes}
}
