package flow

import (
	"fmt"
	"sort"
)

// Position is the serializable form of the cursor: one Frame per level of
// the stack plus the current player, phase and completion flag. It is a
// path into the node tree, never a pointer into it, so it survives
// snapshot round trips. Distinct from piece position and player seat.
type Position struct {
	Frames   []Frame `json:"frames"`
	Current  int     `json:"current"`
	Phase    string  `json:"phase,omitempty"`
	Complete bool    `json:"complete,omitempty"`
}

// Frame captures one stack level's bookkeeping. Done holds the seats
// marked complete in a simultaneous step, sorted for stable JSON.
type Frame struct {
	Entered   bool   `json:"entered,omitempty"`
	Index     int    `json:"index,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Order     []int  `json:"order,omitempty"`
	OrderIdx  int    `json:"orderIdx,omitempty"`
	Items     []any  `json:"items,omitempty"`
	ItemIdx   int    `json:"itemIdx,omitempty"`
	Done      []int  `json:"done,omitempty"`
	Case      string `json:"case,omitempty"`
	Branch    int    `json:"branch,omitempty"`
}

// Position captures the cursor as a value.
func (e *Engine) Position() Position {
	p := Position{Current: e.current, Phase: e.phase, Complete: e.complete}
	for _, f := range e.stack {
		fs := Frame{
			Entered:   f.entered,
			Index:     f.index,
			Iteration: f.iteration,
			Order:     append([]int(nil), f.order...),
			OrderIdx:  f.orderIdx,
			Items:     append([]any(nil), f.items...),
			ItemIdx:   f.itemIdx,
			Case:      f.caseKey,
			Branch:    f.branch,
		}
		for seat, done := range f.done {
			if done {
				fs.Done = append(fs.Done, seat)
			}
		}
		sort.Ints(fs.Done)
		p.Frames = append(p.Frames, fs)
	}
	return p
}

// SetPosition restores a previously captured cursor. The node at each
// level is re-derived from the parent's bookkeeping, so positions are
// only valid against the tree they were captured from.
func (e *Engine) SetPosition(p Position) error {
	if !e.started {
		e.started = true
	}
	stack := make([]*frame, 0, len(p.Frames))
	node := e.def.Root
	for i, fs := range p.Frames {
		if node == nil {
			return fmt.Errorf("position frame %d does not map to a flow node", i)
		}
		f := &frame{
			node:      node,
			entered:   fs.Entered,
			index:     fs.Index,
			iteration: fs.Iteration,
			order:     append([]int(nil), fs.Order...),
			orderIdx:  fs.OrderIdx,
			items:     append([]any(nil), fs.Items...),
			itemIdx:   fs.ItemIdx,
			caseKey:   fs.Case,
			branch:    fs.Branch,
		}
		if node.kind == KindSimultaneous {
			f.done = map[int]bool{}
			for _, seat := range fs.Done {
				f.done[seat] = true
			}
		}
		stack = append(stack, f)
		node = childNode(node, fs)
	}
	e.stack = stack
	e.current = p.Current
	e.phase = p.Phase
	e.complete = p.Complete
	return nil
}

// childNode resolves which child a frame had descended into, mirroring the
// push decisions made in run.
func childNode(n *Node, f Frame) *Node {
	switch n.kind {
	case KindSequence, KindPhase:
		if f.Index < len(n.children) {
			return n.children[f.Index]
		}
	case KindLoop, KindEachPlayer, KindForEach:
		return n.children[0]
	case KindSwitch:
		if c := n.cases[f.Case]; c != nil {
			return c
		}
		return n.fallback
	case KindIf:
		if f.Branch == 1 {
			return n.then
		}
		return n.els
	}
	return nil
}
