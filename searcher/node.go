package searcher

import (
	"math"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
)

// explorationC is the UCT exploration constant, sqrt(2).
var explorationC = math.Sqrt2

// node is one tree-search position. Children are owned; parent is a weak
// back reference for backpropagation only. The whole tree is discarded at
// the end of one Play call, so no retention concerns arise.
type node struct {
	parent   *node
	children []*node
	move     *action.Move // move that produced this node; nil at root

	untried     []action.Move
	prioritized int // leading untried moves to expand in order (threat response)

	visits int
	value  float64

	// cursor marks the search game's exact state at this node.
	cursor boardgame.Cursor

	// player to move at this node (may differ from the bot's seat inside
	// simultaneous steps).
	player int
}

// uctBest picks the child maximizing value/visits + C*sqrt(ln(N)/visits).
// Only called on fully expanded nodes, so every child has visits.
func (n *node) uctBest() *node {
	lnN := math.Log(float64(n.visits))
	var best *node
	bestScore := math.Inf(-1)
	for _, c := range n.children {
		score := c.value/float64(c.visits) + explorationC*math.Sqrt(lnN/float64(c.visits))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

// robustChild returns the most-visited child: sturdier than highest
// average value at low visit counts.
func (n *node) robustChild() *node {
	var best *node
	bestVisits := -1
	for _, c := range n.children {
		if c.visits > bestVisits {
			bestVisits = c.visits
			best = c
		}
	}
	return best
}

// popUntried removes and returns the untried move at i.
func (n *node) popUntried(i int) action.Move {
	mv := n.untried[i]
	n.untried = append(n.untried[:i], n.untried[i+1:]...)
	if n.prioritized > 0 && i < n.prioritized {
		n.prioritized--
	}
	return mv
}
