package flow

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var (
	// ErrIllegalAction marks caller-contract violations: wrong seat, wrong
	// action, input when none is expected. These indicate the caller and
	// the engine are out of sync and must not be absorbed.
	ErrIllegalAction = errors.New("illegal action")

	// ErrMaxIterations marks a loop that exceeded its safety cap: a
	// game-definition bug (runaway loop), surfaced loudly.
	ErrMaxIterations = errors.New("loop exceeded max iterations")
)

// Executor is the flow engine's hook into the game's action registry: it
// answers availability and runs action effects. Effect errors propagate
// through Continue unchanged.
type Executor interface {
	IsAvailable(action string, seat int) bool
	Execute(action string, args map[string]any, seat int) error
}

// Definition is a game's static flow: the node tree, the seat count and
// the winner-selection function consulted once the flow completes.
type Definition struct {
	Root    *Node
	Seats   int
	Winners func() []int
}

// Awaiting describes one player inside a simultaneous action step.
type Awaiting struct {
	PlayerIndex      int      `json:"playerIndex"`
	Completed        bool     `json:"completed"`
	AvailableActions []string `json:"availableActions,omitempty"`
}

// State is the read-only projection of the current position. When
// AwaitingPlayers is populated it takes precedence over CurrentPlayer.
type State struct {
	CurrentPlayer    *int       `json:"currentPlayer,omitempty"`
	AvailableActions []string   `json:"availableActions,omitempty"`
	AwaitingPlayers  []Awaiting `json:"awaitingPlayers,omitempty"`
	Phase            string     `json:"phase,omitempty"`
	Complete         bool       `json:"complete"`
	Position         Position   `json:"position"`
}

// frame is the per-node runtime bookkeeping making up the position cursor.
type frame struct {
	node      *Node
	entered   bool
	index     int
	iteration int
	order     []int
	orderIdx  int
	items     []any
	itemIdx   int
	done      map[int]bool
	caseKey   string
	branch    int // 1 = then, 2 = else
}

// Engine owns the single mutable position cursor for one game instance.
// The caller must serialize Continue calls; there is no internal locking.
type Engine struct {
	def      Definition
	exec     Executor
	stack    []*frame
	current  int
	phase    string
	complete bool
	started  bool
}

// New builds an engine over a definition. Seats must be at least 1.
func New(def Definition, exec Executor) *Engine {
	if def.Root == nil {
		panic("flow: definition requires a root node")
	}
	if def.Seats < 1 {
		panic("flow: definition requires at least one seat")
	}
	return &Engine{def: def, exec: exec}
}

// Start initializes the position at the root and descends through any
// setup-only nodes until reaching the first input point or completion.
// Calling it twice is a caller bug.
func (e *Engine) Start() error {
	if e.started {
		return fmt.Errorf("flow already started")
	}
	e.started = true
	e.push(e.def.Root)
	return e.run()
}

// Continue validates that the action is currently legal for the acting
// seat, executes its effect through the executor, and advances the
// position per the current node's rule.
func (e *Engine) Continue(action string, args map[string]any, seat int) error {
	if !e.started {
		return fmt.Errorf("flow not started")
	}
	if e.complete {
		return fmt.Errorf("%w: game is complete", ErrIllegalAction)
	}
	f := e.top()
	n := f.node
	switch n.kind {
	case KindActionStep:
		if seat != e.current {
			return fmt.Errorf("%w: seat %d may not act, current player is seat %d", ErrIllegalAction, seat, e.current)
		}
		if !e.actionLegal(n, action, seat) {
			return fmt.Errorf("%w: %q is not available to seat %d", ErrIllegalAction, action, seat)
		}
		if err := e.exec.Execute(action, args, seat); err != nil {
			return err
		}
		e.finish()
		return e.run()
	case KindSimultaneous:
		if seat < 0 || seat >= e.def.Seats {
			return fmt.Errorf("%w: no seat %d", ErrIllegalAction, seat)
		}
		if n.playerDone(seat) {
			return fmt.Errorf("%w: seat %d has already completed this step", ErrIllegalAction, seat)
		}
		if !e.actionLegal(n, action, seat) {
			return fmt.Errorf("%w: %q is not available to seat %d", ErrIllegalAction, action, seat)
		}
		if err := e.exec.Execute(action, args, seat); err != nil {
			return err
		}
		return e.run()
	default:
		return fmt.Errorf("%w: flow is not awaiting input", ErrIllegalAction)
	}
}

// Complete reports whether the flow has run to its end.
func (e *Engine) Complete() bool { return e.complete }

// CurrentPlayer returns the seat whose turn it is. Meaningful only while
// suspended at an action step.
func (e *Engine) CurrentPlayer() int { return e.current }

// Winners delegates to the definition's winner-selection function.
func (e *Engine) Winners() []int {
	if !e.complete || e.def.Winners == nil {
		return nil
	}
	return e.def.Winners()
}

// CurrentItem returns the innermost forEach binding, or nil.
func (e *Engine) CurrentItem() any {
	for i := len(e.stack) - 1; i >= 0; i-- {
		f := e.stack[i]
		if f.node.kind == KindForEach && f.itemIdx < len(f.items) {
			return f.items[f.itemIdx]
		}
	}
	return nil
}

// State projects the current position into the consumer-facing shape.
func (e *Engine) State() State {
	s := State{Phase: e.phase, Complete: e.complete, Position: e.Position()}
	if e.complete || len(e.stack) == 0 {
		return s
	}
	n := e.top().node
	switch n.kind {
	case KindActionStep:
		seat := e.current
		s.CurrentPlayer = &seat
		s.AvailableActions = e.availableTo(n, seat)
	case KindSimultaneous:
		for seat := 0; seat < e.def.Seats; seat++ {
			a := Awaiting{PlayerIndex: seat, Completed: n.playerDone(seat)}
			if !a.Completed {
				a.AvailableActions = e.availableTo(n, seat)
			}
			s.AwaitingPlayers = append(s.AwaitingPlayers, a)
		}
	}
	return s
}

func (e *Engine) availableTo(n *Node, seat int) []string {
	return lo.Filter(n.actions, func(a string, _ int) bool {
		return e.exec == nil || e.exec.IsAvailable(a, seat)
	})
}

func (e *Engine) actionLegal(n *Node, action string, seat int) bool {
	if !lo.Contains(n.actions, action) {
		return false
	}
	return e.exec == nil || e.exec.IsAvailable(action, seat)
}

func (e *Engine) top() *frame { return e.stack[len(e.stack)-1] }

func (e *Engine) push(n *Node) {
	e.stack = append(e.stack, &frame{node: n})
}

// finish pops the completed top frame and advances the parent's cursor.
// Loop, switch and if advance inside run instead.
func (e *Engine) finish() {
	e.stack = e.stack[:len(e.stack)-1]
	if len(e.stack) == 0 {
		return
	}
	p := e.top()
	switch p.node.kind {
	case KindSequence, KindPhase:
		p.index++
	case KindEachPlayer:
		p.orderIdx++
	case KindForEach:
		p.itemIdx++
	}
}

// run walks forward from the current position until it reaches a node
// requiring player input or the flow completes. Errors from execute
// blocks propagate unchanged; exceeding a loop cap is fatal.
func (e *Engine) run() error {
	for len(e.stack) > 0 {
		f := e.top()
		n := f.node
		switch n.kind {
		case KindSequence:
			if f.index < len(n.children) {
				e.push(n.children[f.index])
				continue
			}
			e.finish()
		case KindPhase:
			if !f.entered {
				f.entered = true
				e.phase = n.name
				log.Debug().Str("phase", n.name).Msg("entering phase")
				if n.onEnter != nil {
					n.onEnter()
				}
			}
			if f.index < len(n.children) {
				e.push(n.children[f.index])
				continue
			}
			e.finish()
		case KindLoop:
			if n.while != nil && !n.while() {
				e.finish()
				continue
			}
			if n.maxIterations > 0 && f.iteration >= n.maxIterations {
				return fmt.Errorf("%w: ran %d iterations", ErrMaxIterations, f.iteration)
			}
			f.iteration++
			e.push(n.children[0])
		case KindEachPlayer:
			if !f.entered {
				f.entered = true
				if n.turnOrder != nil {
					f.order = n.turnOrder()
				} else {
					f.order = seatOrder(e.def.Seats)
				}
			}
			for f.orderIdx < len(f.order) && n.skipPlayer != nil && n.skipPlayer(f.order[f.orderIdx]) {
				f.orderIdx++
			}
			if f.orderIdx >= len(f.order) {
				e.finish()
				continue
			}
			e.current = f.order[f.orderIdx]
			e.push(n.children[0])
		case KindForEach:
			if !f.entered {
				f.entered = true
				f.items = n.items()
			}
			if f.itemIdx >= len(f.items) {
				e.finish()
				continue
			}
			e.push(n.children[0])
		case KindSwitch:
			if f.entered {
				e.finish()
				continue
			}
			f.entered = true
			f.caseKey = n.switchOn()
			child := n.cases[f.caseKey]
			if child == nil {
				child = n.fallback
			}
			if child == nil {
				e.finish()
				continue
			}
			e.push(child)
		case KindIf:
			if f.entered {
				e.finish()
				continue
			}
			f.entered = true
			var child *Node
			if n.cond() {
				f.branch = 1
				child = n.then
			} else {
				f.branch = 2
				child = n.els
			}
			if child == nil {
				e.finish()
				continue
			}
			e.push(child)
		case KindExecute:
			if err := n.run(); err != nil {
				return err
			}
			e.finish()
		case KindActionStep:
			if n.skipIf != nil && n.skipIf() {
				e.finish()
				continue
			}
			if n.player != nil {
				e.current = n.player()
			}
			return nil
		case KindSimultaneous:
			if !f.entered {
				f.entered = true
				f.done = map[int]bool{}
			}
			for seat := 0; seat < e.def.Seats; seat++ {
				f.done[seat] = n.playerDone(seat)
			}
			if n.allDone() {
				e.finish()
				continue
			}
			return nil
		default:
			return fmt.Errorf("unhandled flow node kind %q", n.kind)
		}
	}
	e.complete = true
	return nil
}

func seatOrder(seats int) []int {
	order := make([]int, seats)
	for i := range order {
		order[i] = i
	}
	return order
}
