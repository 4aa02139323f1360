// Package flow implements the turn-structure state machine: an immutable
// tree of control nodes built once at game-definition time, walked by a
// mutable position cursor that decides whose turn it is and which actions
// are legal.
package flow

// NodeKind discriminates the control constructs.
type NodeKind string

const (
	KindSequence     NodeKind = "sequence"
	KindLoop         NodeKind = "loop"
	KindPhase        NodeKind = "phase"
	KindEachPlayer   NodeKind = "eachPlayer"
	KindForEach      NodeKind = "forEach"
	KindActionStep   NodeKind = "actionStep"
	KindSimultaneous NodeKind = "simultaneousActionStep"
	KindSwitch       NodeKind = "switch"
	KindIf           NodeKind = "if"
	KindExecute      NodeKind = "execute"
)

// Node is one immutable node of the control-flow tree. Nodes are built by
// the constructor functions below and never mutated after construction;
// all runtime state lives in the engine's position cursor.
type Node struct {
	kind     NodeKind
	name     string
	children []*Node

	while         func() bool
	maxIterations int

	turnOrder  func() []int
	skipPlayer func(seat int) bool

	actions []string
	player  func() int
	skipIf  func() bool

	playerDone func(seat int) bool
	allDone    func() bool

	switchOn func() string
	cases    map[string]*Node
	fallback *Node

	cond func() bool
	then *Node
	els  *Node

	items func() []any

	run     func() error
	onEnter func()
}

func (n *Node) Kind() NodeKind { return n.kind }
func (n *Node) Name() string   { return n.name }

// Sequence executes children left to right and completes when the last
// child completes.
func Sequence(children ...*Node) *Node {
	return &Node{kind: KindSequence, children: children}
}

// LoopOptions configures a Loop node. MaxIterations is a hard safety cap:
// exceeding it is a fatal game-definition error, not a silent exit.
type LoopOptions struct {
	While         func() bool
	Do            *Node
	MaxIterations int
}

func Loop(opts LoopOptions) *Node {
	if opts.Do == nil {
		panic("flow: loop requires a body")
	}
	return &Node{
		kind:          KindLoop,
		children:      []*Node{opts.Do},
		while:         opts.While,
		maxIterations: opts.MaxIterations,
	}
}

// PhaseOptions configures a Phase node. OnEnter may set informational
// game-state fields; it must not drive flow control.
type PhaseOptions struct {
	Do      *Node
	OnEnter func()
}

func Phase(name string, opts PhaseOptions) *Node {
	if opts.Do == nil {
		panic("flow: phase requires a body")
	}
	return &Node{kind: KindPhase, name: name, children: []*Node{opts.Do}, onEnter: opts.OnEnter}
}

// EachPlayerOptions configures an EachPlayer node. TurnOrder defaults to
// seat order; SkipIf skips individual players.
type EachPlayerOptions struct {
	Do        *Node
	TurnOrder func() []int
	SkipIf    func(seat int) bool
}

func EachPlayer(opts EachPlayerOptions) *Node {
	if opts.Do == nil {
		panic("flow: eachPlayer requires a body")
	}
	return &Node{
		kind:       KindEachPlayer,
		children:   []*Node{opts.Do},
		turnOrder:  opts.TurnOrder,
		skipPlayer: opts.SkipIf,
	}
}

// ForEachOptions configures a ForEach node; Items is evaluated on entry
// and the current item is exposed through Engine.CurrentItem.
type ForEachOptions struct {
	Items func() []any
	Do    *Node
}

func ForEach(opts ForEachOptions) *Node {
	if opts.Do == nil || opts.Items == nil {
		panic("flow: forEach requires items and a body")
	}
	return &Node{kind: KindForEach, children: []*Node{opts.Do}, items: opts.Items}
}

// ActionStepOptions configures a suspension point. Player overrides the
// current player from the enclosing eachPlayer; SkipIf completes the step
// immediately with no input.
type ActionStepOptions struct {
	Actions []string
	Player  func() int
	SkipIf  func() bool
}

func ActionStep(opts ActionStepOptions) *Node {
	if len(opts.Actions) == 0 {
		panic("flow: actionStep requires actions")
	}
	return &Node{
		kind:    KindActionStep,
		actions: opts.Actions,
		player:  opts.Player,
		skipIf:  opts.SkipIf,
	}
}

// SimultaneousOptions configures an un-ordered concurrent input step: all
// players for whom PlayerDone is false may submit actions in any order,
// and the node completes once AllDone holds.
type SimultaneousOptions struct {
	Actions    []string
	PlayerDone func(seat int) bool
	AllDone    func() bool
}

func Simultaneous(opts SimultaneousOptions) *Node {
	if len(opts.Actions) == 0 || opts.PlayerDone == nil || opts.AllDone == nil {
		panic("flow: simultaneousActionStep requires actions, playerDone and allDone")
	}
	return &Node{
		kind:       KindSimultaneous,
		actions:    opts.Actions,
		playerDone: opts.PlayerDone,
		allDone:    opts.AllDone,
	}
}

// SwitchOptions selects one case by key; a missing case falls back to
// Default or completes immediately.
type SwitchOptions struct {
	On      func() string
	Cases   map[string]*Node
	Default *Node
}

func Switch(opts SwitchOptions) *Node {
	if opts.On == nil {
		panic("flow: switch requires a selector")
	}
	return &Node{kind: KindSwitch, switchOn: opts.On, cases: opts.Cases, fallback: opts.Default}
}

// IfOptions descends into Then or Else by predicate; a nil branch
// completes immediately.
type IfOptions struct {
	Cond func() bool
	Then *Node
	Else *Node
}

func If(opts IfOptions) *Node {
	if opts.Cond == nil {
		panic("flow: if requires a condition")
	}
	return &Node{kind: KindIf, cond: opts.Cond, then: opts.Then, els: opts.Else}
}

// Execute runs fn synchronously with no player input, then completes.
func Execute(fn func() error) *Node {
	if fn == nil {
		panic("flow: execute requires a function")
	}
	return &Node{kind: KindExecute, run: fn}
}
