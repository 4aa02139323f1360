// Package boardgame ties the element tree, the action grammar and the
// flow engine into one game instance: the aggregate the session layer and
// the bot both drive through a single Continue path.
package boardgame

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/element"
	"github.com/Shufflewick/boardsmith/flow"
)

// Definition is a game's static rule code. Actions and Flow are builder
// functions rather than data because their predicates and effects are
// closures over the game instance they will run against; they are called
// once per instance and their results never change afterwards.
type Definition struct {
	Name    string
	Seats   int
	Setup   func(g *Game) error
	Actions func(g *Game) map[string]*action.Action
	Flow    func(g *Game) flow.Definition
}

// ActionRecord is one entry of the action history: enough, with the seed,
// to replay a game deterministically.
type ActionRecord struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
	Seat   int            `json:"seat"`
}

// Game is one live instance. All mutation funnels through Continue;
// callers must serialize access (single writer, no internal locking).
type Game struct {
	id      uuid.UUID
	def     *Definition
	seed    uint64
	rng     *rand.Rand
	tree    *element.Tree
	actions map[string]*action.Action
	engine  *flow.Engine
	history []ActionRecord
	started bool
	ended   bool
}

// New builds an unstarted game with the given seed. All randomness inside
// rule code must come from the game's RNG so replay stays deterministic.
func New(def *Definition, seed uint64) *Game {
	if def.Seats < 1 {
		panic("boardgame: definition requires at least one seat")
	}
	g := &Game{
		id:   uuid.New(),
		def:  def,
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
		tree: element.NewTree(),
	}
	g.actions = def.Actions(g)
	g.engine = flow.New(def.Flow(g), g)
	return g
}

// Start logs the start marker, runs setup and advances the flow to the
// first input point. Call exactly once per instance.
func (g *Game) Start() error {
	if g.started {
		return fmt.Errorf("game already started")
	}
	g.started = true
	g.tree.StartGame(g.def.Name, g.def.Seats)
	if g.def.Setup != nil {
		if err := g.def.Setup(g); err != nil {
			return err
		}
	}
	if err := g.engine.Start(); err != nil {
		return err
	}
	g.maybeEnd()
	return nil
}

// Continue feeds one action through the flow engine. Bot moves and human
// moves share this exact path. Illegal actions return an error wrapping
// flow.ErrIllegalAction; effect errors propagate unchanged.
func (g *Game) Continue(actionName string, args map[string]any, seat int) error {
	if !g.started {
		return fmt.Errorf("game not started")
	}
	if err := g.engine.Continue(actionName, args, seat); err != nil {
		return err
	}
	g.history = append(g.history, ActionRecord{Action: actionName, Args: args, Seat: seat})
	g.maybeEnd()
	return nil
}

func (g *Game) maybeEnd() {
	if g.ended || !g.engine.Complete() {
		return
	}
	g.ended = true
	winners := g.engine.Winners()
	g.tree.EndGame(winners)
	log.Debug().Ints("winners", winners).Str("game", g.def.Name).Msg("game complete")
}

// IsAvailable implements flow.Executor.
func (g *Game) IsAvailable(name string, seat int) bool {
	a := g.actions[name]
	if a == nil {
		return false
	}
	return a.Condition == nil || a.Condition(seat)
}

// Execute implements flow.Executor.
func (g *Game) Execute(name string, args map[string]any, seat int) error {
	a := g.actions[name]
	if a == nil {
		return fmt.Errorf("unknown action %q", name)
	}
	return a.Effect(action.Args(args), seat)
}

func (g *Game) ID() uuid.UUID           { return g.id }
func (g *Game) Name() string            { return g.def.Name }
func (g *Game) Seats() int              { return g.def.Seats }
func (g *Game) Seed() uint64            { return g.seed }
func (g *Game) RNG() *rand.Rand         { return g.rng }
func (g *Game) Tree() *element.Tree     { return g.tree }
func (g *Game) Definition() *Definition { return g.def }

// Action looks up a registered action definition.
func (g *Game) Action(name string) *action.Action { return g.actions[name] }

// FlowState projects the current flow position.
func (g *Game) FlowState() flow.State { return g.engine.State() }

// Complete reports whether the flow has finished.
func (g *Game) Complete() bool { return g.engine.Complete() }

// Winners returns the winner seats once complete; empty means a draw.
func (g *Game) Winners() []int { return g.engine.Winners() }

// CurrentItem exposes the innermost forEach binding to rule code.
func (g *Game) CurrentItem() any { return g.engine.CurrentItem() }

// History returns a copy of the action history.
func (g *Game) History() []ActionRecord {
	out := make([]ActionRecord, len(g.history))
	copy(out, g.history)
	return out
}

// CommandCount returns the current command-log length.
func (g *Game) CommandCount() int { return g.tree.LogLen() }

// SelectionChoices evaluates one selection's filtered candidate set under
// partial args, for UI or bot consumption.
func (g *Game) SelectionChoices(actionName, selectionName string, seat int, args action.Args) []any {
	a := g.actions[actionName]
	if a == nil {
		return nil
	}
	for _, sel := range a.Selections {
		if sel.Name == selectionName {
			return action.ValidChoices(sel, seat, args)
		}
	}
	return nil
}

// ActingSeat returns the seat expected to act next: the first incomplete
// awaiting player inside a simultaneous step, otherwise the current
// player. ok is false when the game is complete or awaiting nobody.
func (g *Game) ActingSeat() (int, bool) {
	fs := g.engine.State()
	if fs.Complete {
		return 0, false
	}
	if len(fs.AwaitingPlayers) > 0 {
		for _, a := range fs.AwaitingPlayers {
			if !a.Completed {
				return a.PlayerIndex, true
			}
		}
		return 0, false
	}
	if fs.CurrentPlayer != nil {
		return *fs.CurrentPlayer, true
	}
	return 0, false
}

// MayAct reports whether the given seat may submit an action right now.
func (g *Game) MayAct(seat int) bool {
	fs := g.engine.State()
	if fs.Complete {
		return false
	}
	if len(fs.AwaitingPlayers) > 0 {
		for _, a := range fs.AwaitingPlayers {
			if a.PlayerIndex == seat && !a.Completed {
				return true
			}
		}
		return false
	}
	return fs.CurrentPlayer != nil && *fs.CurrentPlayer == seat
}

// EnumerateMoves expands the actions currently legal for seat into the
// concrete move list. Empty means the seat has no input to give.
func (g *Game) EnumerateMoves(en *action.Enumerator, seat int) []action.Move {
	fs := g.engine.State()
	if fs.Complete {
		return nil
	}
	var names []string
	if len(fs.AwaitingPlayers) > 0 {
		for _, a := range fs.AwaitingPlayers {
			if a.PlayerIndex == seat && !a.Completed {
				names = a.AvailableActions
			}
		}
	} else if fs.CurrentPlayer != nil && *fs.CurrentPlayer == seat {
		names = fs.AvailableActions
	}
	if len(names) == 0 {
		return nil
	}
	return en.Enumerate(g.actions, names, seat)
}

// Cursor marks a rewindable point in the game's timeline: the flow
// position plus the command-log and history lengths at that moment.
type Cursor struct {
	Position flow.Position
	Commands int
	History  int
	Ended    bool
}

// Cursor captures the current point.
func (g *Game) Cursor() Cursor {
	return Cursor{
		Position: g.engine.Position(),
		Commands: g.tree.LogLen(),
		History:  len(g.history),
		Ended:    g.ended,
	}
}

// Rewind undoes commands back to the cursor and restores the flow
// position. It returns false, leaving state untouched, when the undo
// would cross a non-invertible command; the caller must then recover by
// recloning from a snapshot.
func (g *Game) Rewind(c Cursor) bool {
	n := g.tree.LogLen() - c.Commands
	if n < 0 || len(g.history) < c.History {
		return false
	}
	if !g.tree.Undo(n) {
		return false
	}
	if err := g.engine.SetPosition(c.Position); err != nil {
		// Position came from this same instance; a mapping failure here
		// means the cursor was forged or the tree changed under us.
		panic(fmt.Sprintf("boardgame: rewind to invalid position: %v", err))
	}
	g.history = g.history[:c.History]
	g.ended = c.Ended
	return true
}
