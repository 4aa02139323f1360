package boardgame

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Shufflewick/boardsmith/element"
)

// Snapshot captures everything needed to reconstruct a game exactly:
// seed, settings, the command log and the action history. It is plain
// JSON end to end.
type Snapshot struct {
	GameType string            `json:"gameType"`
	ID       uuid.UUID         `json:"id"`
	Seats    int               `json:"seats"`
	Seed     uint64            `json:"seed"`
	Commands []element.Command `json:"commands"`
	History  []ActionRecord    `json:"actionHistory"`
}

// Snapshot captures the current state.
func (g *Game) Snapshot() *Snapshot {
	return &Snapshot{
		GameType: g.def.Name,
		ID:       g.id,
		Seats:    g.def.Seats,
		Seed:     g.seed,
		Commands: g.tree.Log(),
		History:  g.History(),
	}
}

// Restore reconstructs a fresh instance from a snapshot by replaying its
// action history through the normal Continue path; the fixed seed makes
// the replay land on the identical command log, which is verified against
// the snapshot. Any failure, including a panic out of rule code, comes
// back as an error: it indicates the snapshot/replay contract was
// violated upstream.
func Restore(def *Definition, snap *Snapshot) (g *Game, err error) {
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("restore panicked: %v", r)
		}
	}()
	if def.Name != snap.GameType {
		return nil, fmt.Errorf("snapshot is for game %q, definition is %q", snap.GameType, def.Name)
	}
	g = New(def, snap.Seed)
	g.id = snap.ID
	if err := g.Start(); err != nil {
		return nil, fmt.Errorf("restore setup: %w", err)
	}
	for i, rec := range snap.History {
		if err := g.Continue(rec.Action, rec.Args, rec.Seat); err != nil {
			return nil, fmt.Errorf("restore replaying action %d (%s): %w", i, rec.Action, err)
		}
	}
	if g.tree.LogLen() != len(snap.Commands) {
		return nil, fmt.Errorf("restore diverged: replay produced %d commands, snapshot has %d",
			g.tree.LogLen(), len(snap.Commands))
	}
	return g, nil
}
