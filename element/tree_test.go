package element

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestTreeMutationsAreLogged(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", nil)
	card := deck.Create("card", map[string]any{"rank": 7})
	card.Set("rank", 8)
	hand := tr.Root().Create("hand", nil)
	require.NoError(t, card.MoveTo(hand, 0))
	card.SetVisibility(1, true)

	log := tr.Log()
	require.Len(t, log, 6, "every mutation should append exactly one command")
	kinds := []Kind{KindCreate, KindCreate, KindSetAttribute, KindCreate, KindMove, KindSetVisibility}
	for i, k := range kinds {
		require.Equal(t, k, log[i].Kind, "command %d", i)
	}

	require.Equal(t, 8, card.Attr("rank"))
	require.Equal(t, hand, card.Parent())
	require.True(t, card.HiddenFrom(1))
	require.False(t, card.HiddenFrom(0))
}

func TestCommandsAreJSONSerializable(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", map[string]any{"suit": "spades"})
	deck.CreateMany(3, "card")
	deck.Shuffle(rand.New(rand.NewSource(1)))
	tr.Message("dealt")

	data, err := json.Marshal(tr.Log())
	require.NoError(t, err)

	var back []Command
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, len(tr.Log()))
	for i, c := range tr.Log() {
		require.Equal(t, c.Kind, back[i].Kind)
	}
}

func TestUndoRoundTrip(t *testing.T) {
	tr := NewTree()
	a := tr.Root().Create("pile", nil)
	b := tr.Root().Create("pile", nil)
	card := a.Create("card", map[string]any{"rank": 1})
	baseline := tr.Digest()
	baseLen := tr.LogLen()

	// Three invertible commands.
	card.Set("rank", 5)
	require.NoError(t, card.MoveTo(b, 0))
	card.SetVisibility(0, true)
	mutated := tr.Digest()
	applied := tr.Log()[baseLen:]

	require.True(t, tr.Undo(3), "undo over invertible commands should succeed")
	require.Equal(t, baseline, tr.Digest(), "undo should restore the exact prior state")
	require.Equal(t, baseLen, tr.LogLen())

	// Re-applying the same commands restores the mutated state.
	require.NoError(t, tr.Replay(applied))
	require.Equal(t, mutated, tr.Digest(), "redo should restore the mutated state")
}

func TestUndoFailureContainment(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", nil)
	cards := deck.CreateMany(5, "card")
	cards[0].Set("rank", 1)
	deck.Shuffle(rand.New(rand.NewSource(42)))
	cards[1].Set("rank", 2)
	before := tr.Digest()
	beforeLen := tr.LogLen()

	// Crossing the shuffle must fail without touching anything.
	require.False(t, tr.Undo(2), "undo crossing a shuffle must report failure")
	require.Equal(t, before, tr.Digest(), "failed undo must not mutate the tree")
	require.Equal(t, beforeLen, tr.LogLen(), "failed undo must not shrink the log")

	// Not crossing it still works.
	require.True(t, tr.Undo(1))
}

func TestCheckUndoNamesTheBlocker(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", nil)
	deck.CreateMany(3, "card")
	deck.Shuffle(rand.New(rand.NewSource(1)))
	deck.Children()[0].Set("rank", 1)

	require.NoError(t, tr.CheckUndo(1))
	err := tr.CheckUndo(2)
	require.ErrorIs(t, err, ErrNotInvertible)
	require.Contains(t, err.Error(), string(KindShuffle))
	require.Error(t, tr.CheckUndo(tr.LogLen()+1))
}

func TestReplayEquivalence(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", nil)
	cards := deck.CreateMany(6, "card")
	for i, c := range cards {
		c.Set("rank", i+1)
	}
	deck.Shuffle(rand.New(rand.NewSource(9)))
	hand := tr.Root().Create("hand", nil)
	require.NoError(t, deck.Children()[0].MoveTo(hand, -1))
	require.NoError(t, cards[3].Remove())
	tr.Message("done")

	fresh := NewTree()
	require.NoError(t, fresh.Replay(tr.Log()))
	require.Equal(t, tr.Digest(), fresh.Digest(),
		"replaying the command log must rebuild an observationally equal tree")
	require.Equal(t, tr.LogLen(), fresh.LogLen())

	// Ids must carry over exactly.
	for _, c := range cards {
		require.NotNil(t, fresh.Get(c.ID()), "element %d should exist after replay", c.ID())
		require.Equal(t, c.Class(), fresh.Get(c.ID()).Class())
	}
}

func TestSetOrderIsInvertible(t *testing.T) {
	tr := NewTree()
	deck := tr.Root().Create("deck", nil)
	cards := deck.CreateMany(3, "card")
	before := tr.Digest()

	order := []int{cards[2].ID(), cards[0].ID(), cards[1].ID()}
	require.NoError(t, deck.SetOrder(order))
	require.Equal(t, cards[2].ID(), deck.Children()[0].ID())

	require.True(t, tr.Undo(1))
	require.Equal(t, before, tr.Digest())
	require.Equal(t, cards[0].ID(), deck.Children()[0].ID())
}

func TestRemoveIsAMove(t *testing.T) {
	tr := NewTree()
	card := tr.Root().Create("card", nil)
	require.NoError(t, card.Remove())

	log := tr.Log()
	require.Equal(t, KindMove, log[len(log)-1].Kind, "removal is represented as a move")
	require.Equal(t, tr.Removed(), card.Parent())
	require.NotNil(t, tr.Get(card.ID()), "removed ids never dangle")
	require.Empty(t, tr.Root().All("card"))
}

func TestCannotMoveRoot(t *testing.T) {
	tr := NewTree()
	pile := tr.Root().Create("pile", nil)
	require.Error(t, tr.Root().MoveTo(pile, -1))
	require.Error(t, tr.Removed().MoveTo(pile, -1))
}
