package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
	"github.com/Shufflewick/boardsmith/element"
	"github.com/Shufflewick/boardsmith/searcher"
	"github.com/Shufflewick/boardsmith/tictactoe"
)

func markMove(cell int) action.Move {
	return action.Move{Action: "mark", Args: map[string]any{"cell": cell}}
}

func TestRunnerPlaysScriptedGame(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 1)
	r := &Runner{
		Game: g,
		Seats: []Seat{
			// Cells 4..6 are the top row; seat 0 takes it in three moves.
			&ScriptedSeat{Moves: []action.Move{markMove(4), markMove(5), markMove(6)}},
			&ScriptedSeat{Moves: []action.Move{markMove(7), markMove(8)}},
		},
	}

	winners, records, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{0}, winners)
	require.Len(t, records, 5)
	require.Equal(t, []int{0, 1, 0, 1, 0}, seatsOf(records))
	for i, rec := range records {
		require.Equal(t, i+1, rec.Step)
		require.Positive(t, rec.Commands, "every move mutates the tree")
	}
}

func seatsOf(records []MoveRecord) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Seat
	}
	return out
}

func TestRunnerRandomGameCompletes(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 5)
	observed := 0
	r := &Runner{
		Game:   g,
		Seats:  []Seat{NewRandomSeat(10), NewRandomSeat(11)},
		OnMove: func(MoveRecord) { observed++ },
	}

	_, records, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, g.Complete())
	require.Equal(t, len(records), observed)
	require.LessOrEqual(t, len(records), 9)
}

func TestRunnerBotSeat(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 21)
	bot := searcher.New(g, 0, searcher.BotConfig{
		Iterations:   50,
		PlayoutDepth: 9,
		Seed:         "runner",
		Timeout:      10 * time.Second,
	}, tictactoe.AI())
	r := &Runner{
		Game:  g,
		Seats: []Seat{&BotSeat{Bot: bot}, NewRandomSeat(22)},
	}

	winners, _, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, g.Complete())
	// The bot blocks every threat, so it never loses to random play.
	require.NotEqual(t, []int{1}, winners)
}

func TestRunnerSeatCountMismatch(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 1)
	r := &Runner{Game: g, Seats: []Seat{NewRandomSeat(1)}}
	_, _, err := r.Run(context.Background())
	require.Error(t, err)
}

func TestRunnerMoveCap(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 1)
	r := &Runner{
		Game:     g,
		Seats:    []Seat{NewRandomSeat(1), NewRandomSeat(2)},
		MaxMoves: 2,
	}
	_, records, err := r.Run(context.Background())
	require.Error(t, err)
	require.Len(t, records, 2, "the transcript up to the cap is returned")
}

func TestRunnerExhaustedScriptFails(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 1)
	r := &Runner{
		Game: g,
		Seats: []Seat{
			&ScriptedSeat{Moves: []action.Move{markMove(4)}},
			&ScriptedSeat{Moves: []action.Move{markMove(7)}},
		},
	}
	_, _, err := r.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of moves")
}

func TestCommandLogRoundTrip(t *testing.T) {
	g := boardgame.New(tictactoe.Definition(), 9)
	r := &Runner{Game: g, Seats: []Seat{NewRandomSeat(30), NewRandomSeat(31)}}
	_, _, err := r.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCommandLog(&buf, g))
	require.Equal(t, g.CommandCount(), strings.Count(buf.String(), "\n"))

	commands, err := ReadCommandLog(&buf)
	require.NoError(t, err)
	require.Len(t, commands, g.CommandCount())

	// Replaying the exported log rebuilds the identical tree.
	fresh := element.NewTree()
	require.NoError(t, fresh.Replay(commands))
	require.Equal(t, g.Tree().Digest(), fresh.Digest())
}

func TestReadCommandLogRejectsOutOfOrder(t *testing.T) {
	input := `{"seq":0,"command":{"kind":"message","text":"a"}}
{"seq":2,"command":{"kind":"message","text":"b"}}
`
	_, err := ReadCommandLog(strings.NewReader(input))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of order")
}
