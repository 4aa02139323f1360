// Package engine runs complete local games: pluggable seats (bot,
// random, scripted) feed moves through the same Continue path a human
// session would use, so an AI-selected move has no special execution
// route.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
	"github.com/Shufflewick/boardsmith/searcher"
)

// Seat supplies the next move for one player position.
type Seat interface {
	ChooseMove(ctx context.Context, g *boardgame.Game, seat int) (action.Move, error)
}

// BotSeat plays through an MCTS bot.
type BotSeat struct {
	Bot *searcher.MCTSBot
}

func (s *BotSeat) ChooseMove(ctx context.Context, _ *boardgame.Game, _ int) (action.Move, error) {
	return s.Bot.Play(ctx)
}

// RandomSeat plays uniformly random legal moves.
type RandomSeat struct {
	en  *action.Enumerator
	rng *rand.Rand
}

func NewRandomSeat(seed uint64) *RandomSeat {
	rng := rand.New(rand.NewSource(seed))
	return &RandomSeat{rng: rng, en: &action.Enumerator{RNG: rng}}
}

func (s *RandomSeat) ChooseMove(_ context.Context, g *boardgame.Game, seat int) (action.Move, error) {
	moves := g.EnumerateMoves(s.en, seat)
	if len(moves) == 0 {
		return action.Move{}, fmt.Errorf("no moves for seat %d", seat)
	}
	return moves[s.rng.Intn(len(moves))], nil
}

// ScriptedSeat replays a fixed move list, for tests and demos.
type ScriptedSeat struct {
	Moves []action.Move
	next  int
}

func (s *ScriptedSeat) ChooseMove(_ context.Context, _ *boardgame.Game, seat int) (action.Move, error) {
	if s.next >= len(s.Moves) {
		return action.Move{}, fmt.Errorf("scripted seat %d is out of moves", seat)
	}
	mv := s.Moves[s.next]
	s.next++
	return mv, nil
}

// MoveRecord is one entry of a finished run's transcript.
type MoveRecord struct {
	Step     int           `json:"step"`
	Seat     int           `json:"seat"`
	Move     action.Move   `json:"move"`
	Elapsed  time.Duration `json:"elapsed"`
	Commands int           `json:"commands"`
}

// Runner drives one game to completion.
type Runner struct {
	Game     *boardgame.Game
	Seats    []Seat
	MaxMoves int // safety cap; 0 defaults to 1000

	// OnMove, when set, observes each applied move.
	OnMove func(MoveRecord)
}

// Run starts the game if needed and loops until the flow completes or the
// move cap is hit. It returns the winner seats (empty on a draw) and the
// move transcript.
func (r *Runner) Run(ctx context.Context) ([]int, []MoveRecord, error) {
	g := r.Game
	if len(r.Seats) != g.Seats() {
		return nil, nil, fmt.Errorf("%d seats provided for a %d-player game", len(r.Seats), g.Seats())
	}
	maxMoves := r.MaxMoves
	if maxMoves <= 0 {
		maxMoves = 1000
	}

	if g.CommandCount() == 0 {
		if err := g.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting game: %w", err)
		}
	}
	log.Info().Str("game", g.Name()).Str("id", g.ID().String()).Msg("game starting")

	var records []MoveRecord
	for step := 1; !g.Complete(); step++ {
		if step > maxMoves {
			return nil, records, fmt.Errorf("game exceeded %d moves without completing", maxMoves)
		}
		seat, ok := g.ActingSeat()
		if !ok {
			return nil, records, errors.New("flow is suspended but no seat may act")
		}
		before := g.CommandCount()
		start := time.Now()
		mv, err := r.Seats[seat].ChooseMove(ctx, g, seat)
		if err != nil {
			return nil, records, fmt.Errorf("seat %d choosing move: %w", seat, err)
		}
		if err := g.Continue(mv.Action, mv.Args, seat); err != nil {
			return nil, records, fmt.Errorf("seat %d playing %q: %w", seat, mv.Action, err)
		}
		rec := MoveRecord{
			Step:     step,
			Seat:     seat,
			Move:     mv,
			Elapsed:  time.Since(start),
			Commands: g.CommandCount() - before,
		}
		records = append(records, rec)
		if r.OnMove != nil {
			r.OnMove(rec)
		}
		log.Debug().Int("step", step).Int("seat", seat).Str("action", mv.Action).Msg("move applied")
	}

	winners := g.Winners()
	log.Info().Ints("winners", winners).Int("moves", len(records)).Msg("game complete")
	return winners, records, nil
}
