package searcher

import (
	"time"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
)

// BotConfig controls one bot's search budget. Individual game operations
// are slow relative to classic MCTS domains, so iteration counts are
// modest and a wall-clock timeout bounds response time regardless.
type BotConfig struct {
	Iterations   int
	PlayoutDepth int
	Seed         string
	Async        bool
	Timeout      time.Duration
	Parallel     int
	Limits       action.EnumerationLimits
}

func (c BotConfig) withDefaults() BotConfig {
	if c.Iterations <= 0 {
		c.Iterations = 500
	}
	if c.PlayoutDepth <= 0 {
		c.PlayoutDepth = 20
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Parallel <= 0 {
		c.Parallel = 1
	}
	return c
}

// Objective is one weighted heuristic condition; negative weights mark
// conditions that are bad for the bot.
type Objective struct {
	Check  func() bool
	Weight float64
}

// AIConfig carries the only game-specific hooks in an otherwise
// game-agnostic search. Objectives is evaluated at playout cutoffs;
// ThreatResponse may restrict (urgent) or prioritize (non-urgent) the
// root's candidate moves.
type AIConfig struct {
	Objectives     func(g *boardgame.Game, seat int) map[string]Objective
	ThreatResponse func(g *boardgame.Game, seat int, moves []action.Move) (response []action.Move, urgent bool)
}
