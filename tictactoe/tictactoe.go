// Package tictactoe defines a complete small game against which the
// engine and the bot are exercised: nine cells, alternating marks, three
// in a line wins.
package tictactoe

import (
	"fmt"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
	"github.com/Shufflewick/boardsmith/element"
	"github.com/Shufflewick/boardsmith/flow"
	"github.com/Shufflewick/boardsmith/searcher"
)

var marks = []string{"X", "O"}

var lines = [][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Definition builds the game: a 3x3 board of cell elements, one "mark"
// action, and a loop of alternating turns that ends on a win or a full
// board.
func Definition() *boardgame.Definition {
	return &boardgame.Definition{
		Name:  "tictactoe",
		Seats: 2,
		Setup: func(g *boardgame.Game) error {
			board := g.Tree().Root().Create("board", nil)
			for row := 0; row < 3; row++ {
				for col := 0; col < 3; col++ {
					board.Create("cell", map[string]any{"row": row, "col": col, "mark": ""})
				}
			}
			return nil
		},
		Actions: func(g *boardgame.Game) map[string]*action.Action {
			return map[string]*action.Action{
				"mark": {
					Name: "mark",
					Selections: []action.Selection{{
						Name: "cell",
						Type: action.SelectElement,
						Choices: func(seat int, args action.Args) []any {
							cells := emptyCells(g)
							out := make([]any, len(cells))
							for i, c := range cells {
								out[i] = c
							}
							return out
						},
					}},
					Effect: func(args action.Args, seat int) error {
						id, ok := action.IntArg(args, "cell")
						if !ok {
							return fmt.Errorf("mark requires a cell")
						}
						cell := g.Tree().Get(id)
						if cell == nil || cell.Class() != "cell" {
							return fmt.Errorf("no cell with id %d", id)
						}
						if cell.Attr("mark") != "" {
							return fmt.Errorf("cell %d is already marked", id)
						}
						cell.Set("mark", marks[seat])
						return nil
					},
				},
			}
		},
		Flow: func(g *boardgame.Game) flow.Definition {
			return flow.Definition{
				Seats: 2,
				Root: flow.Phase("play", flow.PhaseOptions{
					Do: flow.Loop(flow.LoopOptions{
						While:         func() bool { return !over(g) },
						MaxIterations: 6, // 9 moves at 2 per pass; anything past this is a bug
						Do: flow.EachPlayer(flow.EachPlayerOptions{
							Do: flow.ActionStep(flow.ActionStepOptions{
								Actions: []string{"mark"},
								SkipIf:  func() bool { return over(g) },
							}),
						}),
					}),
				}),
				Winners: func() []int {
					if seat, ok := winnerSeat(g); ok {
						return []int{seat}
					}
					return nil // draw
				},
			}
		},
	}
}

// AI returns the heuristics plugged into the bot: objectives for cutoff
// evaluation and an urgent block when the opponent threatens a line.
func AI() searcher.AIConfig {
	return searcher.AIConfig{
		Objectives: func(g *boardgame.Game, seat int) map[string]searcher.Objective {
			return map[string]searcher.Objective{
				"own-center": {
					Weight: 1,
					Check:  func() bool { return markAt(g, 1, 1) == marks[seat] },
				},
				"own-open-line": {
					Weight: 1,
					Check:  func() bool { return openLines(g, seat) > 0 },
				},
				"opponent-threat": {
					Weight: -2,
					Check:  func() bool { return len(winningCells(g, 1-seat)) > 0 },
				},
			}
		},
		ThreatResponse: func(g *boardgame.Game, seat int, moves []action.Move) ([]action.Move, bool) {
			// Winning now beats blocking.
			if wins := movesInto(moves, winningCells(g, seat)); len(wins) > 0 {
				return wins, true
			}
			if blocks := movesInto(moves, winningCells(g, 1-seat)); len(blocks) > 0 {
				return blocks, true
			}
			return nil, false
		},
	}
}

func cellAt(g *boardgame.Game, row, col int) *element.Element {
	cells := g.Tree().Root().Filter("cell", func(e *element.Element) bool {
		return e.Attr("row") == row && e.Attr("col") == col
	})
	if len(cells) == 0 {
		return nil
	}
	return cells[0]
}

func markAt(g *boardgame.Game, row, col int) string {
	c := cellAt(g, row, col)
	if c == nil {
		return ""
	}
	mark, _ := c.Attr("mark").(string)
	return mark
}

func emptyCells(g *boardgame.Game) []*element.Element {
	return g.Tree().Root().Filter("cell", func(e *element.Element) bool {
		return e.Attr("mark") == ""
	})
}

func winnerSeat(g *boardgame.Game) (int, bool) {
	for seat, mark := range marks {
		for _, line := range lines {
			if markAt(g, line[0][0], line[0][1]) == mark &&
				markAt(g, line[1][0], line[1][1]) == mark &&
				markAt(g, line[2][0], line[2][1]) == mark {
				return seat, true
			}
		}
	}
	return 0, false
}

func over(g *boardgame.Game) bool {
	if _, ok := winnerSeat(g); ok {
		return true
	}
	return len(emptyCells(g)) == 0
}

// winningCells returns the ids of empty cells that would complete a line
// for the given seat.
func winningCells(g *boardgame.Game, seat int) map[int]bool {
	out := map[int]bool{}
	for _, line := range lines {
		mine := 0
		var empty *element.Element
		for _, rc := range line {
			c := cellAt(g, rc[0], rc[1])
			switch {
			case c.Attr("mark") == marks[seat]:
				mine++
			case c.Attr("mark") == "":
				empty = c
			}
		}
		if mine == 2 && empty != nil {
			out[empty.ID()] = true
		}
	}
	return out
}

// openLines counts lines containing the seat's mark and no opponent mark.
func openLines(g *boardgame.Game, seat int) int {
	count := 0
	for _, line := range lines {
		mine, theirs := 0, 0
		for _, rc := range line {
			switch markAt(g, rc[0], rc[1]) {
			case marks[seat]:
				mine++
			case marks[1-seat]:
				theirs++
			}
		}
		if mine > 0 && theirs == 0 {
			count++
		}
	}
	return count
}

func movesInto(moves []action.Move, cells map[int]bool) []action.Move {
	var out []action.Move
	for _, mv := range moves {
		if id, ok := action.IntArg(action.Args(mv.Args), "cell"); ok && cells[id] {
			out = append(out, mv)
		}
	}
	return out
}
