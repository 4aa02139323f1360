package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/Shufflewick/boardsmith/boardgame"
	"github.com/Shufflewick/boardsmith/config"
	"github.com/Shufflewick/boardsmith/engine"
	"github.com/Shufflewick/boardsmith/searcher"
	"github.com/Shufflewick/boardsmith/tictactoe"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	numGames := 10
	fmt.Printf("Running %d tic-tac-toe games: %s bot vs random...\n", numGames, cfg.Difficulty)

	botWins, draws, randomWins := 0, 0, 0
	for i := 0; i < numGames; i++ {
		winners, records, err := runGame(cfg.Bot)
		if err != nil {
			log.Fatal().Err(err).Int("game", i+1).Msg("game failed")
		}
		switch {
		case len(winners) == 0:
			draws++
			fmt.Printf("Game %d: draw after %d moves\n", i+1, len(records))
		case winners[0] == 0:
			botWins++
			fmt.Printf("Game %d: bot won in %d moves\n", i+1, len(records))
		default:
			randomWins++
			fmt.Printf("Game %d: random player won in %d moves\n", i+1, len(records))
		}
	}
	fmt.Printf("Finished: bot %d, draws %d, random %d\n", botWins, draws, randomWins)
}

func runGame(botCfg searcher.BotConfig) ([]int, []engine.MoveRecord, error) {
	g := boardgame.New(tictactoe.Definition(), frand.Uint64n(1<<62))
	bot := searcher.New(g, 0, botCfg, tictactoe.AI())
	runner := &engine.Runner{
		Game: g,
		Seats: []engine.Seat{
			&engine.BotSeat{Bot: bot},
			engine.NewRandomSeat(frand.Uint64n(1 << 62)),
		},
	}
	return runner.Run(context.Background())
}
