// Package config loads bot settings from an optional boardsmith.yml plus
// BOARDSMITH_* environment overrides, with named difficulty presets.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/searcher"
)

// Difficulty presets. The iteration counts are modest on purpose: single
// game operations are too slow for deep search inside an interactive
// response budget.
var presets = map[string]searcher.BotConfig{
	"easy":   {Iterations: 100, PlayoutDepth: 10, Timeout: 2 * time.Second},
	"medium": {Iterations: 500, PlayoutDepth: 20, Timeout: 5 * time.Second},
	"hard":   {Iterations: 2000, PlayoutDepth: 30, Timeout: 10 * time.Second},
}

// Preset returns the named difficulty's bot configuration.
func Preset(name string) (searcher.BotConfig, error) {
	cfg, ok := presets[strings.ToLower(name)]
	if !ok {
		return searcher.BotConfig{}, fmt.Errorf("unknown difficulty %q (want easy, medium or hard)", name)
	}
	return cfg, nil
}

// Config is the loadable surface.
type Config struct {
	Difficulty string
	Bot        searcher.BotConfig
}

// Load reads configuration from the given directory (or the working
// directory when empty). A missing config file is not an error; the
// difficulty preset provides the baseline and explicit keys override it.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("boardsmith")
	v.SetConfigType("yaml")
	if dir == "" {
		dir = "."
	}
	v.AddConfigPath(dir)
	v.SetEnvPrefix("boardsmith")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("difficulty", "medium")
	v.SetDefault("bot.parallel", 1)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	difficulty := v.GetString("difficulty")
	bot, err := Preset(difficulty)
	if err != nil {
		return Config{}, err
	}
	if v.IsSet("bot.iterations") {
		bot.Iterations = v.GetInt("bot.iterations")
	}
	if v.IsSet("bot.playoutDepth") {
		bot.PlayoutDepth = v.GetInt("bot.playoutDepth")
	}
	if v.IsSet("bot.timeout") {
		bot.Timeout = v.GetDuration("bot.timeout")
	}
	if v.IsSet("bot.seed") {
		bot.Seed = v.GetString("bot.seed")
	}
	if v.IsSet("bot.async") {
		bot.Async = v.GetBool("bot.async")
	}
	if v.IsSet("bot.parallel") {
		bot.Parallel = v.GetInt("bot.parallel")
	}
	if v.IsSet("bot.maxChoices") || v.IsSet("bot.maxCombinations") {
		bot.Limits = action.EnumerationLimits{
			MaxChoices:      v.GetInt("bot.maxChoices"),
			MaxCombinations: v.GetInt("bot.maxCombinations"),
		}
	}
	return Config{Difficulty: difficulty, Bot: bot}, nil
}
