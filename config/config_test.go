package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresetLookup(t *testing.T) {
	easy, err := Preset("easy")
	require.NoError(t, err)
	require.Equal(t, 100, easy.Iterations)
	require.Equal(t, 2*time.Second, easy.Timeout)

	hard, err := Preset("HARD")
	require.NoError(t, err)
	require.Equal(t, 2000, hard.Iterations)

	_, err = Preset("nightmare")
	require.Error(t, err)
	require.Contains(t, err.Error(), "nightmare")
}

func TestLoadWithoutConfigFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "medium", cfg.Difficulty)
	require.Equal(t, 500, cfg.Bot.Iterations)
	require.Equal(t, 20, cfg.Bot.PlayoutDepth)
	require.Equal(t, 1, cfg.Bot.Parallel)
}

func TestLoadOverridesPreset(t *testing.T) {
	dir := t.TempDir()
	yml := `
difficulty: easy
bot:
  iterations: 42
  timeout: 1s
  seed: reproducible
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boardsmith.yml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "easy", cfg.Difficulty)
	require.Equal(t, 42, cfg.Bot.Iterations, "explicit keys override the preset")
	require.Equal(t, time.Second, cfg.Bot.Timeout)
	require.Equal(t, "reproducible", cfg.Bot.Seed)
	require.Equal(t, 10, cfg.Bot.PlayoutDepth, "unset keys keep the preset value")
}

func TestLoadEnumerationLimits(t *testing.T) {
	dir := t.TempDir()
	yml := `
bot:
  maxChoices: 8
  maxCombinations: 16
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boardsmith.yml"), []byte(yml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Bot.Limits.MaxChoices)
	require.Equal(t, 16, cfg.Bot.Limits.MaxCombinations)
}

func TestLoadRejectsUnknownDifficulty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "boardsmith.yml"),
		[]byte("difficulty: impossible\n"), 0o644))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("BOARDSMITH_DIFFICULTY", "hard")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "hard", cfg.Difficulty)
	require.Equal(t, 2000, cfg.Bot.Iterations)
}
