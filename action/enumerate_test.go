package action

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newEnumerator(seed uint64) *Enumerator {
	return &Enumerator{RNG: rand.New(rand.NewSource(seed))}
}

func choiceSel(name string, values ...any) Selection {
	return Selection{
		Name:    name,
		Type:    SelectChoice,
		Choices: func(int, Args) []any { return values },
	}
}

func TestEnumerateCrossProduct(t *testing.T) {
	actions := map[string]*Action{
		"place": {
			Name: "place",
			Selections: []Selection{
				choiceSel("piece", "rook", "knight"),
				choiceSel("square", "a1", "b2", "c3"),
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"place"}, 0)
	require.Len(t, moves, 6)

	seen := map[[2]any]bool{}
	for _, m := range moves {
		require.Equal(t, "place", m.Action)
		seen[[2]any{m.Args["piece"], m.Args["square"]}] = true
	}
	require.Len(t, seen, 6, "every piece/square pair appears exactly once")
}

func TestEnumerateDependentFilter(t *testing.T) {
	// The second slot only offers squares matching the confirmed piece.
	actions := map[string]*Action{
		"deploy": {
			Name: "deploy",
			Selections: []Selection{
				choiceSel("piece", "rook", "knight"),
				{
					Name:      "square",
					Type:      SelectChoice,
					DependsOn: "piece",
					Choices:   func(int, Args) []any { return []any{"rook:a1", "rook:a2", "knight:b1"} },
					Filter: func(c any, args Args, _ int) bool {
						piece, _ := args["piece"].(string)
						return c.(string)[:len(piece)] == piece
					},
				},
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"deploy"}, 0)
	require.Len(t, moves, 3)
	for _, m := range moves {
		piece := m.Args["piece"].(string)
		square := m.Args["square"].(string)
		require.Equal(t, piece, square[:len(piece)],
			"dependent filter must see the confirmed earlier value")
	}
}

func TestEnumerateSkipsFailedConditionAndDeadEnds(t *testing.T) {
	actions := map[string]*Action{
		"locked": {
			Name:       "locked",
			Condition:  func(int) bool { return false },
			Selections: []Selection{choiceSel("x", 1)},
		},
		"empty": {
			Name: "empty",
			Selections: []Selection{
				{Name: "x", Type: SelectChoice, Choices: func(int, Args) []any { return nil }},
			},
		},
		"open": {
			Name:       "open",
			Selections: []Selection{choiceSel("x", 1)},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"locked", "empty", "open"}, 0)
	require.Len(t, moves, 1)
	require.Equal(t, "open", moves[0].Action)
}

func TestEnumerateOptionalEmptySelectionStillYields(t *testing.T) {
	actions := map[string]*Action{
		"pass": {
			Name: "pass",
			Selections: []Selection{
				{Name: "bonus", Type: SelectChoice, Optional: true,
					Choices: func(int, Args) []any { return nil }},
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"pass"}, 0)
	require.Len(t, moves, 1)
	require.NotContains(t, moves[0].Args, "bonus")
}

func TestEnumerateUnboundedSelections(t *testing.T) {
	actions := map[string]*Action{
		"rename": {
			Name:       "rename",
			Selections: []Selection{{Name: "label", Type: SelectText}},
		},
		"bid": {
			Name: "bid",
			Selections: []Selection{
				choiceSel("lot", "a", "b"),
				{Name: "note", Type: SelectText, Optional: true},
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"rename", "bid"}, 0)
	require.Len(t, moves, 2, "required text slot excludes the action; optional one is skipped")
	for _, m := range moves {
		require.Equal(t, "bid", m.Action)
		require.NotContains(t, m.Args, "note")
	}
}

func TestEnumerateMultiSelectCombinations(t *testing.T) {
	actions := map[string]*Action{
		"discard": {
			Name: "discard",
			Selections: []Selection{
				{
					Name: "cards", Type: SelectElements, Min: 1, Max: 2,
					Choices: func(int, Args) []any { return []any{10, 20, 30} },
				},
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"discard"}, 0)
	// C(3,1) + C(3,2) = 3 + 3
	require.Len(t, moves, 6)

	sizes := map[int]int{}
	for _, m := range moves {
		combo := m.Args["cards"].([]any)
		sizes[len(combo)]++
	}
	require.Equal(t, map[int]int{1: 3, 2: 3}, sizes)
}

func TestEnumerateMinAboveDomainIsDeadEnd(t *testing.T) {
	actions := map[string]*Action{
		"discard": {
			Name: "discard",
			Selections: []Selection{
				{
					Name: "cards", Type: SelectElements, Min: 4, Max: 5,
					Choices: func(int, Args) []any { return []any{1, 2, 3} },
				},
			},
		},
	}
	require.Empty(t, newEnumerator(1).Enumerate(actions, []string{"discard"}, 0))
}

func TestEnumerateCapsSingleChoices(t *testing.T) {
	big := make([]any, 100)
	for i := range big {
		big[i] = i
	}
	actions := map[string]*Action{
		"pick": {
			Name: "pick",
			Selections: []Selection{
				{Name: "n", Type: SelectChoice, Choices: func(int, Args) []any { return big }},
			},
		},
	}

	en := newEnumerator(7)
	moves := en.Enumerate(actions, []string{"pick"}, 0)
	require.Len(t, moves, DefaultMaxChoices)
	require.Equal(t, 1, en.Sampled, "hitting the cap must be observable")

	seen := map[any]bool{}
	for _, m := range moves {
		seen[m.Args["n"]] = true
	}
	require.Len(t, seen, DefaultMaxChoices, "sampling is without replacement")
}

func TestEnumerateCapsCombinations(t *testing.T) {
	big := make([]any, 30)
	for i := range big {
		big[i] = i
	}
	actions := map[string]*Action{
		"draft": {
			Name: "draft",
			Selections: []Selection{
				{
					Name: "set", Type: SelectElements, Min: 2, Max: 3,
					Choices: func(int, Args) []any { return big },
				},
			},
		},
	}

	en := newEnumerator(7)
	moves := en.Enumerate(actions, []string{"draft"}, 0)
	require.Len(t, moves, DefaultMaxCombinations)
	require.Equal(t, 1, en.Sampled)

	seen := map[string]bool{}
	for _, m := range moves {
		combo := m.Args["set"].([]any)
		require.GreaterOrEqual(t, len(combo), 2)
		require.LessOrEqual(t, len(combo), 3)
		idx := make([]int, len(combo))
		for j, v := range combo {
			idx[j] = v.(int)
		}
		seen[comboKey(idx)] = true
	}
	require.Len(t, seen, DefaultMaxCombinations, "sampled subsets are distinct")
}

func TestEnumerateCustomLimits(t *testing.T) {
	vals := make([]any, 10)
	for i := range vals {
		vals[i] = i
	}
	actions := map[string]*Action{
		"pick": {
			Name: "pick",
			Selections: []Selection{
				{Name: "n", Type: SelectChoice, Choices: func(int, Args) []any { return vals }},
			},
		},
	}

	en := &Enumerator{
		Limits: EnumerationLimits{MaxChoices: 4, MaxCombinations: 4},
		RNG:    rand.New(rand.NewSource(3)),
	}
	require.Len(t, en.Enumerate(actions, []string{"pick"}, 0), 4)
}

func TestEnumerateWithoutExplicitRNG(t *testing.T) {
	big := make([]any, 100)
	for i := range big {
		big[i] = i
	}
	actions := map[string]*Action{
		"pick": {
			Name: "pick",
			Selections: []Selection{
				{Name: "n", Type: SelectChoice, Choices: func(int, Args) []any { return big }},
			},
		},
	}

	en := &Enumerator{} // no RNG: one is seeded on first sampling
	moves := en.Enumerate(actions, []string{"pick"}, 0)
	require.Len(t, moves, DefaultMaxChoices)
	require.Equal(t, 1, en.Sampled)
	require.NotNil(t, en.RNG)
}

type fakeElement struct{ id int }

func (f fakeElement) ID() int { return f.id }

func TestEnumerateStoresElementIDs(t *testing.T) {
	actions := map[string]*Action{
		"take": {
			Name: "take",
			Selections: []Selection{
				{
					Name: "card", Type: SelectElement,
					Choices: func(int, Args) []any { return []any{fakeElement{id: 42}} },
				},
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"take"}, 0)
	require.Len(t, moves, 1)
	require.Equal(t, 42, moves[0].Args["card"], "element candidates collapse to ids")
}

func TestEnumerateArgsAreIndependent(t *testing.T) {
	actions := map[string]*Action{
		"place": {
			Name: "place",
			Selections: []Selection{
				choiceSel("a", 1, 2),
				choiceSel("b", 3, 4),
			},
		},
	}

	moves := newEnumerator(1).Enumerate(actions, []string{"place"}, 0)
	require.Len(t, moves, 4)
	moves[0].Args["a"] = 99
	for _, m := range moves[1:] {
		require.NotEqual(t, 99, m.Args["a"], "each move must own its args map")
	}
}

func TestIntArgToleratesJSONNumbers(t *testing.T) {
	args := Args{"fromWire": float64(7), "native": 5}
	v, ok := IntArg(args, "fromWire")
	require.True(t, ok)
	require.Equal(t, 7, v)
	v, ok = IntArg(args, "native")
	require.True(t, ok)
	require.Equal(t, 5, v)
	_, ok = IntArg(args, "missing")
	require.False(t, ok)
}

func TestIntsArgToleratesJSONNumbers(t *testing.T) {
	args := Args{"ids": []any{float64(1), 2, float64(3)}}
	vs, ok := IntsArg(args, "ids")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, vs)
}
