package action

import (
	"encoding/binary"

	"golang.org/x/exp/rand"
	"lukechampine.com/frand"
)

// Defaults for the enumeration caps. The caps bound search branching
// factor: when a choice set exceeds them the enumerator samples uniformly
// without replacement, trading completeness for tractable search time.
const (
	DefaultMaxChoices      = 20
	DefaultMaxCombinations = 50
)

// EnumerationLimits bounds how many concrete choices one selection may
// contribute. Zero values take the defaults.
type EnumerationLimits struct {
	MaxChoices      int
	MaxCombinations int
}

func (l EnumerationLimits) withDefaults() EnumerationLimits {
	if l.MaxChoices <= 0 {
		l.MaxChoices = DefaultMaxChoices
	}
	if l.MaxCombinations <= 0 {
		l.MaxCombinations = DefaultMaxCombinations
	}
	return l
}

// Enumerator expands declarative actions into concrete move lists.
// Sampled counts how many selection expansions hit a cap since the last
// reset, so callers can observe that the move list may be incomplete.
// Leave RNG nil to seed one from system entropy; set it for
// reproducible sampling.
type Enumerator struct {
	Limits  EnumerationLimits
	RNG     *rand.Rand
	Sampled int
}

func (en *Enumerator) rng() *rand.Rand {
	if en.RNG == nil {
		var buf [8]byte
		_, _ = frand.Read(buf[:])
		en.RNG = rand.New(rand.NewSource(binary.LittleEndian.Uint64(buf[:])))
	}
	return en.RNG
}

// Enumerate produces every playable {action, args} pair for the named
// actions, expanding each action's selection list left to right and
// carrying confirmed values into later selections' filters. Actions with
// a required text or number selection have no finite domain and are
// excluded; optional ones are skipped. An action that dead-ends at any
// selection contributes no moves, which is not an error.
func (en *Enumerator) Enumerate(actions map[string]*Action, names []string, seat int) []Move {
	limits := en.Limits.withDefaults()
	var moves []Move
	for _, name := range names {
		a := actions[name]
		if a == nil {
			continue
		}
		if a.Condition != nil && !a.Condition(seat) {
			continue
		}
		if hasUnboundedSelection(a) {
			continue
		}
		for _, args := range en.expand(a.Selections, 0, Args{}, seat, limits) {
			moves = append(moves, Move{Action: name, Args: args})
		}
	}
	return moves
}

func hasUnboundedSelection(a *Action) bool {
	for _, sel := range a.Selections {
		if (sel.Type == SelectText || sel.Type == SelectNumber) && !sel.Optional {
			return true
		}
	}
	return false
}

func (en *Enumerator) expand(sels []Selection, i int, args Args, seat int, limits EnumerationLimits) []Args {
	if i == len(sels) {
		return []Args{cloneArgs(args)}
	}
	sel := sels[i]

	// Optional unbounded slots enumerate as "skip".
	if sel.Type == SelectText || sel.Type == SelectNumber {
		return en.expand(sels, i+1, args, seat, limits)
	}

	choices := ValidChoices(sel, seat, args)
	if len(choices) == 0 {
		if sel.Optional {
			return en.expand(sels, i+1, args, seat, limits)
		}
		return nil
	}

	var out []Args
	if sel.Type == SelectElements {
		for _, combo := range en.combinations(choices, sel, limits) {
			args[sel.Name] = combo
			out = append(out, en.expand(sels, i+1, args, seat, limits)...)
		}
	} else {
		for _, c := range en.sampleChoices(choices, limits) {
			args[sel.Name] = candidateValue(c)
			out = append(out, en.expand(sels, i+1, args, seat, limits)...)
		}
	}
	delete(args, sel.Name)
	return out
}

func (en *Enumerator) sampleChoices(choices []any, limits EnumerationLimits) []any {
	if len(choices) <= limits.MaxChoices {
		return choices
	}
	en.Sampled++
	out := make([]any, 0, limits.MaxChoices)
	for _, i := range en.rng().Perm(len(choices))[:limits.MaxChoices] {
		out = append(out, choices[i])
	}
	return out
}

// combinations yields multi-select value sets sized between the
// selection's min and max, sampling random subsets when the full
// cross-product would exceed the cap.
func (en *Enumerator) combinations(choices []any, sel Selection, limits EnumerationLimits) [][]any {
	min := sel.Min
	if min <= 0 {
		min = 1
	}
	max := sel.Max
	if max <= 0 || max > len(choices) {
		max = len(choices)
	}
	if min > len(choices) {
		return nil
	}

	total := 0
	for k := min; k <= max; k++ {
		total += binomial(len(choices), k)
		if total > limits.MaxCombinations {
			break
		}
	}
	if total > limits.MaxCombinations {
		return en.sampleCombinations(choices, min, max, limits.MaxCombinations)
	}

	var out [][]any
	for k := min; k <= max; k++ {
		out = append(out, kSubsets(choices, k)...)
	}
	return out
}

func (en *Enumerator) sampleCombinations(choices []any, min, max, want int) [][]any {
	en.Sampled++
	seen := map[string]bool{}
	var out [][]any
	// Bounded retry count so a tiny space of unique subsets cannot spin.
	rng := en.rng()
	for tries := 0; tries < want*10 && len(out) < want; tries++ {
		k := min + rng.Intn(max-min+1)
		idx := rng.Perm(len(choices))[:k]
		key := comboKey(idx)
		if seen[key] {
			continue
		}
		seen[key] = true
		combo := make([]any, k)
		for j, i := range idx {
			combo[j] = candidateValue(choices[i])
		}
		out = append(out, combo)
	}
	return out
}

func kSubsets(choices []any, k int) [][]any {
	var out [][]any
	idx := make([]int, k)
	var build func(start, depth int)
	build = func(start, depth int) {
		if depth == k {
			combo := make([]any, k)
			for j, i := range idx {
				combo[j] = candidateValue(choices[i])
			}
			out = append(out, combo)
			return
		}
		for i := start; i <= len(choices)-(k-depth); i++ {
			idx[depth] = i
			build(i+1, depth+1)
		}
	}
	build(0, 0)
	return out
}

func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	out := 1
	for i := 0; i < k; i++ {
		out = out * (n - i) / (i + 1)
		if out < 0 || out > 1<<30 {
			return 1 << 30
		}
	}
	return out
}

func comboKey(idx []int) string {
	sorted := append([]int(nil), idx...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	key := make([]byte, 0, len(sorted)*3)
	for _, v := range sorted {
		key = append(key, byte(v), byte(v>>8), ',')
	}
	return string(key)
}

func cloneArgs(args Args) Args {
	out := make(Args, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
