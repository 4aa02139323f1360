// Package searcher implements the MCTS bot: UCT-guided search over one
// live cloned game instance that is advanced and rewound through the
// command log's undo mechanism instead of re-cloning per node.
package searcher

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/exp/rand"
	"lukechampine.com/frand"

	"github.com/Shufflewick/boardsmith/action"
	"github.com/Shufflewick/boardsmith/boardgame"
)

var (
	// ErrNotBotTurn is returned when Play is called while the flow is not
	// awaiting the bot's seat: a caller-contract violation.
	ErrNotBotTurn = errors.New("not the bot's turn")

	// ErrNoMoves means enumeration produced nothing although the flow
	// reported available actions: the two subsystems disagree, which is a
	// consistency bug, never a playable situation.
	ErrNoMoves = errors.New("no available moves")
)

// tableConfidence is how many samples a transposition entry needs before
// its running average is returned instead of evaluating fresh.
const tableConfidence = 3

type tableEntry struct {
	sum   float64
	count int
}

// MCTSBot chooses moves for one seat of a live game. The caller's game is
// read once per Play (for cloning) and never mutated. One bot instance
// must not be driven concurrently.
type MCTSBot struct {
	game    *boardgame.Game
	seat    int
	config  BotConfig
	ai      AIConfig
	metrics *Metrics

	rng *rand.Rand
	en  *action.Enumerator

	// Search-scoped state, cleared before Play returns.
	search        *boardgame.Game
	snapshot      *boardgame.Snapshot
	table         map[uint64]*tableEntry
	recloneFailed bool
}

// New builds a bot for the given seat.
func New(g *boardgame.Game, seat int, cfg BotConfig, ai AIConfig) *MCTSBot {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(seedValue(cfg.Seed)))
	return &MCTSBot{
		game:    g,
		seat:    seat,
		config:  cfg,
		ai:      ai,
		metrics: &Metrics{},
		rng:     rng,
		en:      &action.Enumerator{Limits: cfg.Limits, RNG: rng},
	}
}

// Metrics exposes the bot's counters.
func (b *MCTSBot) Metrics() *Metrics { return b.metrics }

// Play selects one move for the bot's seat. It either returns a concrete
// move or an error; there is no partial result. The caller's game is
// never touched.
func (b *MCTSBot) Play(ctx context.Context) (action.Move, error) {
	if !b.game.MayAct(b.seat) {
		return action.Move{}, fmt.Errorf("%w: seat %d", ErrNotBotTurn, b.seat)
	}
	moves := b.game.EnumerateMoves(b.en, b.seat)
	b.flushSampled()
	if len(moves) == 0 {
		return action.Move{}, fmt.Errorf("%w for seat %d", ErrNoMoves, b.seat)
	}
	if len(moves) == 1 {
		// Forced move: no search iterations wasted.
		b.metrics.ShortCircuits.Add(1)
		return moves[0], nil
	}

	if b.config.Parallel > 1 {
		return b.playVoted(ctx)
	}
	return b.searchOnce(ctx)
}

// playVoted runs Parallel independent searches sequentially and combines
// them by majority vote over identical-by-serialization moves, falling
// back to one more search if voting yields no winner.
func (b *MCTSBot) playVoted(ctx context.Context) (action.Move, error) {
	counts := map[string]int{}
	byKey := map[string]action.Move{}
	var order []string
	var lastErr error
	for i := 0; i < b.config.Parallel; i++ {
		mv, err := b.searchOnce(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		key := moveKey(mv)
		if counts[key] == 0 {
			order = append(order, key)
			byKey[key] = mv
		}
		counts[key]++
	}
	bestKey := ""
	bestCount := 0
	for _, key := range order {
		if counts[key] > bestCount {
			bestCount = counts[key]
			bestKey = key
		}
	}
	if bestKey == "" {
		if lastErr != nil {
			return action.Move{}, lastErr
		}
		return b.searchOnce(ctx)
	}
	return byKey[bestKey], nil
}

// searchOnce runs one full search over a private clone and returns the
// most-visited root child's move.
func (b *MCTSBot) searchOnce(ctx context.Context) (mv action.Move, err error) {
	defer b.clearSearchState()

	b.snapshot = b.game.Snapshot()
	b.search, err = boardgame.Restore(b.game.Definition(), b.snapshot)
	if err != nil {
		return action.Move{}, fmt.Errorf("cloning game for search: %w", err)
	}
	b.table = map[uint64]*tableEntry{}
	b.recloneFailed = false

	rootMoves := b.search.EnumerateMoves(b.en, b.seat)
	b.flushSampled()
	if len(rootMoves) == 0 {
		return action.Move{}, fmt.Errorf("%w at search root", ErrNoMoves)
	}
	fallback := append([]action.Move(nil), rootMoves...)

	root := &node{
		untried: rootMoves,
		cursor:  b.search.Cursor(),
		player:  b.seat,
	}
	b.applyThreatResponse(root)

	deadline := time.Now().Add(b.config.Timeout)
	for i := 0; i < b.config.Iterations; i++ {
		if b.recloneFailed {
			break
		}
		// The timeout is checked once per iteration; an iteration already
		// underway runs to completion, bounding overrun to one iteration.
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return action.Move{}, ctx.Err()
		default:
		}
		b.iterate(root)
		b.metrics.Iterations.Add(1)
		b.flushSampled()
		if b.config.Async {
			runtime.Gosched()
		}
	}

	if best := root.robustChild(); best != nil {
		return *best.move, nil
	}
	// Every expansion failed; uniformly random from the enumerated set.
	log.Warn().Int("seat", b.seat).Msg("search produced no children, picking randomly")
	return fallback[b.rng.Intn(len(fallback))], nil
}

// iterate runs one SELECT / EXPAND / PLAYOUT / BACKPROPAGATE pass. The
// undo discipline guarantees the search game's state at the end of the
// pass equals its state at the start.
func (b *MCTSBot) iterate(root *node) {
	sg := b.search

	// SELECT: descend through fully expanded nodes, applying each chosen
	// child's move so the live state tracks the node being visited.
	cur := root
	for len(cur.untried) == 0 && len(cur.children) > 0 {
		child := cur.uctBest()
		if err := sg.Continue(child.move.Action, child.move.Args, cur.player); err != nil {
			// The engine disagrees with a move we enumerated earlier; the
			// iteration is abandoned and the state recovered.
			log.Debug().Err(err).Msg("select descent rejected, recovering")
			b.recover(root)
			return
		}
		// Refresh so the cursor always matches the current timeline.
		child.cursor = sg.Cursor()
		cur = child
	}

	// EXPAND: try one untried move and materialize the child.
	expanded := cur
	if len(cur.untried) > 0 && !sg.Complete() {
		i := 0
		if cur.prioritized == 0 {
			i = b.rng.Intn(len(cur.untried))
		}
		mv := cur.popUntried(i)
		if err := sg.Continue(mv.Action, mv.Args, cur.player); err != nil {
			log.Debug().Err(err).Str("action", mv.Action).Msg("expansion rejected, recovering")
			b.recover(root)
			return
		}
		player, _ := sg.ActingSeat()
		child := &node{
			parent: cur,
			move:   &mv,
			cursor: sg.Cursor(),
			player: player,
		}
		if !sg.Complete() {
			child.untried = sg.EnumerateMoves(b.en, player)
		}
		cur.children = append(cur.children, child)
		expanded = child
	}

	// PLAYOUT: uniformly random legal moves to depth or terminal. A move
	// application failure truncates silently: random playouts over the
	// sampled enumeration can hit a move invalidated by intervening state.
	for depth := 0; depth < b.config.PlayoutDepth && !sg.Complete(); depth++ {
		seat, ok := sg.ActingSeat()
		if !ok {
			break
		}
		moves := sg.EnumerateMoves(b.en, seat)
		if len(moves) == 0 {
			break
		}
		mv := moves[b.rng.Intn(len(moves))]
		if err := sg.Continue(mv.Action, mv.Args, seat); err != nil {
			break
		}
	}
	if sg.Complete() {
		b.metrics.FullPlayouts.Add(1)
	}

	result := b.evaluate(sg)

	// BACKPROPAGATE: walk up from the expanded node, flipping the value
	// whenever the parent's mover was not the bot, undoing commands to
	// match each level. An undo that would cross a non-invertible command
	// degrades to a reclone plus statistics-only updates; the search game
	// is never left partially rewound.
	statsOnly := false
	if !sg.Rewind(expanded.cursor) {
		b.reclone()
		statsOnly = true
	}
	for n := expanded; n != nil; n = n.parent {
		n.visits++
		v := result
		if n.parent != nil && n.parent.player != b.seat {
			v = 1 - result
		}
		n.value += v
		if n.parent != nil && !statsOnly {
			if !sg.Rewind(n.parent.cursor) {
				b.reclone()
				statsOnly = true
			}
		}
	}
}

// recover rewinds the search game to the root state, recloning if the
// rewind crosses a non-invertible command.
func (b *MCTSBot) recover(root *node) {
	if !b.search.Rewind(root.cursor) {
		b.reclone()
	}
}

// reclone rebuilds the search game from the captured root snapshot. It is
// the expensive fallback for undo failures; a reclone failure ends the
// search (statistics gathered so far still produce a move).
func (b *MCTSBot) reclone() {
	b.metrics.Reclones.Add(1)
	sg, err := boardgame.Restore(b.game.Definition(), b.snapshot)
	if err != nil {
		log.Warn().Err(err).Msg("reclone from root snapshot failed, ending search")
		b.recloneFailed = true
		return
	}
	b.search = sg
}

// evaluate scores the search game's current state for the bot: 1/0/0.5
// at terminal states, otherwise the objectives heuristic mapped into
// [0.1, 0.9] (the extremes stay reserved for true terminal results),
// mediated by the transposition table.
func (b *MCTSBot) evaluate(sg *boardgame.Game) float64 {
	if sg.Complete() {
		winners := sg.Winners()
		switch {
		case len(winners) == 0:
			return 0.5
		case lo.Contains(winners, b.seat):
			if len(winners) > 1 {
				return 0.5
			}
			return 1
		default:
			return 0
		}
	}

	key := b.positionKey(sg)
	if e := b.table[key]; e != nil && e.count >= tableConfidence {
		b.metrics.TableHits.Add(1)
		return e.sum / float64(e.count)
	}
	v := b.heuristic(sg)
	e := b.table[key]
	if e == nil {
		e = &tableEntry{}
		b.table[key] = e
	}
	e.sum += v
	e.count++
	return v
}

func (b *MCTSBot) heuristic(sg *boardgame.Game) float64 {
	if b.ai.Objectives == nil {
		return 0.5
	}
	objectives := b.ai.Objectives(sg, b.seat)
	if len(objectives) == 0 {
		return 0.5
	}
	var lowest, highest, score float64
	for _, o := range objectives {
		if o.Weight >= 0 {
			highest += o.Weight
		} else {
			lowest += o.Weight
		}
		if o.Check() {
			score += o.Weight
		}
	}
	if highest == lowest {
		return 0.5
	}
	frac := (score - lowest) / (highest - lowest)
	return 0.1 + 0.8*frac
}

// positionKey hashes the flow position together with a structural digest
// of the element tree, so two different board states reaching the same
// flow label do not share a cached evaluation.
func (b *MCTSBot) positionKey(sg *boardgame.Game) uint64 {
	pos, err := json.Marshal(sg.FlowState().Position)
	if err != nil {
		pos = nil
	}
	h := xxhash.New()
	_, _ = h.Write(pos)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sg.Tree().Digest())
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// applyThreatResponse restricts or prioritizes the root's untried moves
// per the game's threat heuristic.
func (b *MCTSBot) applyThreatResponse(root *node) {
	if b.ai.ThreatResponse == nil {
		return
	}
	response, urgent := b.ai.ThreatResponse(b.search, b.seat, root.untried)
	if len(response) == 0 {
		return
	}
	if urgent {
		// Must-block situation: only the response moves are candidates.
		root.untried = response
		return
	}
	// Prioritize: response moves expand first, the rest stay reachable.
	rest := lo.Filter(root.untried, func(mv action.Move, _ int) bool {
		return !lo.ContainsBy(response, func(r action.Move) bool {
			return moveKey(r) == moveKey(mv)
		})
	})
	root.untried = append(append([]action.Move(nil), response...), rest...)
	root.prioritized = len(response)
}

func (b *MCTSBot) clearSearchState() {
	b.search = nil
	b.snapshot = nil
	b.table = nil
	b.recloneFailed = false
}

func (b *MCTSBot) flushSampled() {
	if b.en.Sampled > 0 {
		b.metrics.SampledEnumerations.Add(int64(b.en.Sampled))
		b.en.Sampled = 0
	}
}

// moveKey serializes a move for identity comparison; JSON object keys are
// emitted sorted, so equal moves serialize equally.
func moveKey(mv action.Move) string {
	data, err := json.Marshal(mv)
	if err != nil {
		return fmt.Sprintf("%v", mv)
	}
	return string(data)
}

func seedValue(seed string) uint64 {
	if seed == "" {
		var buf [8]byte
		_, _ = frand.Read(buf[:])
		return binary.LittleEndian.Uint64(buf[:])
	}
	return xxhash.Sum64String(seed)
}
