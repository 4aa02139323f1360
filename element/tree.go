package element

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash"
	"golang.org/x/exp/rand"
)

// Tree owns the element hierarchy and the append-only command log. All
// mutations go through tree or element methods so that every change is
// recorded; callers must serialize access (single writer, no locking).
type Tree struct {
	root    *Element
	removed *Element
	nextID  int
	byID    map[int]*Element
	log     []Command
}

// NewTree builds an empty tree: a root element plus an off-board sink that
// removed elements are moved into. Neither is logged; both are recreated
// identically on every fresh construction, so replay stays aligned.
func NewTree() *Tree {
	t := &Tree{byID: map[int]*Element{}, nextID: 1}
	t.root = t.newElement("game", nil)
	t.removed = t.newElement("removed", nil)
	t.removed.parent = nil // sink lives outside the visible tree
	return t
}

func (t *Tree) newElement(class string, attrs map[string]any) *Element {
	e := &Element{
		id:     t.nextID,
		class:  class,
		attrs:  map[string]any{},
		hidden: map[int]bool{},
		tree:   t,
	}
	for k, v := range attrs {
		e.attrs[k] = v
	}
	t.nextID++
	t.byID[e.id] = e
	return e
}

func (t *Tree) Root() *Element    { return t.root }
func (t *Tree) Removed() *Element { return t.removed }

// Get looks an element up by id, or nil.
func (t *Tree) Get(id int) *Element { return t.byID[id] }

// Log returns a copy of the command log.
func (t *Tree) Log() []Command {
	out := make([]Command, len(t.log))
	copy(out, t.log)
	return out
}

// LogLen returns the number of commands applied so far.
func (t *Tree) LogLen() int { return len(t.log) }

func (t *Tree) append(c Command) {
	t.log = append(t.log, c)
}

// Create adds a child element under e and logs a create command.
func (e *Element) Create(class string, attrs map[string]any) *Element {
	t := e.tree
	child := t.newElement(class, attrs)
	child.parent = e
	e.children = append(e.children, child)
	t.append(Command{
		Kind:    KindCreate,
		Element: child.id,
		Parent:  e.id,
		Index:   len(e.children) - 1,
		Class:   class,
		Attrs:   copyAttrs(attrs),
	})
	return child
}

// CreateMany adds n children of the same class, logging one command for
// the whole batch. Attributes are set afterwards via Set so each write is
// individually recorded.
func (e *Element) CreateMany(n int, class string) []*Element {
	t := e.tree
	out := make([]*Element, n)
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		child := t.newElement(class, nil)
		child.parent = e
		e.children = append(e.children, child)
		out[i] = child
		ids[i] = child.id
	}
	t.append(Command{Kind: KindCreateMany, Parent: e.id, Class: class, IDs: ids})
	return out
}

// MoveTo reparents e under parent at index (-1 appends) and logs the move
// with enough prior state to invert it.
func (e *Element) MoveTo(parent *Element, index int) error {
	if e == e.tree.root || e == e.tree.removed {
		return fmt.Errorf("cannot move the root or the removal sink")
	}
	prevParent := 0
	if e.parent != nil {
		prevParent = e.parent.id
	}
	prevIndex := e.Index()
	e.attachTo(parent, index)
	e.tree.append(Command{
		Kind:       KindMove,
		Element:    e.id,
		Parent:     parent.id,
		Index:      e.Index(),
		PrevParent: prevParent,
		PrevIndex:  prevIndex,
	})
	return nil
}

// Remove moves e into the tree's removal sink. Removal is a move, not a
// distinct delete, so ids never dangle.
func (e *Element) Remove() error {
	return e.MoveTo(e.tree.removed, -1)
}

// Set writes one attribute and logs the prior value.
func (e *Element) Set(name string, value any) {
	prev := e.attrs[name]
	e.attrs[name] = value
	e.tree.append(Command{
		Kind:    KindSetAttribute,
		Element: e.id,
		Attr:    name,
		Value:   value,
		Prev:    prev,
	})
}

// SetVisibility hides or reveals e for one seat.
func (e *Element) SetVisibility(seat int, hidden bool) {
	prev := e.hidden[seat]
	e.hidden[seat] = hidden
	e.tree.append(Command{
		Kind:       KindSetVisibility,
		Element:    e.id,
		Seat:       seat,
		Hidden:     hidden,
		PrevHidden: prev,
	})
}

// Shuffle permutes e's children with the given source. The resulting order
// is recorded so replay is deterministic, but the prior order is not, which
// makes shuffle non-invertible.
func (e *Element) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(e.children), func(i, j int) {
		e.children[i], e.children[j] = e.children[j], e.children[i]
	})
	order := make([]int, len(e.children))
	for i, c := range e.children {
		order[i] = c.id
	}
	e.tree.append(Command{Kind: KindShuffle, Element: e.id, Order: order})
}

// SetOrder reorders e's children to the given id order. Unlike shuffle the
// prior order is recorded, so this is invertible.
func (e *Element) SetOrder(order []int) error {
	reordered, err := e.childrenInOrder(order)
	if err != nil {
		return err
	}
	prev := make([]int, len(e.children))
	for i, c := range e.children {
		prev[i] = c.id
	}
	e.children = reordered
	e.tree.append(Command{Kind: KindSetOrder, Element: e.id, Order: append([]int(nil), order...), PrevOrder: prev})
	return nil
}

func (e *Element) childrenInOrder(order []int) ([]*Element, error) {
	if len(order) != len(e.children) {
		return nil, fmt.Errorf("order has %d ids, element %d has %d children", len(order), e.id, len(e.children))
	}
	byID := map[int]*Element{}
	for _, c := range e.children {
		byID[c.id] = c
	}
	out := make([]*Element, len(order))
	for i, id := range order {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("element %d is not a child of %d", id, e.id)
		}
		out[i] = c
	}
	return out, nil
}

// Message records a player-facing message. No state effect.
func (t *Tree) Message(text string) {
	t.append(Command{Kind: KindMessage, Text: text})
}

// StartGame marks the beginning of the log.
func (t *Tree) StartGame(name string, seats int) {
	t.append(Command{Kind: KindStartGame, Name: name, Seats: seats})
}

// EndGame records the winner set.
func (t *Tree) EndGame(winners []int) {
	t.append(Command{Kind: KindEndGame, Winners: append([]int(nil), winners...)})
}

// CheckUndo reports whether the last n commands can all be undone,
// returning ErrNotInvertible naming the first blocking command.
func (t *Tree) CheckUndo(n int) error {
	if n < 0 || n > len(t.log) {
		return fmt.Errorf("cannot undo %d of %d commands", n, len(t.log))
	}
	for i := len(t.log) - n; i < len(t.log); i++ {
		if !t.log[i].Invertible() {
			return fmt.Errorf("%w: %s at log index %d", ErrNotInvertible, t.log[i].Kind, i)
		}
	}
	return nil
}

// Undo pops the last n commands, applying each one's inverse. If any of the
// last n commands is non-invertible it returns false and leaves the tree
// untouched: the caller must recover by recloning from a snapshot. There is
// never a partial undo.
func (t *Tree) Undo(n int) bool {
	if t.CheckUndo(n) != nil {
		return false
	}
	for i := 0; i < n; i++ {
		c := t.log[len(t.log)-1]
		t.log = t.log[:len(t.log)-1]
		t.invert(c)
	}
	return true
}

func (t *Tree) invert(c Command) {
	switch c.Kind {
	case KindMove:
		e := t.byID[c.Element]
		if c.PrevParent == 0 {
			e.detach()
			return
		}
		e.attachTo(t.byID[c.PrevParent], c.PrevIndex)
	case KindSetAttribute:
		e := t.byID[c.Element]
		if c.Prev == nil {
			delete(e.attrs, c.Attr)
			return
		}
		e.attrs[c.Attr] = c.Prev
	case KindSetVisibility:
		t.byID[c.Element].hidden[c.Seat] = c.PrevHidden
	case KindSetOrder:
		e := t.byID[c.Element]
		reordered, err := e.childrenInOrder(c.PrevOrder)
		if err == nil {
			e.children = reordered
		}
	case KindStartGame, KindEndGame:
		// No tree effect to revert.
	default:
		// Invertible() gates what reaches here.
		panic(fmt.Sprintf("invert: unhandled command kind %q", c.Kind))
	}
}

// Replay applies a recorded command sequence to a freshly constructed tree,
// rebuilding both state and log. The switch is exhaustive over Kind; an
// unknown kind is an error, never a silent skip.
func (t *Tree) Replay(commands []Command) error {
	for _, c := range commands {
		if err := t.apply(c); err != nil {
			return fmt.Errorf("replay command %d (%s): %w", len(t.log), c.Kind, err)
		}
		t.append(c)
	}
	return nil
}

func (t *Tree) apply(c Command) error {
	switch c.Kind {
	case KindCreate:
		parent, ok := t.byID[c.Parent]
		if !ok {
			return fmt.Errorf("no parent %d", c.Parent)
		}
		e := t.newElement(c.Class, c.Attrs)
		if e.id != c.Element {
			// Replay onto a non-fresh tree would desynchronize ids.
			delete(t.byID, e.id)
			t.byID[c.Element] = e
			e.id = c.Element
			if c.Element >= t.nextID {
				t.nextID = c.Element + 1
			}
		}
		e.parent = parent
		parent.children = append(parent.children, e)
	case KindCreateMany:
		parent, ok := t.byID[c.Parent]
		if !ok {
			return fmt.Errorf("no parent %d", c.Parent)
		}
		for _, id := range c.IDs {
			e := t.newElement(c.Class, nil)
			if e.id != id {
				delete(t.byID, e.id)
				t.byID[id] = e
				e.id = id
				if id >= t.nextID {
					t.nextID = id + 1
				}
			}
			e.parent = parent
			parent.children = append(parent.children, e)
		}
	case KindMove:
		e, ok := t.byID[c.Element]
		if !ok {
			return fmt.Errorf("no element %d", c.Element)
		}
		parent, ok := t.byID[c.Parent]
		if !ok {
			return fmt.Errorf("no parent %d", c.Parent)
		}
		e.attachTo(parent, c.Index)
	case KindSetAttribute:
		e, ok := t.byID[c.Element]
		if !ok {
			return fmt.Errorf("no element %d", c.Element)
		}
		e.attrs[c.Attr] = c.Value
	case KindSetVisibility:
		e, ok := t.byID[c.Element]
		if !ok {
			return fmt.Errorf("no element %d", c.Element)
		}
		e.hidden[c.Seat] = c.Hidden
	case KindShuffle, KindSetOrder:
		e, ok := t.byID[c.Element]
		if !ok {
			return fmt.Errorf("no element %d", c.Element)
		}
		reordered, err := e.childrenInOrder(c.Order)
		if err != nil {
			return err
		}
		e.children = reordered
	case KindMessage, KindStartGame, KindEndGame:
		// No tree effect.
	default:
		return fmt.Errorf("unhandled command kind %q", c.Kind)
	}
	return nil
}

// Digest hashes the observable tree state: ids, classes, structure,
// attribute values and visibility. Two trees with equal digests are
// observationally equal for engine purposes.
func (t *Tree) Digest() uint64 {
	h := xxhash.New()
	var walk func(e *Element)
	walk = func(e *Element) {
		fmt.Fprintf(h, "%d/%s/", e.id, e.class)
		keys := make([]string, 0, len(e.attrs))
		for k := range e.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "%s=%v;", k, e.attrs[k])
		}
		seats := make([]int, 0, len(e.hidden))
		for s, hid := range e.hidden {
			if hid {
				seats = append(seats, s)
			}
		}
		sort.Ints(seats)
		fmt.Fprintf(h, "hidden=%v|", seats)
		for _, c := range e.children {
			walk(c)
		}
		fmt.Fprint(h, ".")
	}
	walk(t.root)
	walk(t.removed)
	return h.Sum64()
}

func copyAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
