package element

import (
	"github.com/samber/lo"
)

// Element is one node in the game-state tree: the game itself, a board, a
// cell, a card, a player. Ids are unique within a tree and stable for the
// life of the instance; commands reference elements by id only.
type Element struct {
	id       int
	class    string
	parent   *Element
	children []*Element
	attrs    map[string]any
	hidden   map[int]bool // seat -> hidden from that seat
	tree     *Tree
}

func (e *Element) ID() int          { return e.id }
func (e *Element) Class() string    { return e.class }
func (e *Element) Parent() *Element { return e.parent }

// Children returns the element's owned children in order. The returned
// slice is a copy; mutating it does not affect the tree.
func (e *Element) Children() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Attr returns the named attribute, or nil if unset.
func (e *Element) Attr(name string) any {
	return e.attrs[name]
}

// HiddenFrom reports whether the element is hidden from the given seat.
func (e *Element) HiddenFrom(seat int) bool {
	return e.hidden[seat]
}

// Index returns the element's position among its parent's children, or -1
// for the root.
func (e *Element) Index() int {
	if e.parent == nil {
		return -1
	}
	return lo.IndexOf(e.parent.children, e)
}

// All returns every descendant (depth first) of the given class. An empty
// class matches everything.
func (e *Element) All(class string) []*Element {
	var out []*Element
	var walk func(el *Element)
	walk = func(el *Element) {
		for _, c := range el.children {
			if class == "" || c.class == class {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// First returns the first descendant of the given class, or nil.
func (e *Element) First(class string) *Element {
	all := e.All(class)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Filter returns the descendants of class for which pred holds.
func (e *Element) Filter(class string, pred func(*Element) bool) []*Element {
	return lo.Filter(e.All(class), func(el *Element, _ int) bool {
		return pred(el)
	})
}

func (e *Element) detach() {
	if e.parent == nil {
		return
	}
	i := lo.IndexOf(e.parent.children, e)
	if i >= 0 {
		e.parent.children = append(e.parent.children[:i], e.parent.children[i+1:]...)
	}
	e.parent = nil
}

func (e *Element) attachTo(parent *Element, index int) {
	e.detach()
	e.parent = parent
	if index < 0 || index >= len(parent.children) {
		parent.children = append(parent.children, e)
		return
	}
	parent.children = append(parent.children[:index],
		append([]*Element{e}, parent.children[index:]...)...)
}
