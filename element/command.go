package element

import (
	"errors"
	"fmt"
)

// ErrNotInvertible is reported when an undo would have to cross a command
// whose prior state was not recorded (shuffle, create, message).
var ErrNotInvertible = errors.New("command is not invertible")

// Kind discriminates the command union. Every mutation of the tree is
// recorded as exactly one command; the log prefix plus the game's static
// rule code is sufficient to reconstruct tree state.
type Kind string

const (
	KindCreate        Kind = "create"
	KindCreateMany    Kind = "createMany"
	KindMove          Kind = "move"
	KindSetAttribute  Kind = "setAttribute"
	KindSetVisibility Kind = "setVisibility"
	KindShuffle       Kind = "shuffle"
	KindMessage       Kind = "message"
	KindStartGame     Kind = "startGame"
	KindEndGame       Kind = "endGame"
	KindSetOrder      Kind = "setOrder"
)

// Command is one immutable, JSON-serializable mutation record. It is a
// tagged union over Kind; only the fields relevant to a kind are set.
// Invertible kinds carry the prior state (Prev*) so their inverse can be
// applied without any other context.
type Command struct {
	Kind    Kind   `json:"kind"`
	Element int    `json:"element,omitempty"`
	Parent  int    `json:"parent,omitempty"`
	Index   int    `json:"index"`
	Class   string `json:"class,omitempty"`

	Attrs map[string]any `json:"attrs,omitempty"`
	IDs   []int          `json:"ids,omitempty"`

	Attr  string `json:"attr,omitempty"`
	Value any    `json:"value,omitempty"`
	Prev  any    `json:"prev,omitempty"`

	PrevParent int `json:"prevParent,omitempty"`
	PrevIndex  int `json:"prevIndex"`

	Seat       int  `json:"seat"`
	Hidden     bool `json:"hidden,omitempty"`
	PrevHidden bool `json:"prevHidden,omitempty"`

	Order     []int `json:"order,omitempty"`
	PrevOrder []int `json:"prevOrder,omitempty"`

	Text    string `json:"text,omitempty"`
	Name    string `json:"name,omitempty"`
	Seats   int    `json:"seats,omitempty"`
	Winners []int  `json:"winners,omitempty"`
}

// Invertible reports whether the command's inverse can be applied from the
// record alone. Shuffle does not record the prior order, create does not
// record how to cheaply restore the prior tree shape, and message has no
// state effect to invert, so all three force a full-state recovery.
func (c Command) Invertible() bool {
	switch c.Kind {
	case KindMove, KindSetAttribute, KindSetVisibility, KindSetOrder:
		return true
	case KindStartGame, KindEndGame:
		// Log markers with no tree effect; their inverse is a no-op.
		return true
	case KindCreate, KindCreateMany, KindShuffle, KindMessage:
		return false
	default:
		return false
	}
}

func (c Command) String() string {
	return fmt.Sprintf("<%s el=%d>", c.Kind, c.Element)
}
