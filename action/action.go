// Package action holds the declarative action/selection grammar: each
// named action is an ordered list of typed input slots whose filters may
// read the confirmed values of earlier slots, plus an effect function
// that mutates game state through command-emitting element methods.
package action

// SelectionType enumerates the input slot kinds.
type SelectionType string

const (
	SelectElement  SelectionType = "element"
	SelectElements SelectionType = "elements"
	SelectChoice   SelectionType = "choice"
	SelectNumber   SelectionType = "number"
	SelectText     SelectionType = "text"
)

// Args carries the confirmed selection values of one action invocation,
// keyed by selection name. Element-typed values are element ids, never
// live objects.
type Args map[string]any

// Selection is one typed input slot. Choices produces the candidate set
// given the values chosen so far; Filter is a pure predicate over a
// candidate and those same values. Selections are evaluated left to
// right: a later selection's closures may read earlier values, never the
// reverse.
type Selection struct {
	Name      string
	Type      SelectionType
	Optional  bool
	Min, Max  int // multi-select size bounds; 0 min defaults to 1
	DependsOn string
	Choices   func(seat int, args Args) []any
	Filter    func(candidate any, args Args, seat int) bool
}

// Action is a named, player-invocable operation.
type Action struct {
	Name       string
	Selections []Selection
	Condition  func(seat int) bool
	Effect     func(args Args, seat int) error
}

// Move is the serialized form of one concrete legal move, stable across
// clone and restore boundaries.
type Move struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args,omitempty"`
}

// identifiable lets selection candidates that are live elements collapse
// to their stable id when stored into move args.
type identifiable interface{ ID() int }

func candidateValue(c any) any {
	if el, ok := c.(identifiable); ok {
		return el.ID()
	}
	return c
}

// ValidChoices evaluates a selection's candidate set under the given
// partial args, applying its filter.
func ValidChoices(sel Selection, seat int, args Args) []any {
	if sel.Choices == nil {
		return nil
	}
	candidates := sel.Choices(seat, args)
	if sel.Filter == nil {
		return candidates
	}
	out := make([]any, 0, len(candidates))
	for _, c := range candidates {
		if sel.Filter(c, args, seat) {
			out = append(out, c)
		}
	}
	return out
}
