package action

// IntArg reads an integer argument, tolerating the float64 that JSON
// decoding produces for numbers.
func IntArg(args Args, name string) (int, bool) {
	switch v := args[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// IntsArg reads a multi-select argument as a list of integers.
func IntsArg(args Args, name string) ([]int, bool) {
	raw, ok := args[name].([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			out = append(out, int(n))
		default:
			return nil, false
		}
	}
	return out, true
}
