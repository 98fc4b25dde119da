package config

import (
	"fmt"
	"strings"
)

// OptLevel is the code generation optimization level.
type OptLevel int

const (
	// OptNone disables optimization (-O0).
	OptNone OptLevel = iota
	// OptLess optimizes lightly (-O1).
	OptLess
	// OptDefault is the default level (-O2).
	OptDefault
	// OptAggressive optimizes aggressively (-O3).
	OptAggressive
)

// ParseOptLevel accepts 0-3, -O0..-O3 and the level names.
func ParseOptLevel(s string) (OptLevel, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "-o")
	switch v {
	case "0", "none":
		return OptNone, nil
	case "1", "less":
		return OptLess, nil
	case "", "2", "default":
		return OptDefault, nil
	case "3", "aggressive":
		return OptAggressive, nil
	default:
		return OptDefault, &Error{Option: "opt", Msg: fmt.Sprintf("malformed optimization level %q (expected 0-3, none, less, default or aggressive)", s)}
	}
}

func (o OptLevel) String() string {
	switch o {
	case OptNone:
		return "none"
	case OptLess:
		return "less"
	case OptDefault:
		return "default"
	case OptAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("OptLevel(%d)", int(o))
	}
}

// Flag renders the level as a code generator flag.
func (o OptLevel) Flag() string {
	return fmt.Sprintf("-O%d", int(o))
}
