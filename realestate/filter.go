package realestate

import (
	"fmt"
	"strings"
)

// Filter selects which subset of listings the endpoint returns.
type Filter string

const (
	ShowAll  Filter = "all"
	ShowRent Filter = "rent"
	ShowBuy  Filter = "buy"
)

// QueryValue is the value sent as ?filter=. ShowAll sends no parameter.
func (f Filter) QueryValue() (string, bool) {
	switch f {
	case ShowRent, ShowBuy:
		return string(f), true
	default:
		return "", false
	}
}

func (f Filter) String() string {
	if f == "" {
		return string(ShowAll)
	}
	return string(f)
}

// ParseFilter accepts "", "all", "rent" and "buy" (case-insensitive).
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ShowAll, nil
	case "rent":
		return ShowRent, nil
	case "buy":
		return ShowBuy, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}
