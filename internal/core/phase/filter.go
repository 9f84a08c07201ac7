package phase

import (
	"fmt"
	"strings"
)

// Filter selects phases either by exact name or by category prefix.
type Filter struct {
	raw    string
	phases []Phase
}

// ParseFilter accepts an exact phase ("PARTS_ORDERED") or a category ("PARTS").
// An exact phase wins when a value is both.
func ParseFilter(s string) (Filter, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return Filter{}, fmt.Errorf("empty phase filter")
	}
	if p, ok := Parse(raw); ok {
		return Filter{raw: raw, phases: []Phase{p}}, nil
	}
	if IsCategory(raw) {
		return Filter{raw: raw, phases: InCategory(Category(raw))}, nil
	}
	return Filter{}, fmt.Errorf("%q is neither a phase nor a category", s)
}

// ExactFilter returns a filter matching only p.
func ExactFilter(p Phase) Filter {
	return Filter{raw: string(p), phases: []Phase{p}}
}

// Phases returns the phases the filter matches.
func (f Filter) Phases() []Phase {
	out := make([]Phase, len(f.phases))
	copy(out, f.phases)
	return out
}

// Matches reports whether p is selected by the filter.
func (f Filter) Matches(p Phase) bool {
	for _, q := range f.phases {
		if q == p {
			return true
		}
	}
	return false
}

func (f Filter) String() string { return f.raw }
