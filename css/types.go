package css

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"extcss/selector"
)

// Declarations maps property names to values. Values are stored without
// "!important", everything engine applies is important anyway.
type Declarations map[string]string

// Synthetic properties understood by the engine.
const (
	PropRemove = "remove"
	PropDebug  = "debug"
)

// IsRemove reports whether matched elements must be removed instead of
// styled.
func (d Declarations) IsRemove() bool {
	return strings.EqualFold(d[PropRemove], "true")
}

// Clone returns independent copy.
func (d Declarations) Clone() Declarations {
	return maps.Clone(d)
}

// Names returns property names sorted alphabetically.
func (d Declarations) Names() []string {
	return slices.Sorted(maps.Keys(d))
}

// DebugMode tells which rules collect timing statistics.
type DebugMode int

const (
	DebugNone   DebugMode = iota // only rules with their own debug flag
	DebugGlobal                  // every rule
)

func (m DebugMode) String() string {
	switch m {
	case DebugGlobal:
		return "global"
	default:
		return "none"
	}
}

// Rule is a single compiled selector with declarations applied to matched
// elements.
type Rule struct {
	Selector *selector.Selector
	Style    Declarations
	Debug    bool
}

// Stylesheet represents a parsed extended stylesheet.
type Stylesheet struct {
	Rules    []Rule    // Rules in source order, one per selector alternative
	Debug    DebugMode // Set by "debug: global" in any rule
	Warnings []string  // Dropped selectors and blocks
}

// DebugEnabled reports whether timing statistics are collected for rule.
func (s *Stylesheet) DebugEnabled(r *Rule) bool {
	return s.Debug == DebugGlobal || r.Debug
}

// RulesBySelector returns all rules with the given selector text.
func (s *Stylesheet) RulesBySelector(text string) []Rule {
	var matches []Rule
	for _, r := range s.Rules {
		if r.Selector.String() == text {
			matches = append(matches, r)
		}
	}
	return matches
}

// WriteTo writes the stylesheet to w in source order, implementing io.WriterTo.
// Property order within a rule is sorted alphabetically for deterministic output.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i := range s.Rules {
		n, err := writeRule(w, &s.Rules[i], s.Debug == DebugGlobal && i == 0)
		total += int64(n)
		if err != nil {
			return total, err
		}

		// Add blank line between rules (except after last)
		if i < len(s.Rules)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// String returns the text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

// writeRule writes a single rule to w.
func writeRule(w io.Writer, rule *Rule, global bool) (int, error) {
	var total int
	n, err := fmt.Fprintf(w, "%s {\n", rule.Selector.String())
	total += n
	if err != nil {
		return total, err
	}

	props := rule.Style.Clone()
	if props == nil {
		props = Declarations{}
	}
	switch {
	case global:
		props[PropDebug] = "global"
	case rule.Debug:
		props[PropDebug] = "true"
	}
	for _, name := range props.Names() {
		n, err = fmt.Fprintf(w, "  %s: %s;\n", name, props[name])
		total += n
		if err != nil {
			return total, err
		}
	}

	n, err = fmt.Fprint(w, "}\n")
	total += n
	return total, err
}
