package selector

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"extcss/dom"
)

// StrategyKind tells how selector is evaluated.
type StrategyKind int

const (
	// NativeDelegate passes selector to cascadia as is.
	NativeDelegate StrategyKind = iota
	// CustomWhole evaluates every token with compiled matchers.
	CustomWhole
	// SplitPrefix queries plain prefix natively and matches the extended
	// last compound relative to each found element.
	SplitPrefix
	// TerminalPseudo evaluates base selector and maps result with the
	// trailing terminal pseudo-class.
	TerminalPseudo
)

func (k StrategyKind) String() string {
	switch k {
	case NativeDelegate:
		return "native"
	case CustomWhole:
		return "custom"
	case SplitPrefix:
		return "split"
	case TerminalPseudo:
		return "terminal"
	default:
		return "StrategyKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Strategy is a tagged variant, only fields of the selected Kind are set.
type Strategy struct {
	Kind StrategyKind

	// NativeDelegate
	native cascadia.SelectorGroup

	// CustomWhole
	groups []*compiledGroup

	// SplitPrefix
	prefix   cascadia.SelectorGroup
	relation string
	suffix   *compiledGroup

	// TerminalPseudo
	pseudo string
	base   *Selector
	step   terminalStep
}

// splitStrategy checks if selector consists of native prefix and extended
// last compound.
func (c *compiler) splitStrategy(groups, reordered []Group) (Strategy, bool) {
	if len(groups) != 1 {
		return Strategy{}, false
	}
	g := groups[0]
	r := -1
	for i := len(g) - 1; i >= 0; i-- {
		if g[i].Type == TokenRelation {
			r = i
			break
		}
	}
	if r <= 0 || r == len(g)-1 {
		return Strategy{}, false
	}

	prev := TokenRelation
	for _, t := range g[:r] {
		switch {
		case t.Type == TokenRelation:
			if prev == TokenRelation {
				return Strategy{}, false
			}
		case t.isSimple(), t.Type == TokenChild:
		default:
			return Strategy{}, false
		}
		prev = t.Type
	}

	extended := false
	for _, t := range g[r+1:] {
		switch t.Type {
		case TokenChild:
			return Strategy{}, false
		case TokenPseudo:
			if c.registry().isPositional(t.Name()) {
				return Strategy{}, false
			}
			extended = true
		}
	}
	if !extended {
		return Strategy{}, false
	}

	prefix, err := cascadia.ParseGroup(g[:r].String())
	if err != nil {
		return Strategy{}, false
	}
	suffix, err := c.compileGroup(reordered[0][r+1:], false)
	if err != nil {
		return Strategy{}, false
	}
	return Strategy{Kind: SplitPrefix, prefix: prefix, relation: g[r].Value, suffix: suffix}, true
}

// terminalStrategy finds terminal pseudo-class. It is an error for such
// pseudo-class to appear anywhere but at the end of the only group.
func (c *compiler) terminalStrategy(groups []Group) (Strategy, bool, error) {
	var (
		found bool
		tok   Token
	)
	for gi, g := range groups {
		for i, t := range g {
			if t.Type != TokenPseudo || !c.registry().isTerminal(t.Name()) {
				continue
			}
			if len(groups) > 1 {
				return Strategy{}, false, fmt.Errorf("%w: :%s is not allowed in selector list", ErrTerminalPosition, t.Name())
			}
			if gi != 0 || i != len(g)-1 {
				return Strategy{}, false, fmt.Errorf("%w: :%s", ErrTerminalPosition, t.Name())
			}
			found, tok = true, t
		}
	}
	if !found {
		return Strategy{}, false, nil
	}

	step, err := c.registry()[tok.Name()].terminal(c, tok)
	if err != nil {
		return Strategy{}, false, fmt.Errorf(":%s(%s): %w", tok.Name(), tok.Arg(), err)
	}
	st := Strategy{Kind: TerminalPseudo, pseudo: tok.Name(), step: step}

	base := slices.Clone(groups[0][:len(groups[0])-1])
	if len(base) == 0 {
		if tok.Name() != "xpath" {
			return Strategy{}, false, fmt.Errorf("%w: :%s requires preceding selector", ErrInvalidArgument, tok.Name())
		}
		return st, true, nil
	}
	if base[len(base)-1].Type == TokenRelation {
		base = append(base, Token{Type: TokenTag, Value: "*", Matches: []string{"*"}})
	}
	st.base, err = c.engine.Compile(base.String())
	if err != nil {
		return Strategy{}, false, err
	}
	return st, true, nil
}

// evaluate runs strategy against the whole document.
func (st *Strategy) evaluate(root *html.Node, ctx *evalContext) []*html.Node {
	switch st.Kind {
	case NativeDelegate:
		return cascadia.QueryAll(root, st.native)

	case CustomWhole:
		var out []*html.Node
		for _, g := range st.groups {
			out = append(out, g.query(root, ctx)...)
		}
		if len(st.groups) > 1 {
			out = dom.SortInDocumentOrder(root, out)
		}
		return out

	case SplitPrefix:
		var out []*html.Node
		for _, n := range cascadia.QueryAll(root, st.prefix) {
			out = append(out, st.suffix.run(related(n, st.relation), ctx)...)
		}
		return dom.SortInDocumentOrder(root, out)

	case TerminalPseudo:
		base := []*html.Node{root}
		if st.base != nil {
			base = st.base.strategy.evaluate(root, ctx)
		}
		out := slices.DeleteFunc(st.step(base, ctx), func(n *html.Node) bool {
			return !dom.IsElement(n)
		})
		return dom.SortInDocumentOrder(root, out)
	}
	return nil
}

// matches tests single element.
func (st *Strategy) matches(n *html.Node, ctx *evalContext) bool {
	switch st.Kind {
	case NativeDelegate:
		return dom.IsElement(n) && st.native.Match(n)

	case CustomWhole:
		for _, g := range st.groups {
			if g.matches(n, ctx) {
				return true
			}
		}
		return false

	case SplitPrefix:
		if !st.suffix.matches(n, ctx) {
			return false
		}
		for _, p := range reverseRelated(n, st.relation) {
			if st.prefix.Match(p) {
				return true
			}
		}
		return false

	case TerminalPseudo:
		set := ctx.set(st, func() []*html.Node {
			return st.evaluate(ctx.root(n), ctx)
		})
		_, ok := set[n]
		return ok
	}
	return false
}

// related returns elements standing in relation rel to the right of n.
func related(n *html.Node, rel string) []*html.Node {
	switch rel {
	case ">":
		return dom.Children(n)
	case "+":
		if s := dom.NextElementSibling(n); s != nil {
			return []*html.Node{s}
		}
		return nil
	case "~":
		var out []*html.Node
		for s := dom.NextElementSibling(n); s != nil; s = dom.NextElementSibling(s) {
			out = append(out, s)
		}
		return out
	default:
		return dom.Elements(n)
	}
}

// reverseRelated returns elements standing in relation rel to the left of n.
func reverseRelated(n *html.Node, rel string) []*html.Node {
	var out []*html.Node
	switch rel {
	case ">":
		if p := dom.ParentElement(n); p != nil {
			out = append(out, p)
		}
	case "+":
		if s := dom.PrevElementSibling(n); s != nil {
			out = append(out, s)
		}
	case "~":
		for s := dom.PrevElementSibling(n); s != nil; s = dom.PrevElementSibling(s) {
			out = append(out, s)
		}
	default:
		for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
			out = append(out, p)
		}
	}
	return out
}
