package selector

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/dom"
)

type isMatcher struct {
	groups []*compiledGroup
}

// newIs builds forgiving :is(list). Branches which fail to compile are
// ignored, element matches when it is found by any remaining branch.
func newIs(c *compiler, tok Token) (matcher, error) {
	m := &isMatcher{}
	for _, branch := range splitList(tok.Arg()) {
		if branch == "" {
			continue
		}
		groups, err := c.compileList(branch, false)
		if err != nil {
			c.engine.log.Debug("Ignoring :is() branch", zap.String("branch", branch), zap.Error(err))
			continue
		}
		m.groups = append(m.groups, groups...)
	}
	return func(n *html.Node, ctx *evalContext) bool {
		if !dom.IsElement(n) || len(m.groups) == 0 {
			return false
		}
		set := ctx.set(m, func() []*html.Node {
			root := ctx.root(n)
			var out []*html.Node
			for _, g := range m.groups {
				out = append(out, g.query(root, ctx)...)
			}
			return out
		})
		_, ok := set[n]
		return ok
	}, nil
}

// newNot builds :not(list) removing candidates matched by any alternative.
func newNot(c *compiler, tok Token) (setMatcher, error) {
	if strings.TrimSpace(tok.Arg()) == "" {
		return nil, fmt.Errorf("%w: selector is required", ErrInvalidArgument)
	}
	groups, err := c.compileList(tok.Arg(), false)
	if err != nil {
		return nil, err
	}
	return func(cands []*html.Node, ctx *evalContext) []*html.Node {
		out := make([]*html.Node, 0, len(cands))
	next:
		for _, n := range cands {
			for _, g := range groups {
				if g.matches(n, ctx) {
					continue next
				}
			}
			out = append(out, n)
		}
		return out
	}, nil
}

type hasMatcher struct {
	groups []*compiledGroup
	negate bool
}

// newHas builds :has(relative list), with negate set it becomes :if-not.
func newHas(negate bool) setFactory {
	return func(c *compiler, tok Token) (setMatcher, error) {
		if strings.TrimSpace(tok.Arg()) == "" {
			return nil, fmt.Errorf("%w: selector is required", ErrInvalidArgument)
		}
		groups, err := c.compileList(tok.Arg(), true)
		if err != nil {
			return nil, err
		}
		m := &hasMatcher{groups: groups, negate: negate}
		return func(cands []*html.Node, ctx *evalContext) []*html.Node {
			out := make([]*html.Node, 0, len(cands))
			for _, n := range cands {
				if m.has(n, ctx) != m.negate {
					out = append(out, n)
				}
			}
			return out
		}, nil
	}
}

func (m *hasMatcher) has(n *html.Node, ctx *evalContext) bool {
	key := hasKey{owner: m, node: n}
	if v, ok := ctx.has[key]; ok {
		return v
	}
	scoped := ctx.withScope(n)
	found := false
	for _, g := range m.groups {
		if len(g.run(relativeCandidates(n, g.rels[0]), scoped)) > 0 {
			found = true
			break
		}
	}
	ctx.has[key] = found
	return found
}

// relativeCandidates lists elements which may match relative selector
// anchored at n, in document order.
func relativeCandidates(n *html.Node, rel string) []*html.Node {
	switch rel {
	case "+", "~":
		var out []*html.Node
		for s := dom.NextElementSibling(n); s != nil; s = dom.NextElementSibling(s) {
			out = append(out, s)
			out = append(out, dom.Elements(s)...)
		}
		return out
	default:
		return dom.Elements(n)
	}
}

func positionalArg(tok Token) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(tok.Arg()))
	if err != nil {
		return 0, fmt.Errorf("%w: integer expected", ErrInvalidArgument)
	}
	return v, nil
}

func noArg(tok Token) error {
	if tok.HasArg {
		return fmt.Errorf("%w: unexpected argument", ErrInvalidArgument)
	}
	return nil
}

func newFirst(_ *compiler, tok Token) (setMatcher, error) {
	if err := noArg(tok); err != nil {
		return nil, err
	}
	return func(cands []*html.Node, _ *evalContext) []*html.Node {
		if len(cands) == 0 {
			return nil
		}
		return cands[:1:1]
	}, nil
}

func newLast(_ *compiler, tok Token) (setMatcher, error) {
	if err := noArg(tok); err != nil {
		return nil, err
	}
	return func(cands []*html.Node, _ *evalContext) []*html.Node {
		if len(cands) == 0 {
			return nil
		}
		return cands[len(cands)-1:]
	}, nil
}

// newEq builds :eq(n), negative index counts from the end.
func newEq(_ *compiler, tok Token) (setMatcher, error) {
	idx, err := positionalArg(tok)
	if err != nil {
		return nil, err
	}
	return func(cands []*html.Node, _ *evalContext) []*html.Node {
		i := idx
		if i < 0 {
			i += len(cands)
		}
		if i < 0 || i >= len(cands) {
			return nil
		}
		return cands[i : i+1 : i+1]
	}, nil
}

func newLt(_ *compiler, tok Token) (setMatcher, error) {
	idx, err := positionalArg(tok)
	if err != nil {
		return nil, err
	}
	return func(cands []*html.Node, _ *evalContext) []*html.Node {
		i := idx
		if i < 0 {
			i += len(cands)
		}
		i = max(0, min(i, len(cands)))
		return cands[:i:i]
	}, nil
}

func newGt(_ *compiler, tok Token) (setMatcher, error) {
	idx, err := positionalArg(tok)
	if err != nil {
		return nil, err
	}
	return func(cands []*html.Node, _ *evalContext) []*html.Node {
		i := idx
		if i < 0 {
			i += len(cands)
		}
		i = max(0, min(i+1, len(cands)))
		return cands[i:]
	}, nil
}

func everyOther(start int) setFactory {
	return func(_ *compiler, tok Token) (setMatcher, error) {
		if err := noArg(tok); err != nil {
			return nil, err
		}
		return func(cands []*html.Node, _ *evalContext) []*html.Node {
			var out []*html.Node
			for i := start; i < len(cands); i += 2 {
				out = append(out, cands[i])
			}
			return out
		}, nil
	}
}

var (
	newEven = everyOther(0)
	newOdd  = everyOther(1)
)
