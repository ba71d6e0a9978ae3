package selector

import (
	"fmt"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"extcss/dom"
)

// stage is a step of compound evaluation: either element filter or set
// matcher.
type stage struct {
	filter matcher
	set    setMatcher
}

func (s stage) apply(cands []*html.Node, ctx *evalContext) []*html.Node {
	if s.set != nil {
		return s.set(cands, ctx)
	}
	out := make([]*html.Node, 0, len(cands))
	for _, n := range cands {
		if s.filter(n, ctx) {
			out = append(out, n)
		}
	}
	return out
}

func (s stage) matches(n *html.Node, ctx *evalContext) bool {
	if s.set != nil {
		return len(s.set([]*html.Node{n}, ctx)) > 0
	}
	return s.filter(n, ctx)
}

// compiledCompound is a sequence of simple selectors without combinators.
type compiledCompound struct {
	stages     []stage
	positional bool
}

func (c *compiledCompound) matches(n *html.Node, ctx *evalContext) bool {
	for _, s := range c.stages {
		if !s.matches(n, ctx) {
			return false
		}
	}
	return true
}

func (c *compiledCompound) apply(cands []*html.Node, ctx *evalContext) []*html.Node {
	for _, s := range c.stages {
		if len(cands) == 0 {
			break
		}
		cands = s.apply(cands, ctx)
	}
	return cands
}

// compiledGroup is one alternative of selector list. The last compound is
// the subject, rels[i] joins compounds[i] and compounds[i+1].
type compiledGroup struct {
	text      string
	compounds []*compiledCompound
	rels      []string
}

func (g *compiledGroup) subject() *compiledCompound {
	return g.compounds[len(g.compounds)-1]
}

// run filters candidates (given in document order) keeping the ones group
// matches.
func (g *compiledGroup) run(cands []*html.Node, ctx *evalContext) []*html.Node {
	subject := g.subject()
	last := len(g.rels) - 1

	if !subject.positional {
		cands = subject.apply(cands, ctx)
		if last < 0 {
			return cands
		}
		return slices.DeleteFunc(slices.Clone(cands), func(n *html.Node) bool {
			return !g.matchLeft(last, n, ctx)
		})
	}

	// positions are counted among elements matching the context
	if last >= 0 {
		cands = slices.DeleteFunc(slices.Clone(cands), func(n *html.Node) bool {
			return !g.matchLeft(last, n, ctx)
		})
	}
	return subject.apply(cands, ctx)
}

// matchLeft checks that n has related element matching compounds[i] and
// everything on its left.
func (g *compiledGroup) matchLeft(i int, n *html.Node, ctx *evalContext) bool {
	left := g.compounds[i]
	test := func(m *html.Node) bool {
		return left.matches(m, ctx) && (i == 0 || g.matchLeft(i-1, m, ctx))
	}
	switch g.rels[i] {
	case ">":
		p := dom.ParentElement(n)
		return p != nil && test(p)
	case "+":
		s := dom.PrevElementSibling(n)
		return s != nil && test(s)
	case "~":
		for s := dom.PrevElementSibling(n); s != nil; s = dom.PrevElementSibling(s) {
			if test(s) {
				return true
			}
		}
	default:
		for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
			if test(p) {
				return true
			}
		}
	}
	return false
}

// matches tests single element. Positional groups are evaluated over the
// whole document and membership is checked.
func (g *compiledGroup) matches(n *html.Node, ctx *evalContext) bool {
	if !dom.IsElement(n) {
		return false
	}
	if g.subject().positional {
		set := ctx.set(g, func() []*html.Node {
			return g.query(ctx.root(n), ctx)
		})
		_, ok := set[n]
		return ok
	}
	return len(g.run([]*html.Node{n}, ctx)) > 0
}

func (g *compiledGroup) query(root *html.Node, ctx *evalContext) []*html.Node {
	return g.run(dom.Elements(root), ctx)
}

// compiler turns token groups into matchers.
type compiler struct {
	engine *Engine
}

func (c *compiler) registry() registry {
	return c.engine.pseudos
}

var descendant = Token{Type: TokenRelation, Value: " ", Matches: []string{" "}}

// compileGroup compiles single alternative. Relative groups are anchored at
// the evaluation scope, when group does not start with combinator
// descendant one is assumed.
func (c *compiler) compileGroup(g Group, relative bool) (*compiledGroup, error) {
	if relative && (len(g) == 0 || g[0].Type != TokenRelation) {
		g = append(Group{descendant}, g...)
	}
	parts, rels := g.compounds()
	cg := &compiledGroup{text: g.String(), rels: rels}
	for i, part := range parts {
		if len(part) == 0 {
			if i == 0 && relative {
				cg.compounds = append(cg.compounds, &compiledCompound{stages: []stage{{filter: matchScope}}})
				continue
			}
			return nil, fmt.Errorf("%w: combinator without selector in %q", ErrSyntax, g.String())
		}
		cc, err := c.compileCompound(part)
		if err != nil {
			return nil, err
		}
		if cc.positional && i != len(parts)-1 {
			return nil, fmt.Errorf("%w: positional pseudo-class is only allowed in the rightmost compound of %q", ErrInvalidArgument, g.String())
		}
		cg.compounds = append(cg.compounds, cc)
	}
	return cg, nil
}

// compileList compiles comma separated list.
func (c *compiler) compileList(text string, relative bool) ([]*compiledGroup, error) {
	res, err := c.engine.Tokenize(text, false)
	if err != nil {
		return nil, err
	}
	out := make([]*compiledGroup, 0, len(res.Groups))
	for _, g := range res.Groups {
		g = g.reorder(c.registry().isPositional)
		cg, err := c.compileGroup(g, relative)
		if err != nil {
			return nil, err
		}
		out = append(out, cg)
	}
	return out, nil
}

func (c *compiler) compileCompound(tokens Group) (*compiledCompound, error) {
	cc := &compiledCompound{}
	var filters []matcher

	flush := func() {
		switch len(filters) {
		case 0:
			return
		case 1:
			cc.stages = append(cc.stages, stage{filter: filters[0]})
		default:
			all := filters
			cc.stages = append(cc.stages, stage{filter: func(n *html.Node, ctx *evalContext) bool {
				for _, f := range all {
					if !f(n, ctx) {
						return false
					}
				}
				return true
			}})
		}
		filters = nil
	}

	for _, tok := range tokens {
		switch tok.Type {
		case TokenID:
			id := tok.Name()
			filters = append(filters, func(n *html.Node, _ *evalContext) bool {
				return dom.AttrValue(n, "id") == id
			})
		case TokenClass:
			cls := tok.Name()
			filters = append(filters, func(n *html.Node, _ *evalContext) bool {
				return dom.HasClass(n, cls)
			})
		case TokenTag:
			tag := tok.Name()
			if tag == "*" {
				filters = append(filters, func(n *html.Node, _ *evalContext) bool { return dom.IsElement(n) })
				continue
			}
			filters = append(filters, func(n *html.Node, _ *evalContext) bool {
				return dom.IsElement(n) && strings.EqualFold(n.Data, tag)
			})
		case TokenAttr:
			m, err := attrMatcher(tok)
			if err != nil {
				return nil, err
			}
			filters = append(filters, m)
		case TokenChild:
			m, err := nativeMatcher(tok)
			if err != nil {
				return nil, err
			}
			filters = append(filters, m)
		case TokenPseudo:
			pc, ok := c.registry()[tok.Name()]
			switch {
			case !ok:
				m, err := nativeMatcher(tok)
				if err != nil {
					return nil, err
				}
				filters = append(filters, m)
			case pc.terminal != nil:
				return nil, fmt.Errorf("%w: :%s", ErrTerminalPosition, tok.Name())
			case pc.filter != nil:
				m, err := pc.filter(c, tok)
				if err != nil {
					return nil, fmt.Errorf(":%s(%s): %w", tok.Name(), tok.Arg(), err)
				}
				filters = append(filters, m)
			default:
				s, err := pc.set(c, tok)
				if err != nil {
					return nil, fmt.Errorf(":%s(%s): %w", tok.Name(), tok.Arg(), err)
				}
				flush()
				cc.stages = append(cc.stages, stage{set: s})
				cc.positional = cc.positional || pc.positional
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %s token %q", ErrSyntax, tok.Type, tok.Value)
		}
	}
	flush()
	return cc, nil
}

// nativeMatcher delegates single structural or standard pseudo-class to
// cascadia.
func nativeMatcher(tok Token) (matcher, error) {
	sel, err := cascadia.Parse("*" + tok.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPseudoClass, tok.Value)
	}
	return func(n *html.Node, _ *evalContext) bool {
		return dom.IsElement(n) && sel.Match(n)
	}, nil
}

func attrMatcher(tok Token) (matcher, error) {
	name, op, want := tok.Matches[0], tok.Matches[1], tok.Matches[2]
	var test func(v string) bool
	switch op {
	case "":
		test = func(string) bool { return true }
	case "=":
		test = func(v string) bool { return v == want }
	case "!=":
		// missing attribute also differs
		return func(n *html.Node, _ *evalContext) bool {
			v, ok := dom.Attr(n, name)
			return dom.IsElement(n) && (!ok || v != want)
		}, nil
	case "^=":
		test = func(v string) bool { return want != "" && strings.HasPrefix(v, want) }
	case "$=":
		test = func(v string) bool { return want != "" && strings.HasSuffix(v, want) }
	case "*=":
		test = func(v string) bool { return want != "" && strings.Contains(v, want) }
	case "~=":
		test = func(v string) bool { return want != "" && slices.Contains(strings.Fields(v), want) }
	case "|=":
		test = func(v string) bool { return v == want || strings.HasPrefix(v, want+"-") }
	default:
		return nil, fmt.Errorf("%w: unsupported attribute operator %q", ErrSyntax, op)
	}
	return func(n *html.Node, _ *evalContext) bool {
		v, ok := dom.Attr(n, name)
		return ok && test(v)
	}, nil
}

// matchScope matches relative anchor, at document level this is the root
// element.
func matchScope(n *html.Node, ctx *evalContext) bool {
	if ctx.scope != nil {
		return n == ctx.scope
	}
	return dom.IsElement(n) && n.Parent != nil && n.Parent.Type == html.DocumentNode
}

func newScope(_ *compiler, tok Token) (matcher, error) {
	if tok.Arg() != "" {
		return nil, fmt.Errorf("%w: unexpected argument", ErrInvalidArgument)
	}
	return matchScope, nil
}
