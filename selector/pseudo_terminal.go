package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"extcss/dom"
)

// maxAncestorDepth limits :nth-ancestor() and numeric :upward().
const maxAncestorDepth = 256

// newXPath builds :xpath(expr). Absolute expressions are evaluated against
// the document, relative ones against every node matched by the base.
func newXPath(_ *compiler, tok Token) (terminalStep, error) {
	expr := strings.TrimSpace(tok.Arg())
	if expr == "" {
		return nil, fmt.Errorf("%w: expression is required", ErrInvalidArgument)
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	absolute := strings.HasPrefix(expr, "/")
	return func(base []*html.Node, ctx *evalContext) []*html.Node {
		if absolute && len(base) > 0 {
			base = []*html.Node{ctx.root(base[0])}
		}
		var out []*html.Node
		for _, n := range base {
			out = append(out, htmlquery.QuerySelectorAll(n, compiled)...)
		}
		return out
	}, nil
}

func ancestorDepth(arg string) (int, error) {
	depth, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("%w: integer expected", ErrInvalidArgument)
	}
	if depth < 1 || depth >= maxAncestorDepth {
		return 0, fmt.Errorf("%w: depth must be between 1 and %d", ErrInvalidArgument, maxAncestorDepth-1)
	}
	return depth, nil
}

// newNthAncestor builds :nth-ancestor(n) as ".." XPath chain.
func newNthAncestor(_ *compiler, tok Token) (terminalStep, error) {
	depth, err := ancestorDepth(tok.Arg())
	if err != nil {
		return nil, err
	}
	steps := make([]string, depth)
	for i := range steps {
		steps[i] = ".."
	}
	compiled, err := xpath.Compile(strings.Join(steps, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return func(base []*html.Node, _ *evalContext) []*html.Node {
		var out []*html.Node
		for _, n := range base {
			out = append(out, htmlquery.QuerySelectorAll(n, compiled)...)
		}
		return out
	}, nil
}

// newUpward builds :upward(n) which goes n levels up and :upward(selector)
// which finds the closest ancestor (not the element itself) matching
// selector.
func newUpward(c *compiler, tok Token) (terminalStep, error) {
	arg := strings.TrimSpace(tok.Arg())
	if arg == "" {
		return nil, fmt.Errorf("%w: number or selector is required", ErrInvalidArgument)
	}
	if _, err := strconv.Atoi(arg); err == nil {
		depth, err := ancestorDepth(arg)
		if err != nil {
			return nil, err
		}
		return func(base []*html.Node, _ *evalContext) []*html.Node {
			var out []*html.Node
			for _, n := range base {
				p := n
				for i := 0; i < depth && p != nil; i++ {
					p = dom.ParentElement(p)
				}
				if p != nil {
					out = append(out, p)
				}
			}
			return out
		}, nil
	}

	sel, err := c.engine.Compile(arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return func(base []*html.Node, ctx *evalContext) []*html.Node {
		var out []*html.Node
		for _, n := range base {
			for p := dom.ParentElement(n); p != nil; p = dom.ParentElement(p) {
				if sel.matches(ctx, p) {
					out = append(out, p)
					break
				}
			}
		}
		return out
	}, nil
}

// newRemove builds :remove(), it does not change the set, rules using it
// remove matched elements.
func newRemove(_ *compiler, tok Token) (terminalStep, error) {
	if strings.TrimSpace(tok.Arg()) != "" {
		return nil, fmt.Errorf("%w: :remove() takes no argument", ErrInvalidArgument)
	}
	return func(base []*html.Node, _ *evalContext) []*html.Node {
		return base
	}, nil
}
