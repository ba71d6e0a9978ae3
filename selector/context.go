package selector

import (
	"golang.org/x/net/html"

	"extcss/dom"
)

type styleKey struct {
	node   *html.Node
	pseudo string
}

type setKey struct {
	owner any
	scope *html.Node
}

type hasKey struct {
	owner any
	node  *html.Node
}

// memo is a per query side-table. Nothing is stored on nodes themselves.
type memo struct {
	text   map[*html.Node]string
	styles map[styleKey]map[string]string
	sets   map[setKey]map[*html.Node]struct{}
	has    map[hasKey]bool
}

// evalContext carries document and relative anchor for a single query call.
type evalContext struct {
	doc   *dom.Document
	scope *html.Node
	*memo
}

func newEvalContext(doc *dom.Document) *evalContext {
	return &evalContext{
		doc: doc,
		memo: &memo{
			text:   make(map[*html.Node]string),
			styles: make(map[styleKey]map[string]string),
			sets:   make(map[setKey]map[*html.Node]struct{}),
			has:    make(map[hasKey]bool),
		},
	}
}

// withScope returns context sharing memo tables with different anchor.
func (ctx *evalContext) withScope(scope *html.Node) *evalContext {
	return &evalContext{doc: ctx.doc, scope: scope, memo: ctx.memo}
}

func (ctx *evalContext) textContent(n *html.Node) string {
	if s, ok := ctx.text[n]; ok {
		return s
	}
	s := dom.TextContent(n)
	ctx.text[n] = s
	return s
}

func (ctx *evalContext) computedStyle(n *html.Node, pseudo string) map[string]string {
	key := styleKey{node: n, pseudo: pseudo}
	if st, ok := ctx.styles[key]; ok {
		return st
	}
	st := ctx.doc.ComputedStyle(n, pseudo)
	ctx.styles[key] = st
	return st
}

// set returns memoized node set produced by build.
func (ctx *evalContext) set(owner any, build func() []*html.Node) map[*html.Node]struct{} {
	key := setKey{owner: owner, scope: ctx.scope}
	if s, ok := ctx.sets[key]; ok {
		return s
	}
	nodes := build()
	s := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		s[n] = struct{}{}
	}
	ctx.sets[key] = s
	return s
}

// root is the tree evaluated by whole document queries.
func (ctx *evalContext) root(n *html.Node) *html.Node {
	if ctx.doc != nil && dom.Contains(ctx.doc.Root(), n) {
		return ctx.doc.Root()
	}
	return dom.TopOf(n)
}
