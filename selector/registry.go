package selector

import (
	"golang.org/x/net/html"
)

// matcher tests single element.
type matcher func(n *html.Node, ctx *evalContext) bool

// setMatcher filters candidates, result keeps candidates order.
type setMatcher func(cands []*html.Node, ctx *evalContext) []*html.Node

// terminalStep maps nodes matched by the base selector to the final result.
type terminalStep func(base []*html.Node, ctx *evalContext) []*html.Node

type (
	filterFactory   func(c *compiler, tok Token) (matcher, error)
	setFactory      func(c *compiler, tok Token) (setMatcher, error)
	terminalFactory func(c *compiler, tok Token) (terminalStep, error)
)

// pseudoClass describes how pseudo-class is compiled. Exactly one of the
// factories is set.
type pseudoClass struct {
	// extended pseudo-classes are not supported by native engine and force
	// our own evaluation, others only need their arguments checked.
	extended bool
	// positional pseudo-classes depend on candidate order.
	positional bool

	filter   filterFactory
	set      setFactory
	terminal terminalFactory
}

type registry map[string]*pseudoClass

func (r registry) register(pc *pseudoClass, names ...string) {
	for _, name := range names {
		r[name] = pc
	}
}

func (r registry) isPositional(name string) bool {
	pc, ok := r[name]
	return ok && pc.positional
}

func (r registry) isTerminal(name string) bool {
	pc, ok := r[name]
	return ok && pc.terminal != nil
}

func builtinPseudoClasses() registry {
	r := make(registry)

	r.register(&pseudoClass{extended: true, filter: newContains}, "contains", "has-text", "-abp-contains")
	r.register(&pseudoClass{extended: true, filter: newMatchesCSS("")}, "matches-css")
	r.register(&pseudoClass{extended: true, filter: newMatchesCSS("before")}, "matches-css-before")
	r.register(&pseudoClass{extended: true, filter: newMatchesCSS("after")}, "matches-css-after")
	r.register(&pseudoClass{extended: true, filter: newMatchesAttr}, "matches-attr")
	r.register(&pseudoClass{extended: true, filter: newMatchesProperty}, "matches-property")

	r.register(&pseudoClass{filter: newIs}, "is")
	r.register(&pseudoClass{set: newNot}, "not")
	r.register(&pseudoClass{extended: true, set: newHas(false)}, "has", "if", "-abp-has")
	r.register(&pseudoClass{extended: true, set: newHas(true)}, "if-not")
	r.register(&pseudoClass{extended: true, filter: newScope}, "scope")

	r.register(&pseudoClass{extended: true, positional: true, set: newFirst}, "first")
	r.register(&pseudoClass{extended: true, positional: true, set: newLast}, "last")
	r.register(&pseudoClass{extended: true, positional: true, set: newEq}, "eq")
	r.register(&pseudoClass{extended: true, positional: true, set: newLt}, "lt")
	r.register(&pseudoClass{extended: true, positional: true, set: newGt}, "gt")
	r.register(&pseudoClass{extended: true, positional: true, set: newEven}, "even")
	r.register(&pseudoClass{extended: true, positional: true, set: newOdd}, "odd")

	r.register(&pseudoClass{extended: true, terminal: newXPath}, "xpath")
	r.register(&pseudoClass{extended: true, terminal: newNthAncestor}, "nth-ancestor")
	r.register(&pseudoClass{extended: true, terminal: newUpward}, "upward")
	r.register(&pseudoClass{extended: true, terminal: newRemove}, "remove")

	return r
}
