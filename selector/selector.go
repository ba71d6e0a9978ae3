package selector

import (
	"golang.org/x/net/html"

	"extcss/dom"
)

// Selector is compiled selector. It is immutable and may be shared.
type Selector struct {
	text      string
	groups    []Group
	reordered []Group
	strategy  Strategy
}

func newSelector(text string, groups, reordered []Group, st Strategy) *Selector {
	return &Selector{text: text, groups: groups, reordered: reordered, strategy: st}
}

// String returns original selector text.
func (s *Selector) String() string {
	return s.text
}

// Groups returns token groups in original order. Selectors handed to native
// engine without tokenization have none.
func (s *Selector) Groups() []Group {
	return s.groups
}

// Strategy returns evaluation strategy chosen at compile time.
func (s *Selector) Strategy() StrategyKind {
	return s.strategy.Kind
}

// IsRemove reports selectors ending with :remove().
func (s *Selector) IsRemove() bool {
	return s.strategy.Kind == TerminalPseudo && s.strategy.pseudo == "remove"
}

// QuerySelectorAll returns matching elements in document order.
func (s *Selector) QuerySelectorAll(doc *dom.Document) []*html.Node {
	if doc == nil {
		return nil
	}
	return s.strategy.evaluate(doc.Root(), newEvalContext(doc))
}

// Matches tests whether element is matched by selector.
func (s *Selector) Matches(doc *dom.Document, n *html.Node) bool {
	if doc == nil || !dom.IsElement(n) {
		return false
	}
	return s.matches(newEvalContext(doc), n)
}

func (s *Selector) matches(ctx *evalContext, n *html.Node) bool {
	return s.strategy.matches(n, ctx)
}
