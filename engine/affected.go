package engine

import (
	"slices"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"extcss/css"
	"extcss/dom"
)

// AffectedElement is engine record of an element matched by at least one
// rule.
type AffectedElement struct {
	Node  *html.Node
	Rules []*css.Rule
	// OriginalStyle is the style attribute captured before engine touched
	// the element, HadStyle tells whether the attribute was present at all.
	OriginalStyle string
	HadStyle      bool
	Removed       bool

	// rules actually applied, nil when application was skipped
	applied    []*css.Rule
	protection *protection
}

// Affected returns records for currently affected elements in document
// order, removed elements come last.
func (e *Engine) Affected() []*AffectedElement {
	nodes := make([]*html.Node, 0, len(e.affected))
	var removed []*AffectedElement
	for n, ae := range e.affected {
		if ae.Removed {
			removed = append(removed, ae)
			continue
		}
		nodes = append(nodes, n)
	}
	out := make([]*AffectedElement, 0, len(e.affected))
	for _, n := range dom.SortInDocumentOrder(e.doc.Root(), nodes) {
		out = append(out, e.affected[n])
	}
	return append(out, removed...)
}

// update creates or refreshes record of n matched by rules in this pass and
// applies them.
func (e *Engine) update(n *html.Node, rules []*css.Rule) {
	ae, ok := e.affected[n]
	if !ok {
		ae = &AffectedElement{Node: n}
		ae.OriginalStyle, ae.HadStyle = dom.Attr(n, "style")
		e.affected[n] = ae
	}

	switch {
	case ae.Removed && !dom.Contains(e.doc.Root(), n):
		ae.Rules = rules
		return
	case ok && !ae.Removed && ae.applied != nil && slices.Equal(ae.Rules, rules):
		// nothing changed, protection keeps styles in place
		return
	}
	ae.Rules = rules
	e.applyStyle(ae)
}

// applyStyle applies record rules giving BeforeStyleApplied a chance to
// change them.
func (e *Engine) applyStyle(ae *AffectedElement) {
	rules := ae.Rules
	if e.before != nil {
		proposal := *ae
		proposal.Rules = slices.Clone(ae.Rules)
		res := e.before(&proposal)
		if res == nil {
			e.log.Debug("Style application vetoed", zap.String("path", dom.CSSPath(ae.Node)))
			if ae.applied != nil {
				e.restore(ae)
				ae.applied = nil
			}
			return
		}
		rules = res.Rules
	}

	if slices.ContainsFunc(rules, func(r *css.Rule) bool { return r.Style.IsRemove() }) {
		e.remove(ae)
		return
	}
	if ae.Removed {
		// removal is terminal, re-attached node no longer matched by remove
		// rules is left as it is
		ae.applied = nil
		return
	}

	e.paused(ae, func() {
		if ae.applied != nil && !subset(ae.applied, rules) {
			// declarations of rules which stopped matching must go away
			e.restore(ae)
		}
		e.setStyles(ae.Node, rules)
	})
	ae.applied = rules
}

// setStyles writes declarations as important inline properties.
func (e *Engine) setStyles(n *html.Node, rules []*css.Rule) {
	for _, rule := range rules {
		for _, name := range rule.Style.Names() {
			if name == css.PropRemove || name == css.PropDebug {
				continue
			}
			e.doc.SetStyleProperty(n, name, rule.Style[name], true)
		}
	}
}

// restore puts original style attribute back.
func (e *Engine) restore(ae *AffectedElement) {
	cur, has := dom.Attr(ae.Node, "style")
	switch {
	case ae.HadStyle && (!has || cur != ae.OriginalStyle):
		e.doc.SetAttribute(ae.Node, "style", ae.OriginalStyle)
	case !ae.HadStyle && has:
		e.doc.RemoveAttribute(ae.Node, "style")
	}
}

// revert drops protection and restores original style of the element.
func (e *Engine) revert(ae *AffectedElement) {
	e.unprotect(ae)
	if ae.Removed || ae.applied == nil {
		return
	}
	e.restore(ae)
	ae.applied = nil
}

func subset(sub, set []*css.Rule) bool {
	for _, r := range sub {
		if !slices.Contains(set, r) {
			return false
		}
	}
	return true
}
