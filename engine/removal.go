package engine

import (
	"go.uber.org/zap"

	"extcss/dom"
)

// remove detaches element from the document. Every removal is counted per
// element path, once the same path was removed too many times (page keeps
// re-creating the element) engine stops removing it.
func (e *Engine) remove(ae *AffectedElement) {
	e.unprotect(ae)
	if !dom.Contains(e.doc.Root(), ae.Node) {
		// went away together with removed ancestor
		ae.Removed = true
		return
	}

	path := dom.CSSPath(ae.Node)
	count := e.removals[path]
	if count >= e.cfg.RemovalLimit {
		if count == e.cfg.RemovalLimit {
			e.log.Error("Element keeps being re-created, giving up removal",
				zap.String("path", path),
				zap.Int("limit", e.cfg.RemovalLimit))
			e.removals[path] = count + 1
		}
		return
	}
	e.removals[path] = count + 1

	e.doc.Remove(ae.Node)
	ae.Removed = true
	e.log.Debug("Element removed", zap.String("path", path), zap.Int("times", count+1))
}
