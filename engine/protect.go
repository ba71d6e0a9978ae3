package engine

import (
	"go.uber.org/zap"

	"extcss/dom"
)

// protection watches style attribute of an affected element and puts engine
// declarations back when somebody else overwrites them.
type protection struct {
	observer *dom.MutationObserver
	count    int
	gaveUp   bool
}

var protectionObservation = dom.ObserveOptions{
	Attributes:      true,
	AttributeFilter: []string{"style"},
}

// protect makes sure element has protection observer.
func (e *Engine) protect(ae *AffectedElement) {
	if ae.protection != nil || ae.applied == nil {
		return
	}

	p := &protection{}
	p.observer = e.doc.NewMutationObserver(func(_ []dom.MutationRecord, o *dom.MutationObserver) {
		if p.gaveUp || e.state == StateDisposed {
			return
		}
		p.count++
		if p.count > e.cfg.ProtectionLimit {
			p.gaveUp = true
			o.Disconnect()
			e.log.Error("Style of element keeps being changed, giving up protection",
				zap.String("path", dom.CSSPath(ae.Node)),
				zap.Int("limit", e.cfg.ProtectionLimit))
			return
		}
		o.Disconnect()
		e.setStyles(ae.Node, ae.applied)
		o.Observe(ae.Node, protectionObservation)
	})
	p.observer.Observe(ae.Node, protectionObservation)
	ae.protection = p
}

func (e *Engine) unprotect(ae *AffectedElement) {
	if ae.protection == nil {
		return
	}
	ae.protection.observer.Disconnect()
	ae.protection = nil
}

// paused runs fn with protection of the element suspended, so engine own
// changes are not counted as tampering.
func (e *Engine) paused(ae *AffectedElement, fn func()) {
	p := ae.protection
	if p == nil || p.gaveUp {
		fn()
		return
	}
	p.observer.Disconnect()
	defer p.observer.Observe(ae.Node, protectionObservation)
	fn()
}
