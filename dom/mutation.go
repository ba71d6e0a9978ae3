package dom

import (
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var ErrNotChild = errors.New("node is not a child of the given parent")

// MutationKind distinguishes mutation records.
type MutationKind int

const (
	MutationChildList MutationKind = iota
	MutationAttributes
)

// MutationRecord describes a single change to the tree.
type MutationRecord struct {
	Kind          MutationKind
	Target        *html.Node
	AttributeName string
	OldValue      string
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
}

// ObserveOptions selects which mutations observer receives.
type ObserveOptions struct {
	ChildList       bool
	Attributes      bool
	Subtree         bool
	AttributeFilter []string
}

// MutationCallback receives records. Records are delivered synchronously from
// the mutating call, callback may mutate document again.
type MutationCallback func(records []MutationRecord, o *MutationObserver)

type observation struct {
	target *html.Node
	opts   ObserveOptions
}

// MutationObserver watches parts of the document.
type MutationObserver struct {
	doc      *Document
	callback MutationCallback
	targets  []observation
}

// NewMutationObserver creates observer which is not observing anything yet.
func (d *Document) NewMutationObserver(cb MutationCallback) *MutationObserver {
	return &MutationObserver{doc: d, callback: cb}
}

// Observe registers target. Observing the same target again replaces options.
func (o *MutationObserver) Observe(target *html.Node, opts ObserveOptions) {
	for i := range o.targets {
		if o.targets[i].target == target {
			o.targets[i].opts = opts
			return
		}
	}
	o.targets = append(o.targets, observation{target: target, opts: opts})
	if !slices.Contains(o.doc.observers, o) {
		o.doc.observers = append(o.doc.observers, o)
	}
}

// Disconnect stops all observations.
func (o *MutationObserver) Disconnect() {
	o.targets = nil
	o.doc.observers = slices.DeleteFunc(o.doc.observers, func(x *MutationObserver) bool { return x == o })
}

// Observing reports whether observer has any active targets.
func (o *MutationObserver) Observing() bool {
	return len(o.targets) > 0
}

func (o *MutationObserver) interested(rec *MutationRecord) bool {
	for _, t := range o.targets {
		if t.target != rec.Target && !(t.opts.Subtree && Contains(t.target, rec.Target)) {
			continue
		}
		switch rec.Kind {
		case MutationChildList:
			if t.opts.ChildList {
				return true
			}
		case MutationAttributes:
			if !t.opts.Attributes {
				continue
			}
			if len(t.opts.AttributeFilter) == 0 || slices.Contains(t.opts.AttributeFilter, rec.AttributeName) {
				return true
			}
		}
	}
	return false
}

func (d *Document) notify(rec MutationRecord) {
	if len(d.observers) == 0 {
		return
	}
	// observers may disconnect or register others while being notified
	for _, o := range slices.Clone(d.observers) {
		if !o.Observing() || !o.interested(&rec) {
			continue
		}
		o.callback([]MutationRecord{rec}, o)
	}
}

// SetAttribute sets attribute value and notifies observers.
func (d *Document) SetAttribute(n *html.Node, key, val string) {
	key = strings.ToLower(key)
	old, found := "", false
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			old, found = n.Attr[i].Val, true
			n.Attr[i].Val = val
			break
		}
	}
	if !found {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.notify(MutationRecord{Kind: MutationAttributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttribute deletes attribute if present and notifies observers.
func (d *Document) RemoveAttribute(n *html.Node, key string) {
	key = strings.ToLower(key)
	idx := slices.IndexFunc(n.Attr, func(a html.Attribute) bool { return a.Namespace == "" && a.Key == key })
	if idx < 0 {
		return
	}
	old := n.Attr[idx].Val
	n.Attr = slices.Delete(n.Attr, idx, idx+1)
	d.notify(MutationRecord{Kind: MutationAttributes, Target: n, AttributeName: key, OldValue: old})
}

// AppendChild adds child as last child of parent. Attached child is moved.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref, ref nil means append.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if child.Parent != nil {
		d.Remove(child)
	}
	parent.InsertBefore(child, ref)
	d.notify(MutationRecord{Kind: MutationChildList, Target: parent, AddedNodes: []*html.Node{child}})
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	if child.Parent != parent {
		return ErrNotChild
	}
	parent.RemoveChild(child)
	d.notify(MutationRecord{Kind: MutationChildList, Target: parent, RemovedNodes: []*html.Node{child}})
	return nil
}

// Remove detaches n from its parent, detached node is left alone.
func (d *Document) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	if err := d.RemoveChild(n.Parent, n); err != nil {
		d.log.Debug("Unable to remove node", zap.Error(err))
	}
}

// SetText replaces all children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	tn := &html.Node{Type: html.TextNode, Data: text}
	n.AppendChild(tn)
	d.notify(MutationRecord{Kind: MutationChildList, Target: n, AddedNodes: []*html.Node{tn}, RemovedNodes: removed})
}
