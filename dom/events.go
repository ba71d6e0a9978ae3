package dom

import (
	"slices"

	"golang.org/x/net/html"
)

// Event is a minimal user event representation, engine only cares about type.
type Event struct {
	Type   string
	Target *html.Node
}

type listener struct {
	id int
	fn func(Event)
}

// AddEventListener registers fn for events of type typ dispatched on the
// document. Returned function removes the listener.
func (d *Document) AddEventListener(typ string, fn func(Event)) (remove func()) {
	d.nextID++
	l := &listener{id: d.nextID, fn: fn}
	d.listeners[typ] = append(d.listeners[typ], l)
	return func() {
		d.listeners[typ] = slices.DeleteFunc(d.listeners[typ], func(x *listener) bool { return x.id == l.id })
	}
}

// DispatchEvent calls all listeners registered for ev.Type.
func (d *Document) DispatchEvent(ev Event) {
	for _, l := range slices.Clone(d.listeners[ev.Type]) {
		l.fn(ev)
	}
}
