package dom

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const sample = `<!DOCTYPE html>
<html><head><title>t</title></head><body>
<div id="main"><p class="a b">one <b>two</b></p><p>three</p><span></span></div>
<ul><li>x</li><li>y</li></ul>
</body></html>`

func parse(t *testing.T, opts ...Option) *Document {
	t.Helper()
	doc, err := ParseString(sample, opts...)
	require.NoError(t, err)
	return doc
}

func find(doc *Document, pred func(*html.Node) bool) *html.Node {
	for _, n := range Elements(doc.Root()) {
		if pred(n) {
			return n
		}
	}
	return nil
}

func byTag(doc *Document, a atom.Atom) []*html.Node {
	var out []*html.Node
	for _, n := range Elements(doc.Root()) {
		if n.DataAtom == a {
			out = append(out, n)
		}
	}
	return out
}

func TestDocument_Structure(t *testing.T) {
	doc := parse(t)

	require.NotNil(t, doc.DocumentElement())
	assert.Equal(t, atom.Html, doc.DocumentElement().DataAtom)
	require.NotNil(t, doc.Body())
	assert.Equal(t, atom.Body, doc.Body().DataAtom)
	assert.Equal(t, ReadyComplete, doc.ReadyState())

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), `<p class="a b">one <b>two</b></p>`)
}

func TestDocument_ReadyState(t *testing.T) {
	doc := parse(t, WithReadyState(ReadyLoading))
	assert.Equal(t, "loading", doc.ReadyState().String())

	calls := 0
	doc.OnReady(func() { calls++ })
	doc.SetReadyState(ReadyInteractive)
	assert.Zero(t, calls)

	doc.SetReadyState(ReadyComplete)
	assert.Equal(t, 1, calls)

	// going back is not possible and callbacks run once
	doc.SetReadyState(ReadyLoading)
	doc.SetReadyState(ReadyComplete)
	assert.Equal(t, ReadyComplete, doc.ReadyState())
	assert.Equal(t, 1, calls)

	doc.OnReady(func() { calls++ })
	assert.Equal(t, 2, calls, "complete document runs callback at once")
	assert.Equal(t, "ReadyState(7)", ReadyState(7).String())
}

func TestNodeHelpers(t *testing.T) {
	doc := parse(t)
	main := find(doc, func(n *html.Node) bool { return AttrValue(n, "id") == "main" })
	require.NotNil(t, main)
	ps := byTag(doc, atom.P)
	require.Len(t, ps, 2)

	assert.True(t, HasClass(ps[0], "b"))
	assert.False(t, HasClass(ps[0], "c"))
	assert.Equal(t, "one two", TextContent(ps[0]))
	assert.Equal(t, main, ParentElement(ps[0]))
	assert.Nil(t, ParentElement(doc.DocumentElement()))
	assert.Equal(t, ps[1], NextElementSibling(ps[0]))
	assert.Equal(t, ps[0], PrevElementSibling(ps[1]))
	assert.Len(t, Children(main), 3)

	_, ok := Attr(ps[1], "class")
	assert.False(t, ok)

	assert.True(t, Contains(main, ps[1]))
	assert.True(t, Contains(main, main))
	assert.False(t, Contains(ps[1], main))
	assert.Equal(t, doc.Root(), TopOf(ps[0]))

	assert.Equal(t, []*html.Node{ps[0], ps[1]}, SortInDocumentOrder(doc.Root(), []*html.Node{ps[1], ps[0], ps[1]}))

	lis := byTag(doc, atom.Li)
	assert.Equal(t, "#main > p:nth-child(2)", CSSPath(ps[1]))
	assert.Equal(t, "#main", CSSPath(main))
	assert.Equal(t, "html > body:nth-child(2) > ul:nth-child(2) > li:nth-child(2)", CSSPath(lis[1]))
}

func TestProperties(t *testing.T) {
	doc := parse(t)
	p := byTag(doc, atom.P)[0]

	props := doc.Properties(p)
	assert.Equal(t, "P", props["tagName"])
	assert.Equal(t, "a b", props["className"])
	assert.Equal(t, float64(1), props["nodeType"])
	assert.Equal(t, float64(1), props["childElementCount"])

	doc.SetProperty(p, "adConfig", map[string]any{"enabled": true})
	doc.SetProperty(p, "nothing", Undefined)
	props = doc.Properties(p)
	assert.Equal(t, map[string]any{"enabled": true}, props["adConfig"])
	assert.Equal(t, Undefined, props["nothing"])

	doc.DeleteProperty(p, "adConfig")
	_, ok := doc.Properties(p)["adConfig"]
	assert.False(t, ok)
	assert.Equal(t, float64(9), doc.Properties(doc.Root())["nodeType"])
}

func TestEvents(t *testing.T) {
	doc := parse(t)

	var got []string
	remove := doc.AddEventListener("mouseover", func(ev Event) { got = append(got, "a:"+ev.Type) })
	doc.AddEventListener("mouseover", func(ev Event) { got = append(got, "b:"+ev.Type) })
	doc.DispatchEvent(Event{Type: "mouseover"})
	doc.DispatchEvent(Event{Type: "click"})
	assert.Equal(t, []string{"a:mouseover", "b:mouseover"}, got)

	remove()
	got = nil
	doc.DispatchEvent(Event{Type: "mouseover"})
	assert.Equal(t, []string{"b:mouseover"}, got)
}
