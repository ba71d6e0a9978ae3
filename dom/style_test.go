package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestParseDeclarations(t *testing.T) {
	decls, err := ParseDeclarations(`color: red;  margin : 0  auto !important; background:url("a b.png")`)
	require.NoError(t, err)
	assert.Equal(t, []Declaration{
		{Property: "color", Value: "red"},
		{Property: "margin", Value: "0 auto", Important: true},
		{Property: "background", Value: `url("a b.png")`},
	}, decls)

	assert.Equal(t, `color: red; margin: 0 auto !important; background: url("a b.png");`, SerializeDeclarations(decls))

	decls, err = ParseDeclarations("")
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestInlineStyle(t *testing.T) {
	doc := parse(t)
	p := byTag(doc, atom.P)[0]

	rec := &recorder{}
	o := doc.NewMutationObserver(rec.callback)
	o.Observe(p, ObserveOptions{Attributes: true})

	_, _, ok := doc.StyleProperty(p, "color")
	assert.False(t, ok)

	doc.SetStyleProperty(p, "Color", "red", true)
	assert.Equal(t, "color: red !important;", AttrValue(p, "style"))
	v, important, ok := doc.StyleProperty(p, "color")
	assert.True(t, ok)
	assert.True(t, important)
	assert.Equal(t, "red", v)
	require.Len(t, rec.records, 1)

	// same value does not touch the attribute
	doc.SetStyleProperty(p, "color", "red", true)
	assert.Len(t, rec.records, 1)

	doc.SetStyleProperty(p, "display", "none", false)
	assert.Equal(t, "color: red !important; display: none;", AttrValue(p, "style"))

	doc.RemoveStyleProperty(p, "color")
	assert.Equal(t, "display: none;", AttrValue(p, "style"))
	doc.RemoveStyleProperty(p, "color")
	assert.Len(t, rec.records, 3)
}

func TestComputedStyle(t *testing.T) {
	doc, err := ParseString(`<html><head><style>
p { color: blue; display: flex }
#x { color: green }
.hidden { display: none !important }
@media screen { span { width: 300px } }
p::before { content: "ad" }
</style></head><body>
<p id="x" class="hidden" style="color: black; display: block">t</p>
<p style="color: red !important">u</p>
<span></span><li></li><img>
</body></html>`)
	require.NoError(t, err)

	ps := byTag(doc, atom.P)
	st := doc.ComputedStyle(ps[0], "")
	assert.Equal(t, "black", st["color"])
	assert.Equal(t, "none", st["display"])
	assert.Equal(t, "visible", st["visibility"])

	st = doc.ComputedStyle(ps[1], "")
	assert.Equal(t, "red", st["color"])
	assert.Equal(t, "flex", st["display"])

	assert.Equal(t, "300px", doc.ComputedStyle(byTag(doc, atom.Span)[0], "")["width"])
	assert.Equal(t, "inline", doc.ComputedStyle(byTag(doc, atom.Span)[0], "")["display"])
	assert.Equal(t, "list-item", doc.ComputedStyle(byTag(doc, atom.Li)[0], "")["display"])
	assert.Equal(t, "inline-block", doc.ComputedStyle(byTag(doc, atom.Img)[0], "")["display"])
	assert.Equal(t, "none", doc.ComputedStyle(byTag(doc, atom.Head)[0], "")["display"])

	before := doc.ComputedStyle(ps[0], "::before")
	assert.Equal(t, `"ad"`, before["content"])
	assert.Equal(t, "none", doc.ComputedStyle(ps[0], "after")["content"])

	// page rules are reparsed when style elements change
	style := byTag(doc, atom.Style)[0]
	doc.SetText(style, "p { opacity: 0.5 }")
	assert.Equal(t, "0.5", doc.ComputedStyle(ps[1], "")["opacity"])
	assert.Equal(t, "inline", doc.ComputedStyle(&html.Node{Type: html.TextNode}, "")["display"])
}
