package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"extcss/dom"
)

const fixture = `<!DOCTYPE html>
<html><head><style>
.banner { width: 300px; }
#promo::before { content: "Sponsored"; }
</style></head><body>
<div id="main">
<div class="ad" id="ad1" style="width: 300px"><img src="a.png"><span>Buy now</span></div>
<div class="ad" id="ad2" style="width: 100px; opacity: 0.504"><span>Free stuff</span></div>
<div class="content" id="c1"><p id="p1">Hello <b>world</b></p><p id="p2" data-role="banner-top">Second</p></div>
<div class="banner" id="b1">Banner text</div>
<div id="promo">Promo</div>
</div>
<div id="g"><div id="pp"><div id="c"></div></div></div>
</body></html>`

func loadFixture(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(fixture)
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *dom.Document, id string) *html.Node {
	t.Helper()
	for _, n := range dom.Elements(doc.Root()) {
		if dom.AttrValue(n, "id") == id {
			return n
		}
	}
	t.Fatalf("element #%s not found", id)
	return nil
}

func ids(nodes []*html.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, dom.AttrValue(n, "id"))
	}
	return out
}

func TestStrategySelection(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		selector string
		want     StrategyKind
	}{
		{"div.ad > img", NativeDelegate},
		{"div:not(.ad)", NativeDelegate},
		{"li:nth-child(2n+1)", NativeDelegate},
		{"div:not(:contains(x))", CustomWhole},
		{"#main > div:contains(Buy)", SplitPrefix},
		{"#main div.ad:has(> img)", SplitPrefix},
		{"div:contains(Buy) > img", CustomWhole},
		{"#main > div:first", CustomWhole},
		{"#main > div:contains(Buy):nth-child(1)", CustomWhole},
		{"a, div:contains(x)", CustomWhole},
		{"div:upward(2)", TerminalPseudo},
		{"div:xpath(..)", TerminalPseudo},
		{":xpath(//div)", TerminalPseudo},
		{"div.ad:remove()", TerminalPseudo},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			sel, err := e.Compile(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Strategy())
			assert.Equal(t, tt.selector, sel.String())
		})
	}
}

func TestCompileErrors(t *testing.T) {
	e := NewEngine()

	tests := []struct {
		selector string
		err      error
	}{
		{"", ErrEmptySelector},
		{"div:xpath(..) > p", ErrTerminalPosition},
		{"a:upward(2) b", ErrTerminalPosition},
		{"div:remove(), p", ErrTerminalPosition},
		{"div:has(p:remove())", ErrTerminalPosition},
		{":remove()", ErrInvalidArgument},
		{"div:remove(x)", ErrInvalidArgument},
		{"div:nth-ancestor(0)", ErrInvalidArgument},
		{"div:nth-ancestor(256)", ErrInvalidArgument},
		{"div:upward()", ErrInvalidArgument},
		{"div:xpath(//div[)", ErrInvalidArgument},
		{"div:first > span", ErrInvalidArgument},
		{"div:eq(x)", ErrInvalidArgument},
		{"div:contains(/a/q)", ErrInvalidArgument},
		{"div:matches-css(width)", ErrInvalidArgument},
		{"div:bogus", ErrUnknownPseudoClass},
		{"div >", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			_, err := e.Compile(tt.selector)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompileCached(t *testing.T) {
	e := NewEngine()

	first, err := e.Compile("div:contains(x)")
	require.NoError(t, err)
	second, err := e.Compile("div:contains(x)")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPseudoClasses(t *testing.T) {
	doc := loadFixture(t)
	doc.SetProperty(byID(t, doc, "ad1"), "adConfig", map[string]any{"enabled": true, "slot": nil, "width": float64(300)})
	doc.SetProperty(byID(t, doc, "ad2"), "adConfig", map[string]any{"enabled": false, "slot": dom.Undefined})

	e := NewEngine()

	tests := []struct {
		selector string
		want     []string
	}{
		// text
		{"div.ad:contains(Buy)", []string{"ad1"}},
		{"div.ad:has-text(/free/i)", []string{"ad2"}},
		{"p:-abp-contains(/WORLD/i)", []string{"p1"}},
		{`div[-ext-contains="Banner"]`, []string{"main", "b1"}},

		// style
		{"#main > div:matches-css(width: 300px)", []string{"ad1", "b1"}},
		{"div.ad:matches-css(width: /30[0-9]px/)", []string{"ad1"}},
		{"div.ad:matches-css(width: 1*px)", []string{"ad2"}},
		{"div.ad:matches-css(opacity: 0.5)", []string{"ad2"}},
		{"#main > div:matches-css-before(content: Sponsored)", []string{"promo"}},
		{"p:matches-css(display: block)", []string{"p1", "p2"}},

		// attributes and properties
		{`p:matches-attr("data-role"="banner-*")`, []string{"p2"}},
		{"p:matches-attr(/^data-/)", []string{"p2"}},
		{"div:matches-property(adConfig.enabled=true)", []string{"ad1"}},
		{`div:matches-property("/^ad/.enabled"="false")`, []string{"ad2"}},
		{"div:matches-property(adConfig.slot=null)", []string{"ad1"}},
		{"div:matches-property(adConfig.slot=undefined)", []string{"ad2"}},
		{"div:matches-property(adConfig.width=300)", []string{"ad1"}},
		{"div:matches-property(adConfig.width=300.0)", []string{"ad1"}},
		{`div:matches-property("adConfig.width"="3e2")`, []string{"ad1"}},
		{"div:matches-property(adConfig.width=/^30/)", []string{"ad1"}},
		{"div:matches-property(adConfig.enabled=1)", []string{}},
		{"b:matches-property(tagName=B)", []string{""}},
		{"#p1 > :matches-property(tagName=B)", []string{""}},

		// relational
		{"div:has(> img)", []string{"ad1"}},
		{"div.ad:if(span)", []string{"ad1", "ad2"}},
		{"div.ad:if-not(img)", []string{"ad2"}},
		{"div:has(+ .banner)", []string{"c1"}},
		{"div:-abp-has(~ #promo)", []string{"ad1", "ad2", "c1", "b1"}},
		{"#main > div:has(> span:contains(Free))", []string{"ad2"}},
		{"#main > div:not(.ad)", []string{"c1", "b1", "promo"}},
		{"#main > div:not(:contains(Buy))", []string{"ad2", "c1", "b1", "promo"}},
		{"#main > :is(.ad, .banner, :bogus(x))", []string{"ad1", "ad2", "b1"}},

		// positional
		{"#main > div:first", []string{"ad1"}},
		{"#main > div:last", []string{"promo"}},
		{"#main > div:eq(1)", []string{"ad2"}},
		{"#main > div:eq(-1)", []string{"promo"}},
		{"#main > div:gt(2)", []string{"b1", "promo"}},
		{"#main > div:lt(2)", []string{"ad1", "ad2"}},
		{"#main > div:even", []string{"ad1", "c1", "promo"}},
		{"#main > div:odd", []string{"ad2", "b1"}},
		{"div.ad:last", []string{"ad2"}},
		{"div:has(> span:first)", []string{"ad1", "ad2"}},

		// terminal
		{"#c:upward(2)", []string{"g"}},
		{"#c:upward(#g)", []string{"g"}},
		{"#c:upward(div)", []string{"pp"}},
		{"#c:nth-ancestor(2)", []string{"g"}},
		{"#c:xpath(../..)", []string{"g"}},
		{`:xpath(//div[@id="c"])`, []string{"c"}},
		{"#g:xpath(.//div[not(*)])", []string{"c"}},
		{"img:upward(1)", []string{"ad1"}},
		{"div.ad:remove()", []string{"ad1", "ad2"}},

		// delegated standard pseudo-classes
		{"#c1 p:first-child:contains(Hello)", []string{"p1"}},
		{"#pp div:empty", []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			sel, err := e.Compile(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(sel.QuerySelectorAll(doc)))
		})
	}
}

func TestScopeAtDocumentLevel(t *testing.T) {
	doc := loadFixture(t)
	e := NewEngine()

	got, err := e.Query(doc, ":scope > body")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, doc.Body(), got[0])
}

// Native, split and custom evaluation of the same selector must agree.
func TestStrategiesAgree(t *testing.T) {
	doc := loadFixture(t)
	e := NewEngine()

	selectors := []string{
		"#main > div.ad",
		"#main div",
		"div.content p + p",
		"#main > div ~ div.banner",
		"#main > div:contains(Buy)",
		"#main div:contains(Free)",
		"#main > div:has(> span:contains(Free))",
		"#main > div:not(:contains(Buy))",
		"#main > div:matches-css(width: 300px)",
		"#main > .ad + div:contains(Hello)",
		"body div[id^=ad]",
		"p, img, span",
		"#g div:not(#c)",
	}

	for _, text := range selectors {
		t.Run(text, func(t *testing.T) {
			fast, err := e.Compile(text)
			require.NoError(t, err)
			custom, err := e.compile(text, true)
			require.NoError(t, err)
			require.Equal(t, CustomWhole, custom.Strategy())

			want := custom.QuerySelectorAll(doc)
			assert.NotEmpty(t, want)
			assert.Equal(t, ids(want), ids(fast.QuerySelectorAll(doc)), "strategy %s", fast.Strategy())

			for _, n := range dom.Elements(doc.Root()) {
				assert.Equal(t, custom.Matches(doc, n), fast.Matches(doc, n), "%s on %s#%s", fast.Strategy(), n.Data, dom.AttrValue(n, "id"))
			}
		})
	}
}

func TestMatches(t *testing.T) {
	doc := loadFixture(t)
	e := NewEngine()

	sel, err := e.Compile("div.ad:has(> img):matches-css(width: /30[0-9]px/)")
	require.NoError(t, err)
	assert.True(t, sel.Matches(doc, byID(t, doc, "ad1")))
	assert.False(t, sel.Matches(doc, byID(t, doc, "ad2")))
	assert.False(t, sel.Matches(doc, doc.Root()))
	assert.False(t, sel.Matches(nil, byID(t, doc, "ad1")))

	up, err := e.Compile("#c:upward(2)")
	require.NoError(t, err)
	assert.True(t, up.Matches(doc, byID(t, doc, "g")))
	assert.False(t, up.Matches(doc, byID(t, doc, "pp")))

	remove, err := e.Compile("div.ad:remove()")
	require.NoError(t, err)
	assert.True(t, remove.IsRemove())
	assert.False(t, up.IsRemove())
}

func TestLiveDocument(t *testing.T) {
	doc := loadFixture(t)
	e := NewEngine()

	sel, err := e.Compile("#main > div:contains(Buy)")
	require.NoError(t, err)
	assert.Equal(t, []string{"ad1"}, ids(sel.QuerySelectorAll(doc)))

	doc.SetText(byID(t, doc, "b1"), "Buy more")
	assert.Equal(t, []string{"ad1", "b1"}, ids(sel.QuerySelectorAll(doc)))
}
