package dom

import (
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	douceur "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type pageRule struct {
	sel    cascadia.Sel
	spec   cascadia.Specificity
	pseudo string
	decls  []Declaration
	order  int
}

// styler keeps page rules parsed from <style> elements. Rules are reparsed
// only when combined text of style elements changes.
type styler struct {
	doc    *Document
	source string
	rules  []pageRule
}

func newStyler(d *Document) *styler {
	return &styler{doc: d}
}

func (s *styler) pageRules() []pageRule {
	var sb strings.Builder
	for _, n := range Elements(s.doc.root) {
		if n.DataAtom == atom.Style {
			sb.WriteString(TextContent(n))
			sb.WriteByte('\n')
		}
	}
	source := sb.String()
	if source == s.source {
		return s.rules
	}
	s.source, s.rules = source, nil
	if strings.TrimSpace(source) == "" {
		return nil
	}

	sheet, err := parser.Parse(source)
	if err != nil {
		s.doc.log.Debug("Unable to parse page stylesheet", zap.Error(err))
		return nil
	}

	var walk func(rules []*douceur.Rule)
	walk = func(rules []*douceur.Rule) {
		for _, rule := range rules {
			switch rule.Kind {
			case douceur.AtRule:
				// media queries are not evaluated, embedded rules always apply
				if rule.EmbedsRules() {
					walk(rule.Rules)
				}
			case douceur.QualifiedRule:
				decls := convertDeclarations(rule.Declarations)
				if len(decls) == 0 || len(rule.Selectors) == 0 {
					continue
				}
				group, err := cascadia.ParseGroupWithPseudoElements(strings.Join(rule.Selectors, ","))
				if err != nil {
					s.doc.log.Debug("Skipping page rule", zap.Strings("selectors", rule.Selectors), zap.Error(err))
					continue
				}
				for _, sel := range group {
					s.rules = append(s.rules, pageRule{
						sel:    sel,
						spec:   sel.Specificity(),
						pseudo: strings.ToLower(sel.PseudoElement()),
						decls:  decls,
						order:  len(s.rules),
					})
				}
			}
		}
	}
	walk(sheet.Rules)
	return s.rules
}

func convertDeclarations(list []*douceur.Declaration) []Declaration {
	out := make([]Declaration, 0, len(list))
	for _, decl := range list {
		if decl == nil {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl.Property))
		val := strings.TrimSpace(decl.Value)
		if prop == "" || val == "" {
			continue
		}
		out = append(out, Declaration{Property: prop, Value: val, Important: decl.Important})
	}
	return out
}

type cascaded struct {
	level int // 0 - sheet, 1 - inline, 2 - sheet !important, 3 - inline !important
	spec  cascadia.Specificity
	order int
	decl  Declaration
}

// ComputedStyle resolves style of element n, or of its pseudo-element when
// pseudo is "before" or "after" (leading colons are ignored). Values come
// from defaults, page <style> elements and inline style attribute ordered by
// importance, specificity and source order. Properties are not inherited.
func (d *Document) ComputedStyle(n *html.Node, pseudo string) map[string]string {
	pseudo = strings.ToLower(strings.TrimLeft(pseudo, ":"))

	out := defaultStyle(n, pseudo)
	if !IsElement(n) {
		return out
	}

	var entries []cascaded
	for _, r := range d.styles.pageRules() {
		if r.pseudo != pseudo || !r.sel.Match(n) {
			continue
		}
		for _, decl := range r.decls {
			level := 0
			if decl.Important {
				level = 2
			}
			entries = append(entries, cascaded{level: level, spec: r.spec, order: r.order, decl: decl})
		}
	}
	if pseudo == "" {
		for i, decl := range d.InlineStyle(n) {
			level := 1
			if decl.Important {
				level = 3
			}
			entries = append(entries, cascaded{level: level, order: i, decl: decl})
		}
	}

	slices.SortStableFunc(entries, func(a, b cascaded) int {
		if a.level != b.level {
			return a.level - b.level
		}
		if a.spec.Less(b.spec) {
			return -1
		}
		if b.spec.Less(a.spec) {
			return 1
		}
		return a.order - b.order
	})
	for _, e := range entries {
		out[e.decl.Property] = e.decl.Value
	}
	return out
}

var blockElements = map[atom.Atom]bool{
	atom.Html: true, atom.Body: true, atom.Div: true, atom.P: true, atom.Section: true,
	atom.Article: true, atom.Aside: true, atom.Header: true, atom.Footer: true, atom.Nav: true,
	atom.Main: true, atom.Ul: true, atom.Ol: true, atom.Form: true, atom.Table: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Figure: true, atom.Hr: true, atom.Dl: true,
	atom.Fieldset: true, atom.Address: true,
}

var hiddenElements = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Meta: true, atom.Link: true,
	atom.Title: true, atom.Template: true, atom.Noscript: true,
}

func defaultStyle(n *html.Node, pseudo string) map[string]string {
	out := map[string]string{
		"display":    "inline",
		"visibility": "visible",
		"opacity":    "1",
		"position":   "static",
	}
	if pseudo != "" {
		out["content"] = "none"
		return out
	}
	switch {
	case n == nil || !IsElement(n):
	case hiddenElements[n.DataAtom]:
		out["display"] = "none"
	case blockElements[n.DataAtom]:
		out["display"] = "block"
	case n.DataAtom == atom.Li:
		out["display"] = "list-item"
	case n.DataAtom == atom.Img || n.DataAtom == atom.Button || n.DataAtom == atom.Input:
		out["display"] = "inline-block"
	}
	return out
}
