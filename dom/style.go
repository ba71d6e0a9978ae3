package dom

import (
	"io"
	"slices"
	"strings"

	tdparse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Declaration is a single property of an inline style.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// ParseDeclarations parses declaration list, like the content of style
// attribute. Declarations parsed before a syntax error are returned together
// with the error.
func ParseDeclarations(text string) ([]Declaration, error) {
	var decls []Declaration

	parser := css.NewParser(tdparse.NewInputString(text), true)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil && err != io.EOF {
				return decls, err
			}
			return decls, nil
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			value, important := JoinValues(parser.Values())
			decls = append(decls, Declaration{
				Property:  strings.ToLower(string(data)),
				Value:     value,
				Important: important,
			})
		}
	}
}

// JoinValues restores textual value from declaration tokens collapsing
// whitespace and detects trailing "!important".
func JoinValues(tokens []css.Token) (string, bool) {
	important := false
	end := len(tokens)
	for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end > 0 && tokens[end-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[end-1].Data), "important") {
		i := end - 2
		for i >= 0 && tokens[i].TokenType == css.WhitespaceToken {
			i--
		}
		if i >= 0 && tokens[i].TokenType == css.DelimToken && string(tokens[i].Data) == "!" {
			important = true
			end = i
		}
	}

	var sb strings.Builder
	for _, t := range tokens[:end] {
		if t.TokenType == css.WhitespaceToken {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String()), important
}

// SerializeDeclarations produces style attribute text.
func SerializeDeclarations(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.Property + ": " + d.Value
		if d.Important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}

// InlineStyle returns parsed style attribute of n.
func (d *Document) InlineStyle(n *html.Node) []Declaration {
	text, ok := Attr(n, "style")
	if !ok || strings.TrimSpace(text) == "" {
		return nil
	}
	decls, err := ParseDeclarations(text)
	if err != nil {
		d.log.Debug("Malformed inline style", zap.String("style", text), zap.Error(err))
	}
	return decls
}

// StyleProperty returns value of inline style property.
func (d *Document) StyleProperty(n *html.Node, prop string) (value string, important bool, ok bool) {
	prop = strings.ToLower(prop)
	decls := d.InlineStyle(n)
	// the last declaration wins
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].Property == prop {
			return decls[i].Value, decls[i].Important, true
		}
	}
	return "", false, false
}

// SetStyleProperty sets inline style property. Attribute is only written
// (and observers notified) when resulting text actually changes.
func (d *Document) SetStyleProperty(n *html.Node, prop, value string, important bool) {
	prop = strings.ToLower(prop)
	decls := d.InlineStyle(n)
	decls = slices.DeleteFunc(decls, func(x Declaration) bool { return x.Property == prop })
	decls = append(decls, Declaration{Property: prop, Value: value, Important: important})

	text := SerializeDeclarations(decls)
	if cur, ok := Attr(n, "style"); ok && cur == text {
		return
	}
	d.SetAttribute(n, "style", text)
}

// RemoveStyleProperty deletes inline style property.
func (d *Document) RemoveStyleProperty(n *html.Node, prop string) {
	prop = strings.ToLower(prop)
	decls := d.InlineStyle(n)
	n0 := len(decls)
	decls = slices.DeleteFunc(decls, func(x Declaration) bool { return x.Property == prop })
	if len(decls) == n0 {
		return
	}
	d.SetAttribute(n, "style", SerializeDeclarations(decls))
}
