// Package css parses extended stylesheets: selectors with extended
// pseudo-classes followed by declaration blocks.
package css

import (
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"

	"extcss/dom"
	"extcss/selector"
)

var (
	ErrEmptyStylesheet = errors.New("empty stylesheet")
	ErrUnclosedBlock   = errors.New("declaration block is not closed")
	ErrMissingBlock    = errors.New("selector is not followed by declaration block")
)

// Parser parses extended stylesheets into compiled rules.
type Parser struct {
	sel *selector.Engine
	log *zap.Logger
}

// NewParser creates a new stylesheet parser. Selectors are compiled by sel,
// when nil private selector engine is created.
func NewParser(sel *selector.Engine, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	if sel == nil {
		sel = selector.NewEngine(selector.WithLogger(log))
	}
	return &Parser{sel: sel, log: log.Named("css-parser")}
}

// Parse parses stylesheet text. Selectors which fail to compile are dropped
// with a warning, missing or unclosed declaration block fails the whole
// stylesheet. The optional source parameter identifies what's being parsed
// (for debug logging).
func (p *Parser) Parse(text string, source ...string) (*Stylesheet, error) {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing stylesheet", zap.String("source", source[0]), zap.Int("bytes", len(text)))
	}

	text = stripComments(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyStylesheet
	}

	sheet := &Stylesheet{
		Rules:    make([]Rule, 0),
		Warnings: make([]string, 0),
	}

	for pos := skipSpace(text, 0); pos < len(text); pos = skipSpace(text, pos) {
		next, err := p.parseRule(sheet, text, pos)
		if err != nil {
			return nil, err
		}
		pos = next
	}

	p.log.Debug("Stylesheet parsed",
		zap.Int("rules", len(sheet.Rules)),
		zap.Int("warnings", len(sheet.Warnings)),
		zap.Stringer("debug", sheet.Debug))
	return sheet, nil
}

// parseRule handles selector list and declaration block starting at pos and
// returns position right after the rule.
func (p *Parser) parseRule(sheet *Stylesheet, text string, pos int) (int, error) {
	res, _ := p.sel.Tokenize(text[pos:], true)
	groups, stop := res.Groups, pos+res.Next

	// selector ending with :remove() may omit the block, in that case it may
	// be followed directly by the next selector
	if cut, ok := p.removeBoundary(groups, text, pos); ok {
		res, _ = p.sel.Tokenize(text[pos:cut], true)
		groups, stop = res.Groups, cut
	}
	stop = skipSpace(text, stop)

	if stop >= len(text) || text[stop] != '{' {
		if len(groups) > 0 && allRemove(groups) {
			p.addRules(sheet, groups, Declarations{}, false)
			if stop < len(text) && text[stop] == ';' {
				stop++
			}
			return stop, nil
		}
		open := strings.IndexByte(text[stop:], '{')
		if open < 0 {
			return 0, fmt.Errorf("%w at offset %d: %q", ErrMissingBlock, pos, clip(text[pos:]))
		}
		end := blockEnd(text, stop+open+1)
		if end < 0 {
			return 0, fmt.Errorf("%w at offset %d", ErrUnclosedBlock, stop+open)
		}
		p.warn(sheet, "unsupported selector", strings.TrimSpace(text[pos:stop+open]), nil)
		return end + 1, nil
	}

	end := blockEnd(text, stop+1)
	if end < 0 {
		return 0, fmt.Errorf("%w at offset %d", ErrUnclosedBlock, stop)
	}

	style := p.parseDeclarations(text[stop+1 : end])

	debug := false
	if v, ok := style[PropDebug]; ok {
		delete(style, PropDebug)
		switch strings.ToLower(v) {
		case "global":
			sheet.Debug = DebugGlobal
		case "", "false", "0":
		default:
			debug = true
		}
	}

	if len(groups) == 0 {
		p.warn(sheet, "missing selector", strings.TrimSpace(text[pos:end+1]), nil)
		return end + 1, nil
	}
	p.addRules(sheet, groups, style, debug)
	return end + 1, nil
}

// addRules compiles every alternative into its own rule.
func (p *Parser) addRules(sheet *Stylesheet, groups []selector.Group, style Declarations, debug bool) {
	for _, g := range groups {
		text := g.String()
		if last, ok := g.Last(); ok && last.Type == selector.TokenRelation {
			p.warn(sheet, "dangling combinator", text, nil)
			continue
		}
		sel, err := p.sel.Compile(text)
		if err != nil {
			p.warn(sheet, "invalid selector", text, err)
			continue
		}
		rule := Rule{Selector: sel, Style: style.Clone(), Debug: debug}
		if sel.IsRemove() {
			rule.Style[PropRemove] = "true"
		}
		if len(rule.Style) == 0 {
			p.warn(sheet, "empty declaration block", text, nil)
			continue
		}
		sheet.Rules = append(sheet.Rules, rule)
	}
}

func (p *Parser) warn(sheet *Stylesheet, msg, text string, err error) {
	w := msg + ": " + text
	if err != nil {
		w += ": " + err.Error()
	}
	sheet.Warnings = append(sheet.Warnings, w)
	p.log.Warn("Skipping rule", zap.String("reason", msg), zap.String("selector", text), zap.Error(err))
}

// parseDeclarations parses declaration block content.
func (p *Parser) parseDeclarations(block string) Declarations {
	props := make(Declarations)

	parser := css.NewParser(parse.NewInputString(block), true)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// End of input or error
			if err := parser.Err(); err != nil && err != io.EOF {
				p.log.Debug("Declaration block parse error", zap.String("block", block), zap.Error(err))
			}
			return props

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			name := strings.ToLower(string(data))
			value, _ := dom.JoinValues(parser.Values())
			if value == "" {
				continue
			}
			props[name] = value
		}
	}
}

// removeBoundary finds :remove() which is followed by another selector
// without declaration block in between. Returns offset right after it.
// The same text may appear earlier inside pseudo-class arguments, so the
// cut is accepted only when everything before it is consumed by selectors
// ending with :remove().
func (p *Parser) removeBoundary(groups []selector.Group, text string, pos int) (int, bool) {
	value := ""
	for _, g := range groups {
		for i, t := range g {
			if isRemove(t) && i < len(g)-1 {
				value = t.Value
				break
			}
		}
		if value != "" {
			break
		}
	}
	if value == "" {
		return 0, false
	}

	for from := pos; ; {
		idx := strings.Index(text[from:], value)
		if idx < 0 {
			return 0, false
		}
		cut := from + idx + len(value)
		res, err := p.sel.Tokenize(text[pos:cut], false)
		if err == nil && len(res.Groups) > 0 {
			if last, ok := res.Groups[len(res.Groups)-1].Last(); ok && isRemove(last) {
				return cut, true
			}
		}
		from = cut
	}
}

func isRemove(t selector.Token) bool {
	return t.Type == selector.TokenPseudo && t.Name() == "remove"
}

func allRemove(groups []selector.Group) bool {
	for _, g := range groups {
		last, ok := g.Last()
		if !ok || !isRemove(last) {
			return false
		}
	}
	return true
}

// blockEnd returns index of '}' closing block which content starts at
// from. Nested blocks and quoted strings are skipped.
func blockEnd(text string, from int) int {
	depth := 0
	for i := from; i < len(text); i++ {
		switch c := text[i]; c {
		case '\\':
			i++
		case '"', '\'':
			j := i + 1
			for j < len(text) && text[j] != c {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			i = j
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// stripComments removes /* */ comments outside of quoted strings.
func stripComments(text string) string {
	if !strings.Contains(text, "/*") {
		return text
	}
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(text) {
				sb.WriteByte(c)
				i++
				c = text[i]
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return sb.String()
			}
			i += end + 3
			sb.WriteByte(' ')
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && strings.IndexByte(" \t\r\n\f", s[pos]) >= 0 {
		pos++
	}
	return pos
}

func clip(s string) string {
	const limit = 64
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
