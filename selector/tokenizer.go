package selector

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrEmptySelector = errors.New("empty selector")
	ErrSyntax        = errors.New("selector syntax error")
)

const (
	ws    = `[\x20\t\r\n\f]`
	ident = `(?:\\[\da-fA-F]{1,6}[\x20\t\r\n\f]?|\\[^\r\n\f]|[\w-]|[^\x00-\x7f])+`
)

var (
	reComma      = regexp.MustCompile(`^` + ws + `*,` + ws + `*`)
	reCombinator = regexp.MustCompile(`^` + ws + `*([>+~]|` + ws + `)` + ws + `*`)
	reID         = regexp.MustCompile(`^#(` + ident + `)`)
	reClass      = regexp.MustCompile(`^\.(` + ident + `)`)
	reTag        = regexp.MustCompile(`^(` + ident + `|[*])`)
	reAttr       = regexp.MustCompile(`^\[` + ws + `*(` + ident + `)(?:` + ws + `*([*^$|!~]?=)` + ws +
		`*(?:'((?:\\.|[^\\'])*)'|"((?:\\.|[^\\"])*)"|(` + ident + `))|)` + ws + `*\]`)
	reChild  = regexp.MustCompile(`^:(only|first|last|nth|nth-last)-(child|of-type)(?:\(` + ws + `*([^)]*?)` + ws + `*\)|)`)
	rePseudo = regexp.MustCompile(`^:(` + ident + `)`)
)

// TokenizeResult holds token groups and index of the first character which
// was not consumed (equals to input length when everything was consumed).
type TokenizeResult struct {
	Groups []Group
	Next   int
}

// tokenize splits selector into token groups. In tolerant mode it stops at
// the first unrecognized character instead of failing.
func tokenize(s string, tolerant bool) (TokenizeResult, error) {
	var (
		groups []Group
		group  Group
		pos    = skipSpace(s, 0)
	)

	if pos == len(s) && !tolerant {
		return TokenizeResult{}, ErrEmptySelector
	}

loop:
	for pos < len(s) {
		rest := s[pos:]

		if m := reComma.FindString(rest); m != "" {
			if len(group) == 0 {
				if tolerant {
					break loop
				}
				return TokenizeResult{}, fmt.Errorf("%w: empty selector in list at offset %d", ErrSyntax, pos)
			}
			groups = append(groups, group)
			group = nil
			pos += len(m)
			continue
		}

		if m := reCombinator.FindStringSubmatch(rest); m != nil {
			comb := m[1]
			next := pos + len(m[0])
			if strings.TrimSpace(comb) == "" {
				// whitespace before comma, end of input or garbage is not a combinator
				if next >= len(s) || s[next] == ',' || !startsSimple(s[next:]) {
					pos = next
					continue
				}
				comb = " "
			}
			group = append(group, Token{Type: TokenRelation, Value: comb, Matches: []string{comb}})
			pos = next
			continue
		}

		tok, n, err := simpleToken(rest)
		if err != nil {
			if tolerant {
				break loop
			}
			return TokenizeResult{}, fmt.Errorf("%w: %w at offset %d", ErrSyntax, err, pos)
		}
		if n == 0 {
			if tolerant {
				break loop
			}
			r, _ := utf8.DecodeRuneInString(rest)
			return TokenizeResult{}, fmt.Errorf("%w: unexpected character %q at offset %d", ErrSyntax, r, pos)
		}
		group = append(group, tok)
		pos += n
	}

	if len(group) > 0 {
		groups = append(groups, group)
	} else if len(groups) > 0 && !tolerant {
		return TokenizeResult{}, fmt.Errorf("%w: trailing comma", ErrSyntax)
	}
	return TokenizeResult{Groups: groups, Next: pos}, nil
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	return pos
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f'
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c == '\\' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func startsSimple(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '#', '.', '[', ':', '*':
		return true
	}
	return isIdentByte(s[0])
}

// simpleToken recognizes single non-relation token at the beginning of s.
// Zero length means nothing was recognized.
func simpleToken(s string) (Token, int, error) {
	if m := reID.FindStringSubmatch(s); m != nil {
		return Token{Type: TokenID, Value: m[0], Matches: []string{unescape(m[1])}}, len(m[0]), nil
	}
	if m := reClass.FindStringSubmatch(s); m != nil {
		return Token{Type: TokenClass, Value: m[0], Matches: []string{unescape(m[1])}}, len(m[0]), nil
	}
	if m := reTag.FindStringSubmatch(s); m != nil {
		return Token{Type: TokenTag, Value: m[0], Matches: []string{strings.ToLower(unescape(m[1]))}}, len(m[0]), nil
	}
	if m := reAttr.FindStringSubmatch(s); m != nil {
		name := unescape(m[1])
		value := m[3] + m[4] + unescape(m[5])
		if m[3] != "" || m[4] != "" {
			value = unescape(value)
		}
		// legacy [-ext-name="arg"] form of extended pseudo-classes
		if after, ok := strings.CutPrefix(name, "-ext-"); ok && m[2] == "=" {
			return Token{
				Type:    TokenPseudo,
				Value:   ":" + after + "(" + quoteString(value) + ")",
				Matches: []string{strings.ToLower(after), value},
				HasArg:  true,
			}, len(m[0]), nil
		}
		return Token{Type: TokenAttr, Value: m[0], Matches: []string{strings.ToLower(name), m[2], value}}, len(m[0]), nil
	}
	if m := reChild.FindStringSubmatch(s); m != nil && (len(m[0]) == len(s) || !isIdentByte(s[len(m[0])])) {
		return Token{Type: TokenChild, Value: m[0], Matches: []string{m[1], m[2], m[3]}}, len(m[0]), nil
	}
	if m := rePseudo.FindStringSubmatch(s); m != nil {
		name := strings.ToLower(unescape(m[1]))
		n := len(m[0])
		if n >= len(s) || s[n] != '(' {
			return Token{Type: TokenPseudo, Value: m[0], Matches: []string{name, ""}}, n, nil
		}
		arg, end, err := scanArgument(s, n+1)
		if err != nil {
			return Token{}, 0, fmt.Errorf("pseudo-class :%s: %w", name, err)
		}
		return Token{Type: TokenPseudo, Value: s[:end], Matches: []string{name, arg}, HasArg: true}, end, nil
	}
	return Token{}, 0, nil
}

// scanArgument extracts pseudo-class argument starting right after opening
// parenthesis. Forms are tried in order: single quoted string, balanced
// brackets, everything up to the last closing parenthesis. Returns argument
// and index right after closing parenthesis.
func scanArgument(s string, start int) (string, int, error) {
	// quoted
	i := skipSpace(s, start)
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		if j := skipString(s, i); j > 0 {
			k := skipSpace(s, j)
			if k < len(s) && s[k] == ')' {
				return unescapeString(s[i+1 : j-1]), k + 1, nil
			}
		}
	}

	// balanced
	if end, ok := scanBalanced(s, start); ok {
		return strings.TrimSpace(s[start:end]), end + 1, nil
	}

	// greedy
	if idx := strings.LastIndexByte(s[start:], ')'); idx >= 0 {
		end := start + idx
		return strings.TrimSpace(s[start:end]), end + 1, nil
	}
	return "", 0, errors.New("missing closing parenthesis")
}

// skipString returns index right after closing quote of the string starting
// at i or -1.
func skipString(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return -1
}

// skipRegexp returns index right after closing slash of regular expression
// literal starting at i or -1.
func skipRegexp(s string, i int) int {
	inClass := false
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				return j + 1
			}
		}
	}
	return -1
}

func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	prev := byte('(')
	for i := start; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			i++
		case '"', '\'':
			j := skipString(s, i)
			if j < 0 {
				return 0, false
			}
			i = j - 1
		case '/':
			if prev == '(' || prev == ':' || prev == '=' || prev == '.' {
				if j := skipRegexp(s, i); j > 0 {
					i = j - 1
				}
			}
		case '(', '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return 0, false
			}
		case ')':
			if depth == 0 {
				return i, true
			}
			depth--
		}
		if !isSpace(c) {
			prev = c
		}
	}
	return 0, false
}

// unescape resolves CSS escapes in identifiers.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		j := i + 1
		for j < len(s) && j < i+7 && isHex(s[j]) {
			j++
		}
		if j == i+1 {
			sb.WriteByte(s[j])
			i = j
			continue
		}
		v, _ := strconv.ParseUint(s[i+1:j], 16, 32)
		if v == 0 || v > utf8.MaxRune {
			v = utf8.RuneError
		}
		sb.WriteRune(rune(v))
		if j < len(s) && isSpace(s[j]) {
			j++
		}
		i = j - 1
	}
	return sb.String()
}

// unescapeString removes backslashes in front of quotes and backslashes.
func unescapeString(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\'' || s[i+1] == '\\') {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// quoteString is the reverse of unescapeString.
func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte('"')
	return sb.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
