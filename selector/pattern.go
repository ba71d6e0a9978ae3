package selector

import (
	"fmt"
	"regexp"
	"strings"
)

var reRegexpLiteral = regexp.MustCompile(`(?s)^/(.*)/([a-z]*)$`)

// parseRegexp recognizes "/source/flags" literal. Flags i, m and s are
// supported, g and u are accepted and ignored. When text is not a regular
// expression literal ok is false.
func parseRegexp(text string) (re *regexp.Regexp, ok bool, err error) {
	m := reRegexpLiteral.FindStringSubmatch(text)
	if m == nil || len(text) < 2 {
		return nil, false, nil
	}
	var prefix string
	for _, f := range m[2] {
		switch f {
		case 'i', 'm', 's':
			if !strings.ContainsRune(prefix, f) {
				prefix += string(f)
			}
		case 'g', 'u':
		default:
			return nil, true, fmt.Errorf("%w: unsupported regular expression flag %q", ErrInvalidArgument, f)
		}
	}
	source := m[1]
	if prefix != "" {
		source = "(?" + prefix + ")" + source
	}
	re, err = regexp.Compile(source)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return re, true, nil
}

// wildcardRegexp converts literal with "*" wildcards into anchored regular
// expression.
func wildcardRegexp(text string) *regexp.Regexp {
	parts := strings.Split(text, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	return regexp.MustCompile("(?s)^" + strings.Join(parts, ".*") + "$")
}

// stringMatcher returns predicate for literal-or-regexp argument. Literal
// is either searched as substring or, with wildcard set, matched as a whole
// with "*" wildcards.
func stringMatcher(text string, wildcard bool) (func(string) bool, error) {
	re, ok, err := parseRegexp(text)
	if err != nil {
		return nil, err
	}
	if ok {
		return re.MatchString, nil
	}
	if wildcard {
		return wildcardRegexp(text).MatchString, nil
	}
	return func(s string) bool { return strings.Contains(s, text) }, nil
}

// unquote removes matching quotes around s.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return unescapeString(s[1 : len(s)-1])
	}
	return s
}

// splitOutside splits s at the first sep which is not inside quotes,
// brackets or regular expression literal.
func splitOutside(s string, sep byte) (before, after string, found bool) {
	i := indexOutside(s, sep, 0)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// indexOutside returns position of sep starting at from skipping quoted
// strings, bracketed parts and regular expression literals.
func indexOutside(s string, sep byte, from int) int {
	depth := 0
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			i++
			continue
		case c == '"' || c == '\'':
			if j := skipString(s, i); j > 0 {
				i = j - 1
				continue
			}
		case c == '/' && sep != '/' && (i == from || s[i-1] == sep || s[i-1] == '.'):
			if j := skipRegexp(s, i); j > 0 {
				i = j - 1
				continue
			}
		case c == '(' || c == '[':
			depth++
			continue
		case c == ')' || c == ']':
			depth--
			continue
		}
		if c == sep && depth == 0 {
			return i
		}
	}
	return -1
}

// splitList splits selector list at top level commas.
func splitList(s string) []string {
	var out []string
	start := 0
	for {
		i := indexOutside(s, ',', start)
		if i < 0 {
			out = append(out, strings.TrimSpace(s[start:]))
			return out
		}
		out = append(out, strings.TrimSpace(s[start:i]))
		start = i + 1
	}
}
