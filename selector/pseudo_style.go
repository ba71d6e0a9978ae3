package selector

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"extcss/dom"
)

var reURL = regexp.MustCompile(`url\([\x20\t\r\n\f]*(?:"([^"]*)"|'([^']*)'|([^)'"]*?))[\x20\t\r\n\f]*\)`)

// normalizeURLs rewrites url(...) values so that address is always in
// double quotes.
func normalizeURLs(s string) string {
	return reURL.ReplaceAllString(s, `url("$1$2$3")`)
}

// normalizeStyleValue brings computed value to the form patterns are
// written against.
func normalizeStyleValue(prop, value string) string {
	switch prop {
	case "content":
		value = unquote(value)
	case "opacity":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			value = strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
		}
	}
	return normalizeURLs(value)
}

// newMatchesCSS builds :matches-css(prop: value) for element itself (empty
// pseudo) or its pseudo-element.
func newMatchesCSS(pseudo string) filterFactory {
	return func(_ *compiler, tok Token) (matcher, error) {
		prop, pattern, found := strings.Cut(tok.Arg(), ":")
		prop = strings.ToLower(strings.TrimSpace(prop))
		pattern = strings.TrimSpace(pattern)
		if !found || prop == "" || pattern == "" {
			return nil, fmt.Errorf("%w: expected \"property: value\"", ErrInvalidArgument)
		}

		re, ok, err := parseRegexp(pattern)
		if err != nil {
			return nil, err
		}
		if !ok {
			if prop == "content" {
				pattern = unquote(pattern)
			}
			re = wildcardRegexp(normalizeURLs(pattern))
		}

		return func(n *html.Node, ctx *evalContext) bool {
			if !dom.IsElement(n) {
				return false
			}
			value, ok := ctx.computedStyle(n, pseudo)[prop]
			if !ok {
				return false
			}
			return re.MatchString(normalizeStyleValue(prop, value))
		}, nil
	}
}
