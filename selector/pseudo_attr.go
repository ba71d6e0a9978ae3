package selector

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"extcss/dom"
)

// newMatchesAttr builds :matches-attr("name"="value"). Both parts are
// literals with "*" wildcard or regular expression literals, value part is
// optional.
func newMatchesAttr(_ *compiler, tok Token) (matcher, error) {
	namePart, valuePart, hasValue := splitOutside(tok.Arg(), '=')
	namePart = unquote(strings.TrimSpace(namePart))
	if namePart == "" {
		return nil, fmt.Errorf("%w: attribute name is required", ErrInvalidArgument)
	}
	nameTest, err := stringMatcher(namePart, true)
	if err != nil {
		return nil, err
	}

	valueTest := func(string) bool { return true }
	if hasValue {
		valueTest, err = stringMatcher(unquote(strings.TrimSpace(valuePart)), true)
		if err != nil {
			return nil, err
		}
	}

	return func(n *html.Node, _ *evalContext) bool {
		if !dom.IsElement(n) {
			return false
		}
		for _, a := range n.Attr {
			if nameTest(a.Key) && valueTest(a.Val) {
				return true
			}
		}
		return false
	}, nil
}
