package selector

import (
	"fmt"

	"golang.org/x/net/html"

	"extcss/dom"
)

// newContains builds :contains(text) and its aliases. Argument is substring
// or regular expression literal matched against text content of element.
func newContains(_ *compiler, tok Token) (matcher, error) {
	arg := tok.Arg()
	if arg == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidArgument)
	}
	test, err := stringMatcher(arg, false)
	if err != nil {
		return nil, err
	}
	return func(n *html.Node, ctx *evalContext) bool {
		return dom.IsElement(n) && test(ctx.textContent(n))
	}, nil
}
