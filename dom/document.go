// Package dom provides a live document model on top of golang.org/x/net/html
// trees: mutation API with observers, events, ready state, per-node property
// side-table, inline style editing and computed styles.
package dom

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ReadyState mirrors document loading progress.
type ReadyState int

const (
	ReadyLoading ReadyState = iota
	ReadyInteractive
	ReadyComplete
)

func (s ReadyState) String() string {
	switch s {
	case ReadyLoading:
		return "loading"
	case ReadyInteractive:
		return "interactive"
	case ReadyComplete:
		return "complete"
	default:
		return fmt.Sprintf("ReadyState(%d)", int(s))
	}
}

// Document owns an html tree and is the only way engine and host code are
// expected to mutate it, so that observers get notified.
type Document struct {
	root  *html.Node
	state ReadyState
	log   *zap.Logger

	onReady   []func()
	observers []*MutationObserver
	listeners map[string][]*listener
	nextID    int
	props     map[*html.Node]map[string]any
	styles    *styler
}

// Option configures Document.
type Option func(*Document)

// WithReadyState sets initial ready state, documents are complete by default.
func WithReadyState(s ReadyState) Option {
	return func(d *Document) {
		d.state = s
	}
}

// WithLogger sets logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(d *Document) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDocument wraps already parsed tree.
func NewDocument(root *html.Node, opts ...Option) *Document {
	d := &Document{
		root:      root,
		state:     ReadyComplete,
		log:       zap.NewNop(),
		listeners: make(map[string][]*listener),
		props:     make(map[*html.Node]map[string]any),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.Named("dom")
	d.styles = newStyler(d)
	return d
}

// Parse reads HTML document from r.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse html: %w", err)
	}
	return NewDocument(root, opts...), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// Root returns document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// DocumentElement returns <html> element.
func (d *Document) DocumentElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// Body returns <body> element if present.
func (d *Document) Body() *html.Node {
	de := d.DocumentElement()
	if de == nil {
		return nil
	}
	for c := de.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// Render writes document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// ReadyState returns current loading state.
func (d *Document) ReadyState() ReadyState {
	return d.state
}

// SetReadyState advances loading state. Callbacks registered with OnReady run
// once when document becomes complete.
func (d *Document) SetReadyState(s ReadyState) {
	if s <= d.state {
		return
	}
	d.state = s
	if s != ReadyComplete {
		return
	}
	pending := d.onReady
	d.onReady = nil
	for _, fn := range pending {
		fn()
	}
}

// OnReady runs fn once document is complete, immediately if it already is.
func (d *Document) OnReady(fn func()) {
	if d.state == ReadyComplete {
		fn()
		return
	}
	d.onReady = append(d.onReady, fn)
}
