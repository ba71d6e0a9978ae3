// Package debug produces human readable dumps for debug reports.
package debug

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// TreeWriter accumulates indented lines.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) Bytes() []byte {
	return []byte(tw.w.String())
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Field writes "label: value" with value quoted, empty value is written as
// is.
func (tw TreeWriter) Field(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// StartTag writes opening tag of an element with its attributes.
func (tw TreeWriter) StartTag(depth int, n *html.Node) {
	tw.indent(depth)
	tw.w.WriteString(startTag(n))
	tw.w.WriteByte('\n')
}

func startTag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return "<?>"
	}
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(n.Data)
	for _, a := range n.Attr {
		sb.WriteByte(' ')
		if a.Namespace != "" {
			sb.WriteString(a.Namespace)
			sb.WriteByte(':')
		}
		sb.WriteString(a.Key)
		sb.WriteString("=")
		sb.WriteString(strconv.Quote(a.Val))
	}
	sb.WriteByte('>')
	return sb.String()
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
