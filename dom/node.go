package dom

import (
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// IsElement reports if n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// Attr returns attribute value and presence flag.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrValue returns attribute value or empty string.
func AttrValue(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// HasClass checks class attribute for the whole word cls.
func HasClass(n *html.Node, cls string) bool {
	return slices.Contains(strings.Fields(AttrValue(n, "class")), cls)
}

// ParentElement returns closest element ancestor.
func ParentElement(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
		// stop at document node
		if p.Type == html.DocumentNode {
			return nil
		}
	}
	return nil
}

// PrevElementSibling returns preceding element sibling.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// NextElementSibling returns following element sibling.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Children returns element children of n.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Elements returns all element descendants of root in document order, root
// itself is not included.
func Elements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// TextContent concatenates data of all text nodes under n. Text is taken from
// the tree itself, nothing a page can attach to the node changes it.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
			case html.ElementNode, html.DocumentNode:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}

// Contains reports whether n is ancestor of (or the same as) other.
func Contains(n, other *html.Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// TopOf returns the topmost ancestor of n - document node for attached nodes.
func TopOf(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// SortInDocumentOrder removes duplicates and orders nodes the way they appear
// in the tree rooted at root. Nodes outside of root are dropped.
func SortInDocumentOrder(root *html.Node, nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	want := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		want[n] = struct{}{}
	}
	out := make([]*html.Node, 0, len(want))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil && len(out) < len(want); c = c.NextSibling {
			if _, ok := want[c]; ok {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

// CSSPath builds selector path which identifies n in its tree, i.e.
// "html > body > div:nth-child(2) > p". Element with id terminates the path.
func CSSPath(n *html.Node) string {
	var parts []string
	for cur := n; IsElement(cur); cur = ParentElement(cur) {
		if id := AttrValue(cur, "id"); id != "" {
			parts = append(parts, "#"+id)
			break
		}
		part := cur.Data
		if parent := ParentElement(cur); parent != nil {
			siblings := Children(parent)
			if len(siblings) > 1 {
				part += ":nth-child(" + strconv.Itoa(slices.Index(siblings, cur)+1) + ")"
			}
		}
		parts = append(parts, part)
	}
	slices.Reverse(parts)
	return strings.Join(parts, " > ")
}
