package dom

import (
	"maps"
	"strings"

	"golang.org/x/net/html"
)

type undefined struct{}

// Undefined marks property which exists but holds no value.
var Undefined any = undefined{}

// SetProperty attaches host defined value to a node. Nested objects are
// represented by map[string]any.
func (d *Document) SetProperty(n *html.Node, name string, val any) {
	p, ok := d.props[n]
	if !ok {
		p = make(map[string]any)
		d.props[n] = p
	}
	p[name] = val
}

// DeleteProperty removes host defined value.
func (d *Document) DeleteProperty(n *html.Node, name string) {
	if p, ok := d.props[n]; ok {
		delete(p, name)
	}
}

// Properties returns own properties of a node: derived ones (tagName,
// nodeName, id, className, nodeType, childElementCount) overlaid with host
// defined values. Returned map is a copy.
func (d *Document) Properties(n *html.Node) map[string]any {
	out := map[string]any{
		"nodeType": float64(nodeType(n)),
	}
	if IsElement(n) {
		out["tagName"] = strings.ToUpper(n.Data)
		out["nodeName"] = strings.ToUpper(n.Data)
		out["id"] = AttrValue(n, "id")
		out["className"] = AttrValue(n, "class")
		out["childElementCount"] = float64(len(Children(n)))
	}
	maps.Copy(out, d.props[n])
	return out
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	case html.DocumentNode:
		return 9
	case html.DoctypeNode:
		return 10
	default:
		return 0
	}
}
