package style

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// CodeColumn is the attribute referenced by the descriptor's rule filters.
const CodeColumn = "cd_apcac"

// ParseError reports a missing or malformed style descriptor.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing style %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// node is a generic XML element, enough to walk a QML document the way
// an XPath ".//rule" search would.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// walk visits n and its descendants in document order.
func (n *node) walk(fn func(*node)) {
	fn(n)
	for i := range n.Children {
		n.Children[i].walk(fn)
	}
}

// find returns the first descendant of n (excluding n) matching fn.
func (n *node) find(fn func(*node) bool) *node {
	for i := range n.Children {
		c := &n.Children[i]
		if fn(c) {
			return c
		}
		if found := c.find(fn); found != nil {
			return found
		}
	}
	return nil
}

// Parse reads the descriptor at path.
func Parse(path string) (*StyleMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return m, nil
}

type ruleRef struct {
	code, label, symbol string
}

// Decode builds a StyleMap from a QML document.
//
// Every rule whose filter compares CodeColumn with a quoted literal yields one
// entry; its color comes from the symbol the rule references.
func Decode(r io.Reader) (*StyleMap, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding qml: %w", err)
	}

	var rules []ruleRef
	colors := make(map[string]string)

	root.walk(func(n *node) {
		switch n.XMLName.Local {
		case "rule":
			code, ok := ExtractCode(n.attr("filter"), CodeColumn)
			if !ok {
				return
			}
			rules = append(rules, ruleRef{code: code, label: n.attr("label"), symbol: n.attr("symbol")})
		case "symbol":
			if value, ok := symbolColor(n); ok {
				colors[n.attr("name")] = ColorFromRGBA(value)
			}
		}
	})

	m := NewStyleMap()
	for _, r := range rules {
		color, ok := colors[r.symbol]
		if !ok {
			color = DefaultColor
		}
		m.put(ClassStyle{Code: r.code, Label: r.label, SymbolRef: r.symbol, Color: color})
	}
	return m, nil
}

// symbolColor finds the symbol's color option. QGIS 3 writes
// <Option name="color" value="r,g,b,a"/>, QGIS 2 writes <prop k="color" v="..."/>.
func symbolColor(sym *node) (string, bool) {
	opt := sym.find(func(n *node) bool {
		return n.XMLName.Local == "Option" && n.attr("name") == "color"
	})
	if opt != nil {
		v := opt.attr("value")
		return v, v != ""
	}
	prop := sym.find(func(n *node) bool {
		return n.XMLName.Local == "prop" && n.attr("k") == "color"
	})
	if prop != nil {
		v := prop.attr("v")
		return v, v != ""
	}
	return "", false
}

// ExtractCode returns the literal between the first pair of single quotes
// following column in a rule filter such as "cd_apcac" = 'IICN'.
func ExtractCode(filter, column string) (string, bool) {
	i := strings.Index(filter, column)
	if i < 0 {
		return "", false
	}
	rest := filter[i+len(column):]

	open := strings.IndexByte(rest, '\'')
	if open < 0 {
		return "", false
	}
	rest = rest[open+1:]
	end := strings.IndexByte(rest, '\'')
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}
