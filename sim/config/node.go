// Package config defines the configuration tree that engines, media, unit types
// and units are saved to and restored from, and the codecs that turn the tree
// into documents.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// A Node is a named element of a configuration tree. A node carries an
// optional text value and an ordered list of children.
type Node struct {
	Name     string  `json:"name" yaml:"name"`
	Text     string  `json:"text,omitempty" yaml:"text,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// NewNode creates a node with a text value and the given children.
func NewNode(name, text string, children ...*Node) *Node {
	return &Node{
		Name:     name,
		Text:     text,
		Children: children,
	}
}

// NewIntNode creates a node whose text is the decimal form of v.
func NewIntNode(name string, v int64) *Node {
	return NewNode(name, strconv.FormatInt(v, 10))
}

// AddChild appends children to the node and returns the node.
func (n *Node) AddChild(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Child returns the first child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}

	return nil
}

// ChildrenNamed returns all the children with the given name, in order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node

	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}

	return out
}

// TrimmedText returns the text with surrounding white space removed.
func (n *Node) TrimmedText() string {
	return strings.TrimSpace(n.Text)
}

// Int parses the text of the node as a decimal integer.
func (n *Node) Int() (int64, error) {
	v, err := strconv.ParseInt(n.TrimmedText(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("node %s: %w", n.Name, err)
	}

	return v, nil
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	c := &Node{Name: n.Name, Text: n.Text}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}

	return c
}

// Equal reports whether two trees have the same names, texts and children.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}

	if n.Name != o.Name || n.Text != o.Text {
		return false
	}

	if len(n.Children) != len(o.Children) {
		return false
	}

	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}

	return true
}

// String renders the tree in a compact, single-line form for logging.
func (n *Node) String() string {
	sb := strings.Builder{}
	n.write(&sb)

	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	sb.WriteString(n.Name)

	if n.Text != "" {
		sb.WriteString("=")
		sb.WriteString(strconv.Quote(n.Text))
	}

	if len(n.Children) == 0 {
		return
	}

	sb.WriteString("{")
	for i, c := range n.Children {
		if i > 0 {
			sb.WriteString(",")
		}

		c.write(sb)
	}
	sb.WriteString("}")
}
