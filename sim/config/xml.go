package config

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// XMLCodec stores a tree as nested XML elements. The text of a node becomes
// the character data of its element.
type XMLCodec struct {
	Indent string
}

// NewXMLCodec creates an XMLCodec that indents with two spaces.
func NewXMLCodec() *XMLCodec {
	return &XMLCodec{Indent: "  "}
}

// Encode writes root as an XML document.
func (c XMLCodec) Encode(w io.Writer, root *Node) error {
	_, err := io.WriteString(w, xml.Header)
	if err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", c.Indent)

	err = c.encodeNode(encoder, root)
	if err != nil {
		return err
	}

	err = encoder.Flush()
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, "\n")

	return err
}

func (c XMLCodec) encodeNode(encoder *xml.Encoder, n *Node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.Name}}

	err := encoder.EncodeToken(start)
	if err != nil {
		return err
	}

	if n.Text != "" {
		err = encoder.EncodeToken(xml.CharData(n.Text))
		if err != nil {
			return err
		}
	}

	for _, child := range n.Children {
		err = c.encodeNode(encoder, child)
		if err != nil {
			return err
		}
	}

	return encoder.EncodeToken(start.End())
}

// Decode reads an XML document. The text of elements without children is
// kept as written. The text of elements with children is trimmed, since it
// is interleaved with indentation. Comments and processing instructions are
// dropped.
func (c XMLCodec) Decode(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)

	var (
		root  *Node
		stack []*Node
		texts []*strings.Builder
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			} else {
				return nil, errors.New("document has more than one root")
			}

			stack = append(stack, n)
			texts = append(texts, &strings.Builder{})
		case xml.CharData:
			if len(texts) > 0 {
				texts[len(texts)-1].Write(t)
			}
		case xml.EndElement:
			top := len(stack) - 1

			n := stack[top]
			n.Text = texts[top].String()
			if len(n.Children) > 0 {
				n.Text = strings.TrimSpace(n.Text)
			}

			stack = stack[:top]
			texts = texts[:top]
		}
	}

	if root == nil {
		return nil, errors.New("document is empty")
	}

	return root, nil
}
