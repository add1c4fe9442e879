package config

import (
	"encoding/json"
	"io"
)

type JSONCodec struct {
}

func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c JSONCodec) Encode(w io.Writer, root *Node) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	return encoder.Encode(root)
}

func (c JSONCodec) Decode(r io.Reader) (*Node, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	root := &Node{}

	err := decoder.Decode(root)
	if err != nil {
		return nil, err
	}

	return root, nil
}
