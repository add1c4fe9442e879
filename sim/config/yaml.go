package config

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLCodec stores a tree as nested name/text/children mappings.
type YAMLCodec struct {
}

// NewYAMLCodec creates a YAMLCodec.
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Encode writes root as a YAML document.
func (c YAMLCodec) Encode(w io.Writer, root *Node) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(root)
	if err != nil {
		return err
	}

	return encoder.Close()
}

// Decode reads a YAML document.
func (c YAMLCodec) Decode(r io.Reader) (*Node, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	root := &Node{}

	err := decoder.Decode(root)
	if errors.Is(err, io.EOF) {
		return nil, errors.New("document is empty")
	}

	if err != nil {
		return nil, err
	}

	return root, nil
}
