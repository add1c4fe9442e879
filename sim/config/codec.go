package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RootName is the name of the root node of a saved simulation document.
const RootName = "simulation"

// A Codec converts configuration trees to and from documents.
type Codec interface {
	Encode(w io.Writer, root *Node) error
	Decode(r io.Reader) (*Node, error)
}

// CodecForPath selects a codec from the extension of a file name.
func CodecForPath(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".csc":
		return NewXMLCodec(), nil
	case ".yaml", ".yml":
		return NewYAMLCodec(), nil
	case ".json":
		return NewJSONCodec(), nil
	}

	return nil, fmt.Errorf("no codec for file %s", path)
}

// ReadFile decodes the document stored in path with the codec matching its
// extension.
func ReadFile(path string) (*Node, error) {
	codec, err := CodecForPath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	root, err := codec.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return root, nil
}

// WriteFile encodes root into path with the codec matching its extension.
func WriteFile(path string, root *Node) error {
	codec, err := CodecForPath(path)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	err = codec.Encode(file, root)
	if err != nil {
		file.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	return file.Close()
}
