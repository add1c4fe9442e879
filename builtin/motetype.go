// Package builtin provides simple units, unit types and media that are always
// available to configurations.
package builtin

import (
	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
)

// CounterMoteType is a unit type without firmware. Its units only count the
// rounds they have seen.
type CounterMoteType struct {
	ID          string
	Description string
}

// NewCounterMoteType creates a unit type with the given identifier.
func NewCounterMoteType(id, description string) *CounterMoteType {
	return &CounterMoteType{ID: id, Description: description}
}

// Identifier returns the identifier units refer to.
func (t *CounterMoteType) Identifier() string {
	return t.ID
}

// Config returns the identifier and the description.
func (t *CounterMoteType) Config() []*config.Node {
	return []*config.Node{
		config.NewNode("identifier", t.ID),
		config.NewNode("description", t.Description),
	}
}

// RestoreConfig reads the identifier and the description.
func (t *CounterMoteType) RestoreConfig(
	_ *sim.Engine,
	children []*config.Node,
) error {
	for _, c := range children {
		switch c.Name {
		case "identifier":
			t.ID = c.TrimmedText()
		case "description":
			t.Description = c.TrimmedText()
		}
	}

	if t.ID == "" {
		return errMissing("identifier")
	}

	return nil
}
