package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
)

// ErrUnknownMoteType is returned when a mote refers to a unit type that is
// not part of the simulation.
var ErrUnknownMoteType = errors.New("unknown mote type")

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}

// CounterMote is a unit that counts the rounds it is ticked in. It stays
// silent until the simulation time reaches its start offset.
type CounterMote struct {
	Type   sim.UnitType
	Offset int64

	count    atomic.Int64
	lastTick atomic.Int64
}

// NewCounterMote creates a mote of the given type.
func NewCounterMote(t sim.UnitType) *CounterMote {
	return &CounterMote{Type: t}
}

// Tick counts the round if the mote has started.
func (m *CounterMote) Tick(_ context.Context, now int64) error {
	m.lastTick.Store(now)

	if now < m.Offset {
		return nil
	}

	m.count.Add(1)

	return nil
}

// Count returns the number of rounds the mote was active in.
func (m *CounterMote) Count() int64 {
	return m.count.Load()
}

// LastTick returns the simulation time of the latest tick.
func (m *CounterMote) LastTick() int64 {
	return m.lastTick.Load()
}

// Config returns the type identifier, the offset and the counter.
func (m *CounterMote) Config() []*config.Node {
	typeID := ""
	if m.Type != nil {
		typeID = m.Type.Identifier()
	}

	return []*config.Node{
		config.NewNode("motetype_identifier", typeID),
		config.NewIntNode("offset", m.Offset),
		config.NewIntNode("count", m.Count()),
	}
}

// RestoreConfig reads the configuration and binds the mote to a type that
// the engine already knows.
func (m *CounterMote) RestoreConfig(
	e *sim.Engine,
	children []*config.Node,
) error {
	for _, c := range children {
		switch c.Name {
		case "motetype_identifier":
			id := c.TrimmedText()

			m.Type = e.UnitType(id)
			if m.Type == nil {
				return fmt.Errorf("%w: %q", ErrUnknownMoteType, id)
			}
		case "offset":
			v, err := c.Int()
			if err != nil {
				return err
			}

			m.Offset = v
		case "count":
			v, err := c.Int()
			if err != nil {
				return err
			}

			m.count.Store(v)
		}
	}

	if m.Type == nil {
		return errMissing("motetype_identifier")
	}

	return nil
}
