package builtin

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
)

// SilentMedium connects nothing. It only keeps track of the registered units.
type SilentMedium struct {
	lock  sync.Mutex
	units []sim.Unit
}

// RegisterUnit adds a unit.
func (m *SilentMedium) RegisterUnit(u sim.Unit) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.units = append(m.units, u)
}

// UnregisterUnit removes a unit.
func (m *SilentMedium) UnregisterUnit(u sim.Unit) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i, registered := range m.units {
		if registered == u {
			m.units = append(m.units[:i:i], m.units[i+1:]...)
			return
		}
	}
}

// Units returns the registered units in registration order.
func (m *SilentMedium) Units() []sim.Unit {
	m.lock.Lock()
	defer m.lock.Unlock()

	units := make([]sim.Unit, len(m.units))
	copy(units, m.units)

	return units
}

// Config returns nothing.
func (m *SilentMedium) Config() []*config.Node {
	return nil
}

// RestoreConfig does nothing.
func (m *SilentMedium) RestoreConfig(*sim.Engine, []*config.Node) error {
	return nil
}

// RangeMedium is a medium that reaches every unit within a fixed range, in
// meters.
type RangeMedium struct {
	SilentMedium

	Range float64
}

// DefaultRange is the range of a new RangeMedium.
const DefaultRange = 50.0

// NewRangeMedium creates a medium with the default range.
func NewRangeMedium() *RangeMedium {
	return &RangeMedium{Range: DefaultRange}
}

// Config returns the range.
func (m *RangeMedium) Config() []*config.Node {
	return []*config.Node{
		config.NewNode("range", strconv.FormatFloat(m.Range, 'g', -1, 64)),
	}
}

// RestoreConfig reads the range.
func (m *RangeMedium) RestoreConfig(
	_ *sim.Engine,
	children []*config.Node,
) error {
	for _, c := range children {
		if c.Name != "range" {
			continue
		}

		v, err := strconv.ParseFloat(c.TrimmedText(), 64)
		if err != nil {
			return fmt.Errorf("range: %w", err)
		}

		if v < 0 {
			return fmt.Errorf("range must not be negative, got %g", v)
		}

		m.Range = v
	}

	return nil
}
