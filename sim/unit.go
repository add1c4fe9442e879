package sim

import (
	"context"

	"github.com/sarchlab/motesim/sim/config"
)

// Configurable objects can describe their own state as configuration nodes.
type Configurable interface {
	// Config returns the children of the node that represents the object.
	Config() []*config.Node
}

// A Unit is an entity that the engine advances once per round. Units are
// identified by reference equality, so implementations are usually pointers.
type Unit interface {
	Configurable

	// Tick advances the unit to the given simulation time (ms). The context
	// is cancelled when the engine is asked to stop. A non-nil error aborts
	// the simulation loop.
	Tick(ctx context.Context, now int64) error

	// RestoreConfig applies a saved configuration to a freshly created unit.
	RestoreConfig(e *Engine, children []*config.Node) error
}

// A UnitType describes a class of units.
type UnitType interface {
	Configurable

	// Identifier returns the name that units use to refer to the type.
	Identifier() string

	// RestoreConfig applies a saved configuration to a freshly created type.
	RestoreConfig(e *Engine, children []*config.Node) error
}

// A Medium connects units with each other. The engine keeps the medium
// informed about which units are part of the simulation.
type Medium interface {
	Configurable

	RegisterUnit(u Unit)
	UnregisterUnit(u Unit)

	// RestoreConfig applies a saved configuration to the medium.
	RestoreConfig(e *Engine, children []*config.Node) error
}

// A TypeResolver creates default instances from the type identifiers stored
// in configurations.
type TypeResolver interface {
	CreateInstance(typeName string) (any, error)
}

// A Confirmer lets a user review, and possibly edit, a simulation while it is
// being restored interactively.
type Confirmer interface {
	ConfirmOrEdit(e *Engine) bool
}
