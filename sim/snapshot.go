package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarchlab/motesim/sim/config"
	"github.com/sarchlab/motesim/sim/serialization"
)

// Names of the configuration nodes of a simulation.
const (
	NodeTitle     = "title"
	NodeDelayTime = "delaytime"
	NodeSimTime   = "simtime"
	NodeTickTime  = "ticktime"
	NodeMedium    = "radiomedium"
	NodeUnitType  = "motetype"
	NodeUnit      = "mote"
)

var (
	// ErrRestoreFailed is returned when a part of a configuration cannot be
	// applied.
	ErrRestoreFailed = errors.New("configuration restore failed")

	// ErrRestoreAborted is returned when the confirmer rejects the
	// configuration.
	ErrRestoreAborted = errors.New("configuration restore aborted by user")

	// ErrMediumUnavailable is returned when the configured medium cannot be
	// created. The engine is left without a medium.
	ErrMediumUnavailable = errors.New("medium unavailable")
)

// RestoreOptions controls how a configuration is restored.
type RestoreOptions struct {
	// Interactive enables the confirmer after the medium is created.
	Interactive bool

	// Confirmer reviews the simulation in interactive restores. A nil
	// confirmer accepts.
	Confirmer Confirmer
}

// Config returns the configuration of the simulation: the scalar parameters,
// the medium, every unit type and every unit, in this order. Medium, unit
// type and unit nodes carry the type name of the implementation as text.
func (e *Engine) Config() []*config.Node {
	nodes := []*config.Node{
		config.NewNode(NodeTitle, e.Title()),
		config.NewIntNode(NodeDelayTime, e.DelayTime()),
		config.NewIntNode(NodeSimTime, e.SimulationTime()),
		config.NewIntNode(NodeTickTime, e.TickTime()),
	}

	if m := e.Medium(); m != nil {
		nodes = append(nodes, typedNode(NodeMedium, m))
	}

	for _, t := range e.units.Types() {
		nodes = append(nodes, typedNode(NodeUnitType, t))
	}

	for _, u := range e.units.Units() {
		nodes = append(nodes, typedNode(NodeUnit, u))
	}

	return nodes
}

func typedNode(name string, c Configurable) *config.Node {
	return config.NewNode(name, serialization.TypeName(c), c.Config()...)
}

// RestoreConfig applies a configuration produced by Config. Nodes are applied
// in order and unknown nodes are ignored. The restore stops at the first
// failure; whatever was applied before the failure stays applied.
//
// The units, unit types and medium are changed as by AddUnit and SetMedium,
// with ctx deciding whether the changes are applied now or queued on the
// loop.
func (e *Engine) RestoreConfig(
	ctx context.Context,
	nodes []*config.Node,
	opts RestoreOptions,
) error {
	for _, n := range nodes {
		err := e.restoreNode(ctx, n, opts)
		if err != nil {
			return err
		}
	}

	e.notifyCtx(ctx, HookPosConfigRestored, nodes)

	return nil
}

func (e *Engine) restoreNode(
	ctx context.Context,
	n *config.Node,
	opts RestoreOptions,
) error {
	switch n.Name {
	case NodeTitle:
		e.SetTitle(n.Text)
	case NodeDelayTime:
		return e.restoreInt(n, func(v int64) error {
			e.SetDelayTime(v)
			return nil
		})
	case NodeSimTime:
		return e.restoreInt(n, func(v int64) error {
			e.SetSimulationTime(v)
			return nil
		})
	case NodeTickTime:
		return e.restoreInt(n, e.SetTickTime)
	case NodeMedium:
		return e.restoreMedium(ctx, n, opts)
	case NodeUnitType:
		return e.restoreUnitType(ctx, n)
	case NodeUnit:
		return e.restoreUnit(ctx, n)
	default:
		e.logger.Debug("ignoring unknown configuration node", "node", n.Name)
	}

	return nil
}

func (e *Engine) restoreInt(n *config.Node, set func(int64) error) error {
	v, err := n.Int()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
	}

	err = set(v)
	if err != nil {
		return fmt.Errorf("%w: node %s: %w", ErrRestoreFailed, n.Name, err)
	}

	return nil
}

func (e *Engine) restoreMedium(
	ctx context.Context,
	n *config.Node,
	opts RestoreOptions,
) error {
	typeName := n.TrimmedText()

	m, err := resolve[Medium](e, typeName)
	if err != nil {
		e.SetMedium(ctx, nil)
		return fmt.Errorf("%w: %s: %w", ErrMediumUnavailable, typeName, err)
	}

	e.SetMedium(ctx, m)

	if opts.Interactive && opts.Confirmer != nil &&
		!opts.Confirmer.ConfirmOrEdit(e) {
		e.logger.Debug("simulation not created, aborting")
		return ErrRestoreAborted
	}

	current := e.Medium()
	if current == nil {
		return fmt.Errorf("%w: %s", ErrMediumUnavailable, typeName)
	}

	if serialization.TypeName(current) != typeName {
		e.logger.Info("medium changed, ignoring medium specific config",
			"configured", typeName,
			"bound", serialization.TypeName(current))

		return nil
	}

	err = current.RestoreConfig(e, n.Children)
	if err != nil {
		return fmt.Errorf("%w: medium %s: %w", ErrRestoreFailed, typeName, err)
	}

	return nil
}

func (e *Engine) restoreUnitType(ctx context.Context, n *config.Node) error {
	typeName := n.TrimmedText()

	t, err := resolve[UnitType](e, typeName)
	if err != nil {
		return fmt.Errorf("%w: unit type %s: %w",
			ErrRestoreFailed, typeName, err)
	}

	err = t.RestoreConfig(e, n.Children)
	if err != nil {
		return fmt.Errorf("%w: unit type %s: %w",
			ErrRestoreFailed, typeName, err)
	}

	e.AddUnitType(ctx, t)

	return nil
}

func (e *Engine) restoreUnit(ctx context.Context, n *config.Node) error {
	typeName := n.TrimmedText()

	u, err := resolve[Unit](e, typeName)
	if err != nil {
		return fmt.Errorf("%w: unit %s: %w", ErrRestoreFailed, typeName, err)
	}

	err = u.RestoreConfig(e, n.Children)
	if err != nil {
		return fmt.Errorf("%w: unit %s: %w", ErrRestoreFailed, typeName, err)
	}

	e.AddUnit(ctx, u)

	return nil
}

func resolve[T any](e *Engine, typeName string) (T, error) {
	if e.resolver == nil {
		var zero T
		return zero, errors.New("engine has no type resolver")
	}

	return serialization.Resolve[T](e.resolver, typeName)
}
