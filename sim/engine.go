package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sarchlab/motesim/sim/hooking"
)

// ErrInvalidTickTime is returned when the tick time is not positive.
var ErrInvalidTickTime = errors.New("tick time must be positive")

// An Engine advances a set of units in lockstep rounds on a dedicated
// goroutine. Every round ticks all the units in registration order, advances
// the simulation time by the tick time, and notifies the round listeners.
//
// The units, the unit types and the medium are only changed while the loop
// is stopped. AddUnit, RemoveUnit, AddUnitType and SetMedium stop a running
// loop, apply the change, and start the loop again. Changes requested from
// the loop goroutine are applied after the loop exits.
type Engine struct {
	hooking.HookableBase

	logger   *slog.Logger
	resolver TypeResolver

	paramLock sync.RWMutex
	title     string
	delayTime int64
	simTime   int64
	tickTime  int64
	medium    Medium

	units  *UnitRegistry
	rounds RoundNotifier

	mutateLock sync.Mutex

	lifeLock       sync.Mutex
	state          State
	run            *run
	restartPending bool
	mutating       bool
	resumed        chan struct{}
}

// NewEngine creates an engine with the default parameters.
func NewEngine() *Engine {
	return MakeEngineBuilder().Build()
}

// Title returns the display name of the simulation.
func (e *Engine) Title() string {
	e.paramLock.RLock()
	defer e.paramLock.RUnlock()

	return e.title
}

// SetTitle changes the display name of the simulation.
func (e *Engine) SetTitle(title string) {
	e.paramLock.Lock()
	e.title = title
	e.paramLock.Unlock()
}

// DelayTime returns the pause between two rounds, in milliseconds.
func (e *Engine) DelayTime() int64 {
	e.paramLock.RLock()
	defer e.paramLock.RUnlock()

	return e.delayTime
}

// SetDelayTime changes the pause between two rounds. Negative values are
// treated as 0, which disables the pause.
func (e *Engine) SetDelayTime(ms int64) {
	if ms < 0 {
		ms = 0
	}

	e.paramLock.Lock()
	e.delayTime = ms
	e.paramLock.Unlock()

	e.notify(HookPosDelayTimeChanged, ms)
}

// SimulationTime returns the current simulation time, in milliseconds.
func (e *Engine) SimulationTime() int64 {
	e.paramLock.RLock()
	defer e.paramLock.RUnlock()

	return e.simTime
}

// SetSimulationTime changes the simulation time. It can be called while the
// loop is running; the next round starts from the new time.
func (e *Engine) SetSimulationTime(ms int64) {
	e.paramLock.Lock()
	e.simTime = ms
	e.paramLock.Unlock()

	e.notify(HookPosSimulationTimeChanged, ms)
}

func (e *Engine) advanceSimulationTime() {
	e.paramLock.Lock()
	e.simTime += e.tickTime
	e.paramLock.Unlock()
}

// TickTime returns the simulation time that passes in one round, in
// milliseconds.
func (e *Engine) TickTime() int64 {
	e.paramLock.RLock()
	defer e.paramLock.RUnlock()

	return e.tickTime
}

// TickTimeInSeconds returns the tick time in seconds.
func (e *Engine) TickTimeInSeconds() float64 {
	return float64(e.TickTime()) / 1000.0
}

// SetTickTime changes the simulation time that passes in one round.
func (e *Engine) SetTickTime(ms int64) error {
	if ms <= 0 {
		return ErrInvalidTickTime
	}

	e.paramLock.Lock()
	e.tickTime = ms
	e.paramLock.Unlock()

	e.notify(HookPosTickTimeChanged, ms)

	return nil
}

// Medium returns the bound medium, or nil.
func (e *Engine) Medium() Medium {
	e.paramLock.RLock()
	defer e.paramLock.RUnlock()

	return e.medium
}

// SetMedium binds a new medium. All the units are unregistered from the old
// medium and registered with the new one, in registration order. Binding nil
// leaves the simulation without a medium. The rebinding follows the same
// pausing rules as AddUnit.
func (e *Engine) SetMedium(ctx context.Context, m Medium) {
	e.mutate(ctx, mutation{
		pos:  HookPosMediumChanged,
		item: m,
		apply: func() bool {
			e.bindMedium(m)
			return true
		},
	})
}

func (e *Engine) bindMedium(m Medium) {
	e.paramLock.Lock()
	old := e.medium
	e.medium = m
	e.paramLock.Unlock()

	if old != nil {
		for _, u := range e.units.units {
			old.UnregisterUnit(u)
		}
	}

	if m == nil {
		e.logger.Error("simulation has no medium")
		return
	}

	for _, u := range e.units.units {
		m.RegisterUnit(u)
	}
}

// AddUnit registers a unit with the simulation and with the bound medium.
// Adding a unit that is already registered has no effect.
//
// A running loop is stopped before the change and started again afterwards.
// If ctx was handed out by the loop (a unit, a round listener or a loop
// hook), the change is queued and applied once the current round is done.
func (e *Engine) AddUnit(ctx context.Context, u Unit) {
	e.mutate(ctx, mutation{
		pos:  HookPosUnitAdded,
		item: u,
		apply: func() bool {
			if !e.units.Add(u) {
				return false
			}

			if m := e.Medium(); m != nil {
				m.RegisterUnit(u)
			}

			return true
		},
	})
}

// RemoveUnit removes a unit from the simulation and from the bound medium,
// with the same pausing rules as AddUnit.
func (e *Engine) RemoveUnit(ctx context.Context, u Unit) {
	e.mutate(ctx, mutation{
		pos:  HookPosUnitRemoved,
		item: u,
		apply: func() bool {
			if !e.units.Remove(u) {
				return false
			}

			if m := e.Medium(); m != nil {
				m.UnregisterUnit(u)
			}

			return true
		},
	})
}

// AddUnitType registers a unit type, with the same pausing rules as AddUnit.
func (e *Engine) AddUnitType(ctx context.Context, t UnitType) {
	e.mutate(ctx, mutation{
		pos:  HookPosUnitTypeAdded,
		item: t,
		apply: func() bool {
			e.units.AddType(t)
			return true
		},
	})
}

// Unit returns the unit at position i.
func (e *Engine) Unit(i int) Unit {
	return e.units.Unit(i)
}

// UnitCount returns the number of registered units.
func (e *Engine) UnitCount() int {
	return e.units.Len()
}

// Units returns the registered units in registration order.
func (e *Engine) Units() []Unit {
	return e.units.Units()
}

// UnitTypes returns the registered unit types in registration order.
func (e *Engine) UnitTypes() []UnitType {
	return e.units.Types()
}

// UnitType returns the first unit type with the given identifier, or nil.
func (e *Engine) UnitType(identifier string) UnitType {
	return e.units.Type(identifier)
}

// AddRoundListener subscribes to round completions.
func (e *Engine) AddRoundListener(l RoundListener) {
	e.rounds.AddListener(l)
}

// RemoveRoundListener unsubscribes from round completions.
func (e *Engine) RemoveRoundListener(l RoundListener) {
	e.rounds.RemoveListener(l)
}

// Logger returns the logger of the engine.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

func (e *Engine) notify(pos *hooking.HookPos, item any) {
	e.notifyCtx(context.Background(), pos, item)
}

func (e *Engine) notifyCtx(ctx context.Context, pos *hooking.HookPos, item any) {
	e.InvokeHook(hooking.HookCtx{
		Domain:  e,
		Pos:     pos,
		Item:    item,
		Context: ctx,
	})
}
