package sim

import "github.com/sarchlab/motesim/sim/hooking"

// Positions of the state-change notifications an Engine sends to its hooks.
// Round completions are not hooks; they go through the RoundNotifier.
var (
	// HookPosSimulationStarted triggers on the loop goroutine before the first
	// round. The Detail is a RunInfo.
	HookPosSimulationStarted = &hooking.HookPos{Name: "SimulationStarted"}

	// HookPosSimulationStopped triggers on the loop goroutine after the last
	// round, whatever the reason the loop ended. The Detail is a RunInfo.
	HookPosSimulationStopped = &hooking.HookPos{Name: "SimulationStopped"}

	// HookPosUnitAdded triggers after a unit is registered. The Item is the
	// unit. Units added from the loop are reported on the loop goroutine
	// once the loop has exited, with the loop context.
	HookPosUnitAdded = &hooking.HookPos{Name: "UnitAdded"}

	// HookPosUnitRemoved triggers after a unit is removed. The Item is the
	// unit.
	HookPosUnitRemoved = &hooking.HookPos{Name: "UnitRemoved"}

	// HookPosUnitTypeAdded triggers after a unit type is registered.
	HookPosUnitTypeAdded = &hooking.HookPos{Name: "UnitTypeAdded"}

	// HookPosDelayTimeChanged triggers after the delay time is set.
	HookPosDelayTimeChanged = &hooking.HookPos{Name: "DelayTimeChanged"}

	// HookPosSimulationTimeChanged triggers after the simulation time is set
	// from outside the loop.
	HookPosSimulationTimeChanged = &hooking.HookPos{
		Name: "SimulationTimeChanged",
	}

	// HookPosTickTimeChanged triggers after the tick time is set.
	HookPosTickTimeChanged = &hooking.HookPos{Name: "TickTimeChanged"}

	// HookPosMediumChanged triggers after a medium is bound. The Item is the
	// new medium, possibly nil.
	HookPosMediumChanged = &hooking.HookPos{Name: "MediumChanged"}

	// HookPosConfigRestored triggers after a configuration is fully applied.
	HookPosConfigRestored = &hooking.HookPos{Name: "ConfigRestored"}
)

// RunInfo describes one lifetime of the simulation loop.
type RunInfo struct {
	// ID is unique for every loop started by any engine.
	ID string

	// Rounds is the number of rounds the loop has started so far.
	Rounds uint64

	// Err is the reason the loop aborted. It is only set in the stopped
	// notification of a loop that ended with an error.
	Err error
}
