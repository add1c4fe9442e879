package datarecording

import (
	"context"
	"time"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/hooking"
)

// Tables written by a RunRecorder.
const (
	RoundTableName     = "motesim_round"
	LifecycleTableName = "motesim_lifecycle"
)

// RoundEntry is one completed round.
type RoundEntry struct {
	Run      string
	Round    uint64
	SimTime  int64
	Units    int
	WallTime float64
}

// LifecycleEntry is one start or stop of the simulation loop.
type LifecycleEntry struct {
	Run      string
	Event    string
	SimTime  int64
	Rounds   uint64
	WallTime float64
	Error    string
}

// RunRecorder records the rounds and the loop lifetimes of an engine. It is
// both a hook and a round listener; Attach registers it as both.
type RunRecorder struct {
	recorder DataRecorder
	engine   *sim.Engine
	begin    time.Time
}

// NewRunRecorder creates the tables in the recorder.
func NewRunRecorder(recorder DataRecorder, engine *sim.Engine) *RunRecorder {
	recorder.CreateTable(RoundTableName, RoundEntry{})
	recorder.CreateTable(LifecycleTableName, LifecycleEntry{})

	return &RunRecorder{
		recorder: recorder,
		engine:   engine,
		begin:    time.Now(),
	}
}

// Attach starts recording.
func (r *RunRecorder) Attach() {
	r.engine.AcceptHook(r)
	r.engine.AddRoundListener(r)
}

// Detach stops recording and flushes what was recorded.
func (r *RunRecorder) Detach() {
	r.engine.RemoveHook(r)
	r.engine.RemoveRoundListener(r)
	r.recorder.Flush()
}

// RoundCompleted records a round.
func (r *RunRecorder) RoundCompleted(ctx context.Context) {
	info, _ := sim.RunFromContext(ctx)

	r.recorder.InsertData(RoundTableName, RoundEntry{
		Run:      info.ID,
		Round:    info.Rounds,
		SimTime:  r.engine.SimulationTime(),
		Units:    r.engine.UnitCount(),
		WallTime: r.wallTime(),
	})
}

// Func records loop starts and stops.
func (r *RunRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sim.HookPosSimulationStarted &&
		ctx.Pos != sim.HookPosSimulationStopped {
		return
	}

	info, ok := ctx.Detail.(sim.RunInfo)
	if !ok {
		return
	}

	entry := LifecycleEntry{
		Run:      info.ID,
		Event:    ctx.Pos.Name,
		SimTime:  r.engine.SimulationTime(),
		Rounds:   info.Rounds,
		WallTime: r.wallTime(),
	}

	if info.Err != nil {
		entry.Error = info.Err.Error()
	}

	r.recorder.InsertData(LifecycleTableName, entry)

	if ctx.Pos == sim.HookPosSimulationStopped {
		r.recorder.Flush()
	}
}

func (r *RunRecorder) wallTime() float64 {
	return time.Since(r.begin).Seconds()
}
