package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/motesim/sim/hooking"
	"github.com/sarchlab/motesim/sim/serialization"
)

// ErrPanic wraps a panic raised by a unit or a listener during a round.
var ErrPanic = errors.New("panic in simulation loop")

func (e *Engine) loop(r *run) {
	defer e.finish(r)

	begin := time.Now()
	e.logger.Info("simulation loop started",
		"run", r.id,
		"sim_time", e.SimulationTime())

	e.enterRunning(r)

	err := protect(func() error {
		e.invokeLoopHook(r, HookPosSimulationStarted, nil)
		return nil
	})

	if err == nil {
		err = e.runRounds(r)
	}

	e.markStopping(r)
	e.logLoopEnd(r, begin, err)

	hookErr := protect(func() error {
		e.invokeLoopHook(r, HookPosSimulationStopped, err)
		return nil
	})
	if hookErr != nil {
		e.logger.Warn("simulation stopped hook failed",
			"run", r.id,
			"error", hookErr)
	}
}

func (e *Engine) runRounds(r *run) error {
	for {
		if !e.beginRound(r) {
			return nil
		}

		err := protect(func() error {
			return e.round(r.ctx)
		})
		if err != nil {
			return err
		}

		if e.shouldHalt(r) {
			return nil
		}

		if !e.sleep(r) {
			return nil
		}
	}
}

// round ticks every unit once, advances the time and notifies the round
// listeners.
func (e *Engine) round(ctx context.Context) error {
	now := e.SimulationTime()

	for i, u := range e.units.units {
		err := u.Tick(ctx, now)
		if err != nil {
			return fmt.Errorf("unit %d (%s) at %d ms: %w",
				i, serialization.TypeName(u), now, err)
		}
	}

	e.advanceSimulationTime()

	e.rounds.Fire(ctx)

	return nil
}

// sleep waits for the delay time. It returns false if the loop was asked to
// stop while waiting.
func (e *Engine) sleep(r *run) bool {
	delay := e.DelayTime()
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(time.Duration(delay) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.wake:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (e *Engine) invokeLoopHook(r *run, pos *hooking.HookPos, err error) {
	info := r.info()
	info.Err = err

	e.InvokeHook(hooking.HookCtx{
		Domain:  e,
		Pos:     pos,
		Item:    e,
		Detail:  info,
		Context: r.ctx,
	})
}

func (e *Engine) logLoopEnd(r *run, begin time.Time, err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		e.logger.Debug("simulation loop interrupted",
			"run", r.id,
			"error", err)
	default:
		e.logger.Warn("simulation loop aborted",
			"run", r.id,
			"error", err)
	}

	e.logger.Info("simulation loop stopped",
		"run", r.id,
		"rounds", r.rounds.Load(),
		"sim_time", e.SimulationTime(),
		"duration", time.Since(begin))
}

func protect(f func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()

	return f()
}
