package sim

import (
	"context"

	"github.com/sarchlab/motesim/sim/hooking"
)

// A mutation is a change to the units, the unit types or the medium. apply
// reports whether anything changed; only then is the hook position
// triggered.
type mutation struct {
	apply func() bool
	pos   *hooking.HookPos
	item  any
}

func (e *Engine) mutate(ctx context.Context, mu mutation) {
	if ctx == nil {
		ctx = context.Background()
	}

	if e.deferToLoop(ctx, mu) {
		return
	}

	if e.whilePaused(mu.apply) {
		e.notifyCtx(ctx, mu.pos, mu.item)
	}
}

// deferToLoop queues the mutation on the run that handed out ctx. A
// continuously running loop is asked to stop and to start again once the
// mutation is applied. Loops that are stepping or already stopping only
// apply it.
func (e *Engine) deferToLoop(ctx context.Context, mu mutation) bool {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	r := e.run
	if r == nil || !isLoopContext(ctx, r) {
		return false
	}

	r.deferred = append(r.deferred, mu)

	if e.state != StateStopping && r.stopAfter == 0 {
		e.state = StateStopping
		e.restartPending = true
		r.cancel()
	}

	return true
}

// whilePaused runs f when no loop goroutine is alive. A running loop is
// stopped first and started again afterwards. A stepping or stopping loop is
// waited for. Start and Step calls made meanwhile take effect after f.
func (e *Engine) whilePaused(f func() bool) bool {
	e.mutateLock.Lock()
	defer e.mutateLock.Unlock()

	done := e.pause()
	defer e.resume()

	if done != nil {
		<-done
	}

	return f()
}

func (e *Engine) pause() <-chan struct{} {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	e.mutating = true
	e.resumed = make(chan struct{})

	r := e.run
	if r == nil {
		return nil
	}

	if e.state != StateStopping && r.stopAfter == 0 {
		e.state = StateStopping
		e.restartPending = true
		r.cancel()
	}

	return r.done
}

func (e *Engine) resume() {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	e.mutating = false
	close(e.resumed)

	if e.restartPending && e.state == StateStopped {
		e.restartPending = false
		e.launch(0)
	}
}

func (e *Engine) applyDeferred(r *run, pending []mutation) {
	for _, mu := range pending {
		err := protect(func() error {
			if mu.apply() {
				e.notifyCtx(r.ctx, mu.pos, mu.item)
			}

			return nil
		})
		if err != nil {
			e.logger.Warn("queued simulation change failed",
				"run", r.id,
				"error", err)
		}
	}
}
