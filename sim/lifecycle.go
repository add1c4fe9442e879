package sim

import (
	"context"
	"sync/atomic"

	"github.com/rs/xid"
)

// State is the lifecycle state of the simulation loop.
type State int

// The loop moves from Stopped to Starting when a goroutine is spawned, to
// Running once the loop is entered, to Stopping when a stop is requested or
// the loop decides to halt, and back to Stopped after the goroutine is done.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}

	return "unknown"
}

type loopCtxKey struct{}

// A run is one lifetime of the loop goroutine.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wake   chan struct{}

	rounds atomic.Uint64

	// stopAfter is the number of the round after which the loop halts; 0
	// means no limit. Guarded by Engine.lifeLock.
	stopAfter uint64

	// deferred holds the registry changes requested from the loop. They are
	// applied when the loop exits. Guarded by Engine.lifeLock.
	deferred []mutation
}

func newRun(stopAfter uint64) *run {
	r := &run{
		id:        xid.New().String(),
		done:      make(chan struct{}),
		wake:      make(chan struct{}, 1),
		stopAfter: stopAfter,
	}

	ctx := context.WithValue(context.Background(), loopCtxKey{}, r)
	r.ctx, r.cancel = context.WithCancel(ctx)

	return r
}

func (r *run) wakeUp() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *run) info() RunInfo {
	return RunInfo{ID: r.id, Rounds: r.rounds.Load()}
}

// RunFromContext returns the loop run that handed out ctx. Units, round
// listeners and loop hooks receive such contexts.
func RunFromContext(ctx context.Context) (RunInfo, bool) {
	if ctx == nil {
		return RunInfo{}, false
	}

	r, ok := ctx.Value(loopCtxKey{}).(*run)
	if !ok {
		return RunInfo{}, false
	}

	return r.info(), true
}

func isLoopContext(ctx context.Context, r *run) bool {
	if ctx == nil {
		return false
	}

	owner, _ := ctx.Value(loopCtxKey{}).(*run)

	return owner == r
}

// State returns the lifecycle state of the loop.
func (e *Engine) State() State {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	return e.state
}

// Running returns true if the loop goroutine is alive and not stopping.
func (e *Engine) Running() bool {
	s := e.State()
	return s == StateStarting || s == StateRunning
}

// Start spawns the loop goroutine. It does nothing if the loop is already
// running. If the loop is stopping, it is started again as soon as the old
// goroutine is done, and if a registry change is in progress, as soon as the
// change is applied. Start never blocks.
func (e *Engine) Start() {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	switch e.state {
	case StateStopped:
		if e.mutating {
			e.restartPending = true
			return
		}

		e.launch(0)
	case StateStopping:
		e.restartPending = true
	}
}

// Stop asks the loop to halt and waits until the loop goroutine has exited.
// The round in progress is completed unless a unit gives up on the cancelled
// context. Stop does nothing if the loop is stopped.
//
// If ctx was handed out by the loop itself, Stop only requests the halt and
// returns. If ctx is done before the loop has exited, Stop returns ctx.Err().
func (e *Engine) Stop(ctx context.Context) error {
	e.lifeLock.Lock()

	r := e.run

	switch e.state {
	case StateStopped:
		e.restartPending = false
		e.lifeLock.Unlock()

		return nil
	case StateStarting, StateRunning:
		e.state = StateStopping
	}

	e.restartPending = false
	r.cancel()
	e.lifeLock.Unlock()

	return e.wait(ctx, r)
}

// Step runs exactly one round and halts. If the loop is stopped, a new loop
// is started for a single round. If the loop is running, it halts after one
// more round that starts after this call. Step waits for the loop to exit,
// with the same context rules as Stop.
func (e *Engine) Step(ctx context.Context) error {
	for {
		e.lifeLock.Lock()

		switch e.state {
		case StateStopped:
			if e.mutating {
				resumed := e.resumed
				e.lifeLock.Unlock()

				select {
				case <-resumed:
					continue
				case <-ctx.Done():
					return ctx.Err()
				}
			}

			r := e.launch(1)
			e.lifeLock.Unlock()

			return e.wait(ctx, r)
		case StateStarting, StateRunning:
			r := e.run
			r.stopAfter = r.rounds.Load() + 1
			e.lifeLock.Unlock()

			r.wakeUp()

			return e.wait(ctx, r)
		}

		r := e.run
		e.lifeLock.Unlock()

		if isLoopContext(ctx, r) {
			return nil
		}

		err := e.wait(ctx, r)
		if err != nil {
			return err
		}
	}
}

func (e *Engine) wait(ctx context.Context, r *run) error {
	if isLoopContext(ctx, r) {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch must be called with lifeLock held.
func (e *Engine) launch(stopAfter uint64) *run {
	r := newRun(stopAfter)

	e.run = r
	e.state = StateStarting

	go e.loop(r)

	return r
}

func (e *Engine) enterRunning(r *run) {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	if e.run == r && e.state == StateStarting {
		e.state = StateRunning
	}
}

// beginRound counts a new round. It returns false if the loop should not
// start another round.
func (e *Engine) beginRound(r *run) bool {
	if r.ctx.Err() != nil {
		return false
	}

	r.rounds.Add(1)

	return true
}

// shouldHalt decides, after a round, whether the loop stops before sleeping.
func (e *Engine) shouldHalt(r *run) bool {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	return r.ctx.Err() != nil ||
		(r.stopAfter > 0 && r.rounds.Load() >= r.stopAfter)
}

// markStopping is called when the loop leaves its rounds, whatever the
// reason.
func (e *Engine) markStopping(r *run) {
	e.lifeLock.Lock()
	defer e.lifeLock.Unlock()

	if e.run == r {
		e.state = StateStopping
	}
}

// finish applies the changes queued by the loop, then marks the loop as
// stopped and launches the pending restart, if any.
func (e *Engine) finish(r *run) {
	for {
		e.lifeLock.Lock()

		pending := r.deferred
		r.deferred = nil

		if len(pending) == 0 {
			break
		}

		e.lifeLock.Unlock()

		e.applyDeferred(r, pending)
	}

	defer e.lifeLock.Unlock()

	r.cancel()

	e.state = StateStopped
	e.run = nil
	close(r.done)

	if e.restartPending && !e.mutating {
		e.restartPending = false
		e.launch(0)
	}
}
