package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/motesim/sim/hooking"
)

type runRecorder struct {
	lock sync.Mutex
	runs []RunInfo
}

func (r *runRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosSimulationStopped {
		return
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	r.runs = append(r.runs, ctx.Detail.(RunInfo))
}

func (r *runRecorder) Runs() []RunInfo {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]RunInfo(nil), r.runs...)
}

var _ = Describe("Engine lifecycle", func() {
	var (
		e          *Engine
		tracer     *hooking.PosCountTracer
		recorder   *runRecorder
		rounds     atomic.Int64
		u1, u2, u3 *countingUnit
	)

	BeforeEach(func() {
		e = MakeEngineBuilder().
			WithLogger(quietLogger()).
			WithDelayTime(0).
			Build()

		tracer = hooking.NewPosCountTracer()
		recorder = &runRecorder{}
		e.AcceptHook(tracer)
		e.AcceptHook(recorder)

		rounds.Store(0)
		e.AddRoundListener(NewRoundListenerFunc(func(context.Context) {
			rounds.Add(1)
		}))

		u1 = &countingUnit{}
		u2 = &countingUnit{}
		u3 = &countingUnit{}
		e.AddUnit(context.Background(), u1)
		e.AddUnit(context.Background(), u2)
		e.AddUnit(context.Background(), u3)
	})

	AfterEach(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		Expect(e.Stop(ctx)).To(Succeed())
	})

	It("should run one round per step", func() {
		for i := 0; i < 3; i++ {
			Expect(e.Step(context.Background())).To(Succeed())
		}

		Expect(e.SimulationTime()).To(Equal(int64(3)))
		Expect(e.State()).To(Equal(StateStopped))
		Expect(rounds.Load()).To(Equal(int64(3)))

		for _, u := range []*countingUnit{u1, u2, u3} {
			Expect(u.Times()).To(Equal([]int64{0, 1, 2}))
		}

		Expect(tracer.GetPosCount(HookPosSimulationStarted)).
			To(Equal(uint64(3)))
		Expect(tracer.GetPosCount(HookPosSimulationStopped)).
			To(Equal(uint64(3)))

		runs := recorder.Runs()
		Expect(runs).To(HaveLen(3))
		Expect(runs[0].ID).NotTo(Equal(runs[1].ID))
		Expect(runs[0].Rounds).To(Equal(uint64(1)))
	})

	It("should advance the time by the tick time", func() {
		Expect(e.SetTickTime(250)).To(Succeed())
		e.SetSimulationTime(1000)

		Expect(e.Step(context.Background())).To(Succeed())
		Expect(e.Step(context.Background())).To(Succeed())

		Expect(e.SimulationTime()).To(Equal(int64(1500)))
		Expect(u1.Times()).To(Equal([]int64{1000, 1250}))
	})

	It("should run until stopped from another goroutine", func() {
		e.Start()
		Expect(e.Running()).To(BeTrue())

		Eventually(rounds.Load).Should(BeNumerically(">=", 5))

		Expect(e.Stop(context.Background())).To(Succeed())

		Expect(e.State()).To(Equal(StateStopped))
		Expect(u1.ticks.Load()).To(Equal(u3.ticks.Load()))
		Expect(e.SimulationTime()).To(Equal(u1.ticks.Load()))
		Expect(tracer.GetPosCount(HookPosSimulationStopped)).
			To(Equal(uint64(1)))
	})

	It("should ignore start while running", func() {
		e.SetDelayTime(10)
		e.Start()
		e.Start()

		Expect(e.Stop(context.Background())).To(Succeed())

		Expect(tracer.GetPosCount(HookPosSimulationStarted)).
			To(Equal(uint64(1)))
	})

	It("should ignore stop while stopped", func() {
		Expect(e.Stop(context.Background())).To(Succeed())
		Expect(tracer.GetPosCount(HookPosSimulationStopped)).To(BeZero())
	})

	It("should stop from a round listener", func() {
		e.AddRoundListener(NewRoundListenerFunc(func(ctx context.Context) {
			Expect(e.Stop(ctx)).To(Succeed())
		}))

		e.Start()

		Eventually(e.State).Should(Equal(StateStopped))
		Expect(rounds.Load()).To(Equal(int64(1)))
		Expect(u2.ticks.Load()).To(Equal(int64(1)))
	})

	It("should step from a round listener without deadlocking", func() {
		var stepped atomic.Bool

		e.AddRoundListener(NewRoundListenerFunc(func(ctx context.Context) {
			if !stepped.CompareAndSwap(false, true) {
				return
			}

			_, ok := RunFromContext(ctx)
			Expect(ok).To(BeTrue())
			Expect(e.Step(ctx)).To(Succeed())
		}))

		e.Start()

		Eventually(e.State).Should(Equal(StateStopped))
		Expect(rounds.Load()).To(Equal(int64(2)))
	})

	It("should give up waiting when the context expires", func() {
		blocker := &countingUnit{block: make(chan struct{})}
		e.AddUnit(context.Background(), blocker)

		e.Start()
		Eventually(blocker.ticks.Load).Should(Equal(int64(1)))

		ctx, cancel := context.WithTimeout(
			context.Background(), 20*time.Millisecond)
		defer cancel()

		err := e.Stop(ctx)

		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(e.State()).To(Equal(StateStopping))
		Expect(e.Running()).To(BeFalse())

		close(blocker.block)

		Eventually(e.State).Should(Equal(StateStopped))
	})

	It("should abort the loop when a unit fails", func() {
		u2.failAt = 2

		e.Start()

		Eventually(e.State).Should(Equal(StateStopped))

		Expect(u1.ticks.Load()).To(Equal(int64(2)))
		Expect(u2.ticks.Load()).To(Equal(int64(2)))
		Expect(u3.ticks.Load()).To(Equal(int64(1)))
		Expect(e.SimulationTime()).To(Equal(int64(1)))
		Expect(rounds.Load()).To(Equal(int64(1)))

		runs := recorder.Runs()
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Err).To(MatchError(errUnitFailed))
	})

	It("should abort the loop when a unit panics", func() {
		u3.panicAt = 1

		e.Start()

		Eventually(e.State).Should(Equal(StateStopped))

		runs := recorder.Runs()
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Err).To(MatchError(ErrPanic))
		Expect(runs[0].Err.Error()).To(ContainSubstring("unit exploded"))
	})

	It("should finish one more round when stepping a running loop", func() {
		e.SetDelayTime(60 * 60 * 1000)
		e.Start()

		Eventually(rounds.Load).Should(Equal(int64(1)))

		Expect(e.Step(context.Background())).To(Succeed())

		Expect(e.State()).To(Equal(StateStopped))
		Expect(rounds.Load()).To(Equal(int64(2)))
		Expect(e.SimulationTime()).To(Equal(int64(2)))
	})

	It("should restart when started while stopping", func() {
		var restarted atomic.Bool

		e.AcceptHook(hooking.NewFuncHook(func(ctx hooking.HookCtx) {
			if ctx.Pos != HookPosSimulationStopped {
				return
			}

			if restarted.CompareAndSwap(false, true) {
				Expect(e.State()).To(Equal(StateStopping))
				e.Start()
			}
		}))

		e.Start()
		Expect(e.Stop(context.Background())).To(Succeed())

		Expect(e.Running()).To(BeTrue())
		Eventually(func() uint64 {
			return tracer.GetPosCount(HookPosSimulationStarted)
		}).Should(Equal(uint64(2)))
	})

	It("should stop and restart around unit changes", func() {
		e.Start()
		Eventually(rounds.Load).Should(BeNumerically(">=", 1))

		u4 := &countingUnit{}
		e.AddUnit(context.Background(), u4)

		Expect(e.Running()).To(BeTrue())
		Eventually(u4.ticks.Load).Should(BeNumerically(">=", 1))

		e.RemoveUnit(context.Background(), u1)
		Expect(e.Running()).To(BeTrue())

		Expect(tracer.GetPosCount(HookPosSimulationStarted)).
			To(BeNumerically(">=", 3))
	})

	It("should queue unit changes requested from a tick", func() {
		var (
			added       atomic.Bool
			countInTick atomic.Int64
		)

		spawned := &countingUnit{}
		e.AddUnit(context.Background(), &callbackUnit{
			onTick: func(ctx context.Context) {
				if !added.CompareAndSwap(false, true) {
					return
				}

				e.AddUnit(ctx, spawned)
				countInTick.Store(int64(e.UnitCount()))
			},
		})

		e.Start()

		Eventually(spawned.ticks.Load).Should(BeNumerically(">=", 1))
		Expect(countInTick.Load()).To(Equal(int64(4)))
		Expect(spawned.Times()[0]).To(BeNumerically(">=", 1))
		Expect(e.UnitCount()).To(Equal(5))
		Expect(e.Running()).To(BeTrue())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		Expect(e.Stop(ctx)).To(Succeed())
		Expect(e.State()).To(Equal(StateStopped))
		Expect(recorder.Runs()[0].Err).NotTo(HaveOccurred())
	})

	It("should apply changes from a listener after a step", func() {
		var (
			changed     atomic.Bool
			boundEarly  atomic.Bool
			medium      = &recordingMedium{}
			extra       = &countingUnit{}
			listenerErr = make(chan error, 1)
		)

		e.AddRoundListener(NewRoundListenerFunc(func(ctx context.Context) {
			if !changed.CompareAndSwap(false, true) {
				return
			}

			e.RemoveUnit(ctx, u1)
			e.AddUnit(ctx, extra)
			e.SetMedium(ctx, medium)
			boundEarly.Store(e.Medium() != nil)

			listenerErr <- e.Stop(ctx)
		}))

		Expect(e.Step(context.Background())).To(Succeed())

		Expect(listenerErr).To(Receive(BeNil()))
		Expect(boundEarly.Load()).To(BeFalse())
		Expect(e.State()).To(Equal(StateStopped))
		Expect(e.Units()).To(Equal([]Unit{u2, u3, extra}))
		Expect(medium.Units()).To(Equal([]Unit{u2, u3, extra}))
		Expect(extra.ticks.Load()).To(BeZero())
		Expect(tracer.GetPosCount(HookPosUnitAdded)).To(Equal(uint64(4)))
	})

	It("should wait for a stopping loop before changing the units", func() {
		blocker := &countingUnit{block: make(chan struct{})}
		e.AddUnit(context.Background(), blocker)

		e.Start()
		Eventually(blocker.ticks.Load).Should(Equal(int64(1)))

		stopped := make(chan error, 1)
		go func() {
			stopped <- e.Stop(context.Background())
		}()
		Eventually(e.State).Should(Equal(StateStopping))

		u4 := &countingUnit{}
		added := make(chan struct{})
		go func() {
			e.AddUnit(context.Background(), u4)
			close(added)
		}()

		Consistently(added, 50*time.Millisecond).ShouldNot(BeClosed())
		Expect(e.UnitCount()).To(Equal(4))

		close(blocker.block)

		Eventually(added).Should(BeClosed())
		Eventually(stopped).Should(Receive(BeNil()))
		Expect(e.UnitCount()).To(Equal(5))
		Expect(e.State()).To(Equal(StateStopped))
		Expect(u4.ticks.Load()).To(BeZero())
	})

	It("should rebind the medium while the loop is paused", func() {
		e.Start()
		Eventually(rounds.Load).Should(BeNumerically(">=", 1))

		medium := &recordingMedium{}
		e.SetMedium(context.Background(), medium)

		Expect(medium.Units()).To(Equal([]Unit{u1, u2, u3}))
		Expect(e.Running()).To(BeTrue())
		Expect(tracer.GetPosCount(HookPosSimulationStarted)).
			To(BeNumerically(">=", 2))

		Expect(e.Stop(context.Background())).To(Succeed())
	})

	It("should hold back a start until a pending unit change is applied",
		func() {
			blocker := &countingUnit{block: make(chan struct{})}
			e.AddUnit(context.Background(), blocker)

			e.Start()
			Eventually(blocker.ticks.Load).Should(Equal(int64(1)))

			removed := make(chan struct{})
			go func() {
				e.RemoveUnit(context.Background(), blocker)
				close(removed)
			}()
			Eventually(e.State).Should(Equal(StateStopping))

			e.Start()
			Expect(e.State()).To(Equal(StateStopping))

			close(blocker.block)

			Eventually(removed).Should(BeClosed())
			Expect(e.Running()).To(BeTrue())
			Expect(e.UnitCount()).To(Equal(3))

			ticks := blocker.ticks.Load()
			Consistently(blocker.ticks.Load, 30*time.Millisecond).
				Should(Equal(ticks))

			Expect(e.Stop(context.Background())).To(Succeed())
		})

	It("should report the run to the loop hooks", func() {
		var (
			lock sync.Mutex
			ids  []string
		)

		e.AcceptHook(hooking.NewFuncHook(func(ctx hooking.HookCtx) {
			if ctx.Pos != HookPosSimulationStarted {
				return
			}

			info, ok := RunFromContext(ctx.Context)
			Expect(ok).To(BeTrue())

			lock.Lock()
			ids = append(ids, info.ID)
			lock.Unlock()
		}))

		Expect(e.Step(context.Background())).To(Succeed())

		runs := recorder.Runs()
		Expect(ids).To(Equal([]string{runs[0].ID}))

		_, ok := RunFromContext(context.Background())
		Expect(ok).To(BeFalse())
	})
})
