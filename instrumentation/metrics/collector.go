// Package metrics exposes the progress of an engine as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/hooking"
)

// Collector keeps Prometheus metrics up to date with the rounds and the
// state changes of an engine.
type Collector struct {
	gatherer prometheus.Gatherer
	engine   *sim.Engine

	Rounds         prometheus.Counter
	SimulationTime prometheus.Gauge
	Units          prometheus.Gauge
	Running        prometheus.Gauge
	RoundInterval  prometheus.Histogram
	Notifications  *prometheus.CounterVec

	lock      sync.Mutex
	lastRound time.Time
}

// NewCollector registers the metrics against the provided registerer. A nil
// registerer means the default one.
func NewCollector(
	reg prometheus.Registerer,
	engine *sim.Engine,
) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer, engine: engine}

	var err error

	c.Rounds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "motesim_rounds_total",
		Help: "Number of rounds completed by the simulation loop.",
	}), "motesim_rounds_total")
	if err != nil {
		return nil, err
	}

	c.SimulationTime, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "motesim_simulation_time_ms",
		Help: "Current simulation time in milliseconds.",
	}), "motesim_simulation_time_ms")
	if err != nil {
		return nil, err
	}

	c.Units, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "motesim_units",
		Help: "Number of units in the simulation.",
	}), "motesim_units")
	if err != nil {
		return nil, err
	}

	c.Running, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "motesim_running",
		Help: "1 while the simulation loop is running, 0 otherwise.",
	}), "motesim_running")
	if err != nil {
		return nil, err
	}

	c.RoundInterval, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "motesim_round_interval_seconds",
		Help:    "Wall-clock time between two completed rounds of the same loop.",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "motesim_round_interval_seconds")
	if err != nil {
		return nil, err
	}

	c.Notifications, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "motesim_notifications_total",
		Help: "State-change notifications sent by the engine, by position.",
	}, []string{"pos"}), "motesim_notifications_total")
	if err != nil {
		return nil, err
	}

	c.Units.Set(float64(engine.UnitCount()))
	c.SimulationTime.Set(float64(engine.SimulationTime()))

	return c, nil
}

// Attach starts observing the engine.
func (c *Collector) Attach() {
	c.engine.AcceptHook(c)
	c.engine.AddRoundListener(c)
}

// Detach stops observing the engine.
func (c *Collector) Detach() {
	c.engine.RemoveHook(c)
	c.engine.RemoveRoundListener(c)
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}

	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RoundCompleted counts a round.
func (c *Collector) RoundCompleted(context.Context) {
	c.Rounds.Inc()
	c.SimulationTime.Set(float64(c.engine.SimulationTime()))

	now := time.Now()

	c.lock.Lock()
	last := c.lastRound
	c.lastRound = now
	c.lock.Unlock()

	if !last.IsZero() {
		c.RoundInterval.Observe(now.Sub(last).Seconds())
	}
}

// Func follows the state changes of the engine.
func (c *Collector) Func(ctx hooking.HookCtx) {
	if ctx.Pos == nil {
		return
	}

	c.Notifications.WithLabelValues(ctx.Pos.Name).Inc()

	switch ctx.Pos {
	case sim.HookPosSimulationStarted:
		c.resetInterval()
		c.Running.Set(1)
	case sim.HookPosSimulationStopped:
		c.Running.Set(0)
	case sim.HookPosUnitAdded, sim.HookPosUnitRemoved:
		c.Units.Set(float64(c.engine.UnitCount()))
	case sim.HookPosSimulationTimeChanged, sim.HookPosConfigRestored:
		c.SimulationTime.Set(float64(c.engine.SimulationTime()))
		c.Units.Set(float64(c.engine.UnitCount()))
	}
}

func (c *Collector) resetInterval() {
	c.lock.Lock()
	c.lastRound = time.Time{}
	c.lock.Unlock()
}

func register[T prometheus.Collector](
	reg prometheus.Registerer,
	collector T,
	name string,
) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	are, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		var zero T
		return zero, err
	}

	existing, ok := are.ExistingCollector.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf(
			"collector %s already registered with incompatible type", name)
	}

	return existing, nil
}
