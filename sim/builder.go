package sim

import (
	"log/slog"

	"github.com/sarchlab/motesim/sim/serialization"
)

// EngineBuilder can be used to build an Engine.
type EngineBuilder struct {
	logger    *slog.Logger
	resolver  TypeResolver
	title     string
	delayTime int64
	tickTime  int64
	simTime   int64
}

// MakeEngineBuilder creates a builder with a 5 ms delay, a 1 ms tick time
// and the process-wide type registry.
func MakeEngineBuilder() EngineBuilder {
	return EngineBuilder{
		resolver:  serialization.DefaultRegistry(),
		delayTime: 5,
		tickTime:  1,
	}
}

// WithLogger sets the logger of the engine.
func (b EngineBuilder) WithLogger(logger *slog.Logger) EngineBuilder {
	b.logger = logger
	return b
}

// WithTypeResolver sets the resolver used to restore configurations.
func (b EngineBuilder) WithTypeResolver(r TypeResolver) EngineBuilder {
	b.resolver = r
	return b
}

// WithTitle sets the title of the simulation.
func (b EngineBuilder) WithTitle(title string) EngineBuilder {
	b.title = title
	return b
}

// WithDelayTime sets the pause between rounds, in milliseconds.
func (b EngineBuilder) WithDelayTime(ms int64) EngineBuilder {
	b.delayTime = ms
	return b
}

// WithTickTime sets the simulation time that passes per round.
func (b EngineBuilder) WithTickTime(ms int64) EngineBuilder {
	b.tickTime = ms
	return b
}

// WithSimulationTime sets the initial simulation time.
func (b EngineBuilder) WithSimulationTime(ms int64) EngineBuilder {
	b.simTime = ms
	return b
}

func (b EngineBuilder) parametersMustBeValid() {
	if b.tickTime <= 0 {
		panic("tick time must be positive")
	}

	if b.delayTime < 0 {
		panic("delay time must not be negative")
	}
}

// Build creates the engine.
func (b EngineBuilder) Build() *Engine {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		logger:    logger,
		resolver:  b.resolver,
		title:     b.title,
		delayTime: b.delayTime,
		tickTime:  b.tickTime,
		simTime:   b.simTime,
		units:     NewUnitRegistry(),
	}
}
