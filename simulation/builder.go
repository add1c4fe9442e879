package simulation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarchlab/motesim/builtin"
	"github.com/sarchlab/motesim/datarecording"
	"github.com/sarchlab/motesim/instrumentation/metrics"
	"github.com/sarchlab/motesim/instrumentation/tracing"
	"github.com/sarchlab/motesim/monitoring"
	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/serialization"
)

// Builder can be used to build a simulation.
type Builder struct {
	engineBuilder  sim.EngineBuilder
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
	recordingOn    bool
	outputFileName string
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		engineBuilder: sim.MakeEngineBuilder(),
		monitorOn:     true,
		recordingOn:   true,
	}
}

// WithEngineBuilder sets how the engine is built. The type resolver of the
// engine builder is replaced by the registry of the simulation.
func (b Builder) WithEngineBuilder(eb sim.EngineBuilder) Builder {
	b.engineBuilder = eb
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutRecording sets the simulation to not record into a database.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithMetricsRegisterer sets where the metrics are registered. By default,
// every simulation has a registry of its own.
func (b Builder) WithMetricsRegisterer(reg prometheus.Registerer) Builder {
	b.registerer = reg
	return b
}

// WithTracerProvider enables a span for every loop lifetime.
func (b Builder) WithTracerProvider(tp trace.TracerProvider) Builder {
	b.tracerProvider = tp
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}

	if !b.recordingOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:    xid.New().String(),
		types: serialization.NewTypeRegistry(),
	}

	err := builtin.Register(s.types)
	if err != nil {
		return nil, err
	}

	s.engine = b.engineBuilder.WithTypeResolver(s.types).Build()

	err = b.buildMetrics(s)
	if err != nil {
		return nil, err
	}

	if b.recordingOn {
		b.buildRecording(s)
	}

	if b.tracerProvider != nil {
		s.engine.AcceptHook(tracing.NewRunTracer(b.tracerProvider))
	}

	if b.monitorOn {
		err = b.buildMonitor(s)
		if err != nil {
			s.Terminate()
			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildMetrics(s *Simulation) error {
	reg := b.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	collector, err := metrics.NewCollector(reg, s.engine)
	if err != nil {
		return err
	}

	collector.Attach()
	s.metrics = collector

	return nil
}

func (b Builder) buildRecording(s *Simulation) {
	outputPath := b.outputFileName
	if outputPath == "" {
		outputPath = "motesim_" + s.id
	}

	s.dataRecorder = datarecording.New(outputPath)

	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.execRecorder.Start()
	s.execRecorder.Record("Simulation ID", s.id)

	s.runRecorder = datarecording.NewRunRecorder(s.dataRecorder, s.engine)
	s.runRecorder.Attach()
}

func (b Builder) buildMonitor(s *Simulation) error {
	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	if b.openBrowser {
		s.monitor.WithBrowser()
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterMetrics(s.metrics.Handler())

	return s.monitor.StartServer()
}
