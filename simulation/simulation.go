// Package simulation puts an engine together with the services that most
// simulations need: the type registry, recording, metrics and monitoring.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sarchlab/motesim/datarecording"
	"github.com/sarchlab/motesim/instrumentation/metrics"
	"github.com/sarchlab/motesim/monitoring"
	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
	"github.com/sarchlab/motesim/sim/hooking"
	"github.com/sarchlab/motesim/sim/serialization"
)

// ErrNotASimulation is returned when a document does not describe a
// simulation.
var ErrNotASimulation = errors.New("document is not a simulation")

// A Simulation provides the service requires to run a simulation.
type Simulation struct {
	id     string
	engine *sim.Engine
	types  *serialization.TypeRegistry

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	runRecorder  *datarecording.RunRecorder
	monitor      *monitoring.Monitor
	metrics      *metrics.Collector
}

// ID returns the unique identifier of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() *sim.Engine {
	return s.engine
}

// GetTypeRegistry returns the registry used to restore configurations. It
// already knows the built-in types.
func (s *Simulation) GetTypeRegistry() *serialization.TypeRegistry {
	return s.types
}

// GetDataRecorder returns the data recorder used in the simulation, or nil
// if recording is disabled.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation, or nil.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetMetrics returns the metrics collector of the simulation.
func (s *Simulation) GetMetrics() *metrics.Collector {
	return s.metrics
}

// Load restores the simulation from a document. The format is picked from
// the file extension.
func (s *Simulation) Load(
	ctx context.Context,
	path string,
	opts sim.RestoreOptions,
) error {
	root, err := config.ReadFile(path)
	if err != nil {
		return err
	}

	if root.Name != config.RootName {
		return fmt.Errorf("%w: root element is %q", ErrNotASimulation, root.Name)
	}

	return s.engine.RestoreConfig(ctx, root.Children, opts)
}

// Save writes the current configuration of the simulation into a document.
func (s *Simulation) Save(path string) error {
	root := config.NewNode(config.RootName, "", s.engine.Config()...)
	return config.WriteFile(path, root)
}

// RunUntil runs the simulation until the simulation time reaches simTime,
// the loop aborts, or ctx is done. It returns the error that aborted the
// loop, or ctx.Err().
func (s *Simulation) RunUntil(ctx context.Context, simTime int64) error {
	e := s.engine

	start := e.SimulationTime()
	if start >= simTime {
		return nil
	}

	var bar *monitoring.ProgressBar
	if s.monitor != nil {
		bar = s.monitor.CreateProgressBar("Simulation", uint64(simTime-start))
		defer s.monitor.CompleteProgressBar(bar)
	}

	stopped := make(chan sim.RunInfo, 1)

	limit := sim.NewRoundListenerFunc(func(loopCtx context.Context) {
		now := e.SimulationTime()
		if bar != nil {
			bar.SetFinished(uint64(now - start))
		}

		if now >= simTime {
			_ = e.Stop(loopCtx)
		}
	})

	watch := hooking.NewFuncHook(func(hookCtx hooking.HookCtx) {
		if hookCtx.Pos != sim.HookPosSimulationStopped {
			return
		}

		info, _ := hookCtx.Detail.(sim.RunInfo)

		select {
		case stopped <- info:
		default:
		}
	})

	e.AddRoundListener(limit)
	e.AcceptHook(watch)

	defer e.RemoveRoundListener(limit)
	defer e.RemoveHook(watch)

	e.Start()

	select {
	case info := <-stopped:
		err := e.Stop(context.Background())
		if err != nil {
			return err
		}

		return info.Err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		_ = e.Stop(stopCtx)

		return ctx.Err()
	}
}

// Terminate stops the simulation and releases everything it holds.
func (s *Simulation) Terminate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.engine.Stop(ctx)
	if err != nil {
		s.engine.Logger().Warn("simulation did not stop in time", "error", err)
	}

	if s.runRecorder != nil {
		s.runRecorder.Detach()
	}

	if s.execRecorder != nil {
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		err = s.dataRecorder.Close()
		if err != nil {
			s.engine.Logger().Warn("cannot close recording", "error", err)
		}
	}

	if s.monitor != nil {
		err = s.monitor.StopServer(ctx)
		if err != nil {
			s.engine.Logger().Warn("cannot stop monitor", "error", err)
		}
	}
}
