package cmd

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/motesim/instrumentation/tracing"
	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation.",
	Long: "`run -c conf.csc` loads a simulation and runs it until the time " +
		"given by --until, or until interrupted.",
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringP("config", "c", "", "Simulation configuration file.")
	flags.Int64("until", 0,
		"Simulation time (ms) to stop at. 0 runs until interrupted.")
	flags.Int64("delay", envInt(envDelay, -1),
		"Delay between rounds (ms). Negative keeps the configured delay.")
	flags.Bool("monitor", false, "Serve the web monitor.")
	flags.Int("port", int(envInt(envMonitorPort, 0)),
		"Port of the web monitor. 0 picks a free port.")
	flags.Bool("browser", false, "Open the web monitor in a browser.")
	flags.String("output", envString(envOutput, ""),
		"Name of the recording database, without extension.")
	flags.Bool("no-record", false, "Do not record the run.")
	flags.Bool("trace", false, "Print a span for every run to stderr.")
	flags.StringP("save", "o", "",
		"Save the configuration to this file when the run ends.")

	_ = runCmd.MarkFlagRequired("config")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	until, _ := flags.GetInt64("until")
	delay, _ := flags.GetInt64("delay")
	savePath, _ := flags.GetString("save")

	builder, err := simulationBuilder(cmd)
	if err != nil {
		return err
	}

	s, err := builder.Build()
	if err != nil {
		return err
	}

	defer s.Terminate()

	attachLogger(cmd, s.GetEngine())

	err = s.Load(cmd.Context(), configPath, sim.RestoreOptions{})
	if err != nil {
		return fmt.Errorf("loading %s: %w", configPath, err)
	}

	if delay >= 0 {
		s.GetEngine().SetDelayTime(delay)
	}

	if until <= 0 {
		until = math.MaxInt64
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = s.RunUntil(ctx, until)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("simulation aborted: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Simulation stopped at %d ms\n",
		s.GetEngine().SimulationTime())

	if savePath != "" {
		err = s.Save(savePath)
		if err != nil {
			return err
		}
	}

	return nil
}

func simulationBuilder(cmd *cobra.Command) (simulation.Builder, error) {
	flags := cmd.Flags()
	monitor, _ := flags.GetBool("monitor")
	port, _ := flags.GetInt("port")
	openBrowser, _ := flags.GetBool("browser")
	output, _ := flags.GetString("output")
	noRecord, _ := flags.GetBool("no-record")
	trace, _ := flags.GetBool("trace")

	builder := simulation.MakeBuilder()

	if monitor {
		builder = builder.WithMonitorPort(port)
		if openBrowser {
			builder = builder.WithBrowser()
		}
	} else {
		builder = builder.WithoutMonitoring()
	}

	if noRecord {
		builder = builder.WithoutRecording()
	} else if output != "" {
		builder = builder.WithOutputFileName(output)
	}

	if trace {
		provider, shutdown, err := tracing.NewStdoutProvider(os.Stderr)
		if err != nil {
			return builder, err
		}

		atexit.Register(func() {
			err := shutdown(context.Background())
			if err != nil {
				log.Printf("cannot flush traces: %v", err)
			}
		})

		builder = builder.WithTracerProvider(provider)
	}

	return builder, nil
}

func attachLogger(cmd *cobra.Command, e *sim.Engine) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return
	}

	e.AcceptHook(sim.NewEventLogger(log.New(cmd.ErrOrStderr(), "", 0)))
}
