package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/motesim/sim"
	"github.com/sarchlab/motesim/sim/config"
	"github.com/sarchlab/motesim/simulation"
)

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Advance a simulation by a number of rounds.",
	Long: "`step -c conf.csc -n 10 -o out.csc` loads a simulation, runs " +
		"ten single rounds and saves the result. Without -o, the result is " +
		"printed as XML.",
	RunE: stepSimulation,
}

func init() {
	rootCmd.AddCommand(stepCmd)

	flags := stepCmd.Flags()
	flags.StringP("config", "c", "", "Simulation configuration file.")
	flags.IntP("rounds", "n", 1, "Number of rounds.")
	flags.StringP("output", "o", "", "File to save the result to.")

	_ = stepCmd.MarkFlagRequired("config")
}

func stepSimulation(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	rounds, _ := flags.GetInt("rounds")
	output, _ := flags.GetString("output")

	if rounds < 0 {
		return fmt.Errorf("rounds must not be negative, got %d", rounds)
	}

	s, err := simulation.MakeBuilder().
		WithoutMonitoring().
		WithoutRecording().
		Build()
	if err != nil {
		return err
	}
	defer s.Terminate()

	attachLogger(cmd, s.GetEngine())

	err = s.Load(cmd.Context(), configPath, sim.RestoreOptions{})
	if err != nil {
		return fmt.Errorf("loading %s: %w", configPath, err)
	}

	for i := 0; i < rounds; i++ {
		err = s.GetEngine().Step(cmd.Context())
		if err != nil {
			return err
		}
	}

	if output != "" {
		return s.Save(output)
	}

	root := config.NewNode(config.RootName, "", s.GetEngine().Config()...)

	return config.NewXMLCodec().Encode(cmd.OutOrStdout(), root)
}
