package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/motesim/sim/config"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a configuration between XML, YAML and JSON.",
	Long: "`convert conf.csc conf.yaml` rewrites a configuration in the " +
		"format given by the extension of the output file.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := config.ReadFile(args[0])
		if err != nil {
			return err
		}

		err = config.WriteFile(args[1], root)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s\n", args[0], args[1])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
