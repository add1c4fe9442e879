package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/motesim/builtin"
	"github.com/sarchlab/motesim/sim/serialization"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the types that configurations can refer to.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		types := serialization.NewTypeRegistry()

		err := builtin.Register(types)
		if err != nil {
			return err
		}

		for _, name := range types.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
