package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/motesim/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report <recording>",
	Short: "Print what a recorded simulation did.",
	Long: "`report motesim_xxx.sqlite3` prints how the simulator was " +
		"invoked, every start and stop of the loop, and the recorded rounds.",
	Args: cobra.ExactArgs(1),
	RunE: printReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.String("run", "", "Only report the run with this id.")
	flags.Int("limit", 20, "Number of rounds to print. 0 prints all.")
	flags.Int("offset", 0, "Number of rounds to skip.")
}

func printReport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	run, _ := flags.GetString("run")
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")

	reader, err := datarecording.OpenRunReader(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	execInfo, err := reader.ExecInfo(ctx)
	if err != nil {
		return err
	}

	for _, info := range execInfo {
		fmt.Fprintf(out, "%s: %s\n", info.Property, info.Value)
	}

	lifecycle, err := reader.Lifecycle(ctx, run)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\nLoop:")
	writeLifecycle(out, lifecycle)

	rounds, total, err := reader.Rounds(ctx, run, limit, offset)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nRounds (%d of %d):\n", len(rounds), total)
	writeRounds(out, rounds)

	return nil
}

func writeLifecycle(out io.Writer, entries []datarecording.LifecycleEntry) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tEVENT\tSIM TIME\tROUNDS\tERROR")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			e.Run, e.Event, e.SimTime, e.Rounds, e.Error)
	}

	_ = w.Flush()
}

func writeRounds(out io.Writer, entries []datarecording.RoundEntry) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tROUND\tSIM TIME\tUNITS\tWALL TIME (s)")

	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.3f\n",
			e.Run, e.Round, e.SimTime, e.Units, e.WallTime)
	}

	_ = w.Flush()
}
