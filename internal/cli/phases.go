package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/bark/internal/core/phase"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List the phase catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printPhases(stdout)
	},
}

// PhasesCmd returns the phases command
func PhasesCmd() *cobra.Command {
	return phasesCmd
}

func printPhases(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tCATEGORY\tLABEL")
	fmt.Fprintln(tw, "-----\t--------\t-----")
	for _, e := range phase.All() {
		name := string(e.Phase)
		if e.Phase == phase.Default {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, e.Category, e.Label)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, "\n* default initial phase")
	return nil
}
