package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/bark/internal/cli"
	"github.com/example/bark/internal/version"
	"github.com/example/bark/internal/wire"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	var actor string
	rootCmd := &cobra.Command{
		Use:     "bark",
		Short:   "bark - repair job phase ledger and cycle-time analytics",
		Version: version.String(),
		Long: `bark records every phase change of a repair job in an append-only
history and answers cycle-time questions over it: averages between phases,
daily trends, dwell times and grouped tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.SetActorID(actor)
		},
	}
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Acting user (default BARK_ACTOR or $USER)")

	rootCmd.AddCommand(cli.JobCmd())
	rootCmd.AddCommand(cli.StatsCmd())
	rootCmd.AddCommand(cli.PhasesCmd())
	rootCmd.AddCommand(cli.ServeCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
