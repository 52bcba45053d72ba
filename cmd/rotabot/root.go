package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rotabot",
		Short: "On-call rotation bot",
		Long: `rotabot assigns on-call responsibility across a team roster,
announces the assignment on a weekday schedule, and lets members confirm
or skip through interactive message buttons.

Configuration is environment driven; a .env file in the working directory
is loaded when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(func() {
		// Same convention as the original deployment: optional .env file.
		_ = godotenv.Load()
	})

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rotabot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
