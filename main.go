package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helmcode/errfriendly/cmd"
	"github.com/helmcode/errfriendly/pkg/config"
	"github.com/helmcode/errfriendly/pkg/hook"
	"github.com/helmcode/errfriendly/pkg/pipeline"
)

var (
	version = "v0.1.0" // Overwritten at build time
)

func main() {
	// A crash of the CLI itself gets the static explanation.
	hook.Install(pipeline.New(config.MustStore(nil)), hook.Options{ShowOriginalTraceback: true})
	defer hook.Guard()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "errfriendly",
		Short: "Human-friendly explanations of crashes",
		Long: `errfriendly explains unhandled exceptions: it reconstructs the exception chain,
points at the root cause and, when an AI backend is configured, asks it for a
tailored explanation. Without a backend the built-in explanation is shown.`,
		SilenceUsage: true,
	}

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cmd.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(
		cmd.NewExplainCmd(),
		cmd.NewPodCmd(),
		cmd.NewServeCmd(),
		cmd.NewLookupCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("errfriendly version %s\n", version)
		},
	}
}
