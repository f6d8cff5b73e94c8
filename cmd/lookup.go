package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helmcode/errfriendly/pkg/messages"
)

func NewLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup CATEGORY [MESSAGE...]",
		Short: "Print the static explanation of an error type",
		Long: `Print the built-in explanation of an error type, as shown when no AI backend is used.

Examples:
  errfriendly lookup KeyError
  errfriendly lookup TypeError "'NoneType' object is not subscriptable"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), messages.Lookup(args[0], strings.Join(args[1:], " ")))
			return err
		},
	}
}
