package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/ripple"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of ripple",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ripple version %s\n", strings.TrimSpace(ripple.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
