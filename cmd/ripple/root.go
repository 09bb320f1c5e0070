package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/ripple/internal/cli"
	"github.com/aretw0/ripple/internal/config"
	"github.com/aretw0/ripple/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ripple",
	Short: "Ripple runs reactive action handlers over a single dispatch timeline",
	Long: `Ripple wires action handlers (latest-wins, serialized, debounced, raced and retried)
to a dispatch bus and a reducer store. The CLI serves the example features over HTTP and MCP,
replays scripted action sequences and describes the registered handlers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		debug, _ := cmd.Flags().GetBool("debug")

		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.SlogLevel()
		if debug {
			level = slog.LevelDebug
		}
		logger = logging.NewWithWriter(os.Stderr, level, cfg.Log.Format)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if err = cli.HandleExecutionError(err); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./ripple.yaml or ~/.config/ripple/ripple.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}
