package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/ripple/internal/cli"
	"github.com/aretw0/ripple/internal/presentation/tui"
	"github.com/aretw0/ripple/pkg/domain"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a scripted action sequence and trace the timeline",
	Long: `Runs the engine, dispatches the actions of a YAML script with its waits and
expectations, and prints every action of the resulting timeline.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("features")
		jsonMode, _ := cmd.Flags().GetBool("json")
		showState, _ := cmd.Flags().GetBool("state")

		script, err := cli.LoadScript(args[0])
		if err != nil {
			return err
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		rt, err := cli.NewRuntime(sigCtx, cli.RuntimeOptions{Config: cfg, Logger: logger, Features: names})
		if err != nil {
			return err
		}
		defer rt.Close()

		out := cmd.OutOrStdout()
		var observe func(domain.Action)
		if jsonMode {
			enc := json.NewEncoder(out)
			observe = func(act domain.Action) { _ = enc.Encode(act) }
		} else {
			if script.Name != "" {
				cli.PrintSystemMessage(out, "Replaying %q (%d steps)", script.Name, len(script.Steps))
			}
			observe = tui.NewTrace(out).Print
		}

		res, err := cli.Replay(sigCtx, rt, script, observe, logger)
		if err != nil {
			return err
		}

		if showState {
			b, err := json.MarshalIndent(res.State.Tree(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode state: %w", err)
			}
			fmt.Fprintln(out, string(b))
		}
		if !jsonMode {
			cli.LogCompletion(out, fmt.Sprintf("Replay (%d actions)", len(res.Actions)), sigCtx.Signal())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringSlice("features", nil, "Features to register (default all)")
	replayCmd.Flags().Bool("json", false, "Print actions as NDJSON instead of a coloured trace")
	replayCmd.Flags().Bool("state", false, "Print the final state snapshot")
}
