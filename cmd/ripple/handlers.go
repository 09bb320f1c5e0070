package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/ripple/internal/cli"
	"github.com/aretw0/ripple/internal/presentation/graph"
	"github.com/aretw0/ripple/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "Describe the registered handlers",
	Long: `Lists every handler with the action types it reacts to, its concurrency strategy and
its loading bracket. Formats: table (rendered markdown), markdown, json, mermaid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("features")
		format, _ := cmd.Flags().GetString("format")
		style, _ := cmd.Flags().GetString("style")

		rt, err := cli.NewRuntime(cmd.Context(), cli.RuntimeOptions{Config: cfg, Logger: logger, Features: names})
		if err != nil {
			return err
		}
		defer rt.Close()

		infos := rt.Engine.Handlers()
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(infos, nil))
			return nil
		case "markdown":
			fmt.Fprint(out, tui.HandlersMarkdown("Handlers", infos))
			return nil
		case "table":
			render, err := tui.NewRenderer(style)
			if err != nil {
				return err
			}
			rendered, err := render(tui.HandlersMarkdown("Handlers", infos))
			if err != nil {
				return fmt.Errorf("render handlers: %w", err)
			}
			fmt.Fprint(out, rendered)
			return nil
		}
		return fmt.Errorf("unknown format %q (table, markdown, json, mermaid)", format)
	},
}

func init() {
	rootCmd.AddCommand(handlersCmd)
	handlersCmd.Flags().StringSlice("features", nil, "Features to register (default all)")
	handlersCmd.Flags().StringP("format", "f", "table", "Output format: table, markdown, json, mermaid")
	handlersCmd.Flags().String("style", "auto", "Markdown style for the table format (auto, dark, light, notty)")
}
