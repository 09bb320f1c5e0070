package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/ripple"
	"github.com/aretw0/ripple/internal/cli"
	"github.com/aretw0/ripple/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP Server.
This allows AI agents to dispatch actions, list handlers and read state as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")
		names, _ := cmd.Flags().GetStringSlice("features")

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		rt, err := cli.NewRuntime(sigCtx, cli.RuntimeOptions{Config: cfg, Logger: logger, Features: names})
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.Engine.Start(sigCtx); err != nil {
			return err
		}
		defer rt.Engine.Stop(context.Background())

		srv := mcp.NewServer(rt.Engine, ripple.Version,
			mcp.WithLogger(logger),
			mcp.WithValidator(rt.Validator.Validate),
		)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting Ripple MCP Server (Stdio)")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting Ripple MCP Server (SSE)", "addr", addr)
			if err := srv.ServeSSE(sigCtx, addr); err != nil {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		}
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", "127.0.0.1:8681", "Listen address (only for SSE)")
	mcpCmd.Flags().StringSlice("features", nil, "Features to register (default all)")
}
