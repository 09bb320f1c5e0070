package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/ripple"
	"github.com/aretw0/ripple/internal/cli"
	"github.com/aretw0/ripple/internal/presentation/tui"
	httpAdapter "github.com/aretw0/ripple/pkg/adapters/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the engine with the devtools HTTP server",
	Long: `Starts the engine with the example features and exposes it over HTTP:
dispatch actions (POST /actions), stream the timeline (GET /actions/stream),
read state and handlers, Prometheus metrics (/metrics) and the run journal (/trace).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		names, _ := cmd.Flags().GetStringSlice("features")
		quiet, _ := cmd.Flags().GetBool("quiet")
		if addr == "" {
			addr = cfg.HTTP.Addr
		}

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		rt, err := cli.NewRuntime(sigCtx, cli.RuntimeOptions{Config: cfg, Logger: logger, Features: names})
		if err != nil {
			return err
		}
		defer rt.Close()

		devtools := httpAdapter.NewServer(rt.Engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithVersion(ripple.Version),
			httpAdapter.WithMetrics(rt.Metrics.Handler()),
			httpAdapter.WithTrace(rt.Journal.Snapshot),
			httpAdapter.WithValidator(rt.Validator.Validate),
		)
		defer devtools.Close()

		srv := &http.Server{
			Addr:              addr,
			Handler:           devtools,
			ReadHeaderTimeout: 10 * time.Second,
		}

		out := cmd.OutOrStdout()
		if !quiet {
			tui.PrintBanner(out, ripple.Version)
		}
		cli.PrintSystemMessage(out, "Serving %d handlers on http://%s", len(rt.Engine.Handlers()), addr)

		g, ctx := errgroup.WithContext(sigCtx)
		g.Go(func() error {
			return rt.Engine.Run(ctx)
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			// Close streams first so SSE handlers return before Shutdown waits on them.
			devtools.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete: %w", err)
			}
			return nil
		})

		err = g.Wait()
		cli.LogCompletion(out, "Server", sigCtx.Signal())
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr from config)")
	serveCmd.Flags().StringSlice("features", nil, "Features to register (default all)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
