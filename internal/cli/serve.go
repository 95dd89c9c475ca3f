package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/api"
	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/models"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the local HTTP API and OAuth callback",
	Long: `Start the local HTTP server.

Endpoints:
  GET /health           liveness
  GET /metrics          Prometheus metrics
  GET /oauth/callback   authorization redirect target
  GET /accounts         authorized accounts (X-API-Key when server.api_keys is set)
  GET /bindings         table bindings (X-API-Key when server.api_keys is set)

The configuration file is watched and reloaded on change.

Example:
  redadsync serve --port 8319`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveFlags struct {
	Host string
	Port int
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	serverCfg := rt.cfg.Server
	if serveFlags.Host != "" {
		serverCfg.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		serverCfg.Port = serveFlags.Port
	}

	ctx, cancel := api.SignalContext(cmd.Context())
	defer cancel()

	rt.loader.SetOnChange(func(next *config.Config) {
		if next.Server.Addr() != rt.cfg.Server.Addr() {
			rt.logger.Warn("server address changed, restart to apply", "addr", next.Server.Addr())
		}
	})
	if err := rt.loader.Watch(ctx); err != nil {
		rt.logger.Warn("config watch unavailable", "error", err)
	}

	server := api.NewServer(serverCfg, api.Deps{
		Credentials: rt.credentials,
		Bindings:    rt.bindings,
		Lifecycle:   rt.manager,
		Authorizer:  rt.manager,
		Metrics:     rt.metrics,
		Logger:      rt.logger,
		OnAuthorized: func(bundles []models.TokenBundle) {
			for _, b := range bundles {
				rt.logger.Info("account authorized via callback", "account_id", b.AdvertiserID, "account_name", b.AdvertiserName)
			}
		},
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", serverCfg.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
