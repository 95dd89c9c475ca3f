package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/api"
	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/models"
)

var authorizeFlags struct {
	listen bool
	state  string
}

var authorizeCmd = &cobra.Command{
	Use:   "authorize [redirect-url]",
	Short: "Authorize advertiser accounts and store their tokens",
	Long: `Print the consent page URL, then exchange the authorization code for
tokens and store one bundle per approved advertiser.

The code is read from the redirect URL given as argument, from stdin, or
with --listen from the local OAuth callback (server.host:server.port,
path /oauth/callback).

Example:
  redadsync authorize
  redadsync authorize "https://example.com/cb?auth_code=abc"
  redadsync authorize --listen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthorize,
}

func init() {
	authorizeCmd.Flags().BoolVar(&authorizeFlags.listen, "listen", false, "Wait for the redirect on the local OAuth callback")
	authorizeCmd.Flags().StringVar(&authorizeFlags.state, "state", "", "State value to send with the authorization request")
	RootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := api.SignalContext(cmd.Context())
	defer cancel()
	ctx, _ = logging.EnsureCorrelationID(ctx)

	state := authorizeFlags.state
	if state == "" && authorizeFlags.listen {
		state = logging.GenerateCorrelationID()
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		authURL, err := auth.AuthorizationURL(rt.cfg.RedAd.AuthURL, state)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Open this URL in a browser and approve the advertiser accounts:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  "+authURL)
		fmt.Fprintln(out)
	}

	var bundles []models.TokenBundle
	switch {
	case len(args) == 1:
		bundles, err = authorizeRedirect(ctx, rt, args[0])
	case authorizeFlags.listen:
		bundles, err = authorizeListen(ctx, cmd, rt, state)
	default:
		fmt.Fprint(out, "Paste the URL you were redirected to: ")
		var redirect string
		redirect, err = readLine(cmd.InOrStdin())
		if err == nil {
			bundles, err = authorizeRedirect(ctx, rt, redirect)
		}
	}
	if err != nil {
		return err
	}

	printAuthorized(cmd, bundles)
	return nil
}

func authorizeRedirect(ctx context.Context, rt *appRuntime, redirect string) ([]models.TokenBundle, error) {
	code, err := auth.ParseAuthCode(redirect)
	if err != nil {
		return nil, err
	}
	return rt.manager.Authorize(ctx, code)
}

// authorizeListen serves the OAuth callback until one exchange succeeds or
// ctx is cancelled.
func authorizeListen(ctx context.Context, cmd *cobra.Command, rt *appRuntime, state string) ([]models.TokenBundle, error) {
	done := make(chan []models.TokenBundle, 1)
	server := api.NewServer(rt.cfg.Server, api.Deps{
		Authorizer: rt.manager,
		Metrics:    rt.metrics,
		Logger:     rt.logger,
		State:      state,
		OnAuthorized: func(bundles []models.TokenBundle) {
			select {
			case done <- bundles:
			default:
			}
		},
	})

	addr := rt.cfg.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &errors.ErrServerStart{Addr: addr, Err: err}
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "Waiting for the redirect on http://%s/oauth/callback ...\n", addr)

	var bundles []models.TokenBundle
	select {
	case bundles = <-done:
	case err = <-serveErr:
		return nil, err
	case <-ctx.Done():
		err = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		rt.logger.Warn("callback server shutdown failed", "error", serr)
	}
	return bundles, err
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil && err != io.EOF {
			return "", err
		}
		return "", fmt.Errorf("no redirect URL given")
	}
	return line, nil
}

func printAuthorized(cmd *cobra.Command, bundles []models.TokenBundle) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Authorized %d account(s):\n", len(bundles))
	for _, b := range bundles {
		fmt.Fprintf(out, "  %s  %s (refresh token valid until %s)\n",
			b.AdvertiserID, b.DisplayName(), b.RefreshExpiry().Format(displayTimeLayout))
	}
}
