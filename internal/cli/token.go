package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/logging"
)

var tokenCmd = &cobra.Command{
	Use:   "token [account]",
	Short: "Print a valid access token for an account",
	Long: `Print a usable access token, refreshing it first when it is about to
expire. The account is an advertiser id or name and may be omitted when
only one account is authorized.

Example:
  redadsync token 1234567890`,
	Args: cobra.MaximumNArgs(1),
	RunE: runToken,
}

func init() {
	RootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	b, err := rt.findAccount(optionalArg(args))
	if err != nil {
		return err
	}

	ctx, _ := logging.EnsureCorrelationID(cmd.Context())
	token, err := rt.manager.GetValidCredential(ctx, b.AdvertiserID)
	if err != nil {
		return err
	}

	if globalFlags.JSON {
		return outputJSON(cmd, map[string]string{
			"advertiser_id": b.AdvertiserID,
			"access_token":  token,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
