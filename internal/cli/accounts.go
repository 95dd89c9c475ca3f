package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/models"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List authorized accounts and token state",
	Long: `List every advertiser account with stored tokens.

STATE is VALID while the access token is usable, REFRESH_NEEDED when the
next use will refresh it, and REAUTH_REQUIRED once the refresh token has
expired too.

Example:
  redadsync accounts
  redadsync accounts --json`,
	Args: cobra.NoArgs,
	RunE: runAccounts,
}

func init() {
	RootCmd.AddCommand(accountsCmd)
}

// AccountInfo is one row of the accounts listing.
type AccountInfo struct {
	AdvertiserID     string     `json:"advertiser_id"`
	AdvertiserName   string     `json:"advertiser_name"`
	State            auth.State `json:"state"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

func runAccounts(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	bundles, err := rt.credentials.ListBundles()
	if err != nil {
		return err
	}

	infos := make([]AccountInfo, 0, len(bundles))
	for _, b := range models.BundleSlice(bundles).SortByName() {
		infos = append(infos, AccountInfo{
			AdvertiserID:     b.AdvertiserID,
			AdvertiserName:   b.AdvertiserName,
			State:            rt.manager.State(b),
			AccessExpiresAt:  b.AccessExpiry().In(rt.loc),
			RefreshExpiresAt: b.RefreshExpiry().In(rt.loc),
		})
	}

	if globalFlags.JSON {
		return outputJSON(cmd, infos)
	}

	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No authorized accounts. Run: redadsync authorize")
		return nil
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tACCESS EXPIRES\tREFRESH EXPIRES")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.AdvertiserID,
			info.AdvertiserName,
			info.State,
			info.AccessExpiresAt.Format(displayTimeLayout),
			info.RefreshExpiresAt.Format(displayTimeLayout),
		)
	}
	return w.Flush()
}
