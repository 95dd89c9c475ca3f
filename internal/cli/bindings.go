package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "List account table bindings",
	Long: `List which Bitable table each account syncs into. An unresolved
binding is looked up again by name on the next sync.

Example:
  redadsync bindings
  redadsync bindings reset 1234567890`,
	Args: cobra.NoArgs,
	RunE: runBindings,
}

var bindingsResetCmd = &cobra.Command{
	Use:   "reset <account>",
	Short: "Forget the table id of an account",
	Long: `Clear the stored table id so the next sync discovers or creates the
table again. The app token and name remark are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runBindingsReset,
}

func init() {
	bindingsCmd.AddCommand(bindingsResetCmd)
	RootCmd.AddCommand(bindingsCmd)
}

// BindingInfo is one row of the bindings listing.
type BindingInfo struct {
	AccountID  string `json:"account_id"`
	NameRemark string `json:"name_remark"`
	AppToken   string `json:"app_token,omitempty"`
	TableID    string `json:"table_id"`
	Resolved   bool   `json:"resolved"`
}

func runBindings(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	bindings, err := rt.bindings.ListBindings()
	if err != nil {
		return err
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].AccountID < bindings[j].AccountID
	})

	infos := make([]BindingInfo, 0, len(bindings))
	for _, b := range bindings {
		infos = append(infos, BindingInfo{
			AccountID:  b.AccountID,
			NameRemark: b.NameRemark,
			AppToken:   b.AppTokenOr(rt.cfg.Feishu.DefaultAppToken),
			TableID:    b.TableID,
			Resolved:   b.Resolved(),
		})
	}

	if globalFlags.JSON {
		return outputJSON(cmd, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No table bindings yet.")
		return nil
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "ACCOUNT\tNAME\tAPP\tTABLE")
	for _, info := range infos {
		table := info.TableID
		if !info.Resolved {
			table = "(unresolved)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.AccountID, info.NameRemark, info.AppToken, table)
	}
	return w.Flush()
}

func runBindingsReset(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	accountID := args[0]
	if b, err := rt.findAccount(accountID); err == nil {
		accountID = b.AdvertiserID
	}

	_, ok, err := rt.bindings.GetBinding(accountID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no binding for account %s", accountID)
	}
	if err := rt.bindings.ClearTableID(accountID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Binding for %s reset; the table is looked up again on the next sync.\n", accountID)
	return nil
}
