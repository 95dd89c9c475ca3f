package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/bitable"
	"github.com/redadsync/redadsync/internal/logging"
)

var doctorOnline bool

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose configuration and local state",
	Long: `Check the configuration, the data directory and the stored documents.

This command checks:
- Configuration file and required settings
- Data directory, credentials and bindings documents
- Token state of every authorized account
- Feishu tenant token (with --online)

Example:
  redadsync doctor
  redadsync doctor --online --json`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOnline, "online", false, "Also request a Feishu tenant token")
	RootCmd.AddCommand(doctorCmd)
}

// DoctorReport represents the complete diagnostic report
type DoctorReport struct {
	Timestamp       time.Time     `json:"timestamp"`
	Checks          []DoctorCheck `json:"checks"`
	Recommendations []string      `json:"recommendations"`
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

const (
	statusOK   = "OK"
	statusWarn = "WARN"
	statusFail = "FAIL"
)

func runDoctor(cmd *cobra.Command, args []string) error {
	report := DoctorReport{Timestamp: time.Now().UTC()}
	report.Checks = append(report.Checks, DoctorCheck{
		Category: "System",
		Name:     "Runtime",
		Status:   statusOK,
		Message:  fmt.Sprintf("%s %s/%s, redadsync %s", runtime.Version(), runtime.GOOS, runtime.GOARCH, Version),
	})

	rt, err := newRuntime()
	if err != nil {
		report.Checks = append(report.Checks, DoctorCheck{
			Category:    "Configuration",
			Name:        "Config file",
			Status:      statusFail,
			Message:     err.Error(),
			Remediation: fmt.Sprintf("Create %s or point --config / $REDADSYNC_CONFIG_PATH at it", globalFlags.Config),
		})
	} else {
		report.Checks = append(report.Checks, checkConfiguration(rt)...)
		report.Checks = append(report.Checks, checkDataDir(rt)...)
		report.Checks = append(report.Checks, checkAccounts(rt)...)
		if doctorOnline {
			report.Checks = append(report.Checks, checkFeishuToken(cmd, rt))
		}
	}

	report.Recommendations = generateRecommendations(report.Checks)
	return outputDoctorReport(cmd, report)
}

func checkConfiguration(rt *appRuntime) []DoctorCheck {
	checks := []DoctorCheck{{
		Category: "Configuration",
		Name:     "Config file",
		Status:   statusOK,
		Message:  rt.loader.Path(),
	}}

	authCheck := DoctorCheck{Category: "Configuration", Name: "Authorization URL", Status: statusOK, Message: rt.cfg.RedAd.AuthURL}
	if rt.cfg.RedAd.AuthURL == "" {
		authCheck.Status = statusWarn
		authCheck.Message = "redad.auth_url is not set"
		authCheck.Remediation = "Set redad.auth_url to the consent page of your app to use authorize"
	}
	checks = append(checks, authCheck)

	feishu := DoctorCheck{Category: "Configuration", Name: "Table sync", Status: statusOK}
	switch {
	case !rt.cfg.Feishu.Enabled:
		feishu.Status = statusWarn
		feishu.Message = "feishu is disabled, --sync is unavailable"
	case rt.cfg.Feishu.DefaultAppToken == "":
		feishu.Status = statusWarn
		feishu.Message = "feishu.default_app_token is not set"
		feishu.Remediation = "Set feishu.default_app_token unless every binding carries its own app_token"
	default:
		feishu.Message = "enabled, app " + rt.cfg.Feishu.DefaultAppToken
	}
	checks = append(checks, feishu)

	tg := DoctorCheck{Category: "Configuration", Name: "Telegram", Status: statusOK, Message: "enabled"}
	if !rt.notifier.Enabled() {
		tg.Message = "disabled"
	}
	checks = append(checks, tg)

	return checks
}

func checkDataDir(rt *appRuntime) []DoctorCheck {
	dir := rt.cfg.DataDir
	check := DoctorCheck{Category: "Data", Name: "Data directory", Status: statusOK, Message: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Status = statusFail
		check.Message = err.Error()
		check.Remediation = "Make data_dir writable or choose another one with --data-dir"
		return []DoctorCheck{check}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		check.Remediation = "Make data_dir writable or choose another one with --data-dir"
		return []DoctorCheck{check}
	}
	probe.Close()
	os.Remove(probe.Name())

	checks := []DoctorCheck{check}

	bindings := DoctorCheck{Category: "Data", Name: "Bindings", Status: statusOK}
	if list, err := rt.bindings.ListBindings(); err != nil {
		bindings.Status = statusFail
		bindings.Message = err.Error()
		bindings.Remediation = fmt.Sprintf("Fix or remove %s", rt.bindings.Path())
	} else {
		bindings.Message = fmt.Sprintf("%d binding(s) in %s", len(list), filepath.Base(rt.bindings.Path()))
	}
	checks = append(checks, bindings)

	return checks
}

func checkAccounts(rt *appRuntime) []DoctorCheck {
	bundles, err := rt.credentials.ListBundles()
	if err != nil {
		return []DoctorCheck{{
			Category:    "Accounts",
			Name:        "Credentials",
			Status:      statusFail,
			Message:     err.Error(),
			Remediation: fmt.Sprintf("Fix or remove %s and authorize again", rt.credentials.Path()),
		}}
	}
	if len(bundles) == 0 {
		return []DoctorCheck{{
			Category:    "Accounts",
			Name:        "Credentials",
			Status:      statusWarn,
			Message:     "no authorized accounts",
			Remediation: "Run: redadsync authorize",
		}}
	}

	checks := make([]DoctorCheck, 0, len(bundles))
	for _, b := range bundles {
		check := DoctorCheck{Category: "Accounts", Name: b.DisplayName(), Status: statusOK}
		state := rt.manager.State(b)
		check.Message = fmt.Sprintf("%s, refresh token valid until %s", state, b.RefreshExpiry().In(rt.loc).Format(displayTimeLayout))
		if state == auth.StateReauthRequired {
			check.Status = statusFail
			check.Remediation = "Run: redadsync authorize"
		}
		checks = append(checks, check)
	}
	return checks
}

func checkFeishuToken(cmd *cobra.Command, rt *appRuntime) DoctorCheck {
	check := DoctorCheck{Category: "Remote", Name: "Feishu tenant token", Status: statusOK, Message: "issued"}
	if !rt.cfg.Feishu.Enabled {
		check.Status = statusWarn
		check.Message = "skipped, feishu is disabled"
		return check
	}
	ctx, _ := logging.EnsureCorrelationID(cmd.Context())
	tokens := bitable.NewTokenSource(rt.httpc, rt.cfg.Feishu.BaseURL, rt.cfg.Feishu.AppID, rt.cfg.Feishu.AppSecret)
	if _, err := tokens.Token(ctx); err != nil {
		check.Status = statusFail
		check.Message = err.Error()
		check.Remediation = "Check feishu.app_id and feishu.app_secret"
	}
	return check
}

func generateRecommendations(checks []DoctorCheck) []string {
	var recs []string
	for _, check := range checks {
		if check.Status != statusOK && check.Remediation != "" {
			recs = append(recs, fmt.Sprintf("[%s] %s", check.Name, check.Remediation))
		}
	}
	return recs
}

func outputDoctorReport(cmd *cobra.Command, report DoctorReport) error {
	if globalFlags.JSON {
		return outputJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== RedAdSync Doctor Report ===")
	fmt.Fprintf(out, "Generated: %s\n", report.Timestamp.Format(time.RFC3339))

	category := ""
	w := newTable(cmd)
	for _, check := range report.Checks {
		if check.Category != category {
			category = check.Category
			fmt.Fprintf(w, "\n--- %s ---\n", category)
		}
		fmt.Fprintf(w, "%s %s:\t%s\n", statusIcon(check.Status), check.Name, check.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\n--- Recommendations ---")
	if len(report.Recommendations) == 0 {
		fmt.Fprintln(out, "No recommendations.")
		return nil
	}
	for _, rec := range report.Recommendations {
		fmt.Fprintf(out, "• %s\n", rec)
	}
	return nil
}

func statusIcon(status string) string {
	switch status {
	case statusFail:
		return "✗"
	case statusWarn:
		return "!"
	default:
		return "✓"
	}
}
