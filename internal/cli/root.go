package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/config"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.3.0"

// BuildDate is set at build time.
var BuildDate = "unknown"

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DataDir string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "redadsync",
	Short: "RedAdSync - ad report fetcher and Bitable sync",
	Long: `RedAdSync pulls offline account reports from the RED ad platform,
exports them locally and appends them to one Feishu Bitable table per
advertiser account, at most one row per reporting period.

Usage:
  redadsync [command] [flags]

Available Commands:
  authorize  Authorize advertiser accounts and store their tokens
  accounts   List authorized accounts and token state
  token      Print a valid access token for an account
  query      Fetch, export and optionally sync a report
  history    List exported reports or re-sync one
  bindings   List or reset account table bindings
  serve      Run the local HTTP API and OAuth callback
  doctor     Diagnose configuration and local state

Flags:
  --config string     Path to configuration file (default "config.yaml")
  --data-dir string   Override data_dir from the configuration
  --verbose           Enable debug logging
  --json              Output in JSON format

Use "redadsync [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", config.ResolvePath(""), "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DataDir, "data-dir", os.Getenv(config.EnvDataDir), "Override data_dir from the configuration")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of RedAdSync",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd)
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

func printVersion(cmd *cobra.Command) {
	info := GetVersionInfo()
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "RedAdSync Version:", info.Version)
	fmt.Fprintln(out, "Go Version:", info.GoVersion)
	fmt.Fprintln(out, "OS/Arch:", info.OS+"/"+info.Arch)
	fmt.Fprintln(out, "Build Date:", info.BuildDate)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
	BuildDate string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		BuildDate: BuildDate,
	}
}
