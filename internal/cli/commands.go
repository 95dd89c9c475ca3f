package cli

import (
	"fmt"
	"sync"
)

var cliInitOnce sync.Once

// ExecuteWithErrorCode runs the root command and returns exit code
func ExecuteWithErrorCode(args []string) int {
	RootCmd.SetArgs(args)

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(RootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}

	return 0
}

// InitCLI registers the global flags once. Commands are registered by
// their init() functions.
func InitCLI() {
	cliInitOnce.Do(InitRoot)
}
