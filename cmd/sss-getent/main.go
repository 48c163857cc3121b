// Command sss-getent queries the group database of the SSSD nss responder
// directly, bypassing nsswitch. Its output follows getent(1).
package main

import (
	"fmt"
	"os"

	"github.com/sssctl/sssnss"
)

// exit codes of getent(1)
const (
	exitFailure  = 1
	exitNotFound = 2
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if sssnss.StatusOf(err) == sssnss.StatusNotFound {
			os.Exit(exitNotFound)
		}
		fmt.Fprintln(os.Stderr, "sss-getent:", err)
		os.Exit(exitFailure)
	}
}
