// Command ivmonctl is the control-facade CLI client: one subcommand per
// Control RPC method, dialing the ivmond daemon's net/rpc listener.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ivmonctl: %v\n", err)
		os.Exit(1)
	}
}
