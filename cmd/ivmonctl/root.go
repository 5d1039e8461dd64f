package main

import (
	"net/rpc"

	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ivmonctl",
		Short: "Control client for the VM integrity monitor daemon",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "localhost:7070", "ivmond control facade address")

	cmd.AddCommand(
		startCmd(&addr),
		stopCmd(&addr),
		forceStopCmd(&addr),
		detachCmd(&addr),
		statusCmd(&addr),
		fleetCmd(&addr),
		connectCmd(&addr),
		disconnectCmd(&addr),
	)
	return cmd
}

func dial(addr string) (*rpc.Client, error) {
	return rpc.Dial("tcp", addr)
}
