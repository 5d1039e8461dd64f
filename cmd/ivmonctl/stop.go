package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dando385/vm-integrity-monitor/internal/registry"
)

func stopCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <guest>",
		Short: "Stop a managed guest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", *addr, err)
			}
			defer client.Close()

			if err := client.Call("Service.Stop", registry.GuestArgs{GuestName: args[0]}, &struct{}{}); err != nil {
				return err
			}
			fmt.Printf("stopped %s\n", args[0])
			return nil
		},
	}
}
