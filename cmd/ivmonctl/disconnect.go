package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dando385/vm-integrity-monitor/internal/registry"
)

func disconnectCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <client-ip> <guest-ip>",
		Short: "Unregister a client from the Monitor managing guest-ip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", *addr, err)
			}
			defer client.Close()

			var ok bool
			rpcArgs := registry.ConnectArgs{ClientIP: args[0], DomainIP: args[1]}
			if err := client.Call("Service.Disconnect", rpcArgs, &ok); err != nil {
				return err
			}
			if ok {
				fmt.Println("unregistered")
			} else {
				fmt.Println("client was not registered")
			}
			return nil
		},
	}
}
