package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
	"github.com/dando385/vm-integrity-monitor/internal/output"
	"github.com/dando385/vm-integrity-monitor/internal/registry"
)

func statusCmd(addr *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status <guest>",
		Short: "Report a managed guest's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", *addr, err)
			}
			defer client.Close()

			var st monitor.Status
			if err := client.Call("Service.Status", registry.GuestArgs{GuestName: args[0]}, &st); err != nil {
				return err
			}

			if format == "json" {
				output.DisableColors()
				return output.RenderStatusJSON(st)
			}
			output.RenderStatusTerminal(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "terminal", "output format: terminal|json")
	return cmd
}
