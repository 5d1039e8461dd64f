package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dando385/vm-integrity-monitor/internal/monitor"
	"github.com/dando385/vm-integrity-monitor/internal/output"
)

func fleetCmd(addr *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Report every managed guest's current status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dial(*addr)
			if err != nil {
				return fmt.Errorf("dial %s: %w", *addr, err)
			}
			defer client.Close()

			var statuses map[string]monitor.Status
			if err := client.Call("Service.Fleet", struct{}{}, &statuses); err != nil {
				return err
			}

			if format == "json" {
				output.DisableColors()
				return output.RenderFleetJSON(statuses)
			}
			output.RenderFleetTerminal(statuses)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "terminal", "output format: terminal|json")
	return cmd
}
