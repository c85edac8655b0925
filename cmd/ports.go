package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/ambilight/internal/devices"
)

// CreatePortsCmd creates the ports command.
func CreatePortsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Long:  `Lists the serial ports present on this host with their USB identifiers, to find the device path of the strip controller.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := devices.NewDetector().FindDevices()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}
			return printPorts(cmd.OutOrStdout(), ports, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")
	return cmd
}

func printPorts(w io.Writer, ports []devices.DeviceInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if ports == nil {
			ports = []devices.DeviceInfo{}
		}
		return enc.Encode(ports)
	}

	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "No serial ports found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tVID:PID\tSERIAL\tPRODUCT")
	for _, p := range ports {
		id := "-"
		if p.USB {
			id = p.VID + ":" + p.PID
		}
		serial := p.SerialNumber
		if serial == "" {
			serial = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Path, id, serial, p.Product)
	}
	return tw.Flush()
}

// exitOnError is used by commands whose failures should not print usage.
func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
