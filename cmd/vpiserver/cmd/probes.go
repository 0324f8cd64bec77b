package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceVPI/pkg/probe"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List USB debug probes that could drive a real target",
	Long: `Enumerate connected USB debug adapters (CMSIS-DAP, FTDI MPSSE, J-Link).
The built-in simulator entry is always listed, so serve works without any
hardware attached.`,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(command *cobra.Command, args []string) error {
	probes, err := probe.Discover(command.Context())
	if err != nil {
		return fmt.Errorf("probe discovery: %w", err)
	}
	for i, p := range probes {
		fmt.Printf("%2d: %-12s %s\n", i, p.Kind, p.Label())
	}
	return nil
}
