package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	debugLevel int
)

var rootCmd = &cobra.Command{
	Use:   "vpiserver",
	Short: "JTAG/cJTAG VPI bridge for simulated targets",
	Long: `A TCP bridge between OpenOCD-style debug clients and a cycle-stepped
simulated JTAG/cJTAG target. It auto-detects the client's wire dialect
(minimal 8-byte commands or full 1036-byte jtag_vpi packets, including the
two-wire OScan1 sub-protocol) and shifts scans bit by bit through the
simulated TAP.

Examples:
  vpiserver serve                        # Listen on 127.0.0.1:3333
  vpiserver serve --port 5555 --cjtag    # cJTAG mode on another port
  vpiserver probes                       # List USB debug probes`,
	Version: "0.9.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().IntVar(&debugLevel, "debug-level", 0, "debug level: 0=off, 1=events, 2=byte traces")
}

// effectiveDebugLevel folds --verbose into the numeric debug level.
func effectiveDebugLevel() int {
	if debugLevel == 0 && verbose {
		return 1
	}
	return debugLevel
}
