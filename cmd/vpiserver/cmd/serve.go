package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceVPI/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceVPI/pkg/tap"
	"github.com/OpenTraceLab/OpenTraceVPI/pkg/vpi"
)

var (
	serveHost    string
	servePort    int
	tickInterval time.Duration
	msbFirst     bool
	cjtagMode    bool
	exitOnStop   bool
	idcodeStr    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the VPI bridge against the built-in simulated target",
	Long: `Start the TCP server and the simulation tick loop. Each tick polls the
server once; if a pin-level request is pending it is applied to the simulated
TAP and the sampled outputs are fed back before the next tick.

Examples:
  vpiserver serve                            # OpenOCD: jtag_vpi on port 3333
  vpiserver serve --tick 100us --debug-level 2
  vpiserver serve --idcode 0x06438041 --exit-on-stop`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "address to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 3333, "TCP port to listen on")
	serveCmd.Flags().DurationVar(&tickInterval, "tick", 100*time.Microsecond, "simulation tick interval")
	serveCmd.Flags().BoolVar(&msbFirst, "msb-first", false, "shift scan bytes MSB first")
	serveCmd.Flags().BoolVar(&cjtagMode, "cjtag", false, "start the target in two-wire cJTAG mode")
	serveCmd.Flags().BoolVar(&exitOnStop, "exit-on-stop", false, "exit when a client sends STOP_SIMU")
	serveCmd.Flags().StringVar(&idcodeStr, "idcode", "", "IDCODE the simulated TAP reports (hex)")
}

// describeIDCode renders a raw IDCODE with its decoded fields and the JEP106
// manufacturer name.
func describeIDCode(raw uint32) string {
	id := idcode.ParseIDCode(raw)
	mfr, _ := idcode.LookupManufacturer(id.ManufacturerCode)
	return fmt.Sprintf("0x%08X (part 0x%04X rev %d, %s)", id.Raw, id.PartNumber, id.Version, mfr.Name)
}

func runServe(command *cobra.Command, args []string) error {
	var rawID uint64
	if idcodeStr != "" {
		var err error
		rawID, err = strconv.ParseUint(idcodeStr, 0, 32)
		if err != nil {
			return fmt.Errorf("invalid --idcode %q: %w", idcodeStr, err)
		}
	}

	server := vpi.NewServer(fmt.Sprintf("%s:%d", serveHost, servePort))
	server.SetDebugLevel(effectiveDebugLevel())
	server.SetMSBFirst(msbFirst)
	if cjtagMode {
		server.SetModeSelect(1)
	}
	if err := server.Listen(); err != nil {
		return err
	}
	defer server.Close()

	dut := tap.NewSimulator(uint32(rawID))
	if cjtagMode {
		dut.SetModeSelect(1)
	}

	ctx, stop := signal.NotifyContext(command.Context(), os.Interrupt)
	defer stop()

	fmt.Printf("vpiserver: simulated TAP IDCODE %s\n", describeIDCode(dut.IDCode()))
	fmt.Printf("vpiserver: listening on %s (tick %s)\n", server.Addr(), tickInterval)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("vpiserver: shutting down")
			return nil
		case <-ticker.C:
		}

		server.Poll()
		if req, ok := server.PendingSignal(); ok {
			server.UpdateSignals(tap.Apply(dut, req))
		}
		if exitOnStop && server.StopRequested() {
			fmt.Println("vpiserver: stop requested by client")
			return nil
		}
	}
}
