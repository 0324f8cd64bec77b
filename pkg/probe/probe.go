// Package probe enumerates USB debug adapters that could drive a real target
// in place of the built-in simulated DUT.
package probe

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// Kind categorizes adapter families.
type Kind string

const (
	KindCMSISDAP Kind = "cmsis-dap"
	KindFTDI     Kind = "ftdi-mpsse"
	KindJLink    Kind = "jlink"
	KindSim      Kind = "simulator"
)

// Info describes a detected debug probe.
type Info struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a user-friendly description for the probe.
func (i Info) Label() string {
	if i.Kind == KindSim {
		return i.Description
	}
	return fmt.Sprintf("%s (%04X:%04X)", i.Description, i.VendorID, i.ProductID)
}

type knownDevice struct {
	Kind        Kind
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownProbes = []knownDevice{
	{KindCMSISDAP, 0x2e8a, 0x000c, "Raspberry Pi Debug Probe"},
	{KindCMSISDAP, 0x0d28, 0x0204, "DAPLink CMSIS-DAP"},
	{KindJLink, 0x1366, 0x0101, "SEGGER J-Link"},
	{KindFTDI, 0x0403, 0x6010, "FTDI FT2232H"},
	{KindFTDI, 0x0403, 0x6014, "FTDI FT232H"},
}

// Classify matches a VID/PID pair against the known probe table.
func Classify(vid, pid uint16) (Info, bool) {
	for _, known := range knownProbes {
		if vid == known.VendorID && pid == known.ProductID {
			return Info{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return Info{}, false
}

// Discover enumerates connected USB debug probes. It always returns at least
// the simulator entry so the server can run without hardware attached.
func Discover(ctx context.Context) ([]Info, error) {
	var results []Info
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := Classify(uint16(desc.Vendor), uint16(desc.Product)); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, Info{
		Kind:        KindSim,
		Description: "Built-in simulated DUT (no hardware)",
	})

	return results, nil
}
