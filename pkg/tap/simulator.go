// Package tap provides an in-process device-under-test for the VPI bridge: a
// cycle-stepped IEEE 1149.1 TAP controller with IDCODE and BYPASS registers,
// plus a loop-back device for deterministic tests.
package tap

import "github.com/OpenTraceLab/OpenTraceVPI/pkg/vpi"

// Device is the pin-level contract the bridge drives. Pulse applies TMS/TDI,
// raises TCK, lowers it; Toggle flips the combined cJTAG clock/data line
// once. Outputs reflect the state after the most recent edge.
type Device interface {
	Pulse(tms, tdi, modeSelect uint8)
	Toggle(tms, tdi, modeSelect uint8)
	SetModeSelect(mode uint8)
	TDO() uint8
	TDOEnable() uint8
	IDCode() uint32
	ActiveMode() uint8
}

// Apply performs one signal request against d and returns the sampled
// outputs. It is the single step the simulation loop runs per tick.
func Apply(d Device, req vpi.SignalRequest) vpi.Sample {
	switch req.Kind {
	case vpi.ReqTCKPulse:
		d.Pulse(req.TMS, req.TDI, req.ModeSelect)
	case vpi.ReqTCKCToggle:
		d.Toggle(req.TMS, req.TDI, req.ModeSelect)
	default:
		d.SetModeSelect(req.ModeSelect)
	}
	return vpi.Sample{
		TDO:        d.TDO(),
		TDOEnable:  d.TDOEnable(),
		IDCode:     d.IDCode(),
		ActiveMode: d.ActiveMode(),
	}
}

// Instruction register values. The register is 4 bits wide; Capture-IR loads
// the mandated ...01 pattern in the low bits.
const (
	InstrIDCode = 0x1
	InstrBypass = 0xF

	irLength  = 4
	irCapture = 0x5
)

// DefaultIDCode is reported until a different one is configured.
const DefaultIDCode = 0x06438041

// Simulator is a single-device TAP with a 32-bit IDCODE register and a 1-bit
// bypass register. TMS is sampled on the rising TCK edge and TDO presents the
// register output captured by that edge, which is the one-cycle pipeline the
// scan engine accounts for.
type Simulator struct {
	state State

	idcode  uint32
	ir      uint8
	shiftIR uint8
	shiftDR uint64
	drLen   int

	tdo       uint8
	tdoEnable uint8

	activeMode uint8
	tckc       uint8
	sf0TMS     uint8
}

// NewSimulator creates a TAP in Test-Logic-Reset reporting the given IDCODE.
// Pass 0 to use DefaultIDCode.
func NewSimulator(idcode uint32) *Simulator {
	if idcode == 0 {
		idcode = DefaultIDCode
	}
	return &Simulator{
		state:  TestLogicReset,
		idcode: idcode,
		ir:     InstrIDCode,
	}
}

// State returns the current TAP controller state.
func (d *Simulator) State() State { return d.state }

// Pulse clocks the TAP once with the given TMS/TDI values.
func (d *Simulator) Pulse(tms, tdi, modeSelect uint8) {
	d.SetModeSelect(modeSelect)

	switch d.state {
	case ShiftIR:
		out := d.shiftIR & 1
		d.shiftIR = d.shiftIR>>1 | (tdi&1)<<(irLength-1)
		d.tdo = out
	case ShiftDR:
		out := uint8(d.shiftDR & 1)
		d.shiftDR = d.shiftDR>>1 | uint64(tdi&1)<<(d.drLen-1)
		d.tdo = out
	}
	d.tdoEnable = 0
	if d.state == ShiftIR || d.state == ShiftDR {
		d.tdoEnable = 1
	}

	d.state = d.state.Next(tms&1 == 1)

	switch d.state {
	case TestLogicReset:
		d.ir = InstrIDCode
	case CaptureIR:
		d.shiftIR = irCapture
	case CaptureDR:
		if d.ir == InstrIDCode {
			d.shiftDR = uint64(d.idcode)
			d.drLen = 32
		} else {
			d.shiftDR = 0
			d.drLen = 1
		}
	case UpdateIR:
		d.ir = d.shiftIR & 0xF
	}
}

// Toggle flips TCKC once. A rising edge latches the TMS value; the falling
// edge carries TDI and clocks the TAP, completing one SF0 bit.
func (d *Simulator) Toggle(tms, tdi, modeSelect uint8) {
	d.SetModeSelect(modeSelect)
	d.tckc ^= 1
	if d.tckc == 1 {
		d.sf0TMS = tms & 1
		return
	}
	d.Pulse(d.sf0TMS, tdi, modeSelect)
}

func (d *Simulator) SetModeSelect(mode uint8) { d.activeMode = mode & 1 }

func (d *Simulator) TDO() uint8        { return d.tdo }
func (d *Simulator) TDOEnable() uint8  { return d.tdoEnable }
func (d *Simulator) IDCode() uint32    { return d.idcode }
func (d *Simulator) ActiveMode() uint8 { return d.activeMode }

// Loopback feeds every TDI bit back as the next TDO sample regardless of TAP
// state: TDO after clock i is the TDI of clock i-1. Engine tests use it to
// pin down the capture pipeline.
type Loopback struct {
	last       uint8
	tdo        uint8
	activeMode uint8
	tckc       uint8
}

func (l *Loopback) Pulse(tms, tdi, modeSelect uint8) {
	l.SetModeSelect(modeSelect)
	l.tdo = l.last
	l.last = tdi & 1
}

func (l *Loopback) Toggle(tms, tdi, modeSelect uint8) {
	l.SetModeSelect(modeSelect)
	l.tckc ^= 1
	if l.tckc == 1 {
		return
	}
	// TDI rides the falling edge, completing the bit.
	l.tdo = l.last
	l.last = tdi & 1
}

func (l *Loopback) SetModeSelect(mode uint8) { l.activeMode = mode & 1 }

func (l *Loopback) TDO() uint8        { return l.tdo }
func (l *Loopback) TDOEnable() uint8  { return 1 }
func (l *Loopback) IDCode() uint32    { return 0 }
func (l *Loopback) ActiveMode() uint8 { return l.activeMode }
