package vpi

// sf0State tracks the two-edge exchange of one OScan1 Scanning-Format-0 bit.
type sf0State uint8

const (
	sf0Idle sf0State = iota
	sf0SendTMS
	sf0SendTDI
)

// sf0Exchange implements the two-wire cJTAG micro-protocol for a single
// logical bit: a rising TCKC edge carrying TMS, then a falling edge carrying
// TDI. The TDO sample is only valid after the second toggle has been consumed
// by the stepper; collapsing the two phases would race the clocked DUT and
// sample stale data.
type sf0Exchange struct {
	state sf0State
	tms   uint8
	tdi   uint8
	tdo   uint8
}

// begin starts an exchange and issues the rising-edge toggle. The DUT is
// switched to cJTAG mode for the lifetime of the exchange.
func (x *sf0Exchange) begin(tms, tdi uint8, mb *Mailbox) {
	x.tms = tms & 1
	x.tdi = tdi & 1
	x.tdo = 0
	x.state = sf0SendTMS
	mb.SetModeSelect(1)
	// Rising edge: TMS only, TDI not yet driven.
	mb.RequestToggle(x.tms, 0)
}

func (x *sf0Exchange) reset() {
	x.state = sf0Idle
}

func (x *sf0Exchange) active() bool {
	return x.state != sf0Idle
}

// advance moves the exchange forward once the previous toggle has settled.
// Returns true when both edges are complete and x.tdo holds the captured bit.
func (x *sf0Exchange) advance(mb *Mailbox) bool {
	switch x.state {
	case sf0SendTMS:
		if !mb.ToggleSettled() {
			return false
		}
		// Falling edge: TDI only, TMS already latched by the DUT.
		mb.RequestToggle(0, x.tdi)
		x.state = sf0SendTDI
	case sf0SendTDI:
		if !mb.ToggleSettled() {
			return false
		}
		x.tdo = mb.Sample().TDO & 1
		x.state = sf0Idle
		return true
	}
	return false
}
