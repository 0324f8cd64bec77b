package vpi

// RequestKind selects what the simulation stepper should do with a pending
// signal change.
type RequestKind uint8

const (
	// ReqNone applies the signal values (typically a mode_select change)
	// without clocking anything.
	ReqNone RequestKind = iota
	// ReqTCKPulse drives TMS/TDI, raises TCK, lowers it, then samples TDO.
	ReqTCKPulse
	// ReqTCKCToggle flips the combined cJTAG clock/data line once, then
	// samples.
	ReqTCKCToggle
)

// SignalRequest is the single outstanding pin-level request handed to the
// external stepper.
type SignalRequest struct {
	TMS        uint8
	TDI        uint8
	ModeSelect uint8
	Kind       RequestKind
}

// Sample holds the DUT outputs reported back after a request was applied.
type Sample struct {
	TDO        uint8
	TDOEnable  uint8
	IDCode     uint32
	ActiveMode uint8
}

// Mailbox is the sole exchange point between the protocol engines and the
// simulation stepper. At most one request is outstanding; PendingSignal marks
// it consumed, and an engine may only issue its next request after observing
// that the previous one settled. Queued reset pulses take priority over all
// other pending work.
type Mailbox struct {
	pendingTMS        uint8
	pendingTDI        uint8
	pendingModeSelect uint8
	pendingPulse      bool
	pendingToggle     bool
	toggleConsumed    bool

	resetPulsesRemaining int

	sample Sample
}

// QueueReset schedules n forced TCK pulses with TMS=1, TDI=0. They drain
// before any other request so a reset burst cannot interleave with a scan.
func (m *Mailbox) QueueReset(n int) {
	m.resetPulsesRemaining = n
}

// RequestPulse schedules one TCK pulse carrying the given TMS/TDI values.
func (m *Mailbox) RequestPulse(tms, tdi uint8) {
	m.pendingTMS = tms
	m.pendingTDI = tdi
	m.pendingPulse = true
}

// RequestToggle schedules one TCKC toggle carrying the given TMS/TDI values.
func (m *Mailbox) RequestToggle(tms, tdi uint8) {
	m.pendingTMS = tms
	m.pendingTDI = tdi
	m.pendingToggle = true
	m.toggleConsumed = false
}

// SetModeSelect records the mode the DUT should be switched to. A mismatch
// against the last reported active mode counts as pending work on its own.
func (m *Mailbox) SetModeSelect(mode uint8) {
	m.pendingModeSelect = mode
}

// ModeSelect returns the currently requested DUT mode.
func (m *Mailbox) ModeSelect() uint8 {
	return m.pendingModeSelect
}

// PulsePending reports whether a TCK pulse has been issued but not yet
// consumed, or forced reset pulses are still draining. Scan engines must not
// advance while this holds.
func (m *Mailbox) PulsePending() bool {
	return m.pendingPulse || m.resetPulsesRemaining > 0
}

// ToggleSettled reports that the previously requested TCKC toggle has been
// consumed by the stepper, making the following sample valid.
func (m *Mailbox) ToggleSettled() bool {
	return !m.pendingToggle && m.toggleConsumed
}

// PendingSignal returns the outstanding request, if any, and marks it
// consumed. It is polled once per simulation tick.
func (m *Mailbox) PendingSignal() (SignalRequest, bool) {
	if m.resetPulsesRemaining > 0 {
		m.resetPulsesRemaining--
		return SignalRequest{
			TMS:        1,
			TDI:        0,
			ModeSelect: m.pendingModeSelect,
			Kind:       ReqTCKPulse,
		}, true
	}

	modeChange := m.pendingModeSelect != m.sample.ActiveMode
	if !m.pendingPulse && !m.pendingToggle && !modeChange {
		return SignalRequest{}, false
	}

	req := SignalRequest{
		TMS:        m.pendingTMS,
		TDI:        m.pendingTDI,
		ModeSelect: m.pendingModeSelect,
		Kind:       ReqNone,
	}
	switch {
	case m.pendingPulse:
		req.Kind = ReqTCKPulse
	case m.pendingToggle:
		req.Kind = ReqTCKCToggle
	}

	m.pendingPulse = false
	if m.pendingToggle {
		m.toggleConsumed = true
	}
	m.pendingToggle = false

	return req, true
}

// UpdateSignals records the DUT outputs sampled after the last request.
func (m *Mailbox) UpdateSignals(s Sample) {
	m.sample = s
}

// Sample returns the most recently reported DUT outputs.
func (m *Mailbox) Sample() Sample {
	return m.sample
}

// Reset discards all pending work. The requested mode is kept; it is
// configuration, not in-flight state.
func (m *Mailbox) Reset() {
	m.pendingPulse = false
	m.pendingToggle = false
	m.toggleConsumed = false
	m.resetPulsesRemaining = 0
}
