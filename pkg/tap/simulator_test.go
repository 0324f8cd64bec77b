package tap

import (
	"testing"

	"github.com/OpenTraceLab/OpenTraceVPI/pkg/vpi"
)

func TestStateWalkToShiftDR(t *testing.T) {
	d := NewSimulator(0)
	if d.State() != TestLogicReset {
		t.Fatalf("initial state = %v, want Test-Logic-Reset", d.State())
	}

	for _, step := range []struct {
		tms  uint8
		want State
	}{
		{0, RunTestIdle},
		{1, SelectDRScan},
		{0, CaptureDR},
		{0, ShiftDR},
		{1, Exit1DR},
		{1, UpdateDR},
		{0, RunTestIdle},
	} {
		d.Pulse(step.tms, 0, 0)
		if d.State() != step.want {
			t.Fatalf("after tms=%d: state = %v, want %v", step.tms, d.State(), step.want)
		}
	}
}

func TestFiveTMSHighResetsFromAnyState(t *testing.T) {
	for s := TestLogicReset; s <= UpdateIR; s++ {
		state := s
		for i := 0; i < 5; i++ {
			state = state.Next(true)
		}
		if state != TestLogicReset {
			t.Errorf("from %v: five TMS=1 clocks end in %v, want Test-Logic-Reset", s, state)
		}
	}
}

func TestIDCodeShift(t *testing.T) {
	const idcode = 0x06438041 // matches an STM32F303 part
	d := NewSimulator(idcode)

	// Test-Logic-Reset selects IDCODE; walk to Shift-DR.
	d.Pulse(0, 0, 0) // Run-Test/Idle
	d.Pulse(1, 0, 0) // Select-DR-Scan
	d.Pulse(0, 0, 0) // Capture-DR loads IDCODE
	if d.State() != CaptureDR {
		t.Fatalf("state = %v, want Capture-DR", d.State())
	}
	d.Pulse(0, 0, 0) // enter Shift-DR

	var got uint32
	for i := 0; i < 32; i++ {
		tms := uint8(0)
		if i == 31 {
			tms = 1 // exit on the last bit
		}
		d.Pulse(tms, 0, 0)
		got |= uint32(d.TDO()) << i
	}
	if got != idcode {
		t.Errorf("shifted IDCODE = 0x%08x, want 0x%08x", got, idcode)
	}
	if d.State() != Exit1DR {
		t.Errorf("state = %v, want Exit1-DR", d.State())
	}
}

func TestBypassDelaysByOneBit(t *testing.T) {
	d := NewSimulator(0)

	// Load BYPASS (all ones) into the 4-bit IR.
	d.Pulse(0, 0, 0) // Run-Test/Idle
	d.Pulse(1, 0, 0) // Select-DR-Scan
	d.Pulse(1, 0, 0) // Select-IR-Scan
	d.Pulse(0, 0, 0) // Capture-IR
	d.Pulse(0, 0, 0) // Shift-IR
	for i := 0; i < 4; i++ {
		tms := uint8(0)
		if i == 3 {
			tms = 1
		}
		d.Pulse(tms, 1, 0)
	}
	d.Pulse(1, 0, 0) // Update-IR
	d.Pulse(1, 0, 0) // Select-DR-Scan
	d.Pulse(0, 0, 0) // Capture-DR loads the 1-bit bypass register
	d.Pulse(0, 0, 0) // enter Shift-DR

	pattern := []uint8{1, 0, 1, 1, 0}
	var got []uint8
	for _, bit := range pattern {
		d.Pulse(0, bit, 0)
		got = append(got, d.TDO())
	}
	// Bypass register: one bit of delay, initial content 0.
	want := []uint8{0, 1, 0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bypass tdo[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestTDOEnableOnlyWhileShifting(t *testing.T) {
	d := NewSimulator(0)
	d.Pulse(0, 0, 0) // Run-Test/Idle
	if d.TDOEnable() != 0 {
		t.Error("tdo_enable asserted outside a shift state")
	}
	d.Pulse(1, 0, 0)
	d.Pulse(0, 0, 0)
	d.Pulse(0, 0, 0) // Shift-DR
	d.Pulse(0, 0, 0) // first shifting clock
	if d.TDOEnable() != 1 {
		t.Error("tdo_enable not asserted while shifting")
	}
}

func TestToggleClocksOncePerTwoEdges(t *testing.T) {
	d := NewSimulator(0)

	d.Toggle(0, 0, 1) // rising edge latches TMS
	if d.State() != TestLogicReset {
		t.Fatalf("state advanced on a rising edge alone: %v", d.State())
	}
	d.Toggle(0, 0, 1) // falling edge clocks the TAP
	if d.State() != RunTestIdle {
		t.Errorf("state = %v, want Run-Test/Idle after one full TCKC cycle", d.State())
	}
	if d.ActiveMode() != 1 {
		t.Errorf("active mode = %d, want 1 (cJTAG)", d.ActiveMode())
	}
}

func TestLoopbackLatency(t *testing.T) {
	lb := &Loopback{}
	bits := []uint8{1, 0, 1, 1, 0, 0, 1}
	var got []uint8
	for _, b := range bits {
		lb.Pulse(0, b, 0)
		got = append(got, lb.TDO())
	}
	for i := range bits {
		want := uint8(0)
		if i > 0 {
			want = bits[i-1]
		}
		if got[i] != want {
			t.Errorf("tdo[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestApplyRequestKinds(t *testing.T) {
	lb := &Loopback{}

	sample := Apply(lb, vpi.SignalRequest{Kind: vpi.ReqTCKPulse, TDI: 1})
	if sample.TDO != 0 {
		t.Errorf("first pulse tdo = %d, want 0", sample.TDO)
	}
	sample = Apply(lb, vpi.SignalRequest{Kind: vpi.ReqTCKPulse, TDI: 0})
	if sample.TDO != 1 {
		t.Errorf("second pulse tdo = %d, want 1", sample.TDO)
	}

	sample = Apply(lb, vpi.SignalRequest{Kind: vpi.ReqNone, ModeSelect: 1})
	if sample.ActiveMode != 1 {
		t.Errorf("mode-only request: active mode = %d, want 1", sample.ActiveMode)
	}
}
