package tap

import "testing"

// The StateMachine and the Simulator implement the same state diagram
// independently. Driving the simulator with a GoTo sequence must land both in
// the same state.
func TestStateMachineSequenceDrivesSimulator(t *testing.T) {
	m := NewStateMachine()
	sim := NewSimulator(0)

	// Leave reset so the path is more interesting.
	m.Clock(false)
	sim.Pulse(0, 0, 0)

	seq, err := m.GoTo(ShiftIR)
	if err != nil {
		t.Fatalf("GoTo returned error: %v", err)
	}

	for _, bit := range seq.TMS {
		var tms uint8
		if bit {
			tms = 1
		}
		sim.Pulse(tms, 0, 0)
	}

	if sim.State() != m.State() {
		t.Fatalf("simulator state = %s, machine state = %s", sim.State(), m.State())
	}
	if sim.State() != ShiftIR {
		t.Fatalf("state = %s, want %s", sim.State(), ShiftIR)
	}

	// One shift clock inside Shift-IR drives TDO.
	m.Clock(false)
	sim.Pulse(0, 0, 0)
	if sim.TDOEnable() != 1 {
		t.Fatal("TDO not enabled in Shift-IR")
	}

	// A Reset sequence must bring both back to Test-Logic-Reset.
	for range m.Reset().TMS {
		sim.Pulse(1, 0, 0)
	}
	if sim.State() != TestLogicReset || m.State() != TestLogicReset {
		t.Fatalf("after reset: simulator %s, machine %s", sim.State(), m.State())
	}
}
