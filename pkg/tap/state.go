package tap

// State enumerates the 16 states of the IEEE 1149.1 TAP controller.
type State uint8

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR
)

var stateNames = [...]string{
	"Test-Logic-Reset", "Run-Test/Idle",
	"Select-DR-Scan", "Capture-DR", "Shift-DR", "Exit1-DR", "Pause-DR", "Exit2-DR", "Update-DR",
	"Select-IR-Scan", "Capture-IR", "Shift-IR", "Exit1-IR", "Pause-IR", "Exit2-IR", "Update-IR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Next returns the state entered on a rising TCK edge with the given TMS.
func (s State) Next(tms bool) State {
	if tms {
		switch s {
		case TestLogicReset:
			return TestLogicReset
		case RunTestIdle, UpdateDR, UpdateIR:
			return SelectDRScan
		case SelectDRScan:
			return SelectIRScan
		case CaptureDR, ShiftDR:
			return Exit1DR
		case Exit1DR, Exit2DR:
			return UpdateDR
		case PauseDR:
			return Exit2DR
		case SelectIRScan:
			return TestLogicReset
		case CaptureIR, ShiftIR:
			return Exit1IR
		case Exit1IR, Exit2IR:
			return UpdateIR
		case PauseIR:
			return Exit2IR
		}
		return TestLogicReset
	}

	switch s {
	case TestLogicReset, RunTestIdle, UpdateDR, UpdateIR:
		return RunTestIdle
	case SelectDRScan:
		return CaptureDR
	case CaptureDR, ShiftDR:
		return ShiftDR
	case Exit1DR, PauseDR:
		return PauseDR
	case Exit2DR:
		return ShiftDR
	case SelectIRScan:
		return CaptureIR
	case CaptureIR, ShiftIR:
		return ShiftIR
	case Exit1IR, PauseIR:
		return PauseIR
	case Exit2IR:
		return ShiftIR
	}
	return RunTestIdle
}
