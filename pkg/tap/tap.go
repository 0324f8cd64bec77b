package tap

import "fmt"

// Sequence captures a TMS drive pattern and the states the controller passes
// through when the pattern is clocked in.
type Sequence struct {
	TMS    []bool
	States []State
}

// StateMachine tracks the TAP controller state without performing any I/O.
// Tests and tools use it to compute the TMS patterns a client would send.
type StateMachine struct {
	state State
}

// NewStateMachine creates a machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: TestLogicReset}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// Clock advances the machine one TCK cycle with the given TMS bit and returns
// the new state.
func (m *StateMachine) Clock(tms bool) State {
	m.state = m.state.Next(tms)
	return m.state
}

// Reset clocks five consecutive TMS=1 cycles, which reaches Test-Logic-Reset
// from any state. The generated sequence is returned for convenience.
func (m *StateMachine) Reset() Sequence {
	seq := Sequence{
		TMS:    make([]bool, 5),
		States: make([]State, 6),
	}
	seq.States[0] = m.state
	for i := 0; i < 5; i++ {
		seq.TMS[i] = true
		seq.States[i+1] = m.Clock(true)
	}
	return seq
}

// GoTo computes the shortest TMS sequence from the current state to target,
// advancing the machine as a side effect.
func (m *StateMachine) GoTo(target State) (Sequence, error) {
	path, err := computePath(m.state, target)
	if err != nil {
		return Sequence{}, err
	}
	for _, bit := range path.TMS {
		m.Clock(bit)
	}
	return path, nil
}

// computePath runs BFS over the TAP state diagram.
func computePath(from, to State) (Sequence, error) {
	if int(from) >= len(stateNames) || int(to) >= len(stateNames) {
		return Sequence{}, fmt.Errorf("tap: invalid state %d -> %d", from, to)
	}
	if from == to {
		return Sequence{States: []State{from}}, nil
	}

	type node struct {
		state  State
		tms    []bool
		states []State
	}

	queue := []node{{state: from, states: []State{from}}}
	visited := map[State]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, bit := range []bool{false, true} {
			next := current.state.Next(bit)
			if _, seen := visited[next]; seen {
				continue
			}

			tms := append(append([]bool{}, current.tms...), bit)
			states := append(append([]State{}, current.states...), next)

			if next == to {
				return Sequence{TMS: tms, States: states}, nil
			}

			visited[next] = struct{}{}
			queue = append(queue, node{state: next, tms: tms, states: states})
		}
	}

	return Sequence{}, fmt.Errorf("tap: no path from %s to %s", from, to)
}
