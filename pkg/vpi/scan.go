package vpi

import "fmt"

// scanState tracks the per-bit shift state machine shared by both dialects.
type scanState uint8

const (
	scanIdle scanState = iota
	scanReceivingTMS
	scanReceivingTDI
	scanProcessing
	scanSendingTDO
)

// scanEngine drives bit-exact shifting for one scan session. The minimal
// dialect streams its TMS/TDI buffers over the socket and gets raw TDO bytes
// back; the full dialect arrives with buffers already framed and hands the
// result back to the packet layer. Both share the Processing step.
type scanEngine struct {
	state scanState

	numBits  int
	numBytes int
	bitIndex int

	// byte cursors for resumable socket transfers (minimal dialect only)
	bytesReceived int
	bytesSent     int

	tms []byte
	tdi []byte
	tdo []byte

	// streaming reports TDO bytes directly over the socket when set;
	// otherwise the packet layer collects the buffer.
	streaming bool
	msbFirst  bool
}

// begin starts a minimal-dialect session: TMS and TDI buffers follow over the
// socket, TDO bytes stream back when the shift completes.
func (e *scanEngine) begin(bits int) error {
	if bits <= 0 || bits > MaxScanBits {
		return fmt.Errorf("vpi: scan length %d out of range [1,%d]", bits, MaxScanBits)
	}
	e.setup(bits, true)
	e.state = scanReceivingTMS
	return nil
}

// beginFramed starts a full-dialect session with the TDI buffer taken from an
// already-received packet. TMS is all-zero except, when flipLast is set, the
// final bit, which is forced to 1 so the client can exit a shift state.
func (e *scanEngine) beginFramed(bits int, flipLast bool, tdi []byte) error {
	if bits <= 0 || bits > MaxScanBits {
		return fmt.Errorf("vpi: scan length %d out of range [1,%d]", bits, MaxScanBits)
	}
	e.setup(bits, false)
	copy(e.tdi, tdi[:e.numBytes])
	if flipLast {
		last := bits - 1
		e.tms[last/8] |= 1 << e.bitPos(last)
	}
	e.state = scanProcessing
	return nil
}

func (e *scanEngine) setup(bits int, streaming bool) {
	e.numBits = bits
	e.numBytes = (bits + 7) / 8
	e.bitIndex = 0
	e.bytesReceived = 0
	e.bytesSent = 0
	e.streaming = streaming
	e.tms = make([]byte, e.numBytes)
	e.tdi = make([]byte, e.numBytes)
	e.tdo = make([]byte, e.numBytes)
}

func (e *scanEngine) reset() {
	*e = scanEngine{msbFirst: e.msbFirst}
}

func (e *scanEngine) active() bool {
	return e.state != scanIdle
}

func (e *scanEngine) bitPos(i int) uint {
	if e.msbFirst {
		return uint(7 - i%8)
	}
	return uint(i % 8)
}

func (e *scanEngine) bit(buf []byte, i int) uint8 {
	return (buf[i/8] >> e.bitPos(i)) & 1
}

func (e *scanEngine) setTDO(i int, v uint8) {
	if v&1 != 0 {
		e.tdo[i/8] |= 1 << e.bitPos(i)
	} else {
		e.tdo[i/8] &^= 1 << e.bitPos(i)
	}
}

// process advances the shift by at most one TCK pulse per call. The TDO
// sampled for bit i-1 only becomes valid once bit i-1's pulse has been
// consumed by the stepper, so it is folded into the result at the start of
// the next call (a one-cycle pipeline). Returns true once every bit has been
// pulsed and the final sample captured.
func (e *scanEngine) process(mb *Mailbox) bool {
	if mb.PulsePending() {
		return false
	}
	if e.bitIndex > 0 {
		e.setTDO(e.bitIndex-1, mb.Sample().TDO)
	}
	if e.bitIndex < e.numBits {
		mb.RequestPulse(e.bit(e.tms, e.bitIndex), e.bit(e.tdi, e.bitIndex))
		e.bitIndex++
		return false
	}
	return true
}

// tmsSequence drives a buffered TMS bit sequence, one TCK pulse per tick,
// with TDI held low. No data is captured.
type tmsSequence struct {
	active   bool
	numBits  int
	bitIndex int
	buf      []byte
}

func (q *tmsSequence) begin(bits int, data []byte) {
	numBytes := (bits + 7) / 8
	if numBytes > len(data) {
		numBytes = len(data)
		bits = numBytes * 8
	}
	q.active = true
	q.numBits = bits
	q.bitIndex = 0
	q.buf = append(q.buf[:0], data[:numBytes]...)
}

func (q *tmsSequence) reset() {
	q.active = false
	q.bitIndex = 0
}

// step issues the next TMS pulse once the previous one has settled. Returns
// true when the sequence has finished.
func (q *tmsSequence) step(mb *Mailbox) bool {
	if !q.active {
		return true
	}
	if mb.PulsePending() {
		return false
	}
	if q.bitIndex < q.numBits {
		bit := (q.buf[q.bitIndex/8] >> uint(q.bitIndex%8)) & 1
		mb.RequestPulse(bit, 0)
		q.bitIndex++
		return false
	}
	q.active = false
	return true
}
