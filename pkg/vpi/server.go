package vpi

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// ProtocolMode classifies the dialect a connected client speaks. It is fixed
// at the first command and sticky for the lifetime of the connection.
type ProtocolMode uint8

const (
	ProtoUnknown ProtocolMode = iota
	ProtoMinimal
	ProtoFull
)

func (p ProtocolMode) String() string {
	switch p {
	case ProtoMinimal:
		return "minimal"
	case ProtoFull:
		return "jtag_vpi"
	}
	return "unknown"
}

// resetPulses is the number of forced TMS=1 clocks issued for a reset
// command. Five clocks with TMS high reach Test-Logic-Reset from any TAP
// state; one extra covers a client mid-bit.
const resetPulses = 6

// pollWait bounds how long a single socket operation may wait inside one
// poll. It stands in for MSG_DONTWAIT while keeping the tick loop live.
const pollWait = time.Millisecond

// sendRetries bounds the short retry loop for the 4-byte minimal response.
const sendRetries = 1000

// Server bridges TCP debug clients onto a cycle-stepped DUT. It accepts at
// most one client, detects which dialect it speaks, and exchanges single-edge
// signal changes with the external stepper through its Mailbox. All socket
// I/O is non-blocking and resumable; Poll is invoked once per simulation
// tick and never stalls it.
type Server struct {
	addr string
	ln   *net.TCPListener
	conn net.Conn

	proto         ProtocolMode
	debugLevel    int
	stopRequested bool

	mailbox Mailbox
	scan    scanEngine
	sf0     sf0Exchange
	tmsSeq  tmsSequence

	// minimal dialect command accumulation
	minBuf      [MinimalCmdSize]byte
	minReceived int

	// full dialect packet accumulation and transmission
	rxBuf      [PacketSize]byte
	rxReceived int
	txPacket   Packet
	txBuf      []byte
	txSent     int
	txPending  bool
}

// NewServer creates a server that will listen on addr (host:port).
func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

// SetDebugLevel selects log verbosity: 0 silent, 1 events, 2 per-byte traces.
func (s *Server) SetDebugLevel(level int) { s.debugLevel = level }

// SetMSBFirst mirrors the bit order within each scan byte.
func (s *Server) SetMSBFirst(v bool) { s.scan.msbFirst = v }

// SetModeSelect sets the mode the DUT should start in (0 JTAG, 1 cJTAG).
func (s *Server) SetModeSelect(mode uint8) { s.mailbox.SetModeSelect(mode) }

// ClientConnected reports whether a client is currently attached.
func (s *Server) ClientConnected() bool { return s.conn != nil }

// Protocol returns the dialect detected for the current connection.
func (s *Server) Protocol() ProtocolMode { return s.proto }

// StopRequested reports whether a client asked to stop the simulation.
func (s *Server) StopRequested() bool { return s.stopRequested }

// PendingSignal is polled by the stepper once per simulation tick.
func (s *Server) PendingSignal() (SignalRequest, bool) { return s.mailbox.PendingSignal() }

// UpdateSignals reports the DUT outputs sampled after the last request.
func (s *Server) UpdateSignals(sample Sample) { s.mailbox.UpdateSignals(sample) }

// Listen binds the TCP listener. The server only starts accepting once Poll
// is driven by the simulation loop.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("vpi: listen on %s: %w", s.addr, err)
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return fmt.Errorf("vpi: %s is not a TCP address", s.addr)
	}
	s.ln = tcpLn
	s.logf(1, "[VPI] server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close tears down the client connection and the listener.
func (s *Server) Close() error {
	s.closeConnection(nil)
	if s.ln != nil {
		err := s.ln.Close()
		s.ln = nil
		return err
	}
	return nil
}

// Poll advances the server by one simulation tick: accept a client, detect
// its dialect, or resume whatever transfer or shift is in flight.
func (s *Server) Poll() {
	if s.conn == nil {
		s.acceptClient()
		return
	}
	switch s.proto {
	case ProtoUnknown:
		s.detectDialect()
	case ProtoMinimal:
		s.pollMinimal()
	case ProtoFull:
		s.pollFull()
	}
}

func (s *Server) acceptClient() {
	if s.ln == nil {
		return
	}
	s.ln.SetDeadline(time.Now().Add(pollWait))
	conn, err := s.ln.AcceptTCP()
	if err != nil {
		if !isWouldBlock(err) {
			s.logf(1, "[VPI] accept error: %v", err)
		}
		return
	}
	conn.SetNoDelay(true)
	s.conn = conn
	s.logf(1, "[VPI] client connected from %s", conn.RemoteAddr())
}

// detectDialect buffers the 8-byte header every dialect shares, then checks
// whether the kernel already holds more bytes. More data means a full
// jtag_vpi packet is in flight; the 8 bytes become its prefix. Otherwise the
// 8 bytes are a complete minimal command. The guess is sticky and advisory:
// a full packet fragmented so that its first 8 bytes arrive alone can be
// misread as minimal, which the protocol accepts rather than block here.
func (s *Server) detectDialect() {
	if !s.fill(s.rxBuf[:], &s.rxReceived, MinimalCmdSize) {
		return
	}
	n, err := s.readNow(s.rxBuf[s.rxReceived:])
	if n > 0 {
		s.rxReceived += n
		s.proto = ProtoFull
		s.logf(1, "[VPI] detected %s dialect (cmd=0x%02x)", s.proto, s.rxBuf[0])
		s.pollFull()
		return
	}
	if err != nil && !isWouldBlock(err) {
		s.closeConnection(err)
		return
	}
	s.proto = ProtoMinimal
	copy(s.minBuf[:], s.rxBuf[:MinimalCmdSize])
	s.minReceived = MinimalCmdSize
	s.rxReceived = 0
	s.logf(1, "[VPI] detected %s dialect (cmd=0x%02x)", s.proto, s.minBuf[0])
	s.pollMinimal()
}

func (s *Server) pollMinimal() {
	if s.scan.active() {
		s.continueMinimalScan()
		return
	}
	if !s.tmsSeq.step(&s.mailbox) {
		return
	}
	if !s.fill(s.minBuf[:], &s.minReceived, MinimalCmdSize) {
		return
	}
	cmd, err := DecodeMinimalCommand(s.minBuf[:])
	s.minReceived = 0
	if err != nil {
		return
	}
	s.handleMinimalCommand(cmd)
}

func (s *Server) handleMinimalCommand(c MinimalCommand) {
	s.logf(1, "[VPI] minimal cmd=0x%02x len=%d", c.Cmd, c.Length)
	sample := s.mailbox.Sample()

	switch c.Cmd {
	case CmdReset:
		s.mailbox.QueueReset(resetPulses)
		s.sendMinimalResponse(MinimalResponse{Response: RespOK, TDO: sample.TDO, Mode: sample.ActiveMode})

	case CmdTMSSeq:
		// The 8-byte frame carries no TMS payload, so the sequence
		// degenerates to idle clocking: length pulses with TMS=0, TDI=0.
		if c.Length > MaxScanBits {
			s.logf(1, "[VPI] implausible tms sequence length %d", c.Length)
			s.sendMinimalResponse(MinimalResponse{Response: RespError, Status: RespError})
			return
		}
		s.tmsSeq.begin(int(c.Length), make([]byte, (c.Length+7)/8))
		s.sendMinimalResponse(MinimalResponse{Response: RespOK, TDO: sample.TDO, Mode: sample.ActiveMode})

	case CmdScan:
		if err := ValidateScanBits(c.Length); err != nil {
			s.logf(1, "[VPI] %v", err)
			s.sendMinimalResponse(MinimalResponse{Response: RespError, Status: RespError})
			return
		}
		s.sendMinimalResponse(MinimalResponse{Response: RespOK, TDO: sample.TDO, Mode: sample.ActiveMode})
		if s.conn == nil {
			return
		}
		if err := s.scan.begin(int(c.Length)); err != nil {
			s.logf(1, "[VPI] %v", err)
		}

	case CmdSetPort:
		// Mode query: report the current TDO level and active mode.
		s.sendMinimalResponse(MinimalResponse{Response: RespOK, TDO: sample.TDO, Mode: sample.ActiveMode})

	default:
		s.logf(1, "[VPI] unknown minimal command 0x%02x", c.Cmd)
		s.sendMinimalResponse(MinimalResponse{Response: RespError, Status: RespError})
	}
}

func (s *Server) continueMinimalScan() {
	e := &s.scan
	switch e.state {
	case scanReceivingTMS:
		if !s.fill(e.tms, &e.bytesReceived, e.numBytes) {
			return
		}
		e.bytesReceived = 0
		e.state = scanReceivingTDI
	case scanReceivingTDI:
		if !s.fill(e.tdi, &e.bytesReceived, e.numBytes) {
			return
		}
		e.bitIndex = 0
		e.state = scanProcessing
	case scanProcessing:
		if e.process(&s.mailbox) {
			s.logf(2, "[VPI] scan shifted %d bits, tdo[0]=0x%02x", e.numBits, e.tdo[0])
			e.bytesSent = 0
			e.state = scanSendingTDO
		}
	case scanSendingTDO:
		if !s.flush(e.tdo, &e.bytesSent, e.numBytes) {
			return
		}
		e.reset()
	default:
		e.reset()
	}
}

// sendMinimalResponse transmits the fixed 4-byte reply. The frame is small
// enough that a bounded retry loop stands in for a resume cursor.
func (s *Server) sendMinimalResponse(r MinimalResponse) {
	buf := EncodeMinimalResponse(r)
	sent := 0
	for retry := 0; sent < len(buf) && retry < sendRetries; retry++ {
		n, err := s.writeNow(buf[sent:])
		sent += n
		if err != nil && !isWouldBlock(err) {
			s.closeConnection(err)
			return
		}
	}
	if sent < len(buf) {
		s.logf(1, "[VPI] short minimal response (%d/%d bytes)", sent, len(buf))
	}
}

func (s *Server) pollFull() {
	if s.txPending {
		if !s.flush(s.txBuf, &s.txSent, PacketSize) {
			return
		}
		s.txPending = false
	}
	if s.conn == nil {
		return
	}

	if s.sf0.active() {
		if !s.sf0.advance(&s.mailbox) {
			return
		}
		s.txPacket.BufferIn[0] = s.sf0.tdo
		s.logf(1, "[VPI] oscan1 bit complete, tdo=%d", s.sf0.tdo)
		s.queuePacket()
		return
	}

	if s.tmsSeq.active {
		s.tmsSeq.step(&s.mailbox)
		return
	}

	if s.scan.active() {
		if s.scan.process(&s.mailbox) {
			copy(s.txPacket.BufferIn[:], s.scan.tdo)
			s.logf(2, "[VPI] scan shifted %d bits, tdo[0]=0x%02x", s.scan.numBits, s.scan.tdo[0])
			s.scan.reset()
			s.queuePacket()
		}
		return
	}

	if !s.fill(s.rxBuf[:], &s.rxReceived, PacketSize) {
		return
	}
	pkt, err := DecodePacket(s.rxBuf[:])
	s.rxReceived = 0
	if err != nil {
		return
	}
	s.handlePacket(&pkt)
}

func (s *Server) handlePacket(p *Packet) {
	s.logf(1, "[VPI] packet cmd=%d length=%d nb_bits=%d", p.Cmd, p.Length, p.NumBits)

	switch p.Cmd {
	case CmdReset:
		s.mailbox.QueueReset(resetPulses)
		s.txPacket = Packet{Cmd: p.Cmd}
		s.queuePacket()

	case CmdTMSSeq:
		if p.NumBits > MaxScanBits {
			s.logf(1, "[VPI] implausible tms sequence length %d, dropping", p.NumBits)
			return
		}
		s.tmsSeq.begin(int(p.NumBits), p.BufferOut[:])
		s.txPacket = Packet{Cmd: p.Cmd}
		s.queuePacket()

	case CmdScan, CmdScanFlipTMS:
		if err := ValidateScanBits(p.NumBits); err != nil {
			// Malformed full packets are dropped without a reply; the
			// fixed framing keeps the stream in sync.
			s.logf(1, "[VPI] %v, dropping", err)
			return
		}
		if err := s.scan.beginFramed(int(p.NumBits), p.Cmd == CmdScanFlipTMS, p.BufferOut[:]); err != nil {
			s.logf(1, "[VPI] %v", err)
			return
		}
		s.txPacket = Packet{Cmd: p.Cmd, Length: uint32(s.scan.numBytes), NumBits: p.NumBits}

	case CmdStopSimu:
		s.stopRequested = true
		s.closeConnection(nil)

	case CmdOscan1:
		tms, tdi := DecodeOscan1(p.BufferOut[0])
		s.logf(1, "[VPI] oscan1 edge: tms=%d tdi=%d", tms, tdi)
		s.sf0.begin(tms, tdi, &s.mailbox)
		s.txPacket = Packet{Cmd: p.Cmd, Length: 1, NumBits: 2}

	default:
		s.logf(1, "[VPI] ignoring unknown packet command %d", p.Cmd)
	}
}

func (s *Server) queuePacket() {
	s.txBuf = EncodePacket(&s.txPacket)
	s.txSent = 0
	s.txPending = true
}

// fill resumes a partial read into buf[:target]. It returns true once target
// bytes are buffered. A would-block leaves the cursor for the next poll; a
// fatal transport error or a zero-byte read tears the connection down.
func (s *Server) fill(buf []byte, cur *int, target int) bool {
	if *cur >= target {
		return true
	}
	n, err := s.readNow(buf[*cur:target])
	if n > 0 {
		*cur += n
		s.logf(2, "[VPI] received %d bytes (%d/%d)", n, *cur, target)
	}
	if err != nil && !isWouldBlock(err) {
		s.closeConnection(err)
		return false
	}
	return *cur >= target
}

// flush resumes a partial write of buf[:target], mirroring fill.
func (s *Server) flush(buf []byte, cur *int, target int) bool {
	if *cur >= target {
		return true
	}
	n, err := s.writeNow(buf[*cur:target])
	if n > 0 {
		*cur += n
		s.logf(2, "[VPI] sent %d bytes (%d/%d)", n, *cur, target)
	}
	if err != nil && !isWouldBlock(err) {
		s.closeConnection(err)
		return false
	}
	return *cur >= target
}

func (s *Server) readNow(p []byte) (int, error) {
	s.conn.SetReadDeadline(time.Now().Add(pollWait))
	return s.conn.Read(p)
}

func (s *Server) writeNow(p []byte) (int, error) {
	s.conn.SetWriteDeadline(time.Now().Add(pollWait))
	return s.conn.Write(p)
}

// closeConnection drops the client and clears every piece of per-connection
// state so the next client starts from a clean slate.
func (s *Server) closeConnection(err error) {
	switch {
	case err == nil || errors.Is(err, io.EOF):
		s.logf(1, "[VPI] client disconnected (dialect=%s)", s.proto)
	default:
		s.logf(1, "[VPI] connection error: %v (dialect=%s)", err, s.proto)
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.proto = ProtoUnknown
	s.minReceived = 0
	s.rxReceived = 0
	s.txPending = false
	s.txSent = 0
	s.scan.reset()
	s.sf0.reset()
	s.tmsSeq.reset()
	s.mailbox.Reset()
}

func (s *Server) logf(level int, format string, args ...any) {
	if s.debugLevel >= level {
		fmt.Printf(format+"\n", args...)
	}
}

// isWouldBlock reports whether err is the deadline-based equivalent of
// EAGAIN: the operation simply found no data ready within this poll.
func isWouldBlock(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
