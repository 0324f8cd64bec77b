package vpi

import (
	"encoding/binary"
	"fmt"
)

// Command IDs shared by both client dialects. The minimal 8-byte dialect only
// uses 0-3 and reinterprets 3 as a mode query (SET_PORT); the full jtag_vpi
// dialect uses the whole set.
const (
	CmdReset       = 0
	CmdTMSSeq      = 1
	CmdScan        = 2
	CmdScanFlipTMS = 3 // full dialect only
	CmdSetPort     = 3 // minimal dialect only
	CmdStopSimu    = 4
	CmdOscan1      = 5
)

const (
	// MinimalCmdSize is the fixed size of a minimal-dialect command:
	// cmd:u8, pad:u8[3], length:u32.
	MinimalCmdSize = 8

	// MinimalRespSize is the fixed size of a minimal-dialect response:
	// response:u8, tdo:u8, mode:u8, status:u8.
	MinimalRespSize = 4

	// PacketBufferLen is the size of each data buffer inside a full
	// jtag_vpi packet.
	PacketBufferLen = 512

	// PacketSize is the fixed size of a full jtag_vpi packet:
	// cmd:u32 + buffer_out:[512]u8 + buffer_in:[512]u8 + length:u32 + nb_bits:u32.
	PacketSize = 4 + PacketBufferLen + PacketBufferLen + 4 + 4

	// MaxScanBits bounds a single scan or TMS sequence in either dialect.
	// It is a validation rule, not a buffer size.
	MaxScanBits = 4096
)

// Response status codes for the minimal dialect.
const (
	RespOK    = 0x00
	RespError = 0x01
)

// MinimalCommand is the 8-byte command shared by the compact test client and
// the OpenOCD "minimal" probe.
type MinimalCommand struct {
	Cmd    uint8
	Length uint32
}

// EncodeMinimalCommand builds the 8-byte wire form. The length field is
// written in network order, which is the documented encoding.
func EncodeMinimalCommand(c MinimalCommand) []byte {
	buf := make([]byte, MinimalCmdSize)
	buf[0] = c.Cmd
	binary.BigEndian.PutUint32(buf[4:8], c.Length)
	return buf
}

// DecodeMinimalCommand parses the 8-byte wire form. The length field should
// be network order, but some clients send it little-endian; the big-endian
// reading is preferred whenever it is plausible (<= MaxScanBits).
func DecodeMinimalCommand(buf []byte) (MinimalCommand, error) {
	if len(buf) < MinimalCmdSize {
		return MinimalCommand{}, fmt.Errorf("vpi: minimal command needs %d bytes, got %d", MinimalCmdSize, len(buf))
	}
	lenBE := binary.BigEndian.Uint32(buf[4:8])
	lenLE := binary.LittleEndian.Uint32(buf[4:8])
	length := lenBE
	if lenBE > MaxScanBits {
		length = lenLE
	}
	return MinimalCommand{Cmd: buf[0], Length: length}, nil
}

// MinimalResponse is the 4-byte reply of the minimal dialect.
type MinimalResponse struct {
	Response uint8
	TDO      uint8
	Mode     uint8
	Status   uint8
}

// EncodeMinimalResponse builds the 4-byte wire form.
func EncodeMinimalResponse(r MinimalResponse) []byte {
	return []byte{r.Response, r.TDO, r.Mode, r.Status}
}

// DecodeMinimalResponse parses the 4-byte wire form.
func DecodeMinimalResponse(buf []byte) (MinimalResponse, error) {
	if len(buf) < MinimalRespSize {
		return MinimalResponse{}, fmt.Errorf("vpi: minimal response needs %d bytes, got %d", MinimalRespSize, len(buf))
	}
	return MinimalResponse{
		Response: buf[0],
		TDO:      buf[1],
		Mode:     buf[2],
		Status:   buf[3],
	}, nil
}

// Packet is the fixed 1036-byte symmetric frame of the full jtag_vpi dialect.
// All integer fields are little-endian on the wire.
type Packet struct {
	Cmd       uint32
	BufferOut [PacketBufferLen]byte
	BufferIn  [PacketBufferLen]byte
	Length    uint32
	NumBits   uint32
}

// EncodePacket builds the 1036-byte wire form.
func EncodePacket(p *Packet) []byte {
	buf := make([]byte, PacketSize)
	binary.LittleEndian.PutUint32(buf[0:4], p.Cmd)
	copy(buf[4:4+PacketBufferLen], p.BufferOut[:])
	copy(buf[4+PacketBufferLen:4+2*PacketBufferLen], p.BufferIn[:])
	binary.LittleEndian.PutUint32(buf[PacketSize-8:PacketSize-4], p.Length)
	binary.LittleEndian.PutUint32(buf[PacketSize-4:PacketSize], p.NumBits)
	return buf
}

// DecodePacket parses the 1036-byte wire form.
func DecodePacket(buf []byte) (Packet, error) {
	if len(buf) < PacketSize {
		return Packet{}, fmt.Errorf("vpi: packet needs %d bytes, got %d", PacketSize, len(buf))
	}
	var p Packet
	p.Cmd = binary.LittleEndian.Uint32(buf[0:4])
	copy(p.BufferOut[:], buf[4:4+PacketBufferLen])
	copy(p.BufferIn[:], buf[4+PacketBufferLen:4+2*PacketBufferLen])
	p.Length = binary.LittleEndian.Uint32(buf[PacketSize-8 : PacketSize-4])
	p.NumBits = binary.LittleEndian.Uint32(buf[PacketSize-4 : PacketSize])
	return p, nil
}

// Oscan1 sub-command bit layout inside BufferOut[0]: bit 0 carries TDI
// (driven on the falling TCKC edge), bit 1 carries TMS (rising edge).
const (
	Oscan1TDIBit = 1 << 0
	Oscan1TMSBit = 1 << 1
)

// DecodeOscan1 extracts the TMS and TDI values of an OScan1 sub-command.
func DecodeOscan1(b byte) (tms, tdi uint8) {
	return (b >> 1) & 1, b & 1
}

// EncodeOscan1 packs TMS and TDI into the sub-command byte.
func EncodeOscan1(tms, tdi uint8) byte {
	return (tms&1)<<1 | tdi&1
}

// ValidateScanBits checks a requested scan length against the protocol bound.
func ValidateScanBits(bits uint32) error {
	if bits == 0 || bits > MaxScanBits {
		return fmt.Errorf("vpi: scan length %d out of range [1,%d]", bits, MaxScanBits)
	}
	return nil
}
