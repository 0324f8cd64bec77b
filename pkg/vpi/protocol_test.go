package vpi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMinimalCommandRoundTrip(t *testing.T) {
	for _, cmd := range []MinimalCommand{
		{Cmd: CmdReset, Length: 0},
		{Cmd: CmdScan, Length: 8},
		{Cmd: CmdScan, Length: 4096},
		{Cmd: CmdSetPort, Length: 0},
	} {
		buf := EncodeMinimalCommand(cmd)
		if len(buf) != MinimalCmdSize {
			t.Fatalf("encoded size = %d, want %d", len(buf), MinimalCmdSize)
		}
		got, err := DecodeMinimalCommand(buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got != cmd {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, cmd)
		}
	}
}

func TestMinimalCommandLengthEndianness(t *testing.T) {
	// Big-endian is preferred whenever it yields a plausible length.
	buf := make([]byte, MinimalCmdSize)
	buf[0] = CmdScan
	binary.BigEndian.PutUint32(buf[4:8], 64)
	cmd, err := DecodeMinimalCommand(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cmd.Length != 64 {
		t.Errorf("big-endian length = %d, want 64", cmd.Length)
	}

	// A little-endian client sending 64 produces the bytes 40 00 00 00,
	// which read as 0x40000000 big-endian: implausible, so the
	// little-endian value wins.
	binary.LittleEndian.PutUint32(buf[4:8], 64)
	cmd, err = DecodeMinimalCommand(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if cmd.Length != 64 {
		t.Errorf("little-endian length = %d, want 64", cmd.Length)
	}
}

func TestMinimalCommandShortBuffer(t *testing.T) {
	if _, err := DecodeMinimalCommand(make([]byte, 4)); err == nil {
		t.Error("expected error for short buffer")
	}
}

func TestMinimalResponseRoundTrip(t *testing.T) {
	resp := MinimalResponse{Response: RespOK, TDO: 1, Mode: 1, Status: 0}
	buf := EncodeMinimalResponse(resp)
	if len(buf) != MinimalRespSize {
		t.Fatalf("encoded size = %d, want %d", len(buf), MinimalRespSize)
	}
	got, err := DecodeMinimalResponse(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != resp {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, resp)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	p := Packet{Cmd: CmdScanFlipTMS, Length: 5, NumBits: 33}
	for i := range p.BufferOut {
		p.BufferOut[i] = byte(i)
	}
	for i := range p.BufferIn {
		p.BufferIn[i] = byte(255 - i)
	}

	buf := EncodePacket(&p)
	if len(buf) != PacketSize {
		t.Fatalf("encoded size = %d, want %d", len(buf), PacketSize)
	}
	got, err := DecodePacket(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Cmd != p.Cmd || got.Length != p.Length || got.NumBits != p.NumBits {
		t.Errorf("header mismatch: got %d/%d/%d, want %d/%d/%d",
			got.Cmd, got.Length, got.NumBits, p.Cmd, p.Length, p.NumBits)
	}
	if !bytes.Equal(got.BufferOut[:], p.BufferOut[:]) {
		t.Error("buffer_out mismatch")
	}
	if !bytes.Equal(got.BufferIn[:], p.BufferIn[:]) {
		t.Error("buffer_in mismatch")
	}
}

func TestPacketFieldOffsets(t *testing.T) {
	// The wire layout is cmd:4, out:512, in:512, length:4, nb_bits:4,
	// all little-endian.
	p := Packet{Cmd: 0x01020304, Length: 0x0a0b0c0d, NumBits: 0x11121314}
	buf := EncodePacket(&p)
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != p.Cmd {
		t.Errorf("cmd at offset 0 = 0x%08x, want 0x%08x", got, p.Cmd)
	}
	if got := binary.LittleEndian.Uint32(buf[1028:1032]); got != p.Length {
		t.Errorf("length at offset 1028 = 0x%08x, want 0x%08x", got, p.Length)
	}
	if got := binary.LittleEndian.Uint32(buf[1032:1036]); got != p.NumBits {
		t.Errorf("nb_bits at offset 1032 = 0x%08x, want 0x%08x", got, p.NumBits)
	}
}

func TestOscan1Bits(t *testing.T) {
	for _, tc := range []struct {
		tms, tdi uint8
		want     byte
	}{
		{0, 0, 0x00},
		{0, 1, 0x01},
		{1, 0, 0x02},
		{1, 1, 0x03},
	} {
		if got := EncodeOscan1(tc.tms, tc.tdi); got != tc.want {
			t.Errorf("EncodeOscan1(%d,%d) = 0x%02x, want 0x%02x", tc.tms, tc.tdi, got, tc.want)
		}
		tms, tdi := DecodeOscan1(tc.want)
		if tms != tc.tms || tdi != tc.tdi {
			t.Errorf("DecodeOscan1(0x%02x) = %d,%d, want %d,%d", tc.want, tms, tdi, tc.tms, tc.tdi)
		}
	}
}

func TestValidateScanBits(t *testing.T) {
	if err := ValidateScanBits(1); err != nil {
		t.Errorf("1 bit should be valid: %v", err)
	}
	if err := ValidateScanBits(MaxScanBits); err != nil {
		t.Errorf("%d bits should be valid: %v", MaxScanBits, err)
	}
	if err := ValidateScanBits(0); err == nil {
		t.Error("0 bits should be rejected")
	}
	if err := ValidateScanBits(MaxScanBits + 1); err == nil {
		t.Error("4097 bits should be rejected")
	}
}
