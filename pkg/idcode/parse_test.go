package idcode

import "testing"

func TestParseIDCode(t *testing.T) {
	id := ParseIDCode(0x06438041)
	if id.Version != 0x0 {
		t.Errorf("Version = %#x, want 0x0", id.Version)
	}
	if id.PartNumber != 0x6438 {
		t.Errorf("PartNumber = %#x, want 0x6438", id.PartNumber)
	}
	if id.ManufacturerCode != 0x020 {
		t.Errorf("ManufacturerCode = %#x, want 0x020", id.ManufacturerCode)
	}
	if !id.HasIDCode {
		t.Error("HasIDCode = false, want true")
	}
}

func TestLookupManufacturer(t *testing.T) {
	m, ok := LookupManufacturer(0x020)
	if !ok || m.Name != "STMicroelectronics" {
		t.Errorf("LookupManufacturer(0x020) = %q, %v", m.Name, ok)
	}
	if m, ok := LookupManufacturer(0x7FE); ok {
		t.Errorf("LookupManufacturer(0x7FE) unexpectedly known: %q", m.Name)
	}
}
