package cmd

import "testing"

func TestDescribeIDCode(t *testing.T) {
	got := describeIDCode(0x06438041)
	want := "0x06438041 (part 0x6438 rev 0, STMicroelectronics)"
	if got != want {
		t.Errorf("describeIDCode(0x06438041) = %q, want %q", got, want)
	}
}
