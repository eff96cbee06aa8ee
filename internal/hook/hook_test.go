package hook

import (
	"runtime"
	"testing"
)

func TestKeyNameFallsBackToRawcode(t *testing.T) {
	if got := KeyName(0xfffe, 0); got != "RAW65534" {
		t.Errorf("Expected RAW65534, got %s", got)
	}
}

func TestKeyNameF9(t *testing.T) {
	var raw uint16
	switch runtime.GOOS {
	case "windows":
		raw = 0x78
	case "darwin":
		raw = 101
	default:
		raw = 0xffc6
	}
	if got := KeyName(raw, 0); got != "F9" {
		t.Errorf("Expected F9, got %s", got)
	}
}
