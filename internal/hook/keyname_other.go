//go:build !windows && !darwin

package hook

import "fmt"

// rawNames maps X11 keysyms to key names.
var rawNames = func() map[uint16]string {
	m := map[uint16]string{
		0x0020: "SPACE", 0xff08: "BACKSPACE", 0xff09: "TAB", 0xff0d: "ENTER",
		0xff13: "PAUSE", 0xff14: "SCROLLLOCK", 0xff1b: "ESC",
		0xff50: "HOME", 0xff51: "LEFT", 0xff52: "UP", 0xff53: "RIGHT", 0xff54: "DOWN",
		0xff55: "PAGEUP", 0xff56: "PAGEDOWN", 0xff57: "END",
		0xff61: "PRINTSCREEN", 0xff63: "INSERT", 0xffff: "DELETE",
		0xffe1: "SHIFT", 0xffe2: "SHIFT", 0xffe3: "CTRL", 0xffe4: "CTRL",
		0xffe5: "CAPSLOCK", 0xffe9: "ALT", 0xffea: "ALT", 0xffeb: "CMD", 0xffec: "CMD",
	}
	for c := uint16('a'); c <= 'z'; c++ {
		m[c] = string(rune(c - 'a' + 'A'))
		m[c-'a'+'A'] = string(rune(c - 'a' + 'A'))
	}
	for c := uint16('0'); c <= '9'; c++ {
		m[c] = string(rune(c))
	}
	for i := uint16(0); i < 24; i++ {
		m[0xffbe+i] = fmt.Sprintf("F%d", i+1)
	}
	return m
}()
