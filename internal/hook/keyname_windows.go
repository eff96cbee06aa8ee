//go:build windows

package hook

import "fmt"

// rawNames maps Windows virtual-key codes to key names.
var rawNames = func() map[uint16]string {
	m := map[uint16]string{
		0x08: "BACKSPACE", 0x09: "TAB", 0x0D: "ENTER", 0x13: "PAUSE",
		0x14: "CAPSLOCK", 0x1B: "ESC", 0x20: "SPACE",
		0x21: "PAGEUP", 0x22: "PAGEDOWN", 0x23: "END", 0x24: "HOME",
		0x25: "LEFT", 0x26: "UP", 0x27: "RIGHT", 0x28: "DOWN",
		0x2C: "PRINTSCREEN", 0x2D: "INSERT", 0x2E: "DELETE", 0x91: "SCROLLLOCK",
		0x10: "SHIFT", 0xA0: "SHIFT", 0xA1: "SHIFT",
		0x11: "CTRL", 0xA2: "CTRL", 0xA3: "CTRL",
		0x12: "ALT", 0xA4: "ALT", 0xA5: "ALT",
		0x5B: "CMD", 0x5C: "CMD",
	}
	for vk := uint16('A'); vk <= 'Z'; vk++ {
		m[vk] = string(rune(vk))
	}
	for vk := uint16('0'); vk <= '9'; vk++ {
		m[vk] = string(rune(vk))
	}
	for i := uint16(0); i < 24; i++ {
		m[0x70+i] = fmt.Sprintf("F%d", i+1)
	}
	return m
}()
