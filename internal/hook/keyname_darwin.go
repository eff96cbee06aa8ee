//go:build darwin

package hook

// rawNames maps macOS CGKeyCodes to key names.
var rawNames = map[uint16]string{
	55: "CMD", 54: "CMD", 56: "SHIFT", 60: "SHIFT",
	58: "ALT", 61: "ALT", 59: "CTRL", 62: "CTRL",
	49: "SPACE", 36: "ENTER", 53: "ESC", 48: "TAB", 51: "BACKSPACE", 57: "CAPSLOCK",
	117: "DELETE", 115: "HOME", 119: "END", 116: "PAGEUP", 121: "PAGEDOWN",
	123: "LEFT", 124: "RIGHT", 125: "DOWN", 126: "UP",

	0: "A", 11: "B", 8: "C", 2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O", 35: "P", 12: "Q",
	15: "R", 1: "S", 17: "T", 32: "U", 9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z",

	29: "0", 18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6", 26: "7", 28: "8", 25: "9",

	122: "F1", 120: "F2", 99: "F3", 118: "F4", 96: "F5", 97: "F6",
	98: "F7", 100: "F8", 101: "F9", 109: "F10", 103: "F11", 111: "F12",
	105: "F13", 107: "F14", 113: "F15",
}
