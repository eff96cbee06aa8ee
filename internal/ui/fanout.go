package ui

import (
	"autoclicker/internal/control"
	"autoclicker/internal/input"
)

// Fanout passes every render instruction to each renderer in order
type Fanout []control.Renderer

// SetHotkeyLabel implements control.Renderer
func (f Fanout) SetHotkeyLabel(key input.Key) {
	for _, r := range f {
		r.SetHotkeyLabel(key)
	}
}

// SetRunning implements control.Renderer
func (f Fanout) SetRunning(on bool) {
	for _, r := range f {
		r.SetRunning(on)
	}
}

// ShowNotice implements control.Renderer
func (f Fanout) ShowNotice(msg string) {
	for _, r := range f {
		r.ShowNotice(msg)
	}
}
