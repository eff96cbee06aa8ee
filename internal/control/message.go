// Package control is the clicker's control plane: one goroutine owns the
// armed/hotkey/rebind state and changes it only in response to messages.
package control

import "autoclicker/internal/input"

// Message is one request to the control plane. The set of implementations is
// closed to this package.
type Message interface {
	isMessage()
}

// ToggleRequested arms a disarmed clicker or disarms an armed one
type ToggleRequested struct{}

// KeyObserved reports a system-wide key press
type KeyObserved struct {
	Key input.Key
}

// RebindRequested makes the next observed key the new hotkey
type RebindRequested struct{}

// HotkeyBound records Key as the hotkey and updates the label
type HotkeyBound struct {
	Key input.Key
}

// snapshotRequest asks the loop for a copy of its state
type snapshotRequest struct {
	reply chan State
}

func (ToggleRequested) isMessage() {}
func (KeyObserved) isMessage()     {}
func (RebindRequested) isMessage() {}
func (HotkeyBound) isMessage()     {}
func (snapshotRequest) isMessage() {}
