// Package protocol defines the JSON messages exchanged over the control
// WebSocket.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeStatus is sent by the server with the full clicker state, once on
	// connect and after every change
	TypeStatus MessageType = "status"

	// TypeHotkey is sent by the server when the hotkey label changes
	TypeHotkey MessageType = "hotkey"

	// TypeNotice is sent by the server for transient errors
	TypeNotice MessageType = "notice"

	// TypeToggle is sent by a client to arm or disarm the clicker
	TypeToggle MessageType = "toggle"

	// TypeRebind is sent by a client to capture the next key as the hotkey
	TypeRebind MessageType = "rebind"

	// TypeSettings is sent by a client to change delay or button, and by the
	// server when they changed
	TypeSettings MessageType = "settings"
)

// ErrUnknownType is returned by Parse for a message type nobody handles
var ErrUnknownType = errors.New("unknown message type")

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Armed          bool   `json:"armed"`
	Hotkey         string `json:"hotkey"`
	AwaitingRebind bool   `json:"awaiting_rebind"`
	DelayMillis    int    `json:"delay_ms"`
	Button         string `json:"button"`
}

// HotkeyPayload is the payload for TypeHotkey
type HotkeyPayload struct {
	Hotkey string `json:"hotkey"`
}

// NoticePayload is the payload for TypeNotice
type NoticePayload struct {
	Message string `json:"message"`
}

// SettingsPayload is the payload for TypeSettings. Delay is the raw text the
// user typed, in milliseconds. Empty fields are left unchanged.
type SettingsPayload struct {
	Delay  string `json:"delay,omitempty"`
	Button string `json:"button,omitempty"`
}

// Parse decodes a raw message and converts its payload to the concrete
// payload type for msg.Type.
func Parse(data []byte) (Message, error) {
	var raw struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("invalid message format: %w", err)
	}

	msg := Message{Type: raw.Type}
	switch raw.Type {
	case TypeToggle, TypeRebind:
		return msg, nil
	case TypeStatus:
		msg.Payload = &StatusPayload{}
	case TypeHotkey:
		msg.Payload = &HotkeyPayload{}
	case TypeNotice:
		msg.Payload = &NoticePayload{}
	case TypeSettings:
		msg.Payload = &SettingsPayload{}
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, raw.Type)
	}

	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, msg.Payload); err != nil {
			return Message{}, fmt.Errorf("invalid %s payload: %w", raw.Type, err)
		}
	}
	return msg, nil
}
