// Package hotkey turns the system-wide key stream into control-plane
// messages and normalises the key names users type into config and the UI.
package hotkey

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
)

var (
	// ErrAlreadyStarted is returned by a second call to Observer.Start
	ErrAlreadyStarted = errors.New("observer already started")

	// ErrInvalidKey is returned by ParseKey for empty names and combinations
	ErrInvalidKey = errors.New("invalid key name")
)

// Sink receives the messages an Observer produces
type Sink interface {
	Send(msg control.Message)
}

// Observer forwards every key press from a KeySource to the control plane.
// Releases are dropped; nothing else is filtered.
type Observer struct {
	src     input.KeySource
	sink    Sink
	log     *zap.Logger
	started atomic.Bool
	presses atomic.Uint64
}

// NewObserver creates an observer. Start must be called once.
func NewObserver(src input.KeySource, sink Sink, log *zap.Logger) *Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Observer{src: src, sink: sink, log: log}
}

// Start subscribes to the key source for the rest of the process lifetime.
func (o *Observer) Start() error {
	if !o.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := o.src.Subscribe(o.handle); err != nil {
		return fmt.Errorf("subscribe to global key events: %w", err)
	}
	o.log.Info("Global key observer started")
	return nil
}

// Presses returns how many key presses have been forwarded
func (o *Observer) Presses() uint64 {
	return o.presses.Load()
}

func (o *Observer) handle(ev input.KeyEvent) {
	if !ev.Pressed {
		return
	}
	o.presses.Add(1)
	o.log.Debug("Key observed", zap.String("key", string(ev.Key)))
	o.sink.Send(control.KeyObserved{Key: ev.Key})
}

var aliases = map[string]string{
	"ESCAPE":    "ESC",
	"RETURN":    "ENTER",
	"CONTROL":   "CTRL",
	"OPTION":    "ALT",
	"COMMAND":   "CMD",
	"META":      "CMD",
	"SUPER":     "CMD",
	"WIN":       "CMD",
	"DEL":       "DELETE",
	"INS":       "INSERT",
	"PGUP":      "PAGEUP",
	"PGDN":      "PAGEDOWN",
	"BACK":      "BACKSPACE",
	"CAPS":      "CAPSLOCK",
	"SCROLL":    "SCROLLLOCK",
	"PRTSC":     "PRINTSCREEN",
	"ARROWUP":   "UP",
	"ARROWDOWN": "DOWN",
}

// ParseKey normalises a single key name ("f9", " Esc ", "return") to the
// upper-case form key events carry. Combinations such as "Ctrl+A" are rejected.
func ParseKey(s string) (input.Key, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if name != "+" && strings.Contains(name, "+") {
		return "", fmt.Errorf("%w: %q is a combination, bind a single key", ErrInvalidKey, s)
	}
	name = strings.Join(strings.Fields(name), "")
	if a, ok := aliases[name]; ok {
		name = a
	}
	return input.Key(name), nil
}
