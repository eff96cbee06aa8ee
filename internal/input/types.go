// Package input defines the pointer actions the clicker injects and the key
// events it observes, independent of the platform libraries that do the work.
package input

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSimulate is returned when the OS refuses an injected event
	ErrSimulate = errors.New("simulate failed")

	// ErrUnknownButton is returned for a button name that is not left, right or middle
	ErrUnknownButton = errors.New("unknown button")
)

// Button identifies the pointer button a worker presses
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonRight  Button = "right"
	ButtonMiddle Button = "middle"
)

// ParseButton accepts "left", "right", "middle" (any case) and the numeric
// aliases 1, 2, 3 used by the HTTP API.
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "1":
		return ButtonLeft, nil
	case "right", "2":
		return ButtonRight, nil
	case "middle", "center", "3":
		return ButtonMiddle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownButton, s)
}

// Valid reports whether b is one of the known buttons
func (b Button) Valid() bool {
	return b == ButtonLeft || b == ButtonRight || b == ButtonMiddle
}

// Phase is the half of a click an Action performs
type Phase int

const (
	Press Phase = iota
	Release
)

func (p Phase) String() string {
	if p == Press {
		return "press"
	}
	return "release"
}

// Action is one primitive pointer event
type Action struct {
	Button Button
	Phase  Phase
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.Button, a.Phase)
}

// Simulator injects a single Action and returns once the OS has had time to
// register it.
type Simulator interface {
	Simulate(a Action) error
}

// Key is a normalised, upper-case key name such as "F9", "A" or "SPACE"
type Key string

// KeyEvent is one system-wide key transition
type KeyEvent struct {
	Key     Key
	Pressed bool
}

// KeySource delivers every system-wide key transition to fn for the rest of
// the process lifetime. It returns an error if the subscription cannot be
// established.
type KeySource interface {
	Subscribe(fn func(KeyEvent)) error
}
