// Package inject performs pointer actions through robotgo.
package inject

import (
	"fmt"
	"time"

	"github.com/go-vgo/robotgo"

	"autoclicker/internal/input"
)

// DefaultSettle is how long Simulate waits after each event so the OS
// registers it before the next one.
const DefaultSettle = 10 * time.Millisecond

// Robot implements input.Simulator
type Robot struct {
	settle time.Duration
	toggle func(args ...interface{}) error
	sleep  func(time.Duration)
}

// NewRobot returns a simulator that waits settle after every event. A
// negative settle is treated as zero.
func NewRobot(settle time.Duration) *Robot {
	if settle < 0 {
		settle = 0
	}
	return &Robot{
		settle: settle,
		toggle: robotgo.Toggle,
		sleep:  time.Sleep,
	}
}

// Simulate presses or releases a mouse button at the current cursor position
func (r *Robot) Simulate(a input.Action) error {
	name, err := buttonName(a.Button)
	if err != nil {
		return err
	}

	args := []interface{}{name}
	if a.Phase == input.Release {
		args = append(args, "up")
	}
	if err := r.toggle(args...); err != nil {
		return fmt.Errorf("%w: %s: %v", input.ErrSimulate, a, err)
	}

	if r.settle > 0 {
		r.sleep(r.settle)
	}
	return nil
}

// buttonName maps a Button to the name robotgo expects
func buttonName(b input.Button) (string, error) {
	switch b {
	case input.ButtonLeft:
		return "left", nil
	case input.ButtonRight:
		return "right", nil
	case input.ButtonMiddle:
		return "center", nil
	}
	return "", fmt.Errorf("%w: %q", input.ErrUnknownButton, b)
}
