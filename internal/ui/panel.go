// Package ui holds the presentation-side state shared by the tray, the control
// page and the WebSocket clients.
package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
)

// ErrInvalidDelay is returned for delay text that is not a whole number of
// milliseconds, 0 or more and small enough to fit a time.Duration
var ErrInvalidDelay = errors.New("delay must be a whole number of milliseconds")

// Sender delivers messages to the control plane
type Sender interface {
	Send(msg control.Message)
}

// View is what every presenter shows
type View struct {
	Hotkey      input.Key    `json:"hotkey"`
	Armed       bool         `json:"armed"`
	Capturing   bool         `json:"capturing"`
	Notice      string       `json:"notice,omitempty"`
	DelayMillis int          `json:"delay_ms"`
	Button      input.Button `json:"button"`
}

// Panel owns the delay and button the user picked, and the last state the
// control plane rendered. It is the plane's SettingsSource and one of its
// renderers.
type Panel struct {
	mu       sync.Mutex
	view     View
	sink     Sender
	onChange []func(control.RepeatSettings)
}

// NewPanel creates a panel with initial settings, which must be valid
func NewPanel(s control.RepeatSettings) (*Panel, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Panel{
		view: View{
			DelayMillis: int(s.Delay / time.Millisecond),
			Button:      s.Button,
		},
	}, nil
}

// Connect sets where Toggle and Rebind send their messages
func (p *Panel) Connect(sink Sender) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

// OnSettingsChange registers fn to run after delay or button changed
func (p *Panel) OnSettingsChange(fn func(control.RepeatSettings)) {
	p.mu.Lock()
	p.onChange = append(p.onChange, fn)
	p.mu.Unlock()
}

// Toggle asks the plane to arm or disarm
func (p *Panel) Toggle() {
	p.send(control.ToggleRequested{})
}

// Rebind asks the plane to take the next key press as the hotkey
func (p *Panel) Rebind() {
	p.mu.Lock()
	p.view.Capturing = true
	p.mu.Unlock()
	p.send(control.RebindRequested{})
}

func (p *Panel) send(msg control.Message) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink.Send(msg)
	}
}

// SetDelayText parses text as a delay in milliseconds. Invalid text leaves the
// current delay untouched.
func (p *Panel) SetDelayText(text string) error {
	ms, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || ms < 0 || ms > control.MaxDelayMillis {
		return fmt.Errorf("%w: %q", ErrInvalidDelay, text)
	}
	return p.SetDelay(time.Duration(ms) * time.Millisecond)
}

// SetDelay sets the delay used the next time the clicker is armed
func (p *Panel) SetDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDelay, d)
	}
	p.update(func(v *View) { v.DelayMillis = int(d / time.Millisecond) })
	return nil
}

// SetButton sets the button used the next time the clicker is armed
func (p *Panel) SetButton(b input.Button) error {
	if !b.Valid() {
		return fmt.Errorf("%w: %q", input.ErrUnknownButton, b)
	}
	p.update(func(v *View) { v.Button = b })
	return nil
}

func (p *Panel) update(fn func(v *View)) {
	p.mu.Lock()
	fn(&p.view)
	s := settingsOf(p.view)
	callbacks := append([]func(control.RepeatSettings){}, p.onChange...)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(s)
	}
}

// Settings implements control.SettingsSource
func (p *Panel) Settings() (control.RepeatSettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return settingsOf(p.view), nil
}

func settingsOf(v View) control.RepeatSettings {
	return control.RepeatSettings{
		Delay:  time.Duration(v.DelayMillis) * time.Millisecond,
		Button: v.Button,
	}
}

// View returns a copy of what presenters should show
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view
}

// SetHotkeyLabel implements control.Renderer
func (p *Panel) SetHotkeyLabel(key input.Key) {
	p.mu.Lock()
	p.view.Hotkey = key
	p.view.Capturing = false
	p.mu.Unlock()
}

// SetRunning implements control.Renderer
func (p *Panel) SetRunning(on bool) {
	p.mu.Lock()
	p.view.Armed = on
	if on {
		p.view.Notice = ""
	}
	p.mu.Unlock()
}

// ShowNotice implements control.Renderer
func (p *Panel) ShowNotice(msg string) {
	p.mu.Lock()
	p.view.Notice = msg
	p.mu.Unlock()
}
