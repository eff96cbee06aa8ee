// Package hook is the global keyboard event source, built on gohook.
package hook

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"

	"autoclicker/internal/input"
)

var (
	// ErrAlreadySubscribed is returned by a second Subscribe
	ErrAlreadySubscribed = errors.New("key source already subscribed")

	// ErrUnavailable is returned when the OS hook does not come up in time
	ErrUnavailable = errors.New("global key hook unavailable")
)

// DefaultStartTimeout bounds how long Subscribe waits for the hook to report
// that it is enabled.
const DefaultStartTimeout = 3 * time.Second

// Source implements input.KeySource with a process-wide gohook session.
// gohook keeps global state, so only one Source may be subscribed.
type Source struct {
	mu           sync.Mutex
	subscribed   bool
	startTimeout time.Duration
	log          *zap.Logger
}

// NewSource creates an unsubscribed source
func NewSource(log *zap.Logger) *Source {
	if log == nil {
		log = zap.NewNop()
	}
	return &Source{startTimeout: DefaultStartTimeout, log: log}
}

// Subscribe starts the OS hook and delivers key transitions to fn from a
// dedicated goroutine until the process exits.
func (s *Source) Subscribe(fn func(input.KeyEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribed {
		return ErrAlreadySubscribed
	}

	events := gohook.Start()
	if events == nil {
		return ErrUnavailable
	}

	// The first event of a healthy session is HookEnabled. Anything else
	// proves the stream is alive too and is delivered normally.
	select {
	case ev, ok := <-events:
		if !ok {
			return fmt.Errorf("%w: event stream closed", ErrUnavailable)
		}
		if ev.Kind != gohook.HookEnabled {
			s.deliver(ev, fn)
		}
	case <-time.After(s.startTimeout):
		gohook.End()
		return fmt.Errorf("%w: no response after %v (missing input permissions?)", ErrUnavailable, s.startTimeout)
	}

	s.subscribed = true
	go s.pump(events, fn)
	s.log.Info("Global key hook started")
	return nil
}

func (s *Source) pump(events chan gohook.Event, fn func(input.KeyEvent)) {
	for ev := range events {
		s.deliver(ev, fn)
	}
	s.log.Warn("Global key hook stopped")
}

// deliver maps pressed/released events; typed (KeyDown) duplicates and mouse
// events are dropped.
func (s *Source) deliver(ev gohook.Event, fn func(input.KeyEvent)) {
	switch ev.Kind {
	case gohook.KeyHold:
		fn(input.KeyEvent{Key: KeyName(ev.Rawcode, ev.Keychar), Pressed: true})
	case gohook.KeyUp:
		fn(input.KeyEvent{Key: KeyName(ev.Rawcode, ev.Keychar), Pressed: false})
	}
}

// Close ends the gohook session
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribed {
		gohook.End()
	}
}

// KeyName names a key from its platform rawcode, falling back to gohook's
// own table, then the typed character, then "RAW<code>".
func KeyName(rawcode uint16, keychar rune) input.Key {
	if name, ok := rawNames[rawcode]; ok {
		return input.Key(name)
	}
	if name := strings.TrimSpace(gohook.RawcodetoKeychar(rawcode)); name != "" {
		return input.Key(strings.ToUpper(name))
	}
	if keychar != gohook.CharUndefined && unicode.IsPrint(keychar) && !unicode.IsSpace(keychar) {
		return input.Key(strings.ToUpper(string(keychar)))
	}
	return input.Key(fmt.Sprintf("RAW%d", rawcode))
}
