package hotkey

import (
	"errors"
	"sync"
	"testing"

	"autoclicker/internal/control"
	"autoclicker/internal/input"
)

type fakeSource struct {
	fn  func(input.KeyEvent)
	err error
}

func (f *fakeSource) Subscribe(fn func(input.KeyEvent)) error {
	if f.err != nil {
		return f.err
	}
	f.fn = fn
	return nil
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []control.Message
}

func (r *recordingSink) Send(msg control.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// TestObserverForwardsPresses tests that only presses become messages
func TestObserverForwardsPresses(t *testing.T) {
	src := &fakeSource{}
	sink := &recordingSink{}
	o := NewObserver(src, sink, nil)

	if err := o.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	src.fn(input.KeyEvent{Key: "F9", Pressed: true})
	src.fn(input.KeyEvent{Key: "F9", Pressed: false})
	src.fn(input.KeyEvent{Key: "A", Pressed: true})
	src.fn(input.KeyEvent{Key: "A", Pressed: true})

	want := []control.Message{
		control.KeyObserved{Key: "F9"},
		control.KeyObserved{Key: "A"},
		control.KeyObserved{Key: "A"},
	}
	if len(sink.msgs) != len(want) {
		t.Fatalf("Expected %d messages, got %d", len(want), len(sink.msgs))
	}
	for i := range want {
		if sink.msgs[i] != want[i] {
			t.Errorf("message %d: expected %#v, got %#v", i, want[i], sink.msgs[i])
		}
	}
	if o.Presses() != 3 {
		t.Errorf("Expected 3 presses, got %d", o.Presses())
	}
}

func TestObserverStartOnce(t *testing.T) {
	o := NewObserver(&fakeSource{}, &recordingSink{}, nil)
	if err := o.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := o.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
}

func TestObserverSubscribeFailure(t *testing.T) {
	boom := errors.New("no accessibility permission")
	o := NewObserver(&fakeSource{err: boom}, &recordingSink{}, nil)
	if err := o.Start(); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped subscribe error, got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	tests := map[string]input.Key{
		"f9":      "F9",
		" F12 ":   "F12",
		"a":       "A",
		"Escape":  "ESC",
		"return":  "ENTER",
		"page up": "PAGEUP",
		"+":       "+",
	}
	for in, want := range tests {
		got, err := ParseKey(in)
		if err != nil {
			t.Errorf("ParseKey(%q) returned error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKey(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestParseKeyRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "Ctrl+A"} {
		if _, err := ParseKey(in); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ParseKey(%q): expected ErrInvalidKey, got %v", in, err)
		}
	}
}
