package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"autoclicker/internal/input"
)

// DefaultHotkey is bound at startup when no other key is configured
const DefaultHotkey input.Key = "F9"

// ErrRunning is returned by a second concurrent call to Run
var ErrRunning = errors.New("control plane already running")

// Renderer receives presentation instructions from the plane. Calls are made
// on the plane goroutine and must not block.
type Renderer interface {
	SetHotkeyLabel(key input.Key)
	SetRunning(on bool)
	ShowNotice(msg string)
}

// SettingsSource supplies already-validated repeat settings at the moment the
// clicker is armed.
type SettingsSource interface {
	Settings() (RepeatSettings, error)
}

// StaticSettings is a SettingsSource that never changes
type StaticSettings RepeatSettings

// Settings implements SettingsSource
func (s StaticSettings) Settings() (RepeatSettings, error) {
	return RepeatSettings(s), nil
}

// State is a copy of the plane's private state
type State struct {
	Armed          bool      `json:"armed"`
	Hotkey         input.Key `json:"hotkey,omitempty"`
	AwaitingRebind bool      `json:"awaiting_rebind"`
}

// Deps are the collaborators a Plane drives
type Deps struct {
	Simulator     input.Simulator
	Settings      SettingsSource
	Renderer      Renderer
	Logger        *zap.Logger
	DefaultHotkey input.Key
}

// Plane is the single owner of the clicker state. Everything else talks to it
// through Send.
type Plane struct {
	inbox         *mailbox
	sim           input.Simulator
	settings      SettingsSource
	renderer      Renderer
	log           *zap.Logger
	defaultHotkey input.Key
	running       atomic.Bool

	launch func(ctx context.Context, s RepeatSettings) (*Worker, *StopSignal, error)

	// Owned by the Run goroutine.
	state       State
	stop        *StopSignal
	worker      *Worker
	selfPending int
}

// selfSent marks a message the plane posted to itself
type selfSent struct {
	msg Message
}

func (selfSent) isMessage() {}

// New creates a disarmed plane. Call Run to start processing messages.
func New(d Deps) *Plane {
	p := &Plane{
		inbox:         newMailbox(),
		sim:           d.Simulator,
		settings:      d.Settings,
		renderer:      d.Renderer,
		log:           d.Logger,
		defaultHotkey: d.DefaultHotkey,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.renderer == nil {
		p.renderer = nopRenderer{}
	}
	if p.defaultHotkey == "" {
		p.defaultHotkey = DefaultHotkey
	}
	p.launch = func(ctx context.Context, s RepeatSettings) (*Worker, *StopSignal, error) {
		return startWorker(ctx, p.sim, s, p.log.With(zap.String("component", "worker")))
	}
	return p
}

// Send queues msg for the plane. It never blocks and is safe from any goroutine.
func (p *Plane) Send(msg Message) {
	if msg == nil {
		return
	}
	p.inbox.push(msg)
}

// Snapshot returns the plane's state once the messages it has queued for
// itself have been handled.
func (p *Plane) Snapshot(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	p.Send(snapshotRequest{reply: reply})
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Run processes messages until ctx is cancelled. A running worker is stopped
// and waited for before Run returns.
func (p *Plane) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)
	defer p.teardown()

	p.log.Info("Control plane started", zap.String("hotkey", string(p.defaultHotkey)))
	p.post(HotkeyBound{Key: p.defaultHotkey})

	for {
		msg, err := p.inbox.pop(ctx)
		if err != nil {
			return err
		}
		p.dispatch(ctx, msg)
	}
}

func (p *Plane) post(msg Message) {
	p.selfPending++
	p.inbox.push(selfSent{msg: msg})
}

func (p *Plane) dispatch(ctx context.Context, msg Message) {
	switch m := msg.(type) {
	case selfSent:
		p.selfPending--
		p.dispatch(ctx, m.msg)
	case ToggleRequested:
		p.toggle(ctx)
	case KeyObserved:
		p.keyObserved(m.Key)
	case RebindRequested:
		if !p.state.AwaitingRebind {
			p.log.Info("Waiting for new hotkey")
		}
		p.state.AwaitingRebind = true
	case HotkeyBound:
		p.state.Hotkey = m.Key
		p.renderer.SetHotkeyLabel(m.Key)
	case snapshotRequest:
		if p.selfPending > 0 {
			p.inbox.push(m)
			return
		}
		m.reply <- p.state
	default:
		p.log.Warn("Ignoring unknown message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (p *Plane) keyObserved(k input.Key) {
	if p.state.AwaitingRebind {
		p.state.Hotkey = k
		p.state.AwaitingRebind = false
		p.log.Info("Hotkey rebound", zap.String("hotkey", string(k)))
		p.post(HotkeyBound{Key: k})
		return
	}
	if p.state.Hotkey != "" && k == p.state.Hotkey {
		p.post(ToggleRequested{})
	}
}

func (p *Plane) toggle(ctx context.Context) {
	if p.state.Armed {
		if p.stop == nil {
			panic("control: armed without a stop signal")
		}
		p.stop.Fire()
		p.stop, p.worker = nil, nil
		p.state.Armed = false
		p.renderer.SetRunning(false)
		return
	}

	if p.stop != nil {
		panic("control: disarmed with a live stop signal")
	}

	w, stop, err := p.spawn(ctx)
	if err != nil {
		p.log.Warn("Worker not started", zap.Error(err))
		p.renderer.ShowNotice(err.Error())
		return
	}
	p.worker, p.stop = w, stop
	p.state.Armed = true
	p.renderer.SetRunning(true)
}

func (p *Plane) spawn(ctx context.Context) (*Worker, *StopSignal, error) {
	if p.settings == nil {
		return nil, nil, fmt.Errorf("%w: no settings", ErrSpawn)
	}
	s, err := p.settings.Settings()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	w, stop, err := p.launch(ctx, s)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return w, stop, nil
}

func (p *Plane) teardown() {
	if p.stop == nil {
		return
	}
	p.stop.Fire()
	<-p.worker.Done()
	p.stop, p.worker = nil, nil
	p.state.Armed = false
}

type nopRenderer struct{}

func (nopRenderer) SetHotkeyLabel(input.Key) {}
func (nopRenderer) SetRunning(bool)          {}
func (nopRenderer) ShowNotice(string)        {}
