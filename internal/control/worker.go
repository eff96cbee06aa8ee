package control

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"autoclicker/internal/input"
)

// MaxDelayMillis is the largest millisecond count that fits in a time.Duration
const MaxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

// RepeatSettings parameterise one repeat worker
type RepeatSettings struct {
	Delay  time.Duration
	Button input.Button
}

// Validate rejects a negative delay or an unknown button
func (s RepeatSettings) Validate() error {
	if s.Delay < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDelay, s.Delay)
	}
	if !s.Button.Valid() {
		return fmt.Errorf("%w: %q", input.ErrUnknownButton, s.Button)
	}
	return nil
}

// StopSignal is the sending half of a worker's one-shot cancellation. It is
// derived from the plane's context, so tearing the plane down fires it too.
// Discarding a StopSignal without calling Fire does not stop its worker: the
// worker runs until Fire or until that parent context is cancelled.
type StopSignal struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newStopSignal(parent context.Context) *StopSignal {
	ctx, cancel := context.WithCancel(parent)
	return &StopSignal{ctx: ctx, cancel: cancel}
}

// Fire signals the worker to stop. Calling it again has no effect.
func (s *StopSignal) Fire() {
	s.cancel()
}

// Fired reports whether the signal has fired, explicitly or through its parent
func (s *StopSignal) Fired() bool {
	return s.ctx.Err() != nil
}

func (s *StopSignal) receiver() <-chan struct{} {
	return s.ctx.Done()
}

// Worker repeats press/release/sleep cycles until its stop signal fires.
type Worker struct {
	settings RepeatSettings
	sim      input.Simulator
	stop     <-chan struct{}
	done     chan struct{}
	cycles   atomic.Uint64
	log      *zap.Logger
}

// startWorker validates s and launches a worker goroutine. The returned
// StopSignal is the only way to stop it besides cancelling ctx.
func startWorker(ctx context.Context, sim input.Simulator, s RepeatSettings, log *zap.Logger) (*Worker, *StopSignal, error) {
	if sim == nil {
		return nil, nil, ErrNoSimulator
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	stop := newStopSignal(ctx)
	w := &Worker{
		settings: s,
		sim:      sim,
		stop:     stop.receiver(),
		done:     make(chan struct{}),
		log:      log,
	}
	go w.run()
	return w, stop, nil
}

// Done is closed when the worker goroutine has returned
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Cycles returns the number of completed press/release pairs
func (w *Worker) Cycles() uint64 {
	return w.cycles.Load()
}

func (w *Worker) run() {
	defer close(w.done)

	w.log.Info("Start clicking",
		zap.String("button", string(w.settings.Button)),
		zap.Duration("delay", w.settings.Delay),
	)

	press := input.Action{Button: w.settings.Button, Phase: input.Press}
	release := input.Action{Button: w.settings.Button, Phase: input.Release}

	for {
		w.simulate(press)
		w.simulate(release)
		w.cycles.Add(1)

		if w.pause() {
			break
		}
	}

	w.log.Info("Stop clicking", zap.Uint64("cycles", w.Cycles()))
}

// simulate logs a failed injection and carries on at the same cadence.
func (w *Worker) simulate(a input.Action) {
	if err := w.sim.Simulate(a); err != nil {
		w.log.Warn("Could not send event", zap.Stringer("action", a), zap.Error(err))
	}
}

// pause sleeps for the configured delay, then checks the stop signal without
// blocking. It reports whether the worker should exit.
func (w *Worker) pause() bool {
	if w.settings.Delay > 0 {
		t := time.NewTimer(w.settings.Delay)
		select {
		case <-t.C:
		case <-w.stop:
			t.Stop()
		}
	}

	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}
