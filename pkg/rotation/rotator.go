package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polisai/shelf/pkg/telemetry"
)

// DefaultInterval is the auto-advance period of the testimonial carousel.
const DefaultInterval = 5 * time.Second

// Advance triggers reported to metrics and observers.
const (
	TriggerTimer  = "timer"
	TriggerManual = "manual"
)

// ErrIndexOutOfRange is returned by Rotator.GoTo for an index outside [0, Length).
var ErrIndexOutOfRange = errors.New("rotation index out of range")

// ticker is the part of *time.Ticker the rotator needs.
type ticker interface {
	C() <-chan time.Time
	Reset(d time.Duration)
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time    { return t.t.C }
func (t timeTicker) Reset(d time.Duration) { t.t.Reset(d) }
func (t timeTicker) Stop()                 { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker { return timeTicker{t: time.NewTicker(d)} }

// Options configures a Rotator.
type Options struct {
	Name     string
	Length   int
	Interval time.Duration
	// OnAdvance is called after every index change, outside the rotator's lock.
	// Timer-triggered calls run on the ticker goroutine; a Stop issued from
	// there returns without waiting for that goroutine.
	OnAdvance func(s State, trigger string)
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// Rotator owns a State and at most one auto-advance ticker.
// Ticks advance the index unless the state is paused; pausing does not stop
// the ticker, so resuming continues on the existing schedule.
type Rotator struct {
	name      string
	onAdvance func(State, string)
	metrics   *telemetry.Metrics
	logger    *slog.Logger
	newTicker func(time.Duration) ticker

	mu       sync.Mutex
	state    State
	interval time.Duration
	running  bool
	ticking  bool
	stopCh   chan struct{}
	resetCh  chan time.Duration
	done     chan struct{}
}

// NewRotator creates a stopped Rotator.
func NewRotator(opts Options) *Rotator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Rotator{
		name:      opts.Name,
		onAdvance: opts.OnAdvance,
		metrics:   opts.Metrics,
		logger:    logger.With("widget", opts.Name),
		newTicker: newTimeTicker,
		state:     Normalize(State{Length: opts.Length}),
		interval:  interval,
	}
}

// Start begins auto-advancing every interval. A non-positive interval keeps the
// configured one. Starting a running rotator is a no-op. The ticker also stops
// when ctx is cancelled.
func (r *Rotator) Start(ctx context.Context, interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start rotator %q: %w", r.name, err)
	}
	if interval > 0 {
		r.interval = interval
	}

	r.logger.Info("Starting rotation", "interval", r.interval)

	r.running = true
	r.stopCh = make(chan struct{})
	r.resetCh = make(chan time.Duration, 1)
	r.done = make(chan struct{})
	go r.loop(ctx, r.newTicker(r.interval), r.stopCh, r.resetCh, r.done)

	return nil
}

// Stop cancels all future advances and waits for the ticker goroutine to exit,
// unless it is called while a timer-triggered OnAdvance is running.
// Stopping a stopped rotator is a no-op.
func (r *Rotator) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	done := r.done
	ticking := r.ticking
	r.mu.Unlock()

	if !ticking {
		<-done
	}
	r.logger.Info("Rotation stopped")
}

// Running reports whether the ticker is active.
func (r *Rotator) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Interval returns the auto-advance period.
func (r *Rotator) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// SetInterval changes the auto-advance period, applying it to a running ticker.
func (r *Rotator) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = d
	if !r.running {
		return
	}
	select {
	case <-r.resetCh:
	default:
	}
	r.resetCh <- d
}

// State returns the current state.
func (r *Rotator) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Next moves to the following slot.
func (r *Rotator) Next() State {
	return r.apply(TriggerManual, func(s State) State { return Advance(s, 1) })
}

// Prev moves to the preceding slot.
func (r *Rotator) Prev() State {
	return r.apply(TriggerManual, func(s State) State { return Advance(s, -1) })
}

// GoTo selects slot i.
func (r *Rotator) GoTo(i int) (State, error) {
	r.mu.Lock()
	if i < 0 || i >= r.state.Length {
		s := r.state
		r.mu.Unlock()
		return s, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, s.Length)
	}
	before := r.state
	r.state = GoTo(r.state, i)
	after := r.state
	r.mu.Unlock()

	if after.Index != before.Index {
		r.notify(after, TriggerManual)
	}
	return after, nil
}

// Pause suspends automatic advancement. Manual moves still work.
func (r *Rotator) Pause() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Pause(r.state)
	return r.state
}

// Resume re-enables automatic advancement.
func (r *Rotator) Resume() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Resume(r.state)
	return r.state
}

// SetLength updates the number of slots and normalizes the index.
func (r *Rotator) SetLength(n int) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Length = n
	r.state = Normalize(r.state)
	return r.state
}

func (r *Rotator) apply(trigger string, fn func(State) State) State {
	r.mu.Lock()
	before := r.state
	r.state = fn(r.state)
	after := r.state
	r.mu.Unlock()

	if after.Index != before.Index {
		r.notify(after, trigger)
	}
	return after
}

func (r *Rotator) tick() {
	r.mu.Lock()
	if r.state.Paused || r.state.Length == 0 {
		r.mu.Unlock()
		return
	}
	r.state = Advance(r.state, 1)
	s := r.state
	r.ticking = true
	r.mu.Unlock()

	r.notify(s, TriggerTimer)

	r.mu.Lock()
	r.ticking = false
	r.mu.Unlock()
}

func (r *Rotator) notify(s State, trigger string) {
	r.metrics.RecordRotation(r.name, trigger)
	if r.onAdvance != nil {
		r.onAdvance(s, trigger)
	}
}

func (r *Rotator) loop(ctx context.Context, t ticker, stop <-chan struct{}, reset <-chan time.Duration, done chan<- struct{}) {
	defer close(done)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.stopCh == stop && r.running {
				r.running = false
				r.logger.Info("Rotation stopped by context", "error", ctx.Err())
			}
			r.mu.Unlock()
			return
		case <-stop:
			return
		case d := <-reset:
			t.Reset(d)
		case <-t.C():
			select {
			case <-stop:
				return
			default:
			}
			r.tick()
		}
	}
}
