package recorder

import (
	"context"
	"sync"
	"time"

	coachchat_errors "coachchat/pkg/errors"
	"coachchat/pkg/logger"
)

// State of a capture session.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

const (
	// DefaultTick is the cadence of both the duration ticker and the
	// metering poller.
	DefaultTick = 100 * time.Millisecond
	// DefaultMinDuration is the floor below which a recording cannot
	// be sent. Boundary inclusive.
	DefaultMinDuration = 0.5
)

// Session is the voice capture state machine. It owns the duration
// ticker and the metering poller as a pair: every transition starts or
// stops both together, and both are cleared on every exit path
// including Close.
type Session struct {
	mu          sync.Mutex
	state       State
	duration    float64
	metering    []float64
	device      CaptureDevice
	tick        time.Duration
	minDuration float64
	stopTimers  chan struct{}
	timersDone  sync.WaitGroup
	log         *logger.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithTick overrides the timer cadence.
func WithTick(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithMinDuration overrides the minimum sendable duration in seconds.
func WithMinDuration(seconds float64) Option {
	return func(s *Session) {
		if seconds >= 0 {
			s.minDuration = seconds
		}
	}
}

func NewSession(device CaptureDevice, log *logger.Logger, opts ...Option) *Session {
	s := &Session{
		state:       StateIdle,
		device:      device,
		tick:        DefaultTick,
		minDuration: DefaultMinDuration,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration returns accumulated capture time in seconds. Pauses do not
// accumulate.
func (s *Session) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// Metering returns a copy of the amplitude samples collected so far.
func (s *Session) Metering() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.metering))
	copy(out, s.metering)
	return out
}

// CanSend is true only while recording or paused and the accumulated
// duration has reached the minimum floor.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRecording && s.state != StatePaused {
		return false
	}
	return s.duration >= s.minDuration
}

// Start resets duration and metering, begins capture and starts both
// timers.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return coachchat_errors.ErrRecorderBusy
	}
	s.duration = 0
	s.metering = nil
	s.mu.Unlock()

	if err := s.device.Begin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateRecording
	s.startTimersLocked()
	s.mu.Unlock()
	return nil
}

// Pause stops both timers without losing accumulated duration or
// samples.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return coachchat_errors.ErrNotRecording
	}
	s.stopTimersLocked()
	s.state = StatePaused
	s.mu.Unlock()
	return s.device.Pause()
}

// Resume restarts both timers.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return coachchat_errors.ErrNotRecording
	}
	if err := s.device.Resume(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateRecording
	s.startTimersLocked()
	s.mu.Unlock()
	return nil
}

// Stop finalizes the capture and returns the asset for upload. The
// session always ends idle; a capture failure returns nil with the
// error.
func (s *Session) Stop() (*Result, error) {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return nil, coachchat_errors.ErrNotRecording
	}
	s.stopTimersLocked()
	duration := s.duration
	metering := make([]float64, len(s.metering))
	copy(metering, s.metering)
	s.state = StateIdle
	s.duration = 0
	s.metering = nil
	s.mu.Unlock()

	uri, err := s.device.End()
	if err != nil {
		s.log.Errorf("recorder: finalize failed: %v", err)
		return nil, err
	}
	return &Result{URI: uri, Duration: duration, Metering: metering}, nil
}

// Cancel discards the captured asset. Cancellation is synchronous and
// total: no partial state survives.
func (s *Session) Cancel() error {
	s.mu.Lock()
	if s.state != StateRecording && s.state != StatePaused {
		s.mu.Unlock()
		return nil
	}
	s.stopTimersLocked()
	s.state = StateIdle
	s.duration = 0
	s.metering = nil
	s.mu.Unlock()
	return s.device.Discard()
}

// Close is the abnormal-teardown path for when the owning context
// disappears mid-capture. A leaked timer is a defect, so Close always
// lands in idle with both timers cleared.
func (s *Session) Close() error {
	return s.Cancel()
}

// startTimersLocked launches the duration ticker and the metering
// poller. Caller holds s.mu.
func (s *Session) startTimersLocked() {
	stop := make(chan struct{})
	s.stopTimers = stop
	s.timersDone.Add(1)
	go func() {
		defer s.timersDone.Done()
		durationTicker := time.NewTicker(s.tick)
		meteringTicker := time.NewTicker(s.tick)
		defer durationTicker.Stop()
		defer meteringTicker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-durationTicker.C:
				s.mu.Lock()
				if s.state == StateRecording {
					s.duration += s.tick.Seconds()
				}
				s.mu.Unlock()
			case <-meteringTicker.C:
				samples := s.device.DrainMetering()
				s.mu.Lock()
				if s.state == StateRecording && len(samples) > 0 {
					s.metering = append(s.metering, samples...)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// stopTimersLocked clears both timers. Caller holds s.mu. Safe to call
// when the timers are not running.
func (s *Session) stopTimersLocked() {
	if s.stopTimers == nil {
		return
	}
	close(s.stopTimers)
	s.stopTimers = nil
}
