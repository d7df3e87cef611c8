// Package audiocapture records microphone audio for transcription. A
// Coordinator hands out at most one Session at a time; the Session resamples
// the device's native rate to 16 kHz on the fly and accumulates the result
// until Stop.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TargetSampleRate is the rate the transcription engine expects.
const TargetSampleRate = 16000

// maxBufferSamples bounds a recording at five minutes of 16 kHz audio.
// Older samples are dropped beyond that.
const maxBufferSamples = TargetSampleRate * 60 * 5

// ErrDeviceBusy is returned by Claim while another session is outstanding.
var ErrDeviceBusy = errors.New("audio device busy")

// ErrDeviceNotFound is returned when the selected input device does not exist.
var ErrDeviceNotFound = errors.New("audio device not found")

// ErrDeviceInitFailed is returned when the device exists but cannot be opened.
var ErrDeviceInitFailed = errors.New("audio device init failed")

// ErrStreamInterrupted annotates a Stop result when the device failed
// mid-recording. The samples captured before the failure are still returned.
var ErrStreamInterrupted = errors.New("audio stream interrupted")

// Device is an opened input device. Its native rate is known before Start,
// so the caller can build the processing chain first; no callback fires until
// Start. Close stops the stream and releases the device; after Close returns
// no more callbacks are delivered.
type Device interface {
	SampleRate() int
	Start(callback func(in []float32), onError func(error)) error
	Close() error
}

// Opener opens the input device named by selector (empty means the system
// default). The device is not streaming yet; the callback handed to Start
// receives mono float32 frames at the device's native rate and must not
// block. onError reports an asynchronous device failure; the stream is dead
// once it fires.
type Opener interface {
	Open(selector string) (Device, error)
}

// Coordinator serializes access to the input device. It never holds a
// reference to an active Session; ownership transfers to the caller of Claim
// and only an atomic liveness flag remains here.
type Coordinator struct {
	opener Opener
	busy   atomic.Bool
}

// NewCoordinator builds a Coordinator over the given device backend.
func NewCoordinator(opener Opener) *Coordinator {
	return &Coordinator{opener: opener}
}

// Claim opens the device and starts streaming into a new Session. Exactly one
// session can be live at a time; a second Claim before the first Stop returns
// ErrDeviceBusy. Claim is synchronous and does not retry.
func (c *Coordinator) Claim(selector string) (*Session, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrDeviceBusy
	}

	dev, err := c.opener.Open(selector)
	if err != nil {
		c.busy.Store(false)
		return nil, err
	}

	// The session must be fully assembled before Start: callbacks run on the
	// audio thread as soon as the stream is live.
	s := &Session{
		device:    dev,
		resampler: NewResampler(dev.SampleRate(), TargetSampleRate),
		release:   func() { c.busy.Store(false) },
		done:      make(chan struct{}),
		started:   time.Now(),
	}

	if err := dev.Start(s.push, s.fail); err != nil {
		if closeErr := dev.Close(); closeErr != nil {
			slog.Warn("close audio device after failed start", "error", closeErr)
		}
		c.busy.Store(false)
		return nil, fmt.Errorf("%w: %w", ErrDeviceInitFailed, err)
	}

	slog.Info("capture started", "device_rate", dev.SampleRate(), "selector", selector)
	return s, nil
}

// Busy reports whether a session is currently outstanding.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// Session is one recording from Claim to Stop. The caller owns it
// exclusively; methods other than Stop and Done are invoked only from the
// device callback.
type Session struct {
	device    Device
	resampler *Resampler
	release   func()
	started   time.Time

	mu      sync.Mutex
	samples []float32
	dropped int
	failed  error

	stopOnce sync.Once
	done     chan struct{}
}

// push is the device callback: resample the incoming frames and append. It
// takes the buffer mutex only for the append, never across a blocking call.
func (s *Session) push(in []float32) {
	out := s.resampler.Process(in)
	if len(out) == 0 {
		return
	}

	s.mu.Lock()
	s.samples = append(s.samples, out...)
	if over := len(s.samples) - maxBufferSamples; over > 0 {
		s.samples = s.samples[over:]
		s.dropped += over
	}
	s.mu.Unlock()
}

// fail records a mid-recording device error and closes Done. Safe to call
// from the backend's error path; first error wins.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.failed == nil {
		s.failed = err
		close(s.done)
	}
	s.mu.Unlock()
}

// Done is closed when the device fails mid-recording. The orchestrator uses
// it to force an early Stop; the partial buffer survives.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Duration returns how long the session has been recording.
func (s *Session) Duration() time.Duration {
	return time.Since(s.started)
}

// Stop closes the device, finalizes the buffer and releases the claim.
// Idempotent: later calls return the same buffer and error. When the stream
// was interrupted the captured samples are returned alongside
// ErrStreamInterrupted wrapping the device error.
func (s *Session) Stop() ([]float32, error) {
	s.stopOnce.Do(func() {
		if err := s.device.Close(); err != nil {
			slog.Warn("close audio device", "error", err)
		}

		s.mu.Lock()
		if s.failed != nil {
			s.failed = fmt.Errorf("%w: %w", ErrStreamInterrupted, s.failed)
		}
		if s.dropped > 0 {
			slog.Warn("recording exceeded buffer bound", "dropped_samples", s.dropped)
		}
		s.mu.Unlock()

		s.release()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples, s.failed
}
