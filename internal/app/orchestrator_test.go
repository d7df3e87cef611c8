package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"murmur/audiocapture"
	"murmur/stt"
	"murmur/tray"
)

type fakeSession struct {
	samples []float32
	stopErr error
	done    chan struct{}

	mu      sync.Mutex
	stopped int
}

func newFakeSession(samples []float32) *fakeSession {
	return &fakeSession{samples: samples, done: make(chan struct{})}
}

func (s *fakeSession) Stop() ([]float32, error) {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
	return s.samples, s.stopErr
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) Duration() time.Duration { return time.Second }

func (s *fakeSession) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeClaimer struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeSession
	next     *fakeSession
}

func (c *fakeClaimer) Claim(string) (CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := c.next
	if s == nil {
		s = newFakeSession([]float32{0.5})
	}
	c.next = nil
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeClaimer) claimCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

type fakeTranscriber struct {
	text string
	err  error
	gate chan struct{} // when non-nil, Transcribe blocks until closed

	mu  sync.Mutex
	got [][]float32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	f.got = append(f.got, samples)
	f.mu.Unlock()
	return f.text, f.err
}

type fakeOutput struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeOutput) Deliver(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeOutput) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	warns []string
}

func (f *fakeNotifier) Warn(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warns = append(f.warns, msg)
}

func (f *fakeNotifier) warned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.warns)
}

type harness struct {
	claimer     *fakeClaimer
	transcriber *fakeTranscriber
	output      *fakeOutput
	notifier    *fakeNotifier
	commands    chan tray.Command
	toggles     chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc
}

func startOrchestrator(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		claimer:     &fakeClaimer{},
		transcriber: &fakeTranscriber{text: "hello world"},
		output:      &fakeOutput{},
		notifier:    &fakeNotifier{},
		commands:    make(chan tray.Command, 32),
		toggles:     make(chan struct{}, 8),
		done:        make(chan struct{}),
	}

	cfg := Config{
		Claimer:     h.claimer,
		Transcriber: h.transcriber,
		Output:      h.output,
		Notifier:    h.notifier,
		Commands:    h.commands,
		Toggles:     h.toggles,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	o := New(cfg)
	go func() {
		defer close(h.done)
		o.Run(ctx)
	}()
	return h
}

func (h *harness) expectCommand(t *testing.T, want tray.Command) {
	t.Helper()
	select {
	case got, ok := <-h.commands:
		if !ok {
			t.Fatalf("command channel closed, want %+v", want)
		}
		if got != want {
			t.Fatalf("command = %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %+v", want)
	}
}

func (h *harness) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case cmd, ok := <-h.commands:
		if ok {
			t.Fatalf("unexpected command %+v, want closed channel", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command channel close")
	}
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not exit")
	}
}

func TestEpisodeEndToEnd(t *testing.T) {
	h := startOrchestrator(t, nil)

	h.toggles <- struct{}{} // start recording
	h.expectCommand(t, tray.SetState(tray.StateRecording))

	h.toggles <- struct{}{} // stop
	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	if got := h.output.delivered(); len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("delivered = %v, want [hello world]", got)
	}

	h.cancel()
	h.waitDone(t)
	h.expectCommand(t, tray.SetState(tray.StateIdle))
	h.expectCommand(t, tray.Shutdown())
	h.expectClosed(t)
}

func TestClaimBusyStaysIdle(t *testing.T) {
	h := startOrchestrator(t, nil)
	h.claimer.err = audiocapture.ErrDeviceBusy

	h.toggles <- struct{}{}

	// Recovery: the device frees up and the next toggle records normally.
	for h.notifier.warned() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	h.claimer.mu.Lock()
	h.claimer.err = nil
	h.claimer.mu.Unlock()

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))
}

func TestPreflightFailureStaysIdle(t *testing.T) {
	h := startOrchestrator(t, func(cfg *Config) {
		cfg.Preflight = func() error { return stt.ErrModelNotFound }
	})

	h.toggles <- struct{}{}
	for h.notifier.warned() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if h.claimer.claimCount() != 0 {
		t.Fatal("device claimed despite failed preflight")
	}
}

func TestInferenceFailureReturnsIdle(t *testing.T) {
	h := startOrchestrator(t, nil)
	h.transcriber.err = stt.ErrInferenceFailed

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	if len(h.output.delivered()) != 0 {
		t.Fatal("text delivered despite inference failure")
	}
	if h.notifier.warned() == 0 {
		t.Fatal("inference failure not notified")
	}
}

func TestEmptyInputIsSilent(t *testing.T) {
	h := startOrchestrator(t, nil)
	h.transcriber.err = stt.ErrEmptyInput

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	if h.notifier.warned() != 0 {
		t.Fatal("empty input should not notify")
	}
}

func TestInterruptedStreamTranscribesPartialAudio(t *testing.T) {
	sess := newFakeSession([]float32{0.1, 0.2})
	sess.stopErr = audiocapture.ErrStreamInterrupted

	h := startOrchestrator(t, nil)
	h.claimer.next = sess

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))

	close(sess.done) // device dies mid-recording

	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	if got := h.output.delivered(); len(got) != 1 {
		t.Fatalf("delivered = %v, want the partial transcription", got)
	}
}

func TestShutdownMidRecordingReleasesSession(t *testing.T) {
	sess := newFakeSession(nil)

	h := startOrchestrator(t, nil)
	h.claimer.next = sess

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))

	h.cancel()
	h.waitDone(t)

	if sess.stopCount() == 0 {
		t.Fatal("session not stopped on shutdown")
	}
	h.expectCommand(t, tray.SetState(tray.StateIdle))
	h.expectCommand(t, tray.Shutdown())
	h.expectClosed(t)
}

func TestQueuedTogglesDrainedAfterEpisode(t *testing.T) {
	gate := make(chan struct{})
	h := startOrchestrator(t, nil)
	h.transcriber.gate = gate

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))

	// Phantom presses queued while transcribing.
	h.toggles <- struct{}{}
	h.toggles <- struct{}{}

	close(gate)
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	// The queued toggles were drained: no new recording starts.
	select {
	case cmd := <-h.commands:
		t.Fatalf("unexpected command after drain: %+v", cmd)
	case <-time.After(200 * time.Millisecond):
	}
	if h.claimer.claimCount() != 1 {
		t.Fatalf("claims = %d, want 1", h.claimer.claimCount())
	}
}

func TestShutdownMidTranscribeDoesNotNotify(t *testing.T) {
	gate := make(chan struct{})
	h := startOrchestrator(t, nil)
	h.transcriber.gate = gate

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))

	// Exit while inference is in flight: the aborted transcription is part
	// of a clean shutdown, not an error to surface.
	h.cancel()
	h.waitDone(t)

	if got := h.notifier.warned(); got != 0 {
		t.Fatalf("warns = %d, want 0 for shutdown mid-transcription", got)
	}
	if len(h.output.delivered()) != 0 {
		t.Fatal("text delivered from an aborted transcription")
	}
	h.expectCommand(t, tray.SetState(tray.StateIdle)) // episode cleanup
	h.expectCommand(t, tray.SetState(tray.StateIdle)) // shutdown path
	h.expectCommand(t, tray.Shutdown())
	h.expectClosed(t)
}

func TestDeliveryFailureNotifies(t *testing.T) {
	h := startOrchestrator(t, nil)
	h.output.err = errors.New("clipboard gone")

	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateRecording))
	h.toggles <- struct{}{}
	h.expectCommand(t, tray.SetState(tray.StateProcessing))
	h.expectCommand(t, tray.SetState(tray.StateIdle))

	if h.notifier.warned() == 0 {
		t.Fatal("delivery failure not notified")
	}
}
