// Package app runs the background recording loop: hotkey toggles drive the
// Idle -> Recording -> Transcribing state machine, and every device or
// inference failure is recovered here so the tray always returns to Idle.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"murmur/audiocapture"
	"murmur/stt"
	"murmur/tray"
)

// CaptureSession is one live recording, owned by the orchestrator between
// claim and stop.
type CaptureSession interface {
	Stop() ([]float32, error)
	Done() <-chan struct{}
	Duration() time.Duration
}

// AudioClaimer hands out exclusive capture sessions.
type AudioClaimer interface {
	Claim(selector string) (CaptureSession, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Output delivers transcribed text to the user.
type Output interface {
	Deliver(text string) error
}

// Notifier surfaces recoverable problems to the user.
type Notifier interface {
	Warn(message string)
}

// Orchestrator owns the background context. It consumes hotkey toggles and
// produces tray commands; nothing below this boundary can take the process
// down.
type Orchestrator struct {
	claimer     AudioClaimer
	transcriber Transcriber
	output      Output
	notifier    Notifier

	commands chan tray.Command
	toggles  <-chan struct{}

	device    string
	preflight func() error // engine validation before each claim, may be nil
}

// Config wires an Orchestrator.
type Config struct {
	Claimer     AudioClaimer
	Transcriber Transcriber
	Output      Output
	Notifier    Notifier
	Commands    chan tray.Command
	Toggles     <-chan struct{}
	Device      string
	Preflight   func() error
}

// New builds an orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		claimer:     cfg.Claimer,
		transcriber: cfg.Transcriber,
		output:      cfg.Output,
		notifier:    cfg.Notifier,
		commands:    cfg.Commands,
		toggles:     cfg.Toggles,
		device:      cfg.Device,
		preflight:   cfg.Preflight,
	}
}

// Run processes toggle events until the context is cancelled or the toggle
// channel closes. On exit the tray is returned to Idle, told to shut down,
// and the command channel is closed.
func (o *Orchestrator) Run(ctx context.Context) {
	defer func() {
		o.send(tray.SetState(tray.StateIdle))
		o.send(tray.Shutdown())
		close(o.commands)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-o.toggles:
			if !ok {
				return
			}
			o.episode(ctx)
			o.drainToggles()
		}
	}
}

// episode runs one recording from claim to delivery. Every failure path
// ends with the tray back in Idle.
func (o *Orchestrator) episode(ctx context.Context) {
	session := uuid.NewString()
	log := slog.With("session", session)

	if o.preflight != nil {
		if err := o.preflight(); err != nil {
			log.Error("preflight failed", "error", err)
			o.notifier.Warn("Transcription engine not ready: " + err.Error())
			return
		}
	}

	sess, err := o.claimer.Claim(o.device)
	if err != nil {
		log.Error("claim audio device", "error", err)
		switch {
		case errors.Is(err, audiocapture.ErrDeviceBusy):
			o.notifier.Warn("Microphone is busy")
		case errors.Is(err, audiocapture.ErrDeviceNotFound):
			o.notifier.Warn("Microphone not found")
		default:
			o.notifier.Warn("Could not start recording")
		}
		return
	}

	o.send(tray.SetState(tray.StateRecording))
	log.Info("recording started")

	interrupted := false
	select {
	case <-ctx.Done():
		// Shutdown mid-recording: release the device and bail out. The
		// deferred Idle+Shutdown in Run covers the tray.
		if _, err := sess.Stop(); err != nil {
			log.Warn("stop recording on shutdown", "error", err)
		}
		return
	case _, ok := <-o.toggles:
		if !ok {
			if _, err := sess.Stop(); err != nil {
				log.Warn("stop recording on shutdown", "error", err)
			}
			return
		}
	case <-sess.Done():
		interrupted = true
	}

	o.send(tray.SetState(tray.StateProcessing))
	defer o.send(tray.SetState(tray.StateIdle))

	duration := sess.Duration()
	samples, err := sess.Stop()
	if err != nil {
		if !errors.Is(err, audiocapture.ErrStreamInterrupted) {
			log.Error("stop recording", "error", err)
			o.notifier.Warn("Recording failed")
			return
		}
		// Device died mid-recording; transcribe what was captured.
		log.Warn("recording interrupted, keeping partial audio",
			"error", err, "samples", len(samples), "interrupted", interrupted)
	}
	log.Info("recording stopped", "duration", duration, "samples", len(samples))

	text, err := o.transcriber.Transcribe(ctx, samples)
	if err != nil {
		if errors.Is(err, stt.ErrEmptyInput) {
			log.Info("nothing to transcribe")
			return
		}
		if ctx.Err() != nil {
			// Shutdown aborted the inference; not an error worth a
			// notification.
			log.Info("transcription aborted by shutdown", "error", err)
			return
		}
		log.Error("transcribe", "error", err)
		o.notifier.Warn("Transcription failed")
		return
	}

	if err := o.output.Deliver(text); err != nil {
		log.Error("deliver text", "error", err)
		o.notifier.Warn("Could not deliver transcription")
		return
	}
	log.Info("transcription delivered", "chars", len(text))
}

// drainToggles discards toggle events queued while transcribing, so a
// phantom press does not immediately start a new recording.
func (o *Orchestrator) drainToggles() {
	for {
		select {
		case _, ok := <-o.toggles:
			if !ok {
				return
			}
			slog.Debug("discarded queued toggle")
		default:
			return
		}
	}
}

// send delivers a tray command without blocking the state machine. The
// channel is buffered; if it is somehow full the send blocks after logging
// rather than dropping a state change.
func (o *Orchestrator) send(cmd tray.Command) {
	select {
	case o.commands <- cmd:
	default:
		slog.Error("tray command channel full", "kind", cmd.Kind, "state", cmd.State)
		o.commands <- cmd
	}
}
