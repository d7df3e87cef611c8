// Package stt turns recorded audio into text. An Engine is the model
// boundary (PCM in, text out); the Transcriber wraps one with the input
// gating and error mapping the rest of the application relies on.
package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// ErrEmptyInput is returned for zero-length or effectively silent recordings.
// The engine is not invoked.
var ErrEmptyInput = errors.New("no speech in recording")

// ErrModelNotFound is returned when the configured model cannot be located.
var ErrModelNotFound = errors.New("transcription model not found")

// ErrInferenceFailed wraps any engine failure during transcription.
var ErrInferenceFailed = errors.New("transcription failed")

// silenceRMS is the energy floor below which a buffer counts as silence.
const silenceRMS = 0.005

// Engine runs speech-to-text inference on a finished recording. Samples are
// mono float32 PCM at 16 kHz.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32) (string, error)
}

// Transcriber gates input and normalizes engine errors. Empty or silent
// buffers short-circuit with ErrEmptyInput; engine errors surface as
// ErrInferenceFailed unless they already carry a sentinel.
type Transcriber struct {
	engine Engine
}

// NewTranscriber wraps an engine.
func NewTranscriber(engine Engine) *Transcriber {
	return &Transcriber{engine: engine}
}

// Transcribe runs one inference. The returned text is whitespace-trimmed;
// an all-whitespace result maps to ErrEmptyInput.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrEmptyInput
	}
	if rms(samples) < silenceRMS {
		slog.Debug("recording below energy threshold", "samples", len(samples))
		return "", ErrEmptyInput
	}

	start := time.Now()
	text, err := t.engine.Transcribe(ctx, samples)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) || errors.Is(err, ErrEmptyInput) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", ErrInferenceFailed, t.engine.Name(), err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}

	slog.Info("transcription complete",
		"engine", t.engine.Name(),
		"duration", time.Since(start),
		"chars", len(text))
	return text, nil
}

// rms computes root-mean-square energy of the buffer.
func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
