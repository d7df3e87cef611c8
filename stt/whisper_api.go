package stt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// WhisperAPI transcribes through OpenAI's hosted Whisper, for users without
// a local model.
type WhisperAPI struct {
	client openai.Client
	model  openai.AudioModel
}

// NewWhisperAPI builds a hosted engine. model defaults to whisper-1.
func NewWhisperAPI(apiKey, model string) *WhisperAPI {
	audioModel := openai.AudioModelWhisper1
	if model != "" {
		audioModel = openai.AudioModel(model)
	}
	return &WhisperAPI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  audioModel,
	}
}

func (w *WhisperAPI) Name() string { return "whisper-api" }

// Transcribe uploads the recording as a WAV file and returns the text.
func (w *WhisperAPI) Transcribe(ctx context.Context, samples []float32) (string, error) {
	wav := EncodeWAV(samples, whisperSampleRate)

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: w.model,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return resp.Text, nil
}
