package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const whisperSampleRate = 16000

// WhisperLocal transcribes through the whisper.cpp CLI. The model path is
// validated lazily on each call, so a model downloaded after startup is
// picked up without a restart.
type WhisperLocal struct {
	modelPath func() string
	binPath   string
}

// NewWhisperLocal builds a local engine. modelPath is re-read per call
// (usually wired to the live configuration); binPath overrides binary
// discovery when non-empty.
func NewWhisperLocal(modelPath func() string, binPath string) *WhisperLocal {
	return &WhisperLocal{modelPath: modelPath, binPath: binPath}
}

func (w *WhisperLocal) Name() string { return "whisper-local" }

// Validate checks that the model file and CLI binary exist. Used as a
// preflight before recording starts, so a misconfiguration surfaces before
// the user has spoken.
func (w *WhisperLocal) Validate() error {
	model := w.modelPath()
	if model == "" {
		return fmt.Errorf("%w: no model path configured", ErrModelNotFound)
	}
	if _, err := os.Stat(model); err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, model)
	}
	if w.resolveBinary() == "" {
		return fmt.Errorf("%w: whisper.cpp binary not installed", ErrModelNotFound)
	}
	return nil
}

// Transcribe writes the samples to a temp WAV file and runs whisper.cpp over
// it, parsing the JSON output.
func (w *WhisperLocal) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	audioPath := filepath.Join(os.TempDir(), fmt.Sprintf("murmur_%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(audioPath, EncodeWAV(samples, whisperSampleRate), 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	defer os.Remove(audioPath)

	args := []string{
		"-m", w.modelPath(),
		"-f", audioPath,
		"-oj", // JSON on stdout
		"--no-prints",
	}

	cmd := exec.CommandContext(ctx, w.resolveBinary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("whisper.cpp: %w, stderr: %s", err, stderr.String())
	}

	return parseWhisperOutput(stdout.Bytes())
}

// parseWhisperOutput joins the transcription segments of whisper.cpp's -oj
// output. Non-JSON output is taken as plain text.
func parseWhisperOutput(out []byte) (string, error) {
	var parsed struct {
		Transcription []struct {
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return string(out), nil
	}

	var text bytes.Buffer
	for _, seg := range parsed.Transcription {
		text.WriteString(seg.Text)
	}
	return text.String(), nil
}

// resolveBinary finds the whisper.cpp CLI: the configured override, then
// PATH, then common install locations.
func (w *WhisperLocal) resolveBinary() string {
	if w.binPath != "" {
		return w.binPath
	}

	// whisper-cli is the Homebrew name; main the build-from-source one.
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	if runtime.GOOS == "darwin" {
		execPath, _ := os.Executable()
		bundlePath := filepath.Join(filepath.Dir(execPath), "..", "Resources", "whisper-cpp")
		if _, err := os.Stat(bundlePath); err == nil {
			return bundlePath
		}
	}

	return ""
}
