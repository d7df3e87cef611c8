package tray

import (
	"bytes"
	"embed"
	"fmt"
	"image/png"
)

//go:embed icons/*.png
var iconFS embed.FS

// FrameSet holds the pre-decoded icon frames for every tray state. Frames are
// loaded once at startup and read-only afterwards; rendering never touches
// the filesystem.
type FrameSet struct {
	idle       []byte
	recording  [][]byte
	processing [][]byte
}

// LoadFrames reads the embedded icon frames and validates that each one is a
// decodable PNG. Idle has exactly one static frame; Recording and Processing
// carry equal-length animated sequences.
func LoadFrames() (*FrameSet, error) {
	idle, err := loadFrame("icons/idle.png")
	if err != nil {
		return nil, err
	}

	const animFrames = 3
	fs := &FrameSet{idle: idle}
	for i := 0; i < animFrames; i++ {
		f, err := loadFrame(fmt.Sprintf("icons/recording_%d.png", i))
		if err != nil {
			return nil, err
		}
		fs.recording = append(fs.recording, f)

		f, err = loadFrame(fmt.Sprintf("icons/processing_%d.png", i))
		if err != nil {
			return nil, err
		}
		fs.processing = append(fs.processing, f)
	}

	return fs, nil
}

func loadFrame(name string) ([]byte, error) {
	data, err := iconFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read icon %s: %w", name, err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("decode icon %s: %w", name, err)
	}
	return data, nil
}

// Frames returns the frame sequence for a state. Idle always has length 1.
func (f *FrameSet) Frames(s IconState) [][]byte {
	switch s {
	case StateRecording:
		return f.recording
	case StateProcessing:
		return f.processing
	default:
		return [][]byte{f.idle}
	}
}

// Tooltip returns the hover text for a state.
func (f *FrameSet) Tooltip(s IconState) string {
	switch s {
	case StateRecording:
		return "Murmur - Recording..."
	case StateProcessing:
		return "Murmur - Transcribing..."
	default:
		return "Murmur - Ready"
	}
}
