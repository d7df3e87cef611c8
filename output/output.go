// Package output delivers transcribed text to the user: always into the
// clipboard, optionally pasted into the focused window.
package output

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// clipboardSettleDelay gives the window system time to observe the new
// clipboard contents before the paste keystroke fires.
const clipboardSettleDelay = 50 * time.Millisecond

// ErrClipboard is returned when the clipboard write fails.
var ErrClipboard = errors.New("clipboard write failed")

// ErrPaste is returned when the paste keystroke fails. The clipboard is
// already populated when this happens.
var ErrPaste = errors.New("paste simulation failed")

// Handler writes text to the clipboard and optionally simulates a paste.
type Handler struct {
	autoPaste bool

	// Injectable for tests.
	writeClipboard func(string) error
	paste          func() error
	sleep          func(time.Duration)
}

// NewHandler builds a delivery handler. With autoPaste the text is also
// pasted into the focused window after a short settle delay.
func NewHandler(autoPaste bool) *Handler {
	return &Handler{
		autoPaste:      autoPaste,
		writeClipboard: clipboard.WriteAll,
		paste:          simulatePaste,
		sleep:          time.Sleep,
	}
}

// Deliver places text into the clipboard and, when enabled, pastes it. A
// paste failure leaves the clipboard populated and is reported, never
// retried.
func (h *Handler) Deliver(text string) error {
	if err := h.writeClipboard(text); err != nil {
		return fmt.Errorf("%w: %w", ErrClipboard, err)
	}
	slog.Debug("clipboard updated", "chars", len(text))

	if !h.autoPaste {
		return nil
	}

	h.sleep(clipboardSettleDelay)
	if err := h.paste(); err != nil {
		return fmt.Errorf("%w: %w", ErrPaste, err)
	}
	return nil
}

// simulatePaste sends the platform paste chord to the focused window.
func simulatePaste() error {
	return robotgo.KeyTap("v", pasteModifier())
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
