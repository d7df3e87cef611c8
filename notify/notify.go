// Package notify surfaces recoverable problems to the user through desktop
// notifications.
package notify

import (
	"log/slog"

	"github.com/gen2brain/beeep"
)

const appTitle = "Murmur"

// Desktop sends system notifications. The zero value is usable.
type Desktop struct{}

// Warn shows a notification for a recoverable error. A notification failure
// is only logged; the application never depends on delivery.
func (Desktop) Warn(message string) {
	if err := beeep.Notify(appTitle, message, ""); err != nil {
		slog.Warn("desktop notification failed", "error", err, "message", message)
	}
}
