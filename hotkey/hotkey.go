// Package hotkey listens for the global record toggle.
package hotkey

import (
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// repeatWindow collapses key auto-repeat: chord events closer together than
// this deliver a single logical toggle.
const repeatWindow = 300 * time.Millisecond

// DefaultChord is the record toggle.
var DefaultChord = []string{"ctrl", "shift", "space"}

// Listener owns the OS keyboard hook and invokes the toggle callback once
// per physical chord press.
type Listener struct {
	onToggle func()
	gate     *repeatGate

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewListener builds a listener; onToggle runs on the hook goroutine and
// must not block.
func NewListener(onToggle func()) *Listener {
	return &Listener{
		onToggle: onToggle,
		gate:     newRepeatGate(repeatWindow),
	}
}

// Start registers the chord and begins processing OS events on a background
// goroutine.
func (l *Listener) Start() {
	l.startOnce.Do(func() {
		hook.Register(hook.KeyDown, DefaultChord, func(hook.Event) {
			if l.gate.allow(time.Now()) {
				l.onToggle()
			}
		})

		go func() {
			slog.Info("hotkey listener started", "chord", DefaultChord)
			s := hook.Start()
			<-hook.Process(s)
			slog.Info("hotkey listener stopped")
		}()
	})
}

// Stop unhooks from the OS. Idempotent.
func (l *Listener) Stop() {
	l.stopOnce.Do(hook.End)
}

// repeatGate admits at most one event per window.
type repeatGate struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
}

func newRepeatGate(window time.Duration) *repeatGate {
	return &repeatGate{window: window}
}

func (g *repeatGate) allow(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.last.IsZero() && now.Sub(g.last) < g.window {
		return false
	}
	g.last = now
	return true
}
