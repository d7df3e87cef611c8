package tray

import (
	"log/slog"
	"time"
)

// DefaultInterval is the wall-clock spacing between animation frames.
const DefaultInterval = 450 * time.Millisecond

// RenderFunc pushes one frame to the real tray icon. It runs on the driver
// goroutine only.
type RenderFunc func(icon []byte, tooltip string)

// animator is the {inactive, active} timer state machine. It is pure state:
// the driver feeds it commands and deadline wakeups, it answers with the
// frame to render and whether a deadline is armed. Owned exclusively by the
// driver goroutine.
type animator struct {
	frames   *FrameSet
	interval time.Duration

	state    IconState
	frame    int
	deadline time.Time // zero while inactive
}

func newAnimator(frames *FrameSet, interval time.Duration) *animator {
	return &animator{frames: frames, interval: interval, state: StateIdle}
}

// animating reports whether a frame deadline is armed. False in Idle: the
// driver then waits on the channel alone and schedules zero wakeups.
func (a *animator) animating() bool {
	return !a.deadline.IsZero()
}

// setState applies a SetState command at time now and returns the frame to
// render. Re-applying the current animated state does not reset the cycle.
func (a *animator) setState(s IconState, now time.Time) []byte {
	if s == a.state && a.animating() {
		return a.frames.Frames(a.state)[a.frame]
	}

	a.state = s
	a.frame = 0
	if s == StateIdle {
		a.deadline = time.Time{}
	} else {
		a.deadline = now.Add(a.interval)
	}
	return a.frames.Frames(s)[0]
}

// tick advances to the next frame after a deadline fired and re-arms the
// deadline relative to now.
func (a *animator) tick(now time.Time) []byte {
	seq := a.frames.Frames(a.state)
	a.frame = (a.frame + 1) % len(seq)
	a.deadline = now.Add(a.interval)
	return seq[a.frame]
}

// Driver consumes tray commands and animates the icon. Run is the only place
// tray state is mutated; everything else communicates through the command
// channel.
type Driver struct {
	frames   *FrameSet
	interval time.Duration
	commands <-chan Command
	render   RenderFunc
}

// NewDriver builds a driver over the given command channel. The render
// function is called once per frame change, never concurrently.
func NewDriver(frames *FrameSet, commands <-chan Command, render RenderFunc) *Driver {
	return &Driver{
		frames:   frames,
		interval: DefaultInterval,
		commands: commands,
		render:   render,
	}
}

// SetInterval overrides the frame interval. Call before Run.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval > 0 {
		d.interval = interval
	}
}

// Run processes commands until Shutdown arrives or the channel closes. A
// closed channel is treated as an implicit shutdown, not an error.
//
// The loop has exactly one suspension point per iteration: while animating
// it waits for the earlier of the next command and the next frame deadline;
// while idle it blocks on the channel with no timer armed.
func (d *Driver) Run() {
	anim := newAnimator(d.frames, d.interval)
	d.render(d.frames.Frames(StateIdle)[0], d.frames.Tooltip(StateIdle))

	timer := time.NewTimer(d.interval)
	stopTimer(timer)
	defer stopTimer(timer)

	for {
		if anim.animating() {
			select {
			case cmd, ok := <-d.commands:
				stopTimer(timer)
				if !d.apply(anim, cmd, ok, timer) {
					return
				}
			case now := <-timer.C:
				icon := anim.tick(now)
				d.render(icon, d.frames.Tooltip(anim.state))
				timer.Reset(d.interval)
			}
		} else {
			cmd, ok := <-d.commands
			if !d.apply(anim, cmd, ok, timer) {
				return
			}
		}
	}
}

// apply handles one command. Returns false when the loop should exit.
func (d *Driver) apply(anim *animator, cmd Command, ok bool, timer *time.Timer) bool {
	if !ok || cmd.Kind == CommandShutdown {
		slog.Info("tray driver stopping")
		return false
	}

	icon := anim.setState(cmd.State, time.Now())
	d.render(icon, d.frames.Tooltip(anim.state))

	// Re-applying the current animated state keeps its original deadline, so
	// re-arm with the remaining time rather than a full interval.
	if anim.animating() {
		timer.Reset(time.Until(anim.deadline))
	}
	return true
}

// stopTimer drains the timer so a later Reset starts clean.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
