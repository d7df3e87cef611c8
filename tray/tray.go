// Package tray drives the system tray icon. A single goroutine owns the icon
// and mutates it only in response to commands arriving on a channel, so the
// rest of the application never touches UI state directly.
package tray

// IconState identifies which frame set the tray icon shows.
type IconState int

const (
	// StateIdle shows the static ready icon.
	StateIdle IconState = iota
	// StateRecording cycles the recording frames.
	StateRecording
	// StateProcessing cycles the transcribing frames.
	StateProcessing
)

func (s IconState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	}
	return "unknown"
}

// CommandKind discriminates tray commands.
type CommandKind int

const (
	// CommandSetState switches the icon to a new state.
	CommandSetState CommandKind = iota
	// CommandShutdown ends the driver loop and releases tray resources.
	CommandShutdown
)

// Command is a message from the background orchestrator to the tray driver.
// Commands are delivered in send order and applied one at a time; none are
// coalesced or dropped.
type Command struct {
	Kind  CommandKind
	State IconState
}

// SetState builds a state-change command.
func SetState(s IconState) Command {
	return Command{Kind: CommandSetState, State: s}
}

// Shutdown builds the terminal command.
func Shutdown() Command {
	return Command{Kind: CommandShutdown}
}
