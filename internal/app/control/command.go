package control

import (
	"strings"
	"unicode"
)

// Command is an action bound to a key.
type Command int

const (
	CommandNone Command = iota
	CommandQuit
	CommandTogglePause
	CommandRestart
	CommandFullscreen
	CommandNext
	CommandPrevious
	CommandLoopCycle
	CommandVolumeCycle
	CommandMinimize
)

// ctrlC arrives as a plain byte while the terminal is in raw mode.
const ctrlC = '\x03'

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandQuit:
		return "quit"
	case CommandTogglePause:
		return "toggle_pause"
	case CommandRestart:
		return "restart"
	case CommandFullscreen:
		return "fullscreen"
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	case CommandLoopCycle:
		return "loop_cycle"
	case CommandVolumeCycle:
		return "volume_cycle"
	case CommandMinimize:
		return "minimize"
	default:
		return "unknown"
	}
}

type binding struct {
	keys    string
	label   string
	help    string
	command Command
}

var bindings = []binding{
	{keys: "q", label: "q", help: "Quit", command: CommandQuit},
	{keys: "p ", label: "p/' '", help: "Play/Pause", command: CommandTogglePause},
	{keys: "r", label: "r", help: "Restart Video", command: CommandRestart},
	{keys: "f", label: "f", help: "Toggle Full Screen", command: CommandFullscreen},
	{keys: "n", label: "n", help: "Next Video", command: CommandNext},
	{keys: "b", label: "b", help: "Previous Video", command: CommandPrevious},
	{keys: "l", label: "l", help: "Toggle Loop Mode", command: CommandLoopCycle},
	{keys: "v", label: "v", help: "Cycle Volume", command: CommandVolumeCycle},
	{keys: "m", label: "m", help: "Minimize/Restore", command: CommandMinimize},
}

// Lookup returns the command bound to key. Letters are case-insensitive.
func Lookup(key rune) Command {
	if key == ctrlC {
		return CommandQuit
	}
	key = unicode.ToLower(key)
	for _, b := range bindings {
		if strings.ContainsRune(b.keys, key) {
			return b.command
		}
	}
	return CommandNone
}

// HelpLine returns the one-line key reference.
func HelpLine() string {
	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = "[" + b.label + "]: " + b.help
	}
	return strings.Join(parts, " ")
}
