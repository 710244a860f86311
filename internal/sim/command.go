package sim

// Command is a player input applied at the start of the next tick
type Command uint8

const (
	CmdMoveLeft Command = iota
	CmdMoveRight
	CmdSoftDrop
	CmdHardDrop
	CmdRotateCW
	CmdRotateCCW
)

var commandNames = [...]string{
	CmdMoveLeft:  "left",
	CmdMoveRight: "right",
	CmdSoftDrop:  "soft_drop",
	CmdHardDrop:  "hard_drop",
	CmdRotateCW:  "rotate_cw",
	CmdRotateCCW: "rotate_ccw",
}

func (c Command) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	return "unknown"
}

// ParseCommand maps a wire name to a command
func ParseCommand(s string) (Command, bool) {
	for i, name := range commandNames {
		if name == s {
			return Command(i), true
		}
	}
	return 0, false
}

// maxPending caps buffered input between ticks
const maxPending = 32
