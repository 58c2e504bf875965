package core

import (
	"sync"

	"touchsense/protocol"
)

// CommandHandler is a function that handles a command with raw frame data
// The handler is responsible for decoding its own arguments from the data pointer
type CommandHandler func(data *[]byte) error

// Command is a message the firmware knows about. Responses (firmware to
// host) have a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument format, e.g. "pin=%c"
	Handler CommandHandler
}

// CommandRegistry holds all registered commands
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*Command
	nameToID map[string]uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a command handler in the global registry
func RegisterCommand(id uint16, format string, handler CommandHandler) {
	globalRegistry.Register(id, format, handler)
	globalDictionary.Invalidate()
}

// RegisterResponse registers a response message (MCU -> Host)
func RegisterResponse(id uint16, format string) {
	globalRegistry.Register(id, format, nil)
	globalDictionary.Invalidate()
}

// Register adds a command under its fixed message ID. Registering an ID
// again replaces the previous entry.
func (r *CommandRegistry) Register(id uint16, format string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := protocol.MessageName(id)
	if name == "" {
		name = "msg_" + utoa(uint32(id))
	}
	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the appropriate command handler. Unknown IDs and
// responses sent to the firmware fail with protocol.ErrUnknownCommand.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return protocol.ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// DispatchCommand is a convenience function using the global registry.
// Its signature matches protocol.CommandHandler.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

// Messages returns the registered commands and responses, each ordered
// by ID.
func (r *CommandRegistry) Messages() (commands, responses []*Command) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cmd := range r.commands {
		if cmd.Handler != nil {
			commands = append(commands, cmd)
		} else {
			responses = append(responses, cmd)
		}
	}
	sortByID(commands)
	sortByID(responses)
	return commands, responses
}

func sortByID(cmds []*Command) {
	for i := 1; i < len(cmds); i++ {
		for j := i; j > 0 && cmds[j].ID < cmds[j-1].ID; j-- {
			cmds[j], cmds[j-1] = cmds[j-1], cmds[j]
		}
	}
}
