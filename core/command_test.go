package core

import (
	"testing"

	"touchsense/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	registry.Register(protocol.CmdStopTouch, "", handler)

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand(protocol.CmdStopTouch)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Name != "stop_touch" {
		t.Errorf("Expected command name 'stop_touch', got '%s'", cmd.Name)
	}

	// Test dispatch
	var data []byte
	if err := registry.Dispatch(protocol.CmdStopTouch, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	// Test unknown command
	if err := registry.Dispatch(999, &data); err != protocol.ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand, got %v", err)
	}
}

func TestCommandRegistryResponsesAreNotDispatched(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register(protocol.RspTouchState, "pin=%c group=%c count=%hu clock=%u", nil)

	var data []byte
	if err := registry.Dispatch(protocol.RspTouchState, &data); err != protocol.ErrUnknownCommand {
		t.Errorf("Expected ErrUnknownCommand for a response, got %v", err)
	}
}

func TestCommandRegistryByName(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register(protocol.CmdConfigChannel, "pin=%c", func(data *[]byte) error { return nil })
	registry.Register(200, "", func(data *[]byte) error { return nil })

	cmd, ok := registry.GetCommandByName("config_channel")
	if !ok || cmd.ID != protocol.CmdConfigChannel {
		t.Errorf("Expected config_channel to resolve to %d", protocol.CmdConfigChannel)
	}
	if _, ok := registry.GetCommandByName("msg_200"); !ok {
		t.Error("Expected unnamed message to be registered as msg_200")
	}
	if registry.Count() != 2 {
		t.Errorf("Expected 2 commands, got %d", registry.Count())
	}
}

func TestInitTouchCommands(t *testing.T) {
	globalRegistry = NewCommandRegistry()
	InitTouchCommands()

	names := []string{
		"config_tsc", "config_sample", "config_channel", "disable_channel",
		"query_touch", "acquire_touch", "stop_touch", "listen_touch",
		"touch_state", "touch_error", "touch_config",
	}
	if globalRegistry.Count() != len(names) {
		t.Errorf("Expected %d messages, got %d", len(names), globalRegistry.Count())
	}
	for _, name := range names {
		if _, ok := globalRegistry.GetCommandByName(name); !ok {
			t.Errorf("Command %s not registered", name)
		}
	}
}

func TestMessagesSplitAndSorted(t *testing.T) {
	registry := NewCommandRegistry()
	noop := func(*[]byte) error { return nil }
	registry.Register(protocol.CmdStopTouch, "", noop)
	registry.Register(protocol.RspTouchError, "pin=%c code=%c", nil)
	registry.Register(protocol.CmdConfigTSC, "prescaler=%c", noop)
	registry.Register(protocol.RspTouchState, "pin=%c", nil)

	commands, responses := registry.Messages()
	if len(commands) != 2 || commands[0].ID != protocol.CmdConfigTSC || commands[1].ID != protocol.CmdStopTouch {
		t.Errorf("Unexpected commands %+v", commands)
	}
	if len(responses) != 2 || responses[0].ID != protocol.RspTouchState {
		t.Errorf("Unexpected responses %+v", responses)
	}
}
