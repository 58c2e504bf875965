package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"touchsense/protocol"
	"touchsense/tsc"
)

type dictionaryJSON struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

func initDictionary(t *testing.T) {
	t.Helper()
	globalRegistry = NewCommandRegistry()
	globalDictionary = &Dictionary{}
	InitTouchCommands()
	InitIdentifyCommands()
	RegisterConstant("MCU", "test")
}

func inflate(t *testing.T, data []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Dictionary is not a zlib stream: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return out
}

func TestDictionaryContents(t *testing.T) {
	initDictionary(t)

	var dict dictionaryJSON
	raw := globalDictionary.JSON(globalRegistry)
	if err := json.Unmarshal(raw, &dict); err != nil {
		t.Fatalf("Invalid JSON: %v\n%s", err, raw)
	}

	if dict.Version != FirmwareVersion {
		t.Errorf("Expected version %s, got %s", FirmwareVersion, dict.Version)
	}
	if dict.Config["MCU"] != "test" || dict.Config["CLOCK_FREQ"] != "1000000" {
		t.Errorf("Unexpected config %v", dict.Config)
	}
	if id := dict.Commands["config_tsc prescaler=%c max_count=%c ctph=%c ctpl=%c"]; id != int(protocol.CmdConfigTSC) {
		t.Errorf("Expected config_tsc at %d, got %d", protocol.CmdConfigTSC, id)
	}
	if id, ok := dict.Commands["acquire_touch"]; !ok || id != int(protocol.CmdAcquireTouch) {
		t.Errorf("Expected argumentless acquire_touch, got %v", dict.Commands)
	}
	if id := dict.Responses["touch_state pin=%c group=%c count=%hu clock=%u"]; id != int(protocol.RspTouchState) {
		t.Errorf("Expected touch_state at %#x, got %#x", protocol.RspTouchState, id)
	}
	if len(dict.Commands) != 9 || len(dict.Responses) != 4 {
		t.Errorf("Expected 9 commands and 4 responses, got %d and %d", len(dict.Commands), len(dict.Responses))
	}

	pins := dict.Enumerations["pin"]
	if len(pins) != 32 || pins["PB14"] != int(tsc.PB14) {
		t.Errorf("Unexpected pin enumeration %v", pins)
	}
	if _, ok := pins["PA8"]; ok {
		t.Error("PA8 has no TSC function and must not be listed")
	}
}

func TestDictionaryConstantsSortedAndReplaced(t *testing.T) {
	d := &Dictionary{}
	d.AddConstant("B", "1")
	d.AddConstant("A", "2")
	d.AddConstant("B", "3")

	if len(d.constants) != 2 || d.constants[0].Name != "A" || d.constants[1].Value != "3" {
		t.Errorf("Unexpected constants %+v", d.constants)
	}
	raw := string(d.JSON(NewCommandRegistry()))
	if !strings.Contains(raw, `"config":{"A":"2","B":"3"}`) {
		t.Errorf("Unexpected JSON %s", raw)
	}
}

func TestDictionaryChunks(t *testing.T) {
	initDictionary(t)

	size := globalDictionary.Size()
	var whole []byte
	for off := 0; ; off += protocol.IdentifyChunkMax {
		chunk := globalDictionary.Chunk(uint32(off), protocol.IdentifyChunkMax)
		if len(chunk) == 0 {
			break
		}
		whole = append(whole, chunk...)
	}
	if len(whole) != size {
		t.Fatalf("Expected %d bytes, reassembled %d", size, len(whole))
	}
	if !bytes.Equal(inflate(t, whole), globalDictionary.JSON(globalRegistry)) {
		t.Error("Chunks do not reassemble into the dictionary")
	}

	// registering a message rebuilds the dictionary
	RegisterResponse(200, "x=%u")
	if globalDictionary.Size() == size {
		t.Error("Expected dictionary rebuilt after registration")
	}
}

// identifyChunks decodes the identify_response frames in the output.
func identifyChunks(t *testing.T, h *touchHarness) map[uint32][]byte {
	t.Helper()
	data := append([]byte(nil), h.output.Result()...)
	h.output.Reset()

	chunks := make(map[uint32][]byte)
	for len(data) > 0 {
		f, n, ok := protocol.ParseFrame(data)
		if n == 0 {
			t.Fatalf("Partial frame in output: % X", data)
		}
		data = data[n:]
		if !ok || f.IsAck() {
			continue
		}
		payload := f.Payload
		id, _ := protocol.DecodeVLQUint(&payload)
		if uint16(id) != protocol.RspIdentify {
			t.Fatalf("Expected identify_response, got message %d", id)
		}
		off, _ := protocol.DecodeVLQUint(&payload)
		chunk, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			t.Fatalf("Bad identify_response: %v", err)
		}
		chunks[off] = append([]byte(nil), chunk...)
	}
	return chunks
}

func TestIdentifyCommand(t *testing.T) {
	h := newTouchHarness(t)
	globalDictionary = &Dictionary{}
	InitIdentifyCommands()

	h.send(protocol.CmdIdentify, 0, 200)
	chunks := identifyChunks(t, h)
	if len(chunks[0]) != protocol.IdentifyChunkMax {
		t.Errorf("Expected a clamped %d byte chunk at 0, got %d", protocol.IdentifyChunkMax, len(chunks[0]))
	}
	if !bytes.Equal(chunks[0], globalDictionary.Chunk(0, protocol.IdentifyChunkMax)) {
		t.Error("Chunk does not match the dictionary")
	}

	h.send(protocol.CmdIdentify, 100000, 40)
	chunks = identifyChunks(t, h)
	if c, ok := chunks[100000]; !ok || len(c) != 0 {
		t.Errorf("Expected empty chunk past the end, got %v", chunks)
	}
}
