package core

import (
	"touchsense/protocol"
	"touchsense/tinycompress"
	"touchsense/tsc"
)

// FirmwareVersion is reported in the data dictionary.
const FirmwareVersion = "touchsense-0.1.0"

// Constant is a firmware setting exposed to the host.
type Constant struct {
	Name  string
	Value string
}

// Dictionary describes the firmware to the host: its version, constants,
// every message with its argument format, and the pin enumeration. The
// host fetches it in chunks with identify.
type Dictionary struct {
	constants []Constant
	cached    []byte // compressed
}

var globalDictionary = &Dictionary{}

// RegisterConstant adds or replaces a constant in the global dictionary.
func RegisterConstant(name, value string) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds or replaces a constant and drops the cached
// dictionary.
func (d *Dictionary) AddConstant(name, value string) {
	d.cached = nil
	for i := range d.constants {
		if d.constants[i].Name == name {
			d.constants[i].Value = value
			return
		}
	}
	d.constants = append(d.constants, Constant{Name: name, Value: value})
	for i := len(d.constants) - 1; i > 0 && d.constants[i].Name < d.constants[i-1].Name; i-- {
		d.constants[i], d.constants[i-1] = d.constants[i-1], d.constants[i]
	}
}

// Build renders the dictionary for reg and caches it compressed. Call it
// after every message is registered.
func (d *Dictionary) Build(reg *CommandRegistry) {
	d.cached = tinycompress.Compress(d.JSON(reg))
}

// Invalidate drops the cached dictionary.
func (d *Dictionary) Invalidate() {
	d.cached = nil
}

// JSON renders the uncompressed dictionary. It is built by hand so the
// firmware does not link encoding/json.
func (d *Dictionary) JSON(reg *CommandRegistry) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":"`...)
	result = append(result, FirmwareVersion...)
	result = append(result, `","config":{`...)
	for i, c := range d.constants {
		if i > 0 {
			result = append(result, ',')
		}
		result = appendQuoted(result, c.Name)
		result = append(result, ':')
		result = appendQuoted(result, c.Value)
	}

	commands, responses := reg.Messages()
	result = append(result, `},"commands":`...)
	result = appendMessages(result, commands)
	result = append(result, `,"responses":`...)
	result = appendMessages(result, responses)

	result = append(result, `,"enumerations":{"pin":{`...)
	first := true
	for id := 0; id < 3*16; id++ {
		pin := tsc.PinID(id)
		if _, ok := tsc.LookupPin(pin); !ok {
			continue
		}
		if !first {
			result = append(result, ',')
		}
		result = appendQuoted(result, pin.String())
		result = append(result, ':')
		result = append(result, utoa(uint32(id))...)
		first = false
	}
	return append(result, "}}}"...)
}

// appendMessages renders {"name format": id, ...}.
func appendMessages(result []byte, cmds []*Command) []byte {
	result = append(result, '{')
	for i, cmd := range cmds {
		if i > 0 {
			result = append(result, ',')
		}
		key := cmd.Name
		if cmd.Format != "" {
			key += " " + cmd.Format
		}
		result = appendQuoted(result, key)
		result = append(result, ':')
		result = append(result, utoa(uint32(cmd.ID))...)
	}
	return append(result, '}')
}

// appendQuoted appends s as a JSON string. Names and formats are plain
// ASCII; quotes and backslashes are the only characters escaped.
func appendQuoted(result []byte, s string) []byte {
	result = append(result, '"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			result = append(result, '\\')
		}
		result = append(result, s[i])
	}
	return append(result, '"')
}

// Chunk returns up to count bytes of the compressed dictionary at
// offset, building it first if needed. Past the end it returns nothing.
func (d *Dictionary) Chunk(offset uint32, count uint8) []byte {
	if d.cached == nil {
		d.Build(globalRegistry)
	}
	if offset >= uint32(len(d.cached)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(d.cached)) {
		end = uint32(len(d.cached))
	}
	return d.cached[offset:end]
}

// Size returns the compressed size, building the dictionary if needed.
func (d *Dictionary) Size() int {
	if d.cached == nil {
		d.Build(globalRegistry)
	}
	return len(d.cached)
}

// GetGlobalDictionary returns the global dictionary instance.
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}

// InitIdentifyCommands registers identify and the firmware constants.
// The dictionary is built lazily on the first request, so commands may
// be registered in any order.
func InitIdentifyCommands() {
	RegisterCommand(protocol.CmdIdentify, "offset=%u count=%c", handleIdentify)
	RegisterResponse(protocol.RspIdentify, "offset=%u data=%*s")

	RegisterConstant("CLOCK_FREQ", utoa(TimerFreq))
	RegisterConstant("PROTOCOL_VERSION", utoa(protocol.Version))
	RegisterConstant("REPORT_QUEUE", utoa(reportQueueSize))
}

func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if count > protocol.IdentifyChunkMax {
		count = protocol.IdentifyChunkMax
	}

	chunk := globalDictionary.Chunk(offset, uint8(count))
	SendResponse(protocol.RspIdentify, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}
