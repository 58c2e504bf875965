package link

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"touchsense/protocol"
)

// ErrDictionaryMismatch is returned by Verify when the firmware numbers
// its messages differently from this host.
var ErrDictionaryMismatch = errors.New("firmware dictionary does not match")

// maxDictionary bounds the download in case the firmware never sends an
// empty chunk.
const maxDictionary = 64 * 1024

// Dictionary describes the firmware: its version, constants and messages.
type Dictionary struct {
	Version      string                    `json:"version"`
	Config       map[string]string         `json:"config"`
	Commands     map[string]int            `json:"commands"`
	Responses    map[string]int            `json:"responses"`
	Enumerations map[string]map[string]int `json:"enumerations"`
}

// MessageID returns the ID of the named command or response, ignoring
// the argument formats in the dictionary keys.
func (d *Dictionary) MessageID(name string) (int, bool) {
	for _, m := range []map[string]int{d.Commands, d.Responses} {
		for key, id := range m {
			if key == name || strings.HasPrefix(key, name+" ") {
				return id, true
			}
		}
	}
	return 0, false
}

// Verify checks that every message this host sends or decodes has the
// same ID in the firmware.
func (d *Dictionary) Verify() error {
	ids := []uint16{
		protocol.CmdConfigTSC, protocol.CmdConfigSample, protocol.CmdConfigChannel,
		protocol.CmdDisableChannel, protocol.CmdQueryTouch, protocol.CmdAcquireTouch,
		protocol.CmdStopTouch, protocol.CmdListenTouch,
		protocol.RspTouchState, protocol.RspTouchError, protocol.RspTouchConfig,
	}
	for _, want := range ids {
		name := protocol.MessageName(want)
		got, ok := d.MessageID(name)
		if !ok {
			return fmt.Errorf("%w: %s missing", ErrDictionaryMismatch, name)
		}
		if got != int(want) {
			return fmt.Errorf("%w: %s is %d, expected %d", ErrDictionaryMismatch, name, got, want)
		}
	}
	return nil
}

// ParseDictionary inflates and decodes a dictionary as served by the
// firmware.
func ParseDictionary(compressed []byte) (*Dictionary, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	var d Dictionary
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	return &d, nil
}

// Identify downloads the firmware's data dictionary.
func (l *Link) Identify() (*Dictionary, error) {
	timeout := l.AckTimeout
	if timeout == 0 {
		timeout = DefaultAckTimeout
	}

	// drop chunks left over from an earlier, abandoned download
	select {
	case <-l.identify:
	default:
	}

	var data []byte
	for len(data) < maxDictionary {
		off := uint32(len(data))
		if err := l.Send(protocol.CmdIdentify, off, protocol.IdentifyChunkMax); err != nil {
			return nil, err
		}
		chunk, err := l.waitChunk(off, timeout)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return ParseDictionary(data)
		}
		data = append(data, chunk...)
	}
	return nil, fmt.Errorf("dictionary: larger than %d bytes", maxDictionary)
}

func (l *Link) waitChunk(off uint32, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case c := <-l.identify:
			if c.Offset == off {
				return c.Data, nil
			}
		case <-timer.C:
			return nil, fmt.Errorf("identify at %d: %w", off, ErrAckTimeout)
		case <-l.done:
			return nil, ErrClosed
		}
	}
}
