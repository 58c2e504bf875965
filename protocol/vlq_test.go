package protocol

import (
	"bytes"
	"testing"
)

func TestVLQEncoding(t *testing.T) {
	testCases := []struct {
		value   int32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{1234, []byte{0x89, 0x52}},
		{16383, []byte{0x80, 0xFF, 0x7F}},
		{1000000, []byte{0xBD, 0x84, 0x40}},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		if !bytes.Equal(output.Result(), tc.encoded) {
			t.Errorf("Encode(%d): expected % X, got % X", tc.value, tc.encoded, output.Result())
		}

		data := append([]byte(nil), tc.encoded...)
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("Decode(% X) failed: %v", tc.encoded, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("Decode(% X): expected %d, got %d", tc.encoded, tc.value, decoded)
		}
		if len(data) != 0 {
			t.Errorf("Decode(% X) left %d bytes", tc.encoded, len(data))
		}
	}
}

func TestVLQDecodeSequence(t *testing.T) {
	// pin=22 group=6 count=1234
	data := []byte{0x16, 0x06, 0x89, 0x52}
	want := []uint32{22, 6, 1234}

	for i, w := range want {
		v, err := DecodeVLQUint(&data)
		if err != nil {
			t.Fatalf("Arg %d: %v", i, err)
		}
		if v != w {
			t.Errorf("Arg %d: expected %d, got %d", i, w, v)
		}
	}
	if _, err := DecodeVLQUint(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall at end, got %v", err)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // continuation byte with nothing after it
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}

func TestVLQBytes(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQBytes(output, []byte("touch"))
	EncodeVLQUint(output, 7)

	data := output.Result()
	if data[0] != 5 {
		t.Fatalf("Expected length prefix 5, got %d", data[0])
	}
	b, err := DecodeVLQBytes(&data)
	if err != nil || string(b) != "touch" {
		t.Fatalf("Expected \"touch\", got %q (%v)", b, err)
	}
	if v, _ := DecodeVLQUint(&data); v != 7 {
		t.Errorf("Expected trailing 7, got %d", v)
	}

	short := []byte{4, 'a', 'b'}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}
