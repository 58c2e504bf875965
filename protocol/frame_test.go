package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeFrameAck(t *testing.T) {
	output := NewScratchOutput()
	EncodeFrame(output, MessageDest, nil)

	want := []byte{5, MessageDest, 0x9E, 0x81, MessageValueSync}
	if !bytes.Equal(output.Result(), want) {
		t.Errorf("Expected % X, got % X", want, output.Result())
	}
}

func TestParseFrame(t *testing.T) {
	output := NewScratchOutput()
	EncodeMessage(output, 0x13, RspTouchState, func(o OutputBuffer) {
		EncodeVLQUint(o, 22)
		EncodeVLQUint(o, 6)
		EncodeVLQUint(o, 1234)
	})
	data := output.Result()

	frame, consumed, ok := ParseFrame(data)
	if !ok {
		t.Fatalf("Expected a frame in % X", data)
	}
	if consumed != len(data) {
		t.Errorf("Expected %d bytes consumed, got %d", len(data), consumed)
	}
	if frame.Seq != 0x13 {
		t.Errorf("Expected seq 0x13, got %#x", frame.Seq)
	}

	payload := frame.Payload
	id, _ := DecodeVLQUint(&payload)
	if uint16(id) != RspTouchState {
		t.Errorf("Expected message %d, got %d", RspTouchState, id)
	}
}

func TestParseFrameIncomplete(t *testing.T) {
	output := NewScratchOutput()
	EncodeMessage(output, MessageDest, CmdAcquireTouch, nil)
	data := output.Result()

	for n := 1; n < len(data); n++ {
		if _, consumed, ok := ParseFrame(data[:n]); ok || consumed != 0 {
			t.Errorf("Prefix of %d bytes: expected to wait, got consumed=%d ok=%v", n, consumed, ok)
		}
	}
}

func TestParseFrameResync(t *testing.T) {
	output := NewScratchOutput()
	EncodeMessage(output, MessageDest, CmdStopTouch, nil)
	good := append([]byte(nil), output.Result()...)

	// corrupt CRC followed by a good frame
	bad := append([]byte(nil), good...)
	bad[len(bad)-2] ^= 0xFF
	stream := append(bad, good...)

	_, consumed, ok := ParseFrame(stream)
	if ok {
		t.Fatal("Expected corrupt frame to be rejected")
	}
	if consumed != len(bad) {
		t.Errorf("Expected to skip %d bytes, skipped %d", len(bad), consumed)
	}

	frame, _, ok := ParseFrame(stream[consumed:])
	if !ok || frame.IsAck() {
		t.Errorf("Expected the following frame to parse")
	}
}

func TestParseFrameSkipsSync(t *testing.T) {
	if _, consumed, ok := ParseFrame([]byte{MessageValueSync, 5}); ok || consumed != 1 {
		t.Errorf("Expected one sync byte skipped, got consumed=%d ok=%v", consumed, ok)
	}
}

func TestNextSeq(t *testing.T) {
	if NextSeq(0x10) != 0x11 {
		t.Errorf("Expected 0x11, got %#x", NextSeq(0x10))
	}
	if NextSeq(0x1F) != 0x10 {
		t.Errorf("Expected wrap to 0x10, got %#x", NextSeq(0x1F))
	}
}

func TestEncodeFrameNeedsRoom(t *testing.T) {
	output := NewScratchOutput()
	output.Output(make([]byte, MessageMax-MessageLengthMax+1))
	pos := output.CurPosition()

	if EncodeMessage(output, MessageDest, RspTouchState, func(o OutputBuffer) {
		EncodeVLQUint(o, 22)
	}) {
		t.Error("Expected a message frame to be refused without room for a full frame")
	}
	if output.CurPosition() != pos {
		t.Errorf("Expected nothing written, position moved from %d to %d", pos, output.CurPosition())
	}

	if !EncodeFrame(output, MessageDest, nil) {
		t.Fatal("Expected an ACK to fit")
	}
	if _, _, ok := ParseFrame(output.DataSince(pos)); !ok {
		t.Errorf("Expected a complete ACK frame, got % X", output.DataSince(pos))
	}
}
