package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchsense/protocol"
	"touchsense/tsc"
)

func TestFrontCounts(t *testing.T) {
	f := newFront(1)
	f.SetNoise(0)
	f.SetBaseline(6, 2000)
	f.Touch(6, true)

	regs := tsc.NewSimRegisters()
	f.onStart(regs)

	assert.Equal(t, uint32(1700), regs.Word(tsc.IOG1CR+5*4))
	assert.Equal(t, uint32(DefaultBaseline), regs.Word(tsc.IOG1CR))

	// the end of acquisition shows after the configured latency
	assert.Zero(t, regs.Load(tsc.ISR))
	assert.Zero(t, regs.Load(tsc.ISR))
	assert.Equal(t, uint32(1), regs.Load(tsc.ISR))
}

func TestFrontNoiseBounded(t *testing.T) {
	f := newFront(42)
	f.SetNoise(10)
	for i := 0; i < 200; i++ {
		c := f.count(1)
		assert.InDelta(t, DefaultBaseline, c, 10)
	}
}

func TestFrontFailNext(t *testing.T) {
	f := newFront(1)
	f.latency = 0

	regs := tsc.NewSimRegisters()
	f.FailNext()
	f.onStart(regs)
	assert.Equal(t, uint32(2), regs.Load(tsc.ISR))

	regs.Store(tsc.ICR, 3)
	f.onStart(regs)
	assert.Equal(t, uint32(1), regs.Load(tsc.ISR), "only the next acquisition fails")
}

func TestFirmwareAcknowledges(t *testing.T) {
	fw := Start(1)
	defer fw.Close()

	out := protocol.NewScratchOutput()
	protocol.EncodeMessage(out, protocol.MessageDest, protocol.CmdStopTouch, nil)
	port := fw.Port()
	require.NoError(t, port.SetDeadline(time.Now().Add(2*time.Second)))

	_, err := port.Write(out.Result())
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := port.Read(buf)
	require.NoError(t, err)

	frame, _, ok := protocol.ParseFrame(buf[:n])
	require.True(t, ok, "expected a frame, got % X", buf[:n])
	assert.True(t, frame.IsAck())
	assert.Equal(t, uint8(0x11), frame.Seq)
}
