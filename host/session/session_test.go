package session

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchsense/host/capture"
	"touchsense/host/config"
	"touchsense/host/detect"
	"touchsense/host/link"
	"touchsense/host/sim"
	"touchsense/tsc"
)

// syncBuffer is a bytes.Buffer safe for the session's logger.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulate = true
	cfg.TSC.SamplePins = []string{"PB13"}
	cfg.TSC.ChannelPins = []string{"PB14"}
	cfg.Sampling.Rest = 2 * time.Millisecond
	cfg.Sampling.Autostart = true
	cfg.Detect.CalibrationSamples = 4
	return cfg
}

func setup(t *testing.T, cfg *config.Config) (*sim.Firmware, *Session, chan detect.Event, *syncBuffer) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	fw := sim.Start(7)
	fw.Front.SetNoise(2)
	out := &syncBuffer{}
	s, err := New(link.New(fw.Port()), cfg, "sim", out)
	require.NoError(t, err)

	events := make(chan detect.Event, 16)
	s.OnEvent = func(ev detect.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	t.Cleanup(func() {
		cancel()
		s.Close()
		fw.Close()
	})
	return fw, s, events, out
}

func waitEvent(t *testing.T, events chan detect.Event, kind detect.Kind) detect.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestTouchAndRelease(t *testing.T) {
	fw, s, events, out := setup(t, testConfig())

	tc, err := s.Configure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(1)<<23, tc.Channels&(1<<23), "PB14 enabled")

	ev := waitEvent(t, events, detect.Calibrated)
	assert.Equal(t, tsc.PB14, ev.Pin)
	assert.InDelta(t, sim.DefaultBaseline, int(ev.Baseline), 4)

	fw.Front.Touch(6, true)
	ev = waitEvent(t, events, detect.Touched)
	assert.Less(t, ev.Count, ev.Baseline)
	assert.Contains(t, s.Status().Touched, tsc.PB14)

	fw.Front.Touch(6, false)
	waitEvent(t, events, detect.Released)
	assert.Empty(t, s.Status().Touched)

	require.NoError(t, s.Stop())
	assert.Contains(t, out.String(), "PB14 touched")
}

func TestCaptureDuringSampling(t *testing.T) {
	_, s, events, _ := setup(t, testConfig())

	_, err := s.Configure(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.cbor")
	require.NoError(t, s.StartCapture(path))
	assert.True(t, s.Status().Capture)
	waitEvent(t, events, detect.Calibrated)

	require.NoError(t, s.Stop())
	n, err := s.StopCapture()
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	r, err := capture.Open(path, capture.Filter{Pins: []tsc.PinID{tsc.PB14}})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "sim", r.Header().Device)
	assert.NotZero(t, r.Header().CR, "controller config recorded")

	recs, err := r.ReadAll()
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
	for _, rec := range recs {
		assert.Equal(t, uint8(6), rec.Group)
	}
}

func TestFirmwareErrorsAreCounted(t *testing.T) {
	cfg := testConfig()
	cfg.Sampling.Autostart = false
	fw, s, _, out := setup(t, cfg)

	_, err := s.Configure(context.Background())
	require.NoError(t, err)

	fw.Front.FailNext()
	require.NoError(t, s.Link().Acquire())

	assert.Eventually(t, func() bool { return s.Status().Errors == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "max count error")
}

func TestReconfigureRecalibrates(t *testing.T) {
	_, s, events, _ := setup(t, testConfig())

	_, err := s.Configure(context.Background())
	require.NoError(t, err)
	waitEvent(t, events, detect.Calibrated)

	ctrl, err := s.cfg.TSC.Controller()
	require.NoError(t, err)
	_, err = s.ConfigTSC(context.Background(), ctrl)
	require.NoError(t, err)
	require.NoError(t, s.Start(), "config_tsc stops the sampler")

	waitEvent(t, events, detect.Calibrated)
}
