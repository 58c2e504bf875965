// Package detect turns raw channel counts into touch and release events.
//
// The driver only reports counts; deciding what a count means is up to
// the caller. A Detector learns each channel's untouched baseline from
// its first readings and reports a touch when the count drops a given
// share below it. A second, smaller threshold releases the touch so
// that noise near the threshold does not chatter.
package detect

import (
	"fmt"

	"touchsense/tsc"
)

// Config tunes a Detector.
type Config struct {
	// CalibrationSamples is the number of readings averaged into the
	// baseline before any decision is made.
	CalibrationSamples int `yaml:"calibration_samples"`

	// TouchPercent is the drop below baseline, in percent, that counts
	// as a touch.
	TouchPercent float64 `yaml:"touch_percent"`

	// ReleasePercent is the drop below baseline under which a touch is
	// released. Must not exceed TouchPercent.
	ReleasePercent float64 `yaml:"release_percent"`
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		CalibrationSamples: 16,
		TouchPercent:       10,
		ReleasePercent:     5,
	}
}

// Validate reports settings a Detector cannot work with.
func (c Config) Validate() error {
	switch {
	case c.CalibrationSamples <= 0:
		return fmt.Errorf("calibration_samples must be positive, got %d", c.CalibrationSamples)
	case c.TouchPercent <= 0 || c.TouchPercent >= 100:
		return fmt.Errorf("touch_percent must be in (0, 100), got %g", c.TouchPercent)
	case c.ReleasePercent < 0 || c.ReleasePercent > c.TouchPercent:
		return fmt.Errorf("release_percent must be in [0, touch_percent], got %g", c.ReleasePercent)
	}
	return nil
}

// Kind is what happened on a channel.
type Kind int

const (
	Calibrated Kind = iota + 1
	Touched
	Released
)

func (k Kind) String() string {
	switch k {
	case Calibrated:
		return "calibrated"
	case Touched:
		return "touched"
	case Released:
		return "released"
	}
	return "unknown"
}

// Event is a state change of one channel.
type Event struct {
	Pin      tsc.PinID
	Kind     Kind
	Count    uint16
	Baseline uint16
}

type channel struct {
	sum      uint64
	samples  int
	baseline uint16
	touched  bool
}

// Detector tracks channels independently. It is not safe for concurrent
// use.
type Detector struct {
	cfg      Config
	channels map[tsc.PinID]*channel
}

// New returns a detector, or an error if cfg is invalid.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg, channels: make(map[tsc.PinID]*channel)}, nil
}

// Feed takes one reading and returns the resulting event, if any.
func (d *Detector) Feed(pin tsc.PinID, count uint16) (Event, bool) {
	ch, ok := d.channels[pin]
	if !ok {
		ch = &channel{}
		d.channels[pin] = ch
	}

	if ch.samples < d.cfg.CalibrationSamples {
		ch.sum += uint64(count)
		ch.samples++
		if ch.samples < d.cfg.CalibrationSamples {
			return Event{}, false
		}
		ch.baseline = uint16(ch.sum / uint64(ch.samples))
		return Event{Pin: pin, Kind: Calibrated, Count: count, Baseline: ch.baseline}, true
	}

	drop := d.dropPercent(ch, count)
	switch {
	case !ch.touched && drop >= d.cfg.TouchPercent:
		ch.touched = true
		return Event{Pin: pin, Kind: Touched, Count: count, Baseline: ch.baseline}, true
	case ch.touched && drop <= d.cfg.ReleasePercent:
		ch.touched = false
		return Event{Pin: pin, Kind: Released, Count: count, Baseline: ch.baseline}, true
	}
	return Event{}, false
}

func (d *Detector) dropPercent(ch *channel, count uint16) float64 {
	if ch.baseline == 0 {
		return 0
	}
	return (float64(ch.baseline) - float64(count)) * 100 / float64(ch.baseline)
}

// Touched reports whether pin is currently touched.
func (d *Detector) Touched(pin tsc.PinID) bool {
	ch, ok := d.channels[pin]
	return ok && ch.touched
}

// Baseline returns the learned baseline of pin, and false while it is
// still calibrating.
func (d *Detector) Baseline(pin tsc.PinID) (uint16, bool) {
	ch, ok := d.channels[pin]
	if !ok || ch.samples < d.cfg.CalibrationSamples {
		return 0, false
	}
	return ch.baseline, true
}

// Reset forgets pin, so it calibrates again.
func (d *Detector) Reset(pin tsc.PinID) {
	delete(d.channels, pin)
}
