// Package config loads the host tool's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"touchsense/core"
	"touchsense/host/detect"
	"touchsense/host/serial"
	"touchsense/tsc"
)

// Config is the host tool configuration.
type Config struct {
	Serial serial.Config `yaml:"serial"`

	// Simulate runs the firmware in-process instead of opening Serial.
	Simulate bool `yaml:"simulate"`

	TSC      TSCConfig      `yaml:"tsc"`
	Sampling SamplingConfig `yaml:"sampling"`
	Detect   detect.Config  `yaml:"detect"`

	// Capture is the file readings are recorded to; empty disables it.
	Capture string `yaml:"capture"`
}

// TSCConfig is the controller setup sent after connecting. Timings are
// given in human units and converted by Controller.
type TSCConfig struct {
	// PrescalerDiv divides HCLK: 1, 2, 4 ... 128.
	PrescalerDiv int `yaml:"prescaler_div"`
	// MaxCount is 255, 511 ... 16383.
	MaxCount int `yaml:"max_count"`
	// ChargeCycles and TransferCycles are 1..16 pulse generator cycles.
	ChargeCycles   int `yaml:"charge_cycles"`
	TransferCycles int `yaml:"transfer_cycles"`

	SamplePins  []string `yaml:"sample_pins"`
	ChannelPins []string `yaml:"channel_pins"`
}

// SamplingConfig controls query_touch.
type SamplingConfig struct {
	Rest time.Duration `yaml:"rest"`
	Poll time.Duration `yaml:"poll"`
	// Autostart issues query_touch right after configuring.
	Autostart bool `yaml:"autostart"`
}

// Override adjusts a configuration after defaults are applied and
// before it is validated, e.g. from command line flags.
type Override func(*Config)

// Load reads the configuration at path, fills in defaults and applies
// the overrides.
func Load(path string, overrides ...Override) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, overrides...)
}

// Parse decodes YAML data like Load.
func Parse(data []byte, overrides ...Override) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills in missing configuration values.
func applyDefaults(cfg *Config) {
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = serial.DefaultBaud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = 100 * time.Millisecond
	}

	if cfg.TSC.PrescalerDiv == 0 {
		cfg.TSC.PrescalerDiv = 16
	}
	if cfg.TSC.MaxCount == 0 {
		cfg.TSC.MaxCount = 8191
	}
	if cfg.TSC.ChargeCycles == 0 {
		cfg.TSC.ChargeCycles = 2
	}
	if cfg.TSC.TransferCycles == 0 {
		cfg.TSC.TransferCycles = 2
	}

	if cfg.Sampling.Rest == 0 {
		cfg.Sampling.Rest = 50 * time.Millisecond
	}
	if cfg.Sampling.Poll == 0 {
		cfg.Sampling.Poll = 500 * time.Microsecond
	}

	def := detect.DefaultConfig()
	if cfg.Detect.CalibrationSamples == 0 {
		cfg.Detect.CalibrationSamples = def.CalibrationSamples
	}
	if cfg.Detect.TouchPercent == 0 {
		cfg.Detect.TouchPercent = def.TouchPercent
	}
	if cfg.Detect.ReleasePercent == 0 {
		cfg.Detect.ReleasePercent = def.ReleasePercent
	}
}

// Validate checks every field that the firmware would otherwise clamp
// or reject.
func (c *Config) Validate() error {
	if !c.Simulate && c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required unless simulate is set")
	}
	if _, err := c.TSC.Controller(); err != nil {
		return err
	}
	if _, err := c.TSC.Samples(); err != nil {
		return err
	}
	if _, err := c.TSC.Channels(); err != nil {
		return err
	}
	if c.Sampling.Poll <= 0 || c.Sampling.Rest < c.Sampling.Poll {
		return fmt.Errorf("sampling: rest %v must be at least poll %v", c.Sampling.Rest, c.Sampling.Poll)
	}
	return c.Detect.Validate()
}

// Controller converts the timings into a tsc.Config.
func (t TSCConfig) Controller() (tsc.Config, error) {
	var cfg tsc.Config

	p, ok := log2(t.PrescalerDiv)
	if !ok || p > 7 {
		return cfg, fmt.Errorf("tsc: prescaler_div %d is not a power of two up to 128", t.PrescalerDiv)
	}
	cfg.ClockPrescale = tsc.Hclk + tsc.ClockPrescaler(p)

	m, ok := log2(t.MaxCount + 1)
	if !ok || m < 8 || m > 14 {
		return cfg, fmt.Errorf("tsc: max_count %d must be 255, 511 ... 16383", t.MaxCount)
	}
	cfg.MaxCount = tsc.U255 + tsc.MaxCount(m-8)

	if t.ChargeCycles < 1 || t.ChargeCycles > 16 {
		return cfg, fmt.Errorf("tsc: charge_cycles %d out of range 1..16", t.ChargeCycles)
	}
	if t.TransferCycles < 1 || t.TransferCycles > 16 {
		return cfg, fmt.Errorf("tsc: transfer_cycles %d out of range 1..16", t.TransferCycles)
	}
	cfg.ChargeTransferHigh = tsc.ChargeDischargeTime(t.ChargeCycles)
	cfg.ChargeTransferLow = tsc.ChargeDischargeTime(t.TransferCycles)
	return cfg, nil
}

// Samples parses SamplePins. Each must be a TSC pin.
func (t TSCConfig) Samples() ([]tsc.PinID, error) {
	return parsePins("sample_pins", t.SamplePins)
}

// Channels parses ChannelPins. Each must be a TSC pin.
func (t TSCConfig) Channels() ([]tsc.PinID, error) {
	return parsePins("channel_pins", t.ChannelPins)
}

func parsePins(field string, names []string) ([]tsc.PinID, error) {
	pins := make([]tsc.PinID, 0, len(names))
	for _, name := range names {
		id, err := tsc.ParsePin(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", field, name, err)
		}
		if _, ok := tsc.LookupPin(id); !ok {
			return nil, fmt.Errorf("%s: %s: %w", field, id, tsc.ErrNoMapping)
		}
		pins = append(pins, id)
	}
	return pins, nil
}

// Ticks converts the sampling periods into firmware timer ticks.
func (s SamplingConfig) Ticks() (rest, poll uint32) {
	return core.TimerFromUS(uint32(s.Rest / time.Microsecond)),
		core.TimerFromUS(uint32(s.Poll / time.Microsecond))
}

func log2(v int) (int, bool) {
	if v <= 0 || v&(v-1) != 0 {
		return 0, false
	}
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n, true
}
