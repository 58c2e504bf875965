// Command tsc-host talks to the touch firmware over a serial line, or to
// an in-process simulation of it.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"touchsense/host/cmd/tsc-host/interactive"
	"touchsense/host/config"
	"touchsense/host/link"
	"touchsense/host/serial"
	"touchsense/host/session"
	"touchsense/host/sim"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file")
	device      = flag.String("device", "", "Serial device path (overrides the config file)")
	baud        = flag.Int("baud", 0, "Baud rate (overrides the config file)")
	simulate    = flag.Bool("sim", false, "Run against the simulated firmware")
	capturePath = flag.String("capture", "", "Record readings to this CBOR file")
	verbose     = flag.Bool("verbose", false, "Print every reading")
	seed        = flag.Int64("seed", 1, "Noise seed for the simulated firmware")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	console, err := interactive.New()
	if err != nil {
		log.Fatalf("console: %v", err)
	}
	log.SetOutput(console.Stdout())

	port, name, err := connect(cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}

	s, err := session.New(link.New(port), cfg, name, console.Stdout())
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	defer s.Close()
	s.Verbose = *verbose

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go s.Run(ctx)

	dict, err := s.Link().Identify()
	if err != nil {
		log.Fatalf("identify: %v", err)
	}
	if err := dict.Verify(); err != nil {
		log.Fatalf("identify: %v", err)
	}
	log.Printf("connected to %s: %s on %s", name, dict.Version, dict.Config["MCU"])
	if len(cfg.TSC.SamplePins)+len(cfg.TSC.ChannelPins) > 0 {
		tc, err := s.Configure(ctx)
		if err != nil {
			log.Printf("configure: %v", err)
		} else {
			log.Printf("controller ready, cr=0x%08X channels=0x%08X", tc.CR, tc.Channels)
		}
	}
	if cfg.Capture != "" {
		if err := s.StartCapture(cfg.Capture); err != nil {
			log.Print(err)
		}
	}

	console.Run(ctx, cancel, s)
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	if *configPath == "" {
		return config.Parse(nil, applyFlags)
	}
	return config.Load(*configPath, applyFlags)
}

func applyFlags(cfg *config.Config) {
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *simulate {
		cfg.Simulate = true
	}
	if *capturePath != "" {
		cfg.Capture = *capturePath
	}
}

// connect opens the serial line, or starts the simulated firmware. The
// returned port is owned by the link.
func connect(cfg *config.Config) (io.ReadWriteCloser, string, error) {
	if cfg.Simulate {
		fw := sim.Start(*seed)
		return &simPort{Conn: fw.Port(), fw: fw}, "sim", nil
	}

	port, err := serial.Open(&cfg.Serial)
	if err != nil {
		return nil, "", err
	}
	if err := port.Flush(); err != nil {
		log.Printf("flush %s: %v", cfg.Serial.Device, err)
	}
	return port, cfg.Serial.Device, nil
}

// simPort stops the simulated firmware along with the line.
type simPort struct {
	net.Conn
	fw *sim.Firmware
}

func (p *simPort) Close() error {
	return p.fw.Close()
}
