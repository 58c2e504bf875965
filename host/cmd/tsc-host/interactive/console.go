// Package interactive provides the command console of tsc-host.
package interactive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"touchsense/core"
	"touchsense/host/session"
	"touchsense/tsc"
)

// Console reads commands and runs them against a session.
type Console struct {
	rl *readline.Instance
}

// New creates a console. Create it before anything that logs, so output
// can go through Stdout.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tsc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop on s.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, s *session.Session) {
	defer c.rl.Close()

	printHelp(c.rl.Stdout())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if !Execute(ctx, s, c.rl.Stdout(), line) {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should
// keep going.
func Execute(ctx context.Context, s *session.Session, out io.Writer, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		printHelp(out)
	case "config", "c":
		err = cmdConfig(ctx, s, out, args)
	case "sample":
		err = withPin(args, s.Link().ConfigSample)
	case "channel", "ch":
		err = withPin(args, s.Link().ConfigChannel)
	case "disable":
		err = withPin(args, s.Link().DisableChannel)
	case "query", "start":
		err = cmdQuery(s, args)
	case "acquire", "a":
		err = s.Link().Acquire()
	case "stop":
		err = s.Stop()
	case "listen":
		err = cmdListen(s, args)
	case "capture":
		err = cmdCapture(s, out, args)
	case "verbose", "v":
		s.Verbose = !s.Verbose
		fmt.Fprintf(out, "verbose %v\n", s.Verbose)
	case "status":
		printStatus(s, out)
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		return true
	}

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return true
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `
Commands:
  config [prescaler maxcount ctph ctpl]   Recreate the controller (codes, 0 = default)
  sample <pin>                            Register a sampling capacitor pin
  channel <pin>                           Arm a channel pin
  disable <pin>                           Disarm a channel pin
  query [rest_us [poll_us]]               Sample continuously
  acquire                                 Sample once
  stop                                    Stop sampling
  listen <eoa|mce> <on|off>               Enable the firmware interrupt for an event
  capture <file> | capture off            Record readings to a CBOR file
  verbose                                 Toggle printing of every reading
  status                                  Show the last readings
  quit                                    Exit`)
}

func parsePin(args []string) (tsc.PinID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one pin, e.g. PB13")
	}
	return tsc.ParsePin(args[0])
}

func withPin(args []string, fn func(tsc.PinID) error) error {
	pin, err := parsePin(args)
	if err != nil {
		return err
	}
	return fn(pin)
}

func cmdConfig(ctx context.Context, s *session.Session, out io.Writer, args []string) error {
	var cfg tsc.Config
	if len(args) != 0 && len(args) != 4 {
		return fmt.Errorf("usage: config [prescaler maxcount ctph ctpl]")
	}
	if len(args) == 4 {
		var v [4]uint8
		for i, a := range args {
			n, err := strconv.ParseUint(a, 0, 8)
			if err != nil {
				return fmt.Errorf("bad value %q: %w", a, err)
			}
			v[i] = uint8(n)
		}
		cfg = tsc.Config{
			ClockPrescale:      tsc.ClockPrescaler(v[0]),
			MaxCount:           tsc.MaxCount(v[1]),
			ChargeTransferHigh: tsc.ChargeDischargeTime(v[2]),
			ChargeTransferLow:  tsc.ChargeDischargeTime(v[3]),
		}
	}

	tc, err := s.ConfigTSC(ctx, cfg)
	if err != nil {
		return err
	}
	applied := tc.Config()
	fmt.Fprintf(out, "cr=0x%08X channels=0x%08X prescaler=%d maxcount=%d ctph=%d ctpl=%d\n",
		tc.CR, tc.Channels, applied.ClockPrescale, applied.MaxCount,
		applied.ChargeTransferHigh, applied.ChargeTransferLow)
	return nil
}

func cmdQuery(s *session.Session, args []string) error {
	if len(args) == 0 {
		return s.Start()
	}
	var us [2]uint64
	us[1] = 500
	for i, a := range args {
		if i > 1 {
			return fmt.Errorf("usage: query [rest_us [poll_us]]")
		}
		n, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return fmt.Errorf("bad period %q: %w", a, err)
		}
		us[i] = n
	}
	return s.Link().Query(core.TimerFromUS(uint32(us[0])), core.TimerFromUS(uint32(us[1])))
}

func cmdListen(s *session.Session, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: listen <eoa|mce> <on|off>")
	}
	var ev tsc.Event
	switch strings.ToLower(args[0]) {
	case "eoa":
		ev = tsc.EndOfAcquisition
	case "mce":
		ev = tsc.MaxCountError
	default:
		return fmt.Errorf("unknown event %q", args[0])
	}
	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "1":
		on = true
	case "off", "0":
	default:
		return fmt.Errorf("expected on or off, got %q", args[1])
	}
	return s.Link().Listen(ev, on)
}

func cmdCapture(s *session.Session, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: capture <file> | capture off")
	}
	if args[0] == "off" {
		n, err := s.StopCapture()
		if err == nil {
			fmt.Fprintf(out, "capture closed, %d records\n", n)
		}
		return err
	}
	return s.StartCapture(args[0])
}

func printStatus(s *session.Session, out io.Writer) {
	st := s.Status()
	if st.Config != nil {
		fmt.Fprintf(out, "cr=0x%08X channels=0x%08X\n", st.Config.CR, st.Config.Channels)
	} else {
		fmt.Fprintln(out, "controller not configured")
	}

	touched := make(map[tsc.PinID]bool)
	for _, p := range st.Touched {
		touched[p] = true
	}
	sort.Slice(st.Last, func(i, j int) bool { return st.Last[i].Pin < st.Last[j].Pin })
	for _, r := range st.Last {
		mark := ""
		if touched[r.Pin] {
			mark = " touched"
		}
		fmt.Fprintf(out, "  %-5s group=%d count=%d clock=%d%s\n", r.Pin, r.Group, r.Count, r.Clock, mark)
	}
	fmt.Fprintf(out, "errors=%d dropped=%d rejected=%d capture=%v\n", st.Errors, st.Dropped, st.Rejected, st.Capture)
}
