// Package session drives a touch firmware from the host: it configures
// the controller, feeds readings through a detector and records them.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"touchsense/host/capture"
	"touchsense/host/config"
	"touchsense/host/detect"
	"touchsense/host/link"
	"touchsense/tsc"
)

// ErrNoConfig is returned when the firmware did not answer config_tsc.
var ErrNoConfig = errors.New("no touch_config received")

// configTimeout bounds the wait for touch_config after config_tsc.
const configTimeout = 2 * time.Second

// Session owns a link and everything consuming its responses.
type Session struct {
	link   *link.Link
	cfg    *config.Config
	device string
	logger *log.Logger

	// Verbose prints every reading, not only detector events.
	Verbose bool

	mu       sync.Mutex
	detector *detect.Detector
	capture  *capture.Writer
	last     map[tsc.PinID]link.TouchState
	errors   int
	touchCfg *link.TouchConfig
	configCh chan link.TouchConfig

	// OnEvent, when set, is called for every detector event.
	OnEvent func(detect.Event)
}

// New creates a session over l. Output goes to out.
func New(l *link.Link, cfg *config.Config, device string, out io.Writer) (*Session, error) {
	d, err := detect.New(cfg.Detect)
	if err != nil {
		return nil, err
	}
	return &Session{
		link:     l,
		cfg:      cfg,
		device:   device,
		logger:   log.New(out, "", log.Ltime),
		detector: d,
		last:     make(map[tsc.PinID]link.TouchState),
		configCh: make(chan link.TouchConfig, 1),
	}, nil
}

// Link returns the underlying link.
func (s *Session) Link() *link.Link {
	return s.link
}

// Run consumes responses until the link closes or ctx is done.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-s.link.Responses():
			if !ok {
				return
			}
			s.handle(resp)
		}
	}
}

func (s *Session) handle(resp link.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		if err := s.capture.Write(resp); err != nil {
			s.logger.Printf("capture: %v", err)
		}
	}

	switch r := resp.(type) {
	case link.TouchState:
		s.last[r.Pin] = r
		if s.Verbose {
			s.logger.Printf("%s group=%d count=%d clock=%d", r.Pin, r.Group, r.Count, r.Clock)
		}
		if ev, ok := s.detector.Feed(r.Pin, r.Count); ok {
			s.logger.Printf("%s %s count=%d baseline=%d", ev.Pin, ev.Kind, ev.Count, ev.Baseline)
			if s.OnEvent != nil {
				s.OnEvent(ev)
			}
		}
	case link.TouchError:
		s.errors++
		s.logger.Print(r.Error())
	case link.TouchConfig:
		c := r
		s.touchCfg = &c
		select {
		case s.configCh <- r:
		default:
		}
	}
}

// Configure registers the configured pins, creates the controller and
// waits for its touch_config. Sampling starts when Autostart is set.
func (s *Session) Configure(ctx context.Context) (link.TouchConfig, error) {
	samples, err := s.cfg.TSC.Samples()
	if err != nil {
		return link.TouchConfig{}, err
	}
	channels, err := s.cfg.TSC.Channels()
	if err != nil {
		return link.TouchConfig{}, err
	}
	ctrl, err := s.cfg.TSC.Controller()
	if err != nil {
		return link.TouchConfig{}, err
	}

	for _, p := range samples {
		if err := s.link.ConfigSample(p); err != nil {
			return link.TouchConfig{}, err
		}
	}
	for _, p := range channels {
		if err := s.link.ConfigChannel(p); err != nil {
			return link.TouchConfig{}, err
		}
	}

	tc, err := s.ConfigTSC(ctx, ctrl)
	if err != nil {
		return tc, err
	}
	if s.cfg.Sampling.Autostart {
		err = s.Start()
	}
	return tc, err
}

// ConfigTSC sends config_tsc and waits for the firmware's answer. The
// firmware stops sampling when it recreates the controller, and every
// channel calibrates again.
func (s *Session) ConfigTSC(ctx context.Context, ctrl tsc.Config) (link.TouchConfig, error) {
	select {
	case <-s.configCh:
	default:
	}
	if err := s.link.ConfigTSC(ctrl); err != nil {
		return link.TouchConfig{}, err
	}

	timer := time.NewTimer(configTimeout)
	defer timer.Stop()
	select {
	case tc := <-s.configCh:
		// new timings shift every baseline
		s.mu.Lock()
		for pin := range s.last {
			s.detector.Reset(pin)
		}
		s.last = make(map[tsc.PinID]link.TouchState)
		s.mu.Unlock()
		return tc, nil
	case <-timer.C:
		return link.TouchConfig{}, ErrNoConfig
	case <-ctx.Done():
		return link.TouchConfig{}, ctx.Err()
	}
}

// Start begins continuous sampling with the configured periods.
func (s *Session) Start() error {
	rest, poll := s.cfg.Sampling.Ticks()
	return s.link.Query(rest, poll)
}

// Stop ends continuous sampling.
func (s *Session) Stop() error {
	return s.link.Stop()
}

// StartCapture records every following response to path, replacing any
// capture in progress.
func (s *Session) StartCapture(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		s.capture.Close()
		s.capture = nil
	}
	w, err := capture.Create(path, s.device, s.touchCfg)
	if err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	s.capture = w
	s.logger.Printf("capturing to %s (session %s)", path, w.Header().SessionID)
	return nil
}

// StopCapture closes the running capture and returns its record count.
func (s *Session) StopCapture() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return 0, nil
	}
	n := s.capture.Records()
	err := s.capture.Close()
	s.capture = nil
	return n, err
}

// Status summarizes the session.
type Status struct {
	Config   *link.TouchConfig
	Last     []link.TouchState
	Touched  []tsc.PinID
	Errors   int
	Dropped  uint32
	Rejected uint32
	Capture  bool
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Config:   s.touchCfg,
		Errors:   s.errors,
		Dropped:  s.link.Dropped(),
		Rejected: s.link.Rejected(),
		Capture:  s.capture != nil,
	}
	for pin, r := range s.last {
		st.Last = append(st.Last, r)
		if s.detector.Touched(pin) {
			st.Touched = append(st.Touched, pin)
		}
	}
	return st
}

// Close stops any capture and closes the link.
func (s *Session) Close() error {
	if _, err := s.StopCapture(); err != nil {
		s.logger.Printf("capture: %v", err)
	}
	return s.link.Close()
}
