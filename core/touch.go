package core

import (
	"touchsense/protocol"
	"touchsense/tsc"
)

// touchService is the firmware's single TSC user. The controller is
// shared between command handlers, the sampler timer and the TSC
// interrupt, so every access goes through withController.
type touchService struct {
	ctrl *tsc.Controller
	cfg  tsc.Config

	// Registrations are kept so they can be replayed on a new controller.
	samples  []*tsc.Descriptor
	channels []*tsc.Descriptor
	listen   [3]bool // indexed by tsc.Event

	sampler sampler
	reports reportQueue
	wake    bool

	onReport func(pin tsc.PinID, group uint8, count uint16)
}

var touch touchService

// InitTouchCommands registers the touch commands and responses.
func InitTouchCommands() {
	RegisterCommand(protocol.CmdConfigTSC, "prescaler=%c max_count=%c ctph=%c ctpl=%c", handleConfigTSC)
	RegisterCommand(protocol.CmdConfigSample, "pin=%c", handleConfigSample)
	RegisterCommand(protocol.CmdConfigChannel, "pin=%c", handleConfigChannel)
	RegisterCommand(protocol.CmdDisableChannel, "pin=%c", handleDisableChannel)
	RegisterCommand(protocol.CmdQueryTouch, "rest_ticks=%u poll_ticks=%u", handleQueryTouch)
	RegisterCommand(protocol.CmdAcquireTouch, "", handleAcquireTouch)
	RegisterCommand(protocol.CmdStopTouch, "", handleStopTouch)
	RegisterCommand(protocol.CmdListenTouch, "event=%c enable=%c", handleListenTouch)

	RegisterResponse(protocol.RspTouchState, "pin=%c group=%c count=%hu clock=%u")
	RegisterResponse(protocol.RspTouchError, "pin=%c code=%c")
	RegisterResponse(protocol.RspTouchConfig, "version=%c cr=%u channels=%u")
}

// SetReportHook installs a callback run from TouchTask for every
// delivered reading, e.g. to refresh a display.
func SetReportHook(fn func(pin tsc.PinID, group uint8, count uint16)) {
	touch.onReport = fn
}

// withController runs fn on the controller inside a critical section.
func withController(fn func(c *tsc.Controller) error) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if touch.ctrl == nil {
		return ErrNotConfigured
	}
	return fn(touch.ctrl)
}

// ConfigureTouch creates the controller, or re-creates it with cfg,
// and replays the registered pins and interrupt sources.
func ConfigureTouch(cfg tsc.Config) {
	stopSampler()
	hw := MustTouch()

	state := disableInterrupts()
	defer restoreInterrupts(state)

	var regs tsc.RegisterBlock
	if touch.ctrl != nil {
		regs = touch.ctrl.Free()
	} else {
		regs = hw.Registers()
	}
	touch.cfg = cfg
	touch.ctrl = tsc.New(regs, hw.Clock(), &cfg)

	for _, p := range touch.samples {
		touch.ctrl.SetupSampleGroup(p)
	}
	for _, p := range touch.channels {
		touch.ctrl.EnableChannel(p)
	}
	for e, on := range touch.listen {
		if on {
			touch.ctrl.Listen(tsc.Event(e))
		}
	}
	RecordEvent(EvtConfig, protocol.NoPin, GetTime(), touch.ctrl.ControlWord())
}

func decodePin(data *[]byte) (*tsc.Descriptor, error) {
	v, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	// pin ids are one byte on the wire; anything wider is not a pin
	if v >= protocol.NoPin {
		return nil, &PinError{Pin: protocol.NoPin, Err: ErrBadArgument}
	}
	id := tsc.PinID(v)
	d, err := tsc.NewDescriptor(id, MustTouch().PinMux())
	if err != nil {
		return nil, &PinError{Pin: id, Err: err}
	}
	return d, nil
}

func addPin(list []*tsc.Descriptor, d *tsc.Descriptor) []*tsc.Descriptor {
	for _, p := range list {
		if p.ID() == d.ID() {
			return list
		}
	}
	return append(list, d)
}

func removePin(list []*tsc.Descriptor, id tsc.PinID) []*tsc.Descriptor {
	for i, p := range list {
		if p.ID() == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// handleConfigTSC (re)creates the controller and answers touch_config.
// Zero arguments select the driver defaults.
func handleConfigTSC(data *[]byte) error {
	var args [4]uint32
	for i := range args {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		args[i] = v
	}

	ConfigureTouch(tsc.Config{
		ClockPrescale:      tsc.ClockPrescaler(args[0]),
		MaxCount:           tsc.MaxCount(args[1]),
		ChargeTransferHigh: tsc.ChargeDischargeTime(args[2]),
		ChargeTransferLow:  tsc.ChargeDischargeTime(args[3]),
	})
	return sendTouchConfig()
}

func sendTouchConfig() error {
	var cr, channels uint32
	err := withController(func(c *tsc.Controller) error {
		cr = c.ControlWord()
		channels = c.ChannelMask()
		return nil
	})
	if err != nil {
		return err
	}

	SendResponse(protocol.RspTouchConfig, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, protocol.Version)
		protocol.EncodeVLQUint(output, cr)
		protocol.EncodeVLQUint(output, channels)
	})
	return nil
}

// handleConfigSample registers a sampling capacitor pin. Before
// config_tsc the pin is only remembered.
func handleConfigSample(data *[]byte) error {
	d, err := decodePin(data)
	if err != nil {
		return err
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	touch.samples = addPin(touch.samples, d)
	if touch.ctrl != nil {
		touch.ctrl.SetupSampleGroup(d)
	}
	return nil
}

// handleConfigChannel arms a channel pin.
func handleConfigChannel(data *[]byte) error {
	d, err := decodePin(data)
	if err != nil {
		return err
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	touch.channels = addPin(touch.channels, d)
	if touch.ctrl != nil {
		touch.ctrl.EnableChannel(d)
	}
	return nil
}

// handleDisableChannel disarms a channel pin.
func handleDisableChannel(data *[]byte) error {
	d, err := decodePin(data)
	if err != nil {
		return err
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	touch.channels = removePin(touch.channels, d.ID())
	if touch.ctrl != nil {
		touch.ctrl.DisableChannel(d)
	}
	return nil
}

// handleQueryTouch starts periodic sampling; rest_ticks of 0 stops it.
func handleQueryTouch(data *[]byte) error {
	rest, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	poll, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	if rest == 0 {
		stopSampler()
		return nil
	}
	return startSampler(rest, poll)
}

// handleAcquireTouch runs one blocking acquisition and queues a report
// for every armed channel. TouchTask sends them.
func handleAcquireTouch(data *[]byte) error {
	if samplerActive() {
		return ErrBusy
	}

	now := GetTime()
	return withController(func(c *tsc.Controller) error {
		RecordEvent(EvtAcquireStart, protocol.NoPin, now, c.ChannelMask())
		if err := c.Acquire(); err != nil {
			RecordEvent(EvtMaxCount, protocol.NoPin, now, 0)
			return err
		}
		RecordEvent(EvtAcquireDone, protocol.NoPin, now, c.ChannelMask())
		for _, p := range touch.channels {
			queueReport(readChannel(c, p, now), now)
		}
		touch.wake = true
		return nil
	})
}

func handleStopTouch(data *[]byte) error {
	stopSampler()
	return nil
}

// handleListenTouch enables or disables the interrupt for an event
// (1 end of acquisition, 2 max count error).
func handleListenTouch(data *[]byte) error {
	ev, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	enable, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	e := tsc.Event(ev)
	if e != tsc.EndOfAcquisition && e != tsc.MaxCountError {
		return ErrBadArgument
	}

	state := disableInterrupts()
	defer restoreInterrupts(state)
	touch.listen[e] = enable != 0
	if touch.ctrl == nil {
		return nil
	}
	if enable != 0 {
		touch.ctrl.Listen(e)
	} else {
		touch.ctrl.Unlisten(e)
	}
	return nil
}

// readChannel turns one channel read into a report.
func readChannel(c *tsc.Controller, p *tsc.Descriptor, now uint32) touchReport {
	count, err := c.Read(p)
	if err != nil {
		RecordEvent(EvtInvalidRead, uint8(p.ID()), now, 0)
		return touchReport{id: protocol.RspTouchError, pin: uint8(p.ID()), code: ErrorCode(err)}
	}
	return touchReport{
		id:    protocol.RspTouchState,
		pin:   uint8(p.ID()),
		group: p.Group(),
		count: count,
		clock: now,
	}
}

// reportsPerTask bounds the frames one TouchTask call adds to the output
// buffer.
const reportsPerTask = 8

// TouchTask sends the readings queued by the sampler. It runs in task
// context from the main loop.
func TouchTask() {
	state := disableInterrupts()
	if !touch.wake {
		restoreInterrupts(state)
		return
	}
	touch.wake = false
	restoreInterrupts(state)

	for i := 0; i < reportsPerTask && canSend(); i++ {
		state := disableInterrupts()
		r, ok := touch.reports.pop()
		restoreInterrupts(state)
		if !ok {
			return
		}
		sendReport(r)
	}
	// the rest go out on the next pass, after the output is flushed
	wakeTouchTask()
}

func wakeTouchTask() {
	state := disableInterrupts()
	touch.wake = true
	restoreInterrupts(state)
}

func sendReport(r touchReport) {
	if r.id == protocol.RspTouchError {
		sendTouchError(r.pin, r.code)
		return
	}

	SendResponse(protocol.RspTouchState, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(r.pin))
		protocol.EncodeVLQUint(output, uint32(r.group))
		protocol.EncodeVLQUint(output, uint32(r.count))
		protocol.EncodeVLQUint(output, r.clock)
	})
	if touch.onReport != nil {
		touch.onReport(tsc.PinID(r.pin), r.group, r.count)
	}
}

// DumpTouchState writes the controller registers and sampler state to the
// debug writer.
func DumpTouchState() {
	var cr, channels uint32
	var state tsc.AcquisitionState
	err := withController(func(c *tsc.Controller) error {
		cr = c.ControlWord()
		channels = c.ChannelMask()
		state = c.State()
		return nil
	})
	if err != nil {
		DebugPrintln("[TSC] not configured")
		return
	}
	DebugPrintln("[TSC] cr=" + hex8(cr) + " channels=" + hex8(channels) +
		" state=" + state.String() + " dropped=" + utoa(touch.reports.dropped))
}

// ResetTouchService drops the controller and every registration, as
// after a power cycle. The register block is not touched.
func ResetTouchService() {
	stopSampler()

	state := disableInterrupts()
	touch = touchService{}
	restoreInterrupts(state)
}
