// Package ctl assembles the real-time controller: the shared tick scheduler,
// the command parser, the excitation timer, the synthesizer programmer, the
// frame capture pipeline and the startup configuration sequencer, plus the
// byte rings that connect the tick loop to the host transport.
package ctl

import (
	"sync"
	"sync/atomic"

	"qnos-go/bus"
	"qnos-go/ctl/capture"
	"qnos-go/ctl/excite"
	"qnos-go/ctl/proto"
	"qnos-go/ctl/synth"
	"qnos-go/ctl/twowire"
	"qnos-go/errcode"
	"qnos-go/hw"
	"qnos-go/types"
	"qnos-go/x/bytering"
)

// Controller owns every machine on the fabric and steps them in lockstep.
// Step and Run must be called from a single goroutine; the transport rings
// are the only concurrency boundary.
type Controller struct {
	cfg Config

	sched *hw.Scheduler
	rx    *bytering.Ring
	tx    *bytering.Ring

	scl *hw.Wire
	sda *hw.Wire

	master *twowire.Master
	seqr   *twowire.Sequencer
	cap    *capture.Controller
	syn    *synth.Programmer
	exc    *excite.Timer
	parser *proto.Machine

	conn *bus.Connection

	tickCount  atomic.Uint64
	mu         sync.Mutex
	lastFault  types.Fault
	faultCount int
	haveFault  bool
	cfgDone    bool

	// Monitor edge state.
	seenCfg  bool
	synthSeq uint32
	capSeq   uint32
}

// New builds the controller. conn may be nil when no event bus is wanted.
func New(cfg Config, conn *bus.Connection) *Controller {
	cfg.withDefaults()

	c := &Controller{
		cfg:   cfg,
		sched: hw.NewScheduler(),
		rx:    bytering.New(cfg.RxBuf),
		tx:    bytering.New(cfg.TxBuf),
		scl:   hw.NewWire(),
		sda:   hw.NewWire(),
		conn:  conn,
	}

	f := &c.sched.Fabric
	c.master = twowire.NewMaster(f, c.scl, c.sda, cfg.TwoWireDiv)
	c.seqr = twowire.NewSequencer(c.master, cfg.CamAddr, cfg.Table)
	c.cap = capture.New(f, cfg.Width, cfg.Height, cfg.CaptureTimeoutTicks)
	c.syn = synth.New(f, cfg.SynthDiv, cfg.LockTimeoutTicks)
	c.exc = excite.New(f)

	c.parser = proto.New(proto.Deps{
		Rx:         c.rx,
		Tx:         c.tx,
		Excite:     c.exc,
		Synth:      c.syn,
		Capture:    c.cap,
		TicksPerMS: cfg.TicksPerMS(),
		Hooks: proto.Hooks{
			Error: c.onProtoError,
			Fired: c.onFired,
		},
	})

	c.sched.Register(c.master, c.seqr, c.cap, c.syn, c.exc, c.parser, (*monitor)(c))

	c.publishState("boot", "configuring", false)
	return c
}

// Rx is the host-to-controller byte ring: the transport reader feeds it.
func (c *Controller) Rx() *bytering.Ring { return c.rx }

// Tx is the controller-to-host byte ring: the transport writer drains it.
func (c *Controller) Tx() *bytering.Ring { return c.tx }

// Step advances every machine by one tick.
func (c *Controller) Step() {
	c.sched.Step()
	c.tickCount.Store(c.sched.Ticks())
}

// Run advances n ticks.
func (c *Controller) Run(n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

// Ticks reports the tick counter. Safe from any goroutine.
func (c *Controller) Ticks() uint64 { return c.tickCount.Load() }

// Reset returns every machine to power-on state and clears the latched
// fault. The transport rings are drained too.
func (c *Controller) Reset() {
	c.sched.Reset()
	c.tickCount.Store(0)
	hw.ResetWires(c.scl, c.sda)
	c.rx.Reset()
	c.tx.Reset()

	c.mu.Lock()
	c.lastFault = types.Fault{}
	c.faultCount = 0
	c.haveFault = false
	c.cfgDone = false
	c.mu.Unlock()

	c.seenCfg = false
	c.synthSeq = 0
	c.capSeq = 0

	c.publishState("boot", "configuring", false)
}

// Attach registers extra machines (simulated peripherals) on the fabric.
// Call before the first Step.
func (c *Controller) Attach(ms ...hw.Machine) { c.sched.Register(ms...) }

// Fabric exposes the latch fabric for attaching simulated peripherals.
func (c *Controller) Fabric() *hw.Fabric { return &c.sched.Fabric }

// Wires exposes the configuration bus lines for attaching a peripheral.
func (c *Controller) Wires() (scl, sda *hw.Wire) { return c.scl, c.sda }

// Synth exposes the synthesizer programmer, mainly for lock-detect wiring.
func (c *Controller) Synth() *synth.Programmer { return c.syn }

// Capture exposes the frame capture controller for pixel-source wiring.
func (c *Controller) Capture() *capture.Controller { return c.cap }

// Excite exposes the excitation timer.
func (c *Controller) Excite() *excite.Timer { return c.exc }

// Master exposes the two-wire bus master.
func (c *Controller) Master() *twowire.Master { return c.master }

// ConfigDone reports whether the startup register sequence has finished.
func (c *Controller) ConfigDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfgDone
}

// Fault returns the latched fault, whether one is latched, and the total
// fault count since the last reset.
func (c *Controller) Fault() (f types.Fault, latched bool, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFault, c.haveFault, c.faultCount
}

// ----- fault latching and bus events -----

func (c *Controller) latchFault(code errcode.Code, detail string) {
	c.mu.Lock()
	c.faultCount++
	c.lastFault = types.Fault{
		Code:   string(code),
		Detail: detail,
		Count:  c.faultCount,
		Tick:   c.sched.Ticks(),
	}
	c.haveFault = true
	f := c.lastFault
	c.mu.Unlock()

	c.publish(bus.Topic{"ctl", "fault"}, f, true)
}

func (c *Controller) onProtoError(code errcode.Code) {
	c.latchFault(code, "protocol")
}

func (c *Controller) onFired(row, col uint8, durationMS uint32) {
	c.publish(bus.Topic{"ctl", "laser", "fired"}, types.LaserInfo{
		Row:        int(row),
		Col:        int(col),
		DurationMS: durationMS,
		Tick:       c.sched.Ticks(),
	}, false)
}

func (c *Controller) publish(topic bus.Topic, payload any, retained bool) {
	if c.conn == nil {
		return
	}
	c.conn.Publish(c.conn.NewMessage(topic, payload, retained))
}

func (c *Controller) publishState(level, status string, done bool) {
	c.publish(bus.Topic{"ctl", "state"}, types.ControllerState{
		Level:      level,
		Status:     status,
		ConfigDone: done,
		Tick:       c.sched.Ticks(),
	}, true)
}

// ----- monitor machine -----

// monitor watches the other machines for completion edges and turns them
// into bus events and latched faults. It runs on the fabric like any other
// machine so it observes the same committed state the rest do.
type monitor Controller

func (m *monitor) Name() string { return "monitor" }

func (m *monitor) Reset() {}

func (m *monitor) Tick() {
	c := (*Controller)(m)

	if !c.seenCfg && c.seqr.Done() {
		c.seenCfg = true
		res := c.seqr.Result()

		c.mu.Lock()
		c.cfgDone = true
		c.mu.Unlock()

		c.publish(bus.Topic{"ctl", "config", "done"}, res, true)
		if res.Failed > 0 {
			c.latchFault(errcode.ConfigFailed, "register writes nacked")
		}
		c.publishState("ready", "configured", true)
	}

	if seq, pl, locked := c.syn.Completed(); seq != c.synthSeq {
		c.synthSeq = seq
		c.publish(bus.Topic{"ctl", "pulse", "done"}, types.PulseInfo{
			Index:    pl.Index,
			FreqMHz:  pl.FreqMHz,
			Amp:      pl.Amp,
			Duration: pl.Duration,
			Phase:    pl.Phase,
			Locked:   locked,
			Tick:     c.sched.Ticks(),
		}, false)
		if !locked {
			c.latchFault(errcode.LockTimeout, "synthesizer lock detect")
		}
	}

	if seq, timedOut := c.cap.Completed(); seq != c.capSeq {
		c.capSeq = seq
		buffer, pixels, dark := c.cap.LastFrame()
		c.publish(bus.Topic{"ctl", "capture", "done"}, types.CaptureInfo{
			Width:    c.cap.Width(),
			Height:   c.cap.Height(),
			Pixels:   pixels,
			Buffer:   buffer,
			Dark:     dark,
			TimedOut: timedOut,
			Tick:     c.sched.Ticks(),
		}, false)
	}
}
