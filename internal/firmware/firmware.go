// Package firmware runs the candle state machine against a hardware Controller.
//
// Interrupt entry points (ButtonEdge, Tick, ConversionComplete) and the
// foreground pass all execute inside one critical section, so a handler
// never observes a half-finished pass and the pass never sees a torn
// handler update. After every step the register image is committed to the
// Controller and a wake is posted for the foreground loop.
package firmware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"

	"github.com/sweeney/candle/internal/hw"
	"github.com/sweeney/candle/internal/logic"
)

// Option configures a Firmware.
type Option func(*Firmware)

// WithClock sets the clock used by the tick source.
// Use this with clockz.FakeClock for deterministic tick testing.
func WithClock(clock clockz.Clock) Option {
	return func(f *Firmware) {
		f.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Firmware) {
		f.log = l
	}
}

// WithSignals sets the capitan instance lifecycle signals are emitted on.
// Use capitan.New(capitan.WithSyncMode()) in tests.
func WithSignals(c *capitan.Capitan) Option {
	return func(f *Firmware) {
		f.signals = c
	}
}

// WithTickPeriod overrides the tick period.
func WithTickPeriod(d time.Duration) Option {
	return func(f *Firmware) {
		f.period = d
	}
}

// Firmware owns the device context and serializes every access to it.
type Firmware struct {
	mu      sync.Mutex // held == interrupts suppressed
	dev     *logic.Device
	ctrl    hw.Controller
	applied logic.Registers
	synced  bool
	ctx     context.Context
	mode    logic.SleepMode

	wake    chan struct{}
	clock   clockz.Clock
	period  time.Duration
	log     *slog.Logger
	signals *capitan.Capitan
}

// New creates a Firmware in the OFF state, attaches it as the
// controller's interrupt sink and writes every register once.
func New(ctrl hw.Controller, seed uint64, opts ...Option) *Firmware {
	f := &Firmware{
		dev:    logic.NewDevice(seed),
		ctrl:   ctrl,
		ctx:    context.Background(),
		mode:   logic.SleepPowerDown,
		wake:   make(chan struct{}, 1),
		clock:  clockz.RealClock,
		period: logic.TickPeriod,
		log:    slog.Default(),

		signals: capitan.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With("component", "firmware")

	f.mu.Lock()
	f.commit(true)
	f.mu.Unlock()

	ctrl.Attach(f)
	return f
}

// ButtonEdge is the button falling-edge interrupt.
func (f *Firmware) ButtonEdge() {
	f.interrupt(f.dev.ButtonEdge)
}

// Tick is the periodic tick interrupt.
func (f *Firmware) Tick() {
	f.interrupt(func() []logic.Event {
		f.dev.Tick()
		return nil
	})
}

// ConversionComplete is the conversion-complete interrupt. A conversion
// the controller no longer considers current is dropped.
func (f *Firmware) ConversionComplete(c hw.Conversion) {
	f.interrupt(func() []logic.Event {
		if c.Current != nil && !c.Current() {
			f.log.Debug("stale conversion dropped", "code", c.Sample)
			return nil
		}
		f.dev.ConversionComplete(c.Sample)
		return nil
	})
}

func (f *Firmware) interrupt(fn func() []logic.Event) {
	f.critical(fn)
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Step runs one foreground pass.
func (f *Firmware) Step() {
	f.critical(f.dev.Pass)
}

// critical runs fn with interrupts suppressed, then commits registers and
// reports the events fn produced. A power change rewrites every register.
func (f *Firmware) critical(fn func() []logic.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := fn()
	f.commit(powerChanged(events))
	f.report(events)
}

func powerChanged(events []logic.Event) bool {
	for _, e := range events {
		if e.Type == logic.EventPowerOn || e.Type == logic.EventPowerOff {
			return true
		}
	}
	return false
}

// Run starts the tick source and runs the wake/process/sleep loop until
// ctx is cancelled. On exit the candle is forced off.
func (f *Firmware) Run(ctx context.Context) error {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()

	f.signals.Info(ctx, FirmwareStarted, KeyTickPeriod.Field(f.period))

	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		f.tickSource(ctx)
	}()

	for {
		if err := f.sleep(ctx); err != nil {
			break
		}
		f.Step()
	}

	<-tickDone
	f.critical(func() []logic.Event {
		f.ctx = context.WithoutCancel(ctx)
		return f.dev.SetState(logic.PowerOff)
	})
	f.signals.Info(context.WithoutCancel(ctx), FirmwareStopped)
	return nil
}

// Snapshot returns a copy of the device context.
func (f *Firmware) Snapshot() logic.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dev.Snapshot()
}

// commit writes register fields that changed since the previous commit.
// It writes everything when full is set, on the first commit and after any
// failed write. A conversion start that failed is retried while the
// register image still asks for one. Caller holds f.mu.
func (f *Firmware) commit(full bool) {
	want := f.dev.Registers()
	have := f.applied
	full = full || !f.synced
	ok := true

	if full || want.Compare != have.Compare {
		ok = f.write("compare", f.ctrl.SetCompare(want.Compare)) && ok
	}
	if full || want.PWMActive() != have.PWMActive() {
		ok = f.write("pwm", f.ctrl.SetPWM(want.PWMActive())) && ok
	}
	if full || want.LED != have.LED {
		ok = f.write("led", f.ctrl.SetLED(want.LED)) && ok
	}
	// Divider up before the converter, converter down before the divider.
	if (full || want.Divider != have.Divider) && want.Divider {
		ok = f.write("divider", f.ctrl.SetDivider(true)) && ok
	}
	if full || want.ADC != have.ADC {
		ok = f.write("adc", f.ctrl.SetADC(want.ADC)) && ok
	}
	if (full || want.Divider != have.Divider) && !want.Divider {
		ok = f.write("divider", f.ctrl.SetDivider(false)) && ok
	}
	started := have.Convert
	if want.Convert && !have.Convert {
		started = f.write("convert", f.ctrl.StartConversion())
	}

	f.applied = want
	f.applied.Convert = want.Convert && started
	f.synced = ok
}

// write reports whether a register write succeeded.
func (f *Firmware) write(register string, err error) bool {
	if err == nil {
		return true
	}
	f.signals.Error(f.ctx, RegisterWriteFailed,
		KeyRegister.Field(register),
		KeyError.Field(err.Error()),
	)
	return false
}

func (f *Firmware) report(events []logic.Event) {
	for _, e := range events {
		switch e.Type {
		case logic.EventPowerOn, logic.EventPowerOff:
			f.signals.Info(f.ctx, PowerChanged, KeyState.Field(e.Power.String()))
		case logic.EventConversionStarted:
			f.signals.Debug(f.ctx, ConversionStarted)
		case logic.EventBatteryOK:
			f.signals.Debug(f.ctx, BatterySampled, KeySample.Field(int(e.Sample)))
		case logic.EventBatteryLow:
			f.signals.Warn(f.ctx, BatteryLow,
				KeySample.Field(int(e.Sample)),
				KeyThreshold.Field(int(logic.LowBatteryThreshold)),
			)
		}
	}
}
