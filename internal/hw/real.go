//go:build linux

package hw

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// conversionRetry is the delay between failed ADC reads.
const conversionRetry = 50 * time.Millisecond

// Config describes how the candle is wired to a Linux board.
type Config struct {
	Chip         string
	ButtonLine   int
	DividerLine  int
	LEDPin       string
	PWMFrequency physic.Frequency
	I2CBus       string
	ADCAddress   uint16
	ADCChannel   int
	Reference    physic.ElectricPotential
	Logger       *slog.Logger
}

var adcChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// RealController drives actual hardware: GPIO character device lines for
// the button and divider, a periph.io PWM pin for the LED and an ADS1115
// for the battery divider tap.
type RealController struct {
	cfg    Config
	log    *slog.Logger
	chip   *gpiocdev.Chip
	button *gpiocdev.Line
	div    *gpiocdev.Line
	led    gpio.PinIO
	bus    i2c.BusCloser
	adc    ads1x15.PinADC

	mu         sync.Mutex
	irq        Interrupts
	pwm        bool
	compare    uint8
	adcEnabled bool
	generation uint64 // bumped on ADC disable and conversion start to abort readers
	closed     bool
}

// NewRealController opens every line, pin and bus named in cfg.
func NewRealController(cfg Config) (*RealController, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ADCChannel < 0 || cfg.ADCChannel >= len(adcChannels) {
		return nil, fmt.Errorf("adc channel %d out of range", cfg.ADCChannel)
	}
	if cfg.Reference <= 0 {
		cfg.Reference = DefaultReference
	}

	r := &RealController{cfg: cfg, log: cfg.Logger.With("component", "hw")}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r.chip = chip

	// Button is active-low with the internal pull-up; only falling edges
	// are interrupts.
	button, err := chip.RequestLine(cfg.ButtonLine,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(r.handleEdge))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request button line %d: %w", cfg.ButtonLine, err)
	}
	r.button = button

	div, err := chip.RequestLine(cfg.DividerLine, gpiocdev.AsOutput(0))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request divider line %d: %w", cfg.DividerLine, err)
	}
	r.div = div

	led := gpioreg.ByName(cfg.LEDPin)
	if led == nil {
		r.Close()
		return nil, fmt.Errorf("led pin %q not found", cfg.LEDPin)
	}
	if err := led.Out(gpio.Low); err != nil {
		r.Close()
		return nil, fmt.Errorf("led pin %s: %w", cfg.LEDPin, err)
	}
	r.led = led

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	r.bus = bus

	dev, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.ADCAddress})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("open ads1115 at %#x: %w", cfg.ADCAddress, err)
	}
	pin, err := dev.PinForChannel(adcChannels[cfg.ADCChannel], 2048*physic.MilliVolt, 128*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("ads1115 channel %d: %w", cfg.ADCChannel, err)
	}
	r.adc = pin

	return r, nil
}

func (r *RealController) handleEdge(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	r.mu.Lock()
	irq := r.irq
	r.mu.Unlock()
	if irq != nil {
		irq.ButtonEdge()
	}
}

// Attach registers the interrupt sink.
func (r *RealController) Attach(irq Interrupts) {
	r.mu.Lock()
	r.irq = irq
	r.mu.Unlock()
}

// SetPWM connects or disconnects the PWM generator from the LED pin.
func (r *RealController) SetPWM(enabled bool) error {
	r.mu.Lock()
	r.pwm = enabled
	compare := r.compare
	r.mu.Unlock()

	if !enabled {
		if err := r.led.Out(gpio.Low); err != nil {
			return fmt.Errorf("disconnect pwm: %w", err)
		}
		return nil
	}
	return r.writeDuty(compare)
}

// SetCompare updates the duty cycle; it takes effect while PWM is connected.
func (r *RealController) SetCompare(level uint8) error {
	r.mu.Lock()
	r.compare = level
	pwm := r.pwm
	r.mu.Unlock()

	if !pwm {
		return nil
	}
	return r.writeDuty(level)
}

func (r *RealController) writeDuty(level uint8) error {
	duty := gpio.Duty(DutyFraction(level) * float64(gpio.DutyMax))
	if err := r.led.PWM(duty, r.cfg.PWMFrequency); err != nil {
		return fmt.Errorf("set pwm duty %d: %w", level, err)
	}
	return nil
}

// SetLED drives the LED pin directly.
func (r *RealController) SetLED(on bool) error {
	r.mu.Lock()
	pwm := r.pwm
	r.mu.Unlock()
	if pwm {
		return nil
	}
	if err := r.led.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// SetDivider drives the battery divider enable line.
func (r *RealController) SetDivider(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := r.div.SetValue(v); err != nil {
		return fmt.Errorf("set divider: %w", err)
	}
	return nil
}

// SetADC enables or disables the converter. Disabling aborts any read in flight.
func (r *RealController) SetADC(enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adcEnabled && !enabled {
		r.generation++
	}
	r.adcEnabled = enabled
	return nil
}

// StartConversion reads the divider tap on a goroutine and reports the
// result as a ConversionComplete interrupt.
func (r *RealController) StartConversion() error {
	r.mu.Lock()
	if !r.adcEnabled {
		r.mu.Unlock()
		return errors.New("start conversion: adc disabled")
	}
	r.generation++
	gen := r.generation
	r.mu.Unlock()

	go r.convert(gen)
	return nil
}

// current reports whether conversion gen is still the one in flight.
func (r *RealController) current(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.adcEnabled && r.generation == gen
}

func (r *RealController) convert(gen uint64) {
	for {
		sample, err := r.adc.Read()

		if !r.current(gen) {
			return
		}

		if err != nil {
			r.log.Warn("adc read failed, retrying", "err", err)
			time.Sleep(conversionRetry)
			continue
		}

		code := VoltageToCode(sample.V, r.cfg.Reference)
		r.log.Debug("adc sample", "tap", sample.V, "code", code)

		// The converter may be disabled and restarted between the check
		// above and delivery; the sink rechecks under its own lock.
		r.mu.Lock()
		irq := r.irq
		r.mu.Unlock()
		if irq != nil {
			irq.ConversionComplete(Conversion{
				Sample:  code,
				Current: func() bool { return r.current(gen) },
			})
		}
		return
	}
}

// ButtonPressed reads the current button level. Pressed is logical low.
func (r *RealController) ButtonPressed() (bool, error) {
	v, err := r.button.Value()
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	return v == 0, nil
}

// Close releases hardware resources.
// Lines are returned to inputs with pull-up so the divider is not left
// powered and the button keeps a defined level.
func (r *RealController) Close() error {
	r.mu.Lock()
	r.closed = true
	r.generation++
	r.mu.Unlock()

	var errs []error

	if r.adc != nil {
		if err := r.adc.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt adc: %w", err))
		}
	}
	if r.bus != nil {
		if err := r.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
		}
	}
	if r.led != nil {
		if err := r.led.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("clear led: %w", err))
		}
		if err := r.led.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt led: %w", err))
		}
	}
	if r.div != nil {
		if err := r.div.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure divider line: %w", err))
		}
		if err := r.div.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close divider line: %w", err))
		}
	}
	if r.button != nil {
		if err := r.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button line: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
