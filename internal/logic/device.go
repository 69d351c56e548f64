package logic

import "math/rand/v2"

// pcgStream is the fixed increment half of the PCG state.
const pcgStream = 0xda3e39cb94b95bdb

// Device is the candle's device context. Interrupt entry points
// (ButtonEdge, Tick, ConversionComplete) mutate only their own fields;
// decision logic lives in Pass.
type Device struct {
	regs     Registers
	power    PowerState
	adc      AdcState
	ticks    uint32 // TickCounter
	debounce uint8  // DebounceCounter
	tickFlag bool   // WakeFlags
	level    uint8  // FlickerLevel
	counts   EventCounts
	rng      *rand.Rand
}

// NewDevice creates a device in the OFF state with the flicker generator
// seeded from seed.
func NewDevice(seed uint64) *Device {
	return &Device{
		rng:   rand.New(rand.NewPCG(seed, pcgStream)),
		level: FlickerMin,
		regs:  Registers{Compare: FlickerMin},
	}
}

// SetState drives the power state and rewrites the registers it owns.
// Writes happen even when the state does not change.
func (d *Device) SetState(s PowerState) []Event {
	if s == PowerOn {
		d.regs.PWM = true
		d.regs.Timer = true
		d.regs.CompareIRQ = true
		d.power = PowerOn
		return []Event{{Type: EventPowerOn, Power: PowerOn}}
	}

	d.power = PowerOff
	d.regs.PWM = false
	d.regs.Timer = false
	d.regs.CompareIRQ = false
	d.regs.LED = false
	d.regs.Divider = false
	d.regs.ADC = false
	d.regs.Convert = false
	d.ticks = 0
	d.adc = AdcIdle
	return []Event{{Type: EventPowerOff, Power: PowerOff}}
}

// Toggle inverts the power state.
func (d *Device) Toggle() []Event {
	if d.power == PowerOn {
		return d.SetState(PowerOff)
	}
	return d.SetState(PowerOn)
}

// ButtonEdge handles a falling edge on the button input. The edge toggles
// power only if a full debounce window elapsed since the previous edge.
// The window restarts on every edge, accepted or not.
func (d *Device) ButtonEdge() []Event {
	var events []Event
	if d.debounce >= DebounceTicks {
		events = d.Toggle()
		d.counts.Toggles++
	}
	d.debounce = 0
	return events
}

// Tick handles the periodic tick interrupt.
func (d *Device) Tick() {
	d.tickFlag = true
	if d.power == PowerOn {
		d.ticks++
	}
	if d.debounce < DebounceTicks {
		d.debounce++
	}
}

// ConversionComplete latches a finished sample. Completions that do not
// match a running conversion are dropped.
func (d *Device) ConversionComplete(sample uint16) {
	if d.adc != AdcConverting {
		return
	}
	d.regs.Result = sample
	d.regs.Convert = false
	d.adc = AdcDone
}

// Pass runs one foreground pass: battery monitor, then flicker. The tick
// flag is always cleared on return.
func (d *Device) Pass() []Event {
	var events []Event

	if d.power == PowerOn {
		if d.ticks > TicksPerSample && d.adc == AdcIdle {
			d.ticks = 0
			d.regs.Divider = true
			d.regs.ADC = true
			d.regs.Convert = true
			d.adc = AdcConverting
			d.counts.Conversions++
			events = append(events, Event{Type: EventConversionStarted, Power: d.power})
		}

		if d.adc == AdcDone {
			events = append(events, d.checkBattery()...)
		}

		if d.tickFlag && d.power == PowerOn {
			d.flicker()
		}
	}

	d.tickFlag = false
	return events
}

// checkBattery consumes a completed sample and returns the ADC to idle.
func (d *Device) checkBattery() []Event {
	sample := d.regs.Result
	var events []Event
	if sample < LowBatteryThreshold {
		d.counts.LowBattery++
		events = append(events, Event{Type: EventBatteryLow, Power: d.power, Sample: sample})
		events = append(events, d.SetState(PowerOff)...)
	} else {
		events = append(events, Event{Type: EventBatteryOK, Power: d.power, Sample: sample})
	}
	d.regs.ADC = false
	d.regs.Convert = false
	d.regs.Divider = false
	d.adc = AdcIdle
	return events
}

func (d *Device) flicker() {
	d.level = uint8(FlickerMin + d.rng.IntN(FlickerSpan))
	d.regs.Compare = d.level
}

// SleepMode returns the deepest safe idle mode for the current state.
func (d *Device) SleepMode() SleepMode {
	if d.power == PowerOn {
		return SleepIdle
	}
	return SleepPowerDown
}

// Power returns the current power state.
func (d *Device) Power() PowerState {
	return d.power
}

// Registers returns a copy of the register image.
func (d *Device) Registers() Registers {
	return d.regs
}

// Snapshot returns a copy of the device context.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{
		Power:     d.power,
		Adc:       d.adc,
		Ticks:     d.ticks,
		Debounce:  d.debounce,
		TickFlag:  d.tickFlag,
		Level:     d.level,
		Registers: d.regs,
		Counts:    d.counts,
	}
}
