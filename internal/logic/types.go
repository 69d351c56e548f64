// Package logic contains the pure candle state machine.
// This package has NO external dependencies (no GPIO, ADC, OS, goroutines or clocks).
// Interrupts and the foreground pass are plain method calls; the caller
// provides mutual exclusion.
package logic

import "time"

// Behavioural constants. These must not be made configurable.
const (
	// TicksPerSample is the battery sample cadence (~10 s of ON time).
	// A conversion starts once TickCounter exceeds it.
	TicksPerSample = 76

	// LowBatteryThreshold is the raw 10-bit code (1.1 V reference) below
	// which the candle is forced off. 698 corresponds to a 3000 mV cutoff.
	LowBatteryThreshold uint16 = 698

	// DebounceTicks is the saturation point of DebounceCounter. An edge is
	// accepted only once the counter has reached it.
	DebounceTicks = 3

	// FlickerMin and FlickerSpan bound FlickerLevel to [128, 255].
	FlickerMin  = 128
	FlickerSpan = 128

	// TickPeriod is the period of the watchdog-style tick source.
	TickPeriod = 128 * time.Millisecond
)

// PowerState governs whether the PWM, timer and ADC are active.
type PowerState uint8

const (
	PowerOff PowerState = iota
	PowerOn
)

func (s PowerState) String() string {
	if s == PowerOn {
		return "ON"
	}
	return "OFF"
}

// AdcState is strictly cyclic: Idle -> Converting -> Done -> Idle.
type AdcState uint8

const (
	AdcIdle AdcState = iota
	AdcConverting
	AdcDone
)

func (s AdcState) String() string {
	switch s {
	case AdcIdle:
		return "IDLE"
	case AdcConverting:
		return "CONVERTING"
	case AdcDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// SleepMode is the idle mode chosen after a foreground pass.
type SleepMode uint8

const (
	// SleepPowerDown stops everything but the tick and button wake sources.
	SleepPowerDown SleepMode = iota
	// SleepIdle keeps the PWM timer and ADC running.
	SleepIdle
)

func (m SleepMode) String() string {
	if m == SleepIdle {
		return "IDLE"
	}
	return "POWER_DOWN"
}

// Registers is the control-register image the state machine writes.
// Hardware bindings mirror it; nothing here touches real hardware.
type Registers struct {
	PWM        bool   // waveform generator connected to the LED pin
	Timer      bool   // timer clock running
	CompareIRQ bool   // compare-match interrupt enabled
	Compare    uint8  // PWM compare value (duty)
	LED        bool   // LED output latch when PWM is disconnected
	Divider    bool   // battery divider enable output
	ADC        bool   // converter enabled
	Convert    bool   // start-conversion bit; cleared on completion
	Result     uint16 // latched conversion result
}

// PWMActive reports whether the LED pin is driven by the PWM generator.
func (r Registers) PWMActive() bool {
	return r.PWM && r.Timer
}

// EventType identifies something the state machine did.
type EventType string

const (
	EventPowerOn           EventType = "POWER_ON"
	EventPowerOff          EventType = "POWER_OFF"
	EventConversionStarted EventType = "CONVERSION_STARTED"
	EventBatteryOK         EventType = "BATTERY_OK"
	EventBatteryLow        EventType = "BATTERY_LOW"
)

// Event is returned from state machine steps for logging and signalling.
type Event struct {
	Type   EventType
	Power  PowerState // power state after the event
	Sample uint16     // battery sample, BATTERY_* only
}

// EventCounts tracks the number of each event type since boot.
type EventCounts struct {
	Toggles     int
	Conversions int
	LowBattery  int
}

// Snapshot is a point-in-time copy of the device context.
type Snapshot struct {
	Power     PowerState
	Adc       AdcState
	Ticks     uint32
	Debounce  uint8
	TickFlag  bool
	Level     uint8
	Registers Registers
	Counts    EventCounts
}
