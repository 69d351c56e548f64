package firmware

import "github.com/zoobzio/capitan"

// Firmware lifecycle signals.
var (
	// FirmwareStarted is emitted when the foreground loop starts.
	FirmwareStarted = capitan.NewSignal(
		"candle.firmware.started",
		"Foreground loop started",
	)

	// FirmwareStopped is emitted after the loop exits and the candle is off.
	FirmwareStopped = capitan.NewSignal(
		"candle.firmware.stopped",
		"Foreground loop stopped",
	)
)

// Power and battery signals.
var (
	// PowerChanged is emitted on every setState.
	PowerChanged = capitan.NewSignal(
		"candle.power.changed",
		"Power state written",
	)

	// ConversionStarted is emitted when the battery monitor starts a conversion.
	ConversionStarted = capitan.NewSignal(
		"candle.battery.conversion.started",
		"Battery conversion started",
	)

	// BatterySampled is emitted when a sample is at or above the cutoff.
	BatterySampled = capitan.NewSignal(
		"candle.battery.sampled",
		"Battery sample above cutoff",
	)

	// BatteryLow is emitted when a sample forces the candle off.
	BatteryLow = capitan.NewSignal(
		"candle.battery.low",
		"Battery below cutoff, forcing off",
	)

	// RegisterWriteFailed is emitted when the controller rejects a write.
	RegisterWriteFailed = capitan.NewSignal(
		"candle.register.write.failed",
		"Register write failed",
	)
)

// Field keys for firmware signals.
var (
	// KeyState is the power state after the event.
	KeyState = capitan.NewStringKey("state")

	// KeySample is the raw battery code.
	KeySample = capitan.NewIntKey("sample")

	// KeyThreshold is the low-battery cutoff code.
	KeyThreshold = capitan.NewIntKey("threshold")

	// KeyRegister names the register that failed to write.
	KeyRegister = capitan.NewStringKey("register")

	// KeyError is the error message when a write fails.
	KeyError = capitan.NewStringKey("error")

	// KeyTickPeriod is the tick source period.
	KeyTickPeriod = capitan.NewDurationKey("tick_period")
)
