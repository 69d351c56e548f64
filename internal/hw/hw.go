// Package hw provides the candle's control-register surface with hardware abstraction.
// The real implementation uses the Linux GPIO character device, a PWM-capable
// pin and an I2C ADC.
// The fake implementation allows testing without hardware.
package hw

// Controller applies register writes to the hardware.
// Every method rewrites the hardware even if the value is unchanged.
type Controller interface {
	// Attach registers the interrupt sink. Interrupts are not delivered
	// before Attach is called.
	Attach(irq Interrupts)

	// SetPWM connects (true) or disconnects the PWM generator from the LED pin.
	SetPWM(enabled bool) error

	// SetCompare sets the PWM compare value (0-255).
	SetCompare(level uint8) error

	// SetLED drives the LED pin while the PWM generator is disconnected.
	SetLED(on bool) error

	// SetDivider drives the battery divider enable output.
	SetDivider(on bool) error

	// SetADC enables or disables the converter. Disabling aborts a
	// conversion in flight.
	SetADC(enabled bool) error

	// StartConversion begins one conversion. Completion is reported via
	// Interrupts.ConversionComplete.
	StartConversion() error

	// Close releases hardware resources.
	Close() error
}

// Interrupts receives hardware interrupts. Implementations must return
// quickly and must not call back into the Controller.
type Interrupts interface {
	// ButtonEdge reports a falling edge on the button input.
	ButtonEdge()

	// ConversionComplete reports a finished conversion.
	ConversionComplete(c Conversion)
}

// Conversion is one finished battery conversion.
type Conversion struct {
	// Sample is a 10-bit code against the 1.1 V reference.
	Sample uint16

	// Current reports whether the converter is still enabled and has not
	// been restarted since this conversion began. The sink calls it under
	// the same lock it holds while writing SetADC and StartConversion, so
	// the check and the latch are atomic. Nil means always current.
	Current func() bool
}

// Default line offsets and pin names (Raspberry Pi BCM numbering).
const (
	DefaultChip        = "gpiochip0"
	DefaultButtonLine  = 17
	DefaultDividerLine = 27
	DefaultLEDPin      = "GPIO18"
)
