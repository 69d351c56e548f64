//go:build !linux

package hw

import (
	"errors"
	"log/slog"

	"periph.io/x/conn/v3/physic"
)

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

var errUnsupported = errors.New("hw: not supported")

// RealController is not available on non-Linux platforms.
type RealController struct{}

// NewRealController returns an error on non-Linux platforms.
func NewRealController(Config) (*RealController, error) {
	return nil, errors.New("hw: not supported on this platform (requires Linux)")
}

// Attach is a no-op on non-Linux platforms.
func (r *RealController) Attach(Interrupts) {}

// SetPWM is not implemented on non-Linux platforms.
func (r *RealController) SetPWM(bool) error { return errUnsupported }

// SetCompare is not implemented on non-Linux platforms.
func (r *RealController) SetCompare(uint8) error { return errUnsupported }

// SetLED is not implemented on non-Linux platforms.
func (r *RealController) SetLED(bool) error { return errUnsupported }

// SetDivider is not implemented on non-Linux platforms.
func (r *RealController) SetDivider(bool) error { return errUnsupported }

// SetADC is not implemented on non-Linux platforms.
func (r *RealController) SetADC(bool) error { return errUnsupported }

// StartConversion is not implemented on non-Linux platforms.
func (r *RealController) StartConversion() error { return errUnsupported }

// ButtonPressed is not implemented on non-Linux platforms.
func (r *RealController) ButtonPressed() (bool, error) { return false, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (r *RealController) Close() error {
	return nil
}
