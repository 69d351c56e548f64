package hw

import "periph.io/x/conn/v3/physic"

// ADC code scale shared by every binding. The battery logic compares
// against 10-bit codes taken with a 1.1 V reference; external converters
// are re-expressed on that scale.
const (
	CodeMax          = 1023
	codeSteps        = 1024
	DefaultReference = 1100 * physic.MilliVolt
)

// VoltageToCode converts a measured divider tap voltage to the equivalent
// 10-bit code against ref. Negative readings clamp to 0, readings at or
// above ref clamp to CodeMax.
func VoltageToCode(v, ref physic.ElectricPotential) uint16 {
	if v <= 0 || ref <= 0 {
		return 0
	}
	code := int64(v) * codeSteps / int64(ref)
	if code > CodeMax {
		return CodeMax
	}
	return uint16(code)
}

// CodeToVoltage is the inverse of VoltageToCode, used for log output.
func CodeToVoltage(code uint16, ref physic.ElectricPotential) physic.ElectricPotential {
	return physic.ElectricPotential(int64(code) * int64(ref) / codeSteps)
}

// DutyFraction maps a compare value to a duty cycle in [0, 1].
func DutyFraction(level uint8) float64 {
	return float64(level) / 255
}
