package hw

import (
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestVoltageToCode(t *testing.T) {
	tests := []struct {
		name string
		v    physic.ElectricPotential
		want uint16
	}{
		{"zero", 0, 0},
		{"negative", -10 * physic.MilliVolt, 0},
		{"half reference", 550 * physic.MilliVolt, 512},
		{"cutoff tap", 750 * physic.MilliVolt, 698},
		{"just under reference", 1099 * physic.MilliVolt, 1023},
		{"at reference", 1100 * physic.MilliVolt, CodeMax},
		{"above reference", 3 * physic.Volt, CodeMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VoltageToCode(tt.v, DefaultReference)
			if got != tt.want {
				t.Errorf("VoltageToCode(%v) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}

func TestVoltageToCodeZeroReference(t *testing.T) {
	if got := VoltageToCode(physic.Volt, 0); got != 0 {
		t.Errorf("expected 0 for zero reference, got %d", got)
	}
}

func TestCodeToVoltage(t *testing.T) {
	v := CodeToVoltage(512, DefaultReference)
	if v != 550*physic.MilliVolt {
		t.Errorf("expected 550mV, got %v", v)
	}
	if back := VoltageToCode(v, DefaultReference); back != 512 {
		t.Errorf("round trip: expected 512, got %d", back)
	}
}

func TestDutyFraction(t *testing.T) {
	if DutyFraction(0) != 0 {
		t.Error("expected 0 duty")
	}
	if DutyFraction(255) != 1 {
		t.Error("expected full duty")
	}
}
