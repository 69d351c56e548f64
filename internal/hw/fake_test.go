package hw

import (
	"errors"
	"testing"
)

type recordingIRQ struct {
	edges       int
	conversions []Conversion
}

func (r *recordingIRQ) ButtonEdge() { r.edges++ }

func (r *recordingIRQ) ConversionComplete(c Conversion) {
	r.conversions = append(r.conversions, c)
}

func TestFakeControllerRecordsWrites(t *testing.T) {
	f := NewFakeController()

	f.SetPWM(true)
	f.SetCompare(200)
	f.SetDivider(true)
	f.SetADC(true)
	f.StartConversion()
	f.SetLED(false)

	want := []Call{
		{"pwm", 1},
		{"compare", 200},
		{"divider", 1},
		{"adc", 1},
		{"convert", 1},
		{"led", 0},
	}
	if len(f.Calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(f.Calls), f.Calls)
	}
	for i, c := range want {
		if f.Calls[i] != c {
			t.Errorf("call %d: expected %v, got %v", i, c, f.Calls[i])
		}
	}

	pwm, compare, led, divider, adc := f.State()
	if !pwm || compare != 200 || led || !divider || !adc {
		t.Errorf("unexpected state: pwm=%v compare=%d led=%v divider=%v adc=%v", pwm, compare, led, divider, adc)
	}
	if f.ConversionCount() != 1 {
		t.Errorf("expected 1 conversion, got %d", f.ConversionCount())
	}
}

func TestFakeControllerInterrupts(t *testing.T) {
	f := NewFakeController()

	// No sink attached yet: interrupts are dropped.
	f.PressButton()
	f.CompleteConversion(1)

	irq := &recordingIRQ{}
	f.Attach(irq)
	f.PressButton()
	f.PressButton()
	f.CompleteConversion(700)

	if irq.edges != 2 {
		t.Errorf("expected 2 edges, got %d", irq.edges)
	}
	if len(irq.conversions) != 1 || irq.conversions[0].Sample != 700 {
		t.Fatalf("expected one sample of 700, got %v", irq.conversions)
	}
}

func TestFakeControllerConversionCurrent(t *testing.T) {
	f := NewFakeController()
	irq := &recordingIRQ{}
	f.Attach(irq)

	f.SetADC(true)
	f.StartConversion()
	f.CompleteConversion(700)
	if !irq.conversions[0].Current() {
		t.Error("conversion in flight should be current")
	}

	stale := f.CaptureConversion()
	f.SetADC(false)
	f.SetADC(true)
	f.StartConversion()
	stale(650)
	if irq.conversions[1].Current() {
		t.Error("conversion from before the restart should not be current")
	}

	f.CompleteConversion(720)
	if !irq.conversions[2].Current() {
		t.Error("restarted conversion should be current")
	}
	f.SetADC(false)
	if irq.conversions[2].Current() {
		t.Error("conversion should not be current once the converter is disabled")
	}
}

func TestFakeControllerError(t *testing.T) {
	f := NewFakeController()
	f.WriteError = errors.New("simulated error")

	err := f.SetDivider(true)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Divider {
		t.Error("write should still be recorded")
	}

	f.FailWrites(nil)
	if err := f.SetDivider(false); err != nil {
		t.Errorf("expected writes to succeed after FailWrites(nil), got %v", err)
	}
}

func TestFakeControllerClose(t *testing.T) {
	f := NewFakeController()

	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeControllerReset(t *testing.T) {
	f := NewFakeController()
	f.SetPWM(true)
	f.StartConversion()
	f.Close()

	f.Reset()

	if len(f.Calls) != 0 || f.Conversions != 0 || f.Closed {
		t.Errorf("reset did not clear: calls=%d conversions=%d closed=%v", len(f.Calls), f.Conversions, f.Closed)
	}
}
