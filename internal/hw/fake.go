package hw

import "sync"

// Call is a single recorded register write.
type Call struct {
	Op    string
	Value int
}

// FakeController is a test double that records register writes and lets
// tests raise interrupts.
type FakeController struct {
	mu sync.Mutex

	// Calls contains every write in order.
	Calls []Call

	// Current register state as last written.
	PWM     bool
	Compare uint8
	LED     bool
	Divider bool
	ADC     bool

	// Conversions counts StartConversion calls.
	Conversions int

	// Closed tracks if Close was called.
	Closed bool

	// WriteError, if set, will be returned by every write.
	WriteError error

	irq        Interrupts
	generation uint64 // bumped on ADC disable and on every conversion start
}

// NewFakeController creates a FakeController.
func NewFakeController() *FakeController {
	return &FakeController{}
}

// Attach stores the interrupt sink.
func (f *FakeController) Attach(irq Interrupts) {
	f.mu.Lock()
	f.irq = irq
	f.mu.Unlock()
}

func (f *FakeController) record(op string, v int) error {
	f.Calls = append(f.Calls, Call{Op: op, Value: v})
	return f.WriteError
}

// SetPWM records the PWM connection.
func (f *FakeController) SetPWM(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PWM = enabled
	return f.record("pwm", boolInt(enabled))
}

// SetCompare records the compare value.
func (f *FakeController) SetCompare(level uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Compare = level
	return f.record("compare", int(level))
}

// SetLED records the LED output.
func (f *FakeController) SetLED(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LED = on
	return f.record("led", boolInt(on))
}

// SetDivider records the divider output.
func (f *FakeController) SetDivider(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Divider = on
	return f.record("divider", boolInt(on))
}

// SetADC records the converter enable.
func (f *FakeController) SetADC(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ADC && !enabled {
		f.generation++
	}
	f.ADC = enabled
	return f.record("adc", boolInt(enabled))
}

// StartConversion records a conversion start. Tests complete it with
// CompleteConversion.
func (f *FakeController) StartConversion() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Conversions++
	f.generation++
	return f.record("convert", 1)
}

// Close marks the controller as closed.
func (f *FakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// PressButton raises a button edge interrupt.
func (f *FakeController) PressButton() {
	if irq := f.sink(); irq != nil {
		irq.ButtonEdge()
	}
}

// CompleteConversion raises a conversion-complete interrupt for the
// conversion in flight now.
func (f *FakeController) CompleteConversion(sample uint16) {
	f.CaptureConversion()(sample)
}

// CaptureConversion pins the conversion in flight now and returns a
// function that completes it later. Completing after the converter was
// disabled or restarted delivers a conversion whose Current reports false.
func (f *FakeController) CaptureConversion() func(sample uint16) {
	f.mu.Lock()
	gen := f.generation
	f.mu.Unlock()

	current := func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.ADC && !f.Closed && f.generation == gen
	}
	return func(sample uint16) {
		if irq := f.sink(); irq != nil {
			irq.ConversionComplete(Conversion{Sample: sample, Current: current})
		}
	}
}

// FailWrites sets the error returned by every subsequent write.
func (f *FakeController) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WriteError = err
}

func (f *FakeController) sink() Interrupts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.irq
}

// State returns a copy of the last written outputs.
func (f *FakeController) State() (pwm bool, compare uint8, led, divider, adc bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PWM, f.Compare, f.LED, f.Divider, f.ADC
}

// ConversionCount returns the number of conversions started.
func (f *FakeController) ConversionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Conversions
}

// Reset clears recorded writes.
func (f *FakeController) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Conversions = 0
	f.Closed = false
	f.WriteError = nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
