package firmware

import (
	"context"

	"github.com/sweeney/candle/internal/logic"
)

// sleep selects the idle mode for the current power state and blocks
// until the next interrupt posts a wake or ctx is cancelled.
// In PowerDown only the button and the tick source can wake the loop,
// because setState(OFF) has stopped the PWM timer and the converter.
func (f *Firmware) sleep(ctx context.Context) error {
	f.mu.Lock()
	mode := f.dev.SleepMode()
	changed := mode != f.mode
	f.mode = mode
	f.mu.Unlock()

	if changed {
		f.log.Debug("sleep mode", "mode", mode)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.wake:
		return nil
	}
}

// SleepMode returns the mode chosen before the most recent sleep.
func (f *Firmware) SleepMode() logic.SleepMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}
