package firmware

import "context"

// tickSource raises the periodic tick interrupt until ctx is cancelled.
// It keeps running while the candle is off so the debounce window can
// still open.
func (f *Firmware) tickSource(ctx context.Context) {
	ticker := f.clock.NewTicker(f.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			f.Tick()
		}
	}
}
