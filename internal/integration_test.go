package internal

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sweeney/candle/internal/firmware"
	"github.com/sweeney/candle/internal/hw"
	"github.com/sweeney/candle/internal/logic"
	"github.com/sweeney/candle/internal/seed"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pass simulates one tick interrupt followed by the foreground pass it wakes.
func pass(fw *firmware.Firmware, n int) {
	for i := 0; i < n; i++ {
		fw.Tick()
		fw.Step()
	}
}

// TestIntegrationFullFlow runs a whole evening: boot, switch on, several
// good battery samples, then a low sample that forces the candle off.
func TestIntegrationFullFlow(t *testing.T) {
	store := seed.NewFileStore(filepath.Join(t.TempDir(), "seed"))
	s, err := seed.Boot(store)
	if err != nil {
		t.Fatalf("boot seed: %v", err)
	}

	ctrl := hw.NewFakeController()
	fw := firmware.New(ctrl, s, firmware.WithLogger(quietLogger()))

	// Power-down sleep: ticks only open the debounce window.
	pass(fw, 10)
	if snap := fw.Snapshot(); snap.Power != logic.PowerOff || snap.Ticks != 0 {
		t.Fatalf("expected OFF with no ticks counted, got %+v", snap)
	}

	ctrl.PressButton()
	if fw.Snapshot().Power != logic.PowerOn {
		t.Fatal("expected ON after press")
	}

	samples := []uint16{900, 850, 780, 720}
	for i, sample := range samples {
		pass(fw, logic.TicksPerSample+1)
		if got := ctrl.ConversionCount(); got != i+1 {
			t.Fatalf("sample %d: expected %d conversions, got %d", i, i+1, got)
		}
		ctrl.CompleteConversion(sample)
		fw.Step()
		if fw.Snapshot().Power != logic.PowerOn {
			t.Fatalf("sample %d (%d): candle went off above cutoff", i, sample)
		}
	}

	pass(fw, logic.TicksPerSample+1)
	ctrl.CompleteConversion(650)
	fw.Step()

	snap := fw.Snapshot()
	if snap.Power != logic.PowerOff {
		t.Fatalf("expected OFF after low sample, got %s", snap.Power)
	}
	if snap.Counts.Conversions != len(samples)+1 || snap.Counts.LowBattery != 1 {
		t.Errorf("unexpected counts: %+v", snap.Counts)
	}
	pwm, _, led, divider, adc := ctrl.State()
	if pwm || led || divider || adc {
		t.Errorf("expected everything off: pwm=%v led=%v divider=%v adc=%v", pwm, led, divider, adc)
	}

	// A user can switch it back on; the monitor will cut it again later.
	pass(fw, logic.DebounceTicks)
	ctrl.PressButton()
	if fw.Snapshot().Power != logic.PowerOn {
		t.Error("expected the candle to switch back on")
	}
}

// TestIntegrationSoftResetReseeds verifies two consecutive boots flicker differently.
func TestIntegrationSoftResetReseeds(t *testing.T) {
	store := seed.NewFileStore(filepath.Join(t.TempDir(), "seed"))

	flicker := func() []uint8 {
		s, err := seed.Boot(store)
		if err != nil {
			t.Fatalf("boot seed: %v", err)
		}
		ctrl := hw.NewFakeController()
		fw := firmware.New(ctrl, s, firmware.WithLogger(quietLogger()))
		pass(fw, logic.DebounceTicks)
		ctrl.PressButton()

		var levels []uint8
		for i := 0; i < 32; i++ {
			pass(fw, 1)
			levels = append(levels, fw.Snapshot().Level)
		}
		return levels
	}

	a, b := flicker(), flicker()
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("consecutive boots replayed the same flicker sequence")
	}
}

// TestIntegrationBounceStorm verifies a noisy press produces exactly one toggle.
func TestIntegrationBounceStorm(t *testing.T) {
	ctrl := hw.NewFakeController()
	fw := firmware.New(ctrl, 1, firmware.WithLogger(quietLogger()))
	pass(fw, logic.DebounceTicks)

	for i := 0; i < 25; i++ {
		ctrl.PressButton()
	}
	fw.Step()

	snap := fw.Snapshot()
	if snap.Power != logic.PowerOn {
		t.Errorf("expected ON, got %s", snap.Power)
	}
	if snap.Counts.Toggles != 1 {
		t.Errorf("expected 1 toggle, got %d", snap.Counts.Toggles)
	}
}
