// Command candle drives a battery-powered LED candle: a debounced button
// toggles a flickering flame, and the battery is sampled every ~10 s of
// on time with a hard cutoff.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/candle/internal/firmware"
	"github.com/sweeney/candle/internal/hw"
	"github.com/sweeney/candle/internal/logic"
	"github.com/sweeney/candle/internal/seed"
)

// probeTimeout bounds the wait for a single battery conversion.
const probeTimeout = 2 * time.Second

func main() {
	log.SetFlags(0)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root := (&app{out: os.Stdout}).command()
	if err := root.ParseAndRun(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("fatal: %v", err)
	}
}

// config holds the wiring of one board. Behavioural constants live in
// package logic and are not configurable.
type config struct {
	chip        string
	buttonLine  int
	dividerLine int
	ledPin      string
	pwmFreq     int
	i2cBus      string
	adcAddr     uint
	adcChannel  int
	adcRefMV    int
	seedFile    string
	verbose     bool
}

func (c *config) register(fs *flag.FlagSet) {
	fs.StringVar(&c.chip, "chip", hw.DefaultChip, "GPIO character device")
	fs.IntVar(&c.buttonLine, "button-line", hw.DefaultButtonLine, "line offset of the push button (active low)")
	fs.IntVar(&c.dividerLine, "divider-line", hw.DefaultDividerLine, "line offset of the battery divider enable")
	fs.StringVar(&c.ledPin, "led-pin", hw.DefaultLEDPin, "PWM-capable LED pin name")
	fs.IntVar(&c.pwmFreq, "pwm-freq", 8000, "LED PWM frequency in Hz")
	fs.StringVar(&c.i2cBus, "i2c-bus", "", "I2C bus of the battery ADC (empty for the first bus)")
	fs.UintVar(&c.adcAddr, "adc-addr", 0x48, "ADS1115 I2C address")
	fs.IntVar(&c.adcChannel, "adc-channel", 0, "ADS1115 input channel of the divider tap")
	fs.IntVar(&c.adcRefMV, "adc-ref", 1100, "reference in mV the battery codes are expressed against")
	fs.StringVar(&c.seedFile, "seed-file", seed.DefaultPath, "flicker seed file (tmpfs, survives restarts only)")
	fs.BoolVar(&c.verbose, "verbose", false, "verbose logging")
}

func (c config) hwConfig(logger *slog.Logger) hw.Config {
	return hw.Config{
		Chip:         c.chip,
		ButtonLine:   c.buttonLine,
		DividerLine:  c.dividerLine,
		LEDPin:       c.ledPin,
		PWMFrequency: physic.Frequency(c.pwmFreq) * physic.Hertz,
		I2CBus:       c.i2cBus,
		ADCAddress:   uint16(c.adcAddr),
		ADCChannel:   c.adcChannel,
		Reference:    physic.ElectricPotential(c.adcRefMV) * physic.MilliVolt,
		Logger:       logger,
	}
}

// app binds one flag set per subcommand.
type app struct {
	runCfg   config
	probeCfg config
	out      io.Writer
}

func (a *app) command() *ffcli.Command {
	runFS := flag.NewFlagSet("candle run", flag.ContinueOnError)
	a.runCfg.register(runFS)
	runCmd := &ffcli.Command{
		Name:       "run",
		ShortUsage: "candle run [flags]",
		ShortHelp:  "Run the candle until interrupted",
		FlagSet:    runFS,
		Options:    []ff.Option{ff.WithEnvVarPrefix("CANDLE")},
		Exec: func(ctx context.Context, _ []string) error {
			return execRun(ctx, a.runCfg)
		},
	}

	probeFS := flag.NewFlagSet("candle probe", flag.ContinueOnError)
	a.probeCfg.register(probeFS)
	probeCmd := &ffcli.Command{
		Name:       "probe",
		ShortUsage: "candle probe [flags]",
		ShortHelp:  "Print the button level and one battery sample, then exit",
		FlagSet:    probeFS,
		Options:    []ff.Option{ff.WithEnvVarPrefix("CANDLE")},
		Exec: func(ctx context.Context, _ []string) error {
			return execProbe(ctx, a.probeCfg, a.out)
		},
	}

	return &ffcli.Command{
		Name:        "candle",
		ShortUsage:  "candle <subcommand> [flags]",
		FlagSet:     flag.NewFlagSet("candle", flag.ContinueOnError),
		Subcommands: []*ffcli.Command{runCmd, probeCmd},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}

func newLogger(w *os.File, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	}))
	slog.SetDefault(logger)
	return logger
}

func execRun(ctx context.Context, cfg config) error {
	logger := newLogger(os.Stderr, cfg.verbose)

	ctrl, err := hw.NewRealController(cfg.hwConfig(logger))
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Error("release hardware", "err", err)
		}
	}()

	logger.Info("config",
		"chip", cfg.chip,
		"button", cfg.buttonLine,
		"divider", cfg.dividerLine,
		"led", cfg.ledPin,
		"adc", fmt.Sprintf("%#x/%d", cfg.adcAddr, cfg.adcChannel),
	)
	return run(ctx, ctrl, seed.NewFileStore(cfg.seedFile), logger, clockz.RealClock, capitan.Default())
}

// run boots the seed and runs the firmware until ctx is cancelled.
// Firmware signals emitted on signals are logged through logger.
func run(ctx context.Context, ctrl hw.Controller, store seed.Store, logger *slog.Logger, clock clockz.Clock, signals *capitan.Capitan) error {
	watcher := firmware.Watch(signals, logger)
	defer func() {
		// Drain queued signals so the final power change is logged.
		signals.Shutdown()
		watcher.Close()
	}()

	s, err := seed.Boot(store)
	if err != nil {
		// The flicker still works, it just may repeat after the next reset.
		logger.Warn("seed", "err", err)
	}
	logger.Debug("seed", "value", s)

	fw := firmware.New(ctrl, s,
		firmware.WithLogger(logger),
		firmware.WithClock(clock),
		firmware.WithSignals(signals),
	)
	return fw.Run(ctx)
}

func execProbe(ctx context.Context, cfg config, out io.Writer) error {
	logger := newLogger(os.Stderr, cfg.verbose)

	ctrl, err := hw.NewRealController(cfg.hwConfig(logger))
	if err != nil {
		return fmt.Errorf("init hardware: %w", err)
	}
	defer func() {
		if err := ctrl.Close(); err != nil {
			logger.Error("release hardware", "err", err)
		}
	}()

	ref := physic.ElectricPotential(cfg.adcRefMV) * physic.MilliVolt
	return probe(ctx, ctrl, ctrl, ref, out)
}

// buttonReader reads the current button level.
type buttonReader interface {
	ButtonPressed() (bool, error)
}

// probeIRQ captures one conversion result.
type probeIRQ chan uint16

func (p probeIRQ) ButtonEdge() {}

func (p probeIRQ) ConversionComplete(c hw.Conversion) {
	select {
	case p <- c.Sample:
	default:
	}
}

// probe prints the button level and one battery sample. The divider and
// converter are switched off again before it returns.
func probe(ctx context.Context, ctrl hw.Controller, btn buttonReader, ref physic.ElectricPotential, out io.Writer) (err error) {
	pressed, err := btn.ButtonPressed()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "button: %s\n", stateString(pressed))

	samples := make(probeIRQ, 1)
	ctrl.Attach(samples)

	if err := ctrl.SetDivider(true); err != nil {
		return fmt.Errorf("enable divider: %w", err)
	}
	defer func() {
		if derr := ctrl.SetDivider(false); derr != nil && err == nil {
			err = fmt.Errorf("disable divider: %w", derr)
		}
	}()
	if err := ctrl.SetADC(true); err != nil {
		return fmt.Errorf("enable adc: %w", err)
	}
	defer func() {
		if derr := ctrl.SetADC(false); derr != nil && err == nil {
			err = fmt.Errorf("disable adc: %w", derr)
		}
	}()
	if err := ctrl.StartConversion(); err != nil {
		return fmt.Errorf("start conversion: %w", err)
	}

	select {
	case code := <-samples:
		verdict := "OK"
		if code < logic.LowBatteryThreshold {
			verdict = "LOW"
		}
		fmt.Fprintf(out, "battery: code=%d cutoff=%d tap=%v %s\n",
			code, logic.LowBatteryThreshold, hw.CodeToVoltage(code, ref), verdict)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(probeTimeout):
		return errors.New("battery conversion timed out")
	}
}

func stateString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}
