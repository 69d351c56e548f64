package firmware

import (
	"context"
	"log/slog"

	"github.com/zoobzio/capitan"
)

// Signals lists every signal the firmware emits.
var Signals = []capitan.Signal{
	FirmwareStarted,
	FirmwareStopped,
	PowerChanged,
	ConversionStarted,
	BatterySampled,
	BatteryLow,
	RegisterWriteFailed,
}

// Watch logs every firmware signal emitted on c at the event's severity.
// Close the returned observer to stop.
func Watch(c *capitan.Capitan, logger *slog.Logger) *capitan.Observer {
	logger = logger.With("component", "firmware")
	return c.Observe(func(ctx context.Context, e *capitan.Event) {
		fields := e.Fields()
		attrs := make([]slog.Attr, 0, len(fields)+1)
		attrs = append(attrs, slog.String("signal", e.Signal().Name()))
		for _, field := range fields {
			attrs = append(attrs, slog.Any(field.Key().Name(), field.Value()))
		}
		logger.LogAttrs(ctx, level(e.Severity()), e.Signal().Description(), attrs...)
	}, Signals...)
}

func level(s capitan.Severity) slog.Level {
	switch s {
	case capitan.SeverityDebug:
		return slog.LevelDebug
	case capitan.SeverityWarn:
		return slog.LevelWarn
	case capitan.SeverityError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
