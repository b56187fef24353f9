// Package observability wires the process-wide slog default. Logs go to
// stderr as text or JSON; optionally they are exported through the OTel log
// bridge, either pretty-printed to stdout or via OTLP/HTTP to a collector
// configured through the standard OTEL_EXPORTER_OTLP_* environment variables.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Export modes.
const (
	ExportNone   = "none"
	ExportStdout = "stdout"
	ExportOTLP   = "otlp"
)

const instrumentationName = "github.com/O-G-W-A-L/doit-cli"

// Instrument installs the default slog logger and returns a shutdown function
// that flushes any pending exported records.
func Instrument(level slog.Level, format, export string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if export == ExportNone || export == "" {
		var handler slog.Handler
		switch format {
		case "json":
			handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		}
		slog.SetDefault(slog.New(handler))
		return noop, nil
	}

	exporter, err := newExporter(export)
	if err != nil {
		return noop, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(
			minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level)),
		),
	)

	slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))))
	return provider.Shutdown, nil
}

func newExporter(export string) (sdklog.Exporter, error) {
	switch export {
	case ExportStdout:
		return stdoutlog.New(stdoutlog.WithWriter(os.Stdout))
	case ExportOTLP:
		return otlploghttp.New(context.Background())
	default:
		return nil, fmt.Errorf("unsupported log export mode: %s", export)
	}
}

func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
