// Package observability configures process-wide structured logging.
//
// Logs go either to stderr through a plain slog handler, or through an
// OpenTelemetry log pipeline when an exporter is selected.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/florianilch/starpoller"

// Exporter names an OpenTelemetry log exporter.
type Exporter string

const (
	ExporterNone     Exporter = "none"
	ExporterStdout   Exporter = "stdout"
	ExporterOTLPHTTP Exporter = "otlphttp"
	ExporterOTLPGRPC Exporter = "otlpgrpc"
)

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(ctx context.Context) error

// Instrument installs the default slog logger and returns a function that
// flushes any pending exports. OTLP exporters read their endpoint from the
// standard OTEL_EXPORTER_OTLP_* environment variables.
func Instrument(ctx context.Context, level slog.Level, format string, exporter Exporter) (ShutdownFunc, error) {
	handler, shutdown, err := newHandler(ctx, os.Stderr, level, format, exporter)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(slog.New(handler))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Error("opentelemetry", "error", err)
	}))

	return shutdown, nil
}

func newHandler(ctx context.Context, w io.Writer, level slog.Level, format string, exporter Exporter) (slog.Handler, ShutdownFunc, error) {
	if exporter == "" || exporter == ExporterNone {
		opts := &slog.HandlerOptions{Level: level}
		switch format {
		case "", "text":
			return slog.NewTextHandler(w, opts), noopShutdown, nil
		case "json":
			return slog.NewJSONHandler(w, opts), noopShutdown, nil
		default:
			return nil, nil, fmt.Errorf("unsupported log format %q", format)
		}
	}

	exp, err := newExporter(ctx, w, exporter)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s log exporter: %w", exporter, err)
	}

	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exp), severity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))

	shutdown := func(ctx context.Context) error {
		return errors.Join(provider.ForceFlush(ctx), provider.Shutdown(ctx))
	}
	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)), shutdown, nil
}

func newExporter(ctx context.Context, w io.Writer, exporter Exporter) (sdklog.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter %q", exporter)
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

func noopShutdown(context.Context) error { return nil }
