// Package observability configures process-wide structured logging.
//
// Records go through the OpenTelemetry log SDK: a stdout exporter bound to
// stderr for local output, plus an OTLP exporter when the standard
// OTEL_EXPORTER_OTLP_* variables point at a collector. Stdout stays reserved
// for command output such as tokens.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// ServiceName identifies this tool's records at the collector.
const ServiceName = "vsts-npm-auth"

var (
	mu       sync.Mutex
	provider *sdklog.LoggerProvider
)

// Instrument installs the default slog logger writing to stderr.
func Instrument(level slog.Level, format string) error {
	return InstrumentWriter(os.Stderr, level, format)
}

// InstrumentWriter installs the default slog logger writing to w.
// A previously installed provider is shut down first.
func InstrumentWriter(w io.Writer, level slog.Level, format string) error {
	ctx := context.Background()
	sev := severity(level)

	var local slog.Handler
	opts := []sdklog.LoggerProviderOption{
		sdklog.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	}

	switch format {
	case "text":
		local = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "json":
		exporter, err := stdoutlog.New(stdoutlog.WithWriter(w))
		if err != nil {
			return fmt.Errorf("creating stdout log exporter: %w", err)
		}
		opts = append(opts, sdklog.WithProcessor(minsev.NewLogProcessor(sdklog.NewSimpleProcessor(exporter), sev)))
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	remote := otlpEnabled()
	if remote {
		exporter, err := newOTLPExporter(ctx)
		if err != nil {
			return fmt.Errorf("creating OTLP log exporter: %w", err)
		}
		opts = append(opts, sdklog.WithProcessor(minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), sev)))
	}

	lp := sdklog.NewLoggerProvider(opts...)

	var handler slog.Handler
	switch {
	case local != nil && remote:
		handler = fanout{local, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(lp))}
	case local != nil:
		handler = local
	default:
		handler = otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(lp))
	}

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		_, _ = fmt.Fprintf(w, "opentelemetry: %v\n", err)
	}))
	global.SetLoggerProvider(lp)
	slog.SetDefault(slog.New(handler))

	mu.Lock()
	previous := provider
	provider = lp
	mu.Unlock()

	if previous != nil {
		return previous.Shutdown(ctx)
	}
	return nil
}

// Shutdown flushes pending records and stops the installed provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	lp := provider
	provider = nil
	mu.Unlock()

	if lp == nil {
		return nil
	}
	return lp.Shutdown(ctx)
}

// otlpEnabled reports whether a collector endpoint is configured.
func otlpEnabled() bool {
	if strings.EqualFold(os.Getenv("OTEL_SDK_DISABLED"), "true") {
		return false
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// newOTLPExporter picks the transport from OTEL_EXPORTER_OTLP_[LOGS_]PROTOCOL.
// The exporters read endpoint, headers and TLS settings from the environment.
func newOTLPExporter(ctx context.Context) (sdklog.Exporter, error) {
	protocol := os.Getenv("OTEL_EXPORTER_OTLP_LOGS_PROTOCOL")
	if protocol == "" {
		protocol = os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL")
	}

	if protocol == "grpc" {
		return otlploggrpc.New(ctx)
	}
	return otlploghttp.New(ctx)
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

// fanout passes each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
