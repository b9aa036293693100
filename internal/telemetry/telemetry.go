// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type ShutdownFunc func(context.Context) error

// Setup configures tracing for exporter "none", "stdout" or "otlp". The otlp
// exporter reads the standard OTEL_EXPORTER_OTLP_* variables.
func Setup(ctx context.Context, exporter, serviceName string) (ShutdownFunc, error) {
	return setup(ctx, exporter, serviceName, os.Stdout)
}

func setup(ctx context.Context, exporter, serviceName string, stdout io.Writer) (ShutdownFunc, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch strings.ToLower(exporter) {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(stdout))
	case "otlp":
		exp, err = otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
