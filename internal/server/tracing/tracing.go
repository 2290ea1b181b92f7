// Package tracing builds the OpenTelemetry tracer provider used by the
// delivery core.
package tracing

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

const shutdownTimeout = 5 * time.Second

// Provider is an SDK tracer provider that also satisfies io.Closer, so the
// app can flush it with the rest of its resources.
type Provider struct {
	*sdktrace.TracerProvider
}

// Close flushes pending spans and stops the exporter.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}

// NewProvider returns a provider tagged with serviceName. With ExporterNone
// (or an empty name) spans are created but not exported; ExporterStdout
// writes them as JSON to w.
func NewProvider(exporter, serviceName string, w io.Writer) (*Provider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	}

	switch exporter {
	case "", ExporterNone:
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}

	return &Provider{TracerProvider: sdktrace.NewTracerProvider(opts...)}, nil
}
