// Package telemetry provides OpenTelemetry metrics for deskmcp, exported in the Prometheus format.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config holds the telemetry settings.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Providers bundles the OpenTelemetry providers created by Init.
type Providers struct {
	Meter metric.Meter

	serviceName   string
	enabled       bool
	meterProvider *sdkmetric.MeterProvider
}

// Init sets up the OpenTelemetry meter provider.
// When telemetry is disabled, a no-op meter is returned so callers never have to nil-check.
func Init(ctx context.Context, c *Config) (*Providers, error) {
	if c == nil || !c.Enabled {
		name := ""
		if c != nil {
			name = c.ServiceName
		}
		return &Providers{
			Meter:       noop.NewMeterProvider().Meter(name),
			serviceName: name,
		}, nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", c.ServiceName))

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return &Providers{
		Meter:         mp.Meter(c.ServiceName),
		serviceName:   c.ServiceName,
		enabled:       true,
		meterProvider: mp,
	}, nil
}

// IsEnabled returns true if real (non-noop) providers were created.
func (p *Providers) IsEnabled() bool {
	return p != nil && p.enabled
}

// ServiceName returns the service name the providers were created for.
func (p *Providers) ServiceName() string {
	return p.serviceName
}

// Shutdown flushes and stops the providers. It is a no-op when telemetry is disabled.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
