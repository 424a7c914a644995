/*
Copyright 2026 The FleetCI Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tracing provides the tracer provider job runs are traced with.
package tracing

import (
	"context"
	"sync"

	"github.com/fleetci/pipeline/pkg/apis/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerProvider hands out tracers of a provider that can be reconfigured
// at runtime. It starts as a noop provider.
type TracerProvider struct {
	service string
	logger  *zap.SugaredLogger

	mu       sync.RWMutex
	provider trace.TracerProvider
	cfg      *config.Tracing
}

var _ trace.TracerProvider = (*TracerProvider)(nil)

func init() {
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

// New returns a new instance of TracerProvider for the given service
func New(service string, logger *zap.SugaredLogger) *TracerProvider {
	return &TracerProvider{
		service:  service,
		provider: trace.NewNoopTracerProvider(),
		logger:   logger,
	}
}

// Configure replaces the underlying provider when cfg differs from the
// configuration in use.
func (t *TracerProvider) Configure(cfg *config.Tracing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cfg.Equals(t.cfg) {
		t.logger.Debug("tracing config unchanged")
		return
	}
	tp, err := createTracerProvider(t.service, cfg)
	if err != nil {
		t.logger.Errorf("unable to initialize tracing with error : %v", err.Error())
		return
	}
	t.logger.Infow("initialized Tracer Provider", "enabled", cfg.Enabled, "endpoint", cfg.Endpoint)
	t.shutdown(context.Background())
	t.cfg = cfg
	t.provider = tp
}

func (t *TracerProvider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.provider.Tracer(name, options...)
}

// Shutdown flushes and stops the exporter, if one is running.
func (t *TracerProvider) Shutdown(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown(ctx)
	t.provider = trace.NewNoopTracerProvider()
	t.cfg = nil
}

func (t *TracerProvider) shutdown(ctx context.Context) {
	if p, ok := t.provider.(*tracesdk.TracerProvider); ok {
		if err := p.Shutdown(ctx); err != nil {
			t.logger.Errorf("unable to shutdown tracingprovider with error : %v", err.Error())
		}
	}
}

func createTracerProvider(service string, cfg *config.Tracing) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return trace.NewNoopTracerProvider(), nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(cfg.Endpoint),
		jaeger.WithUsername(cfg.Username),
		jaeger.WithPassword(cfg.Password),
	))
	if err != nil {
		return nil, err
	}
	if cfg.Service != "" {
		service = cfg.Service
	}
	// Initialize tracerProvider with the jaeger exporter
	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		// Record information about the service in a Resource.
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
		)),
	)
	return tp, nil
}
