// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationScope = "github.com/patterncore/pattern"

// Instruments holds the OTEL instruments patternd's HTTP surface records
// against, following nevindra-oasis's observer.Instruments shape (tracer
// plus a handful of named counters/histograms built once at startup).
type Instruments struct {
	Tracer trace.Tracer

	HTTPRequests metric.Int64Counter
	HTTPDuration metric.Float64Histogram
}

// InitMetrics wires an OTEL MeterProvider backed by a Prometheus exporter
// and a TracerProvider backed by a stdout span exporter, returning the
// instruments plus a shutdown func that must run before process exit.
// Traces print to stderr by default, so spans are visible without
// standing up a collector.
func InitMetrics(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	promExporter, err := otelprometheus.New()
	if err != nil {
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	otel.SetMeterProvider(mp)

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	meter := otel.Meter(instrumentationScope)
	requests, err := meter.Int64Counter("http.requests",
		metric.WithDescription("Total HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, nil, err
	}
	duration, err := meter.Float64Histogram("http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}

	return &Instruments{
		Tracer:       otel.Tracer(instrumentationScope),
		HTTPRequests: requests,
		HTTPDuration: duration,
	}, shutdown, nil
}

// Record adds one observation labeled by method, route, and status code.
func (i *Instruments) Record(ctx context.Context, method, route string, status int, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(
		httpMethodAttr(method),
		httpRouteAttr(route),
		httpStatusAttr(status),
	)
	i.HTTPRequests.Add(ctx, 1, attrs)
	i.HTTPDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}

// MetricsHandler serves the Prometheus text exposition format for whatever
// registry the default OTEL Prometheus exporter registered against.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func httpMethodAttr(method string) attribute.KeyValue { return attribute.String("http.method", method) }
func httpRouteAttr(route string) attribute.KeyValue    { return attribute.String("http.route", route) }
func httpStatusAttr(status int) attribute.KeyValue     { return attribute.Int("http.status_code", status) }
