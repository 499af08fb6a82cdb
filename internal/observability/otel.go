package observability

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-recipe-backend/internal/config"
)

// DefaultServiceName is reported as service.name when OTEL_SERVICE_NAME is
// unset.
const DefaultServiceName = "go-recipe-backend"

// TraceTarget describes the process being traced.
type TraceTarget struct {
	Version  string   // service.version
	DB       *gorm.DB // store whose queries become child spans; may be nil
	DBDriver string   // "sqlite" or "postgres"
}

var (
	newOTLPClient = otlptracegrpc.NewClient

	newSpanExporterFn = func(ctx context.Context, client otlptrace.Client) (sdktrace.SpanExporter, error) {
		return otlptrace.New(ctx, client)
	}

	newResourceFn = func(ctx context.Context, attrs ...attribute.KeyValue) (*resource.Resource, error) {
		return resource.New(ctx, resource.WithAttributes(attrs...))
	}
)

// SetupTracing exports spans over OTLP/gRPC and registers the GORM tracing
// plugin on t.DB so store queries nest under request spans. Global tracer
// provider and propagator are only replaced once every step succeeded.
// When tracing is disabled nothing is installed and the returned shutdown
// is a no-op.
func SetupTracing(ctx context.Context, cfg config.OTELConfig, t TraceTarget) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	exp, err := newSpanExporterFn(ctx, newOTLPClient(opts...))
	if err != nil {
		return nil, err
	}
	res, err := newResourceFn(ctx, resourceAttributes(cfg, t)...)
	if err != nil {
		return nil, errors.Join(err, exp.Shutdown(ctx))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)

	if t.DB != nil {
		// Bound parameters carry password hashes and profile text.
		plugin := tracing.NewPlugin(
			tracing.WithTracerProvider(tp),
			tracing.WithDBSystem(dbSystem(t.DBDriver).Value.AsString()),
			tracing.WithoutQueryVariables(),
			tracing.WithoutMetrics(),
		)
		if err := t.DB.Use(plugin); err != nil {
			return nil, errors.Join(err, tp.Shutdown(ctx))
		}
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// resourceAttributes names the service, its build and the store it runs on.
func resourceAttributes(cfg config.OTELConfig, t TraceTarget) []attribute.KeyValue {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = DefaultServiceName
	}
	version := t.Version
	if version == "" {
		version = "dev"
	}
	return []attribute.KeyValue{
		semconv.ServiceName(name),
		semconv.ServiceVersion(version),
		dbSystem(t.DBDriver),
	}
}

func dbSystem(driver string) attribute.KeyValue {
	if strings.EqualFold(driver, "postgres") {
		return semconv.DBSystemPostgreSQL
	}
	return semconv.DBSystemSqlite
}
