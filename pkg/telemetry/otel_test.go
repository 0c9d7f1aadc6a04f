package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestSetupProviderWithoutEndpoint(t *testing.T) {
	prevMeter := otel.GetMeterProvider()
	prevTracer := otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMeter)
		otel.SetTracerProvider(prevTracer)
		ResetMetricsForTest()
	})

	ctx := context.Background()
	shutdown, err := SetupProvider(ctx, Config{ServiceName: "shelf-test"})
	if err != nil {
		t.Fatalf("SetupProvider: %v", err)
	}
	if otel.GetMeterProvider() == prevMeter {
		t.Fatal("expected a new meter provider")
	}
	if otel.GetTracerProvider() != prevTracer {
		t.Fatal("tracer provider must not change without an endpoint")
	}
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		Version:      "1.2.3",
		Environment:  "staging",
		ResourceTags: map[string]string{"team": "store"},
	})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}

	want := map[attribute.Key]string{
		semconv.ServiceNameKey:    "shelf",
		semconv.ServiceVersionKey: "1.2.3",
		"deployment.environment":  "staging",
		"team":                    "store",
	}
	set := res.Set()
	for key, value := range want {
		got, ok := set.Value(key)
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}
		if got.AsString() != value {
			t.Errorf("%s = %q, want %q", key, got.AsString(), value)
		}
	}
}
