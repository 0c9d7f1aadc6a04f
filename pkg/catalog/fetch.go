package catalog

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/shelf/pkg/domain"
)

const tracerName = "github.com/polisai/shelf/pkg/catalog"

// Fetch issues a single read against src and decodes the body into records.
// Every failure is returned as a *domain.FetchError; no retries are attempted.
func Fetch[R any](ctx context.Context, src Source, env Envelope) ([]R, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "catalog.fetch",
		trace.WithAttributes(
			attribute.String("catalog.source", src.Name()),
			attribute.String("catalog.envelope", string(env)),
		),
	)
	defer span.End()

	body, err := src.Open(ctx)
	if err != nil {
		err = asFetchError(src.Name(), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "open source")
		return nil, err
	}
	defer body.Close()

	records, err := Decode[R](body, env)
	if err != nil {
		err = &domain.FetchError{Source: src.Name(), Stage: domain.StageDecode, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode body")
		return nil, err
	}

	span.SetAttributes(attribute.Int("catalog.records", len(records)))
	return records, nil
}

func asFetchError(source string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &domain.FetchError{Source: source, Stage: domain.StageTransport, Err: err}
}
