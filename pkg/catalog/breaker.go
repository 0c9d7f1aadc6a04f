package catalog

import (
	"context"
	"errors"
	"io"

	"github.com/polisai/shelf/internal/governance"
	"github.com/polisai/shelf/pkg/domain"
)

// BreakerSource fails fast while Breaker is open instead of reaching Source.
// Only failures to open the source count against the breaker.
type BreakerSource struct {
	Source  Source
	Breaker *governance.CircuitBreaker
}

// Name returns the wrapped source's name.
func (s BreakerSource) Name() string { return s.Source.Name() }

// Open opens the wrapped source through the breaker.
func (s BreakerSource) Open(ctx context.Context) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := s.Breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = s.Source.Open(ctx)
		return err
	})
	if errors.Is(err, governance.ErrCircuitOpen) {
		return nil, &domain.FetchError{Source: s.Name(), Stage: domain.StageTransport, Err: err}
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}
