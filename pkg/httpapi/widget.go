package httpapi

import (
	"context"

	"github.com/polisai/shelf/pkg/catalog"
)

// Widget is a catalog pipeline as seen by the HTTP layer.
type Widget interface {
	Name() string
	Load(ctx context.Context) error
	// Render returns the current catalog.View, filtered by category when it is not empty.
	Render(category string) any
	Categories() []string
	SelectCategory(category string)
	Err() error
}

type pipelineWidget[R any, V catalog.Categorized] struct {
	*catalog.Pipeline[R, V]
}

// NewWidget adapts a catalog pipeline to the Widget interface.
func NewWidget[R any, V catalog.Categorized](p *catalog.Pipeline[R, V]) Widget {
	return pipelineWidget[R, V]{Pipeline: p}
}

func (w pipelineWidget[R, V]) Render(category string) any {
	if category != "" {
		return w.ViewCategory(category)
	}
	return w.View()
}
