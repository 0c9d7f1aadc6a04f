package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/polisai/shelf/pkg/storage"
	"github.com/polisai/shelf/pkg/telemetry"
)

// ErrSuperseded is returned by Load when a newer Load was issued before this
// one completed. Its response was discarded and visible state is unchanged.
var ErrSuperseded = errors.New("load superseded by a newer request")

// VisibilityPolicy decides whether a fetched record may be displayed.
type VisibilityPolicy interface {
	Allow(ctx context.Context, input any) (bool, error)
}

// VisibilityFunc adapts a function to the VisibilityPolicy interface.
type VisibilityFunc func(ctx context.Context, input any) (bool, error)

// Allow calls f.
func (f VisibilityFunc) Allow(ctx context.Context, input any) (bool, error) {
	return f(ctx, input)
}

// Options configures a Pipeline.
type Options[R any, V Categorized] struct {
	// Name identifies the widget in logs and metrics.
	Name     string
	Source   Source
	Envelope Envelope
	Project  Projector[R, V]
	// Limit keeps only the first Limit records; zero or less keeps all.
	Limit int
	// Visibility, when set, drops records it denies before projection.
	Visibility VisibilityPolicy
	// Store receives a snapshot after every successful load.
	Store storage.SnapshotStore
	// FallbackToSnapshot applies the stored snapshot when a load fails.
	FallbackToSnapshot bool
	Metrics            *telemetry.Metrics
	Logger             *slog.Logger
}

// View is the display state of a widget at one point in time.
type View[V any] struct {
	Widget   string    `json:"widget"`
	Items    []V       `json:"items"`
	Category string    `json:"category"`
	Total    int       `json:"total"`
	Error    string    `json:"error,omitempty"`
	Stale    bool      `json:"stale"`
	LoadedAt time.Time `json:"loadedAt,omitempty"`
}

// Pipeline fetches records for one widget instance, projects them into views
// and tracks the selected category. It is safe for concurrent use.
type Pipeline[R any, V Categorized] struct {
	opts   Options[R, V]
	logger *slog.Logger

	mu       sync.RWMutex
	issued   uint64
	records  []R
	views    []V
	visible  []V
	category string
	limit    int
	lastErr  error
	stale    bool
	loadedAt time.Time
}

// NewPipeline creates a Pipeline. Source and Project are required.
func NewPipeline[R any, V Categorized](opts Options[R, V]) (*Pipeline[R, V], error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("pipeline %q: source is required", opts.Name)
	}
	if opts.Project == nil {
		return nil, fmt.Errorf("pipeline %q: projector is required", opts.Name)
	}
	if opts.Envelope == "" {
		opts.Envelope = EnvelopeAuto
	}
	if opts.Name == "" {
		opts.Name = opts.Source.Name()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline[R, V]{
		opts:     opts,
		logger:   logger.With("widget", opts.Name),
		records:  []R{},
		views:    []V{},
		visible:  []V{},
		category: AllCategories,
		limit:    opts.Limit,
	}, nil
}

// Name returns the widget name.
func (p *Pipeline[R, V]) Name() string { return p.opts.Name }

// Load fetches the source and, if this is still the most recently issued load,
// replaces the records. On failure the previous records are kept and the error
// is recorded; with FallbackToSnapshot the last snapshot replaces them instead.
// A load whose ctx ends before the fetch completes leaves the state untouched.
func (p *Pipeline[R, V]) Load(ctx context.Context) error {
	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	start := time.Now()
	records, err := Fetch[R](ctx, p.opts.Source, p.opts.Envelope)
	if err == nil {
		records, err = p.applyVisibility(ctx, records)
	}

	if err != nil && ctx.Err() != nil {
		p.record(ctx, telemetry.OutcomeCanceled, start, 0)
		p.logger.Debug("Widget load canceled", "sequence", seq, "error", err)
		return err
	}

	var fallback []R
	fallbackOK := false
	if err != nil && p.opts.FallbackToSnapshot && p.opts.Store != nil {
		fallback, fallbackOK = p.restoreSnapshot(ctx)
	}

	p.mu.Lock()
	if seq != p.issued {
		p.mu.Unlock()
		p.record(ctx, telemetry.OutcomeSuperseded, start, 0)
		p.logger.Debug("Discarding superseded response", "sequence", seq)
		return ErrSuperseded
	}

	if err != nil {
		p.lastErr = err
		outcome := telemetry.OutcomeError
		if fallbackOK {
			p.replaceLocked(fallback)
			p.stale = true
			outcome = telemetry.OutcomeFallback
		} else if len(p.records) > 0 {
			p.stale = true
		}
		items := len(p.views)
		p.mu.Unlock()

		p.opts.Metrics.SetItems(p.opts.Name, items)
		p.record(ctx, outcome, start, 0)
		p.logger.Warn("Widget load failed", "source", p.opts.Source.Name(), "error", err, "fallback", fallbackOK)
		return err
	}

	p.replaceLocked(records)
	p.lastErr = nil
	p.stale = false
	p.loadedAt = time.Now()
	items := len(p.views)
	p.mu.Unlock()

	p.opts.Metrics.SetItems(p.opts.Name, items)
	p.record(ctx, telemetry.OutcomeSuccess, start, len(records))
	p.reportIncomplete(records)
	p.saveSnapshot(ctx, records)
	p.logger.Debug("Widget loaded", "records", len(records), "duration", time.Since(start))
	return nil
}

// SelectCategory changes the filter. The "all" sentinel clears it.
func (p *Pipeline[R, V]) SelectCategory(category string) {
	if IsAllCategories(category) {
		category = AllCategories
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.category = category
	p.visible = FilterByCategory(p.views, p.category)
}

// SetLimit changes how many records are kept and recomputes views.
func (p *Pipeline[R, V]) SetLimit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limit = n
	p.replaceLocked(p.records)
}

// Categories lists the categories present in the current views.
func (p *Pipeline[R, V]) Categories() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return DistinctCategories(p.views)
}

// Records returns a copy of the current records.
func (p *Pipeline[R, V]) Records() []R {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]R(nil), p.records...)
}

// Err returns the error of the last applied load, if any.
func (p *Pipeline[R, V]) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}

// View returns the current display state.
func (p *Pipeline[R, V]) View() View[V] {
	p.mu.RLock()
	defer p.mu.RUnlock()

	v := View[V]{
		Widget:   p.opts.Name,
		Items:    append(make([]V, 0, len(p.visible)), p.visible...),
		Category: p.category,
		Total:    len(p.views),
		Stale:    p.stale,
		LoadedAt: p.loadedAt,
	}
	if p.lastErr != nil {
		v.Error = p.lastErr.Error()
	}
	return v
}

// ViewCategory returns the display state filtered by category without
// changing the selected category.
func (p *Pipeline[R, V]) ViewCategory(category string) View[V] {
	if IsAllCategories(category) {
		category = AllCategories
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	items := FilterByCategory(p.views, category)
	v := View[V]{
		Widget:   p.opts.Name,
		Items:    append(make([]V, 0, len(items)), items...),
		Category: category,
		Total:    len(p.views),
		Stale:    p.stale,
		LoadedAt: p.loadedAt,
	}
	if p.lastErr != nil {
		v.Error = p.lastErr.Error()
	}
	return v
}

// replaceLocked swaps in a full record sequence; callers hold p.mu.
func (p *Pipeline[R, V]) replaceLocked(records []R) {
	p.records = records
	kept := records
	if p.limit > 0 {
		kept = Take(records, p.limit)
	}
	p.views = Project(kept, p.opts.Project)
	p.visible = FilterByCategory(p.views, p.category)
}

func (p *Pipeline[R, V]) applyVisibility(ctx context.Context, records []R) ([]R, error) {
	if p.opts.Visibility == nil {
		return records, nil
	}
	out := make([]R, 0, len(records))
	for i, r := range records {
		ok, err := p.opts.Visibility.Allow(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("visibility policy on record %d: %w", i, err)
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type validator interface {
	Validate() error
}

// reportIncomplete logs records missing required fields. They are still
// displayed; projection substitutes fallback values.
func (p *Pipeline[R, V]) reportIncomplete(records []R) {
	for _, r := range records {
		v, ok := any(r).(validator)
		if !ok {
			return
		}
		if err := v.Validate(); err != nil {
			p.logger.Debug("Record incomplete, using fallback values", "error", err)
		}
	}
}

func (p *Pipeline[R, V]) saveSnapshot(ctx context.Context, records []R) {
	if p.opts.Store == nil {
		return
	}
	payload, err := json.Marshal(records)
	if err != nil {
		p.logger.Warn("Failed to encode snapshot", "error", err)
		return
	}
	if _, err := p.opts.Store.SaveSnapshot(ctx, p.opts.Name, payload, len(records)); err != nil {
		p.logger.Warn("Failed to save snapshot", "error", err)
	}
}

func (p *Pipeline[R, V]) restoreSnapshot(ctx context.Context) ([]R, bool) {
	snap, err := p.opts.Store.LatestSnapshot(ctx, p.opts.Name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			p.logger.Warn("Failed to read snapshot", "error", err)
		}
		return nil, false
	}
	var records []R
	if err := json.Unmarshal(snap.Payload, &records); err != nil {
		p.logger.Warn("Failed to decode snapshot", "snapshot_id", snap.ID, "error", err)
		return nil, false
	}
	if records == nil {
		records = []R{}
	}
	return records, true
}

func (p *Pipeline[R, V]) record(ctx context.Context, outcome string, start time.Time, n int) {
	d := time.Since(start)
	p.opts.Metrics.RecordLoad(p.opts.Name, outcome, d)
	telemetry.RecordLoadMetrics(ctx, telemetry.LoadMetrics{
		Widget:   p.opts.Name,
		Source:   p.opts.Source.Name(),
		Outcome:  outcome,
		Duration: d,
		Records:  n,
	})
}
