package policy

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// AvailableOnlyEntrypoint is the decision path of AvailableOnlyModule.
const AvailableOnlyEntrypoint = "shelf/visibility/allow"

// AvailableOnlyModule shows records whose "available" field is true.
const AvailableOnlyModule = `package shelf.visibility

default allow := false

allow if input.available == true
`

// EngineOptions control OPA engine construction and runtime behaviour.
type EngineOptions struct {
	// Entrypoint is the boolean decision path (e.g. "shelf/visibility/allow").
	Entrypoint string
	// Modules contains the Rego modules that should be loaded into the engine.
	Modules map[string]string
	// CacheMaxEntries bounds the decision cache size (LRU). Zero selects the
	// default size; negative disables caching entirely.
	CacheMaxEntries int
}

// Engine evaluates visibility decisions using an embedded OPA SDK instance.
type Engine struct {
	moduleOrder   []string
	parsedModules map[string]*ast.Module
	entrypoint    string
	cache         *decisionCache
	prepared      *rego.PreparedEvalQuery
}

const defaultCacheCapacity = 1024

// NewAvailableOnlyEngine builds an Engine running AvailableOnlyModule.
func NewAvailableOnlyEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, EngineOptions{
		Entrypoint: AvailableOnlyEntrypoint,
		Modules:    map[string]string{"available.rego": AvailableOnlyModule},
	})
}

// NewEngine constructs an Engine for the supplied modules and entrypoint.
func NewEngine(ctx context.Context, opts EngineOptions) (*Engine, error) {
	entry := strings.Trim(strings.TrimSpace(opts.Entrypoint), "/")
	if entry == "" {
		return nil, errors.New("policy engine requires an entrypoint")
	}

	if len(opts.Modules) == 0 {
		return nil, errors.New("policy engine requires at least one rego module")
	}

	maxEntries := opts.CacheMaxEntries
	switch {
	case maxEntries == 0:
		maxEntries = defaultCacheCapacity
	case maxEntries < 0:
		maxEntries = 0
	}

	var cache *decisionCache
	if maxEntries > 0 {
		cache = newDecisionCache(maxEntries)
	}

	moduleOrder := make([]string, 0, len(opts.Modules))
	for name := range opts.Modules {
		moduleOrder = append(moduleOrder, name)
	}
	sort.Strings(moduleOrder)

	parsedModules := make(map[string]*ast.Module, len(opts.Modules))
	for _, name := range moduleOrder {
		module, err := ast.ParseModuleWithOpts(name, opts.Modules[name], ast.ParserOptions{RegoVersion: ast.RegoV1})
		if err != nil {
			return nil, fmt.Errorf("parse rego module %q: %w", name, err)
		}
		parsedModules[name] = module
	}

	engine := &Engine{
		moduleOrder:   moduleOrder,
		parsedModules: parsedModules,
		entrypoint:    entry,
		cache:         cache,
	}

	prepared, err := engine.prepare(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego modules: %w", err)
	}
	engine.prepared = prepared

	return engine, nil
}

// Entrypoint returns the decision path evaluated by Allow.
func (e *Engine) Entrypoint() string { return e.entrypoint }

// Allow reports whether the record described by input may be displayed.
// Input is converted through JSON so struct tags define the Rego field names.
// An undefined decision denies.
func (e *Engine) Allow(ctx context.Context, input any) (bool, error) {
	doc, encoded, err := toDocument(input)
	if err != nil {
		return false, fmt.Errorf("policy input: %w", err)
	}

	key := cacheKey(e.entrypoint, encoded)
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return cached, nil
		}
	}

	results, err := e.prepared.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return false, fmt.Errorf("opa decision: %w", err)
	}

	allowed := false
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		value, ok := results[0].Expressions[0].Value.(bool)
		if !ok {
			return false, fmt.Errorf("opa decision: expected boolean, got %T", results[0].Expressions[0].Value)
		}
		allowed = value
	}

	if e.cache != nil {
		e.cache.Add(key, allowed)
	}
	return allowed, nil
}

// FlushCache clears all cached decisions. Safe to call concurrently.
func (e *Engine) FlushCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

func (e *Engine) prepare(ctx context.Context) (*rego.PreparedEvalQuery, error) {
	query := "data." + strings.ReplaceAll(e.entrypoint, "/", ".")

	opts := make([]func(*rego.Rego), 0, len(e.parsedModules)+1)
	opts = append(opts, rego.Query(query))
	for _, name := range e.moduleOrder {
		opts = append(opts, rego.ParsedModule(e.parsedModules[name]))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &prepared, nil
}

func toDocument(input any) (map[string]any, []byte, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, nil, fmt.Errorf("input must encode to a JSON object: %w", err)
	}
	// Re-encode the map so the cache key does not depend on struct field order.
	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, canonical, nil
}

// cacheKey hashes the entrypoint and canonical input, separated by a null byte.
func cacheKey(entry string, encoded []byte) string {
	h := sha256.New()
	h.Write([]byte(entry))
	h.Write([]byte{0})
	h.Write(encoded)
	return hex.EncodeToString(h.Sum(nil))
}

type decisionCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

type cacheItem struct {
	key   string
	value bool
}

func newDecisionCache(capacity int) *decisionCache {
	return &decisionCache{
		max:     capacity,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

func (c *decisionCache) Get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(cacheItem).value, true
}

func (c *decisionCache) Add(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value = cacheItem{key: key, value: value}
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(cacheItem{key: key, value: value})
	c.entries[key] = elem

	if c.order.Len() <= c.max {
		return
	}

	tail := c.order.Back()
	if tail != nil {
		c.order.Remove(tail)
		delete(c.entries, tail.Value.(cacheItem).key)
	}
}

func (c *decisionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *decisionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element, c.max)
}
