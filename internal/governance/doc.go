// Package governance holds the runtime safety controls shelf puts around its
// data sources and HTTP endpoints: a circuit breaker that fails fast while an
// upstream catalog is down, and per-route token bucket rate limiting for
// endpoints that trigger upstream work.
package governance
