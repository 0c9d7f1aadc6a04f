// Package policy evaluates record visibility with an embedded Open Policy Agent
// (OPA) engine.
//
// Widgets apply a visibility policy at the fetch boundary, before records reach
// projection, so rules such as "only show items that are available" live in
// Rego modules rather than in per-widget code. The engine is decoupled from
// HTTP and fetch concerns so policies can be tested on plain records.
package policy
