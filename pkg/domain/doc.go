// Package domain defines the record and view types shown by the shelf widgets,
// together with the error taxonomy shared by every layer.
//
// This package has ZERO external dependencies outside the Go standard library.
// Records are the typed shapes decoded at the fetch boundary (catalog books,
// upcoming releases, cafe menu items, testimonials). Views are the display-ready
// projections built from them by package catalog.
//
// The dependency direction is always:
//
//	catalog, httpapi, auth → domain (CORRECT)
//	domain → anything else (FORBIDDEN)
package domain
