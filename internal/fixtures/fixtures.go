// Package fixtures bundles the static records served when a widget has no
// configured URL or path.
package fixtures

import (
	"embed"
	"io/fs"
)

// Resource names inside FS.
const (
	Upcoming     = "upcoming.json"
	Menu         = "menu.json"
	Testimonials = "testimonials.json"
)

//go:embed data/*.json
var data embed.FS

// FS returns the bundled resources rooted at their directory.
func FS() fs.FS {
	sub, err := fs.Sub(data, "data")
	if err != nil {
		panic(err)
	}
	return sub
}
