// Package catalog loads remote and embedded record collections and turns them
// into widget views.
//
// A Pipeline owns one widget instance: it fetches a Source, decodes the JSON
// envelope, optionally screens records through a VisibilityPolicy, projects
// them with a pure Projector and keeps a category filter. Only the most
// recently issued Load may replace the state; older responses resolve with
// ErrSuperseded.
package catalog
