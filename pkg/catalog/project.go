package catalog

import "strings"

// Projector shapes one record into its display view. Projectors must be pure.
type Projector[R, V any] func(R) V

// Project maps every record through fn. Empty input yields an empty, non-nil slice.
func Project[R, V any](records []R, fn Projector[R, V]) []V {
	out := make([]V, 0, len(records))
	for _, r := range records {
		out = append(out, fn(r))
	}
	return out
}

// Take returns the first n items. Negative n is treated as zero.
func Take[V any](items []V, n int) []V {
	if n <= 0 {
		return []V{}
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n:n]
}

// FirstNonEmpty returns the first non-blank value, or fallback when all are blank.
func FirstNonEmpty(fallback string, values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fallback
}

// PickByPriority looks keys up in fields in order and returns the first non-blank
// value, or fallback when none is present.
func PickByPriority(fields map[string]string, priority []string, fallback string) string {
	for _, key := range priority {
		if v := fields[key]; strings.TrimSpace(v) != "" {
			return v
		}
	}
	return fallback
}
