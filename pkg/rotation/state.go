// Package rotation tracks the selected slot of a rotating display, such as a
// testimonial carousel, and drives it with an owned auto-advance timer.
package rotation

// State is the position of a rotating display.
// When Length > 0, 0 <= Index < Length. When Length == 0, Index is 0.
type State struct {
	Index  int  `json:"index"`
	Length int  `json:"length"`
	Paused bool `json:"paused"`
}

// Advance moves the index by delta, wrapping in both directions.
// A zero-length state is returned unchanged.
func Advance(s State, delta int) State {
	if s.Length <= 0 {
		return s
	}
	s.Index = ((s.Index+delta)%s.Length + s.Length) % s.Length
	return s
}

// GoTo selects index i. Out-of-range indices leave the state unchanged.
func GoTo(s State, i int) State {
	if i < 0 || i >= s.Length {
		return s
	}
	s.Index = i
	return s
}

// Normalize re-establishes the index invariant after the length changed.
func Normalize(s State) State {
	if s.Length <= 0 {
		s.Length = 0
		s.Index = 0
		return s
	}
	return Advance(s, 0)
}

// Pause stops automatic advancement.
func Pause(s State) State {
	s.Paused = true
	return s
}

// Resume re-enables automatic advancement.
func Resume(s State) State {
	s.Paused = false
	return s
}
