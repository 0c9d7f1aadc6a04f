package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCarousel(t *testing.T) {
	items := []string{"ava", "elijah", "sophia"}
	c := NewCarousel(items, Options{Name: "testimonials", Length: 99})
	items[0] = "mutated"

	got, s, ok := c.Current()
	assert.True(t, ok)
	assert.Equal(t, "ava", got)
	assert.Equal(t, State{Index: 0, Length: 3}, s)

	c.Prev()
	got, _, _ = c.Current()
	assert.Equal(t, "sophia", got)

	assert.Equal(t, State{Index: 0, Length: 2}, c.SetItems([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, c.Items())
}

func TestCarousel_Empty(t *testing.T) {
	c := NewCarousel[string](nil, Options{})

	got, s, ok := c.Current()
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.Equal(t, State{}, s)
	assert.Equal(t, State{}, c.Next())
}
